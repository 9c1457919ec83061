package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/internal/util"
	"knowledge_graph_backend/pkg/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed graph.yaml
var defaultGraph []byte

type Concept struct {
	Name            string                `yaml:"name"`
	Slug            string                `yaml:"slug"`
	Type            model.ConceptType     `yaml:"type"`
	DifficultyLevel model.DifficultyLevel `yaml:"difficulty_level"`
	Description     string                `yaml:"description"`
	EstimatedHours  float64               `yaml:"estimated_hours"`
}

// Relationship 端点使用 slug
type Relationship struct {
	Source   string                 `yaml:"source"`
	Target   string                 `yaml:"target"`
	Type     model.RelationshipType `yaml:"type"`
	Strength float64                `yaml:"strength"`
}

type Graph struct {
	Concepts      []Concept      `yaml:"concepts"`
	Relationships []Relationship `yaml:"relationships"`
}

type Result struct {
	ConceptsCreated      int
	ConceptsSkipped      int
	RelationshipsCreated int
	RelationshipsSkipped int
}

func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse seed graph: %w", err)
	}
	return &g, nil
}

func Default() (*Graph, error) {
	return Parse(defaultGraph)
}

// Apply 已存在的 slug 与相同的 (source, target, type) 关系都会跳过，可重复执行
func Apply(ctx context.Context, graph *service.KnowledgeGraphService, g *Graph) (*Result, error) {
	result := &Result{}
	ids := make(map[string]string, len(g.Concepts))

	for _, c := range g.Concepts {
		existing, err := graph.GetConceptBySlug(ctx, c.Slug)
		if err != nil {
			return result, err
		}
		if existing != nil {
			ids[c.Slug] = existing.ID
			result.ConceptsSkipped++
			continue
		}

		req := service.CreateConceptRequest{
			Name:            c.Name,
			Slug:            c.Slug,
			Type:            c.Type,
			DifficultyLevel: c.DifficultyLevel,
			Description:     c.Description,
			Metadata:        map[string]interface{}{"source": "seed"},
		}
		if c.EstimatedHours > 0 {
			hours := c.EstimatedHours
			req.EstimatedHours = &hours
		}
		created, err := graph.CreateConcept(ctx, req)
		if err != nil {
			return result, err
		}
		ids[c.Slug] = created.ID
		result.ConceptsCreated++
	}

	for _, r := range g.Relationships {
		sourceID, targetID := ids[r.Source], ids[r.Target]
		if sourceID == "" || targetID == "" {
			logger.Log.Warn("Skipping seed relationship with unknown endpoint",
				zap.String("source", r.Source),
				zap.String("target", r.Target))
			result.RelationshipsSkipped++
			continue
		}

		exists, err := hasRelationship(ctx, graph, sourceID, targetID, r.Type)
		if err != nil {
			return result, err
		}
		if exists {
			result.RelationshipsSkipped++
			continue
		}

		strength := r.Strength
		_, err = graph.CreateRelationship(ctx, service.CreateRelationshipRequest{
			SourceConceptID:  sourceID,
			TargetConceptID:  targetID,
			RelationshipType: r.Type,
			Strength:         &strength,
		})
		if errors.Is(err, util.ErrCircularDependency) {
			logger.Log.Warn("Skipping seed prerequisite that would create a cycle",
				zap.String("source", r.Source),
				zap.String("target", r.Target))
			result.RelationshipsSkipped++
			continue
		}
		if err != nil {
			return result, err
		}
		result.RelationshipsCreated++
	}
	return result, nil
}

func hasRelationship(ctx context.Context, graph *service.KnowledgeGraphService, sourceID, targetID string, relType model.RelationshipType) (bool, error) {
	rels, err := graph.RelationshipRepo.FindOutgoing(ctx, sourceID, relType)
	if err != nil {
		return false, fmt.Errorf("load relationships: %w", err)
	}
	for _, rel := range rels {
		if rel.TargetConceptID == targetID {
			return true, nil
		}
	}
	return false, nil
}
