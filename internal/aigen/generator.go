package aigen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"knowledge_graph_backend/internal/config"
	"knowledge_graph_backend/internal/model"
)

//go:generate mockgen -source=generator.go -destination=../mocks/aigen/mock_generator.go -package=mock_aigen

// Generator 根据课程或知识点生成知识图谱建议
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Request CourseID 与 ConceptName 二选一
type Request struct {
	CourseID    string `json:"course_id,omitempty"`
	ConceptName string `json:"concept_name,omitempty"`
	Context     string `json:"context,omitempty"`
	Provider    string `json:"aiProvider,omitempty"`
}

func (r Request) Validate() error {
	hasCourse := strings.TrimSpace(r.CourseID) != ""
	hasConcept := strings.TrimSpace(r.ConceptName) != ""
	if hasCourse == hasConcept {
		return errors.New("exactly one of course_id and concept_name is required")
	}
	return nil
}

type Concept struct {
	Name            string                `json:"name"`
	Type            model.ConceptType     `json:"type"`
	DifficultyLevel model.DifficultyLevel `json:"difficulty_level"`
	Description     string                `json:"description"`
	EstimatedHours  *float64              `json:"estimated_hours,omitempty"`
}

type Relationship struct {
	SourceConcept    string                 `json:"source_concept"`
	TargetConcept    string                 `json:"target_concept"`
	RelationshipType model.RelationshipType `json:"relationship_type"`
	Strength         float64                `json:"strength"`
	Description      string                 `json:"description,omitempty"`
}

type CourseMapping struct {
	ConceptName   string              `json:"concept_name"`
	CoverageLevel model.CoverageLevel `json:"coverage_level"`
	IsPrimary     bool                `json:"is_primary"`
	Weight        float64             `json:"weight"`
}

type Data struct {
	Concepts       []Concept              `json:"concepts"`
	Relationships  []Relationship         `json:"relationships"`
	CourseMappings []CourseMapping        `json:"course_mappings,omitempty"`
	SourceData     map[string]interface{} `json:"source_data,omitempty"`
}

type Metadata struct {
	Model              string `json:"model"`
	Provider           string `json:"provider"`
	GenerationTimeMS   int64  `json:"generation_time_ms"`
	ConceptsCount      int    `json:"concepts_count"`
	RelationshipsCount int    `json:"relationships_count"`
}

// Result 生成函数的响应体
type Result struct {
	Success  bool     `json:"success"`
	Data     Data     `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// NewGenerator 按配置选择生成方式
func NewGenerator(cfg config.AIConfig) (Generator, error) {
	switch cfg.Generator {
	case "", "function":
		if cfg.FunctionURL == "" {
			return nil, errors.New("ai.function_url is required for the function generator")
		}
		return NewFunctionGenerator(cfg), nil
	case "openai":
		return NewOpenAIGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported ai generator: %s", cfg.Generator)
	}
}
