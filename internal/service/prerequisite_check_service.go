package service

import (
	"context"
	"fmt"
	"math"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/pkg/logger"
	"knowledge_graph_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultPrerequisiteThreshold = 0.6
	maxTreeDepth                 = 10
)

// PrerequisiteCheckService 判断用户是否具备课程的先修知识
type PrerequisiteCheckService struct {
	ConceptRepo       *repository.ConceptRepository
	RelationshipRepo  *repository.RelationshipRepository
	CourseConceptRepo *repository.CourseConceptRepository
	MasteryRepo       *repository.MasteryRepository
	DefaultThreshold  float64
}

func NewPrerequisiteCheckService(
	conceptRepo *repository.ConceptRepository,
	relationshipRepo *repository.RelationshipRepository,
	courseConceptRepo *repository.CourseConceptRepository,
	masteryRepo *repository.MasteryRepository,
	defaultThreshold float64,
) *PrerequisiteCheckService {
	if !validThreshold(defaultThreshold) || defaultThreshold == 0 {
		defaultThreshold = DefaultPrerequisiteThreshold
	}
	return &PrerequisiteCheckService{
		ConceptRepo:       conceptRepo,
		RelationshipRepo:  relationshipRepo,
		CourseConceptRepo: courseConceptRepo,
		MasteryRepo:       masteryRepo,
		DefaultThreshold:  defaultThreshold,
	}
}

// validThreshold 阈值必须是 [0,1] 内的有限数
func validThreshold(threshold float64) bool {
	return !math.IsNaN(threshold) && !math.IsInf(threshold, 0) && threshold >= 0 && threshold <= 1
}

type BulkPrerequisiteCheckRequest struct {
	CourseIDs []string `json:"course_ids" binding:"required,min=1,max=50"`
	Threshold *float64 `json:"threshold" binding:"omitempty,min=0,max=1"`
}

// CheckCoursePrerequisites 每个前置要求的掌握度为 max(threshold, 关系强度)
func (s *PrerequisiteCheckService) CheckCoursePrerequisites(ctx context.Context, userID, courseID string, threshold float64) (*model.PrerequisiteCheckResult, error) {
	ctx, span := tracing.StartSpan(ctx, "prerequisite.check_course",
		tracing.UserIDKey.String(userID),
		tracing.CourseIDKey.String(courseID))
	defer span.End()

	if !validThreshold(threshold) {
		logger.Log.Warn("Invalid prerequisite threshold, using default",
			zap.Float64("threshold", threshold),
			zap.Float64("default", s.DefaultThreshold))
		threshold = s.DefaultThreshold
	}

	result := &model.PrerequisiteCheckResult{
		CourseID:               courseID,
		CanEnroll:              true,
		Threshold:              threshold,
		MissingPrerequisites:   []model.PrerequisiteRequirement{},
		SatisfiedPrerequisites: []model.PrerequisiteRequirement{},
	}

	mappings, err := s.CourseConceptRepo.FindByCourse(ctx, courseID)
	if err != nil {
		logger.Log.Error("Failed to load course concepts", zap.String("course_id", courseID), zap.Error(err))
		return nil, fmt.Errorf("load course concepts: %w", err)
	}

	var order []string
	requirements := make(map[string]*model.PrerequisiteRequirement)
	for _, mapping := range mappings {
		taughtName := mapping.ConceptID
		if mapping.Concept != nil {
			taughtName = mapping.Concept.Name
		}

		rels, err := s.RelationshipRepo.FindIncoming(ctx, mapping.ConceptID, model.RelationshipPrerequisite)
		if err != nil {
			logger.Log.Error("Failed to load prerequisites",
				zap.String("course_id", courseID),
				zap.String("concept_id", mapping.ConceptID),
				zap.Error(err))
			return nil, fmt.Errorf("load prerequisites: %w", err)
		}

		for _, rel := range rels {
			if rel.SourceConcept == nil || !rel.SourceConcept.IsActive {
				continue
			}
			required := threshold
			if rel.Strength > required {
				required = rel.Strength
			}

			req, ok := requirements[rel.SourceConceptID]
			if !ok {
				req = &model.PrerequisiteRequirement{
					ConceptID:   rel.SourceConceptID,
					ConceptName: rel.SourceConcept.Name,
				}
				requirements[rel.SourceConceptID] = req
				order = append(order, rel.SourceConceptID)
			}
			if required > req.RequiredMastery {
				req.RequiredMastery = required
			}
			req.RequiredFor = append(req.RequiredFor, taughtName)
		}
	}

	if len(order) == 0 {
		return result, nil
	}

	masteries, err := s.MasteryRepo.FindByUserAndConcepts(ctx, userID, order)
	if err != nil {
		logger.Log.Error("Failed to load user masteries", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("load masteries: %w", err)
	}
	levels := make(map[string]model.MasteryLevel, len(masteries))
	for _, m := range masteries {
		levels[m.ConceptID] = m.MasteryLevel
	}

	var missingIDs []string
	for _, id := range order {
		req := requirements[id]
		req.CurrentLevel = model.MasteryNone
		if level, ok := levels[id]; ok {
			req.CurrentLevel = level
		}
		req.CurrentMastery = req.CurrentLevel.Score()
		if req.CurrentMastery >= req.RequiredMastery {
			result.SatisfiedPrerequisites = append(result.SatisfiedPrerequisites, *req)
		} else {
			missingIDs = append(missingIDs, id)
		}
	}

	if len(missingIDs) > 0 {
		suggestions, err := s.suggestCourses(ctx, courseID, missingIDs)
		if err != nil {
			return nil, err
		}
		for _, id := range missingIDs {
			req := requirements[id]
			req.SuggestedCourses = suggestions[id]
			result.MissingPrerequisites = append(result.MissingPrerequisites, *req)
		}
	}

	result.CanEnroll = len(result.MissingPrerequisites) == 0
	span.SetAttributes(attribute.Bool("kg.can_enroll", result.CanEnroll))
	return result, nil
}

// suggestCourses 查找以 covers 或 masters 深度讲授缺失知识点的其他课程
func (s *PrerequisiteCheckService) suggestCourses(ctx context.Context, courseID string, conceptIDs []string) (map[string][]model.CourseSuggestion, error) {
	mappings, err := s.CourseConceptRepo.FindByConceptsAndCoverage(ctx, conceptIDs,
		[]model.CoverageLevel{model.CoverageCovers, model.CoverageMasters})
	if err != nil {
		logger.Log.Error("Failed to find courses teaching prerequisites", zap.Error(err))
		return nil, fmt.Errorf("find suggested courses: %w", err)
	}

	suggestions := make(map[string][]model.CourseSuggestion)
	for _, m := range mappings {
		if m.CourseID == courseID {
			continue
		}
		suggestion := model.CourseSuggestion{CourseID: m.CourseID, CoverageLevel: m.CoverageLevel}
		if m.Course != nil {
			suggestion.Title = m.Course.Title
		}
		suggestions[m.ConceptID] = append(suggestions[m.ConceptID], suggestion)
	}
	return suggestions, nil
}

// BulkCheckCoursePrerequisites 依次检查多门课程
func (s *PrerequisiteCheckService) BulkCheckCoursePrerequisites(ctx context.Context, userID string, courseIDs []string, threshold float64) ([]model.PrerequisiteCheckResult, error) {
	results := make([]model.PrerequisiteCheckResult, 0, len(courseIDs))
	for _, courseID := range courseIDs {
		result, err := s.CheckCoursePrerequisites(ctx, userID, courseID, threshold)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// GetPrerequisiteTree 以课程知识点为根深度优先展开前置，仅用于展示
func (s *PrerequisiteCheckService) GetPrerequisiteTree(ctx context.Context, courseID string) (*model.CoursePrerequisiteTree, error) {
	mappings, err := s.CourseConceptRepo.FindByCourse(ctx, courseID)
	if err != nil {
		logger.Log.Error("Failed to load course concepts", zap.String("course_id", courseID), zap.Error(err))
		return nil, fmt.Errorf("load course concepts: %w", err)
	}

	tree := &model.CoursePrerequisiteTree{CourseID: courseID, Concepts: []model.PrerequisiteTreeNode{}}
	if len(mappings) == 0 {
		return tree, nil
	}

	rels, err := s.RelationshipRepo.FindAllActive(ctx, model.RelationshipPrerequisite)
	if err != nil {
		logger.Log.Error("Failed to load prerequisite edges", zap.Error(err))
		return nil, fmt.Errorf("load prerequisite edges: %w", err)
	}
	incoming := make(map[string][]model.ConceptRelationship)
	ids := make([]string, 0, len(rels))
	for _, rel := range rels {
		incoming[rel.TargetConceptID] = append(incoming[rel.TargetConceptID], rel)
		ids = append(ids, rel.SourceConceptID)
	}
	concepts, err := s.ConceptRepo.FindByIDs(ctx, ids)
	if err != nil {
		logger.Log.Error("Failed to load prerequisite concepts", zap.Error(err))
		return nil, fmt.Errorf("load prerequisite concepts: %w", err)
	}
	byID := make(map[string]model.Concept, len(concepts))
	for _, c := range concepts {
		byID[c.ID] = c
	}

	var expand func(conceptID string, depth int, path map[string]bool) ([]model.PrerequisiteTreeNode, bool)
	expand = func(conceptID string, depth int, path map[string]bool) ([]model.PrerequisiteTreeNode, bool) {
		edges := incoming[conceptID]
		if depth > maxTreeDepth {
			return nil, len(edges) > 0
		}
		children := []model.PrerequisiteTreeNode{}
		for _, rel := range edges {
			c, ok := byID[rel.SourceConceptID]
			if !ok || path[c.ID] {
				continue
			}
			node := model.PrerequisiteTreeNode{
				ConceptID:       c.ID,
				ConceptName:     c.Name,
				DifficultyLevel: c.DifficultyLevel,
				Strength:        rel.Strength,
				Depth:           depth,
			}
			path[c.ID] = true
			node.Children, node.Truncated = expand(c.ID, depth+1, path)
			delete(path, c.ID)
			children = append(children, node)
		}
		return children, false
	}

	for _, mapping := range mappings {
		if mapping.Concept == nil || !mapping.Concept.IsActive {
			continue
		}
		root := model.PrerequisiteTreeNode{
			ConceptID:       mapping.ConceptID,
			ConceptName:     mapping.Concept.Name,
			DifficultyLevel: mapping.Concept.DifficultyLevel,
		}
		path := map[string]bool{mapping.ConceptID: true}
		root.Children, root.Truncated = expand(mapping.ConceptID, 1, path)
		tree.Concepts = append(tree.Concepts, root)
	}
	return tree, nil
}
