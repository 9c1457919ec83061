package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"knowledge_graph_backend/internal/aigen"
	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/internal/util"
	"knowledge_graph_backend/pkg/logger"
	"knowledge_graph_backend/pkg/monitoring"
	"knowledge_graph_backend/pkg/tracing"

	"go.uber.org/zap"
)

const (
	itemKindConcept      = "concept"
	itemKindRelationship = "relationship"
	itemKindMapping      = "mapping"
)

// ConceptSuggestionService AI 生成建议与人工审核
type ConceptSuggestionService struct {
	Generator aigen.Generator
	Batches   repository.BatchStore
	Graph     *KnowledgeGraphService
	now       func() time.Time
}

func NewConceptSuggestionService(generator aigen.Generator, batches repository.BatchStore, graph *KnowledgeGraphService) *ConceptSuggestionService {
	return &ConceptSuggestionService{
		Generator: generator,
		Batches:   batches,
		Graph:     graph,
		now:       time.Now,
	}
}

type SuggestFromCourseRequest struct {
	Context    string `json:"context"`
	AIProvider string `json:"ai_provider" binding:"omitempty,oneof=ollama openai"`
}

type SuggestRelatedRequest struct {
	ConceptName string `json:"concept_name" binding:"required,max=255"`
	Context     string `json:"context"`
	AIProvider  string `json:"ai_provider" binding:"omitempty,oneof=ollama openai"`
}

// ItemStatusUpdate 审核人在批量通过前调整单个条目
type ItemStatusUpdate struct {
	Kind   string                 `json:"kind" binding:"required,oneof=concept relationship mapping"`
	ItemID string                 `json:"item_id" binding:"required"`
	Status model.SuggestionStatus `json:"status" binding:"required,oneof=pending rejected"`
}

type SetItemStatusRequest struct {
	Items []ItemStatusUpdate `json:"items" binding:"required,min=1,dive"`
}

// =====================================================================
// 生成
// =====================================================================

func (s *ConceptSuggestionService) SuggestFromCourse(ctx context.Context, courseID string, req SuggestFromCourseRequest) (*model.SuggestionBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "suggestion.from_course", tracing.CourseIDKey.String(courseID))
	defer span.End()

	course, err := s.Graph.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		logger.Log.Error("Failed to get course", zap.String("course_id", courseID), zap.Error(err))
		return nil, fmt.Errorf("get course: %w", err)
	}
	if course == nil {
		return nil, util.ErrCourseNotFound
	}

	result, err := s.generate(ctx, aigen.Request{CourseID: courseID, Context: req.Context, Provider: req.AIProvider})
	if err != nil {
		return nil, err
	}

	sourceData := map[string]interface{}{
		"title":       course.Title,
		"description": course.Description,
	}
	for k, v := range result.Data.SourceData {
		sourceData[k] = v
	}
	return s.saveBatch(ctx, model.SuggestionSourceCourse, courseID, sourceData, result)
}

// SuggestRelatedConcepts 以知识点名称为源生成，不包含课程映射
func (s *ConceptSuggestionService) SuggestRelatedConcepts(ctx context.Context, req SuggestRelatedRequest) (*model.SuggestionBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "suggestion.related_concepts", tracing.ConceptNameKey.String(req.ConceptName))
	defer span.End()

	result, err := s.generate(ctx, aigen.Request{ConceptName: req.ConceptName, Context: req.Context, Provider: req.AIProvider})
	if err != nil {
		return nil, err
	}
	result.Data.CourseMappings = nil
	return s.saveBatch(ctx, model.SuggestionSourceConcept, req.ConceptName, nil, result)
}

func (s *ConceptSuggestionService) generate(ctx context.Context, req aigen.Request) (*aigen.Result, error) {
	result, err := s.Generator.Generate(ctx, req)
	if err != nil {
		logger.Log.Error("Failed to generate suggestions",
			zap.String("course_id", req.CourseID),
			zap.String("concept_name", req.ConceptName),
			zap.Error(err))
		if errors.Is(err, aigen.ErrInvalidPayload) || errors.Is(err, aigen.ErrGenerationRejected) {
			return nil, fmt.Errorf("%w: %v", util.ErrInvalidSuggestion, err)
		}
		return nil, fmt.Errorf("%w: %v", util.ErrGenerationFailed, err)
	}
	if result == nil || !result.Success {
		return nil, util.ErrInvalidSuggestion
	}
	return result, nil
}

// saveBatch 为每个条目分配批次内编号并置为 pending
func (s *ConceptSuggestionService) saveBatch(ctx context.Context, sourceType model.SuggestionSourceType, sourceID string, sourceData map[string]interface{}, result *aigen.Result) (*model.SuggestionBatch, error) {
	batch := &model.SuggestionBatch{
		ID:               model.GenerateUUID(),
		SourceType:       sourceType,
		SourceID:         sourceID,
		SourceData:       sourceData,
		Concepts:         make([]model.ConceptSuggestion, 0, len(result.Data.Concepts)),
		Relationships:    make([]model.RelationshipSuggestion, 0, len(result.Data.Relationships)),
		CreatedAt:        s.now().UTC(),
		AIProvider:       result.Metadata.Provider,
		Model:            result.Metadata.Model,
		GenerationTimeMS: result.Metadata.GenerationTimeMS,
	}
	for i, c := range result.Data.Concepts {
		batch.Concepts = append(batch.Concepts, model.ConceptSuggestion{
			ID:              fmt.Sprintf("concept-%d", i),
			Name:            strings.TrimSpace(c.Name),
			Type:            c.Type,
			DifficultyLevel: c.DifficultyLevel,
			Description:     c.Description,
			EstimatedHours:  c.EstimatedHours,
			Status:          model.SuggestionPending,
		})
	}
	for i, r := range result.Data.Relationships {
		batch.Relationships = append(batch.Relationships, model.RelationshipSuggestion{
			ID:               fmt.Sprintf("relationship-%d", i),
			SourceConcept:    strings.TrimSpace(r.SourceConcept),
			TargetConcept:    strings.TrimSpace(r.TargetConcept),
			RelationshipType: r.RelationshipType,
			Strength:         r.Strength,
			Description:      r.Description,
			Status:           model.SuggestionPending,
		})
	}
	if sourceType == model.SuggestionSourceCourse {
		batch.CourseMappings = make([]model.CourseMappingSuggestion, 0, len(result.Data.CourseMappings))
		for i, m := range result.Data.CourseMappings {
			batch.CourseMappings = append(batch.CourseMappings, model.CourseMappingSuggestion{
				ID:            fmt.Sprintf("mapping-%d", i),
				ConceptName:   strings.TrimSpace(m.ConceptName),
				CoverageLevel: m.CoverageLevel,
				IsPrimary:     m.IsPrimary,
				Weight:        m.Weight,
				Status:        model.SuggestionPending,
			})
		}
	}

	if err := s.Batches.Save(ctx, batch); err != nil {
		logger.Log.Error("Failed to save suggestion batch", zap.String("batch_id", batch.ID), zap.Error(err))
		return nil, fmt.Errorf("save batch: %w", err)
	}
	logger.Log.Info("Suggestion batch generated",
		zap.String("batch_id", batch.ID),
		zap.String("source_type", string(sourceType)),
		zap.String("source_id", sourceID),
		zap.Int("concepts", len(batch.Concepts)),
		zap.Int("relationships", len(batch.Relationships)),
		zap.Int("mappings", len(batch.CourseMappings)))
	return batch, nil
}

// =====================================================================
// 审核
// =====================================================================

func (s *ConceptSuggestionService) GetBatch(ctx context.Context, batchID string) (*model.SuggestionBatch, error) {
	batch, err := s.Batches.Get(ctx, batchID)
	if err != nil {
		logger.Log.Error("Failed to load suggestion batch", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, util.ErrBatchNotFound
	}
	return batch, nil
}

func (s *ConceptSuggestionService) SetItemStatus(ctx context.Context, batchID string, updates []ItemStatusUpdate) (*model.SuggestionBatch, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	for _, u := range updates {
		if !setStatus(batch, u) {
			return nil, fmt.Errorf("%w: %s %s", util.ErrSuggestionItem, u.Kind, u.ItemID)
		}
	}
	if err := s.Batches.Save(ctx, batch); err != nil {
		logger.Log.Error("Failed to save suggestion batch", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("save batch: %w", err)
	}
	return batch, nil
}

// setStatus 已通过的条目不可再修改
func setStatus(batch *model.SuggestionBatch, u ItemStatusUpdate) bool {
	switch u.Kind {
	case itemKindConcept:
		for i := range batch.Concepts {
			if batch.Concepts[i].ID == u.ItemID && batch.Concepts[i].Status != model.SuggestionApproved {
				batch.Concepts[i].Status = u.Status
				return true
			}
		}
	case itemKindRelationship:
		for i := range batch.Relationships {
			if batch.Relationships[i].ID == u.ItemID && batch.Relationships[i].Status != model.SuggestionApproved {
				batch.Relationships[i].Status = u.Status
				return true
			}
		}
	case itemKindMapping:
		for i := range batch.CourseMappings {
			if batch.CourseMappings[i].ID == u.ItemID && batch.CourseMappings[i].Status != model.SuggestionApproved {
				batch.CourseMappings[i].Status = u.Status
				return true
			}
		}
	}
	return false
}

func (s *ConceptSuggestionService) ApproveConcept(ctx context.Context, suggestion model.ConceptSuggestion) (*model.Concept, error) {
	return s.Graph.CreateConcept(ctx, CreateConceptRequest{
		Name:            suggestion.Name,
		Type:            suggestion.Type,
		DifficultyLevel: suggestion.DifficultyLevel,
		Description:     suggestion.Description,
		EstimatedHours:  suggestion.EstimatedHours,
		Metadata:        map[string]interface{}{"source": "ai_suggestion"},
	})
}

// ApproveRelationship 两端名称必须能在 names 中解析，否则返回 util.ErrUnresolvedReference
func (s *ConceptSuggestionService) ApproveRelationship(ctx context.Context, suggestion model.RelationshipSuggestion, names ConceptNameMap) (*model.ConceptRelationship, error) {
	if missing := names.Missing(suggestion.SourceConcept, suggestion.TargetConcept); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", util.ErrUnresolvedReference, strings.Join(missing, ", "))
	}
	strength := suggestion.Strength
	return s.Graph.CreateRelationship(ctx, CreateRelationshipRequest{
		SourceConceptID:  names.ID(suggestion.SourceConcept),
		TargetConceptID:  names.ID(suggestion.TargetConcept),
		RelationshipType: suggestion.RelationshipType,
		Strength:         &strength,
		Description:      suggestion.Description,
	})
}

func (s *ConceptSuggestionService) ApproveCourseMapping(ctx context.Context, courseID string, suggestion model.CourseMappingSuggestion, names ConceptNameMap, orderIndex int) (*model.CourseConcept, error) {
	if missing := names.Missing(suggestion.ConceptName); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", util.ErrUnresolvedReference, suggestion.ConceptName)
	}
	weight := suggestion.Weight
	return s.Graph.LinkConceptToCourse(ctx, courseID, LinkConceptRequest{
		ConceptID:     names.ID(suggestion.ConceptName),
		CoverageLevel: suggestion.CoverageLevel,
		OrderIndex:    orderIndex,
		IsPrimary:     suggestion.IsPrimary,
		Weight:        &weight,
	})
}

// BulkApproveConcepts 逐条创建，失败的条目置为 rejected，返回新建知识点的名称映射
func (s *ConceptSuggestionService) BulkApproveConcepts(ctx context.Context, batch *model.SuggestionBatch) (ConceptNameMap, []string) {
	created := ConceptNameMap{}
	var errs []string
	for i := range batch.Concepts {
		item := &batch.Concepts[i]
		if item.Status != model.SuggestionPending {
			continue
		}
		concept, err := s.ApproveConcept(ctx, *item)
		if err != nil {
			logger.Log.Warn("Failed to approve concept suggestion",
				zap.String("batch_id", batch.ID),
				zap.String("item_id", item.ID),
				zap.String("name", item.Name),
				zap.Error(err))
			item.Status = model.SuggestionRejected
			errs = append(errs, fmt.Sprintf("concept %q: %v", item.Name, err))
			monitoring.SuggestionItems.WithLabelValues(itemKindConcept, string(model.SuggestionRejected)).Inc()
			continue
		}
		item.Status = model.SuggestionApproved
		item.CreatedConceptID = concept.ID
		created.Add(concept.Name, concept.ID)
		monitoring.SuggestionItems.WithLabelValues(itemKindConcept, string(model.SuggestionApproved)).Inc()
	}
	return created, errs
}

// BulkApproveRelationships 名称无法解析的条目保持 pending 并列入 unresolved
func (s *ConceptSuggestionService) BulkApproveRelationships(ctx context.Context, batch *model.SuggestionBatch, names ConceptNameMap) ([]model.UnresolvedReference, []string) {
	var unresolved []model.UnresolvedReference
	var errs []string
	for i := range batch.Relationships {
		item := &batch.Relationships[i]
		if item.Status != model.SuggestionPending {
			continue
		}
		if missing := names.Missing(item.SourceConcept, item.TargetConcept); len(missing) > 0 {
			logger.Log.Warn("Skipped relationship suggestion with unknown concepts",
				zap.String("batch_id", batch.ID),
				zap.String("item_id", item.ID),
				zap.Strings("missing", missing))
			unresolved = append(unresolved, model.UnresolvedReference{ItemID: item.ID, Kind: itemKindRelationship, Missing: missing})
			continue
		}
		rel, err := s.ApproveRelationship(ctx, *item, names)
		if err != nil {
			logger.Log.Warn("Failed to approve relationship suggestion",
				zap.String("batch_id", batch.ID),
				zap.String("item_id", item.ID),
				zap.String("source", item.SourceConcept),
				zap.String("target", item.TargetConcept),
				zap.Error(err))
			item.Status = model.SuggestionRejected
			errs = append(errs, fmt.Sprintf("relationship %q -> %q: %v", item.SourceConcept, item.TargetConcept, err))
			monitoring.SuggestionItems.WithLabelValues(itemKindRelationship, string(model.SuggestionRejected)).Inc()
			continue
		}
		item.Status = model.SuggestionApproved
		item.CreatedRelationshipID = rel.ID
		monitoring.SuggestionItems.WithLabelValues(itemKindRelationship, string(model.SuggestionApproved)).Inc()
	}
	return unresolved, errs
}

func (s *ConceptSuggestionService) BulkApproveCourseMappings(ctx context.Context, batch *model.SuggestionBatch, courseID string, names ConceptNameMap) ([]model.UnresolvedReference, []string) {
	var unresolved []model.UnresolvedReference
	var errs []string
	for i := range batch.CourseMappings {
		item := &batch.CourseMappings[i]
		if item.Status != model.SuggestionPending {
			continue
		}
		if missing := names.Missing(item.ConceptName); len(missing) > 0 {
			logger.Log.Warn("Skipped course mapping suggestion with unknown concept",
				zap.String("batch_id", batch.ID),
				zap.String("item_id", item.ID),
				zap.String("concept_name", item.ConceptName))
			unresolved = append(unresolved, model.UnresolvedReference{ItemID: item.ID, Kind: itemKindMapping, Missing: missing})
			continue
		}
		if _, err := s.ApproveCourseMapping(ctx, courseID, *item, names, i); err != nil {
			logger.Log.Warn("Failed to approve course mapping suggestion",
				zap.String("batch_id", batch.ID),
				zap.String("item_id", item.ID),
				zap.String("concept_name", item.ConceptName),
				zap.Error(err))
			item.Status = model.SuggestionRejected
			errs = append(errs, fmt.Sprintf("mapping %q: %v", item.ConceptName, err))
			monitoring.SuggestionItems.WithLabelValues(itemKindMapping, string(model.SuggestionRejected)).Inc()
			continue
		}
		item.Status = model.SuggestionApproved
		monitoring.SuggestionItems.WithLabelValues(itemKindMapping, string(model.SuggestionApproved)).Inc()
	}
	return unresolved, errs
}

// ResolveConceptNames 现有的活跃知识点并入本次新建的知识点，新建的优先
func (s *ConceptSuggestionService) ResolveConceptNames(ctx context.Context, created ConceptNameMap) (ConceptNameMap, error) {
	active := true
	existing, err := s.Graph.GetConcepts(ctx, model.ConceptFilters{IsActive: &active})
	if err != nil {
		return nil, err
	}
	names := make(ConceptNameMap, len(existing)+len(created))
	for _, c := range existing {
		names.Add(c.Name, c.ID)
	}
	for key, id := range created {
		names[key] = id
	}
	return names, nil
}

// ApproveBatch 依次处理知识点、关系、课程映射，不是事务，单个条目失败不影响其他条目
func (s *ConceptSuggestionService) ApproveBatch(ctx context.Context, batchID string) (*model.BatchApprovalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "suggestion.approve_batch", tracing.BatchIDKey.String(batchID))
	defer span.End()

	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	result := &model.BatchApprovalResult{
		Unresolved: []model.UnresolvedReference{},
		Errors:     []string{},
	}

	before := countApproved(batch)
	created, errs := s.BulkApproveConcepts(ctx, batch)
	result.ConceptsCreated = countApproved(batch).concepts - before.concepts
	result.Errors = append(result.Errors, errs...)

	names, err := s.ResolveConceptNames(ctx, created)
	if err != nil {
		logger.Log.Error("Failed to resolve concept names", zap.String("batch_id", batchID), zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("batch approval failed: %v", err))
		return result, s.persistReviewed(ctx, batch)
	}

	unresolved, errs := s.BulkApproveRelationships(ctx, batch, names)
	result.Unresolved = append(result.Unresolved, unresolved...)
	result.Errors = append(result.Errors, errs...)

	if batch.SourceType == model.SuggestionSourceCourse {
		unresolved, errs = s.BulkApproveCourseMappings(ctx, batch, batch.SourceID, names)
		result.Unresolved = append(result.Unresolved, unresolved...)
		result.Errors = append(result.Errors, errs...)
	}
	after := countApproved(batch)
	result.RelationshipsCreated = after.relationships - before.relationships
	result.MappingsCreated = after.mappings - before.mappings

	logger.Log.Info("Suggestion batch approved",
		zap.String("batch_id", batchID),
		zap.Int("concepts_created", result.ConceptsCreated),
		zap.Int("relationships_created", result.RelationshipsCreated),
		zap.Int("mappings_created", result.MappingsCreated),
		zap.Int("unresolved", len(result.Unresolved)),
		zap.Int("errors", len(result.Errors)))
	return result, s.persistReviewed(ctx, batch)
}

func (s *ConceptSuggestionService) persistReviewed(ctx context.Context, batch *model.SuggestionBatch) error {
	if err := s.Batches.Save(ctx, batch); err != nil {
		logger.Log.Error("Failed to save reviewed batch", zap.String("batch_id", batch.ID), zap.Error(err))
		return fmt.Errorf("save batch: %w", err)
	}
	return nil
}

// approvedCounts 按条目计数，同名知识点各算一次
type approvedCounts struct {
	concepts      int
	relationships int
	mappings      int
}

func countApproved(batch *model.SuggestionBatch) approvedCounts {
	var c approvedCounts
	for _, item := range batch.Concepts {
		if item.Status == model.SuggestionApproved {
			c.concepts++
		}
	}
	for _, r := range batch.Relationships {
		if r.Status == model.SuggestionApproved {
			c.relationships++
		}
	}
	for _, m := range batch.CourseMappings {
		if m.Status == model.SuggestionApproved {
			c.mappings++
		}
	}
	return c
}

// RejectBatch 全部条目置为 rejected，已写入图谱的数据保持不变
func (s *ConceptSuggestionService) RejectBatch(ctx context.Context, batchID string) (*model.SuggestionBatch, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	for i := range batch.Concepts {
		batch.Concepts[i].Status = model.SuggestionRejected
	}
	for i := range batch.Relationships {
		batch.Relationships[i].Status = model.SuggestionRejected
	}
	for i := range batch.CourseMappings {
		batch.CourseMappings[i].Status = model.SuggestionRejected
	}
	if err := s.persistReviewed(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// ConceptNameMap 知识点名称到 id，名称忽略大小写与首尾空白
type ConceptNameMap map[string]string

func conceptNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (m ConceptNameMap) Add(name, id string) {
	m[conceptNameKey(name)] = id
}

func (m ConceptNameMap) ID(name string) string {
	return m[conceptNameKey(name)]
}

func (m ConceptNameMap) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := m[conceptNameKey(n)]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}
