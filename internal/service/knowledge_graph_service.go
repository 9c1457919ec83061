package service

import (
	"context"
	"errors"
	"fmt"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/internal/util"
	"knowledge_graph_backend/pkg/logger"
	"knowledge_graph_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	weakStrengthThreshold = 0.3
	deepChainThreshold    = 5
	defaultStrength       = 0.5
)

// KnowledgeGraphService 知识点、关系与课程映射的管理
type KnowledgeGraphService struct {
	ConceptRepo       *repository.ConceptRepository
	RelationshipRepo  *repository.RelationshipRepository
	CourseConceptRepo *repository.CourseConceptRepository
	CourseRepo        *repository.CourseRepository
	MasteryRepo       *repository.MasteryRepository
}

func NewKnowledgeGraphService(
	conceptRepo *repository.ConceptRepository,
	relationshipRepo *repository.RelationshipRepository,
	courseConceptRepo *repository.CourseConceptRepository,
	courseRepo *repository.CourseRepository,
	masteryRepo *repository.MasteryRepository,
) *KnowledgeGraphService {
	return &KnowledgeGraphService{
		ConceptRepo:       conceptRepo,
		RelationshipRepo:  relationshipRepo,
		CourseConceptRepo: courseConceptRepo,
		CourseRepo:        courseRepo,
		MasteryRepo:       masteryRepo,
	}
}

// CreateConceptRequest 创建知识点的请求结构，is_active 缺省为 true
type CreateConceptRequest struct {
	Name            string                 `json:"name" binding:"required,max=255"`
	Slug            string                 `json:"slug" binding:"max=255"`
	Type            model.ConceptType      `json:"type" binding:"required,oneof=topic skill tool framework language principle pattern"`
	DifficultyLevel model.DifficultyLevel  `json:"difficulty_level" binding:"required,oneof=beginner intermediate advanced"`
	Description     string                 `json:"description"`
	EstimatedHours  *float64               `json:"estimated_hours" binding:"omitempty,min=0"`
	IsActive        *bool                  `json:"is_active"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// UpdateConceptRequest 仅更新非空字段
type UpdateConceptRequest struct {
	Name            *string                `json:"name" binding:"omitempty,max=255"`
	Slug            *string                `json:"slug" binding:"omitempty,max=255"`
	Type            *model.ConceptType     `json:"type" binding:"omitempty,oneof=topic skill tool framework language principle pattern"`
	DifficultyLevel *model.DifficultyLevel `json:"difficulty_level" binding:"omitempty,oneof=beginner intermediate advanced"`
	Description     *string                `json:"description"`
	EstimatedHours  *float64               `json:"estimated_hours" binding:"omitempty,min=0"`
	IsActive        *bool                  `json:"is_active"`
	Metadata        map[string]interface{} `json:"metadata"`
}

type CreateRelationshipRequest struct {
	SourceConceptID  string                 `json:"source_concept_id" binding:"required"`
	TargetConceptID  string                 `json:"target_concept_id" binding:"required"`
	RelationshipType model.RelationshipType `json:"relationship_type" binding:"required,oneof=prerequisite builds_on related_to part_of alternative_to applies_to"`
	Strength         *float64               `json:"strength" binding:"omitempty,min=0,max=1"`
	Description      string                 `json:"description"`
}

type UpdateRelationshipRequest struct {
	Strength    *float64 `json:"strength" binding:"omitempty,min=0,max=1"`
	Description *string  `json:"description"`
}

type LinkConceptRequest struct {
	ConceptID     string              `json:"concept_id" binding:"required"`
	CoverageLevel model.CoverageLevel `json:"coverage_level" binding:"required,oneof=introduces covers masters"`
	OrderIndex    int                 `json:"order_index"`
	IsPrimary     bool                `json:"is_primary"`
	Weight        *float64            `json:"weight" binding:"omitempty,min=0,max=1"`
}

// =====================================================================
// 知识点
// =====================================================================

func (s *KnowledgeGraphService) GetConcept(ctx context.Context, id string) (*model.Concept, error) {
	concept, err := s.ConceptRepo.FindByID(ctx, id)
	if err != nil {
		logger.Log.Error("Failed to get concept", zap.String("concept_id", id), zap.Error(err))
		return nil, fmt.Errorf("get concept: %w", err)
	}
	return concept, nil
}

func (s *KnowledgeGraphService) GetConceptBySlug(ctx context.Context, slug string) (*model.Concept, error) {
	concept, err := s.ConceptRepo.FindBySlug(ctx, slug)
	if err != nil {
		logger.Log.Error("Failed to get concept by slug", zap.String("slug", slug), zap.Error(err))
		return nil, fmt.Errorf("get concept by slug: %w", err)
	}
	return concept, nil
}

func (s *KnowledgeGraphService) GetConcepts(ctx context.Context, filters model.ConceptFilters) ([]model.Concept, error) {
	concepts, err := s.ConceptRepo.FindAll(ctx, filters)
	if err != nil {
		logger.Log.Error("Failed to list concepts", zap.Error(err))
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	return concepts, nil
}

// CreateConcept 未提供 slug 时由名称生成
func (s *KnowledgeGraphService) CreateConcept(ctx context.Context, req CreateConceptRequest) (*model.Concept, error) {
	slug := req.Slug
	if slug == "" {
		slug = model.Slugify(req.Name)
	}
	if slug == "" {
		slug = model.GenerateUUID()
	}

	concept := &model.Concept{
		Name:            req.Name,
		Slug:            slug,
		Type:            req.Type,
		DifficultyLevel: req.DifficultyLevel,
		Description:     req.Description,
		EstimatedHours:  req.EstimatedHours,
		IsActive:        true,
	}
	if req.IsActive != nil {
		concept.IsActive = *req.IsActive
	}
	if req.Metadata != nil {
		concept.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.ConceptRepo.Create(ctx, concept); err != nil {
		logger.Log.Error("Failed to create concept",
			zap.String("name", req.Name),
			zap.String("slug", slug),
			zap.Error(err))
		return nil, fmt.Errorf("create concept: %w", err)
	}
	return concept, nil
}

// UpdateConcept 知识点不存在时返回 nil
func (s *KnowledgeGraphService) UpdateConcept(ctx context.Context, id string, req UpdateConceptRequest) (*model.Concept, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Slug != nil {
		updates["slug"] = *req.Slug
	}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.DifficultyLevel != nil {
		updates["difficulty_level"] = *req.DifficultyLevel
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.EstimatedHours != nil {
		updates["estimated_hours"] = *req.EstimatedHours
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Metadata != nil {
		updates["metadata"] = datatypes.JSONMap(req.Metadata)
	}
	if len(updates) == 0 {
		return s.GetConcept(ctx, id)
	}

	concept, err := s.ConceptRepo.Update(ctx, id, updates)
	if err != nil {
		logger.Log.Error("Failed to update concept", zap.String("concept_id", id), zap.Error(err))
		return nil, fmt.Errorf("update concept: %w", err)
	}
	return concept, nil
}

// DeleteConcept 软删除，保留行以便追溯历史
func (s *KnowledgeGraphService) DeleteConcept(ctx context.Context, id string) (bool, error) {
	ok, err := s.ConceptRepo.Deactivate(ctx, id)
	if err != nil {
		logger.Log.Error("Failed to delete concept", zap.String("concept_id", id), zap.Error(err))
		return false, fmt.Errorf("delete concept: %w", err)
	}
	return ok, nil
}

// =====================================================================
// 关系
// =====================================================================

func (s *KnowledgeGraphService) GetRelationships(ctx context.Context, conceptID string, relType model.RelationshipType) ([]model.ConceptRelationship, error) {
	rels, err := s.RelationshipRepo.FindByConcept(ctx, conceptID, relType)
	if err != nil {
		logger.Log.Error("Failed to get relationships",
			zap.String("concept_id", conceptID),
			zap.String("type", string(relType)),
			zap.Error(err))
		return nil, fmt.Errorf("get relationships: %w", err)
	}
	return rels, nil
}

// GetPrerequisites 直接前置知识点
func (s *KnowledgeGraphService) GetPrerequisites(ctx context.Context, conceptID string) ([]model.Concept, error) {
	rels, err := s.RelationshipRepo.FindIncoming(ctx, conceptID, model.RelationshipPrerequisite)
	if err != nil {
		logger.Log.Error("Failed to get prerequisites", zap.String("concept_id", conceptID), zap.Error(err))
		return nil, fmt.Errorf("get prerequisites: %w", err)
	}
	concepts := make([]model.Concept, 0, len(rels))
	for _, rel := range rels {
		if rel.SourceConcept != nil && rel.SourceConcept.IsActive {
			concepts = append(concepts, *rel.SourceConcept)
		}
	}
	return concepts, nil
}

// GetDependents 以该知识点为直接前置的知识点
func (s *KnowledgeGraphService) GetDependents(ctx context.Context, conceptID string) ([]model.Concept, error) {
	rels, err := s.RelationshipRepo.FindOutgoing(ctx, conceptID, model.RelationshipPrerequisite)
	if err != nil {
		logger.Log.Error("Failed to get dependents", zap.String("concept_id", conceptID), zap.Error(err))
		return nil, fmt.Errorf("get dependents: %w", err)
	}
	concepts := make([]model.Concept, 0, len(rels))
	for _, rel := range rels {
		if rel.TargetConcept != nil && rel.TargetConcept.IsActive {
			concepts = append(concepts, *rel.TargetConcept)
		}
	}
	return concepts, nil
}

// CreateRelationship 先修关系在同一事务内检测环并插入，成环时返回 util.ErrCircularDependency
func (s *KnowledgeGraphService) CreateRelationship(ctx context.Context, req CreateRelationshipRequest) (*model.ConceptRelationship, error) {
	strength := defaultStrength
	if req.Strength != nil {
		strength = *req.Strength
	}
	if strength < 0 || strength > 1 {
		return nil, fmt.Errorf("%w: strength %v out of range [0,1]", util.ErrRelationshipInvalid, strength)
	}

	if req.SourceConceptID == req.TargetConceptID {
		if req.RelationshipType == model.RelationshipPrerequisite {
			monitoring.CycleRejections.Inc()
			return nil, util.ErrCircularDependency
		}
		return nil, fmt.Errorf("%w: source and target are the same concept", util.ErrRelationshipInvalid)
	}

	for _, id := range []string{req.SourceConceptID, req.TargetConceptID} {
		concept, err := s.GetConcept(ctx, id)
		if err != nil {
			return nil, err
		}
		if concept == nil {
			return nil, fmt.Errorf("%w: %s", util.ErrConceptNotFound, id)
		}
	}

	rel := &model.ConceptRelationship{
		SourceConceptID:  req.SourceConceptID,
		TargetConceptID:  req.TargetConceptID,
		RelationshipType: req.RelationshipType,
		Strength:         strength,
		Description:      req.Description,
		IsActive:         true,
	}

	var err error
	if req.RelationshipType == model.RelationshipPrerequisite {
		err = s.RelationshipRepo.CreateIfAcyclic(ctx, rel)
	} else {
		err = s.RelationshipRepo.Create(ctx, rel)
	}
	if errors.Is(err, util.ErrCircularDependency) {
		monitoring.CycleRejections.Inc()
		logger.Log.Warn("Refused prerequisite that would create a cycle",
			zap.String("source_concept_id", req.SourceConceptID),
			zap.String("target_concept_id", req.TargetConceptID))
		return nil, err
	}
	if err != nil {
		logger.Log.Error("Failed to create relationship",
			zap.String("source_concept_id", req.SourceConceptID),
			zap.String("target_concept_id", req.TargetConceptID),
			zap.String("type", string(req.RelationshipType)),
			zap.Error(err))
		return nil, fmt.Errorf("create relationship: %w", err)
	}

	created, err := s.RelationshipRepo.FindByID(ctx, rel.ID)
	if err != nil || created == nil {
		return rel, nil
	}
	return created, nil
}

// CheckCircularDependency 新增 source->target 先修边是否会成环
func (s *KnowledgeGraphService) CheckCircularDependency(ctx context.Context, sourceID, targetID string) (bool, error) {
	cyclic, err := s.RelationshipRepo.WouldCreateCycle(ctx, sourceID, targetID)
	if err != nil {
		logger.Log.Error("Failed to check circular dependency",
			zap.String("source_concept_id", sourceID),
			zap.String("target_concept_id", targetID),
			zap.Error(err))
		return false, fmt.Errorf("check circular dependency: %w", err)
	}
	return cyclic, nil
}

// UpdateRelationship 只允许修改强度与描述，类型和端点变更需删除后重建
func (s *KnowledgeGraphService) UpdateRelationship(ctx context.Context, id string, req UpdateRelationshipRequest) (*model.ConceptRelationship, error) {
	updates := make(map[string]interface{})
	if req.Strength != nil {
		if *req.Strength < 0 || *req.Strength > 1 {
			return nil, fmt.Errorf("%w: strength %v out of range [0,1]", util.ErrRelationshipInvalid, *req.Strength)
		}
		updates["strength"] = *req.Strength
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return s.RelationshipRepo.FindByID(ctx, id)
	}

	rel, err := s.RelationshipRepo.Update(ctx, id, updates)
	if err != nil {
		logger.Log.Error("Failed to update relationship", zap.String("relationship_id", id), zap.Error(err))
		return nil, fmt.Errorf("update relationship: %w", err)
	}
	return rel, nil
}

func (s *KnowledgeGraphService) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	ok, err := s.RelationshipRepo.Deactivate(ctx, id)
	if err != nil {
		logger.Log.Error("Failed to delete relationship", zap.String("relationship_id", id), zap.Error(err))
		return false, fmt.Errorf("delete relationship: %w", err)
	}
	return ok, nil
}

// GetPrerequisiteChain 全部传递前置，按最短深度排序
func (s *KnowledgeGraphService) GetPrerequisiteChain(ctx context.Context, conceptID string) ([]model.PrerequisiteChainItem, error) {
	chain, err := s.RelationshipRepo.PrerequisiteChain(ctx, conceptID)
	if err != nil {
		logger.Log.Error("Failed to get prerequisite chain", zap.String("concept_id", conceptID), zap.Error(err))
		return nil, fmt.Errorf("get prerequisite chain: %w", err)
	}
	return chain, nil
}

// =====================================================================
// 图校验与路径
// =====================================================================

// ValidateGraph 孤立点、弱关系、过深链只产生警告；已存在的先修环记为错误
func (s *KnowledgeGraphService) ValidateGraph(ctx context.Context) (*model.GraphValidationResult, error) {
	active := true
	concepts, err := s.GetConcepts(ctx, model.ConceptFilters{IsActive: &active})
	if err != nil {
		return nil, err
	}
	rels, err := s.RelationshipRepo.FindAllActive(ctx)
	if err != nil {
		logger.Log.Error("Failed to load relationships for validation", zap.Error(err))
		return nil, fmt.Errorf("load relationships: %w", err)
	}

	result := &model.GraphValidationResult{
		Errors:   []string{},
		Warnings: []model.GraphWarning{},
	}

	touched := make(map[string]bool, len(concepts))
	for _, rel := range rels {
		touched[rel.SourceConceptID] = true
		touched[rel.TargetConceptID] = true
	}
	for _, c := range concepts {
		if !touched[c.ID] {
			result.Warnings = append(result.Warnings, model.GraphWarning{
				Type:      model.WarningOrphanedConcept,
				Message:   fmt.Sprintf("Concept %q has no relationships", c.Name),
				ConceptID: c.ID,
			})
		}
	}

	for _, rel := range rels {
		if rel.Strength < weakStrengthThreshold {
			result.Warnings = append(result.Warnings, model.GraphWarning{
				Type:           model.WarningWeakRelationship,
				Message:        fmt.Sprintf("Relationship strength %.2f is below %.1f", rel.Strength, weakStrengthThreshold),
				RelationshipID: rel.ID,
			})
		}
	}

	for _, c := range concepts {
		chain, err := s.GetPrerequisiteChain(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if len(chain) > deepChainThreshold {
			result.Warnings = append(result.Warnings, model.GraphWarning{
				Type:      model.WarningDeepChain,
				Message:   fmt.Sprintf("Concept %q has a prerequisite chain depth of %d", c.Name, len(chain)),
				ConceptID: c.ID,
			})
		}
	}

	if cycle := findPrerequisiteCycle(rels); len(cycle) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("prerequisite cycle detected through concepts %v", cycle))
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// findPrerequisiteCycle 返回先修子图中找到的第一个环上的知识点
func findPrerequisiteCycle(rels []model.ConceptRelationship) []string {
	adj := make(map[string][]string)
	var nodes []string
	for _, rel := range rels {
		if rel.RelationshipType != model.RelationshipPrerequisite {
			continue
		}
		if _, ok := adj[rel.SourceConceptID]; !ok {
			nodes = append(nodes, rel.SourceConceptID)
		}
		adj[rel.SourceConceptID] = append(adj[rel.SourceConceptID], rel.TargetConceptID)
	}

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = onStack
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch state[next] {
			case onStack:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append([]string{}, stack[i:]...)
						break
					}
				}
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range nodes {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// FindLearningPath 沿 prerequisite 与 builds_on 边广度优先搜索最短路径，不可达时返回 nil
func (s *KnowledgeGraphService) FindLearningPath(ctx context.Context, fromID, toID string) (*model.LearningPath, error) {
	active := true
	concepts, err := s.GetConcepts(ctx, model.ConceptFilters{IsActive: &active})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Concept, len(concepts))
	for _, c := range concepts {
		byID[c.ID] = c
	}
	if _, ok := byID[fromID]; !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrConceptNotFound, fromID)
	}
	if _, ok := byID[toID]; !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrConceptNotFound, toID)
	}

	rels, err := s.RelationshipRepo.FindAllActive(ctx, model.RelationshipPrerequisite, model.RelationshipBuildsOn)
	if err != nil {
		logger.Log.Error("Failed to load relationships for path search", zap.Error(err))
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	adj := make(map[string][]string)
	for _, rel := range rels {
		adj[rel.SourceConceptID] = append(adj[rel.SourceConceptID], rel.TargetConceptID)
	}

	parent := map[string]string{fromID: ""}
	queue := []string{fromID}
	for len(queue) > 0 && !hasKey(parent, toID) {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adj[current] {
			if _, seen := parent[next]; seen {
				continue
			}
			if _, ok := byID[next]; !ok {
				continue
			}
			parent[next] = current
			queue = append(queue, next)
		}
	}
	if !hasKey(parent, toID) {
		return nil, nil
	}

	var ids []string
	for id := toID; id != ""; id = parent[id] {
		ids = append([]string{id}, ids...)
	}

	path := &model.LearningPath{FromConceptID: fromID, ToConceptID: toID}
	for _, id := range ids {
		c := byID[id]
		path.Steps = append(path.Steps, c)
		if c.EstimatedHours != nil {
			path.TotalHours += *c.EstimatedHours
		}
	}
	return path, nil
}

func hasKey(m map[string]string, key string) bool {
	_, ok := m[key]
	return ok
}

// =====================================================================
// 课程映射
// =====================================================================

func (s *KnowledgeGraphService) GetCourseConcepts(ctx context.Context, courseID string) ([]model.CourseConcept, error) {
	mappings, err := s.CourseConceptRepo.FindByCourse(ctx, courseID)
	if err != nil {
		logger.Log.Error("Failed to get course concepts", zap.String("course_id", courseID), zap.Error(err))
		return nil, fmt.Errorf("get course concepts: %w", err)
	}
	return mappings, nil
}

func (s *KnowledgeGraphService) GetConceptCourses(ctx context.Context, conceptID string) ([]model.CourseConcept, error) {
	mappings, err := s.CourseConceptRepo.FindByConcept(ctx, conceptID)
	if err != nil {
		logger.Log.Error("Failed to get concept courses", zap.String("concept_id", conceptID), zap.Error(err))
		return nil, fmt.Errorf("get concept courses: %w", err)
	}
	return mappings, nil
}

// LinkConceptToCourse 已存在映射时更新覆盖程度等字段
func (s *KnowledgeGraphService) LinkConceptToCourse(ctx context.Context, courseID string, req LinkConceptRequest) (*model.CourseConcept, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		logger.Log.Error("Failed to get course", zap.String("course_id", courseID), zap.Error(err))
		return nil, fmt.Errorf("get course: %w", err)
	}
	if course == nil {
		return nil, util.ErrCourseNotFound
	}
	concept, err := s.GetConcept(ctx, req.ConceptID)
	if err != nil {
		return nil, err
	}
	if concept == nil {
		return nil, util.ErrConceptNotFound
	}

	weight := 1.0
	if req.Weight != nil {
		weight = *req.Weight
	}
	mapping, err := s.CourseConceptRepo.Upsert(ctx, &model.CourseConcept{
		CourseID:      courseID,
		ConceptID:     req.ConceptID,
		CoverageLevel: req.CoverageLevel,
		OrderIndex:    req.OrderIndex,
		IsPrimary:     req.IsPrimary,
		Weight:        weight,
	})
	if err != nil {
		logger.Log.Error("Failed to link concept to course",
			zap.String("course_id", courseID),
			zap.String("concept_id", req.ConceptID),
			zap.Error(err))
		return nil, fmt.Errorf("link concept: %w", err)
	}
	return mapping, nil
}

func (s *KnowledgeGraphService) UnlinkConceptFromCourse(ctx context.Context, courseID, conceptID string) (bool, error) {
	ok, err := s.CourseConceptRepo.Delete(ctx, courseID, conceptID)
	if err != nil {
		logger.Log.Error("Failed to unlink concept from course",
			zap.String("course_id", courseID),
			zap.String("concept_id", conceptID),
			zap.Error(err))
		return false, fmt.Errorf("unlink concept: %w", err)
	}
	return ok, nil
}

// ValidatePrerequisites 直接前置均达到 minLevel 才允许学习，无记录视为 none
func (s *KnowledgeGraphService) ValidatePrerequisites(ctx context.Context, userID, conceptID string, minLevel model.MasteryLevel) (*model.PrerequisiteValidation, error) {
	if !minLevel.Valid() {
		return nil, fmt.Errorf("%w: %s", util.ErrInvalidMasteryLevel, minLevel)
	}

	prerequisites, err := s.GetPrerequisites(ctx, conceptID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(prerequisites))
	for _, p := range prerequisites {
		ids = append(ids, p.ID)
	}
	masteries, err := s.MasteryRepo.FindByUserAndConcepts(ctx, userID, ids)
	if err != nil {
		logger.Log.Error("Failed to load prerequisite masteries",
			zap.String("user_id", userID),
			zap.String("concept_id", conceptID),
			zap.Error(err))
		return nil, fmt.Errorf("load masteries: %w", err)
	}
	levels := make(map[string]model.MasteryLevel, len(masteries))
	for _, m := range masteries {
		levels[m.ConceptID] = m.MasteryLevel
	}

	result := &model.PrerequisiteValidation{
		MissingPrerequisites:  []model.Concept{},
		MasteredPrerequisites: []model.Concept{},
	}
	for _, p := range prerequisites {
		level, ok := levels[p.ID]
		if ok && level.AtLeast(minLevel) {
			result.MasteredPrerequisites = append(result.MasteredPrerequisites, p)
		} else {
			result.MissingPrerequisites = append(result.MissingPrerequisites, p)
		}
	}
	result.Allowed = len(result.MissingPrerequisites) == 0
	return result, nil
}
