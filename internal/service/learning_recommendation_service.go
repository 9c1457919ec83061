package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/pkg/logger"
	"knowledge_graph_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// 五个因子的权重，合计 1.0
const (
	weightRelationship = 0.30
	weightProgression  = 0.25
	weightPreference   = 0.20
	weightPopularity   = 0.15
	weightSkillGap     = 0.10
)

const (
	DefaultRecommendationLimit = 10
	defaultNextStepsLimit      = 5
	defaultCourseLimit         = 5
	courseFanOut               = 20
	defaultEstimatedHours      = 5.0
	baseRelationshipScore      = 0.3
	neutralPopularity          = 0.5
	// 约 100 人报名即视为 1.0
	popularitySaturation = 100.0
)

// LearningRecommendationService 基于掌握度与图谱关系推荐下一步学习的知识点
type LearningRecommendationService struct {
	ConceptRepo       *repository.ConceptRepository
	RelationshipRepo  *repository.RelationshipRepository
	CourseConceptRepo *repository.CourseConceptRepository
	MasteryRepo       *repository.MasteryRepository
	DefaultLimit      int

	now func() time.Time
}

func NewLearningRecommendationService(
	conceptRepo *repository.ConceptRepository,
	relationshipRepo *repository.RelationshipRepository,
	courseConceptRepo *repository.CourseConceptRepository,
	masteryRepo *repository.MasteryRepository,
	defaultLimit int,
) *LearningRecommendationService {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRecommendationLimit
	}
	return &LearningRecommendationService{
		ConceptRepo:       conceptRepo,
		RelationshipRepo:  relationshipRepo,
		CourseConceptRepo: courseConceptRepo,
		MasteryRepo:       masteryRepo,
		DefaultLimit:      defaultLimit,
		now:               time.Now,
	}
}

// scoringContext 一次请求内的用户数据，解析一次后供所有候选复用
type scoringContext struct {
	levels         map[string]model.MasteryLevel
	mastered       map[string]bool
	masteredByType map[model.ConceptType]int
	totalMastered  int
	meanDifficulty float64
	weakest        []model.ConceptType

	active        map[string]model.Concept
	activeList    []model.Concept
	prerequisites map[string][]string
	affinity      map[string][]model.ConceptRelationship

	courses       map[string][]model.CourseConcept
	coursesFailed bool

	preferences *model.UserPreferences
}

func (s *LearningRecommendationService) newScoringContext(ctx context.Context, userID string, preferences *model.UserPreferences) (*scoringContext, error) {
	masteries, err := s.MasteryRepo.FindByUser(ctx, userID, model.MasteryFilters{}, s.now())
	if err != nil {
		logger.Log.Error("Failed to load masteries for recommendations", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("load masteries: %w", err)
	}

	active := true
	concepts, err := s.ConceptRepo.FindAll(ctx, model.ConceptFilters{IsActive: &active})
	if err != nil {
		logger.Log.Error("Failed to load concepts for recommendations", zap.Error(err))
		return nil, fmt.Errorf("load concepts: %w", err)
	}

	rels, err := s.RelationshipRepo.FindAllActive(ctx,
		model.RelationshipPrerequisite, model.RelationshipRelatedTo, model.RelationshipBuildsOn)
	if err != nil {
		logger.Log.Error("Failed to load relationships for recommendations", zap.Error(err))
		return nil, fmt.Errorf("load relationships: %w", err)
	}

	sc := &scoringContext{
		levels:         make(map[string]model.MasteryLevel, len(masteries)),
		mastered:       make(map[string]bool),
		masteredByType: make(map[model.ConceptType]int),
		meanDifficulty: 1,
		active:         make(map[string]model.Concept, len(concepts)),
		activeList:     concepts,
		prerequisites:  make(map[string][]string),
		affinity:       make(map[string][]model.ConceptRelationship),
		courses:        make(map[string][]model.CourseConcept),
		preferences:    preferences,
	}

	var difficultySum float64
	var difficultyCount int
	for _, m := range masteries {
		sc.levels[m.ConceptID] = m.MasteryLevel
		if m.MasteryLevel.IsMastered() {
			sc.mastered[m.ConceptID] = true
			sc.totalMastered++
			if m.Concept != nil {
				sc.masteredByType[m.Concept.Type]++
			}
		}
		if m.Concept != nil && m.MasteryLevel != model.MasteryNone {
			difficultySum += m.Concept.DifficultyLevel.Value()
			difficultyCount++
		}
	}
	if difficultyCount > 0 {
		sc.meanDifficulty = difficultySum / float64(difficultyCount)
	}
	sc.weakest = summarizeMasteries(userID, masteries, s.now()).WeakestAreas

	for _, c := range concepts {
		sc.active[c.ID] = c
	}
	for _, rel := range rels {
		switch rel.RelationshipType {
		case model.RelationshipPrerequisite:
			if _, ok := sc.active[rel.SourceConceptID]; ok {
				sc.prerequisites[rel.TargetConceptID] = append(sc.prerequisites[rel.TargetConceptID], rel.SourceConceptID)
			}
		default:
			sc.affinity[rel.SourceConceptID] = append(sc.affinity[rel.SourceConceptID], rel)
			sc.affinity[rel.TargetConceptID] = append(sc.affinity[rel.TargetConceptID], rel)
		}
	}
	return sc, nil
}

// loadCourses 查询候选知识点关联的课程，失败时热度按中性值处理
func (s *LearningRecommendationService) loadCourses(ctx context.Context, sc *scoringContext, candidates []model.Concept) {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	mappings, err := s.CourseConceptRepo.FindByConceptsAndCoverage(ctx, ids,
		[]model.CoverageLevel{model.CoverageIntroduces, model.CoverageCovers, model.CoverageMasters})
	if err != nil {
		logger.Log.Warn("Failed to load course enrollment data", zap.Error(err))
		sc.coursesFailed = true
		return
	}
	for _, m := range mappings {
		sc.courses[m.ConceptID] = append(sc.courses[m.ConceptID], m)
	}
}

// ready 未掌握且全部直接前置至少达到 beginner
func (sc *scoringContext) ready(c model.Concept) bool {
	if sc.mastered[c.ID] {
		return false
	}
	return sc.prerequisitesMet(c.ID)
}

func (sc *scoringContext) prerequisitesMet(conceptID string) bool {
	for _, source := range sc.prerequisites[conceptID] {
		level, ok := sc.levels[source]
		if !ok || !level.AtLeast(model.MasteryBeginner) {
			return false
		}
	}
	return true
}

func (sc *scoringContext) relationshipScore(c model.Concept) float64 {
	var sum float64
	var count int
	for _, rel := range sc.affinity[c.ID] {
		if sc.mastered[rel.SourceConceptID] || sc.mastered[rel.TargetConceptID] {
			sum += rel.Strength
			count++
		}
	}
	if count == 0 {
		return baseRelationshipScore
	}
	return sum / float64(count)
}

func (sc *scoringContext) progressionScore(c model.Concept) float64 {
	difficulty := c.DifficultyLevel.Value()
	if difficulty == 0 {
		difficulty = 1
	}
	return progressionFit(difficulty - sc.meanDifficulty)
}

// progressionFit 略高于当前水平最合适
func progressionFit(diff float64) float64 {
	switch {
	case diff >= -0.5 && diff <= 0.5:
		return 1.0
	case diff > 0.5 && diff <= 1.0:
		return 0.8
	case diff < -0.5 && diff >= -1.0:
		return 0.6
	}
	return 0.3
}

func preferenceScore(c model.Concept, prefs *model.UserPreferences) float64 {
	score := 0.5
	if prefs == nil {
		return score
	}
	name := strings.ToLower(c.Name)
	for _, topic := range prefs.Topics {
		if topic != "" && strings.Contains(name, strings.ToLower(topic)) {
			score += 0.3
			break
		}
	}
	if prefs.TimeAvailable != nil && c.EstimatedHours != nil && *c.EstimatedHours <= *prefs.TimeAvailable {
		score += 0.2
	}
	return math.Min(1.0, score)
}

func (sc *scoringContext) popularityScore(c model.Concept) float64 {
	if sc.coursesFailed {
		return neutralPopularity
	}
	seen := make(map[string]bool)
	var total float64
	for _, m := range sc.courses[c.ID] {
		if seen[m.CourseID] {
			continue
		}
		seen[m.CourseID] = true
		if m.Course != nil {
			total += float64(m.Course.EnrollmentCount)
		}
	}
	if len(seen) == 0 {
		return neutralPopularity
	}
	return popularityFromEnrollment(total / float64(len(seen)))
}

func popularityFromEnrollment(avg float64) float64 {
	if avg < 0 {
		avg = 0
	}
	return math.Min(1.0, math.Log10(avg+1)/math.Log10(popularitySaturation+1))
}

// skillGapScore 该类型在已掌握知识点中占比越低越值得补
func (sc *scoringContext) skillGapScore(c model.Concept) float64 {
	total := sc.totalMastered
	if total == 0 {
		total = 1
	}
	ratio := float64(sc.masteredByType[c.Type]) / float64(total)
	switch {
	case ratio < 0.2:
		return 1.0
	case ratio < 0.3:
		return 0.7
	}
	return 0.4
}

// reasonFor 按 relationship、progression、skill gap 顺序判断，后者覆盖前者
func reasonFor(f model.ScoreFactors) model.RecommendationReason {
	reason := model.ReasonPrerequisiteMet
	if f.Relationship > 0.7 {
		reason = model.ReasonRelatedToMastered
	}
	if f.Progression > 0.7 {
		reason = model.ReasonCompletesLearningPath
	}
	if f.SkillGap > 0.8 {
		reason = model.ReasonFillsSkillGap
	}
	return reason
}

func weightedScore(f model.ScoreFactors) float64 {
	total := f.Relationship*weightRelationship +
		f.Progression*weightProgression +
		f.Preference*weightPreference +
		f.Popularity*weightPopularity +
		f.SkillGap*weightSkillGap
	return math.Max(0, math.Min(1, total))
}

func (sc *scoringContext) score(c model.Concept) model.LearningRecommendation {
	factors := model.ScoreFactors{
		Relationship: sc.relationshipScore(c),
		Progression:  sc.progressionScore(c),
		Preference:   preferenceScore(c, sc.preferences),
		Popularity:   sc.popularityScore(c),
		SkillGap:     sc.skillGapScore(c),
	}

	estimated := defaultEstimatedHours
	if c.EstimatedHours != nil && *c.EstimatedHours > 0 {
		estimated = *c.EstimatedHours
	}

	related := []string{}
	seen := make(map[string]bool)
	for _, m := range sc.courses[c.ID] {
		if !seen[m.CourseID] {
			seen[m.CourseID] = true
			related = append(related, m.CourseID)
		}
	}

	return model.LearningRecommendation{
		Concept:          c,
		Score:            weightedScore(factors),
		Reason:           reasonFor(factors),
		Factors:          factors,
		PrerequisitesMet: sc.prerequisitesMet(c.ID),
		EstimatedTime:    estimated,
		RelatedCourses:   related,
	}
}

func (s *LearningRecommendationService) rank(ctx context.Context, sc *scoringContext, candidates []model.Concept, limit int) []model.LearningRecommendation {
	s.loadCourses(ctx, sc, candidates)

	recs := make([]model.LearningRecommendation, 0, len(candidates))
	for _, c := range candidates {
		recs = append(recs, sc.score(c))
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Concept.Name < recs[j].Concept.Name
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// GetRecommendations 在可学习集合中按综合得分排序
func (s *LearningRecommendationService) GetRecommendations(ctx context.Context, userID string, opts model.RecommendationOptions) ([]model.LearningRecommendation, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.DefaultLimit
	}

	sc, err := s.newScoringContext(ctx, userID, opts.UserPreferences)
	if err != nil {
		return nil, err
	}

	types := make(map[model.ConceptType]bool, len(opts.ConceptTypes))
	for _, t := range opts.ConceptTypes {
		types[t] = true
	}

	var candidates []model.Concept
	for _, c := range sc.activeList {
		if len(types) > 0 && !types[c.Type] {
			continue
		}
		if opts.DifficultyPreference != "" && c.DifficultyLevel != opts.DifficultyPreference {
			continue
		}
		if sc.ready(c) {
			candidates = append(candidates, c)
		}
	}

	recs := s.rank(ctx, sc, candidates, limit)
	monitoring.RecommendationsServed.WithLabelValues("general").Add(float64(len(recs)))
	return recs, nil
}

// GetNextSteps 完成某个知识点后的延伸：其 builds_on/related_to 指向的知识点及其后继
func (s *LearningRecommendationService) GetNextSteps(ctx context.Context, userID, completedConceptID string, limit int) ([]model.LearningRecommendation, error) {
	if limit <= 0 {
		limit = defaultNextStepsLimit
	}

	sc, err := s.newScoringContext(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	seen := map[string]bool{completedConceptID: true}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, rel := range sc.affinity[completedConceptID] {
		if rel.SourceConceptID == completedConceptID {
			add(rel.TargetConceptID)
		}
	}
	dependents, err := s.RelationshipRepo.FindOutgoing(ctx, completedConceptID, model.RelationshipPrerequisite)
	if err != nil {
		logger.Log.Error("Failed to load dependents", zap.String("concept_id", completedConceptID), zap.Error(err))
		return nil, fmt.Errorf("load dependents: %w", err)
	}
	for _, rel := range dependents {
		add(rel.TargetConceptID)
	}

	var candidates []model.Concept
	for _, id := range ids {
		if c, ok := sc.active[id]; ok {
			candidates = append(candidates, c)
		}
	}

	recs := s.rank(ctx, sc, candidates, limit)
	monitoring.RecommendationsServed.WithLabelValues("next_steps").Add(float64(len(recs)))
	return recs, nil
}

// GetFillTheGapRecommendations 仅在用户最弱的知识点类型中推荐
func (s *LearningRecommendationService) GetFillTheGapRecommendations(ctx context.Context, userID string, limit int) ([]model.LearningRecommendation, error) {
	if limit <= 0 {
		limit = defaultNextStepsLimit
	}

	sc, err := s.newScoringContext(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	weak := make(map[model.ConceptType]bool, len(sc.weakest))
	for _, t := range sc.weakest {
		weak[t] = true
	}
	var candidates []model.Concept
	for _, c := range sc.activeList {
		if weak[c.Type] && sc.ready(c) {
			candidates = append(candidates, c)
		}
	}

	recs := s.rank(ctx, sc, candidates, limit)
	for i := range recs {
		recs[i].Reason = model.ReasonFillsSkillGap
	}
	monitoring.RecommendationsServed.WithLabelValues("fill_gap").Add(float64(len(recs)))
	return recs, nil
}

// GetCourseRecommendations 取前 20 条推荐，按课程聚合后取平均分
func (s *LearningRecommendationService) GetCourseRecommendations(ctx context.Context, userID string, limit int) ([]model.CourseRecommendation, error) {
	if limit <= 0 {
		limit = defaultCourseLimit
	}

	recs, err := s.GetRecommendations(ctx, userID, model.RecommendationOptions{Limit: courseFanOut})
	if err != nil {
		return nil, err
	}

	var order []string
	totals := make(map[string]*model.CourseRecommendation)
	for _, rec := range recs {
		for _, courseID := range rec.RelatedCourses {
			entry, ok := totals[courseID]
			if !ok {
				entry = &model.CourseRecommendation{CourseID: courseID}
				totals[courseID] = entry
				order = append(order, courseID)
			}
			entry.Score += rec.Score
			entry.RecommendedConcepts = append(entry.RecommendedConcepts, rec.Concept.ID)
		}
	}

	courses := make([]model.CourseRecommendation, 0, len(order))
	for _, id := range order {
		entry := totals[id]
		entry.Score /= float64(len(entry.RecommendedConcepts))
		courses = append(courses, *entry)
	}
	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].Score > courses[j].Score
	})
	if len(courses) > limit {
		courses = courses[:limit]
	}
	monitoring.RecommendationsServed.WithLabelValues("courses").Add(float64(len(courses)))
	return courses, nil
}
