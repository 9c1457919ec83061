package service

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/internal/util"
	"knowledge_graph_backend/pkg/logger"
	"knowledge_graph_backend/pkg/monitoring"
	"knowledge_graph_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// 强项/弱项各取的类型数
const areaCount = 3

// UserMasteryService 基于证据计算用户对知识点的掌握程度
type UserMasteryService struct {
	Repo           *repository.MasteryRepository
	CourseConcepts *repository.CourseConceptRepository

	config atomic.Pointer[model.MasteryCalculationConfig]
	now    func() time.Time
}

func NewUserMasteryService(repo *repository.MasteryRepository, courseConcepts *repository.CourseConceptRepository) *UserMasteryService {
	s := &UserMasteryService{
		Repo:           repo,
		CourseConcepts: courseConcepts,
		now:            time.Now,
	}
	cfg := model.DefaultMasteryConfig()
	s.config.Store(&cfg)
	return s
}

// EvidenceRequest 直接追加证据的请求
type EvidenceRequest struct {
	Type             model.EvidenceType `json:"type" binding:"required"`
	Date             *time.Time         `json:"date"`
	Score            *float64           `json:"score"`
	CourseID         string             `json:"course_id"`
	AssessmentID     string             `json:"assessment_id"`
	ExerciseID       string             `json:"exercise_id"`
	Attempts         int                `json:"attempts"`
	Success          *bool              `json:"success"`
	TimeSpentMinutes float64            `json:"time_spent_minutes"`
}

type AssessmentRequest struct {
	ConceptID    string  `json:"concept_id" binding:"required"`
	AssessmentID string  `json:"assessment_id" binding:"required"`
	Score        float64 `json:"score" binding:"min=0,max=1"`
}

type PracticeRequest struct {
	ConceptID  string `json:"concept_id" binding:"required"`
	ExerciseID string `json:"exercise_id" binding:"required"`
	Attempts   int    `json:"attempts" binding:"min=0"`
	Success    bool   `json:"success"`
}

type TimeSpentRequest struct {
	ConceptID string  `json:"concept_id" binding:"required"`
	Minutes   float64 `json:"minutes" binding:"min=0"`
}

type CourseCompletionRequest struct {
	CourseID string  `json:"course_id" binding:"required"`
	Score    float64 `json:"score" binding:"min=0,max=1"`
}

// SetConfig 将覆盖项合并到默认配置后替换当前快照
func (s *UserMasteryService) SetConfig(override model.MasteryConfigOverride) (model.MasteryCalculationConfig, error) {
	cfg := model.DefaultMasteryConfig().Merge(override)
	if err := cfg.Validate(); err != nil {
		return model.MasteryCalculationConfig{}, fmt.Errorf("%w: %v", util.ErrInvalidMasteryConfig, err)
	}
	s.config.Store(&cfg)
	logger.Log.Info("Mastery calculation config updated")
	return cfg, nil
}

// Config 当前生效的配置快照，调用方不得修改其中的 map
func (s *UserMasteryService) Config() model.MasteryCalculationConfig {
	return *s.config.Load()
}

func (s *UserMasteryService) GetMastery(ctx context.Context, userID, conceptID string) (*model.UserConceptMastery, error) {
	mastery, err := s.Repo.FindByUserAndConcept(ctx, userID, conceptID)
	if err != nil {
		logger.Log.Error("Failed to get mastery",
			zap.String("user_id", userID),
			zap.String("concept_id", conceptID),
			zap.Error(err))
		return nil, fmt.Errorf("get mastery: %w", err)
	}
	return mastery, nil
}

func (s *UserMasteryService) GetUserMasteries(ctx context.Context, userID string, filters model.MasteryFilters) ([]model.UserConceptMastery, error) {
	for _, level := range filters.Levels {
		if !level.Valid() {
			return nil, fmt.Errorf("%w: %s", util.ErrInvalidMasteryLevel, level)
		}
	}

	masteries, err := s.Repo.FindByUser(ctx, userID, filters, s.now())
	if err != nil {
		logger.Log.Error("Failed to list user masteries", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list masteries: %w", err)
	}
	return masteries, nil
}

// GetMasteredConcepts advanced 与 mastered 两级
func (s *UserMasteryService) GetMasteredConcepts(ctx context.Context, userID string) ([]model.UserConceptMastery, error) {
	return s.GetUserMasteries(ctx, userID, model.MasteryFilters{
		Levels: []model.MasteryLevel{model.MasteryAdvanced, model.MasteryMastered},
	})
}

// AddEvidence 追加一条证据并在同一事务内重算掌握度
func (s *UserMasteryService) AddEvidence(ctx context.Context, userID, conceptID string, point model.EvidencePoint) (*model.UserConceptMastery, error) {
	ctx, span := tracing.StartSpan(ctx, "mastery.add_evidence",
		tracing.UserIDKey.String(userID),
		tracing.ConceptIDKey.String(conceptID),
		attribute.String("kg.evidence_type", string(point.Type)),
	)
	defer span.End()

	if userID == "" || conceptID == "" {
		return nil, fmt.Errorf("%w: user and concept are required", util.ErrInvalidEvidence)
	}
	if err := validateEvidence(point); err != nil {
		return nil, err
	}
	if point.Date.IsZero() {
		point.Date = s.now()
	}
	point.Date = point.Date.UTC()

	cfg := s.Config()
	err := s.Repo.Transaction(ctx, func(repo *repository.MasteryRepository) error {
		mastery, err := repo.FindForUpdate(ctx, userID, conceptID)
		if err != nil {
			return err
		}
		if mastery == nil {
			mastery = &model.UserConceptMastery{
				UserID:       userID,
				ConceptID:    conceptID,
				Evidence:     []model.EvidencePoint{point},
				MasteryLevel: model.MasteryNone,
			}
			if err := repo.Create(ctx, mastery); err != nil {
				return err
			}
		} else {
			mastery.Evidence = append(mastery.Evidence, point)
		}
		return s.recalculate(ctx, repo, mastery, cfg)
	})
	if err != nil {
		logger.Log.Error("Failed to add evidence",
			zap.String("user_id", userID),
			zap.String("concept_id", conceptID),
			zap.String("type", string(point.Type)),
			zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("add evidence: %w", err)
	}

	monitoring.EvidenceRecorded.WithLabelValues(string(point.Type)).Inc()
	return s.GetMastery(ctx, userID, conceptID)
}

// RecalculateMastery 依据已存证据重算派生字段，记录不存在时返回 nil
func (s *UserMasteryService) RecalculateMastery(ctx context.Context, userID, conceptID string) (*model.UserConceptMastery, error) {
	cfg := s.Config()
	var found bool
	err := s.Repo.Transaction(ctx, func(repo *repository.MasteryRepository) error {
		mastery, err := repo.FindForUpdate(ctx, userID, conceptID)
		if err != nil || mastery == nil {
			return err
		}
		found = true
		return s.recalculate(ctx, repo, mastery, cfg)
	})
	if err != nil {
		logger.Log.Error("Failed to recalculate mastery",
			zap.String("user_id", userID),
			zap.String("concept_id", conceptID),
			zap.Error(err))
		return nil, fmt.Errorf("recalculate mastery: %w", err)
	}
	if !found {
		return nil, nil
	}
	return s.GetMastery(ctx, userID, conceptID)
}

// RecalculateUser 重算用户全部掌握记录，返回处理条数
func (s *UserMasteryService) RecalculateUser(ctx context.Context, userID string) (int, error) {
	masteries, err := s.GetUserMasteries(ctx, userID, model.MasteryFilters{})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range masteries {
		if _, err := s.RecalculateMastery(ctx, userID, m.ConceptID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// recalculate 是派生字段的唯一写入路径
func (s *UserMasteryService) recalculate(ctx context.Context, repo *repository.MasteryRepository, mastery *model.UserConceptMastery, cfg model.MasteryCalculationConfig) error {
	result := CalculateMasteryFromEvidence(cfg, mastery.Evidence, s.now())
	mastery.MasteryLevel = result.MasteryLevel
	mastery.ConfidenceScore = result.ConfidenceScore
	mastery.RawScore = result.RawScore
	mastery.LastPracticed = result.LastPracticed
	return repo.SaveDerived(ctx, mastery)
}

func validateEvidence(point model.EvidencePoint) error {
	if !point.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", util.ErrInvalidEvidence, point.Type)
	}
	if point.Score != nil && (*point.Score < 0 || *point.Score > 1) {
		return fmt.Errorf("%w: score %v out of range [0,1]", util.ErrInvalidEvidence, *point.Score)
	}
	if point.TimeSpentMinutes < 0 {
		return fmt.Errorf("%w: negative time spent", util.ErrInvalidEvidence)
	}
	return nil
}

// GetMasterySummary 汇总用户的掌握情况
func (s *UserMasteryService) GetMasterySummary(ctx context.Context, userID string) (*model.UserProgressSummary, error) {
	masteries, err := s.GetUserMasteries(ctx, userID, model.MasteryFilters{})
	if err != nil {
		return nil, err
	}
	return summarizeMasteries(userID, masteries, s.now()), nil
}

func summarizeMasteries(userID string, masteries []model.UserConceptMastery, now time.Time) *model.UserProgressSummary {
	summary := &model.UserProgressSummary{
		UserID:              userID,
		TotalConcepts:       len(masteries),
		MasteryByType:       make(map[model.ConceptType]int),
		MasteryByDifficulty: make(map[model.DifficultyLevel]int),
		StrongestAreas:      []model.ConceptType{},
		WeakestAreas:        []model.ConceptType{},
	}

	var oldest time.Time
	typeScores := make(map[model.ConceptType][]float64)
	for _, m := range masteries {
		switch m.MasteryLevel {
		case model.MasteryAdvanced, model.MasteryMastered:
			summary.MasteredConcepts++
		case model.MasteryBeginner, model.MasteryIntermediate:
			summary.InProgressConcepts++
		}
		if oldest.IsZero() || m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
		if m.Concept == nil {
			continue
		}
		summary.MasteryByType[m.Concept.Type]++
		summary.MasteryByDifficulty[m.Concept.DifficultyLevel]++
		typeScores[m.Concept.Type] = append(typeScores[m.Concept.Type], m.MasteryLevel.Score())
	}

	if summary.MasteredConcepts > 0 {
		months := monthsBetween(oldest, now)
		if months > 0 {
			summary.LearningVelocity = float64(summary.MasteredConcepts) / float64(months)
		} else {
			summary.LearningVelocity = float64(summary.MasteredConcepts)
		}
	}

	type typeAverage struct {
		Type  model.ConceptType
		Score float64
	}
	averages := make([]typeAverage, 0, len(typeScores))
	for t, scores := range typeScores {
		var sum float64
		for _, v := range scores {
			sum += v
		}
		averages = append(averages, typeAverage{Type: t, Score: sum / float64(len(scores))})
	}
	sort.Slice(averages, func(i, j int) bool {
		if averages[i].Score != averages[j].Score {
			return averages[i].Score > averages[j].Score
		}
		return averages[i].Type < averages[j].Type
	})

	for i := 0; i < len(averages) && i < areaCount; i++ {
		summary.StrongestAreas = append(summary.StrongestAreas, averages[i].Type)
	}
	// 最弱的排在最前
	for i := len(averages) - 1; i >= 0 && i >= len(averages)-areaCount; i-- {
		summary.WeakestAreas = append(summary.WeakestAreas, averages[i].Type)
	}
	return summary
}

// RecordCourseCompletion 按课程覆盖的每个知识点记录证据，得分按覆盖深度折算
func (s *UserMasteryService) RecordCourseCompletion(ctx context.Context, userID, courseID string, score float64) (int, error) {
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("%w: score %v out of range [0,1]", util.ErrInvalidEvidence, score)
	}

	mappings, err := s.CourseConcepts.FindByCourse(ctx, courseID)
	if err != nil {
		logger.Log.Error("Failed to load course concepts", zap.String("course_id", courseID), zap.Error(err))
		return 0, fmt.Errorf("load course concepts: %w", err)
	}

	date := s.now()
	recorded := 0
	for _, cc := range mappings {
		weighted := score * cc.CoverageLevel.Weight()
		_, err := s.AddEvidence(ctx, userID, cc.ConceptID, model.EvidencePoint{
			Type:     model.EvidenceCourseCompletion,
			Date:     date,
			Score:    &weighted,
			CourseID: courseID,
		})
		if err != nil {
			return recorded, err
		}
		recorded++
	}
	return recorded, nil
}

func (s *UserMasteryService) RecordAssessment(ctx context.Context, userID, conceptID, assessmentID string, score float64) (*model.UserConceptMastery, error) {
	return s.AddEvidence(ctx, userID, conceptID, model.EvidencePoint{
		Type:         model.EvidenceAssessment,
		Date:         s.now(),
		Score:        &score,
		AssessmentID: assessmentID,
	})
}

// RecordPractice 成功记 1.0，失败记 0.5
func (s *UserMasteryService) RecordPractice(ctx context.Context, userID, conceptID, exerciseID string, attempts int, success bool) (*model.UserConceptMastery, error) {
	score := 0.5
	if success {
		score = 1.0
	}
	return s.AddEvidence(ctx, userID, conceptID, model.EvidencePoint{
		Type:       model.EvidencePractice,
		Date:       s.now(),
		Score:      &score,
		ExerciseID: exerciseID,
		Attempts:   attempts,
		Success:    &success,
	})
}

// RecordTimeSpent 超过 60 分钟不再加分
func (s *UserMasteryService) RecordTimeSpent(ctx context.Context, userID, conceptID string, minutes float64) (*model.UserConceptMastery, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("%w: negative time spent", util.ErrInvalidEvidence)
	}
	score := minutes / 60
	if score > 1 {
		score = 1
	}
	return s.AddEvidence(ctx, userID, conceptID, model.EvidencePoint{
		Type:             model.EvidenceTimeSpent,
		Date:             s.now(),
		Score:            &score,
		TimeSpentMinutes: minutes,
	})
}

// ToEvidencePoint 转换为证据点，未给出日期时由 AddEvidence 填充
func (r EvidenceRequest) ToEvidencePoint() model.EvidencePoint {
	point := model.EvidencePoint{
		Type:             r.Type,
		Score:            r.Score,
		CourseID:         r.CourseID,
		AssessmentID:     r.AssessmentID,
		ExerciseID:       r.ExerciseID,
		Attempts:         r.Attempts,
		Success:          r.Success,
		TimeSpentMinutes: r.TimeSpentMinutes,
	}
	if r.Date != nil {
		point.Date = *r.Date
	}
	return point
}
