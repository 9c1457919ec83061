package repository

import (
	"context"
	"errors"
	"knowledge_graph_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MasteryRepository struct {
	DB *gorm.DB
}

func NewMasteryRepository(db *gorm.DB) *MasteryRepository {
	return &MasteryRepository{DB: db}
}

// Transaction 在事务内执行 fn，fn 收到绑定事务的仓库
func (r *MasteryRepository) Transaction(ctx context.Context, fn func(repo *MasteryRepository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&MasteryRepository{DB: tx})
	})
}

func (r *MasteryRepository) FindByUserAndConcept(ctx context.Context, userID, conceptID string) (*model.UserConceptMastery, error) {
	var mastery model.UserConceptMastery
	err := r.DB.WithContext(ctx).
		Preload("Concept").
		Where("user_id = ? AND concept_id = ?", userID, conceptID).
		First(&mastery).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mastery, nil
}

// FindForUpdate 读取并锁定记录（sqlite 忽略行锁）
func (r *MasteryRepository) FindForUpdate(ctx context.Context, userID, conceptID string) (*model.UserConceptMastery, error) {
	var mastery model.UserConceptMastery
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND concept_id = ?", userID, conceptID).
		First(&mastery).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mastery, nil
}

// FindByUser 按过滤条件查询用户的全部掌握记录
func (r *MasteryRepository) FindByUser(ctx context.Context, userID string, filters model.MasteryFilters, now time.Time) ([]model.UserConceptMastery, error) {
	var masteries []model.UserConceptMastery
	query := r.DB.WithContext(ctx).Preload("Concept").Where("user_id = ?", userID)

	if len(filters.Levels) > 0 {
		query = query.Where("mastery_level IN ?", filters.Levels)
	}
	if filters.MinConfidence != nil {
		query = query.Where("confidence_score >= ?", *filters.MinConfidence)
	}
	if filters.RecentlyPracticed {
		query = query.Where("last_practiced >= ?", now.AddDate(0, 0, -30).UTC())
	}

	err := query.Order("updated_at desc").Find(&masteries).Error
	return masteries, err
}

func (r *MasteryRepository) FindByUserAndConcepts(ctx context.Context, userID string, conceptIDs []string) ([]model.UserConceptMastery, error) {
	var masteries []model.UserConceptMastery
	if len(conceptIDs) == 0 {
		return masteries, nil
	}
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND concept_id IN ?", userID, conceptIDs).
		Find(&masteries).Error
	return masteries, err
}

func (r *MasteryRepository) Create(ctx context.Context, mastery *model.UserConceptMastery) error {
	return r.DB.WithContext(ctx).Omit("Concept").Create(mastery).Error
}

// SaveDerived 写回证据与派生字段
func (r *MasteryRepository) SaveDerived(ctx context.Context, mastery *model.UserConceptMastery) error {
	return r.DB.WithContext(ctx).Model(&model.UserConceptMastery{}).
		Where("id = ?", mastery.ID).
		Updates(map[string]interface{}{
			"evidence":         mastery.Evidence,
			"mastery_level":    mastery.MasteryLevel,
			"confidence_score": mastery.ConfidenceScore,
			"raw_score":        mastery.RawScore,
			"last_practiced":   mastery.LastPracticed,
		}).Error
}
