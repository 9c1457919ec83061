package repository

import (
	"context"
	"errors"
	"knowledge_graph_backend/internal/model"
	"strings"

	"gorm.io/gorm"
)

type ConceptRepository struct {
	DB *gorm.DB
}

func NewConceptRepository(db *gorm.DB) *ConceptRepository {
	return &ConceptRepository{DB: db}
}

// FindByID 仅返回启用状态的知识点，不存在时返回 nil
func (r *ConceptRepository) FindByID(ctx context.Context, id string) (*model.Concept, error) {
	var concept model.Concept
	err := r.DB.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&concept).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &concept, nil
}

func (r *ConceptRepository) FindBySlug(ctx context.Context, slug string) (*model.Concept, error) {
	var concept model.Concept
	err := r.DB.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&concept).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &concept, nil
}

func (r *ConceptRepository) FindAll(ctx context.Context, filters model.ConceptFilters) ([]model.Concept, error) {
	var concepts []model.Concept
	query := r.DB.WithContext(ctx).Model(&model.Concept{})

	if len(filters.Types) > 0 {
		query = query.Where("type IN ?", filters.Types)
	}
	if len(filters.Difficulties) > 0 {
		query = query.Where("difficulty_level IN ?", filters.Difficulties)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}

	err := query.Order("name asc").Find(&concepts).Error
	return concepts, err
}

func (r *ConceptRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Concept, error) {
	var concepts []model.Concept
	if len(ids) == 0 {
		return concepts, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).Find(&concepts).Error
	return concepts, err
}

func (r *ConceptRepository) Create(ctx context.Context, concept *model.Concept) error {
	return r.DB.WithContext(ctx).Create(concept).Error
}

// Update 按字段更新，返回更新后的记录
func (r *ConceptRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (*model.Concept, error) {
	result := r.DB.WithContext(ctx).Model(&model.Concept{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var concept model.Concept
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&concept).Error; err != nil {
		return nil, err
	}
	return &concept, nil
}

// Deactivate 软删除
func (r *ConceptRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	result := r.DB.WithContext(ctx).Model(&model.Concept{}).Where("id = ?", id).Update("is_active", false)
	return result.RowsAffected > 0, result.Error
}

func (r *ConceptRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Concept{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}
