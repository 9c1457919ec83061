package repository

import (
	"context"
	"errors"
	"knowledge_graph_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseConceptRepository struct {
	DB *gorm.DB
}

func NewCourseConceptRepository(db *gorm.DB) *CourseConceptRepository {
	return &CourseConceptRepository{DB: db}
}

// FindByCourse 课程讲授的知识点，按顺序返回并加载知识点
func (r *CourseConceptRepository) FindByCourse(ctx context.Context, courseID string) ([]model.CourseConcept, error) {
	var mappings []model.CourseConcept
	err := r.DB.WithContext(ctx).
		Preload("Concept").
		Where("course_id = ?", courseID).
		Order("order_index asc").
		Find(&mappings).Error
	return mappings, err
}

func (r *CourseConceptRepository) FindByConcept(ctx context.Context, conceptID string) ([]model.CourseConcept, error) {
	var mappings []model.CourseConcept
	err := r.DB.WithContext(ctx).
		Preload("Course").
		Where("concept_id = ?", conceptID).
		Find(&mappings).Error
	return mappings, err
}

// FindByConceptsAndCoverage 查找以给定深度讲授这些知识点的课程
func (r *CourseConceptRepository) FindByConceptsAndCoverage(ctx context.Context, conceptIDs []string, levels []model.CoverageLevel) ([]model.CourseConcept, error) {
	var mappings []model.CourseConcept
	if len(conceptIDs) == 0 {
		return mappings, nil
	}
	err := r.DB.WithContext(ctx).
		Preload("Course").
		Where("concept_id IN ? AND coverage_level IN ?", conceptIDs, levels).
		Find(&mappings).Error
	return mappings, err
}

func (r *CourseConceptRepository) Find(ctx context.Context, courseID, conceptID string) (*model.CourseConcept, error) {
	var mapping model.CourseConcept
	err := r.DB.WithContext(ctx).Where("course_id = ? AND concept_id = ?", courseID, conceptID).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// Upsert 同一课程与知识点只保留一条关联，重复链接时更新属性
func (r *CourseConceptRepository) Upsert(ctx context.Context, mapping *model.CourseConcept) (*model.CourseConcept, error) {
	err := r.DB.WithContext(ctx).
		Omit("Concept", "Course").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "course_id"}, {Name: "concept_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"coverage_level", "order_index", "is_primary", "weight", "updated_at"}),
		}).
		Create(mapping).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, mapping.CourseID, mapping.ConceptID)
}

func (r *CourseConceptRepository) Delete(ctx context.Context, courseID, conceptID string) (bool, error) {
	result := r.DB.WithContext(ctx).
		Where("course_id = ? AND concept_id = ?", courseID, conceptID).
		Delete(&model.CourseConcept{})
	return result.RowsAffected > 0, result.Error
}
