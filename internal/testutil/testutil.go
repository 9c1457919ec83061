package testutil

import (
	"context"
	"testing"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/pkg/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB 每个测试独立的内存 sqlite 库，已完成迁移
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	// 内存库随连接存在，只保留一个连接
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := database.AutoMigrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}

	tb.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func SeedConcept(tb testing.TB, db *gorm.DB, name string, typ model.ConceptType, difficulty model.DifficultyLevel) *model.Concept {
	tb.Helper()
	c := &model.Concept{
		Name:            name,
		Slug:            model.Slugify(name),
		Type:            typ,
		DifficultyLevel: difficulty,
		Description:     name + " description",
		IsActive:        true,
	}
	if err := db.WithContext(context.Background()).Create(c).Error; err != nil {
		tb.Fatalf("seed concept: %v", err)
	}
	return c
}

func SeedRelationship(tb testing.TB, db *gorm.DB, source, target *model.Concept, typ model.RelationshipType, strength float64) *model.ConceptRelationship {
	tb.Helper()
	r := &model.ConceptRelationship{
		SourceConceptID:  source.ID,
		TargetConceptID:  target.ID,
		RelationshipType: typ,
		Strength:         strength,
		IsActive:         true,
	}
	if err := db.WithContext(context.Background()).Create(r).Error; err != nil {
		tb.Fatalf("seed relationship: %v", err)
	}
	return r
}

func SeedCourse(tb testing.TB, db *gorm.DB, title string, enrollments int) *model.Course {
	tb.Helper()
	c := &model.Course{
		Title:           title,
		EnrollmentCount: enrollments,
	}
	if err := db.WithContext(context.Background()).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedCourseConcept(tb testing.TB, db *gorm.DB, course *model.Course, concept *model.Concept, coverage model.CoverageLevel) *model.CourseConcept {
	tb.Helper()
	cc := &model.CourseConcept{
		CourseID:      course.ID,
		ConceptID:     concept.ID,
		CoverageLevel: coverage,
		Weight:        1,
	}
	if err := db.WithContext(context.Background()).Create(cc).Error; err != nil {
		tb.Fatalf("seed course concept: %v", err)
	}
	return cc
}
