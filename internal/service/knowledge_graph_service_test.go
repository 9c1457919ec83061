package service

import (
	"context"
	"fmt"
	"testing"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/internal/testutil"
	"knowledge_graph_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newGraphService(t *testing.T) (*gorm.DB, *KnowledgeGraphService) {
	t.Helper()
	db := testutil.DB(t)
	return db, NewKnowledgeGraphService(
		repository.NewConceptRepository(db),
		repository.NewRelationshipRepository(db),
		repository.NewCourseConceptRepository(db),
		repository.NewCourseRepository(db),
		repository.NewMasteryRepository(db),
	)
}

func prerequisite(source, target *model.Concept, strength float64) CreateRelationshipRequest {
	return CreateRelationshipRequest{
		SourceConceptID:  source.ID,
		TargetConceptID:  target.ID,
		RelationshipType: model.RelationshipPrerequisite,
		Strength:         &strength,
	}
}

func TestKnowledgeGraphService_CreateConcept(t *testing.T) {
	_, svc := newGraphService(t)
	ctx := context.Background()

	hours := 4.0
	created, err := svc.CreateConcept(ctx, CreateConceptRequest{
		Name:            "Error Handling",
		Type:            model.ConceptTypePrinciple,
		DifficultyLevel: model.DifficultyIntermediate,
		EstimatedHours:  &hours,
		Metadata:        map[string]interface{}{"source": "manual"},
	})
	require.NoError(t, err)
	assert.Equal(t, "error-handling", created.Slug)
	assert.True(t, created.IsActive)

	found, err := svc.GetConceptBySlug(ctx, "error-handling")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "manual", found.Metadata["source"])

	name := "Errors and Panics"
	updated, err := svc.UpdateConcept(ctx, created.ID, UpdateConceptRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, "error-handling", updated.Slug)

	ok, err := svc.DeleteConcept(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := svc.GetConcept(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestKnowledgeGraphService_CreateConceptActiveFlag(t *testing.T) {
	active, inactive := true, false
	tests := []struct {
		name     string
		isActive *bool
		want     bool
	}{
		{"omitted", nil, true},
		{"explicitly active", &active, true},
		{"explicitly inactive", &inactive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, svc := newGraphService(t)
			created, err := svc.CreateConcept(context.Background(), CreateConceptRequest{
				Name:            "Draft Concept",
				Type:            model.ConceptTypeTopic,
				DifficultyLevel: model.DifficultyBeginner,
				IsActive:        tt.isActive,
			})
			require.NoError(t, err)

			var stored model.Concept
			require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
			assert.Equal(t, tt.want, stored.IsActive)
		})
	}
}

func TestKnowledgeGraphService_CreateRelationshipRefusesCycle(t *testing.T) {
	db, svc := newGraphService(t)
	ctx := context.Background()

	a := testutil.SeedConcept(t, db, "A", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "B", model.ConceptTypeTopic, model.DifficultyBeginner)
	c := testutil.SeedConcept(t, db, "C", model.ConceptTypeTopic, model.DifficultyBeginner)

	ab, err := svc.CreateRelationship(ctx, prerequisite(a, b, 0.8))
	require.NoError(t, err)
	require.NotNil(t, ab.SourceConcept)
	assert.Equal(t, "A", ab.SourceConcept.Name)
	_, err = svc.CreateRelationship(ctx, prerequisite(b, c, 0.8))
	require.NoError(t, err)

	cyclic, err := svc.CheckCircularDependency(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, cyclic)

	rel, err := svc.CreateRelationship(ctx, prerequisite(c, a, 0.8))
	assert.ErrorIs(t, err, util.ErrCircularDependency)
	assert.Nil(t, rel)

	rel, err = svc.CreateRelationship(ctx, prerequisite(a, a, 0.8))
	assert.ErrorIs(t, err, util.ErrCircularDependency)
	assert.Nil(t, rel)

	var count int64
	require.NoError(t, db.Model(&model.ConceptRelationship{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// 非先修关系不做环检测
	related, err := svc.CreateRelationship(ctx, CreateRelationshipRequest{
		SourceConceptID:  c.ID,
		TargetConceptID:  a.ID,
		RelationshipType: model.RelationshipRelatedTo,
	})
	require.NoError(t, err)
	assert.Equal(t, defaultStrength, related.Strength)
}

func TestKnowledgeGraphService_CreateRelationshipValidation(t *testing.T) {
	db, svc := newGraphService(t)
	ctx := context.Background()
	a := testutil.SeedConcept(t, db, "A", model.ConceptTypeTopic, model.DifficultyBeginner)

	_, err := svc.CreateRelationship(ctx, CreateRelationshipRequest{
		SourceConceptID:  a.ID,
		TargetConceptID:  "missing",
		RelationshipType: model.RelationshipBuildsOn,
	})
	assert.ErrorIs(t, err, util.ErrConceptNotFound)

	_, err = svc.CreateRelationship(ctx, CreateRelationshipRequest{
		SourceConceptID:  a.ID,
		TargetConceptID:  a.ID,
		RelationshipType: model.RelationshipRelatedTo,
	})
	assert.ErrorIs(t, err, util.ErrRelationshipInvalid)
}

func TestKnowledgeGraphService_PrerequisitesAndDependents(t *testing.T) {
	db, svc := newGraphService(t)
	ctx := context.Background()

	vars := testutil.SeedConcept(t, db, "Variables", model.ConceptTypeTopic, model.DifficultyBeginner)
	loops := testutil.SeedConcept(t, db, "Loops", model.ConceptTypeTopic, model.DifficultyBeginner)
	funcs := testutil.SeedConcept(t, db, "Functions", model.ConceptTypeTopic, model.DifficultyBeginner)
	testutil.SeedRelationship(t, db, vars, loops, model.RelationshipPrerequisite, 0.9)
	testutil.SeedRelationship(t, db, vars, funcs, model.RelationshipPrerequisite, 0.7)
	testutil.SeedRelationship(t, db, loops, funcs, model.RelationshipRelatedTo, 0.4)

	prereqs, err := svc.GetPrerequisites(ctx, loops.ID)
	require.NoError(t, err)
	require.Len(t, prereqs, 1)
	assert.Equal(t, "Variables", prereqs[0].Name)

	dependents, err := svc.GetDependents(ctx, vars.ID)
	require.NoError(t, err)
	assert.Len(t, dependents, 2)

	all, err := svc.GetRelationships(ctx, loops.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	related, err := svc.GetRelationships(ctx, loops.ID, model.RelationshipRelatedTo)
	require.NoError(t, err)
	assert.Len(t, related, 1)

	// 停用的前置不再出现
	_, err = svc.DeleteConcept(ctx, vars.ID)
	require.NoError(t, err)
	prereqs, err = svc.GetPrerequisites(ctx, loops.ID)
	require.NoError(t, err)
	assert.Empty(t, prereqs)
}

func TestKnowledgeGraphService_ValidateGraph(t *testing.T) {
	db, svc := newGraphService(t)
	ctx := context.Background()

	// 7 个知识点的先修链，末端的链长为 6
	chain := make([]*model.Concept, 7)
	for i := range chain {
		chain[i] = testutil.SeedConcept(t, db, fmt.Sprintf("Step %d", i), model.ConceptTypeSkill, model.DifficultyIntermediate)
		if i > 0 {
			testutil.SeedRelationship(t, db, chain[i-1], chain[i], model.RelationshipPrerequisite, 0.8)
		}
	}
	orphan := testutil.SeedConcept(t, db, "Lonely", model.ConceptTypeTool, model.DifficultyBeginner)
	weak := testutil.SeedRelationship(t, db, chain[0], chain[3], model.RelationshipRelatedTo, 0.1)

	result, err := svc.ValidateGraph(ctx)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)

	byType := map[string][]model.GraphWarning{}
	for _, w := range result.Warnings {
		byType[w.Type] = append(byType[w.Type], w)
	}
	require.Len(t, byType[model.WarningOrphanedConcept], 1)
	assert.Equal(t, orphan.ID, byType[model.WarningOrphanedConcept][0].ConceptID)
	require.Len(t, byType[model.WarningWeakRelationship], 1)
	assert.Equal(t, weak.ID, byType[model.WarningWeakRelationship][0].RelationshipID)
	require.Len(t, byType[model.WarningDeepChain], 1)
	assert.Equal(t, chain[6].ID, byType[model.WarningDeepChain][0].ConceptID)
}

func TestKnowledgeGraphService_ValidateGraphReportsStoredCycle(t *testing.T) {
	db, svc := newGraphService(t)
	ctx := context.Background()

	a := testutil.SeedConcept(t, db, "A", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "B", model.ConceptTypeTopic, model.DifficultyBeginner)
	// 绕过服务直接写入，模拟历史数据中的环
	testutil.SeedRelationship(t, db, a, b, model.RelationshipPrerequisite, 0.5)
	testutil.SeedRelationship(t, db, b, a, model.RelationshipPrerequisite, 0.5)

	result, err := svc.ValidateGraph(ctx)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 1)
}

func TestFindPrerequisiteCycle(t *testing.T) {
	edge := func(s, t string, typ model.RelationshipType) model.ConceptRelationship {
		return model.ConceptRelationship{SourceConceptID: s, TargetConceptID: t, RelationshipType: typ}
	}
	tests := []struct {
		name string
		rels []model.ConceptRelationship
		want []string
	}{
		{"empty", nil, nil},
		{"dag", []model.ConceptRelationship{
			edge("a", "b", model.RelationshipPrerequisite),
			edge("a", "c", model.RelationshipPrerequisite),
			edge("b", "c", model.RelationshipPrerequisite),
		}, nil},
		{"cycle", []model.ConceptRelationship{
			edge("a", "b", model.RelationshipPrerequisite),
			edge("b", "c", model.RelationshipPrerequisite),
			edge("c", "b", model.RelationshipPrerequisite),
		}, []string{"b", "c"}},
		{"other types ignored", []model.ConceptRelationship{
			edge("a", "b", model.RelationshipPrerequisite),
			edge("b", "a", model.RelationshipRelatedTo),
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findPrerequisiteCycle(tt.rels))
		})
	}
}

func TestKnowledgeGraphService_FindLearningPath(t *testing.T) {
	db, svc := newGraphService(t)
	ctx := context.Background()

	hours := func(name string, h float64) *model.Concept {
		c := testutil.SeedConcept(t, db, name, model.ConceptTypeTopic, model.DifficultyBeginner)
		require.NoError(t, db.Model(c).Update("estimated_hours", h).Error)
		return c
	}
	html := hours("HTML", 2)
	css := hours("CSS", 3)
	js := hours("JavaScript", 10)
	react := hours("React", 8)
	testutil.SeedRelationship(t, db, html, css, model.RelationshipPrerequisite, 0.8)
	testutil.SeedRelationship(t, db, css, js, model.RelationshipBuildsOn, 0.6)
	testutil.SeedRelationship(t, db, js, react, model.RelationshipPrerequisite, 0.9)
	// 更短的路径
	testutil.SeedRelationship(t, db, html, js, model.RelationshipPrerequisite, 0.5)
	// related_to 不参与路径
	testutil.SeedRelationship(t, db, html, react, model.RelationshipRelatedTo, 0.5)

	path, err := svc.FindLearningPath(ctx, html.ID, react.ID)
	require.NoError(t, err)
	require.NotNil(t, path)
	var names []string
	for _, step := range path.Steps {
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{"HTML", "JavaScript", "React"}, names)
	assert.Equal(t, 20.0, path.TotalHours)

	back, err := svc.FindLearningPath(ctx, react.ID, html.ID)
	require.NoError(t, err)
	assert.Nil(t, back)

	_, err = svc.FindLearningPath(ctx, html.ID, "missing")
	assert.ErrorIs(t, err, util.ErrConceptNotFound)
}

func TestKnowledgeGraphService_ValidatePrerequisites(t *testing.T) {
	db, svc := newGraphService(t)
	ctx := context.Background()

	target := testutil.SeedConcept(t, db, "Concurrency", model.ConceptTypeTopic, model.DifficultyAdvanced)
	p1 := testutil.SeedConcept(t, db, "Goroutines", model.ConceptTypeTopic, model.DifficultyIntermediate)
	p2 := testutil.SeedConcept(t, db, "Channels", model.ConceptTypeTopic, model.DifficultyIntermediate)
	testutil.SeedRelationship(t, db, p1, target, model.RelationshipPrerequisite, 0.8)
	testutil.SeedRelationship(t, db, p2, target, model.RelationshipPrerequisite, 0.8)
	standalone := testutil.SeedConcept(t, db, "Standalone", model.ConceptTypeTopic, model.DifficultyBeginner)

	masteryRepo := repository.NewMasteryRepository(db)
	require.NoError(t, masteryRepo.Create(ctx, &model.UserConceptMastery{UserID: "u1", ConceptID: p1.ID, MasteryLevel: model.MasteryIntermediate}))
	require.NoError(t, masteryRepo.Create(ctx, &model.UserConceptMastery{UserID: "u1", ConceptID: p2.ID, MasteryLevel: model.MasteryBeginner}))
	require.NoError(t, masteryRepo.Create(ctx, &model.UserConceptMastery{UserID: "u2", ConceptID: p1.ID, MasteryLevel: model.MasteryMastered}))

	tests := []struct {
		name     string
		user     string
		concept  string
		minLevel model.MasteryLevel
		allowed  bool
		missing  int
		mastered int
	}{
		{"all at beginner", "u1", target.ID, model.MasteryBeginner, true, 0, 2},
		{"one below intermediate", "u1", target.ID, model.MasteryIntermediate, false, 1, 1},
		{"no record counts as none", "u2", target.ID, model.MasteryBeginner, false, 1, 1},
		{"no record fails even for none", "u3", target.ID, model.MasteryNone, false, 2, 0},
		{"no prerequisites", "u3", standalone.ID, model.MasteryMastered, true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.ValidatePrerequisites(ctx, tt.user, tt.concept, tt.minLevel)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, result.Allowed)
			assert.Len(t, result.MissingPrerequisites, tt.missing)
			assert.Len(t, result.MasteredPrerequisites, tt.mastered)
		})
	}

	_, err := svc.ValidatePrerequisites(ctx, "u1", target.ID, "guru")
	assert.ErrorIs(t, err, util.ErrInvalidMasteryLevel)
}

func TestKnowledgeGraphService_LinkConceptToCourse(t *testing.T) {
	db, svc := newGraphService(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, db, "Web Basics", 12)
	concept := testutil.SeedConcept(t, db, "DOM", model.ConceptTypeTopic, model.DifficultyBeginner)

	mapping, err := svc.LinkConceptToCourse(ctx, course.ID, LinkConceptRequest{
		ConceptID:     concept.ID,
		CoverageLevel: model.CoverageCovers,
		IsPrimary:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, mapping.Weight)

	courses, err := svc.GetConceptCourses(ctx, concept.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, course.ID, courses[0].CourseID)

	_, err = svc.LinkConceptToCourse(ctx, "missing", LinkConceptRequest{ConceptID: concept.ID, CoverageLevel: model.CoverageCovers})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	_, err = svc.LinkConceptToCourse(ctx, course.ID, LinkConceptRequest{ConceptID: "missing", CoverageLevel: model.CoverageCovers})
	assert.ErrorIs(t, err, util.ErrConceptNotFound)

	ok, err := svc.UnlinkConceptFromCourse(ctx, course.ID, concept.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	mappings, err := svc.GetCourseConcepts(ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, mappings)
}
