package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"knowledge_graph_backend/internal/aigen"
	mock_aigen "knowledge_graph_backend/internal/mocks/aigen"
	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

func newSuggestionService(t *testing.T) (*gorm.DB, *ConceptSuggestionService, *mock_aigen.MockGenerator) {
	t.Helper()
	db, graph := newGraphService(t)
	ctrl := gomock.NewController(t)
	gen := mock_aigen.NewMockGenerator(ctrl)
	svc := NewConceptSuggestionService(gen, repository.NewMemoryBatchStore(time.Hour), graph)
	svc.now = func() time.Time { return serviceNow }
	return db, svc, gen
}

func webCourseResult() *aigen.Result {
	return &aigen.Result{
		Success: true,
		Data: aigen.Data{
			Concepts: []aigen.Concept{
				{Name: "CSS", Type: model.ConceptTypeLanguage, DifficultyLevel: model.DifficultyBeginner, Description: "Styling"},
				{Name: "JavaScript", Type: model.ConceptTypeLanguage, DifficultyLevel: model.DifficultyIntermediate, Description: "Scripting"},
				{Name: "Bad Idea", Type: model.ConceptTypeTopic, DifficultyLevel: model.DifficultyBeginner},
			},
			Relationships: []aigen.Relationship{
				{SourceConcept: "HTML", TargetConcept: "CSS", RelationshipType: model.RelationshipPrerequisite, Strength: 0.7},
				{SourceConcept: "css", TargetConcept: "JavaScript", RelationshipType: model.RelationshipBuildsOn, Strength: 0.6},
				{SourceConcept: "JavaScript", TargetConcept: "Bad Idea", RelationshipType: model.RelationshipRelatedTo, Strength: 0.4},
				{SourceConcept: "CSS", TargetConcept: "HTML", RelationshipType: model.RelationshipPrerequisite, Strength: 0.5},
			},
			CourseMappings: []aigen.CourseMapping{
				{ConceptName: "CSS", CoverageLevel: model.CoverageCovers, IsPrimary: true, Weight: 0.8},
				{ConceptName: "Bad Idea", CoverageLevel: model.CoverageIntroduces, Weight: 0.2},
			},
			SourceData: map[string]interface{}{"modules": float64(4)},
		},
		Metadata: aigen.Metadata{Model: "llama3", Provider: "ollama", GenerationTimeMS: 900},
	}
}

func TestConceptSuggestionService_ApproveBatch(t *testing.T) {
	db, svc, gen := newSuggestionService(t)
	ctx := context.Background()

	html := &model.Concept{Name: "HTML", Slug: "html", Type: model.ConceptTypeLanguage, DifficultyLevel: model.DifficultyBeginner, IsActive: true}
	require.NoError(t, db.Create(html).Error)
	course := &model.Course{Title: "Web Basics", Description: "Build pages"}
	require.NoError(t, db.Create(course).Error)

	gen.EXPECT().
		Generate(gomock.Any(), aigen.Request{CourseID: course.ID, Context: "first course", Provider: "ollama"}).
		Return(webCourseResult(), nil)

	batch, err := svc.SuggestFromCourse(ctx, course.ID, SuggestFromCourseRequest{Context: "first course", AIProvider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionSourceCourse, batch.SourceType)
	assert.Equal(t, course.ID, batch.SourceID)
	assert.Equal(t, "Web Basics", batch.SourceData["title"])
	assert.Equal(t, float64(4), batch.SourceData["modules"])
	assert.Equal(t, "ollama", batch.AIProvider)
	assert.Equal(t, int64(900), batch.GenerationTimeMS)
	assert.True(t, serviceNow.Equal(batch.CreatedAt))
	require.Len(t, batch.Concepts, 3)
	assert.Equal(t, "concept-2", batch.Concepts[2].ID)
	assert.Equal(t, "relationship-3", batch.Relationships[3].ID)
	assert.Equal(t, "mapping-1", batch.CourseMappings[1].ID)
	for _, c := range batch.Concepts {
		assert.Equal(t, model.SuggestionPending, c.Status)
	}

	_, err = svc.SetItemStatus(ctx, batch.ID, []ItemStatusUpdate{
		{Kind: itemKindConcept, ItemID: "concept-2", Status: model.SuggestionRejected},
	})
	require.NoError(t, err)

	result, err := svc.ApproveBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ConceptsCreated)
	assert.Equal(t, 2, result.RelationshipsCreated)
	assert.Equal(t, 1, result.MappingsCreated)
	assert.ElementsMatch(t, []model.UnresolvedReference{
		{ItemID: "relationship-2", Kind: itemKindRelationship, Missing: []string{"Bad Idea"}},
		{ItemID: "mapping-1", Kind: itemKindMapping, Missing: []string{"Bad Idea"}},
	}, result.Unresolved)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "circular")

	reviewed, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionApproved, reviewed.Concepts[0].Status)
	assert.NotEmpty(t, reviewed.Concepts[0].CreatedConceptID)
	assert.Equal(t, model.SuggestionRejected, reviewed.Concepts[2].Status)
	assert.Equal(t, model.SuggestionApproved, reviewed.Relationships[0].Status)
	assert.NotEmpty(t, reviewed.Relationships[0].CreatedRelationshipID)
	assert.Equal(t, model.SuggestionApproved, reviewed.Relationships[1].Status)
	assert.Equal(t, model.SuggestionPending, reviewed.Relationships[2].Status)
	assert.Equal(t, model.SuggestionRejected, reviewed.Relationships[3].Status)
	assert.Equal(t, model.SuggestionApproved, reviewed.CourseMappings[0].Status)
	assert.Equal(t, model.SuggestionPending, reviewed.CourseMappings[1].Status)

	var concepts, relationships, mappings int64
	db.Model(&model.Concept{}).Count(&concepts)
	db.Model(&model.ConceptRelationship{}).Count(&relationships)
	db.Model(&model.CourseConcept{}).Count(&mappings)
	assert.Equal(t, int64(3), concepts)
	assert.Equal(t, int64(2), relationships)
	assert.Equal(t, int64(1), mappings)

	// 再次通过只处理仍为 pending 的条目
	again, err := svc.ApproveBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.ConceptsCreated)
	assert.Equal(t, 0, again.RelationshipsCreated)
	assert.Len(t, again.Unresolved, 2)
}

func TestConceptSuggestionService_SuggestRelatedConcepts(t *testing.T) {
	_, svc, gen := newSuggestionService(t)
	ctx := context.Background()

	gen.EXPECT().
		Generate(gomock.Any(), aigen.Request{ConceptName: "Recursion"}).
		Return(webCourseResult(), nil)

	batch, err := svc.SuggestRelatedConcepts(ctx, SuggestRelatedRequest{ConceptName: "Recursion"})
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionSourceConcept, batch.SourceType)
	assert.Equal(t, "Recursion", batch.SourceID)
	assert.Empty(t, batch.CourseMappings)
	assert.Len(t, batch.Relationships, 4)

	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.Concepts, stored.Concepts)
}

func TestConceptSuggestionService_ApproveBatchCountsRepeatedNames(t *testing.T) {
	tests := []struct {
		name        string
		concepts    []string
		wantCreated int
	}{
		{"distinct names", []string{"递归", "分治"}, 2},
		// 中文名称生成空 slug，回退为 UUID，同名条目都会写入
		{"repeated name", []string{"递归", " 递归 "}, 2},
		{"repeated name with slug conflict", []string{"Recursion", "recursion"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, svc, gen := newSuggestionService(t)
			ctx := context.Background()

			result := &aigen.Result{Success: true}
			for _, n := range tt.concepts {
				result.Data.Concepts = append(result.Data.Concepts, aigen.Concept{
					Name: n, Type: model.ConceptTypeTopic, DifficultyLevel: model.DifficultyBeginner,
				})
			}
			gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(result, nil)

			batch, err := svc.SuggestRelatedConcepts(ctx, SuggestRelatedRequest{ConceptName: "算法"})
			require.NoError(t, err)
			approved, err := svc.ApproveBatch(ctx, batch.ID)
			require.NoError(t, err)

			var stored int64
			require.NoError(t, db.Model(&model.Concept{}).Count(&stored).Error)
			assert.Equal(t, tt.wantCreated, approved.ConceptsCreated)
			assert.Equal(t, int64(tt.wantCreated), stored)
		})
	}
}

func TestConceptSuggestionService_GenerationFailures(t *testing.T) {
	db, svc, gen := newSuggestionService(t)
	ctx := context.Background()
	course := &model.Course{Title: "Algorithms"}
	require.NoError(t, db.Create(course).Error)

	tests := []struct {
		name    string
		result  *aigen.Result
		err     error
		wantErr error
	}{
		{"transport failure", nil, errors.New("connection refused"), util.ErrGenerationFailed},
		{"invalid payload", nil, fmt.Errorf("%w: bad enum", aigen.ErrInvalidPayload), util.ErrInvalidSuggestion},
		{"unsuccessful result", &aigen.Result{Success: false}, nil, util.ErrInvalidSuggestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(tt.result, tt.err)
			_, err := svc.SuggestFromCourse(ctx, course.ID, SuggestFromCourseRequest{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// 课程不存在时不调用生成
	_, err := svc.SuggestFromCourse(ctx, "missing-course", SuggestFromCourseRequest{})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestConceptSuggestionService_RejectBatch(t *testing.T) {
	db, svc, gen := newSuggestionService(t)
	ctx := context.Background()
	course := &model.Course{Title: "Web Basics"}
	require.NoError(t, db.Create(course).Error)

	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(webCourseResult(), nil)
	batch, err := svc.SuggestFromCourse(ctx, course.ID, SuggestFromCourseRequest{})
	require.NoError(t, err)

	rejected, err := svc.RejectBatch(ctx, batch.ID)
	require.NoError(t, err)
	for _, c := range rejected.Concepts {
		assert.Equal(t, model.SuggestionRejected, c.Status)
	}
	for _, r := range rejected.Relationships {
		assert.Equal(t, model.SuggestionRejected, r.Status)
	}
	for _, m := range rejected.CourseMappings {
		assert.Equal(t, model.SuggestionRejected, m.Status)
	}

	result, err := svc.ApproveBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Zero(t, result.ConceptsCreated)
	assert.Empty(t, result.Unresolved)

	var count int64
	db.Model(&model.Concept{}).Count(&count)
	assert.Zero(t, count)
}

func TestConceptSuggestionService_RejectBatchAfterPartialApproval(t *testing.T) {
	db, svc, gen := newSuggestionService(t)
	ctx := context.Background()

	html := &model.Concept{Name: "HTML", Slug: "html", Type: model.ConceptTypeLanguage, DifficultyLevel: model.DifficultyBeginner, IsActive: true}
	require.NoError(t, db.Create(html).Error)
	course := &model.Course{Title: "Web Basics"}
	require.NoError(t, db.Create(course).Error)

	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(webCourseResult(), nil)
	batch, err := svc.SuggestFromCourse(ctx, course.ID, SuggestFromCourseRequest{})
	require.NoError(t, err)
	_, err = svc.SetItemStatus(ctx, batch.ID, []ItemStatusUpdate{
		{Kind: itemKindConcept, ItemID: "concept-2", Status: model.SuggestionRejected},
	})
	require.NoError(t, err)

	// 通过后 relationship-2 与 mapping-1 仍为 pending
	_, err = svc.ApproveBatch(ctx, batch.ID)
	require.NoError(t, err)

	rejected, err := svc.RejectBatch(ctx, batch.ID)
	require.NoError(t, err)
	statuses := map[string]model.SuggestionStatus{}
	for _, c := range rejected.Concepts {
		statuses[c.ID] = c.Status
	}
	for _, r := range rejected.Relationships {
		statuses[r.ID] = r.Status
	}
	for _, m := range rejected.CourseMappings {
		statuses[m.ID] = m.Status
	}
	require.Len(t, statuses, 9)
	for id, status := range statuses {
		assert.Equal(t, model.SuggestionRejected, status, id)
	}
	assert.NotEmpty(t, rejected.Concepts[0].CreatedConceptID)

	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	for _, r := range stored.Relationships {
		assert.Equal(t, model.SuggestionRejected, r.Status, r.ID)
	}

	// 已写入的知识点保留，再次通过不产生新数据
	var concepts int64
	db.Model(&model.Concept{}).Count(&concepts)
	assert.Equal(t, int64(3), concepts)
	again, err := svc.ApproveBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Zero(t, again.ConceptsCreated)
	assert.Zero(t, again.RelationshipsCreated)
	assert.Empty(t, again.Unresolved)
}

func TestConceptSuggestionService_BatchLookups(t *testing.T) {
	_, svc, gen := newSuggestionService(t)
	ctx := context.Background()

	_, err := svc.GetBatch(ctx, "nope")
	assert.ErrorIs(t, err, util.ErrBatchNotFound)
	_, err = svc.ApproveBatch(ctx, "nope")
	assert.ErrorIs(t, err, util.ErrBatchNotFound)

	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(webCourseResult(), nil)
	batch, err := svc.SuggestRelatedConcepts(ctx, SuggestRelatedRequest{ConceptName: "Web"})
	require.NoError(t, err)

	_, err = svc.SetItemStatus(ctx, batch.ID, []ItemStatusUpdate{
		{Kind: itemKindMapping, ItemID: "mapping-0", Status: model.SuggestionRejected},
	})
	assert.ErrorIs(t, err, util.ErrSuggestionItem)
}

func TestConceptNameMap(t *testing.T) {
	names := ConceptNameMap{}
	names.Add("  Go Modules ", "id-1")

	assert.Equal(t, "id-1", names.ID("go modules"))
	assert.Equal(t, "id-1", names.ID("GO MODULES"))
	assert.Empty(t, names.Missing("Go Modules"))
	assert.Equal(t, []string{"Generics"}, names.Missing("go modules", "Generics"))
}
