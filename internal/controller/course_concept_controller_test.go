package controller

import (
	"net/http"
	"testing"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/internal/testutil"
	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseConceptController_CheckThreshold(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)

	conceptRepo := repository.NewConceptRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	courseConceptRepo := repository.NewCourseConceptRepository(db)
	masteryRepo := repository.NewMasteryRepository(db)
	graph := service.NewKnowledgeGraphService(conceptRepo, relationshipRepo, courseConceptRepo,
		repository.NewCourseRepository(db), masteryRepo)
	prerequisites := service.NewPrerequisiteCheckService(conceptRepo, relationshipRepo, courseConceptRepo, masteryRepo, 0)
	courses := NewCourseConceptController(graph, prerequisites)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", &util.Claims{UserID: "learner-1", Role: model.Student})
		c.Next()
	})
	r.GET("/api/courses/:id/prerequisites/check", courses.Check)

	a := testutil.SeedConcept(t, db, "Arrays", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "Sorting", model.ConceptTypeTopic, model.DifficultyIntermediate)
	testutil.SeedRelationship(t, db, a, b, model.RelationshipPrerequisite, 0.9)
	course := testutil.SeedCourse(t, db, "Algorithms", 10)
	testutil.SeedCourseConcept(t, db, course, b, model.CoverageCovers)

	tests := []struct {
		name          string
		query         string
		wantStatus    int
		wantThreshold float64
	}{
		{"default", "", http.StatusOK, service.DefaultPrerequisiteThreshold},
		{"explicit", "?threshold=0.3", http.StatusOK, 0.3},
		{"unparsable falls back to default", "?threshold=abc", http.StatusOK, service.DefaultPrerequisiteThreshold},
		{"NaN", "?threshold=NaN", http.StatusBadRequest, 0},
		{"infinity", "?threshold=Inf", http.StatusBadRequest, 0},
		{"negative infinity", "?threshold=-Inf", http.StatusBadRequest, 0},
		{"above one", "?threshold=1.2", http.StatusBadRequest, 0},
		{"negative", "?threshold=-0.1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(r, http.MethodGet, "/api/courses/"+course.ID+"/prerequisites/check"+tt.query, nil)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			data := resp.Data.(map[string]interface{})
			assert.Equal(t, tt.wantThreshold, data["threshold"])
			assert.Equal(t, false, data["can_enroll"])
		})
	}
}
