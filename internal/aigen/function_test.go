package aigen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"knowledge_graph_backend/internal/config"
	"knowledge_graph_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successBody = `{
  "success": true,
  "data": {
    "concepts": [
      {"name": "HTML", "type": "language", "difficulty_level": "beginner", "description": "Markup", "estimated_hours": 4},
      {"name": "CSS", "type": "language", "difficulty_level": "beginner", "description": "Styles"}
    ],
    "relationships": [
      {"source_concept": "HTML", "target_concept": "CSS", "relationship_type": "prerequisite", "strength": 0.8}
    ],
    "course_mappings": [
      {"concept_name": "HTML", "coverage_level": "masters", "is_primary": true, "weight": 1}
    ]
  },
  "metadata": {"model": "llama3", "provider": "ollama", "generation_time_ms": 1200}
}`

func newFunctionServer(t *testing.T, handler http.HandlerFunc) (*FunctionGenerator, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	gen := NewFunctionGenerator(config.AIConfig{
		FunctionURL:   srv.URL + "/suggest",
		Provider:      "ollama",
		RetryAttempts: 2,
	})
	return gen, &calls
}

func TestFunctionGenerator_Generate(t *testing.T) {
	var body map[string]interface{}
	gen, calls := newFunctionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/suggest", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(successBody))
	})

	result, err := gen.Generate(context.Background(), Request{CourseID: "course-1", Context: "intro web"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	assert.Equal(t, "course-1", body["course_id"])
	assert.Equal(t, "ollama", body["aiProvider"])
	assert.Equal(t, "intro web", body["context"])
	assert.NotContains(t, body, "concept_name")

	require.Len(t, result.Data.Concepts, 2)
	assert.Equal(t, model.ConceptTypeLanguage, result.Data.Concepts[0].Type)
	require.NotNil(t, result.Data.Concepts[0].EstimatedHours)
	assert.Equal(t, 4.0, *result.Data.Concepts[0].EstimatedHours)
	assert.Nil(t, result.Data.Concepts[1].EstimatedHours)
	require.Len(t, result.Data.Relationships, 1)
	assert.Equal(t, model.RelationshipPrerequisite, result.Data.Relationships[0].RelationshipType)
	require.Len(t, result.Data.CourseMappings, 1)
	assert.Equal(t, model.CoverageMasters, result.Data.CourseMappings[0].CoverageLevel)

	assert.Equal(t, "llama3", result.Metadata.Model)
	assert.Equal(t, int64(1200), result.Metadata.GenerationTimeMS)
	assert.Equal(t, 2, result.Metadata.ConceptsCount)
	assert.Equal(t, 1, result.Metadata.RelationshipsCount)
}

func TestFunctionGenerator_Retries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{"server error is retried", http.StatusServiceUnavailable, 2, false},
		{"rate limit is retried", http.StatusTooManyRequests, 2, false},
		{"bad request is not retried", http.StatusBadRequest, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen int32
			gen, calls := newFunctionServer(t, func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&seen, 1) == 1 {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(`{"error":"nope"}`))
					return
				}
				_, _ = w.Write([]byte(successBody))
			})

			result, err := gen.Generate(context.Background(), Request{ConceptName: "HTML"})
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "400")
				return
			}
			require.NoError(t, err)
			assert.Len(t, result.Data.Concepts, 2)
		})
	}
}

func TestFunctionGenerator_GivesUpAfterAttempts(t *testing.T) {
	gen, calls := newFunctionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := gen.Generate(context.Background(), Request{ConceptName: "HTML"})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestFunctionGenerator_RejectedAndInvalid(t *testing.T) {
	t.Run("success false", func(t *testing.T) {
		gen, calls := newFunctionServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "error": "model unavailable"}`))
		})
		_, err := gen.Generate(context.Background(), Request{CourseID: "c1"})
		assert.ErrorIs(t, err, ErrGenerationRejected)
		assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	})

	t.Run("schema violation", func(t *testing.T) {
		gen, calls := newFunctionServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": true, "data": {"concepts": [], "relationships": [
				{"source_concept": "A", "target_concept": "B", "relationship_type": "prerequisite", "strength": 2}
			]}}`))
		})
		_, err := gen.Generate(context.Background(), Request{CourseID: "c1"})
		assert.ErrorIs(t, err, ErrInvalidPayload)
		assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	})
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, Request{CourseID: "c1"}.Validate())
	assert.NoError(t, Request{ConceptName: "Go"}.Validate())
	assert.Error(t, Request{}.Validate())
	assert.Error(t, Request{CourseID: "c1", ConceptName: "Go"}.Validate())
	assert.Error(t, Request{ConceptName: "   "}.Validate())
}

func TestNewGenerator(t *testing.T) {
	_, err := NewGenerator(config.AIConfig{Generator: "function"})
	assert.Error(t, err)

	gen, err := NewGenerator(config.AIConfig{Generator: "function", FunctionURL: "http://localhost/fn"})
	require.NoError(t, err)
	assert.IsType(t, &FunctionGenerator{}, gen)

	gen, err = NewGenerator(config.AIConfig{Generator: "openai"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, gen)

	_, err = NewGenerator(config.AIConfig{Generator: "carrier-pigeon"})
	assert.Error(t, err)
}
