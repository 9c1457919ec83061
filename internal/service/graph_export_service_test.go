package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"knowledge_graph_backend/internal/config"
	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphExportService_Export(t *testing.T) {
	db, graph := newGraphService(t)
	ctx := context.Background()
	dir := t.TempDir()

	storage := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: "local", LocalPath: dir}})
	require.IsType(t, &LocalStorageProvider{}, storage.Provider)
	svc := NewGraphExportService(graph, storage)
	svc.now = func() time.Time { return serviceNow }

	a := testutil.SeedConcept(t, db, "Loops", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "Iterators", model.ConceptTypeTopic, model.DifficultyIntermediate)
	testutil.SeedRelationship(t, db, a, b, model.RelationshipPrerequisite, 0.2)
	retired := testutil.SeedConcept(t, db, "GOTO", model.ConceptTypeTopic, model.DifficultyBeginner)
	require.NoError(t, db.Model(retired).Update("is_active", false).Error)

	result, err := svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "graph-exports/20260910T083000Z.json", result.Filename)
	assert.Equal(t, "/exports/graph-exports/20260910T083000Z.json", result.URL)
	assert.Equal(t, 2, result.Concepts)
	assert.Equal(t, 1, result.Relationships)

	raw, err := os.ReadFile(filepath.Join(dir, result.Filename))
	require.NoError(t, err)
	var snapshot model.GraphSnapshot
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	assert.Len(t, snapshot.Concepts, 2)
	assert.True(t, snapshot.Validation.IsValid)
	require.Len(t, snapshot.Validation.Warnings, 1)
	assert.Equal(t, model.WarningWeakRelationship, snapshot.Validation.Warnings[0].Type)
}

func TestNewStorageServiceFallsBackToLocal(t *testing.T) {
	storage := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: "minio", MinioEndpoint: "http://bad endpoint"}})
	assert.IsType(t, &LocalStorageProvider{}, storage.Provider)
}
