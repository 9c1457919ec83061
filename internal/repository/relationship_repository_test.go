package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/testutil"
	"knowledge_graph_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipRepository_CreateIfAcyclic(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRelationshipRepository(db)
	ctx := context.Background()

	a := testutil.SeedConcept(t, db, "Variables", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "Functions", model.ConceptTypeTopic, model.DifficultyBeginner)
	c := testutil.SeedConcept(t, db, "Closures", model.ConceptTypeTopic, model.DifficultyIntermediate)

	for _, pair := range [][2]*model.Concept{{a, b}, {b, c}} {
		rel := &model.ConceptRelationship{
			SourceConceptID:  pair[0].ID,
			TargetConceptID:  pair[1].ID,
			RelationshipType: model.RelationshipPrerequisite,
			Strength:         0.8,
			IsActive:         true,
		}
		require.NoError(t, repo.CreateIfAcyclic(ctx, rel))
		assert.NotEmpty(t, rel.ID)
	}

	closing := &model.ConceptRelationship{
		SourceConceptID:  c.ID,
		TargetConceptID:  a.ID,
		RelationshipType: model.RelationshipPrerequisite,
		Strength:         0.5,
		IsActive:         true,
	}
	err := repo.CreateIfAcyclic(ctx, closing)
	assert.ErrorIs(t, err, util.ErrCircularDependency)

	var count int64
	require.NoError(t, db.Model(&model.ConceptRelationship{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	self := &model.ConceptRelationship{
		SourceConceptID:  a.ID,
		TargetConceptID:  a.ID,
		RelationshipType: model.RelationshipPrerequisite,
		IsActive:         true,
	}
	assert.ErrorIs(t, repo.CreateIfAcyclic(ctx, self), util.ErrCircularDependency)
}

func TestRelationshipRepository_WouldCreateCycle(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRelationshipRepository(db)
	ctx := context.Background()

	a := testutil.SeedConcept(t, db, "A", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "B", model.ConceptTypeTopic, model.DifficultyBeginner)
	c := testutil.SeedConcept(t, db, "C", model.ConceptTypeTopic, model.DifficultyBeginner)
	d := testutil.SeedConcept(t, db, "D", model.ConceptTypeTopic, model.DifficultyBeginner)

	testutil.SeedRelationship(t, db, a, b, model.RelationshipPrerequisite, 1)
	testutil.SeedRelationship(t, db, b, c, model.RelationshipPrerequisite, 1)
	// 非先修边不参与环检测
	testutil.SeedRelationship(t, db, c, d, model.RelationshipRelatedTo, 1)

	tests := []struct {
		name   string
		source *model.Concept
		target *model.Concept
		want   bool
	}{
		{"closes three node cycle", c, a, true},
		{"closes two node cycle", b, a, true},
		{"self loop", d, d, true},
		{"forward shortcut", a, c, false},
		{"related edge ignored", d, c, false},
		{"unconnected", d, a, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.WouldCreateCycle(ctx, tt.source.ID, tt.target.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelationshipRepository_WouldCreateCycleIgnoresInactiveEdges(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRelationshipRepository(db)
	ctx := context.Background()

	a := testutil.SeedConcept(t, db, "A", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "B", model.ConceptTypeTopic, model.DifficultyBeginner)
	rel := testutil.SeedRelationship(t, db, a, b, model.RelationshipPrerequisite, 1)

	cyclic, err := repo.WouldCreateCycle(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, cyclic)

	ok, err := repo.Deactivate(ctx, rel.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	cyclic, err = repo.WouldCreateCycle(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, cyclic)
}

func TestRelationshipRepository_PrerequisiteChain(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRelationshipRepository(db)
	ctx := context.Background()

	a := testutil.SeedConcept(t, db, "A", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "B", model.ConceptTypeTopic, model.DifficultyBeginner)
	c := testutil.SeedConcept(t, db, "C", model.ConceptTypeTopic, model.DifficultyBeginner)
	d := testutil.SeedConcept(t, db, "D", model.ConceptTypeTopic, model.DifficultyBeginner)

	// A -> B -> D, A -> D, C -> B
	testutil.SeedRelationship(t, db, a, b, model.RelationshipPrerequisite, 1)
	testutil.SeedRelationship(t, db, b, d, model.RelationshipPrerequisite, 1)
	testutil.SeedRelationship(t, db, a, d, model.RelationshipPrerequisite, 1)
	testutil.SeedRelationship(t, db, c, b, model.RelationshipPrerequisite, 1)

	chain, err := repo.PrerequisiteChain(ctx, d.ID)
	require.NoError(t, err)

	depths := map[string]int{}
	for _, item := range chain {
		depths[item.ConceptName] = item.Depth
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 2}, depths)

	empty, err := repo.PrerequisiteChain(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRelationshipRepository_PrerequisiteChainLattice(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRelationshipRepository(db)
	ctx := context.Background()

	// 每层 3 个节点且与下一层全连接，路径数为 3^layers
	const layers, width = 24, 3
	grid := make([][]*model.Concept, layers)
	for i := range grid {
		grid[i] = make([]*model.Concept, width)
		for j := range grid[i] {
			grid[i][j] = testutil.SeedConcept(t, db, fmt.Sprintf("L%02d-%d", i, j), model.ConceptTypeTopic, model.DifficultyBeginner)
			if i == 0 {
				continue
			}
			for _, prev := range grid[i-1] {
				testutil.SeedRelationship(t, db, prev, grid[i][j], model.RelationshipPrerequisite, 0.5)
			}
		}
	}
	top := grid[layers-1][0]

	start := time.Now()
	chain, err := repo.PrerequisiteChain(ctx, top.ID)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Less(t, elapsed, 3*time.Second)

	require.Len(t, chain, (layers-1)*width)
	for _, item := range chain {
		var layer, col int
		_, err := fmt.Sscanf(item.ConceptName, "L%02d-%d", &layer, &col)
		require.NoError(t, err)
		assert.Equal(t, layers-1-layer, item.Depth, item.ConceptName)
	}
}

func TestRelationshipRepository_FindByConcept(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRelationshipRepository(db)
	ctx := context.Background()

	a := testutil.SeedConcept(t, db, "A", model.ConceptTypeTopic, model.DifficultyBeginner)
	b := testutil.SeedConcept(t, db, "B", model.ConceptTypeTopic, model.DifficultyBeginner)
	c := testutil.SeedConcept(t, db, "C", model.ConceptTypeTopic, model.DifficultyBeginner)

	testutil.SeedRelationship(t, db, a, b, model.RelationshipPrerequisite, 0.9)
	testutil.SeedRelationship(t, db, c, a, model.RelationshipRelatedTo, 0.4)

	all, err := repo.FindByConcept(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, rel := range all {
		require.NotNil(t, rel.SourceConcept)
		require.NotNil(t, rel.TargetConcept)
	}

	prereqs, err := repo.FindByConcept(ctx, a.ID, model.RelationshipPrerequisite)
	require.NoError(t, err)
	require.Len(t, prereqs, 1)
	assert.Equal(t, "B", prereqs[0].TargetConcept.Name)

	incoming, err := repo.FindIncoming(ctx, b.ID, model.RelationshipPrerequisite)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, a.ID, incoming[0].SourceConceptID)
}
