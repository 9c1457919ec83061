package service

import (
	"testing"
	"time"

	"knowledge_graph_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

var calcNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func ptrFloat(v float64) *float64 { return &v }

func TestCalculateMasteryFromEvidence_Empty(t *testing.T) {
	result := CalculateMasteryFromEvidence(model.DefaultMasteryConfig(), nil, calcNow)

	assert.Equal(t, model.MasteryNone, result.MasteryLevel)
	assert.Equal(t, 0.0, result.RawScore)
	assert.Equal(t, 0.0, result.ConfidenceScore)
	assert.Nil(t, result.LastPracticed)
}

func TestCalculateMasteryFromEvidence_Confidence(t *testing.T) {
	want := []float64{0, 0.3, 0.5, 0.7, 0.85, 1.0, 1.0}
	cfg := model.DefaultMasteryConfig()

	prev := -1.0
	for n, expected := range want {
		evidence := make([]model.EvidencePoint, n)
		for i := range evidence {
			evidence[i] = model.EvidencePoint{Type: model.EvidencePractice, Date: calcNow, Score: ptrFloat(0.5)}
		}
		got := CalculateMasteryFromEvidence(cfg, evidence, calcNow).ConfidenceScore
		assert.Equal(t, expected, got, "evidence count %d", n)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestCalculateMasteryFromEvidence_RecencyDecay(t *testing.T) {
	cfg := model.DefaultMasteryConfig()

	fresh := CalculateMasteryFromEvidence(cfg, []model.EvidencePoint{
		{Type: model.EvidenceAssessment, Date: calcNow, Score: ptrFloat(1.0)},
	}, calcNow)
	stale := CalculateMasteryFromEvidence(cfg, []model.EvidencePoint{
		{Type: model.EvidenceAssessment, Date: calcNow.AddDate(-1, -1, 0), Score: ptrFloat(1.0)},
	}, calcNow)

	assert.Equal(t, model.MasteryMastered, fresh.MasteryLevel)
	assert.InDelta(t, 1.0, fresh.RawScore, 1e-9)
	assert.InDelta(t, 0.5, stale.RawScore, 1e-9)
	assert.Equal(t, model.MasteryIntermediate, stale.MasteryLevel)
	assert.Greater(t, fresh.MasteryLevel.Rank(), stale.MasteryLevel.Rank())
}

func TestCalculateMasteryFromEvidence_WeightedAverage(t *testing.T) {
	cfg := model.DefaultMasteryConfig()
	evidence := []model.EvidencePoint{
		// 0.8 * 0.4 * 1.0
		{Type: model.EvidenceAssessment, Date: calcNow.AddDate(0, -1, 0), Score: ptrFloat(0.8)},
		// 1.0 * 0.2 * 0.8, 7 个月前
		{Type: model.EvidencePractice, Date: calcNow.AddDate(0, -7, 0)},
		// 0.5 * 0.1 * 1.0
		{Type: model.EvidenceTimeSpent, Date: calcNow, Score: ptrFloat(0.5)},
	}

	result := CalculateMasteryFromEvidence(cfg, evidence, calcNow)

	expected := (0.32 + 0.16 + 0.05) / 0.7
	assert.InDelta(t, expected, result.RawScore, 1e-9)
	assert.Equal(t, model.MasteryAdvanced, result.MasteryLevel)
	assert.Equal(t, 0.7, result.ConfidenceScore)
	assert.Equal(t, calcNow, *result.LastPracticed)
}

func TestCalculateMasteryFromEvidence_ExplicitZeroScore(t *testing.T) {
	result := CalculateMasteryFromEvidence(model.DefaultMasteryConfig(), []model.EvidencePoint{
		{Type: model.EvidenceAssessment, Date: calcNow, Score: ptrFloat(0)},
	}, calcNow)

	assert.Equal(t, 0.0, result.RawScore)
	assert.Equal(t, model.MasteryNone, result.MasteryLevel)
	assert.Equal(t, 0.3, result.ConfidenceScore)
}

func TestCalculateMasteryFromEvidence_ZeroWeightTypes(t *testing.T) {
	cfg := model.DefaultMasteryConfig().Merge(model.MasteryConfigOverride{
		EvidenceWeights: map[model.EvidenceType]float64{model.EvidenceTimeSpent: 0},
	})
	result := CalculateMasteryFromEvidence(cfg, []model.EvidencePoint{
		{Type: model.EvidenceTimeSpent, Date: calcNow, Score: ptrFloat(1)},
	}, calcNow)

	assert.Equal(t, 0.0, result.RawScore)
	assert.Equal(t, model.MasteryNone, result.MasteryLevel)
}

func TestLevelForScore(t *testing.T) {
	cfg := model.DefaultMasteryConfig()
	tests := []struct {
		score float64
		want  model.MasteryLevel
	}{
		{0, model.MasteryNone},
		{0.19, model.MasteryNone},
		{0.2, model.MasteryBeginner},
		{0.4, model.MasteryIntermediate},
		{0.6, model.MasteryAdvanced},
		{0.79, model.MasteryAdvanced},
		{0.8, model.MasteryMastered},
		{1.0, model.MasteryMastered},
		{1.2, model.MasteryNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levelForScore(cfg, tt.score), "score %v", tt.score)
	}
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		from time.Time
		want int
	}{
		{time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC), 6},
		{time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), 12},
		{time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, monthsBetween(tt.from, calcNow), "from %s", tt.from)
	}
}
