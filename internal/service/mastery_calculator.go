package service

import (
	"knowledge_graph_backend/internal/model"
	"time"
)

// confidenceSteps 证据条数对应的置信度，5 条及以上为 1.0
var confidenceSteps = []float64{0, 0.3, 0.5, 0.7, 0.85}

// CalculateMasteryFromEvidence 根据证据与当前时间计算掌握度，纯函数
func CalculateMasteryFromEvidence(cfg model.MasteryCalculationConfig, evidence []model.EvidencePoint, now time.Time) model.MasteryCalculationResult {
	result := model.MasteryCalculationResult{
		MasteryLevel:  model.MasteryNone,
		EvidenceCount: len(evidence),
	}
	if len(evidence) == 0 {
		return result
	}

	var totalScore, totalWeight float64
	var latest time.Time
	for _, point := range evidence {
		weight := cfg.EvidenceWeights[point.Type]
		recency := recencyMultiplier(cfg, monthsBetween(point.Date, now))

		totalScore += point.ScoreOrDefault() * weight * recency
		totalWeight += weight

		if point.Date.After(latest) {
			latest = point.Date
		}
	}

	if totalWeight > 0 {
		result.RawScore = totalScore / totalWeight
	}
	result.MasteryLevel = levelForScore(cfg, result.RawScore)
	result.ConfidenceScore = confidenceForCount(len(evidence))
	if !latest.IsZero() {
		lp := latest.UTC()
		result.LastPracticed = &lp
	}
	return result
}

func recencyMultiplier(cfg model.MasteryCalculationConfig, months int) float64 {
	switch {
	case months >= cfg.RecencyThresholds.OldMonths:
		return cfg.RecencyDecay.Old
	case months >= cfg.RecencyThresholds.ModerateMonths:
		return cfg.RecencyDecay.Moderate
	}
	return cfg.RecencyDecay.Recent
}

// levelForScore 按等级从低到高匹配区间，先匹配者胜出
func levelForScore(cfg model.MasteryCalculationConfig, score float64) model.MasteryLevel {
	top := model.MasteryLevels[len(model.MasteryLevels)-1]
	for _, level := range model.MasteryLevels {
		band, ok := cfg.MasteryThresholds[level]
		if !ok {
			continue
		}
		if score < band.Min {
			continue
		}
		if score < band.Max || (level == top && score <= band.Max) {
			return level
		}
	}
	return model.MasteryNone
}

func confidenceForCount(count int) float64 {
	if count < len(confidenceSteps) {
		return confidenceSteps[count]
	}
	return 1.0
}

// monthsBetween 按日历月计算，不足零时取零
func monthsBetween(from, to time.Time) int {
	from, to = from.UTC(), to.UTC()
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if months < 0 {
		return 0
	}
	return months
}
