package config

import "knowledge_graph_backend/internal/model"

// Override 转换为掌握度计算的部分覆盖配置
func (m MasteryConfig) Override() model.MasteryConfigOverride {
	var o model.MasteryConfigOverride

	if len(m.EvidenceWeights) > 0 {
		o.EvidenceWeights = make(map[model.EvidenceType]float64, len(m.EvidenceWeights))
		for k, v := range m.EvidenceWeights {
			o.EvidenceWeights[model.EvidenceType(k)] = v
		}
	}
	if m.RecencyDecay != nil {
		o.RecencyDecay = &model.RecencyDecay{
			Recent:   m.RecencyDecay.Recent,
			Moderate: m.RecencyDecay.Moderate,
			Old:      m.RecencyDecay.Old,
		}
	}
	if m.RecencyThresholds != nil {
		o.RecencyThresholds = &model.RecencyThresholds{
			ModerateMonths: m.RecencyThresholds.ModerateMonths,
			OldMonths:      m.RecencyThresholds.OldMonths,
		}
	}
	if len(m.MasteryThresholds) > 0 {
		o.MasteryThresholds = make(map[model.MasteryLevel]model.MasteryBand, len(m.MasteryThresholds))
		for k, v := range m.MasteryThresholds {
			o.MasteryThresholds[model.MasteryLevel(k)] = model.MasteryBand{Min: v.Min, Max: v.Max}
		}
	}
	return o
}
