package model

import "fmt"

// MasteryBand 原始得分区间，Min 含、Max 不含；最高等级的区间包含 Max
type MasteryBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type RecencyDecay struct {
	Recent   float64 `json:"recent"`
	Moderate float64 `json:"moderate"`
	Old      float64 `json:"old"`
}

// RecencyThresholds 以整月计: 小于 ModerateMonths 为 recent，不小于 OldMonths 为 old
type RecencyThresholds struct {
	ModerateMonths int `json:"moderate_months"`
	OldMonths      int `json:"old_months"`
}

// MasteryCalculationConfig 掌握度计算参数快照，创建后不再修改
type MasteryCalculationConfig struct {
	EvidenceWeights   map[EvidenceType]float64     `json:"evidence_weights"`
	RecencyDecay      RecencyDecay                 `json:"recency_decay"`
	RecencyThresholds RecencyThresholds            `json:"recency_thresholds"`
	MasteryThresholds map[MasteryLevel]MasteryBand `json:"mastery_thresholds"`
}

// MasteryConfigOverride 部分覆盖，空字段沿用默认值
type MasteryConfigOverride struct {
	EvidenceWeights   map[EvidenceType]float64     `json:"evidence_weights,omitempty"`
	RecencyDecay      *RecencyDecay                `json:"recency_decay,omitempty"`
	RecencyThresholds *RecencyThresholds           `json:"recency_thresholds,omitempty"`
	MasteryThresholds map[MasteryLevel]MasteryBand `json:"mastery_thresholds,omitempty"`
}

func DefaultMasteryConfig() MasteryCalculationConfig {
	return MasteryCalculationConfig{
		EvidenceWeights: map[EvidenceType]float64{
			EvidenceCourseCompletion: 0.3,
			EvidenceAssessment:       0.4,
			EvidencePractice:         0.2,
			EvidenceTimeSpent:        0.1,
		},
		RecencyDecay: RecencyDecay{
			Recent:   1.0,
			Moderate: 0.8,
			Old:      0.5,
		},
		RecencyThresholds: RecencyThresholds{
			ModerateMonths: 6,
			OldMonths:      12,
		},
		MasteryThresholds: map[MasteryLevel]MasteryBand{
			MasteryNone:         {Min: 0, Max: 0.2},
			MasteryBeginner:     {Min: 0.2, Max: 0.4},
			MasteryIntermediate: {Min: 0.4, Max: 0.6},
			MasteryAdvanced:     {Min: 0.6, Max: 0.8},
			MasteryMastered:     {Min: 0.8, Max: 1.0},
		},
	}
}

// Merge 将覆盖项合并到当前配置并返回新快照，原配置不变
func (c MasteryCalculationConfig) Merge(o MasteryConfigOverride) MasteryCalculationConfig {
	merged := c.clone()
	for k, v := range o.EvidenceWeights {
		merged.EvidenceWeights[k] = v
	}
	if o.RecencyDecay != nil {
		merged.RecencyDecay = *o.RecencyDecay
	}
	if o.RecencyThresholds != nil {
		merged.RecencyThresholds = *o.RecencyThresholds
	}
	for k, v := range o.MasteryThresholds {
		merged.MasteryThresholds[k] = v
	}
	return merged
}

func (c MasteryCalculationConfig) clone() MasteryCalculationConfig {
	out := c
	out.EvidenceWeights = make(map[EvidenceType]float64, len(c.EvidenceWeights))
	for k, v := range c.EvidenceWeights {
		out.EvidenceWeights[k] = v
	}
	out.MasteryThresholds = make(map[MasteryLevel]MasteryBand, len(c.MasteryThresholds))
	for k, v := range c.MasteryThresholds {
		out.MasteryThresholds[k] = v
	}
	return out
}

// Validate 检查合并后的配置是否可用于计算
func (c MasteryCalculationConfig) Validate() error {
	for t, w := range c.EvidenceWeights {
		if !t.Valid() {
			return fmt.Errorf("unknown evidence type %q", t)
		}
		if w < 0 {
			return fmt.Errorf("evidence weight for %s must not be negative", t)
		}
	}
	for _, v := range []float64{c.RecencyDecay.Recent, c.RecencyDecay.Moderate, c.RecencyDecay.Old} {
		if v < 0 || v > 1 {
			return fmt.Errorf("recency multiplier %v out of range [0,1]", v)
		}
	}
	if c.RecencyThresholds.ModerateMonths < 0 || c.RecencyThresholds.OldMonths < c.RecencyThresholds.ModerateMonths {
		return fmt.Errorf("recency thresholds must satisfy 0 <= moderate <= old")
	}
	for level, band := range c.MasteryThresholds {
		if !level.Valid() {
			return fmt.Errorf("unknown mastery level %q", level)
		}
		if band.Min > band.Max {
			return fmt.Errorf("band %s has min greater than max", level)
		}
	}
	return nil
}
