package model

import (
	"time"

	"gorm.io/datatypes"
)

type MasteryLevel string

const (
	MasteryNone         MasteryLevel = "none"
	MasteryBeginner     MasteryLevel = "beginner"
	MasteryIntermediate MasteryLevel = "intermediate"
	MasteryAdvanced     MasteryLevel = "advanced"
	MasteryMastered     MasteryLevel = "mastered"
)

// MasteryLevels 按从低到高排列
var MasteryLevels = []MasteryLevel{
	MasteryNone,
	MasteryBeginner,
	MasteryIntermediate,
	MasteryAdvanced,
	MasteryMastered,
}

// Rank 返回等级序号，未知等级视为 none
func (l MasteryLevel) Rank() int {
	for i, level := range MasteryLevels {
		if level == l {
			return i
		}
	}
	return 0
}

// AtLeast reports whether l is the same as or above min on the ordinal scale.
func (l MasteryLevel) AtLeast(min MasteryLevel) bool {
	return l.Rank() >= min.Rank()
}

// Score 等级对应的数值掌握度
func (l MasteryLevel) Score() float64 {
	switch l {
	case MasteryBeginner:
		return 0.25
	case MasteryIntermediate:
		return 0.5
	case MasteryAdvanced:
		return 0.75
	case MasteryMastered:
		return 1.0
	}
	return 0
}

// IsMastered advanced 与 mastered 视为已掌握
func (l MasteryLevel) IsMastered() bool {
	return l == MasteryAdvanced || l == MasteryMastered
}

func (l MasteryLevel) Valid() bool {
	for _, level := range MasteryLevels {
		if level == l {
			return true
		}
	}
	return false
}

type EvidenceType string

const (
	EvidenceCourseCompletion EvidenceType = "course_completion"
	EvidenceAssessment       EvidenceType = "assessment"
	EvidencePractice         EvidenceType = "practice"
	EvidenceTimeSpent        EvidenceType = "time_spent"
)

func (t EvidenceType) Valid() bool {
	switch t {
	case EvidenceCourseCompletion, EvidenceAssessment, EvidencePractice, EvidenceTimeSpent:
		return true
	}
	return false
}

// EvidencePoint 一次学习行为的记录
type EvidencePoint struct {
	Type             EvidenceType `json:"type"`
	Date             time.Time    `json:"date"`
	Score            *float64     `json:"score,omitempty"`
	CourseID         string       `json:"course_id,omitempty"`
	AssessmentID     string       `json:"assessment_id,omitempty"`
	ExerciseID       string       `json:"exercise_id,omitempty"`
	Attempts         int          `json:"attempts,omitempty"`
	Success          *bool        `json:"success,omitempty"`
	TimeSpentMinutes float64      `json:"time_spent_minutes,omitempty"`
}

// ScoreOrDefault 未提供得分时按 1.0 计算
func (e EvidencePoint) ScoreOrDefault() float64 {
	if e.Score == nil {
		return 1.0
	}
	return *e.Score
}

// UserConceptMastery 用户对单个知识点的掌握记录
// evidence 只追加; mastery_level/confidence_score/raw_score/last_practiced 由重算写入
type UserConceptMastery struct {
	UUIDBase
	UserID          string                             `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_concept" json:"user_id"`
	ConceptID       string                             `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_concept" json:"concept_id"`
	Evidence        datatypes.JSONSlice[EvidencePoint] `json:"evidence"`
	MasteryLevel    MasteryLevel                       `gorm:"size:32;index" json:"mastery_level"`
	ConfidenceScore float64                            `json:"confidence_score"`
	RawScore        float64                            `json:"raw_score"`
	LastPracticed   *time.Time                         `json:"last_practiced,omitempty"`

	Concept *Concept `gorm:"foreignKey:ConceptID" json:"concept,omitempty"`
}

func (UserConceptMastery) TableName() string {
	return "user_concept_mastery"
}
