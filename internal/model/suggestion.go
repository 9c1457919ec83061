package model

import "time"

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionApproved SuggestionStatus = "approved"
	SuggestionRejected SuggestionStatus = "rejected"
)

type SuggestionSourceType string

const (
	SuggestionSourceCourse  SuggestionSourceType = "course"
	SuggestionSourceConcept SuggestionSourceType = "concept"
)

// ConceptSuggestion AI 建议的知识点，ID 为批次内的本地编号
type ConceptSuggestion struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Type             ConceptType      `json:"type"`
	DifficultyLevel  DifficultyLevel  `json:"difficulty_level"`
	Description      string           `json:"description"`
	EstimatedHours   *float64         `json:"estimated_hours,omitempty"`
	Status           SuggestionStatus `json:"status"`
	CreatedConceptID string           `json:"created_concept_id,omitempty"`
}

// RelationshipSuggestion 以知识点名称引用两端
type RelationshipSuggestion struct {
	ID                    string           `json:"id"`
	SourceConcept         string           `json:"source_concept"`
	TargetConcept         string           `json:"target_concept"`
	RelationshipType      RelationshipType `json:"relationship_type"`
	Strength              float64          `json:"strength"`
	Description           string           `json:"description,omitempty"`
	Status                SuggestionStatus `json:"status"`
	CreatedRelationshipID string           `json:"created_relationship_id,omitempty"`
}

type CourseMappingSuggestion struct {
	ID            string           `json:"id"`
	ConceptName   string           `json:"concept_name"`
	CoverageLevel CoverageLevel    `json:"coverage_level"`
	IsPrimary     bool             `json:"is_primary"`
	Weight        float64          `json:"weight"`
	Status        SuggestionStatus `json:"status"`
}

// SuggestionBatch 一次生成得到的建议集合，不写入关系库
type SuggestionBatch struct {
	ID               string                    `json:"id"`
	SourceType       SuggestionSourceType      `json:"source_type"`
	SourceID         string                    `json:"source_id"`
	SourceData       map[string]interface{}    `json:"source_data,omitempty"`
	Concepts         []ConceptSuggestion       `json:"concepts"`
	Relationships    []RelationshipSuggestion  `json:"relationships"`
	CourseMappings   []CourseMappingSuggestion `json:"course_mappings,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	AIProvider       string                    `json:"ai_provider"`
	Model            string                    `json:"model,omitempty"`
	GenerationTimeMS int64                     `json:"generation_time_ms"`
}

// UnresolvedReference 名称未能解析为知识点 id 的建议项
type UnresolvedReference struct {
	ItemID  string   `json:"item_id"`
	Kind    string   `json:"kind"`
	Missing []string `json:"missing"`
}

type BatchApprovalResult struct {
	ConceptsCreated      int                   `json:"concepts_created"`
	RelationshipsCreated int                   `json:"relationships_created"`
	MappingsCreated      int                   `json:"mappings_created"`
	Unresolved           []UnresolvedReference `json:"unresolved"`
	Errors               []string              `json:"errors"`
}
