package model

import (
	"regexp"
	"strings"

	"gorm.io/datatypes"
)

type ConceptType string

const (
	ConceptTypeTopic     ConceptType = "topic"
	ConceptTypeSkill     ConceptType = "skill"
	ConceptTypeTool      ConceptType = "tool"
	ConceptTypeFramework ConceptType = "framework"
	ConceptTypeLanguage  ConceptType = "language"
	ConceptTypePrinciple ConceptType = "principle"
	ConceptTypePattern   ConceptType = "pattern"
)

type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// Value 难度数值: beginner=1, intermediate=2, advanced=3, 未知为 0
func (d DifficultyLevel) Value() float64 {
	switch d {
	case DifficultyBeginner:
		return 1
	case DifficultyIntermediate:
		return 2
	case DifficultyAdvanced:
		return 3
	}
	return 0
}

// Concept 知识图谱中的知识点
type Concept struct {
	UUIDBase
	Name            string            `gorm:"size:255;not null;index" json:"name"`
	Slug            string            `gorm:"size:255;uniqueIndex" json:"slug"`
	Type            ConceptType       `gorm:"size:32;index" json:"type"`
	DifficultyLevel DifficultyLevel   `gorm:"size:32;index" json:"difficulty_level"`
	Description     string            `gorm:"type:text" json:"description"`
	EstimatedHours  *float64          `json:"estimated_hours,omitempty"`
	IsActive        bool              `gorm:"not null;index" json:"is_active"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty"`
}

func (Concept) TableName() string {
	return "concepts"
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify 由名称生成 slug，例如 "C++ Pointers" -> "c-pointers"
func Slugify(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

type RelationshipType string

const (
	RelationshipPrerequisite  RelationshipType = "prerequisite"
	RelationshipBuildsOn      RelationshipType = "builds_on"
	RelationshipRelatedTo     RelationshipType = "related_to"
	RelationshipPartOf        RelationshipType = "part_of"
	RelationshipAlternativeTo RelationshipType = "alternative_to"
	RelationshipAppliesTo     RelationshipType = "applies_to"
)

// ConceptRelationship 知识点之间的有向边，source 为需要先掌握的一方
type ConceptRelationship struct {
	UUIDBase
	SourceConceptID  string           `gorm:"type:varchar(36);not null;index" json:"source_concept_id"`
	TargetConceptID  string           `gorm:"type:varchar(36);not null;index" json:"target_concept_id"`
	RelationshipType RelationshipType `gorm:"size:32;not null;index" json:"relationship_type"`
	Strength         float64          `json:"strength"`
	Description      string           `gorm:"type:text" json:"description,omitempty"`
	IsActive         bool             `gorm:"not null;index" json:"is_active"`

	SourceConcept *Concept `gorm:"foreignKey:SourceConceptID" json:"source_concept,omitempty"`
	TargetConcept *Concept `gorm:"foreignKey:TargetConceptID" json:"target_concept,omitempty"`
}

func (ConceptRelationship) TableName() string {
	return "concept_relationships"
}
