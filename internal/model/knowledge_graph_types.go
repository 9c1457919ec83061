package model

import "time"

// ConceptFilters 各条件之间为 AND 关系，空值表示不过滤
type ConceptFilters struct {
	Types        []ConceptType     `form:"type" json:"type,omitempty"`
	Difficulties []DifficultyLevel `form:"difficulty_level" json:"difficulty_level,omitempty"`
	IsActive     *bool             `form:"is_active" json:"is_active,omitempty"`
	Search       string            `form:"search" json:"search,omitempty"`
}

type PrerequisiteChainItem struct {
	ConceptID   string `json:"concept_id"`
	ConceptName string `json:"concept_name"`
	Depth       int    `json:"depth"`
}

const (
	WarningOrphanedConcept  = "orphaned_concept"
	WarningWeakRelationship = "weak_relationship"
	WarningDeepChain        = "deep_chain"
)

type GraphWarning struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	ConceptID      string `json:"concept_id,omitempty"`
	RelationshipID string `json:"relationship_id,omitempty"`
}

type GraphValidationResult struct {
	IsValid  bool           `json:"is_valid"`
	Errors   []string       `json:"errors"`
	Warnings []GraphWarning `json:"warnings"`
}

type PrerequisiteValidation struct {
	Allowed               bool      `json:"allowed"`
	MissingPrerequisites  []Concept `json:"missing_prerequisites"`
	MasteredPrerequisites []Concept `json:"mastered_prerequisites"`
}

// LearningPath 从 from 到 to 的最短学习路径，Steps 含首尾
type LearningPath struct {
	FromConceptID string    `json:"from_concept_id"`
	ToConceptID   string    `json:"to_concept_id"`
	Steps         []Concept `json:"steps"`
	TotalHours    float64   `json:"total_hours"`
}

type MasteryFilters struct {
	Levels            []MasteryLevel `form:"mastery_level" json:"mastery_level,omitempty"`
	MinConfidence     *float64       `form:"min_confidence" json:"min_confidence,omitempty"`
	RecentlyPracticed bool           `form:"recently_practiced" json:"recently_practiced,omitempty"`
}

type MasteryCalculationResult struct {
	MasteryLevel    MasteryLevel `json:"mastery_level"`
	ConfidenceScore float64      `json:"confidence_score"`
	RawScore        float64      `json:"raw_score"`
	LastPracticed   *time.Time   `json:"last_practiced,omitempty"`
	EvidenceCount   int          `json:"evidence_count"`
}

type UserProgressSummary struct {
	UserID              string                  `json:"user_id"`
	TotalConcepts       int                     `json:"total_concepts"`
	MasteredConcepts    int                     `json:"mastered_concepts"`
	InProgressConcepts  int                     `json:"in_progress_concepts"`
	MasteryByType       map[ConceptType]int     `json:"mastery_by_type"`
	MasteryByDifficulty map[DifficultyLevel]int `json:"mastery_by_difficulty"`
	LearningVelocity    float64                 `json:"learning_velocity"`
	StrongestAreas      []ConceptType           `json:"strongest_areas"`
	WeakestAreas        []ConceptType           `json:"weakest_areas"`
}

// PrerequisiteRequirement 课程知识点的一个先修要求
type PrerequisiteRequirement struct {
	ConceptID        string             `json:"concept_id"`
	ConceptName      string             `json:"concept_name"`
	RequiredMastery  float64            `json:"required_mastery"`
	CurrentMastery   float64            `json:"current_mastery"`
	CurrentLevel     MasteryLevel       `json:"current_level"`
	RequiredFor      []string           `json:"required_for"`
	SuggestedCourses []CourseSuggestion `json:"suggested_courses,omitempty"`
}

type CourseSuggestion struct {
	CourseID      string        `json:"course_id"`
	Title         string        `json:"title,omitempty"`
	CoverageLevel CoverageLevel `json:"coverage_level"`
}

type PrerequisiteCheckResult struct {
	CourseID               string                    `json:"course_id"`
	CanEnroll              bool                      `json:"can_enroll"`
	Threshold              float64                   `json:"threshold"`
	MissingPrerequisites   []PrerequisiteRequirement `json:"missing_prerequisites"`
	SatisfiedPrerequisites []PrerequisiteRequirement `json:"satisfied_prerequisites"`
}

type PrerequisiteTreeNode struct {
	ConceptID       string                 `json:"concept_id"`
	ConceptName     string                 `json:"concept_name"`
	DifficultyLevel DifficultyLevel        `json:"difficulty_level,omitempty"`
	Strength        float64                `json:"strength,omitempty"`
	Depth           int                    `json:"depth"`
	Truncated       bool                   `json:"truncated,omitempty"`
	Children        []PrerequisiteTreeNode `json:"children"`
}

type CoursePrerequisiteTree struct {
	CourseID string                 `json:"course_id"`
	Concepts []PrerequisiteTreeNode `json:"concepts"`
}

type RecommendationReason string

const (
	ReasonPrerequisiteMet       RecommendationReason = "prerequisite_met"
	ReasonRelatedToMastered     RecommendationReason = "related_to_mastered"
	ReasonCompletesLearningPath RecommendationReason = "completes_learning_path"
	ReasonFillsSkillGap         RecommendationReason = "fills_skill_gap"
)

type UserPreferences struct {
	Topics        []string `json:"topics,omitempty"`
	TimeAvailable *float64 `json:"time_available,omitempty"`
}

type RecommendationOptions struct {
	Limit                int              `json:"limit,omitempty"`
	ConceptTypes         []ConceptType    `json:"concept_types,omitempty"`
	DifficultyPreference DifficultyLevel  `json:"difficulty_preference,omitempty"`
	UserPreferences      *UserPreferences `json:"user_preferences,omitempty"`
}

// ScoreFactors 五个评分因子的原始值（未加权）
type ScoreFactors struct {
	Relationship float64 `json:"relationship"`
	Progression  float64 `json:"progression"`
	Preference   float64 `json:"preference"`
	Popularity   float64 `json:"popularity"`
	SkillGap     float64 `json:"skill_gap"`
}

type LearningRecommendation struct {
	Concept          Concept              `json:"concept"`
	Score            float64              `json:"score"`
	Reason           RecommendationReason `json:"reason"`
	Factors          ScoreFactors         `json:"factors"`
	PrerequisitesMet bool                 `json:"prerequisites_met"`
	EstimatedTime    float64              `json:"estimated_time"`
	RelatedCourses   []string             `json:"related_courses"`
}

type CourseRecommendation struct {
	CourseID            string   `json:"course_id"`
	Score               float64  `json:"score"`
	RecommendedConcepts []string `json:"recommended_concepts"`
}

// GraphSnapshot 活跃图谱的导出内容
type GraphSnapshot struct {
	GeneratedAt   time.Time             `json:"generated_at"`
	Concepts      []Concept             `json:"concepts"`
	Relationships []ConceptRelationship `json:"relationships"`
	Validation    GraphValidationResult `json:"validation"`
}

type GraphExportResult struct {
	Filename      string    `json:"filename"`
	URL           string    `json:"url"`
	Concepts      int       `json:"concepts"`
	Relationships int       `json:"relationships"`
	GeneratedAt   time.Time `json:"generated_at"`
}
