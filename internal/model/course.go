package model

// Course 课程，只读取图谱推荐需要的字段
type Course struct {
	UUIDBase
	Title           string `gorm:"size:255;not null" json:"title"`
	Description     string `gorm:"type:text" json:"description"`
	EnrollmentCount int    `json:"enrollment_count"`
}

func (Course) TableName() string {
	return "courses"
}

type CoverageLevel string

const (
	CoverageIntroduces CoverageLevel = "introduces"
	CoverageCovers     CoverageLevel = "covers"
	CoverageMasters    CoverageLevel = "masters"
)

// Weight 课程完成时按覆盖深度折算得分
func (c CoverageLevel) Weight() float64 {
	switch c {
	case CoverageCovers:
		return 0.75
	case CoverageMasters:
		return 1.0
	}
	return 0.5
}

// CourseConcept 课程与知识点的多对多关联
type CourseConcept struct {
	UUIDBase
	CourseID      string        `gorm:"type:varchar(36);not null;uniqueIndex:idx_course_concept" json:"course_id"`
	ConceptID     string        `gorm:"type:varchar(36);not null;uniqueIndex:idx_course_concept" json:"concept_id"`
	CoverageLevel CoverageLevel `gorm:"size:32" json:"coverage_level"`
	OrderIndex    int           `json:"order_index"`
	IsPrimary     bool          `json:"is_primary"`
	Weight        float64       `json:"weight"`

	Concept *Concept `gorm:"foreignKey:ConceptID" json:"concept,omitempty"`
	Course  *Course  `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (CourseConcept) TableName() string {
	return "course_concepts"
}
