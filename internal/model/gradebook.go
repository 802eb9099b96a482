package model

import "time"

// ── 成绩册行类别 ──

const (
	GradebookKindSubmission = "submission" // 提交成绩
	GradebookKindGrading    = "grading"    // 评审质量分
)

// GradebookGrade 成绩册表 — 对应 gradebook_grades
//
// 成绩册收端：每次完整汇总推送一遍，而非逐条评审推送。
// raw_grade 已从存储百分比换算到工作坊满分刻度。
type GradebookGrade struct {
	GradebookGradeID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"   json:"gradebook_grade_id"`
	WorkshopID       string     `gorm:"type:uuid;not null;uniqueIndex:uq_gb_ws_user_kind" json:"workshop_id"`
	UserID           string     `gorm:"type:uuid;not null;uniqueIndex:uq_gb_ws_user_kind" json:"user_id"`
	Kind             string     `gorm:"type:varchar(20);not null;uniqueIndex:uq_gb_ws_user_kind" json:"kind"`
	RawGrade         *float64   `json:"raw_grade,omitempty"`
	Feedback         string     `gorm:"type:text" json:"feedback,omitempty"`
	DateSubmitted    *time.Time `json:"date_submitted,omitempty"`
	DateGraded       *time.Time `json:"date_graded,omitempty"`
	BaseModel
}

// TableName 指定表名
func (GradebookGrade) TableName() string { return "gradebook_grades" }
