package model

import "time"

// ── 评审权重 ──
//
// 真实提交上 weight 是互评贡献权重 [0,16]；
// 示例提交上 weight 是角色判别：1=参考（标准）评审，0=练习评审。

const (
	WeightMin = 0
	WeightMax = 16

	WeightExampleTrainee   = 0 // 示例上的练习评审
	WeightExampleReference = 1 // 示例上的唯一参考评审
)

// ── 提交人申诉状态（三态）──

const (
	SubmitterFlagNone     = 0
	SubmitterFlagFlagged  = 1
	SubmitterFlagResolved = -1
)

// Assessment 评审表 — 对应 assessments
// 唯一约束 (submission_id, reviewer_id) 由存储层保证。
type Assessment struct {
	AssessmentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"assessment_id"`
	SubmissionID string `gorm:"type:uuid;not null;uniqueIndex:uq_assessment_sub_reviewer" json:"submission_id"`
	ReviewerID   string `gorm:"type:uuid;not null;uniqueIndex:uq_assessment_sub_reviewer" json:"reviewer_id"`
	Weight       int    `gorm:"type:smallint;not null;default:1"                          json:"weight"`

	Grade              *float64 `json:"grade,omitempty"`         // 评分表单得出的原始百分比 [0,100]
	GradingGrade       *float64 `json:"grading_grade,omitempty"` // 本次评审本身的质量分 [0,100]
	GradingGradeOver   *float64 `json:"grading_grade_over,omitempty"`
	GradingGradeOverBy *string  `gorm:"type:uuid" json:"grading_grade_over_by,omitempty"`

	SubmitterFlagged int    `gorm:"type:smallint;not null;default:0" json:"submitter_flagged"` // 0 | 1 | -1
	FeedbackAuthor   string `gorm:"type:text"                        json:"feedback_author,omitempty"`
	FeedbackReviewer string `gorm:"type:text"                        json:"feedback_reviewer,omitempty"`

	TimeGraded *time.Time `json:"time_graded,omitempty"`
	BaseModel

	// 关联
	Submission *Submission `gorm:"foreignKey:SubmissionID;references:SubmissionID" json:"submission,omitempty"`
	Reviewer   *User       `gorm:"foreignKey:ReviewerID;references:UserID"         json:"reviewer,omitempty"`
}

// TableName 指定表名
func (Assessment) TableName() string { return "assessments" }

// EffectiveGradingGrade 生效的评审质量分：逐条覆写优先于计算值
func (a *Assessment) EffectiveGradingGrade() *float64 {
	if a.GradingGradeOver != nil {
		return a.GradingGradeOver
	}
	return a.GradingGrade
}

// ClampWeight 将权重钳制到 [0,16]（权重钳制是显式指定的静默行为）
func ClampWeight(weight int) int {
	if weight < WeightMin {
		return WeightMin
	}
	if weight > WeightMax {
		return WeightMax
	}
	return weight
}

// AssessmentDimensionGrade 评分维度明细表 — 对应 assessment_dimension_grades
// 评分策略表单保存时写入，评审删除时级联清除。
type AssessmentDimensionGrade struct {
	DimensionGradeID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"     json:"dimension_grade_id"`
	AssessmentID     string  `gorm:"type:uuid;not null;uniqueIndex:uq_dimgrade_asm_dim" json:"assessment_id"`
	DimensionNumber  int     `gorm:"type:smallint;not null;uniqueIndex:uq_dimgrade_asm_dim" json:"dimension_number"`
	Grade            float64 `gorm:"not null"                                           json:"grade"` // 该维度的百分比得分
	Weight           int     `gorm:"type:smallint;not null;default:1"                   json:"weight"`
	PeerComment      string  `gorm:"type:text"                                          json:"peer_comment,omitempty"`
	BaseModel
}

// TableName 指定表名
func (AssessmentDimensionGrade) TableName() string { return "assessment_dimension_grades" }

// Aggregation 评审人质量分汇总表 — 对应 aggregations
// 每 (workshop, reviewer) 一行；没有任何已评分评审的评审人不产生行。
type Aggregation struct {
	AggregationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"aggregation_id"`
	WorkshopID    string     `gorm:"type:uuid;not null;uniqueIndex:uq_agg_ws_user"  json:"workshop_id"`
	UserID        string     `gorm:"type:uuid;not null;uniqueIndex:uq_agg_ws_user"  json:"user_id"`
	GradingGrade  *float64   `json:"grading_grade,omitempty"` // 百分比 [0,100]
	TimeGraded    *time.Time `json:"time_graded,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Aggregation) TableName() string { return "aggregations" }

// ExampleAssignment 示例分配表 — 对应 example_assignments
//
// 记录某评审人被要求练习评哪些示例。分配策略单调：行只增不删，
// 重新配置示例数量时按最早分配（最小 ID）决定每个分片的"当前"示例。
// 自增主键保留分配次序语义。
type ExampleAssignment struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"                  json:"id"`
	WorkshopID   string    `gorm:"type:uuid;not null;uniqueIndex:uq_ea_ws_user_sub" json:"workshop_id"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:uq_ea_ws_user_sub" json:"user_id"`
	SubmissionID string    `gorm:"type:uuid;not null;uniqueIndex:uq_ea_ws_user_sub" json:"submission_id"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"        json:"created_at"`

	// 关联
	Submission *Submission `gorm:"foreignKey:SubmissionID;references:SubmissionID" json:"submission,omitempty"`
}

// TableName 指定表名
func (ExampleAssignment) TableName() string { return "example_assignments" }
