package dto

// ── 评分报表 DTO ──

// ReportRequest 报表查询参数
type ReportRequest struct {
	SortBy  string `form:"sort_by"  binding:"omitempty,oneof=name submission_title grade grading_grade"`
	SortDir string `form:"sort_dir" binding:"omitempty,oneof=asc desc"`
	PaginationRequest
}

// ReportAssessment 报表中的单条评审（含离群标记）
type ReportAssessment struct {
	AssessmentID string   `json:"assessment_id"`
	SubmissionID string   `json:"submission_id"`
	ReviewerID   string   `json:"reviewer_id"`
	ReviewerName string   `json:"reviewer_name,omitempty"`
	AuthorID     string   `json:"author_id"`
	AuthorName   string   `json:"author_name,omitempty"`
	Weight       int      `json:"weight"`
	Grade        *float64 `json:"grade,omitempty"`
	GradingGrade *float64 `json:"grading_grade,omitempty"` // 生效值（覆写优先）
	Discrepant   bool     `json:"discrepant"`              // 偏离 中位数±kσ 的离群评分
}

// ReportRow 报表行：一名参与者（或团队模式下一个小组）
type ReportRow struct {
	UserID          string             `json:"user_id"`
	Name            string             `json:"name"`
	GroupID         string             `json:"group_id,omitempty"`
	GroupName       string             `json:"group_name,omitempty"`
	SubmissionID    string             `json:"submission_id,omitempty"`
	SubmissionTitle string             `json:"submission_title,omitempty"`
	Grade           *float64           `json:"grade,omitempty"`         // 生效提交成绩（百分比）
	GradeValue      *float64           `json:"grade_value,omitempty"`   // 满分刻度展示值
	GradingGrade    *float64           `json:"grading_grade,omitempty"` // 评审人汇总质量分
	ReviewedBy      []ReportAssessment `json:"reviewed_by"`             // 其提交收到的评审
	ReviewerOf      []ReportAssessment `json:"reviewer_of"`             // 其给出的评审
}

// ReportResponse 报表响应
type ReportResponse struct {
	WorkshopID string      `json:"workshop_id"`
	TeamMode   bool        `json:"team_mode"`
	Rows       []ReportRow `json:"rows"`
	Total      int64       `json:"total"`
}

// CalibrationScoresResponse 校准分响应
type CalibrationScoresResponse struct {
	WorkshopID string             `json:"workshop_id"`
	Method     string             `json:"method"`
	Scores     map[string]float64 `json:"scores"` // userid → 百分比；未达门槛的评审人不出现
}
