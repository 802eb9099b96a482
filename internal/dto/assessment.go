package dto

// ── 评审模块 DTO ──

// AddAllocationRequest 分配评审请求
type AddAllocationRequest struct {
	SubmissionID string `json:"submission_id" binding:"required,uuid"`
	ReviewerID   string `json:"reviewer_id"   binding:"required,uuid"`
	Weight       *int   `json:"weight"` // 缺省为 1；越界值静默钳制到 [0,16]
}

// DeleteAllocationsRequest 批量删除评审请求
type DeleteAllocationsRequest struct {
	AssessmentIDs []string `json:"assessment_ids" binding:"required,min=1,dive,uuid"`
}

// DimensionGradeInput 评分表单的单维度输入
type DimensionGradeInput struct {
	DimensionNumber int     `json:"dimension_number" binding:"min=0"`
	Grade           float64 `json:"grade"            binding:"min=0,max=100"`
	Weight          *int    `json:"weight"`
	PeerComment     string  `json:"peer_comment"`
}

// SaveAssessmentRequest 保存评分表单请求
type SaveAssessmentRequest struct {
	Dimensions       []DimensionGradeInput `json:"dimensions" binding:"required,min=1,dive"`
	FeedbackAuthor   string                `json:"feedback_author"`
	FeedbackReviewer string                `json:"feedback_reviewer"`
}

// OverrideGradingGradeRequest 教师覆写评审质量分请求；null 表示撤销覆写
type OverrideGradingGradeRequest struct {
	GradingGrade *float64 `json:"grading_grade" binding:"omitempty,min=0,max=100"`
}

// ResolveFlagRequest 处理提交人申诉请求
type ResolveFlagRequest struct {
	// ZeroWeight 为 true 时同时将该评审权重清零（裁定申诉成立，排除出汇总）
	ZeroWeight bool `json:"zero_weight"`
}

// AssessmentResponse 评审信息响应
type AssessmentResponse struct {
	ID               string   `json:"id"`
	SubmissionID     string   `json:"submission_id"`
	ReviewerID       string   `json:"reviewer_id"`
	ReviewerName     string   `json:"reviewer_name,omitempty"`
	Weight           int      `json:"weight"`
	Grade            *float64 `json:"grade,omitempty"`
	GradingGrade     *float64 `json:"grading_grade,omitempty"`
	GradingGradeOver *float64 `json:"grading_grade_over,omitempty"`
	SubmitterFlagged int      `json:"submitter_flagged"`
	FeedbackAuthor   string   `json:"feedback_author,omitempty"`
	FeedbackReviewer string   `json:"feedback_reviewer,omitempty"`
	TimeGraded       string   `json:"time_graded,omitempty"`
	CreatedAt        string   `json:"created_at"`
}
