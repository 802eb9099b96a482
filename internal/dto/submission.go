package dto

// ── 提交模块 DTO ──

// CreateSubmissionRequest 新建提交请求
type CreateSubmissionRequest struct {
	Title   string `json:"title"   binding:"required,min=1,max=255"`
	Content string `json:"content"`
}

// UpdateSubmissionRequest 修改提交请求
type UpdateSubmissionRequest struct {
	Title   *string `json:"title"   binding:"omitempty,min=1,max=255"`
	Content *string `json:"content"`
}

// CreateExampleRequest 新建示例提交请求（教师）
type CreateExampleRequest struct {
	Title   string `json:"title"   binding:"required,min=1,max=255"`
	Content string `json:"content"`
}

// OverrideGradeRequest 教师覆写提交成绩请求
// grade 为实际分值（满分刻度），服务端换算为存储百分比；null 表示撤销覆写
type OverrideGradeRequest struct {
	Grade    *float64 `json:"grade"`
	Feedback string   `json:"feedback"`
}

// PublishRequest 发布提交请求
type PublishRequest struct {
	Published bool `json:"published"`
}

// SubmissionResponse 提交信息响应
type SubmissionResponse struct {
	ID             string   `json:"id"`
	WorkshopID     string   `json:"workshop_id"`
	AuthorID       string   `json:"author_id"`
	AuthorName     string   `json:"author_name,omitempty"`
	Example        bool     `json:"example"`
	Title          string   `json:"title"`
	Content        string   `json:"content,omitempty"`
	Grade          *float64 `json:"grade,omitempty"`       // 存储百分比
	GradeValue     *float64 `json:"grade_value,omitempty"` // 换算到满分刻度的展示值
	GradeOver      *float64 `json:"grade_over,omitempty"`
	FeedbackAuthor string   `json:"feedback_author,omitempty"`
	Published      bool     `json:"published"`
	TimeGraded     string   `json:"time_graded,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}
