package dto

// ── 工作坊模块 DTO ──

// CreateWorkshopRequest 创建工作坊请求
type CreateWorkshopRequest struct {
	Name          string  `json:"name"           binding:"required,min=2,max=255"`
	Description   string  `json:"description"`
	Grade         float64 `json:"grade"          binding:"omitempty,gt=0"`
	GradingGrade  float64 `json:"grading_grade"  binding:"omitempty,gt=0"`
	GradeDecimals int     `json:"grade_decimals" binding:"omitempty,min=0,max=5"`
	Strategy      string  `json:"strategy"       binding:"omitempty,max=30"`
	Evaluation    string  `json:"evaluation"     binding:"omitempty,max=30"`
	TeamMode      bool    `json:"team_mode"`
}

// UpdateWorkshopRequest 更新工作坊配置请求
type UpdateWorkshopRequest struct {
	Name                  *string  `json:"name"                    binding:"omitempty,min=2,max=255"`
	Description           *string  `json:"description"`
	Grade                 *float64 `json:"grade"                   binding:"omitempty,gt=0"`
	GradingGrade          *float64 `json:"grading_grade"           binding:"omitempty,gt=0"`
	GradeDecimals         *int     `json:"grade_decimals"          binding:"omitempty,min=0,max=5"`
	Strategy              *string  `json:"strategy"                binding:"omitempty,max=30"`
	Evaluation            *string  `json:"evaluation"              binding:"omitempty,max=30"`
	UseExamples           *bool    `json:"use_examples"`
	ExamplesMode          *int     `json:"examples_mode"           binding:"omitempty,oneof=0 1 2"`
	NumExamples           *int     `json:"num_examples"            binding:"omitempty,min=0"`
	UseCalibration        *bool    `json:"use_calibration"`
	CalibrationPhase      *int     `json:"calibration_phase"       binding:"omitempty,oneof=10 20"`
	CalibrationMethod     *string  `json:"calibration_method"      binding:"omitempty,max=30"`
	TeamMode              *bool    `json:"team_mode"`
	SubmissionStart       *string  `json:"submission_start"`  // RFC3339
	SubmissionEnd         *string  `json:"submission_end"`    // RFC3339
	AssessmentStart       *string  `json:"assessment_start"`  // RFC3339
	AssessmentEnd         *string  `json:"assessment_end"`    // RFC3339
	LateSubmissions       *bool    `json:"late_submissions"`
	PhaseSwitchAssessment *bool    `json:"phase_switch_assessment"`
}

// SwitchPhaseRequest 阶段切换请求
type SwitchPhaseRequest struct {
	Phase int `json:"phase" binding:"required"`
}

// WorkshopResponse 工作坊信息响应
type WorkshopResponse struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Description           string  `json:"description,omitempty"`
	Phase                 int     `json:"phase"`
	AvailablePhases       []int   `json:"available_phases"`
	Grade                 float64 `json:"grade"`
	GradingGrade          float64 `json:"grading_grade"`
	GradeDecimals         int     `json:"grade_decimals"`
	Strategy              string  `json:"strategy"`
	Evaluation            string  `json:"evaluation"`
	UseExamples           bool    `json:"use_examples"`
	ExamplesMode          int     `json:"examples_mode"`
	NumExamples           int     `json:"num_examples"`
	UseCalibration        bool    `json:"use_calibration"`
	CalibrationPhase      int     `json:"calibration_phase"`
	CalibrationMethod     string  `json:"calibration_method"`
	TeamMode              bool    `json:"team_mode"`
	SubmissionStart       string  `json:"submission_start,omitempty"`
	SubmissionEnd         string  `json:"submission_end,omitempty"`
	AssessmentStart       string  `json:"assessment_start,omitempty"`
	AssessmentEnd         string  `json:"assessment_end,omitempty"`
	LateSubmissions       bool    `json:"late_submissions"`
	PhaseSwitchAssessment bool    `json:"phase_switch_assessment"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}
