package model

import "time"

// ── 工作坊阶段编码 ──
//
// 阶段值刻意留有间隔，CALIBRATION(25) 仅在启用校准时按配置拼接进阶段序列。

const (
	PhaseSetup       = 10 // 准备阶段：配置评分表单与示例
	PhaseSubmission  = 20 // 提交阶段：学生提交作品
	PhaseCalibration = 25 // 校准阶段（条件拼接）：评审人练习评示例
	PhaseAssessment  = 30 // 互评阶段：评审人评分
	PhaseEvaluation  = 40 // 评估阶段：计算评审质量分
	PhaseClosed      = 50 // 关闭阶段：成绩汇总并推送成绩册
)

// ── 示例评审模式 ──

const (
	ExamplesVoluntary        = 0 // 自愿练习，任意阶段可做
	ExamplesBeforeSubmission = 1 // 必须在提交前完成（仅提交阶段可做）
	ExamplesBeforeAssessment = 2 // 必须在互评前完成（仅互评阶段可做）
)

// Workshop 工作坊表 — 对应 workshops
type Workshop struct {
	WorkshopID    string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"workshop_id"`
	Name          string  `gorm:"type:varchar(255);not null"                     json:"name"`
	Description   string  `gorm:"type:text"                                      json:"description,omitempty"`
	Phase         int     `gorm:"type:smallint;not null;default:10"              json:"phase"`
	Grade         float64 `gorm:"not null;default:80"                            json:"grade"`          // 提交成绩满分
	GradingGrade  float64 `gorm:"not null;default:20"                            json:"grading_grade"`  // 评审质量分满分
	GradeDecimals int     `gorm:"type:smallint;not null;default:0"               json:"grade_decimals"` // 仅展示换算用

	Strategy   string `gorm:"type:varchar(30);not null;default:'accumulative'" json:"strategy"`   // 评分策略名
	Evaluation string `gorm:"type:varchar(30);not null;default:'best'"         json:"evaluation"` // 评估器名

	UseExamples  bool `gorm:"not null;default:false" json:"use_examples"`
	ExamplesMode int  `gorm:"type:smallint;not null;default:0" json:"examples_mode"`
	NumExamples  int  `gorm:"type:smallint;not null;default:0" json:"num_examples"` // 每位评审人分配的示例数，0=全部

	UseCalibration    bool   `gorm:"not null;default:false"                       json:"use_calibration"`
	CalibrationPhase  int    `gorm:"type:smallint;not null;default:20"            json:"calibration_phase"` // 10 | 20
	CalibrationMethod string `gorm:"type:varchar(30);not null;default:'examples'" json:"calibration_method"`

	TeamMode bool `gorm:"not null;default:false" json:"team_mode"`

	SubmissionStart *time.Time `json:"submission_start,omitempty"`
	SubmissionEnd   *time.Time `json:"submission_end,omitempty"`
	AssessmentStart *time.Time `json:"assessment_start,omitempty"`
	AssessmentEnd   *time.Time `json:"assessment_end,omitempty"`

	LateSubmissions       bool `gorm:"not null;default:false" json:"late_submissions"`
	PhaseSwitchAssessment bool `gorm:"not null;default:false" json:"phase_switch_assessment"` // 提交截止后自动进入互评
	VersionedModel
}

// TableName 指定表名
func (Workshop) TableName() string { return "workshops" }

// KnownPhase 判断阶段编码是否合法
func KnownPhase(phase int) bool {
	switch phase {
	case PhaseSetup, PhaseSubmission, PhaseCalibration, PhaseAssessment, PhaseEvaluation, PhaseClosed:
		return true
	}
	return false
}

// ── 阶段快照 ──

// Snapshot 工作坊阶段/窗口的不可变快照。
// 每次请求构建一次传入各组件，避免处理过程中配置被旁路修改。
type Snapshot struct {
	Phase                 int
	UseExamples           bool
	ExamplesMode          int
	UseCalibration        bool
	CalibrationPhase      int
	TeamMode              bool
	LateSubmissions       bool
	PhaseSwitchAssessment bool
	SubmissionStart       *time.Time
	SubmissionEnd         *time.Time
	AssessmentStart       *time.Time
	AssessmentEnd         *time.Time
}

// Snapshot 构建当前配置的阶段快照
func (w *Workshop) Snapshot() Snapshot {
	return Snapshot{
		Phase:                 w.Phase,
		UseExamples:           w.UseExamples,
		ExamplesMode:          w.ExamplesMode,
		UseCalibration:        w.UseCalibration,
		CalibrationPhase:      w.CalibrationPhase,
		TeamMode:              w.TeamMode,
		LateSubmissions:       w.LateSubmissions,
		PhaseSwitchAssessment: w.PhaseSwitchAssessment,
		SubmissionStart:       w.SubmissionStart,
		SubmissionEnd:         w.SubmissionEnd,
		AssessmentStart:       w.AssessmentStart,
		AssessmentEnd:         w.AssessmentEnd,
	}
}

// AvailablePhases 返回有序的阶段序列。
// 启用校准时，CALIBRATION 拼接在配置的 calibration_phase（SETUP 或 SUBMISSION）之后。
func (s Snapshot) AvailablePhases() []int {
	phases := make([]int, 0, 6)
	for _, p := range []int{PhaseSetup, PhaseSubmission, PhaseAssessment, PhaseEvaluation, PhaseClosed} {
		phases = append(phases, p)
		if s.UseCalibration && p == s.CalibrationPhase {
			phases = append(phases, PhaseCalibration)
		}
	}
	return phases
}

// within 判断 now 是否落在 [start, end] 内；nil 边界视为不限
func within(now time.Time, start, end *time.Time, ignoreEnd bool) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if !ignoreEnd && end != nil && now.After(*end) {
		return false
	}
	return true
}

// CreatingSubmissionAllowed 新建提交是否允许。
// 仅提交阶段（允许迟交时互评阶段也可），且在提交窗口内；
// 允许迟交可越过截止时间，ignoreDeadlines 的操作者不受窗口限制。
func (s Snapshot) CreatingSubmissionAllowed(now time.Time, ignoreDeadlines bool) bool {
	if s.Phase != PhaseSubmission && !(s.Phase == PhaseAssessment && s.LateSubmissions) {
		return false
	}
	if ignoreDeadlines {
		return true
	}
	return within(now, s.SubmissionStart, s.SubmissionEnd, s.LateSubmissions)
}

// ModifyingSubmissionAllowed 修改提交是否允许。
// 仅提交阶段，且两端窗口都生效：允许迟交不放宽修改。
func (s Snapshot) ModifyingSubmissionAllowed(now time.Time, ignoreDeadlines bool) bool {
	if s.Phase != PhaseSubmission {
		return false
	}
	if ignoreDeadlines {
		return true
	}
	return within(now, s.SubmissionStart, s.SubmissionEnd, false)
}

// AssessingAllowed 评分是否允许。
// 互评阶段开放；评估阶段仅对具有成绩覆写能力的操作者开放（教师补评）。
func (s Snapshot) AssessingAllowed(now time.Time, canOverride, ignoreDeadlines bool) bool {
	if s.Phase != PhaseAssessment && !(s.Phase == PhaseEvaluation && canOverride) {
		return false
	}
	if ignoreDeadlines {
		return true
	}
	return within(now, s.AssessmentStart, s.AssessmentEnd, false)
}

// AssessingExamplesAllowed 练习评示例是否允许。
// 校准阶段无条件开放；其余按 examples_mode 与当前阶段判定。
func (s Snapshot) AssessingExamplesAllowed() bool {
	if !s.UseExamples {
		return false
	}
	if s.Phase == PhaseCalibration {
		return true
	}
	switch s.ExamplesMode {
	case ExamplesVoluntary:
		return true
	case ExamplesBeforeSubmission:
		return s.Phase == PhaseSubmission
	case ExamplesBeforeAssessment:
		return s.Phase == PhaseAssessment
	}
	return false
}
