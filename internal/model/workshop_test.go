package model

import (
	"testing"
	"time"
)

func ts(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func phasesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ── AvailablePhases：校准阶段的条件拼接 ──

func TestAvailablePhases_CalibrationAfterSubmission(t *testing.T) {
	w := Workshop{UseCalibration: true, CalibrationPhase: PhaseSubmission}
	got := w.Snapshot().AvailablePhases()
	want := []int{PhaseSetup, PhaseSubmission, PhaseCalibration, PhaseAssessment, PhaseEvaluation, PhaseClosed}
	if !phasesEqual(got, want) {
		t.Errorf("期望 %v，实际 %v", want, got)
	}
}

func TestAvailablePhases_CalibrationAfterSetup(t *testing.T) {
	w := Workshop{UseCalibration: true, CalibrationPhase: PhaseSetup}
	got := w.Snapshot().AvailablePhases()
	want := []int{PhaseSetup, PhaseCalibration, PhaseSubmission, PhaseAssessment, PhaseEvaluation, PhaseClosed}
	if !phasesEqual(got, want) {
		t.Errorf("期望 %v，实际 %v", want, got)
	}
}

func TestAvailablePhases_NoCalibration(t *testing.T) {
	w := Workshop{UseCalibration: false, CalibrationPhase: PhaseSubmission}
	got := w.Snapshot().AvailablePhases()
	want := []int{PhaseSetup, PhaseSubmission, PhaseAssessment, PhaseEvaluation, PhaseClosed}
	if !phasesEqual(got, want) {
		t.Errorf("不启用校准时应省略 CALIBRATION，实际 %v", got)
	}
}

// ── 新建提交许可 ──

func TestCreatingSubmissionAllowed(t *testing.T) {
	now := *ts("2026-03-15T12:00:00Z")
	s := Snapshot{
		Phase:           PhaseSubmission,
		SubmissionStart: ts("2026-03-01T00:00:00Z"),
		SubmissionEnd:   ts("2026-03-31T23:59:59Z"),
	}

	if !s.CreatingSubmissionAllowed(now, false) {
		t.Error("提交阶段窗口内应允许新建")
	}

	s.Phase = PhaseAssessment
	if s.CreatingSubmissionAllowed(now, false) {
		t.Error("互评阶段默认不允许新建")
	}
	s.LateSubmissions = true
	if !s.CreatingSubmissionAllowed(now, false) {
		t.Error("允许迟交时互评阶段应可新建")
	}

	// 迟交标志越过截止时间
	s.Phase = PhaseSubmission
	late := *ts("2026-04-05T12:00:00Z")
	if !s.CreatingSubmissionAllowed(late, false) {
		t.Error("允许迟交时应越过截止时间")
	}
	s.LateSubmissions = false
	if s.CreatingSubmissionAllowed(late, false) {
		t.Error("不允许迟交时截止后不应可新建")
	}
	if !s.CreatingSubmissionAllowed(late, true) {
		t.Error("可忽略截止时间的操作者不受窗口限制")
	}

	// 开始时间之前
	early := *ts("2026-02-20T12:00:00Z")
	if s.CreatingSubmissionAllowed(early, false) {
		t.Error("提交窗口开始前不应可新建")
	}
}

func TestModifyingSubmissionAllowed(t *testing.T) {
	s := Snapshot{
		Phase:           PhaseSubmission,
		LateSubmissions: true,
		SubmissionEnd:   ts("2026-03-31T23:59:59Z"),
	}
	late := *ts("2026-04-05T12:00:00Z")

	// 迟交标志不放宽修改：修改始终受截止时间约束
	if s.ModifyingSubmissionAllowed(late, false) {
		t.Error("截止后即使允许迟交也不应可修改")
	}
	in := *ts("2026-03-15T12:00:00Z")
	if !s.ModifyingSubmissionAllowed(in, false) {
		t.Error("窗口内应可修改")
	}
	s.Phase = PhaseAssessment
	if s.ModifyingSubmissionAllowed(in, false) {
		t.Error("非提交阶段不应可修改")
	}
}

func TestAssessingAllowed(t *testing.T) {
	now := *ts("2026-04-10T12:00:00Z")
	s := Snapshot{
		Phase:           PhaseAssessment,
		AssessmentStart: ts("2026-04-01T00:00:00Z"),
		AssessmentEnd:   ts("2026-04-30T23:59:59Z"),
	}

	if !s.AssessingAllowed(now, false, false) {
		t.Error("互评阶段窗口内应允许评分")
	}

	s.Phase = PhaseEvaluation
	if s.AssessingAllowed(now, false, false) {
		t.Error("评估阶段普通评审人不应可评分")
	}
	if !s.AssessingAllowed(now, true, false) {
		t.Error("评估阶段具覆写能力者（教师）应可补评")
	}

	s.Phase = PhaseAssessment
	out := *ts("2026-05-02T12:00:00Z")
	if s.AssessingAllowed(out, false, false) {
		t.Error("互评窗口外不应可评分")
	}
	if !s.AssessingAllowed(out, false, true) {
		t.Error("可忽略截止时间者不受窗口限制")
	}
}

func TestAssessingExamplesAllowed(t *testing.T) {
	cases := []struct {
		name string
		s    Snapshot
		want bool
	}{
		{"未启用示例", Snapshot{Phase: PhaseSubmission}, false},
		{"自愿模式任意阶段", Snapshot{UseExamples: true, ExamplesMode: ExamplesVoluntary, Phase: PhaseEvaluation}, true},
		{"提交前模式-提交阶段", Snapshot{UseExamples: true, ExamplesMode: ExamplesBeforeSubmission, Phase: PhaseSubmission}, true},
		{"提交前模式-互评阶段", Snapshot{UseExamples: true, ExamplesMode: ExamplesBeforeSubmission, Phase: PhaseAssessment}, false},
		{"互评前模式-互评阶段", Snapshot{UseExamples: true, ExamplesMode: ExamplesBeforeAssessment, Phase: PhaseAssessment}, true},
		{"互评前模式-提交阶段", Snapshot{UseExamples: true, ExamplesMode: ExamplesBeforeAssessment, Phase: PhaseSubmission}, false},
		{"校准阶段无条件开放", Snapshot{UseExamples: true, ExamplesMode: ExamplesBeforeSubmission, Phase: PhaseCalibration}, true},
	}
	for _, tc := range cases {
		if got := tc.s.AssessingExamplesAllowed(); got != tc.want {
			t.Errorf("%s: 期望 %v，实际 %v", tc.name, tc.want, got)
		}
	}
}

func TestClampWeight(t *testing.T) {
	if ClampWeight(-3) != 0 {
		t.Error("负权重应钳制为0")
	}
	if ClampWeight(99) != 16 {
		t.Error("超上限权重应钳制为16")
	}
	if ClampWeight(7) != 7 {
		t.Error("范围内权重应保持不变")
	}
}

func TestKnownPhase(t *testing.T) {
	for _, p := range []int{10, 20, 25, 30, 40, 50} {
		if !KnownPhase(p) {
			t.Errorf("阶段 %d 应合法", p)
		}
	}
	for _, p := range []int{0, 15, 35, 60} {
		if KnownPhase(p) {
			t.Errorf("阶段 %d 不应合法", p)
		}
	}
}
