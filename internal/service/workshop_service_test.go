package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
)

// stubEvaluation 记录评估触发次数
type stubEvaluation struct {
	runs []string
	fail error
}

func (s *stubEvaluation) AggregateSubmissionGrades(context.Context, string) (int, error) {
	return 0, nil
}

func (s *stubEvaluation) AggregateGradingGrades(context.Context, string) ([]AggregationEvent, error) {
	return nil, nil
}

func (s *stubEvaluation) RunEvaluation(_ context.Context, workshopID string) error {
	s.runs = append(s.runs, workshopID)
	return s.fail
}

func newWorkshopFixture(t *testing.T) (*repository.Repository, *stubEvaluation, WorkshopService) {
	t.Helper()
	repo := newMockRepository()
	stub := &stubEvaluation{}
	svc := NewWorkshopService(repo, stub, zap.NewNop())
	return repo, stub, svc
}

func seedWorkshop(t *testing.T, repo *repository.Repository, mutate func(*model.Workshop)) *model.Workshop {
	t.Helper()
	workshop := &model.Workshop{
		Name:              "互评工作坊",
		Phase:             model.PhaseSetup,
		Grade:             80,
		GradingGrade:      20,
		Strategy:          "accumulative",
		Evaluation:        "best",
		CalibrationPhase:  model.PhaseSubmission,
		CalibrationMethod: "examples",
	}
	if mutate != nil {
		mutate(workshop)
	}
	if err := repo.Workshop.Create(context.Background(), workshop); err != nil {
		t.Fatalf("创建工作坊失败: %v", err)
	}
	return workshop
}

func TestSwitchPhaseUnknownCode(t *testing.T) {
	repo, _, svc := newWorkshopFixture(t)
	workshop := seedWorkshop(t, repo, nil)

	if _, err := svc.SwitchPhase(context.Background(), workshop.WorkshopID, 99, "teacher-1"); !errors.Is(err, ErrPhaseInvalid) {
		t.Fatalf("非法阶段编码应拒绝, got %v", err)
	}
}

func TestSwitchPhaseCalibrationRequiresConfig(t *testing.T) {
	repo, _, svc := newWorkshopFixture(t)
	workshop := seedWorkshop(t, repo, nil) // use_calibration=false

	_, err := svc.SwitchPhase(context.Background(), workshop.WorkshopID, model.PhaseCalibration, "teacher-1")
	if !errors.Is(err, ErrPhaseUnavailable) {
		t.Fatalf("未启用校准时 CALIBRATION 不在阶段序列中, got %v", err)
	}

	enabled := seedWorkshop(t, repo, func(w *model.Workshop) {
		w.UseCalibration = true
	})
	if _, err := svc.SwitchPhase(context.Background(), enabled.WorkshopID, model.PhaseCalibration, "teacher-1"); err != nil {
		t.Fatalf("启用校准后应允许切入 CALIBRATION: %v", err)
	}
}

func TestSwitchPhaseBackwardAllowed(t *testing.T) {
	repo, _, svc := newWorkshopFixture(t)
	workshop := seedWorkshop(t, repo, func(w *model.Workshop) {
		w.Phase = model.PhaseAssessment
	})

	resp, err := svc.SwitchPhase(context.Background(), workshop.WorkshopID, model.PhaseSubmission, "teacher-1")
	if err != nil {
		t.Fatalf("向后切换应允许: %v", err)
	}
	if resp.Phase != model.PhaseSubmission {
		t.Errorf("阶段应为 %d, got %d", model.PhaseSubmission, resp.Phase)
	}
}

func TestSwitchPhaseClosedTriggersEvaluation(t *testing.T) {
	repo, stub, svc := newWorkshopFixture(t)
	workshop := seedWorkshop(t, repo, func(w *model.Workshop) {
		w.Phase = model.PhaseEvaluation
	})

	if _, err := svc.SwitchPhase(context.Background(), workshop.WorkshopID, model.PhaseClosed, "teacher-1"); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}
	if len(stub.runs) != 1 || stub.runs[0] != workshop.WorkshopID {
		t.Errorf("进入 CLOSED 应触发一次完整评估, got %v", stub.runs)
	}

	// 其他阶段切换不触发
	if _, err := svc.SwitchPhase(context.Background(), workshop.WorkshopID, model.PhaseEvaluation, "teacher-1"); err != nil {
		t.Fatalf("切回评估阶段失败: %v", err)
	}
	if len(stub.runs) != 1 {
		t.Errorf("非 CLOSED 切换不应触发评估, got %d 次", len(stub.runs))
	}
}

func TestSwitchPhaseClosedEvaluationFailure(t *testing.T) {
	repo, stub, svc := newWorkshopFixture(t)
	stub.fail = errors.New("汇总故障")
	workshop := seedWorkshop(t, repo, func(w *model.Workshop) {
		w.Phase = model.PhaseEvaluation
	})

	if _, err := svc.SwitchPhase(context.Background(), workshop.WorkshopID, model.PhaseClosed, "teacher-1"); err == nil {
		t.Fatal("评估失败应上抛错误")
	}
}

func TestAutoSwitchAssessmentAtMostOnce(t *testing.T) {
	repo, _, svc := newWorkshopFixture(t)
	past := time.Now().Add(-time.Hour)
	workshop := seedWorkshop(t, repo, func(w *model.Workshop) {
		w.Phase = model.PhaseSubmission
		w.PhaseSwitchAssessment = true
		w.SubmissionEnd = &past
	})
	// 未开启自动切换的不受影响
	seedWorkshop(t, repo, func(w *model.Workshop) {
		w.Phase = model.PhaseSubmission
		w.SubmissionEnd = &past
	})

	switched, err := svc.AutoSwitchAssessment(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("自动切换失败: %v", err)
	}
	if switched != 1 {
		t.Fatalf("应切换 1 个工作坊, got %d", switched)
	}

	got, _ := repo.Workshop.GetByID(context.Background(), workshop.WorkshopID)
	if got.Phase != model.PhaseAssessment {
		t.Errorf("阶段应为 ASSESSMENT, got %d", got.Phase)
	}
	if got.PhaseSwitchAssessment {
		t.Error("自动切换标志应已清除")
	}

	// 第二轮不再命中
	again, err := svc.AutoSwitchAssessment(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("二次扫描失败: %v", err)
	}
	if again != 0 {
		t.Errorf("自动切换至多触发一次, got %d", again)
	}
}

func TestWorkshopDeleteCascades(t *testing.T) {
	repo, _, svc := newWorkshopFixture(t)
	workshop := seedWorkshop(t, repo, func(w *model.Workshop) {
		w.Phase = model.PhaseAssessment
	})
	sub := createSubmission(t, repo, workshop.WorkshopID, "author-1", false)
	a := addGradedAssessment(t, repo, sub.SubmissionID, "r1", fptr(70), 1)

	if err := svc.Delete(context.Background(), workshop.WorkshopID, "teacher-1"); err != nil {
		t.Fatalf("删除工作坊失败: %v", err)
	}
	if _, err := repo.Submission.GetByID(context.Background(), sub.SubmissionID); err == nil {
		t.Error("提交应级联删除")
	}
	if _, err := repo.Assessment.GetByID(context.Background(), a.AssessmentID); err == nil {
		t.Error("评审应级联删除")
	}
}
