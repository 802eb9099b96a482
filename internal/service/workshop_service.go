package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"peerworkshop/backend/internal/dto"
	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
)

// ── 工作坊模块业务错误 ──

var (
	ErrWorkshopNotFound = errors.New("工作坊不存在")
	ErrPhaseInvalid     = errors.New("非法的阶段编码")
	ErrPhaseUnavailable = errors.New("该阶段不在当前配置的阶段序列中")
)

// WorkshopService 工作坊业务接口
type WorkshopService interface {
	Create(ctx context.Context, req *dto.CreateWorkshopRequest, callerID string) (*dto.WorkshopResponse, error)
	GetByID(ctx context.Context, id string) (*dto.WorkshopResponse, error)
	List(ctx context.Context, page *dto.PaginationRequest) ([]dto.WorkshopResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateWorkshopRequest, callerID string) (*dto.WorkshopResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	// SwitchPhase 显式切换阶段。允许向后跳转；进入 CLOSED 时触发完整成绩汇总与成绩册推送
	SwitchPhase(ctx context.Context, id string, phase int, callerID string) (*dto.WorkshopResponse, error)
	// AutoSwitchAssessment 提交截止触发的自动切换：SUBMISSION→ASSESSMENT，
	// 标志与阶段原子变更，至多触发一次。返回实际切换的工作坊数
	AutoSwitchAssessment(ctx context.Context, now time.Time) (int, error)
}

type workshopService struct {
	repo       *repository.Repository
	evaluation EvaluationService
	logger     *zap.Logger
}

// NewWorkshopService 创建 WorkshopService 实例
func NewWorkshopService(repo *repository.Repository, evaluation EvaluationService, logger *zap.Logger) WorkshopService {
	return &workshopService{repo: repo, evaluation: evaluation, logger: logger}
}

func (s *workshopService) Create(ctx context.Context, req *dto.CreateWorkshopRequest, callerID string) (*dto.WorkshopResponse, error) {
	workshop := &model.Workshop{
		Name:              req.Name,
		Description:       req.Description,
		Phase:             model.PhaseSetup,
		Grade:             80,
		GradingGrade:      20,
		GradeDecimals:     req.GradeDecimals,
		Strategy:          "accumulative",
		Evaluation:        "best",
		CalibrationPhase:  model.PhaseSubmission,
		CalibrationMethod: "examples",
		TeamMode:          req.TeamMode,
	}
	if req.Grade > 0 {
		workshop.Grade = req.Grade
	}
	if req.GradingGrade > 0 {
		workshop.GradingGrade = req.GradingGrade
	}
	if req.Strategy != "" {
		workshop.Strategy = req.Strategy
	}
	if req.Evaluation != "" {
		workshop.Evaluation = req.Evaluation
	}
	workshop.CreatedBy = &callerID

	if err := s.repo.Workshop.Create(ctx, workshop); err != nil {
		s.logger.Error("创建工作坊失败", zap.Error(err))
		return nil, err
	}

	return toWorkshopResponse(workshop), nil
}

func (s *workshopService) GetByID(ctx context.Context, id string) (*dto.WorkshopResponse, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		s.logger.Error("查询工作坊失败", zap.Error(err))
		return nil, err
	}
	return toWorkshopResponse(workshop), nil
}

func (s *workshopService) List(ctx context.Context, page *dto.PaginationRequest) ([]dto.WorkshopResponse, int64, error) {
	workshops, total, err := s.repo.Workshop.List(ctx, page.GetOffset(), page.GetPageSize())
	if err != nil {
		s.logger.Error("查询工作坊列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.WorkshopResponse, 0, len(workshops))
	for i := range workshops {
		result = append(result, *toWorkshopResponse(&workshops[i]))
	}
	return result, total, nil
}

func (s *workshopService) Update(ctx context.Context, id string, req *dto.UpdateWorkshopRequest, callerID string) (*dto.WorkshopResponse, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}

	applyWorkshopUpdate(workshop, req)
	workshop.UpdatedBy = &callerID

	if err := s.repo.Workshop.Update(ctx, workshop); err != nil {
		s.logger.Error("更新工作坊失败", zap.Error(err))
		return nil, err
	}
	return toWorkshopResponse(workshop), nil
}

// Delete 删除工作坊并级联其全部提交与评审
func (s *workshopService) Delete(ctx context.Context, id string, callerID string) error {
	workshop, err := s.repo.Workshop.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkshopNotFound
		}
		return err
	}

	for _, example := range []bool{false, true} {
		submissions, err := s.repo.Submission.ListByWorkshop(ctx, workshop.WorkshopID, example)
		if err != nil {
			return err
		}
		for i := range submissions {
			if err := s.cascadeDeleteSubmission(ctx, &submissions[i], callerID); err != nil {
				return err
			}
		}
	}

	return s.repo.Workshop.Delete(ctx, id, callerID)
}

func (s *workshopService) cascadeDeleteSubmission(ctx context.Context, submission *model.Submission, callerID string) error {
	assessments, err := s.repo.Assessment.ListBySubmission(ctx, submission.SubmissionID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(assessments))
	for _, a := range assessments {
		ids = append(ids, a.AssessmentID)
	}
	// 维度明细先于评审行清除
	if err := s.repo.DimensionGrade.DeleteByAssessments(ctx, ids); err != nil {
		return err
	}
	if err := s.repo.Assessment.DeleteByIDs(ctx, ids); err != nil {
		return err
	}
	return s.repo.Submission.Delete(ctx, submission.SubmissionID, callerID)
}

func (s *workshopService) SwitchPhase(ctx context.Context, id string, phase int, callerID string) (*dto.WorkshopResponse, error) {
	if !model.KnownPhase(phase) {
		return nil, ErrPhaseInvalid
	}

	workshop, err := s.repo.Workshop.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}

	snap := workshop.Snapshot()
	available := false
	for _, p := range snap.AvailablePhases() {
		if p == phase {
			available = true
			break
		}
	}
	if !available {
		return nil, ErrPhaseUnavailable
	}

	if err := s.repo.Workshop.SwitchPhase(ctx, id, phase, callerID); err != nil {
		s.logger.Error("切换阶段失败", zap.Error(err))
		return nil, err
	}
	workshop.Phase = phase

	// 进入 CLOSED 是唯一带副作用的阶段入口：完整汇总并推送成绩册
	if phase == model.PhaseClosed {
		if err := s.evaluation.RunEvaluation(ctx, workshop.WorkshopID); err != nil {
			s.logger.Error("关闭阶段的成绩汇总失败", zap.Error(err),
				zap.String("workshop_id", workshop.WorkshopID))
			return nil, fmt.Errorf("关闭阶段的成绩汇总失败: %w", err)
		}
	}

	s.logger.Info("工作坊阶段已切换",
		zap.String("workshop_id", id),
		zap.Int("phase", phase),
	)
	return toWorkshopResponse(workshop), nil
}

func (s *workshopService) AutoSwitchAssessment(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.Workshop.ListAutoSwitchDue(ctx, now)
	if err != nil {
		s.logger.Error("查询到期自动切换工作坊失败", zap.Error(err))
		return 0, err
	}

	switched := 0
	for i := range due {
		ok, err := s.repo.Workshop.AdvanceToAssessment(ctx, due[i].WorkshopID)
		if err != nil {
			s.logger.Error("自动切换失败", zap.Error(err),
				zap.String("workshop_id", due[i].WorkshopID))
			continue
		}
		if ok {
			switched++
			s.logger.Info("提交截止，自动进入互评阶段",
				zap.String("workshop_id", due[i].WorkshopID))
		}
	}
	return switched, nil
}

// ── 辅助 ──

func applyWorkshopUpdate(w *model.Workshop, req *dto.UpdateWorkshopRequest) {
	if req.Name != nil {
		w.Name = *req.Name
	}
	if req.Description != nil {
		w.Description = *req.Description
	}
	if req.Grade != nil {
		w.Grade = *req.Grade
	}
	if req.GradingGrade != nil {
		w.GradingGrade = *req.GradingGrade
	}
	if req.GradeDecimals != nil {
		w.GradeDecimals = *req.GradeDecimals
	}
	if req.Strategy != nil {
		w.Strategy = *req.Strategy
	}
	if req.Evaluation != nil {
		w.Evaluation = *req.Evaluation
	}
	if req.UseExamples != nil {
		w.UseExamples = *req.UseExamples
	}
	if req.ExamplesMode != nil {
		w.ExamplesMode = *req.ExamplesMode
	}
	if req.NumExamples != nil {
		w.NumExamples = *req.NumExamples
	}
	if req.UseCalibration != nil {
		w.UseCalibration = *req.UseCalibration
	}
	if req.CalibrationPhase != nil {
		w.CalibrationPhase = *req.CalibrationPhase
	}
	if req.CalibrationMethod != nil {
		w.CalibrationMethod = *req.CalibrationMethod
	}
	if req.TeamMode != nil {
		w.TeamMode = *req.TeamMode
	}
	if req.LateSubmissions != nil {
		w.LateSubmissions = *req.LateSubmissions
	}
	if req.PhaseSwitchAssessment != nil {
		w.PhaseSwitchAssessment = *req.PhaseSwitchAssessment
	}
	w.SubmissionStart = parseTimePtr(req.SubmissionStart, w.SubmissionStart)
	w.SubmissionEnd = parseTimePtr(req.SubmissionEnd, w.SubmissionEnd)
	w.AssessmentStart = parseTimePtr(req.AssessmentStart, w.AssessmentStart)
	w.AssessmentEnd = parseTimePtr(req.AssessmentEnd, w.AssessmentEnd)
}

// parseTimePtr RFC3339 解析；空串清除，nil 保持原值
func parseTimePtr(raw *string, current *time.Time) *time.Time {
	if raw == nil {
		return current
	}
	if *raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return current
	}
	return &t
}

func toWorkshopResponse(w *model.Workshop) *dto.WorkshopResponse {
	resp := &dto.WorkshopResponse{
		ID:                    w.WorkshopID,
		Name:                  w.Name,
		Description:           w.Description,
		Phase:                 w.Phase,
		AvailablePhases:       w.Snapshot().AvailablePhases(),
		Grade:                 w.Grade,
		GradingGrade:          w.GradingGrade,
		GradeDecimals:         w.GradeDecimals,
		Strategy:              w.Strategy,
		Evaluation:            w.Evaluation,
		UseExamples:           w.UseExamples,
		ExamplesMode:          w.ExamplesMode,
		NumExamples:           w.NumExamples,
		UseCalibration:        w.UseCalibration,
		CalibrationPhase:      w.CalibrationPhase,
		CalibrationMethod:     w.CalibrationMethod,
		TeamMode:              w.TeamMode,
		LateSubmissions:       w.LateSubmissions,
		PhaseSwitchAssessment: w.PhaseSwitchAssessment,
		CreatedAt:             w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             w.UpdatedAt.Format(time.RFC3339),
	}
	resp.SubmissionStart = formatTimePtr(w.SubmissionStart)
	resp.SubmissionEnd = formatTimePtr(w.SubmissionEnd)
	resp.AssessmentStart = formatTimePtr(w.AssessmentStart)
	resp.AssessmentEnd = formatTimePtr(w.AssessmentEnd)
	return resp
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
