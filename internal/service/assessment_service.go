package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"peerworkshop/backend/internal/dto"
	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
)

// ── 评审模块业务错误 ──

var (
	ErrAssessingNotAllowed = errors.New("当前阶段或时间窗口不允许评分")
	ErrNotAssessmentOwner  = errors.New("只能填写分配给自己的评审")
	ErrNotSubmissionAuthor = errors.New("只有提交作者可以申诉评审")
	ErrFlagNotPending      = errors.New("该评审没有待处理的申诉")
)

// AssessmentService 评审业务接口
type AssessmentService interface {
	GetByID(ctx context.Context, id string) (*dto.AssessmentResponse, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]dto.AssessmentResponse, error)
	// SaveGrade 通过评分策略表单保存评分；策略返回的原始成绩写入 assessment.grade
	SaveGrade(ctx context.Context, id string, req *dto.SaveAssessmentRequest, callerID string, canOverride bool) (*dto.AssessmentResponse, error)
	// Flag 提交作者申诉收到的评审（submitterflagged: 0→1）
	Flag(ctx context.Context, id string, callerID string) error
	// ResolveFlag 处理申诉（→-1）；裁定成立时同时清零权重，将其排除出汇总。
	// 这是唯一同时改动权重与汇总结果的管理操作
	ResolveFlag(ctx context.Context, id string, req *dto.ResolveFlagRequest, callerID string) error
	// OverrideGradingGrade 教师逐条覆写评审质量分；nil 撤销覆写
	OverrideGradingGrade(ctx context.Context, id string, req *dto.OverrideGradingGradeRequest, callerID string) error
}

type assessmentService struct {
	repo       *repository.Repository
	strategies *StrategyRegistry
	logger     *zap.Logger
}

// NewAssessmentService 创建 AssessmentService 实例
func NewAssessmentService(repo *repository.Repository, strategies *StrategyRegistry, logger *zap.Logger) AssessmentService {
	return &assessmentService{repo: repo, strategies: strategies, logger: logger}
}

func (s *assessmentService) GetByID(ctx context.Context, id string) (*dto.AssessmentResponse, error) {
	assessment, err := s.repo.Assessment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return toAssessmentResponse(assessment), nil
}

func (s *assessmentService) ListBySubmission(ctx context.Context, submissionID string) ([]dto.AssessmentResponse, error) {
	assessments, err := s.repo.Assessment.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	result := make([]dto.AssessmentResponse, 0, len(assessments))
	for i := range assessments {
		result = append(result, *toAssessmentResponse(&assessments[i]))
	}
	return result, nil
}

func (s *assessmentService) SaveGrade(ctx context.Context, id string, req *dto.SaveAssessmentRequest, callerID string, canOverride bool) (*dto.AssessmentResponse, error) {
	assessment, err := s.repo.Assessment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	if assessment.ReviewerID != callerID && !canOverride {
		return nil, ErrNotAssessmentOwner
	}

	submission := assessment.Submission
	if submission == nil {
		sub, err := s.repo.Submission.GetByID(ctx, assessment.SubmissionID)
		if err != nil {
			return nil, err
		}
		submission = sub
	}

	workshop, err := s.repo.Workshop.GetByID(ctx, submission.WorkshopID)
	if err != nil {
		return nil, err
	}

	snap := workshop.Snapshot()
	if submission.Example {
		if !snap.AssessingExamplesAllowed() && !canOverride {
			return nil, ErrAssessingNotAllowed
		}
	} else if !snap.AssessingAllowed(time.Now(), canOverride, canOverride) {
		return nil, ErrAssessingNotAllowed
	}

	strategy, err := s.strategies.Lookup(workshop.Strategy)
	if err != nil {
		return nil, err
	}
	rawGrade, err := strategy.SaveAssessment(ctx, assessment.AssessmentID, req)
	if err != nil {
		s.logger.Error("评分策略保存失败", zap.Error(err),
			zap.String("strategy", workshop.Strategy))
		return nil, err
	}

	now := time.Now()
	if err := s.repo.Assessment.UpdateGrade(ctx, assessment.AssessmentID, rawGrade, now); err != nil {
		return nil, err
	}
	assessment.Grade = rawGrade
	assessment.TimeGraded = &now

	// 参考评审的成绩就是示例的参考成绩，回填到示例提交上；
	// 示例切片按该列排序，练习评审（权重 0）不回填
	if submission.Example && assessment.Weight == model.WeightExampleReference {
		if err := s.repo.Submission.UpdateGrade(ctx, submission.SubmissionID, rawGrade, now); err != nil {
			return nil, err
		}
	}

	if req.FeedbackAuthor != "" || req.FeedbackReviewer != "" {
		assessment.FeedbackAuthor = req.FeedbackAuthor
		assessment.FeedbackReviewer = req.FeedbackReviewer
		if err := s.repo.Assessment.Update(ctx, assessment); err != nil {
			return nil, err
		}
	}

	return toAssessmentResponse(assessment), nil
}

func (s *assessmentService) Flag(ctx context.Context, id string, callerID string) error {
	assessment, err := s.repo.Assessment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssessmentNotFound
		}
		return err
	}

	submission := assessment.Submission
	if submission == nil {
		sub, err := s.repo.Submission.GetByID(ctx, assessment.SubmissionID)
		if err != nil {
			return err
		}
		submission = sub
	}

	workshop, err := s.repo.Workshop.GetByID(ctx, submission.WorkshopID)
	if err != nil {
		return err
	}
	resolver := resolverFor(s.repo, workshop.TeamMode)
	authors, err := resolver.AuthorsOf(ctx, submission)
	if err != nil {
		return err
	}
	if !containsString(authors, callerID) {
		return ErrNotSubmissionAuthor
	}

	return s.repo.Assessment.UpdateSubmitterFlag(ctx, id, model.SubmitterFlagFlagged)
}

func (s *assessmentService) ResolveFlag(ctx context.Context, id string, req *dto.ResolveFlagRequest, callerID string) error {
	assessment, err := s.repo.Assessment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssessmentNotFound
		}
		return err
	}
	if assessment.SubmitterFlagged != model.SubmitterFlagFlagged {
		return ErrFlagNotPending
	}

	if err := s.repo.Assessment.UpdateSubmitterFlag(ctx, id, model.SubmitterFlagResolved); err != nil {
		return err
	}
	if req.ZeroWeight {
		if err := s.repo.Assessment.UpdateWeight(ctx, id, model.WeightMin); err != nil {
			return err
		}
		s.logger.Info("申诉成立，评审权重清零",
			zap.String("assessment_id", id),
			zap.String("resolved_by", callerID),
		)
	}
	return nil
}

func (s *assessmentService) OverrideGradingGrade(ctx context.Context, id string, req *dto.OverrideGradingGradeRequest, callerID string) error {
	assessment, err := s.repo.Assessment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssessmentNotFound
		}
		return err
	}

	assessment.GradingGradeOver = req.GradingGrade
	if req.GradingGrade != nil {
		assessment.GradingGradeOverBy = &callerID
	} else {
		assessment.GradingGradeOverBy = nil
	}
	assessment.UpdatedBy = &callerID
	return s.repo.Assessment.Update(ctx, assessment)
}

// ── 辅助 ──

func toAssessmentResponse(a *model.Assessment) *dto.AssessmentResponse {
	resp := &dto.AssessmentResponse{
		ID:               a.AssessmentID,
		SubmissionID:     a.SubmissionID,
		ReviewerID:       a.ReviewerID,
		Weight:           a.Weight,
		Grade:            a.Grade,
		GradingGrade:     a.GradingGrade,
		GradingGradeOver: a.GradingGradeOver,
		SubmitterFlagged: a.SubmitterFlagged,
		FeedbackAuthor:   a.FeedbackAuthor,
		FeedbackReviewer: a.FeedbackReviewer,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
	if a.Reviewer != nil {
		resp.ReviewerName = a.Reviewer.LastName + " " + a.Reviewer.FirstName
	}
	if a.TimeGraded != nil {
		resp.TimeGraded = a.TimeGraded.Format(time.RFC3339)
	}
	return resp
}
