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
	"peerworkshop/backend/pkg/grade"
)

// ── 提交模块业务错误 ──

var (
	ErrSubmissionNotFound   = errors.New("提交不存在")
	ErrSubmissionNotAllowed = errors.New("当前阶段或时间窗口不允许此操作")
	ErrSubmissionExists     = errors.New("该作者在此工作坊已有提交")
	ErrSubmissionNotOwner   = errors.New("只能修改自己的提交")
	ErrWorkshopMismatch     = errors.New("提交不属于该工作坊")
)

// SubmissionService 提交业务接口
type SubmissionService interface {
	// Create 新建真实提交；阶段与时间窗口由工作坊快照判定
	Create(ctx context.Context, workshopID string, req *dto.CreateSubmissionRequest, authorID string, ignoreDeadlines bool) (*dto.SubmissionResponse, error)
	// Update 修改提交；迟交标志不放宽修改窗口
	Update(ctx context.Context, id string, req *dto.UpdateSubmissionRequest, callerID string, ignoreDeadlines bool) (*dto.SubmissionResponse, error)
	GetByID(ctx context.Context, id string) (*dto.SubmissionResponse, error)
	ListByWorkshop(ctx context.Context, workshopID string, example bool) ([]dto.SubmissionResponse, error)
	// CreateExample 新建示例提交（教师）
	CreateExample(ctx context.Context, workshopID string, req *dto.CreateExampleRequest, callerID string) (*dto.SubmissionResponse, error)
	// Delete 删除提交并级联其评审（维度明细与附件先清）
	Delete(ctx context.Context, id string, callerID string) error
	// OverrideGrade 教师覆写提交成绩；覆写值完全取代计算值
	OverrideGrade(ctx context.Context, id string, req *dto.OverrideGradeRequest, callerID string) error
	SetPublished(ctx context.Context, id string, published bool, callerID string) error
}

type submissionService struct {
	repo      *repository.Repository
	fileStore FileStore
	logger    *zap.Logger
}

// NewSubmissionService 创建 SubmissionService 实例
func NewSubmissionService(repo *repository.Repository, fileStore FileStore, logger *zap.Logger) SubmissionService {
	return &submissionService{repo: repo, fileStore: fileStore, logger: logger}
}

func (s *submissionService) Create(ctx context.Context, workshopID string, req *dto.CreateSubmissionRequest, authorID string, ignoreDeadlines bool) (*dto.SubmissionResponse, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}

	snap := workshop.Snapshot()
	if !snap.CreatingSubmissionAllowed(time.Now(), ignoreDeadlines) {
		return nil, ErrSubmissionNotAllowed
	}

	// 团队模式下一个小组只有一条提交，作者归一到小组代表
	resolver := resolverFor(s.repo, snap.TeamMode)
	canonical, err := resolver.CanonicalAuthor(ctx, workshopID, authorID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Submission.GetByAuthor(ctx, workshopID, canonical); err == nil {
		return nil, ErrSubmissionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	submission := &model.Submission{
		WorkshopID: workshopID,
		AuthorID:   canonical,
		Title:      req.Title,
		Content:    req.Content,
	}
	submission.CreatedBy = &authorID

	if err := s.repo.Submission.Create(ctx, submission); err != nil {
		s.logger.Error("创建提交失败", zap.Error(err))
		return nil, err
	}
	return toSubmissionResponse(submission, workshop), nil
}

func (s *submissionService) Update(ctx context.Context, id string, req *dto.UpdateSubmissionRequest, callerID string, ignoreDeadlines bool) (*dto.SubmissionResponse, error) {
	submission, err := s.repo.Submission.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	workshop, err := s.repo.Workshop.GetByID(ctx, submission.WorkshopID)
	if err != nil {
		return nil, err
	}

	snap := workshop.Snapshot()
	if !snap.ModifyingSubmissionAllowed(time.Now(), ignoreDeadlines) {
		return nil, ErrSubmissionNotAllowed
	}

	// 团队模式下小组任一成员均可改
	resolver := resolverFor(s.repo, snap.TeamMode)
	authors, err := resolver.AuthorsOf(ctx, submission)
	if err != nil {
		return nil, err
	}
	if !containsString(authors, callerID) && !ignoreDeadlines {
		return nil, ErrSubmissionNotOwner
	}

	if req.Title != nil {
		submission.Title = *req.Title
	}
	if req.Content != nil {
		submission.Content = *req.Content
	}
	submission.UpdatedBy = &callerID

	if err := s.repo.Submission.Update(ctx, submission); err != nil {
		s.logger.Error("更新提交失败", zap.Error(err))
		return nil, err
	}
	return toSubmissionResponse(submission, workshop), nil
}

func (s *submissionService) GetByID(ctx context.Context, id string) (*dto.SubmissionResponse, error) {
	submission, err := s.repo.Submission.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	workshop, err := s.repo.Workshop.GetByID(ctx, submission.WorkshopID)
	if err != nil {
		return nil, err
	}
	return toSubmissionResponse(submission, workshop), nil
}

func (s *submissionService) ListByWorkshop(ctx context.Context, workshopID string, example bool) ([]dto.SubmissionResponse, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}
	submissions, err := s.repo.Submission.ListByWorkshop(ctx, workshopID, example)
	if err != nil {
		return nil, err
	}
	result := make([]dto.SubmissionResponse, 0, len(submissions))
	for i := range submissions {
		result = append(result, *toSubmissionResponse(&submissions[i], workshop))
	}
	return result, nil
}

func (s *submissionService) CreateExample(ctx context.Context, workshopID string, req *dto.CreateExampleRequest, callerID string) (*dto.SubmissionResponse, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}

	submission := &model.Submission{
		WorkshopID: workshopID,
		AuthorID:   callerID,
		Example:    true,
		Title:      req.Title,
		Content:    req.Content,
	}
	submission.CreatedBy = &callerID

	if err := s.repo.Submission.Create(ctx, submission); err != nil {
		s.logger.Error("创建示例提交失败", zap.Error(err))
		return nil, err
	}
	return toSubmissionResponse(submission, workshop), nil
}

func (s *submissionService) Delete(ctx context.Context, id string, callerID string) error {
	submission, err := s.repo.Submission.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	assessments, err := s.repo.Assessment.ListBySubmission(ctx, submission.SubmissionID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(assessments))
	for _, a := range assessments {
		ids = append(ids, a.AssessmentID)
	}

	// 级联次序：附件与维度明细先于评审行，评审行先于提交
	if err := s.fileStore.PurgeAssessmentFiles(ctx, ids); err != nil {
		return err
	}
	if err := s.fileStore.PurgeSubmissionFiles(ctx, submission.SubmissionID); err != nil {
		return err
	}
	if err := s.repo.DimensionGrade.DeleteByAssessments(ctx, ids); err != nil {
		return err
	}
	if err := s.repo.Assessment.DeleteByIDs(ctx, ids); err != nil {
		return err
	}
	return s.repo.Submission.Delete(ctx, id, callerID)
}

func (s *submissionService) OverrideGrade(ctx context.Context, id string, req *dto.OverrideGradeRequest, callerID string) error {
	submission, err := s.repo.Submission.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	workshop, err := s.repo.Workshop.GetByID(ctx, submission.WorkshopID)
	if err != nil {
		return err
	}

	// 录入为满分刻度的实际分值，存储为百分比；钳制负值/超上限
	percent := grade.RawGradeValue(req.Grade, workshop.Grade)
	if err := s.repo.Submission.UpdateGradeOver(ctx, id, percent, callerID); err != nil {
		s.logger.Error("覆写提交成绩失败", zap.Error(err))
		return err
	}
	if req.Feedback != "" {
		submission.FeedbackAuthor = req.Feedback
		submission.UpdatedBy = &callerID
		if err := s.repo.Submission.Update(ctx, submission); err != nil {
			return err
		}
	}
	return nil
}

func (s *submissionService) SetPublished(ctx context.Context, id string, published bool, callerID string) error {
	submission, err := s.repo.Submission.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}
	submission.Published = published
	submission.UpdatedBy = &callerID
	return s.repo.Submission.Update(ctx, submission)
}

// ── 辅助 ──

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

func toSubmissionResponse(sub *model.Submission, workshop *model.Workshop) *dto.SubmissionResponse {
	resp := &dto.SubmissionResponse{
		ID:             sub.SubmissionID,
		WorkshopID:     sub.WorkshopID,
		AuthorID:       sub.AuthorID,
		Example:        sub.Example,
		Title:          sub.Title,
		Content:        sub.Content,
		Grade:          sub.FinalGrade(),
		GradeOver:      sub.GradeOver,
		FeedbackAuthor: sub.FeedbackAuthor,
		Published:      sub.Published,
		CreatedAt:      sub.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      sub.UpdatedAt.Format(time.RFC3339),
	}
	if sub.Author != nil {
		resp.AuthorName = sub.Author.LastName + " " + sub.Author.FirstName
	}
	if sub.TimeGraded != nil {
		resp.TimeGraded = sub.TimeGraded.Format(time.RFC3339)
	}
	// 展示值换算：gradedecimals 仅在此处生效，存储百分比不截断
	resp.GradeValue = grade.ValueFromPercent(resp.Grade, workshop.Grade, workshop.GradeDecimals)
	return resp
}
