package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
)

// ── 分配模块业务错误 ──

var (
	ErrAssessmentNotFound = errors.New("评审记录不存在")
	ErrReviewerIsAuthor   = errors.New("评审人不能评审自己的提交")
	ErrReferenceExists    = errors.New("该示例已有参考评审")
)

// FileStore 附件存储协作方。
// 级联删除时必须先于（或与）评审/提交行一并清除附件。
type FileStore interface {
	PurgeAssessmentFiles(ctx context.Context, assessmentIDs []string) error
	PurgeSubmissionFiles(ctx context.Context, submissionID string) error
}

// noopFileStore 附件存储缺省实现（本服务不落附件时使用）
type noopFileStore struct{}

// NewNoopFileStore 创建空附件存储
func NewNoopFileStore() FileStore { return noopFileStore{} }

func (noopFileStore) PurgeAssessmentFiles(context.Context, []string) error { return nil }
func (noopFileStore) PurgeSubmissionFiles(context.Context, string) error   { return nil }

// AllocationService 评审分配业务接口
type AllocationService interface {
	// AddAllocation 插入评审分配。
	// 权重静默钳制到 [0,16]；(submission, reviewer) 已存在时返回
	// pkgerrors.ErrAllocationExists，调用方按正常控制流分支处理。
	// 示例上 weight=1 表示唯一参考评审，插入前校验唯一性。
	AddAllocation(ctx context.Context, submissionID, reviewerID string, weight int) (string, error)
	// DeleteAssessments 批量删除评审：附件与维度明细先清，再单条多 id 删除评审行
	DeleteAssessments(ctx context.Context, ids []string) error
}

type allocationService struct {
	repo      *repository.Repository
	fileStore FileStore
	logger    *zap.Logger
}

// NewAllocationService 创建 AllocationService 实例
func NewAllocationService(repo *repository.Repository, fileStore FileStore, logger *zap.Logger) AllocationService {
	return &allocationService{repo: repo, fileStore: fileStore, logger: logger}
}

func (s *allocationService) AddAllocation(ctx context.Context, submissionID, reviewerID string, weight int) (string, error) {
	submission, err := s.repo.Submission.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSubmissionNotFound
		}
		return "", err
	}

	weight = model.ClampWeight(weight)

	if submission.Example {
		// 示例的参考评审（weight=1）全局唯一
		if weight == model.WeightExampleReference {
			count, err := s.repo.Assessment.CountReference(ctx, submissionID)
			if err != nil {
				return "", err
			}
			if count > 0 {
				return "", ErrReferenceExists
			}
		}
	} else {
		workshop, err := s.repo.Workshop.GetByID(ctx, submission.WorkshopID)
		if err != nil {
			return "", err
		}
		resolver := resolverFor(s.repo, workshop.TeamMode)
		authors, err := resolver.AuthorsOf(ctx, submission)
		if err != nil {
			return "", err
		}
		if containsString(authors, reviewerID) {
			return "", ErrReviewerIsAuthor
		}
	}

	assessment := &model.Assessment{
		SubmissionID: submissionID,
		ReviewerID:   reviewerID,
		Weight:       weight,
	}
	// 唯一约束冲突由仓储层翻译为 ErrAllocationExists，原样上抛
	if err := s.repo.Assessment.Create(ctx, assessment); err != nil {
		return "", err
	}

	s.logger.Info("评审分配已建立",
		zap.String("submission_id", submissionID),
		zap.String("reviewer_id", reviewerID),
		zap.Int("weight", weight),
	)
	return assessment.AssessmentID, nil
}

func (s *allocationService) DeleteAssessments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.fileStore.PurgeAssessmentFiles(ctx, ids); err != nil {
		return err
	}
	if err := s.repo.DimensionGrade.DeleteByAssessments(ctx, ids); err != nil {
		return err
	}
	if err := s.repo.Assessment.DeleteByIDs(ctx, ids); err != nil {
		s.logger.Error("删除评审记录失败", zap.Error(err))
		return err
	}
	return nil
}
