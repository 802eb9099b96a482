package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"peerworkshop/backend/internal/model"
)

// SubmissionRepository 提交数据访问接口
type SubmissionRepository interface {
	Create(ctx context.Context, submission *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	GetByAuthor(ctx context.Context, workshopID, authorID string) (*model.Submission, error)
	ListByWorkshop(ctx context.Context, workshopID string, example bool) ([]model.Submission, error)
	Update(ctx context.Context, submission *model.Submission) error
	UpdateGrade(ctx context.Context, id string, grade *float64, timeGraded time.Time) error
	UpdateGradeOver(ctx context.Context, id string, gradeOver *float64, overBy string) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, submission *model.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("submission_id = ?", id).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetByAuthor 按作者查真实提交（软删除行由 gorm 自动排除）
func (r *submissionRepo) GetByAuthor(ctx context.Context, workshopID, authorID string) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.WithContext(ctx).
		Where("workshop_id = ? AND author_id = ? AND example = ?", workshopID, authorID, false).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListByWorkshop 列出工作坊内的真实提交或示例提交。
// 示例按 (grade, title, submission_id) 排序，为分片算法提供确定性次序。
func (r *submissionRepo) ListByWorkshop(ctx context.Context, workshopID string, example bool) ([]model.Submission, error) {
	var submissions []model.Submission
	db := r.db.WithContext(ctx).
		Preload("Author").
		Where("workshop_id = ? AND example = ?", workshopID, example)
	if example {
		db = db.Order("grade ASC NULLS FIRST, title ASC, submission_id ASC")
	} else {
		db = db.Order("created_at ASC, submission_id ASC")
	}
	err := db.Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) Update(ctx context.Context, submission *model.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

// UpdateGrade 回写汇总成绩与评分时间（调用方已做浮点容差判断）
func (r *submissionRepo) UpdateGrade(ctx context.Context, id string, grade *float64, timeGraded time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("submission_id = ?", id).
		Updates(map[string]interface{}{
			"grade":       grade,
			"time_graded": timeGraded,
		}).Error
}

func (r *submissionRepo) UpdateGradeOver(ctx context.Context, id string, gradeOver *float64, overBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("submission_id = ?", id).
		Updates(map[string]interface{}{
			"grade_over":    gradeOver,
			"grade_over_by": overBy,
		}).Error
}

func (r *submissionRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("submission_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
