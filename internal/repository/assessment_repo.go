package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"peerworkshop/backend/internal/model"
	pkgerrors "peerworkshop/backend/pkg/errors"
)

// AssessmentRepository 评审数据访问接口
type AssessmentRepository interface {
	// Create 插入评审记录；(submission, reviewer) 重复时返回 pkgerrors.ErrAllocationExists。
	// 唯一性由数据库约束保证，并发分配恰有一个赢家。
	Create(ctx context.Context, assessment *model.Assessment) error
	GetByID(ctx context.Context, id string) (*model.Assessment, error)
	GetBySubmissionAndReviewer(ctx context.Context, submissionID, reviewerID string) (*model.Assessment, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]model.Assessment, error)
	// ListByWorkshop 按 submission_id 预排序返回，供汇总引擎做分组流式单遍处理
	ListByWorkshop(ctx context.Context, workshopID string, example bool) ([]model.Assessment, error)
	ListByReviewer(ctx context.Context, workshopID, reviewerID string, example bool) ([]model.Assessment, error)
	CountReference(ctx context.Context, submissionID string) (int64, error)
	Update(ctx context.Context, assessment *model.Assessment) error
	UpdateGrade(ctx context.Context, id string, grade *float64, timeGraded time.Time) error
	UpdateGradingGrade(ctx context.Context, id string, gradingGrade *float64, timeGraded time.Time) error
	UpdateWeight(ctx context.Context, id string, weight int) error
	UpdateSubmitterFlag(ctx context.Context, id string, flag int) error
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteBySubmission(ctx context.Context, submissionID string) error
}

type assessmentRepo struct {
	db *gorm.DB
}

// NewAssessmentRepo 创建 AssessmentRepository 实例
func NewAssessmentRepo(db *gorm.DB) AssessmentRepository {
	return &assessmentRepo{db: db}
}

func (r *assessmentRepo) Create(ctx context.Context, assessment *model.Assessment) error {
	err := r.db.WithContext(ctx).Create(assessment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return pkgerrors.ErrAllocationExists
		}
		return err
	}
	return nil
}

func (r *assessmentRepo) GetByID(ctx context.Context, id string) (*model.Assessment, error) {
	var assessment model.Assessment
	err := r.db.WithContext(ctx).
		Preload("Submission").
		Preload("Reviewer").
		Where("assessment_id = ?", id).
		First(&assessment).Error
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (r *assessmentRepo) GetBySubmissionAndReviewer(ctx context.Context, submissionID, reviewerID string) (*model.Assessment, error) {
	var assessment model.Assessment
	err := r.db.WithContext(ctx).
		Where("submission_id = ? AND reviewer_id = ?", submissionID, reviewerID).
		First(&assessment).Error
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (r *assessmentRepo) ListBySubmission(ctx context.Context, submissionID string) ([]model.Assessment, error) {
	var assessments []model.Assessment
	err := r.db.WithContext(ctx).
		Preload("Reviewer").
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&assessments).Error
	return assessments, err
}

func (r *assessmentRepo) ListByWorkshop(ctx context.Context, workshopID string, example bool) ([]model.Assessment, error) {
	var assessments []model.Assessment
	err := r.db.WithContext(ctx).
		Preload("Submission").
		Joins("JOIN submissions s ON s.submission_id = assessments.submission_id").
		Where("s.workshop_id = ? AND s.example = ? AND s.deleted_at IS NULL", workshopID, example).
		Order("assessments.submission_id ASC, assessments.reviewer_id ASC").
		Find(&assessments).Error
	return assessments, err
}

func (r *assessmentRepo) ListByReviewer(ctx context.Context, workshopID, reviewerID string, example bool) ([]model.Assessment, error) {
	var assessments []model.Assessment
	err := r.db.WithContext(ctx).
		Preload("Submission").
		Joins("JOIN submissions s ON s.submission_id = assessments.submission_id").
		Where("s.workshop_id = ? AND s.example = ? AND s.deleted_at IS NULL AND assessments.reviewer_id = ?",
			workshopID, example, reviewerID).
		Order("assessments.submission_id ASC").
		Find(&assessments).Error
	return assessments, err
}

// CountReference 统计示例上的参考评审数（weight=1；系统不变量：至多一条）
func (r *assessmentRepo) CountReference(ctx context.Context, submissionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Assessment{}).
		Where("submission_id = ? AND weight = ?", submissionID, model.WeightExampleReference).
		Count(&count).Error
	return count, err
}

func (r *assessmentRepo) Update(ctx context.Context, assessment *model.Assessment) error {
	return r.db.WithContext(ctx).Save(assessment).Error
}

func (r *assessmentRepo) UpdateGrade(ctx context.Context, id string, grade *float64, timeGraded time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Assessment{}).
		Where("assessment_id = ?", id).
		Updates(map[string]interface{}{
			"grade":       grade,
			"time_graded": timeGraded,
		}).Error
}

func (r *assessmentRepo) UpdateGradingGrade(ctx context.Context, id string, gradingGrade *float64, timeGraded time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Assessment{}).
		Where("assessment_id = ?", id).
		Updates(map[string]interface{}{
			"grading_grade": gradingGrade,
			"time_graded":   timeGraded,
		}).Error
}

func (r *assessmentRepo) UpdateWeight(ctx context.Context, id string, weight int) error {
	return r.db.WithContext(ctx).
		Model(&model.Assessment{}).
		Where("assessment_id = ?", id).
		Update("weight", weight).Error
}

func (r *assessmentRepo) UpdateSubmitterFlag(ctx context.Context, id string, flag int) error {
	return r.db.WithContext(ctx).
		Model(&model.Assessment{}).
		Where("assessment_id = ?", id).
		Update("submitter_flagged", flag).Error
}

// DeleteByIDs 批量删除（单条多 id DELETE，不逐行往返）
func (r *assessmentRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("assessment_id IN ?", ids).
		Delete(&model.Assessment{}).Error
}

func (r *assessmentRepo) DeleteBySubmission(ctx context.Context, submissionID string) error {
	return r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Delete(&model.Assessment{}).Error
}

// ── DimensionGrade Repository ──

// DimensionGradeRepository 评分维度明细数据访问接口
type DimensionGradeRepository interface {
	ReplaceForAssessment(ctx context.Context, assessmentID string, grades []model.AssessmentDimensionGrade) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]model.AssessmentDimensionGrade, error)
	DeleteByAssessments(ctx context.Context, assessmentIDs []string) error
}

type dimensionGradeRepo struct {
	db *gorm.DB
}

// NewDimensionGradeRepo 创建 DimensionGradeRepository 实例
func NewDimensionGradeRepo(db *gorm.DB) DimensionGradeRepository {
	return &dimensionGradeRepo{db: db}
}

// ReplaceForAssessment 以表单提交结果整体替换某评审的维度明细
func (r *dimensionGradeRepo) ReplaceForAssessment(ctx context.Context, assessmentID string, grades []model.AssessmentDimensionGrade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assessment_id = ?", assessmentID).
			Delete(&model.AssessmentDimensionGrade{}).Error; err != nil {
			return err
		}
		if len(grades) == 0 {
			return nil
		}
		return tx.Create(&grades).Error
	})
}

func (r *dimensionGradeRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]model.AssessmentDimensionGrade, error) {
	var grades []model.AssessmentDimensionGrade
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("dimension_number ASC").
		Find(&grades).Error
	return grades, err
}

func (r *dimensionGradeRepo) DeleteByAssessments(ctx context.Context, assessmentIDs []string) error {
	if len(assessmentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("assessment_id IN ?", assessmentIDs).
		Delete(&model.AssessmentDimensionGrade{}).Error
}
