package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"peerworkshop/backend/internal/model"
	pkgerrors "peerworkshop/backend/pkg/errors"
)

// WorkshopRepository 工作坊数据访问接口
type WorkshopRepository interface {
	Create(ctx context.Context, workshop *model.Workshop) error
	GetByID(ctx context.Context, id string) (*model.Workshop, error)
	List(ctx context.Context, offset, limit int) ([]model.Workshop, int64, error)
	Update(ctx context.Context, workshop *model.Workshop) error
	SwitchPhase(ctx context.Context, id string, phase int, updatedBy string) error
	Delete(ctx context.Context, id string, deletedBy string) error
	ListAutoSwitchDue(ctx context.Context, now time.Time) ([]model.Workshop, error)
	AdvanceToAssessment(ctx context.Context, id string) (bool, error)
}

type workshopRepo struct {
	db *gorm.DB
}

// NewWorkshopRepo 创建 WorkshopRepository 实例
func NewWorkshopRepo(db *gorm.DB) WorkshopRepository {
	return &workshopRepo{db: db}
}

func (r *workshopRepo) Create(ctx context.Context, workshop *model.Workshop) error {
	return r.db.WithContext(ctx).Create(workshop).Error
}

func (r *workshopRepo) GetByID(ctx context.Context, id string) (*model.Workshop, error) {
	var workshop model.Workshop
	err := r.db.WithContext(ctx).
		Where("workshop_id = ?", id).
		First(&workshop).Error
	if err != nil {
		return nil, err
	}
	return &workshop, nil
}

func (r *workshopRepo) List(ctx context.Context, offset, limit int) ([]model.Workshop, int64, error) {
	var workshops []model.Workshop
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Workshop{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&workshops).Error
	return workshops, total, err
}

func (r *workshopRepo) Update(ctx context.Context, workshop *model.Workshop) error {
	oldVersion := workshop.Version
	result := r.db.WithContext(ctx).
		Model(workshop).
		Where("workshop_id = ? AND version = ?", workshop.WorkshopID, oldVersion).
		Updates(map[string]interface{}{
			"name":                    workshop.Name,
			"description":             workshop.Description,
			"grade":                   workshop.Grade,
			"grading_grade":           workshop.GradingGrade,
			"grade_decimals":          workshop.GradeDecimals,
			"strategy":                workshop.Strategy,
			"evaluation":              workshop.Evaluation,
			"use_examples":            workshop.UseExamples,
			"examples_mode":           workshop.ExamplesMode,
			"num_examples":            workshop.NumExamples,
			"use_calibration":         workshop.UseCalibration,
			"calibration_phase":       workshop.CalibrationPhase,
			"calibration_method":      workshop.CalibrationMethod,
			"team_mode":               workshop.TeamMode,
			"submission_start":        workshop.SubmissionStart,
			"submission_end":          workshop.SubmissionEnd,
			"assessment_start":        workshop.AssessmentStart,
			"assessment_end":          workshop.AssessmentEnd,
			"late_submissions":        workshop.LateSubmissions,
			"phase_switch_assessment": workshop.PhaseSwitchAssessment,
			"updated_by":              workshop.UpdatedBy,
			"version":                 oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	workshop.Version = oldVersion + 1
	return nil
}

// SwitchPhase 写入新阶段（阶段切换是显式管理操作，不做前进方向校验）
func (r *workshopRepo) SwitchPhase(ctx context.Context, id string, phase int, updatedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Workshop{}).
		Where("workshop_id = ?", id).
		Updates(map[string]interface{}{
			"phase":      phase,
			"updated_by": updatedBy,
		}).Error
}

func (r *workshopRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Workshop{}).
		Where("workshop_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// ListAutoSwitchDue 列出已过提交截止且开启自动切换的工作坊
func (r *workshopRepo) ListAutoSwitchDue(ctx context.Context, now time.Time) ([]model.Workshop, error) {
	var workshops []model.Workshop
	err := r.db.WithContext(ctx).
		Where("phase = ? AND phase_switch_assessment = ? AND submission_end IS NOT NULL AND submission_end <= ?",
			model.PhaseSubmission, true, now).
		Find(&workshops).Error
	return workshops, err
}

// AdvanceToAssessment 条件更新：SUBMISSION→ASSESSMENT 且原子清除自动切换标志。
// 标志与阶段在同一条 UPDATE 中变更，保证至多触发一次。
func (r *workshopRepo) AdvanceToAssessment(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Workshop{}).
		Where("workshop_id = ? AND phase = ? AND phase_switch_assessment = ?",
			id, model.PhaseSubmission, true).
		Updates(map[string]interface{}{
			"phase":                   model.PhaseAssessment,
			"phase_switch_assessment": false,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
