package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"peerworkshop/backend/internal/model"
)

// GradebookRepository 成绩册收端数据访问接口
type GradebookRepository interface {
	// BatchUpsert 按 (workshop, user, kind) 幂等写入一批成绩行
	BatchUpsert(ctx context.Context, grades []model.GradebookGrade) error
	ListByWorkshop(ctx context.Context, workshopID string) ([]model.GradebookGrade, error)
}

type gradebookRepo struct {
	db *gorm.DB
}

// NewGradebookRepo 创建 GradebookRepository 实例
func NewGradebookRepo(db *gorm.DB) GradebookRepository {
	return &gradebookRepo{db: db}
}

func (r *gradebookRepo) BatchUpsert(ctx context.Context, grades []model.GradebookGrade) error {
	if len(grades) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "workshop_id"}, {Name: "user_id"}, {Name: "kind"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"raw_grade", "feedback", "date_submitted", "date_graded", "updated_at",
			}),
		}).
		Create(&grades).Error
}

func (r *gradebookRepo) ListByWorkshop(ctx context.Context, workshopID string) ([]model.GradebookGrade, error) {
	var grades []model.GradebookGrade
	err := r.db.WithContext(ctx).
		Where("workshop_id = ?", workshopID).
		Order("user_id ASC, kind ASC").
		Find(&grades).Error
	return grades, err
}
