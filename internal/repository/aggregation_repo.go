package repository

import (
	"context"

	"gorm.io/gorm"

	"peerworkshop/backend/internal/model"
)

// AggregationRepository 评审人质量分汇总数据访问接口
type AggregationRepository interface {
	GetByWorkshopAndUser(ctx context.Context, workshopID, userID string) (*model.Aggregation, error)
	ListByWorkshop(ctx context.Context, workshopID string) ([]model.Aggregation, error)
	Create(ctx context.Context, aggregation *model.Aggregation) error
	Update(ctx context.Context, aggregation *model.Aggregation) error
}

type aggregationRepo struct {
	db *gorm.DB
}

// NewAggregationRepo 创建 AggregationRepository 实例
func NewAggregationRepo(db *gorm.DB) AggregationRepository {
	return &aggregationRepo{db: db}
}

func (r *aggregationRepo) GetByWorkshopAndUser(ctx context.Context, workshopID, userID string) (*model.Aggregation, error) {
	var aggregation model.Aggregation
	err := r.db.WithContext(ctx).
		Where("workshop_id = ? AND user_id = ?", workshopID, userID).
		First(&aggregation).Error
	if err != nil {
		return nil, err
	}
	return &aggregation, nil
}

func (r *aggregationRepo) ListByWorkshop(ctx context.Context, workshopID string) ([]model.Aggregation, error) {
	var aggregations []model.Aggregation
	err := r.db.WithContext(ctx).
		Where("workshop_id = ?", workshopID).
		Order("user_id ASC").
		Find(&aggregations).Error
	return aggregations, err
}

func (r *aggregationRepo) Create(ctx context.Context, aggregation *model.Aggregation) error {
	return r.db.WithContext(ctx).Create(aggregation).Error
}

func (r *aggregationRepo) Update(ctx context.Context, aggregation *model.Aggregation) error {
	return r.db.WithContext(ctx).
		Model(&model.Aggregation{}).
		Where("aggregation_id = ?", aggregation.AggregationID).
		Updates(map[string]interface{}{
			"grading_grade": aggregation.GradingGrade,
			"time_graded":   aggregation.TimeGraded,
		}).Error
}
