package repository

import (
	"context"

	"gorm.io/gorm"

	"peerworkshop/backend/internal/model"
)

// ExampleAssignmentRepository 示例分配数据访问接口
//
// 分配策略是单调的：接口刻意不提供删除，历史分配永不回收。
type ExampleAssignmentRepository interface {
	// ListByUser 按 id 升序返回（最早分配在前，收缩示例数量时取每片最小 id）
	ListByUser(ctx context.Context, workshopID, userID string) ([]model.ExampleAssignment, error)
	ListByWorkshop(ctx context.Context, workshopID string) ([]model.ExampleAssignment, error)
	BatchCreate(ctx context.Context, assignments []model.ExampleAssignment) error
}

type exampleAssignmentRepo struct {
	db *gorm.DB
}

// NewExampleAssignmentRepo 创建 ExampleAssignmentRepository 实例
func NewExampleAssignmentRepo(db *gorm.DB) ExampleAssignmentRepository {
	return &exampleAssignmentRepo{db: db}
}

func (r *exampleAssignmentRepo) ListByUser(ctx context.Context, workshopID, userID string) ([]model.ExampleAssignment, error) {
	var assignments []model.ExampleAssignment
	err := r.db.WithContext(ctx).
		Where("workshop_id = ? AND user_id = ?", workshopID, userID).
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *exampleAssignmentRepo) ListByWorkshop(ctx context.Context, workshopID string) ([]model.ExampleAssignment, error) {
	var assignments []model.ExampleAssignment
	err := r.db.WithContext(ctx).
		Where("workshop_id = ?", workshopID).
		Order("user_id ASC, id ASC").
		Find(&assignments).Error
	return assignments, err
}

// BatchCreate 批量插入新分配；(workshop, user, submission) 唯一约束挡住并发重复分配
func (r *exampleAssignmentRepo) BatchCreate(ctx context.Context, assignments []model.ExampleAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&assignments).Error
}
