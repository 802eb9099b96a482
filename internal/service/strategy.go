package service

import (
	"context"
	"errors"
	"fmt"

	"peerworkshop/backend/internal/dto"
	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
)

// ── 评分策略 ──

// ErrStrategyUnknown 工作坊配置了未注册的评分策略（部署错误，无默认回退）
var ErrStrategyUnknown = errors.New("未知的评分策略")

// GradingStrategy 评分策略协作方接口。
// 表单保存后返回 [0,100] 的原始百分比成绩，由调用方写入 Assessment.grade。
type GradingStrategy interface {
	Name() string
	// SaveAssessment 持久化表单维度明细并计算原始成绩
	SaveAssessment(ctx context.Context, assessmentID string, req *dto.SaveAssessmentRequest) (*float64, error)
}

// StrategyRegistry 按名字解析评分策略（启动期注册，替代运行时反射构造）
type StrategyRegistry struct {
	strategies map[string]GradingStrategy
}

// NewStrategyRegistry 创建并注册内置策略
func NewStrategyRegistry(repo *repository.Repository) *StrategyRegistry {
	r := &StrategyRegistry{strategies: make(map[string]GradingStrategy)}
	r.Register(&accumulativeStrategy{repo: repo})
	return r
}

// Register 注册一个策略实现
func (r *StrategyRegistry) Register(s GradingStrategy) {
	r.strategies[s.Name()] = s
}

// Lookup 按名字查找策略；未注册返回 ErrStrategyUnknown
func (r *StrategyRegistry) Lookup(name string) (GradingStrategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStrategyUnknown, name)
	}
	return s, nil
}

// ── accumulative 策略 ──
//
// 累加式评分：每个维度一个 [0,100] 分与整数权重，
// 原始成绩为各维度的加权平均。

type accumulativeStrategy struct {
	repo *repository.Repository
}

func (s *accumulativeStrategy) Name() string { return "accumulative" }

func (s *accumulativeStrategy) SaveAssessment(ctx context.Context, assessmentID string, req *dto.SaveAssessmentRequest) (*float64, error) {
	rows := make([]model.AssessmentDimensionGrade, 0, len(req.Dimensions))
	var sum, weightSum float64
	for _, d := range req.Dimensions {
		weight := 1
		if d.Weight != nil {
			weight = model.ClampWeight(*d.Weight)
		}
		rows = append(rows, model.AssessmentDimensionGrade{
			AssessmentID:    assessmentID,
			DimensionNumber: d.DimensionNumber,
			Grade:           d.Grade,
			Weight:          weight,
			PeerComment:     d.PeerComment,
		})
		sum += d.Grade * float64(weight)
		weightSum += float64(weight)
	}

	if err := s.repo.DimensionGrade.ReplaceForAssessment(ctx, assessmentID, rows); err != nil {
		return nil, err
	}

	if weightSum == 0 {
		// 全零权重维度：表单有效但不产生成绩
		return nil, nil
	}
	raw := sum / weightSum
	return &raw, nil
}
