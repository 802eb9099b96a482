package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"peerworkshop/backend/config"
	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
	"peerworkshop/backend/pkg/redis"
)

// ── 校准模块业务错误 ──

var ErrCalibrationDisabled = errors.New("该工作坊未启用校准")

// defaultCalibrationMethod 未注册方法时回退一次的缺省方法名
const defaultCalibrationMethod = "examples"

// GradePair 一次练习评审与参考评审的配对成绩（均为百分比）
type GradePair struct {
	Reviewer  float64
	Reference float64
}

// CalibrationMethod 校准打分协作方接口。
// 输入为该评审人的配对成绩与完成门槛，输出单个百分比校准分；
// 完成数不足门槛时返回 nil（无分）。
type CalibrationMethod interface {
	Name() string
	Score(pairs []GradePair, required int) *float64
}

// CalibrationService 校准分业务接口
type CalibrationService interface {
	// GetScores 返回工作坊全体评审人的校准分（userid → 百分比）。
	// 结果按工作坊缓存于 Redis，评审记录变化后由 Invalidate 失效。
	GetScores(ctx context.Context, workshopID string) (map[string]float64, error)
	Invalidate(ctx context.Context, workshopID string) error
}

type calibrationService struct {
	repo     *repository.Repository
	examples ExampleService
	cache    *redis.Client
	cfg      *config.WorkshopConfig
	methods  map[string]CalibrationMethod
	logger   *zap.Logger
}

// NewCalibrationService 创建 CalibrationService 实例。
// cache 可为 nil（未配置 Redis 时退化为每次现算）。
func NewCalibrationService(repo *repository.Repository, examples ExampleService, cache *redis.Client, cfg *config.WorkshopConfig, logger *zap.Logger) CalibrationService {
	s := &calibrationService{
		repo:     repo,
		examples: examples,
		cache:    cache,
		cfg:      cfg,
		methods:  make(map[string]CalibrationMethod),
		logger:   logger,
	}
	s.register(examplesMethod{})
	return s
}

func (s *calibrationService) register(m CalibrationMethod) {
	s.methods[m.Name()] = m
}

// methodFor 按名字解析校准方法；未注册回退一次到缺省方法，
// 缺省方法也不存在属部署错误，直接断言失败。
func (s *calibrationService) methodFor(name string) CalibrationMethod {
	if m, ok := s.methods[name]; ok {
		return m
	}
	s.logger.Warn("未知校准方法，回退到缺省方法",
		zap.String("method", name),
		zap.String("fallback", defaultCalibrationMethod),
	)
	m, ok := s.methods[defaultCalibrationMethod]
	if !ok {
		panic("缺省校准方法未注册: " + defaultCalibrationMethod)
	}
	return m
}

func (s *calibrationService) GetScores(ctx context.Context, workshopID string) (map[string]float64, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}
	if !workshop.UseCalibration {
		return nil, ErrCalibrationDisabled
	}

	if s.cache != nil {
		cached, err := s.cache.GetCalibrationScores(ctx, workshopID)
		if err != nil {
			s.logger.Warn("读取校准分缓存失败", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	scores, err := s.computeScores(ctx, workshop)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		ttl := time.Duration(s.cfg.CalibrationScoreTTL) * time.Minute
		if err := s.cache.SetCalibrationScores(ctx, workshopID, scores, ttl); err != nil {
			s.logger.Warn("写入校准分缓存失败", zap.Error(err))
		}
	}
	return scores, nil
}

func (s *calibrationService) computeScores(ctx context.Context, workshop *model.Workshop) (map[string]float64, error) {
	exampleAssessments, err := s.repo.Assessment.ListByWorkshop(ctx, workshop.WorkshopID, true)
	if err != nil {
		return nil, err
	}

	// 参考评审：每个示例至多一条 weight=1 且已评分的评审
	references := make(map[string]float64)
	trainee := make(map[string][]model.Assessment)
	for _, a := range exampleAssessments {
		if a.Grade == nil {
			continue
		}
		switch a.Weight {
		case model.WeightExampleReference:
			references[a.SubmissionID] = *a.Grade
		case model.WeightExampleTrainee:
			trainee[a.ReviewerID] = append(trainee[a.ReviewerID], a)
		}
	}

	totalExamples, err := s.repo.Submission.ListByWorkshop(ctx, workshop.WorkshopID, true)
	if err != nil {
		return nil, err
	}

	method := s.methodFor(workshop.CalibrationMethod)
	scores := make(map[string]float64)
	for reviewerID, assessments := range trainee {
		// numexamples>0 时只统计当前分配给该评审人的示例
		allowed, required, err := s.scopeFor(ctx, workshop, reviewerID, len(totalExamples))
		if err != nil {
			return nil, err
		}

		pairs := make([]GradePair, 0, len(assessments))
		for _, a := range assessments {
			if allowed != nil && !allowed[a.SubmissionID] {
				continue
			}
			ref, ok := references[a.SubmissionID]
			if !ok {
				continue
			}
			pairs = append(pairs, GradePair{Reviewer: *a.Grade, Reference: ref})
		}

		if score := method.Score(pairs, required); score != nil {
			scores[reviewerID] = *score
		}
	}
	return scores, nil
}

// scopeFor 返回该评审人参与校准的示例范围与完成门槛。
// 范围为 nil 表示全部示例均计入。
func (s *calibrationService) scopeFor(ctx context.Context, workshop *model.Workshop, reviewerID string, totalExamples int) (map[string]bool, int, error) {
	if workshop.NumExamples <= 0 || workshop.NumExamples >= totalExamples {
		return nil, totalExamples, nil
	}
	current, err := s.examples.CurrentExamples(ctx, workshop.WorkshopID, reviewerID)
	if err != nil {
		return nil, 0, err
	}
	allowed := make(map[string]bool, len(current))
	for _, sub := range current {
		allowed[sub.ID] = true
	}
	return allowed, workshop.NumExamples, nil
}

func (s *calibrationService) Invalidate(ctx context.Context, workshopID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateCalibrationScores(ctx, workshopID)
}

// ── examples 方法 ──
//
// 逐例取与参考评审的绝对差，校准分为 100 减平均差，下限 0。

type examplesMethod struct{}

func (examplesMethod) Name() string { return defaultCalibrationMethod }

func (examplesMethod) Score(pairs []GradePair, required int) *float64 {
	if required <= 0 || len(pairs) < required {
		return nil
	}
	var sum float64
	for _, p := range pairs {
		sum += math.Abs(p.Reviewer - p.Reference)
	}
	score := 100 - sum/float64(len(pairs))
	if score < 0 {
		score = 0
	}
	return &score
}
