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
	"peerworkshop/backend/pkg/grade"
)

// defaultEvaluator 未注册评估器时回退一次的缺省评估器名
const defaultEvaluator = "best"

// AggregationEvent 一次质量分汇总中单个评审人的结果变化
type AggregationEvent struct {
	UserID       string
	GradingGrade *float64
	Created      bool // true=新建汇总行，false=更新已有行
}

// Evaluator 评审质量评估器接口。
// 输入同一提交下的全部评审，输出每条已评分评审的质量分（assessment_id → 百分比）。
type Evaluator interface {
	Name() string
	GradingGrades(assessments []model.Assessment) map[string]*float64
}

// EvaluationService 成绩汇总引擎接口
type EvaluationService interface {
	// AggregateSubmissionGrades 汇总真实提交成绩：
	// 加权平均已评分且权重>0 的评审；有覆写值的提交跳过计算与回写；
	// 差值在容差内的不回写（时间戳也不动）。
	AggregateSubmissionGrades(ctx context.Context, workshopID string) (int, error)
	// AggregateGradingGrades 汇总评审人质量分：逐条覆写优先于计算值取平均；
	// 没有任何质量分（计算或覆写）的评审人不产生汇总行；
	// 返回的事件区分新建/更新，无变化不产生事件。
	AggregateGradingGrades(ctx context.Context, workshopID string) ([]AggregationEvent, error)
	// RunEvaluation 完整评估：评估器打质量分 → 提交成绩 → 质量分汇总
	// （启用校准时乘以校准系数）→ 推送成绩册。工作坊关闭时触发。
	RunEvaluation(ctx context.Context, workshopID string) error
}

type evaluationService struct {
	repo        *repository.Repository
	calibration CalibrationService
	cfg         *config.WorkshopConfig
	evaluators  map[string]Evaluator
	logger      *zap.Logger
}

// NewEvaluationService 创建 EvaluationService 实例
func NewEvaluationService(repo *repository.Repository, calibration CalibrationService, cfg *config.WorkshopConfig, logger *zap.Logger) EvaluationService {
	s := &evaluationService{
		repo:        repo,
		calibration: calibration,
		cfg:         cfg,
		evaluators:  make(map[string]Evaluator),
		logger:      logger,
	}
	s.register(bestEvaluator{})
	return s
}

func (s *evaluationService) register(e Evaluator) {
	s.evaluators[e.Name()] = e
}

// evaluatorFor 按名字解析评估器；未注册回退一次到缺省评估器，
// 缺省评估器也不存在属部署错误，直接断言失败。
func (s *evaluationService) evaluatorFor(name string) Evaluator {
	if e, ok := s.evaluators[name]; ok {
		return e
	}
	s.logger.Warn("未知评估器，回退到缺省评估器",
		zap.String("evaluator", name),
		zap.String("fallback", defaultEvaluator),
	)
	e, ok := s.evaluators[defaultEvaluator]
	if !ok {
		panic("缺省评估器未注册: " + defaultEvaluator)
	}
	return e
}

// groupBySubmission 把按 submission_id 预排序的评审切成每提交一组。
// 依赖仓储层的排序契约，单遍完成，不做全量 map 物化。
func groupBySubmission(assessments []model.Assessment) [][]model.Assessment {
	var groups [][]model.Assessment
	start := 0
	for i := 1; i <= len(assessments); i++ {
		if i == len(assessments) || assessments[i].SubmissionID != assessments[start].SubmissionID {
			groups = append(groups, assessments[start:i])
			start = i
		}
	}
	return groups
}

// weightedMean 对已评分且权重>0 的评审求加权平均；无有效评审返回 nil
func weightedMean(assessments []model.Assessment) *float64 {
	var sum, weightSum float64
	for _, a := range assessments {
		if a.Grade == nil || a.Weight <= 0 {
			continue
		}
		sum += *a.Grade * float64(a.Weight)
		weightSum += float64(a.Weight)
	}
	if weightSum == 0 {
		return nil
	}
	mean := sum / weightSum
	return &mean
}

func (s *evaluationService) AggregateSubmissionGrades(ctx context.Context, workshopID string) (int, error) {
	assessments, err := s.repo.Assessment.ListByWorkshop(ctx, workshopID, false)
	if err != nil {
		return 0, err
	}
	submissions, err := s.repo.Submission.ListByWorkshop(ctx, workshopID, false)
	if err != nil {
		return 0, err
	}
	byID := make(map[string]*model.Submission, len(submissions))
	for i := range submissions {
		byID[submissions[i].SubmissionID] = &submissions[i]
	}

	updated := 0
	now := time.Now()
	for _, group := range groupBySubmission(assessments) {
		submission, ok := byID[group[0].SubmissionID]
		if !ok {
			continue
		}
		// 覆写值完全取代计算值：有覆写的提交不计算也不回写
		if submission.GradeOver != nil {
			continue
		}
		computed := weightedMean(group)
		if !grade.PtrDifferent(computed, submission.Grade) {
			continue
		}
		if err := s.repo.Submission.UpdateGrade(ctx, submission.SubmissionID, computed, now); err != nil {
			return updated, err
		}
		submission.Grade = computed
		updated++
	}

	if updated > 0 {
		s.logger.Info("提交成绩汇总完成",
			zap.String("workshop_id", workshopID),
			zap.Int("updated", updated),
		)
	}
	return updated, nil
}

// applyEvaluator 让评估器为每条已评分评审打质量分，差值在容差内不回写
func (s *evaluationService) applyEvaluator(ctx context.Context, workshop *model.Workshop, assessments []model.Assessment) error {
	evaluator := s.evaluatorFor(workshop.Evaluation)
	now := time.Now()
	for _, group := range groupBySubmission(assessments) {
		grades := evaluator.GradingGrades(group)
		for i := range group {
			a := &group[i]
			gg, ok := grades[a.AssessmentID]
			if !ok {
				continue
			}
			if !grade.PtrDifferent(gg, a.GradingGrade) {
				continue
			}
			if err := s.repo.Assessment.UpdateGradingGrade(ctx, a.AssessmentID, gg, now); err != nil {
				return err
			}
			a.GradingGrade = gg
		}
	}
	return nil
}

func (s *evaluationService) AggregateGradingGrades(ctx context.Context, workshopID string) ([]AggregationEvent, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}

	assessments, err := s.repo.Assessment.ListByWorkshop(ctx, workshopID, false)
	if err != nil {
		return nil, err
	}

	// 逐条覆写优先于计算值；质量分与覆写都为空的评审不计入
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, a := range assessments {
		gg := a.EffectiveGradingGrade()
		if gg == nil {
			continue
		}
		sums[a.ReviewerID] += *gg
		counts[a.ReviewerID]++
	}

	// 校准系数在基础均值之上相乘，每次从头重算，重复运行结果一致
	var calibrationScores map[string]float64
	if workshop.UseCalibration {
		calibrationScores, err = s.calibration.GetScores(ctx, workshopID)
		if err != nil && !errors.Is(err, ErrCalibrationDisabled) {
			return nil, err
		}
	}

	now := time.Now()
	var events []AggregationEvent
	for reviewerID, count := range counts {
		mean := sums[reviewerID] / float64(count)
		if score, ok := calibrationScores[reviewerID]; ok {
			mean = mean * score / 100
		}

		existing, err := s.repo.Aggregation.GetByWorkshopAndUser(ctx, workshopID, reviewerID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			row := &model.Aggregation{
				WorkshopID:   workshopID,
				UserID:       reviewerID,
				GradingGrade: &mean,
				TimeGraded:   &now,
			}
			if err := s.repo.Aggregation.Create(ctx, row); err != nil {
				return nil, err
			}
			events = append(events, AggregationEvent{UserID: reviewerID, GradingGrade: &mean, Created: true})
			continue
		}

		if !grade.PtrDifferent(&mean, existing.GradingGrade) {
			continue
		}
		existing.GradingGrade = &mean
		existing.TimeGraded = &now
		if err := s.repo.Aggregation.Update(ctx, existing); err != nil {
			return nil, err
		}
		events = append(events, AggregationEvent{UserID: reviewerID, GradingGrade: &mean, Created: false})
	}
	return events, nil
}

func (s *evaluationService) RunEvaluation(ctx context.Context, workshopID string) error {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkshopNotFound
		}
		return err
	}

	assessments, err := s.repo.Assessment.ListByWorkshop(ctx, workshopID, false)
	if err != nil {
		return err
	}
	if err := s.applyEvaluator(ctx, workshop, assessments); err != nil {
		return err
	}
	if _, err := s.AggregateSubmissionGrades(ctx, workshopID); err != nil {
		return err
	}
	if _, err := s.AggregateGradingGrades(ctx, workshopID); err != nil {
		return err
	}
	return s.pushGradebook(ctx, workshop)
}

// pushGradebook 把最终成绩推送到成绩册：
// 提交成绩按作者展开（团队模式一人一行同分），质量分按评审人；
// 推送值从存储百分比换算到工作坊满分刻度。
func (s *evaluationService) pushGradebook(ctx context.Context, workshop *model.Workshop) error {
	submissions, err := s.repo.Submission.ListByWorkshop(ctx, workshop.WorkshopID, false)
	if err != nil {
		return err
	}
	resolver := resolverFor(s.repo, workshop.TeamMode)

	var rows []model.GradebookGrade
	for i := range submissions {
		sub := &submissions[i]
		final := sub.FinalGrade()
		if final == nil {
			continue
		}
		authors, err := resolver.AuthorsOf(ctx, sub)
		if err != nil {
			return err
		}
		created := sub.CreatedAt
		for _, authorID := range authors {
			rows = append(rows, model.GradebookGrade{
				WorkshopID:    workshop.WorkshopID,
				UserID:        authorID,
				Kind:          model.GradebookKindSubmission,
				RawGrade:      grade.ValueFromPercent(final, workshop.Grade, workshop.GradeDecimals),
				Feedback:      sub.FeedbackAuthor,
				DateSubmitted: &created,
				DateGraded:    sub.TimeGraded,
			})
		}
	}

	aggregations, err := s.repo.Aggregation.ListByWorkshop(ctx, workshop.WorkshopID)
	if err != nil {
		return err
	}
	for _, agg := range aggregations {
		if agg.GradingGrade == nil {
			continue
		}
		rows = append(rows, model.GradebookGrade{
			WorkshopID: workshop.WorkshopID,
			UserID:     agg.UserID,
			Kind:       model.GradebookKindGrading,
			RawGrade:   grade.ValueFromPercent(agg.GradingGrade, workshop.GradingGrade, workshop.GradeDecimals),
			DateGraded: agg.TimeGraded,
		})
	}

	if err := s.repo.Gradebook.BatchUpsert(ctx, rows); err != nil {
		s.logger.Error("推送成绩册失败", zap.Error(err))
		return err
	}
	s.logger.Info("成绩册推送完成",
		zap.String("workshop_id", workshop.WorkshopID),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// ── 离群评审检测 ──

// DiscrepantAssessments 标出成绩明显偏离同侪的评审（assessment_id → true）。
// 对已评分且权重>0 的评审不少于 minCount 条的提交，
// 落在 中位数 ± k·总体标准差 之外的视为离群。无状态，不落库。
func DiscrepantAssessments(assessments []model.Assessment, minCount int, k float64) map[string]bool {
	flags := make(map[string]bool)
	for _, group := range groupBySubmission(assessments) {
		var graded []model.Assessment
		var vals []float64
		for _, a := range group {
			if a.Grade == nil || a.Weight <= 0 {
				continue
			}
			graded = append(graded, a)
			vals = append(vals, *a.Grade)
		}
		if len(graded) < minCount {
			continue
		}
		median := grade.Median(vals)
		spread := k * grade.PopulationStdDev(vals)
		for _, a := range graded {
			if math.Abs(*a.Grade-median) > spread {
				flags[a.AssessmentID] = true
			}
		}
	}
	return flags
}

// ── best 评估器 ──
//
// 质量分以该评审与提交加权平均分的距离衰减：完全一致得满分，
// 每偏离一个百分点扣一分，下限 0。权重为 0 的评审同样获得质量分，
// 只是其成绩不参与均值。

type bestEvaluator struct{}

func (bestEvaluator) Name() string { return defaultEvaluator }

func (bestEvaluator) GradingGrades(assessments []model.Assessment) map[string]*float64 {
	grades := make(map[string]*float64)
	mean := weightedMean(assessments)
	if mean == nil {
		return grades
	}
	for _, a := range assessments {
		if a.Grade == nil {
			continue
		}
		gg := 100 - math.Abs(*a.Grade-*mean)
		if gg < 0 {
			gg = 0
		}
		grades[a.AssessmentID] = &gg
	}
	return grades
}
