package service

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"peerworkshop/backend/config"
	"peerworkshop/backend/internal/repository"
	"peerworkshop/backend/pkg/jwt"
	"peerworkshop/backend/pkg/redis"
)

// Service 业务层聚合
type Service struct {
	Auth        AuthService
	Workshop    WorkshopService
	Submission  SubmissionService
	Allocation  AllocationService
	Assessment  AssessmentService
	Example     ExampleService
	Evaluation  EvaluationService
	Calibration CalibrationService
	Report      ReportService
	Calendar    CalendarService
}

// NewService 创建业务层聚合并完成依赖装配。
// cache 可为 nil；依赖次序：示例 → 校准 → 评估 → 工作坊。
func NewService(repo *repository.Repository, cfg *config.Config, jwtMgr *jwt.Manager, cache *redis.Client, logger *zap.Logger) *Service {
	fileStore := NewNoopFileStore()
	strategies := NewStrategyRegistry(repo)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	example := NewExampleService(repo, rng, logger)
	calibration := NewCalibrationService(repo, example, cache, &cfg.Workshop, logger)
	evaluation := NewEvaluationService(repo, calibration, &cfg.Workshop, logger)

	return &Service{
		Auth:        NewAuthService(repo, jwtMgr, cache, logger),
		Workshop:    NewWorkshopService(repo, evaluation, logger),
		Submission:  NewSubmissionService(repo, fileStore, logger),
		Allocation:  NewAllocationService(repo, fileStore, logger),
		Assessment:  NewAssessmentService(repo, strategies, logger),
		Example:     example,
		Evaluation:  evaluation,
		Calibration: calibration,
		Report:      NewReportService(repo, &cfg.Workshop, logger),
		Calendar:    NewCalendarService(repo),
	}
}
