package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"peerworkshop/backend/internal/dto"
	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
	"peerworkshop/backend/pkg/grade"
)

// ── 示例分配模块业务错误 ──

var ErrExamplesDisabled = errors.New("该工作坊未启用示例评审")

// ExampleService 示例分片与分配业务接口
type ExampleService interface {
	// AssignExamples 为评审人分配示例：按参考成绩排序分片，
	// 每个尚无分配的分片随机取一例。分配单调，只增不删；
	// 返回分配后的"当前"示例集合。
	AssignExamples(ctx context.Context, workshopID, userID string) ([]dto.SubmissionResponse, error)
	// CurrentExamples 返回评审人当前生效的示例集合。
	// 示例数量调小后，每个仍相交的分片取最早分配（最小 ID）的一例。
	CurrentExamples(ctx context.Context, workshopID, userID string) ([]dto.SubmissionResponse, error)
}

type exampleService struct {
	repo   *repository.Repository
	rng    *rand.Rand
	mu     sync.Mutex
	logger *zap.Logger
}

// NewExampleService 创建 ExampleService 实例。
// 随机源由外部注入，测试可传入固定种子复现分配结果。
func NewExampleService(repo *repository.Repository, rng *rand.Rand, logger *zap.Logger) ExampleService {
	return &exampleService{repo: repo, rng: rng, logger: logger}
}

// sliceBounds 将 total 个有序示例切成 n 个尽量均匀的连续分片。
// lo=round(i*total/n)，如 10 例 4 片得到 3,2,3,2 而非 3,3,3,1。
func sliceBounds(total, n int) [][2]int {
	bounds := make([][2]int, 0, n)
	for i := 0; i < n; i++ {
		lo := int(math.Round(float64(i) * float64(total) / float64(n)))
		hi := int(math.Round(float64(i+1) * float64(total) / float64(n)))
		if lo > hi || hi > total {
			panic(fmt.Sprintf("示例分片越界: total=%d n=%d i=%d lo=%d hi=%d", total, n, i, lo, hi))
		}
		bounds = append(bounds, [2]int{lo, hi})
	}
	return bounds
}

func (s *exampleService) AssignExamples(ctx context.Context, workshopID, userID string) ([]dto.SubmissionResponse, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}
	if !workshop.UseExamples {
		return nil, ErrExamplesDisabled
	}

	examples, err := s.repo.Submission.ListByWorkshop(ctx, workshopID, true)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return []dto.SubmissionResponse{}, nil
	}

	existing, err := s.repo.ExampleAssignment.ListByUser(ctx, workshopID, userID)
	if err != nil {
		return nil, err
	}
	assigned := make(map[string]bool, len(existing))
	for _, row := range existing {
		assigned[row.SubmissionID] = true
	}

	var newIndexes []int
	n := workshop.NumExamples
	if n <= 0 || n >= len(examples) {
		// 示例数不少于总量：全量分配，无需分片
		for i := range examples {
			if !assigned[examples[i].SubmissionID] {
				newIndexes = append(newIndexes, i)
			}
		}
	} else {
		newIndexes = s.pickMissing(examples, existing, n)
	}

	if len(newIndexes) > 0 {
		// 洗牌后落库，避免插入次序泄露分片次序
		s.mu.Lock()
		s.rng.Shuffle(len(newIndexes), func(i, j int) {
			newIndexes[i], newIndexes[j] = newIndexes[j], newIndexes[i]
		})
		s.mu.Unlock()

		rows := make([]model.ExampleAssignment, 0, len(newIndexes))
		for _, idx := range newIndexes {
			rows = append(rows, model.ExampleAssignment{
				WorkshopID:   workshopID,
				UserID:       userID,
				SubmissionID: examples[idx].SubmissionID,
			})
		}
		if err := s.repo.ExampleAssignment.BatchCreate(ctx, rows); err != nil {
			s.logger.Error("写入示例分配失败", zap.Error(err))
			return nil, err
		}
		s.logger.Info("示例分配完成",
			zap.String("workshop_id", workshopID),
			zap.String("user_id", userID),
			zap.Int("new_count", len(newIndexes)),
		)
	}

	return s.CurrentExamples(ctx, workshopID, userID)
}

// pickMissing 为每个尚无分配的分片随机取一例，返回新取示例的下标。
// 偏置规则：(a) 上一片取了最高位时本片不取最低位；(b) 不取与上一例同分的示例。
// 规则若把候选清空则对该片放弃规则，优雅降级。
func (s *exampleService) pickMissing(examples []model.Submission, existing []model.ExampleAssignment, n int) []int {
	indexOf := make(map[string]int, len(examples))
	for i := range examples {
		indexOf[examples[i].SubmissionID] = i
	}

	bounds := sliceBounds(len(examples), n)

	s.mu.Lock()
	defer s.mu.Unlock()

	var picks []int
	prevIndex := -1
	prevWasHighest := false
	var prevGrade *float64

	for _, b := range bounds {
		lo, hi := b[0], b[1]
		if hi <= lo {
			continue
		}

		// 该片已有分配：最早分配的一例作为偏置参照，不再新取
		current := -1
		for _, row := range existing {
			idx, ok := indexOf[row.SubmissionID]
			if ok && idx >= lo && idx < hi {
				current = idx
				break
			}
		}
		if current >= 0 {
			prevIndex = current
			prevWasHighest = current == hi-1
			prevGrade = examples[current].Grade
			continue
		}

		candidates := make([]int, 0, hi-lo)
		for idx := lo; idx < hi; idx++ {
			if prevIndex >= 0 {
				if prevWasHighest && idx == lo {
					continue
				}
				if !grade.PtrDifferent(examples[idx].Grade, prevGrade) {
					continue
				}
			}
			candidates = append(candidates, idx)
		}
		if len(candidates) == 0 {
			for idx := lo; idx < hi; idx++ {
				candidates = append(candidates, idx)
			}
		}

		pick := candidates[s.rng.Intn(len(candidates))]
		picks = append(picks, pick)

		prevIndex = pick
		prevWasHighest = pick == hi-1
		prevGrade = examples[pick].Grade
	}
	return picks
}

func (s *exampleService) CurrentExamples(ctx context.Context, workshopID, userID string) ([]dto.SubmissionResponse, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkshopNotFound
		}
		return nil, err
	}

	examples, err := s.repo.Submission.ListByWorkshop(ctx, workshopID, true)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.ExampleAssignment.ListByUser(ctx, workshopID, userID)
	if err != nil {
		return nil, err
	}

	indexOf := make(map[string]int, len(examples))
	for i := range examples {
		indexOf[examples[i].SubmissionID] = i
	}

	var currentIdx []int
	n := workshop.NumExamples
	if n <= 0 || n >= len(examples) {
		for _, row := range existing {
			if idx, ok := indexOf[row.SubmissionID]; ok {
				currentIdx = append(currentIdx, idx)
			}
		}
	} else {
		// 每个仍与历史分配相交的分片取最小 ID 的一例；
		// ListByUser 按 ID 升序返回，首个命中即最早分配
		for _, b := range sliceBounds(len(examples), n) {
			lo, hi := b[0], b[1]
			for _, row := range existing {
				idx, ok := indexOf[row.SubmissionID]
				if ok && idx >= lo && idx < hi {
					currentIdx = append(currentIdx, idx)
					break
				}
			}
		}
	}

	result := make([]dto.SubmissionResponse, 0, len(currentIdx))
	for _, idx := range currentIdx {
		result = append(result, *toSubmissionResponse(&examples[idx], workshop))
	}
	return result, nil
}
