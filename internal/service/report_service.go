package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"peerworkshop/backend/config"
	"peerworkshop/backend/internal/dto"
	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
	"peerworkshop/backend/pkg/grade"
)

// ReportService 评分报表业务接口
type ReportService interface {
	// BuildReport 构建报表：每位参与者一行，带其收到与给出的评审，
	// 离群评分按 中位数±kσ 标记
	BuildReport(ctx context.Context, workshopID string, req *dto.ReportRequest) (*dto.ReportResponse, error)
	// ExportReport 导出 xlsx 报表，返回文件内容与文件名
	ExportReport(ctx context.Context, workshopID string, req *dto.ReportRequest) (*bytes.Buffer, string, error)
}

type reportService struct {
	repo   *repository.Repository
	cfg    *config.WorkshopConfig
	logger *zap.Logger
}

// NewReportService 创建 ReportService 实例
func NewReportService(repo *repository.Repository, cfg *config.WorkshopConfig, logger *zap.Logger) ReportService {
	return &reportService{repo: repo, cfg: cfg, logger: logger}
}

func (s *reportService) BuildReport(ctx context.Context, workshopID string, req *dto.ReportRequest) (*dto.ReportResponse, error) {
	workshop, rows, err := s.buildRows(ctx, workshopID, req)
	if err != nil {
		return nil, err
	}

	total := int64(len(rows))
	offset := req.GetOffset()
	if offset > len(rows) {
		offset = len(rows)
	}
	end := offset + req.GetPageSize()
	if end > len(rows) {
		end = len(rows)
	}

	return &dto.ReportResponse{
		WorkshopID: workshopID,
		TeamMode:   workshop.TeamMode,
		Rows:       rows[offset:end],
		Total:      total,
	}, nil
}

// buildRows 构建完整（未分页）的有序报表行
func (s *reportService) buildRows(ctx context.Context, workshopID string, req *dto.ReportRequest) (*model.Workshop, []dto.ReportRow, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrWorkshopNotFound
		}
		return nil, nil, err
	}

	submissions, err := s.repo.Submission.ListByWorkshop(ctx, workshopID, false)
	if err != nil {
		return nil, nil, err
	}
	assessments, err := s.repo.Assessment.ListByWorkshop(ctx, workshopID, false)
	if err != nil {
		return nil, nil, err
	}
	aggregations, err := s.repo.Aggregation.ListByWorkshop(ctx, workshopID)
	if err != nil {
		return nil, nil, err
	}

	discrepant := DiscrepantAssessments(assessments,
		s.cfg.DiscrepancyMinAssessments, s.cfg.DiscrepancyStdDevs)

	// 参与者全集：提交作者、评审人、汇总行持有者
	userIDs := make(map[string]bool)
	subByID := make(map[string]*model.Submission, len(submissions))
	for i := range submissions {
		subByID[submissions[i].SubmissionID] = &submissions[i]
		userIDs[submissions[i].AuthorID] = true
	}
	for _, a := range assessments {
		userIDs[a.ReviewerID] = true
	}
	gradingGrades := make(map[string]*float64, len(aggregations))
	for _, agg := range aggregations {
		gradingGrades[agg.UserID] = agg.GradingGrade
		userIDs[agg.UserID] = true
	}

	// 团队模式：小组身份决定行归属，组员共享组代表的提交
	memberGroup := make(map[string]*model.Group)
	subByAuthor := make(map[string]*model.Submission, len(submissions))
	for i := range submissions {
		subByAuthor[submissions[i].AuthorID] = &submissions[i]
	}
	if workshop.TeamMode {
		groups, err := s.repo.Group.ListByWorkshop(ctx, workshopID)
		if err != nil {
			return nil, nil, err
		}
		for i := range groups {
			g := &groups[i]
			var groupSub *model.Submission
			for _, m := range g.Members {
				if sub, ok := subByAuthor[m.UserID]; ok {
					groupSub = sub
					break
				}
			}
			for _, m := range g.Members {
				memberGroup[m.UserID] = g
				userIDs[m.UserID] = true
				if groupSub != nil {
					subByAuthor[m.UserID] = groupSub
				}
			}
		}
	}

	ids := make([]string, 0, len(userIDs))
	for id := range userIDs {
		ids = append(ids, id)
	}
	users, err := s.repo.User.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	userByID := make(map[string]*model.User, len(users))
	for i := range users {
		userByID[users[i].UserID] = &users[i]
	}

	toReportAssessment := func(a *model.Assessment) dto.ReportAssessment {
		ra := dto.ReportAssessment{
			AssessmentID: a.AssessmentID,
			SubmissionID: a.SubmissionID,
			ReviewerID:   a.ReviewerID,
			Weight:       a.Weight,
			Grade:        a.Grade,
			GradingGrade: a.EffectiveGradingGrade(),
			Discrepant:   discrepant[a.AssessmentID],
		}
		if u, ok := userByID[a.ReviewerID]; ok {
			ra.ReviewerName = displayName(u)
		}
		if sub, ok := subByID[a.SubmissionID]; ok {
			ra.AuthorID = sub.AuthorID
			if u, ok := userByID[sub.AuthorID]; ok {
				ra.AuthorName = displayName(u)
			}
		}
		return ra
	}

	reviewedBy := make(map[string][]dto.ReportAssessment)
	reviewerOf := make(map[string][]dto.ReportAssessment)
	for i := range assessments {
		a := &assessments[i]
		ra := toReportAssessment(a)
		reviewedBy[a.SubmissionID] = append(reviewedBy[a.SubmissionID], ra)
		reviewerOf[a.ReviewerID] = append(reviewerOf[a.ReviewerID], ra)
	}

	rows := make([]dto.ReportRow, 0, len(ids))
	for _, id := range ids {
		row := dto.ReportRow{
			UserID:       id,
			GradingGrade: gradingGrades[id],
			ReviewerOf:   reviewerOf[id],
			ReviewedBy:   []dto.ReportAssessment{},
		}
		if u, ok := userByID[id]; ok {
			row.Name = displayName(u)
		}
		if g, ok := memberGroup[id]; ok {
			row.GroupID = g.GroupID
			row.GroupName = g.Name
		}
		if sub, ok := subByAuthor[id]; ok {
			row.SubmissionID = sub.SubmissionID
			row.SubmissionTitle = sub.Title
			row.Grade = sub.FinalGrade()
			row.GradeValue = grade.ValueFromPercent(row.Grade, workshop.Grade, workshop.GradeDecimals)
			if got, ok := reviewedBy[sub.SubmissionID]; ok {
				row.ReviewedBy = got
			}
		}
		if row.ReviewerOf == nil {
			row.ReviewerOf = []dto.ReportAssessment{}
		}
		rows = append(rows, row)
	}

	s.sortRows(rows, userByID, req.SortBy, req.SortDir)
	return workshop, rows, nil
}

// sortRows 稳定多键排序：请求键优先，姓/名/ID 兜底保证确定次序
func (s *reportService) sortRows(rows []dto.ReportRow, users map[string]*model.User, sortBy, sortDir string) {
	desc := sortDir == "desc"

	nameKey := func(r dto.ReportRow) string {
		if u, ok := users[r.UserID]; ok {
			return u.LastName + "\x00" + u.FirstName + "\x00" + u.UserID
		}
		return "\x00\x00" + r.UserID
	}

	less := func(a, b dto.ReportRow) bool {
		switch sortBy {
		case "submission_title":
			if a.SubmissionTitle != b.SubmissionTitle {
				return a.SubmissionTitle < b.SubmissionTitle
			}
		case "grade":
			if cmp := comparePtr(a.Grade, b.Grade); cmp != 0 {
				return cmp < 0
			}
		case "grading_grade":
			if cmp := comparePtr(a.GradingGrade, b.GradingGrade); cmp != 0 {
				return cmp < 0
			}
		}
		return nameKey(a) < nameKey(b)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

// comparePtr nil 感知的成绩比较，nil 排在最前
func comparePtr(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case grade.Equal(*a, *b):
		return 0
	case *a < *b:
		return -1
	}
	return 1
}

func displayName(u *model.User) string {
	return strings.TrimSpace(u.LastName + " " + u.FirstName)
}

// ── xlsx 导出 ──

var reportHeaders = []string{
	"姓名", "小组", "提交标题", "提交成绩", "评审质量分", "收到评审数", "给出评审数", "离群评审数",
}

func (s *reportService) ExportReport(ctx context.Context, workshopID string, req *dto.ReportRequest) (*bytes.Buffer, string, error) {
	workshop, rows, err := s.buildRows(ctx, workshopID, req)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Report"
	f.SetSheetName("Sheet1", sheet)

	for col, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, "", err
		}
	}

	for i, row := range rows {
		discrepantCount := 0
		for _, ra := range row.ReviewedBy {
			if ra.Discrepant {
				discrepantCount++
			}
		}
		values := []interface{}{
			row.Name,
			row.GroupName,
			row.SubmissionTitle,
			cellFloat(row.GradeValue),
			cellFloat(row.GradingGrade),
			len(row.ReviewedBy),
			len(row.ReviewerOf),
			discrepantCount,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, "", err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, "", err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("报表导出失败", zap.Error(err))
		return nil, "", err
	}
	filename := fmt.Sprintf("workshop_report_%s.xlsx", workshop.WorkshopID)
	return buf, filename, nil
}

// cellFloat nil 成绩导出为空单元格
func cellFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
