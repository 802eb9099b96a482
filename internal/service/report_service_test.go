package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"peerworkshop/backend/internal/dto"
	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
	"peerworkshop/backend/pkg/grade"
)

func newReportFixture(t *testing.T, mutate func(*model.Workshop)) (*repository.Repository, ReportService, *model.Workshop) {
	t.Helper()
	repo := newMockRepository()
	workshop := seedWorkshop(t, repo, func(w *model.Workshop) {
		w.Phase = model.PhaseEvaluation
		if mutate != nil {
			mutate(w)
		}
	})
	svc := NewReportService(repo, testWorkshopConfig(), zap.NewNop())
	return repo, svc, workshop
}

func addUser(t *testing.T, repo *repository.Repository, id, lastName, firstName string) {
	t.Helper()
	user := &model.User{UserID: id, LastName: lastName, FirstName: firstName, Email: id + "@test.local"}
	if err := repo.User.Create(context.Background(), user); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
}

func TestBuildReportRows(t *testing.T) {
	repo, svc, workshop := newReportFixture(t, nil)
	addUser(t, repo, "u-author", "张", "三")
	addUser(t, repo, "u-reviewer", "李", "四")

	sub := createSubmission(t, repo, workshop.WorkshopID, "u-author", false)
	sub.Grade = fptr(75)
	a := addGradedAssessment(t, repo, sub.SubmissionID, "u-reviewer", fptr(75), 1)
	a.GradingGrade = fptr(90)

	resp, err := svc.BuildReport(context.Background(), workshop.WorkshopID, &dto.ReportRequest{})
	if err != nil {
		t.Fatalf("构建报表失败: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("应有 2 名参与者, got %d", resp.Total)
	}

	byID := make(map[string]dto.ReportRow, len(resp.Rows))
	for _, row := range resp.Rows {
		byID[row.UserID] = row
	}

	author := byID["u-author"]
	if author.SubmissionID != sub.SubmissionID {
		t.Errorf("作者行应带其提交, got %q", author.SubmissionID)
	}
	if len(author.ReviewedBy) != 1 || author.ReviewedBy[0].ReviewerID != "u-reviewer" {
		t.Errorf("作者行应含收到的评审, got %v", author.ReviewedBy)
	}
	// 75% × 80 = 60
	if author.GradeValue == nil || grade.Different(*author.GradeValue, 60) {
		t.Errorf("展示成绩应为 60, got %v", author.GradeValue)
	}

	reviewer := byID["u-reviewer"]
	if len(reviewer.ReviewerOf) != 1 || reviewer.ReviewerOf[0].SubmissionID != sub.SubmissionID {
		t.Errorf("评审人行应含给出的评审, got %v", reviewer.ReviewerOf)
	}
	if reviewer.ReviewerOf[0].GradingGrade == nil || grade.Different(*reviewer.ReviewerOf[0].GradingGrade, 90) {
		t.Errorf("评审条目应带质量分 90, got %v", reviewer.ReviewerOf[0].GradingGrade)
	}
}

func TestReportDiscrepantFlag(t *testing.T) {
	repo, svc, workshop := newReportFixture(t, nil)
	addUser(t, repo, "u-author", "王", "五")

	sub := createSubmission(t, repo, workshop.WorkshopID, "u-author", false)
	vals := []float64{50, 52, 48, 51, 49, 95}
	for i, v := range vals {
		addGradedAssessment(t, repo, sub.SubmissionID, string(rune('a'+i)), fptr(v), 1)
	}

	resp, err := svc.BuildReport(context.Background(), workshop.WorkshopID, &dto.ReportRequest{PaginationRequest: dto.PaginationRequest{PageSize: 50}})
	if err != nil {
		t.Fatalf("构建报表失败: %v", err)
	}

	var flagged int
	for _, row := range resp.Rows {
		if row.UserID != "u-author" {
			continue
		}
		for _, ra := range row.ReviewedBy {
			if ra.Discrepant {
				flagged++
				if ra.Grade == nil || grade.Different(*ra.Grade, 95) {
					t.Errorf("被标记的应是 95 分评审, got %v", ra.Grade)
				}
			}
		}
	}
	if flagged != 1 {
		t.Errorf("应恰有 1 条离群评审, got %d", flagged)
	}
}

func TestReportSortByGradeDesc(t *testing.T) {
	repo, svc, workshop := newReportFixture(t, nil)
	addUser(t, repo, "u1", "赵", "一")
	addUser(t, repo, "u2", "钱", "二")
	addUser(t, repo, "u3", "孙", "三")

	for uid, g := range map[string]float64{"u1": 60, "u2": 90, "u3": 75} {
		sub := createSubmission(t, repo, workshop.WorkshopID, uid, false)
		sub.Grade = fptr(g)
	}

	resp, err := svc.BuildReport(context.Background(), workshop.WorkshopID, &dto.ReportRequest{SortBy: "grade", SortDir: "desc"})
	if err != nil {
		t.Fatalf("构建报表失败: %v", err)
	}
	want := []string{"u2", "u3", "u1"}
	for i, uid := range want {
		if resp.Rows[i].UserID != uid {
			t.Errorf("第 %d 行应为 %s, got %s", i, uid, resp.Rows[i].UserID)
		}
	}
}

func TestReportSortNameTieBreak(t *testing.T) {
	repo, svc, workshop := newReportFixture(t, nil)
	// 同成绩按 姓/名/ID 兜底
	addUser(t, repo, "u1", "Li", "Bo")
	addUser(t, repo, "u2", "Li", "An")
	for _, uid := range []string{"u1", "u2"} {
		sub := createSubmission(t, repo, workshop.WorkshopID, uid, false)
		sub.Grade = fptr(70)
	}

	resp, err := svc.BuildReport(context.Background(), workshop.WorkshopID, &dto.ReportRequest{SortBy: "grade"})
	if err != nil {
		t.Fatalf("构建报表失败: %v", err)
	}
	if resp.Rows[0].UserID != "u2" || resp.Rows[1].UserID != "u1" {
		t.Errorf("同分应按名字典序: got %s, %s", resp.Rows[0].UserID, resp.Rows[1].UserID)
	}
}

func TestReportTeamGrouping(t *testing.T) {
	repo, svc, workshop := newReportFixture(t, func(w *model.Workshop) {
		w.TeamMode = true
	})
	addUser(t, repo, "aaa", "陈", "一")
	addUser(t, repo, "bbb", "林", "二")

	group := &model.Group{WorkshopID: workshop.WorkshopID, Name: "A组"}
	if err := repo.Group.Create(context.Background(), group); err != nil {
		t.Fatalf("创建小组失败: %v", err)
	}
	for _, uid := range []string{"aaa", "bbb"} {
		if err := repo.Group.AddMember(context.Background(), &model.GroupMember{GroupID: group.GroupID, UserID: uid}); err != nil {
			t.Fatalf("添加成员失败: %v", err)
		}
	}
	sub := createSubmission(t, repo, workshop.WorkshopID, "aaa", false)
	sub.Grade = fptr(80)

	resp, err := svc.BuildReport(context.Background(), workshop.WorkshopID, &dto.ReportRequest{})
	if err != nil {
		t.Fatalf("构建报表失败: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("两名组员各一行, got %d", len(resp.Rows))
	}
	for _, row := range resp.Rows {
		if row.GroupID != group.GroupID || row.GroupName != "A组" {
			t.Errorf("行 %s 应归属 A组, got %q/%q", row.UserID, row.GroupID, row.GroupName)
		}
		if row.SubmissionID != sub.SubmissionID {
			t.Errorf("组员 %s 应共享小组提交, got %q", row.UserID, row.SubmissionID)
		}
	}
}

func TestExportReportXlsx(t *testing.T) {
	repo, svc, workshop := newReportFixture(t, nil)
	addUser(t, repo, "u-author", "周", "八")
	sub := createSubmission(t, repo, workshop.WorkshopID, "u-author", false)
	sub.Grade = fptr(50)

	buf, filename, err := svc.ExportReport(context.Background(), workshop.WorkshopID, &dto.ReportRequest{})
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if buf == nil || buf.Len() == 0 {
		t.Error("导出内容不应为空")
	}
	if filename == "" {
		t.Error("文件名不应为空")
	}
}
