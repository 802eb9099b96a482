package service

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"peerworkshop/backend/config"
	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
	"peerworkshop/backend/pkg/grade"
)

func testWorkshopConfig() *config.WorkshopConfig {
	return &config.WorkshopConfig{
		DiscrepancyMinAssessments: 3,
		DiscrepancyStdDevs:        2.0,
		CalibrationScoreTTL:       30,
	}
}

func newEvaluationFixture(t *testing.T) (*repository.Repository, EvaluationService, *model.Workshop) {
	t.Helper()
	repo := newMockRepository()
	workshop := &model.Workshop{
		Name:         "互评汇总",
		Phase:        model.PhaseEvaluation,
		Grade:        80,
		GradingGrade: 20,
		Strategy:     "accumulative",
		Evaluation:   "best",
	}
	if err := repo.Workshop.Create(context.Background(), workshop); err != nil {
		t.Fatalf("创建工作坊失败: %v", err)
	}

	example := exampleServiceWithSeed(repo, 1)
	calibration := NewCalibrationService(repo, example, nil, testWorkshopConfig(), zap.NewNop())
	svc := NewEvaluationService(repo, calibration, testWorkshopConfig(), zap.NewNop())
	return repo, svc, workshop
}

func addGradedAssessment(t *testing.T, repo *repository.Repository, submissionID, reviewerID string, g *float64, weight int) *model.Assessment {
	t.Helper()
	a := &model.Assessment{
		SubmissionID: submissionID,
		ReviewerID:   reviewerID,
		Weight:       weight,
		Grade:        g,
	}
	if err := repo.Assessment.Create(context.Background(), a); err != nil {
		t.Fatalf("创建评审失败: %v", err)
	}
	return a
}

func TestAggregateSubmissionGradesWeightedMean(t *testing.T) {
	repo, svc, workshop := newEvaluationFixture(t)
	sub := createSubmission(t, repo, workshop.WorkshopID, "author-1", false)

	addGradedAssessment(t, repo, sub.SubmissionID, "r1", fptr(80), 2)
	addGradedAssessment(t, repo, sub.SubmissionID, "r2", fptr(60), 1)
	addGradedAssessment(t, repo, sub.SubmissionID, "r3", fptr(90), 1)
	// 未评分与零权重均不计入
	addGradedAssessment(t, repo, sub.SubmissionID, "r4", nil, 3)
	addGradedAssessment(t, repo, sub.SubmissionID, "r5", fptr(5), 0)

	updated, err := svc.AggregateSubmissionGrades(context.Background(), workshop.WorkshopID)
	if err != nil {
		t.Fatalf("汇总失败: %v", err)
	}
	if updated != 1 {
		t.Fatalf("应更新 1 条提交, got %d", updated)
	}

	got, _ := repo.Submission.GetByID(context.Background(), sub.SubmissionID)
	want := (80.0*2 + 60 + 90) / 4
	if got.Grade == nil || grade.Different(*got.Grade, want) {
		t.Errorf("加权平均应为 %v, got %v", want, got.Grade)
	}
	if got.TimeGraded == nil {
		t.Error("汇总应写入评分时间")
	}
}

func TestAggregateSubmissionGradesEpsilonGuard(t *testing.T) {
	repo, svc, workshop := newEvaluationFixture(t)
	sub := createSubmission(t, repo, workshop.WorkshopID, "author-1", false)
	addGradedAssessment(t, repo, sub.SubmissionID, "r1", fptr(75), 1)

	if _, err := svc.AggregateSubmissionGrades(context.Background(), workshop.WorkshopID); err != nil {
		t.Fatalf("首次汇总失败: %v", err)
	}
	updated, err := svc.AggregateSubmissionGrades(context.Background(), workshop.WorkshopID)
	if err != nil {
		t.Fatalf("二次汇总失败: %v", err)
	}
	if updated != 0 {
		t.Errorf("结果未变时不应回写, got %d", updated)
	}
}

func TestSubmissionOverridePrecedence(t *testing.T) {
	repo, svc, workshop := newEvaluationFixture(t)
	sub := createSubmission(t, repo, workshop.WorkshopID, "author-1", false)
	sub.GradeOver = fptr(90)
	addGradedAssessment(t, repo, sub.SubmissionID, "r1", fptr(50), 1)

	if err := svc.RunEvaluation(context.Background(), workshop.WorkshopID); err != nil {
		t.Fatalf("评估失败: %v", err)
	}

	// 有覆写的提交不落计算值，生效与推送的都是覆写值
	got, _ := repo.Submission.GetByID(context.Background(), sub.SubmissionID)
	if got.Grade != nil {
		t.Errorf("有覆写时不应回写计算值, got %v", *got.Grade)
	}
	if got.TimeGraded != nil {
		t.Error("有覆写时不应更新评分时间")
	}
	if final := got.FinalGrade(); final == nil || grade.Different(*final, 90) {
		t.Errorf("生效成绩应为覆写值 90, got %v", final)
	}

	rows, _ := repo.Gradebook.ListByWorkshop(context.Background(), workshop.WorkshopID)
	var found bool
	for _, row := range rows {
		if row.UserID == "author-1" && row.Kind == model.GradebookKindSubmission {
			found = true
			// 90% × 满分 80 = 72
			if row.RawGrade == nil || grade.Different(*row.RawGrade, 72) {
				t.Errorf("成绩册应推送覆写值换算结果 72, got %v", row.RawGrade)
			}
		}
	}
	if !found {
		t.Error("成绩册缺少提交成绩行")
	}
}

func TestAggregateGradingGradesIdempotent(t *testing.T) {
	repo, svc, workshop := newEvaluationFixture(t)
	sub := createSubmission(t, repo, workshop.WorkshopID, "author-1", false)

	a1 := addGradedAssessment(t, repo, sub.SubmissionID, "r1", fptr(80), 1)
	a1.GradingGrade = fptr(90)
	a2 := addGradedAssessment(t, repo, sub.SubmissionID, "r2", fptr(70), 1)
	a2.GradingGrade = fptr(60)
	a2.GradingGradeOver = fptr(100) // 逐条覆写优先

	events, err := svc.AggregateGradingGrades(context.Background(), workshop.WorkshopID)
	if err != nil {
		t.Fatalf("质量分汇总失败: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("首轮应产生 2 个新建事件, got %d", len(events))
	}
	for _, ev := range events {
		if !ev.Created {
			t.Errorf("首轮事件应为新建, user=%s", ev.UserID)
		}
	}

	agg, err := repo.Aggregation.GetByWorkshopAndUser(context.Background(), workshop.WorkshopID, "r2")
	if err != nil {
		t.Fatalf("查询汇总行失败: %v", err)
	}
	if agg.GradingGrade == nil || grade.Different(*agg.GradingGrade, 100) {
		t.Errorf("r2 的质量分应取覆写值 100, got %v", agg.GradingGrade)
	}

	// 输入未变时重复运行不产生事件
	again, err := svc.AggregateGradingGrades(context.Background(), workshop.WorkshopID)
	if err != nil {
		t.Fatalf("二次汇总失败: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("重复运行不应产生事件, got %d", len(again))
	}
}

func TestGradingGradeOverrideCountsWithoutGrade(t *testing.T) {
	repo, svc, workshop := newEvaluationFixture(t)
	sub := createSubmission(t, repo, workshop.WorkshopID, "author-1", false)
	a := addGradedAssessment(t, repo, sub.SubmissionID, "r1", nil, 1)
	a.GradingGradeOver = fptr(65)

	events, err := svc.AggregateGradingGrades(context.Background(), workshop.WorkshopID)
	if err != nil {
		t.Fatalf("质量分汇总失败: %v", err)
	}
	// 成绩为空不妨碍覆写生效：教师可以直接给未评分的评审定质量分
	if len(events) != 1 {
		t.Fatalf("覆写质量分应产生 1 个汇总事件, got %d", len(events))
	}
	if events[0].UserID != "r1" || !events[0].Created {
		t.Errorf("应为 r1 新建汇总行, got %+v", events[0])
	}
	agg, err := repo.Aggregation.GetByWorkshopAndUser(context.Background(), workshop.WorkshopID, "r1")
	if err != nil {
		t.Fatalf("查询汇总行失败: %v", err)
	}
	if agg.GradingGrade == nil || grade.Different(*agg.GradingGrade, 65) {
		t.Errorf("质量分应取覆写值 65, got %v", agg.GradingGrade)
	}
}

func TestNoAggregationRowWithoutGradedAssessments(t *testing.T) {
	repo, svc, workshop := newEvaluationFixture(t)
	sub := createSubmission(t, repo, workshop.WorkshopID, "author-1", false)
	addGradedAssessment(t, repo, sub.SubmissionID, "r1", nil, 1)

	events, err := svc.AggregateGradingGrades(context.Background(), workshop.WorkshopID)
	if err != nil {
		t.Fatalf("汇总失败: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("无已评分评审的评审人不应产生汇总行, got %d", len(events))
	}
}

func TestBestEvaluatorDistanceFalloff(t *testing.T) {
	sub := "sub-1"
	assessments := []model.Assessment{
		{AssessmentID: "a1", SubmissionID: sub, ReviewerID: "r1", Weight: 1, Grade: fptr(80)},
		{AssessmentID: "a2", SubmissionID: sub, ReviewerID: "r2", Weight: 1, Grade: fptr(60)},
	}

	grades := bestEvaluator{}.GradingGrades(assessments)
	// 加权平均 70：各偏离 10 分，质量分均为 90
	for _, id := range []string{"a1", "a2"} {
		gg, ok := grades[id]
		if !ok || gg == nil {
			t.Fatalf("%s 应获得质量分", id)
		}
		if grade.Different(*gg, 90) {
			t.Errorf("%s 质量分应为 90, got %v", id, *gg)
		}
	}
}

func TestDiscrepantAssessments(t *testing.T) {
	sub := "sub-1"
	vals := []float64{50, 52, 48, 51, 49, 95}
	assessments := make([]model.Assessment, 0, len(vals))
	for i, v := range vals {
		assessments = append(assessments, model.Assessment{
			AssessmentID: string(rune('a' + i)),
			SubmissionID: sub,
			Weight:       1,
			Grade:        fptr(v),
		})
	}

	flags := DiscrepantAssessments(assessments, 3, 2.0)
	// 中位数 50.5，总体标准差约 16.8：仅 95 落在 ±2σ 之外
	if len(flags) != 1 || !flags["f"] {
		t.Errorf("仅 95 分的评审应被标记, got %v", flags)
	}
}

func TestDiscrepantAssessmentsBelowThreshold(t *testing.T) {
	sub := "sub-1"
	assessments := []model.Assessment{
		{AssessmentID: "a1", SubmissionID: sub, Weight: 1, Grade: fptr(10)},
		{AssessmentID: "a2", SubmissionID: sub, Weight: 1, Grade: fptr(90)},
	}
	if flags := DiscrepantAssessments(assessments, 3, 2.0); len(flags) != 0 {
		t.Errorf("有效评分数不足时不做离群检测, got %v", flags)
	}
}

func TestGradebookTeamExpansion(t *testing.T) {
	repo, svc, workshop := newEvaluationFixture(t)
	workshop.TeamMode = true

	group := &model.Group{WorkshopID: workshop.WorkshopID, Name: "A组"}
	if err := repo.Group.Create(context.Background(), group); err != nil {
		t.Fatalf("创建小组失败: %v", err)
	}
	for _, uid := range []string{"member-1", "member-2"} {
		if err := repo.Group.AddMember(context.Background(), &model.GroupMember{GroupID: group.GroupID, UserID: uid}); err != nil {
			t.Fatalf("添加成员失败: %v", err)
		}
	}
	sub := createSubmission(t, repo, workshop.WorkshopID, "member-1", false)
	addGradedAssessment(t, repo, sub.SubmissionID, "outsider", fptr(50), 1)

	if err := svc.RunEvaluation(context.Background(), workshop.WorkshopID); err != nil {
		t.Fatalf("评估失败: %v", err)
	}

	rows, _ := repo.Gradebook.ListByWorkshop(context.Background(), workshop.WorkshopID)
	var memberRows []*float64
	for i := range rows {
		if rows[i].Kind == model.GradebookKindSubmission {
			memberRows = append(memberRows, rows[i].RawGrade)
		}
	}
	if len(memberRows) != 2 {
		t.Fatalf("团队提交应为每位成员各推一行, got %d", len(memberRows))
	}
	for i, raw := range memberRows {
		// 50% × 满分 80 = 40
		if raw == nil || grade.Different(*raw, 40) {
			t.Errorf("成员 %d 的成绩应为 40, got %v", i, raw)
		}
	}
}

func TestRunEvaluationGradingGradeScaled(t *testing.T) {
	repo, svc, workshop := newEvaluationFixture(t)
	sub := createSubmission(t, repo, workshop.WorkshopID, "author-1", false)
	addGradedAssessment(t, repo, sub.SubmissionID, "r1", fptr(70), 1)

	if err := svc.RunEvaluation(context.Background(), workshop.WorkshopID); err != nil {
		t.Fatalf("评估失败: %v", err)
	}

	// 唯一评审与均值重合：质量分 100% × 满分 20 = 20
	rows, _ := repo.Gradebook.ListByWorkshop(context.Background(), workshop.WorkshopID)
	var got *float64
	for i := range rows {
		if rows[i].UserID == "r1" && rows[i].Kind == model.GradebookKindGrading {
			got = rows[i].RawGrade
		}
	}
	if got == nil || math.Abs(*got-20) > grade.Epsilon {
		t.Errorf("质量分推送应为 20, got %v", got)
	}
}
