package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
	pkgerrors "peerworkshop/backend/pkg/errors"
)

// 内存版仓储，行为契约（唯一约束、排序次序）与存储实现保持一致

func fptr(v float64) *float64 { return &v }

func newMockRepository() *repository.Repository {
	submissions := &mockSubmissionRepo{}
	return &repository.Repository{
		User:              &mockUserRepo{users: make(map[string]*model.User)},
		Group:             &mockGroupRepo{},
		Workshop:          &mockWorkshopRepo{workshops: make(map[string]*model.Workshop)},
		Submission:        submissions,
		Assessment:        &mockAssessmentRepo{submissions: submissions},
		DimensionGrade:    &mockDimensionGradeRepo{},
		Aggregation:       &mockAggregationRepo{},
		ExampleAssignment: &mockExampleAssignmentRepo{},
		Gradebook:         &mockGradebookRepo{},
	}
}

// ── User / Group ──

type mockUserRepo struct {
	users map[string]*model.User
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (m *mockUserRepo) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		if users[i].FirstName != users[j].FirstName {
			return users[i].FirstName < users[j].FirstName
		}
		return users[i].UserID < users[j].UserID
	})
	total := int64(len(users))
	if offset > len(users) {
		offset = len(users)
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end], total, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.UserID] = user
	return nil
}

type mockGroupRepo struct {
	groups []*model.Group
}

func (m *mockGroupRepo) Create(_ context.Context, group *model.Group) error {
	if group.GroupID == "" {
		group.GroupID = uuid.New().String()
	}
	m.groups = append(m.groups, group)
	return nil
}

func (m *mockGroupRepo) GetByID(_ context.Context, id string) (*model.Group, error) {
	for _, g := range m.groups {
		if g.GroupID == id {
			return g, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGroupRepo) GetGroupOfUser(_ context.Context, workshopID, userID string) (*model.Group, error) {
	for _, g := range m.groups {
		if g.WorkshopID != workshopID {
			continue
		}
		for _, member := range g.Members {
			if member.UserID == userID {
				return g, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGroupRepo) ListByWorkshop(_ context.Context, workshopID string) ([]model.Group, error) {
	var groups []model.Group
	for _, g := range m.groups {
		if g.WorkshopID == workshopID {
			groups = append(groups, *g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (m *mockGroupRepo) AddMember(_ context.Context, member *model.GroupMember) error {
	for _, g := range m.groups {
		if g.GroupID == member.GroupID {
			g.Members = append(g.Members, *member)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Workshop ──

type mockWorkshopRepo struct {
	workshops map[string]*model.Workshop
}

func (m *mockWorkshopRepo) Create(_ context.Context, workshop *model.Workshop) error {
	if workshop.WorkshopID == "" {
		workshop.WorkshopID = uuid.New().String()
	}
	m.workshops[workshop.WorkshopID] = workshop
	return nil
}

func (m *mockWorkshopRepo) GetByID(_ context.Context, id string) (*model.Workshop, error) {
	if w, ok := m.workshops[id]; ok {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkshopRepo) List(_ context.Context, offset, limit int) ([]model.Workshop, int64, error) {
	var workshops []model.Workshop
	for _, w := range m.workshops {
		workshops = append(workshops, *w)
	}
	return workshops, int64(len(workshops)), nil
}

func (m *mockWorkshopRepo) Update(_ context.Context, workshop *model.Workshop) error {
	existing, ok := m.workshops[workshop.WorkshopID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if existing.Version != workshop.Version {
		return pkgerrors.ErrOptimisticLock
	}
	workshop.Version++
	m.workshops[workshop.WorkshopID] = workshop
	return nil
}

func (m *mockWorkshopRepo) SwitchPhase(_ context.Context, id string, phase int, updatedBy string) error {
	w, ok := m.workshops[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	w.Phase = phase
	w.UpdatedBy = &updatedBy
	return nil
}

func (m *mockWorkshopRepo) Delete(_ context.Context, id string, deletedBy string) error {
	delete(m.workshops, id)
	return nil
}

func (m *mockWorkshopRepo) ListAutoSwitchDue(_ context.Context, now time.Time) ([]model.Workshop, error) {
	var due []model.Workshop
	for _, w := range m.workshops {
		if w.Phase == model.PhaseSubmission && w.PhaseSwitchAssessment &&
			w.SubmissionEnd != nil && !w.SubmissionEnd.After(now) {
			due = append(due, *w)
		}
	}
	return due, nil
}

func (m *mockWorkshopRepo) AdvanceToAssessment(_ context.Context, id string) (bool, error) {
	w, ok := m.workshops[id]
	if !ok {
		return false, nil
	}
	if w.Phase != model.PhaseSubmission || !w.PhaseSwitchAssessment {
		return false, nil
	}
	w.Phase = model.PhaseAssessment
	w.PhaseSwitchAssessment = false
	return true, nil
}

// ── Submission ──

type mockSubmissionRepo struct {
	submissions []*model.Submission
}

func (m *mockSubmissionRepo) Create(_ context.Context, submission *model.Submission) error {
	if submission.SubmissionID == "" {
		submission.SubmissionID = uuid.New().String()
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now()
	}
	m.submissions = append(m.submissions, submission)
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	for _, s := range m.submissions {
		if s.SubmissionID == id && !s.DeletedAt.Valid {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) GetByAuthor(_ context.Context, workshopID, authorID string) (*model.Submission, error) {
	for _, s := range m.submissions {
		if s.WorkshopID == workshopID && s.AuthorID == authorID && !s.Example && !s.DeletedAt.Valid {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) ListByWorkshop(_ context.Context, workshopID string, example bool) ([]model.Submission, error) {
	var result []model.Submission
	for _, s := range m.submissions {
		if s.WorkshopID == workshopID && s.Example == example && !s.DeletedAt.Valid {
			result = append(result, *s)
		}
	}
	if example {
		// 与存储实现一致：grade ASC NULLS FIRST, title ASC, submission_id ASC
		sort.Slice(result, func(i, j int) bool {
			gi, gj := result[i].Grade, result[j].Grade
			switch {
			case gi == nil && gj != nil:
				return true
			case gi != nil && gj == nil:
				return false
			case gi != nil && gj != nil && *gi != *gj:
				return *gi < *gj
			}
			if result[i].Title != result[j].Title {
				return result[i].Title < result[j].Title
			}
			return result[i].SubmissionID < result[j].SubmissionID
		})
	}
	return result, nil
}

func (m *mockSubmissionRepo) Update(_ context.Context, submission *model.Submission) error {
	for i, s := range m.submissions {
		if s.SubmissionID == submission.SubmissionID {
			m.submissions[i] = submission
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) UpdateGrade(_ context.Context, id string, grade *float64, timeGraded time.Time) error {
	for _, s := range m.submissions {
		if s.SubmissionID == id {
			s.Grade = grade
			t := timeGraded
			s.TimeGraded = &t
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) UpdateGradeOver(_ context.Context, id string, gradeOver *float64, overBy string) error {
	for _, s := range m.submissions {
		if s.SubmissionID == id {
			s.GradeOver = gradeOver
			s.GradeOverBy = &overBy
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) Delete(_ context.Context, id string, deletedBy string) error {
	for _, s := range m.submissions {
		if s.SubmissionID == id {
			s.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
			s.DeletedBy = &deletedBy
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Assessment / DimensionGrade ──

type mockAssessmentRepo struct {
	assessments []*model.Assessment
	submissions *mockSubmissionRepo
}

func (m *mockAssessmentRepo) Create(_ context.Context, assessment *model.Assessment) error {
	for _, a := range m.assessments {
		if a.SubmissionID == assessment.SubmissionID && a.ReviewerID == assessment.ReviewerID {
			return pkgerrors.ErrAllocationExists
		}
	}
	if assessment.AssessmentID == "" {
		assessment.AssessmentID = uuid.New().String()
	}
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = time.Now()
	}
	m.assessments = append(m.assessments, assessment)
	return nil
}

func (m *mockAssessmentRepo) GetByID(_ context.Context, id string) (*model.Assessment, error) {
	for _, a := range m.assessments {
		if a.AssessmentID == id {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssessmentRepo) GetBySubmissionAndReviewer(_ context.Context, submissionID, reviewerID string) (*model.Assessment, error) {
	for _, a := range m.assessments {
		if a.SubmissionID == submissionID && a.ReviewerID == reviewerID {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssessmentRepo) ListBySubmission(_ context.Context, submissionID string) ([]model.Assessment, error) {
	var result []model.Assessment
	for _, a := range m.assessments {
		if a.SubmissionID == submissionID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssessmentRepo) ListByWorkshop(_ context.Context, workshopID string, example bool) ([]model.Assessment, error) {
	var result []model.Assessment
	for _, a := range m.assessments {
		sub := m.findSubmission(a.SubmissionID)
		if sub == nil || sub.WorkshopID != workshopID || sub.Example != example || sub.DeletedAt.Valid {
			continue
		}
		copied := *a
		subCopy := *sub
		copied.Submission = &subCopy
		result = append(result, copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SubmissionID != result[j].SubmissionID {
			return result[i].SubmissionID < result[j].SubmissionID
		}
		return result[i].ReviewerID < result[j].ReviewerID
	})
	return result, nil
}

func (m *mockAssessmentRepo) ListByReviewer(_ context.Context, workshopID, reviewerID string, example bool) ([]model.Assessment, error) {
	all, _ := m.ListByWorkshop(context.Background(), workshopID, example)
	var result []model.Assessment
	for _, a := range all {
		if a.ReviewerID == reviewerID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAssessmentRepo) CountReference(_ context.Context, submissionID string) (int64, error) {
	var count int64
	for _, a := range m.assessments {
		if a.SubmissionID == submissionID && a.Weight == model.WeightExampleReference {
			count++
		}
	}
	return count, nil
}

func (m *mockAssessmentRepo) Update(_ context.Context, assessment *model.Assessment) error {
	for i, a := range m.assessments {
		if a.AssessmentID == assessment.AssessmentID {
			m.assessments[i] = assessment
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockAssessmentRepo) UpdateGrade(_ context.Context, id string, grade *float64, timeGraded time.Time) error {
	for _, a := range m.assessments {
		if a.AssessmentID == id {
			a.Grade = grade
			t := timeGraded
			a.TimeGraded = &t
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockAssessmentRepo) UpdateGradingGrade(_ context.Context, id string, gradingGrade *float64, timeGraded time.Time) error {
	for _, a := range m.assessments {
		if a.AssessmentID == id {
			a.GradingGrade = gradingGrade
			t := timeGraded
			a.TimeGraded = &t
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockAssessmentRepo) UpdateWeight(_ context.Context, id string, weight int) error {
	for _, a := range m.assessments {
		if a.AssessmentID == id {
			a.Weight = weight
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockAssessmentRepo) UpdateSubmitterFlag(_ context.Context, id string, flag int) error {
	for _, a := range m.assessments {
		if a.AssessmentID == id {
			a.SubmitterFlagged = flag
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockAssessmentRepo) DeleteByIDs(_ context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.assessments[:0]
	for _, a := range m.assessments {
		if !drop[a.AssessmentID] {
			kept = append(kept, a)
		}
	}
	m.assessments = kept
	return nil
}

func (m *mockAssessmentRepo) DeleteBySubmission(_ context.Context, submissionID string) error {
	kept := m.assessments[:0]
	for _, a := range m.assessments {
		if a.SubmissionID != submissionID {
			kept = append(kept, a)
		}
	}
	m.assessments = kept
	return nil
}

func (m *mockAssessmentRepo) findSubmission(id string) *model.Submission {
	if m.submissions == nil {
		return nil
	}
	for _, s := range m.submissions.submissions {
		if s.SubmissionID == id {
			return s
		}
	}
	return nil
}

type mockDimensionGradeRepo struct {
	grades []model.AssessmentDimensionGrade
}

func (m *mockDimensionGradeRepo) ReplaceForAssessment(_ context.Context, assessmentID string, grades []model.AssessmentDimensionGrade) error {
	kept := m.grades[:0]
	for _, g := range m.grades {
		if g.AssessmentID != assessmentID {
			kept = append(kept, g)
		}
	}
	m.grades = append(kept, grades...)
	return nil
}

func (m *mockDimensionGradeRepo) ListByAssessment(_ context.Context, assessmentID string) ([]model.AssessmentDimensionGrade, error) {
	var result []model.AssessmentDimensionGrade
	for _, g := range m.grades {
		if g.AssessmentID == assessmentID {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DimensionNumber < result[j].DimensionNumber })
	return result, nil
}

func (m *mockDimensionGradeRepo) DeleteByAssessments(_ context.Context, assessmentIDs []string) error {
	drop := make(map[string]bool, len(assessmentIDs))
	for _, id := range assessmentIDs {
		drop[id] = true
	}
	kept := m.grades[:0]
	for _, g := range m.grades {
		if !drop[g.AssessmentID] {
			kept = append(kept, g)
		}
	}
	m.grades = kept
	return nil
}

// ── Aggregation ──

type mockAggregationRepo struct {
	rows []*model.Aggregation
}

func (m *mockAggregationRepo) GetByWorkshopAndUser(_ context.Context, workshopID, userID string) (*model.Aggregation, error) {
	for _, r := range m.rows {
		if r.WorkshopID == workshopID && r.UserID == userID {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAggregationRepo) ListByWorkshop(_ context.Context, workshopID string) ([]model.Aggregation, error) {
	var result []model.Aggregation
	for _, r := range m.rows {
		if r.WorkshopID == workshopID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (m *mockAggregationRepo) Create(_ context.Context, aggregation *model.Aggregation) error {
	for _, r := range m.rows {
		if r.WorkshopID == aggregation.WorkshopID && r.UserID == aggregation.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	if aggregation.AggregationID == "" {
		aggregation.AggregationID = uuid.New().String()
	}
	m.rows = append(m.rows, aggregation)
	return nil
}

func (m *mockAggregationRepo) Update(_ context.Context, aggregation *model.Aggregation) error {
	for i, r := range m.rows {
		if r.AggregationID == aggregation.AggregationID {
			m.rows[i] = aggregation
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── ExampleAssignment ──

type mockExampleAssignmentRepo struct {
	rows   []*model.ExampleAssignment
	nextID int64
}

func (m *mockExampleAssignmentRepo) ListByUser(_ context.Context, workshopID, userID string) ([]model.ExampleAssignment, error) {
	var result []model.ExampleAssignment
	for _, r := range m.rows {
		if r.WorkshopID == workshopID && r.UserID == userID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockExampleAssignmentRepo) ListByWorkshop(_ context.Context, workshopID string) ([]model.ExampleAssignment, error) {
	var result []model.ExampleAssignment
	for _, r := range m.rows {
		if r.WorkshopID == workshopID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UserID != result[j].UserID {
			return result[i].UserID < result[j].UserID
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *mockExampleAssignmentRepo) BatchCreate(_ context.Context, assignments []model.ExampleAssignment) error {
	for i := range assignments {
		for _, r := range m.rows {
			if r.WorkshopID == assignments[i].WorkshopID &&
				r.UserID == assignments[i].UserID &&
				r.SubmissionID == assignments[i].SubmissionID {
				return gorm.ErrDuplicatedKey
			}
		}
		m.nextID++
		assignments[i].ID = m.nextID
		row := assignments[i]
		m.rows = append(m.rows, &row)
	}
	return nil
}

// ── Gradebook ──

type mockGradebookRepo struct {
	rows []*model.GradebookGrade
}

func (m *mockGradebookRepo) BatchUpsert(_ context.Context, grades []model.GradebookGrade) error {
	for i := range grades {
		replaced := false
		for j, r := range m.rows {
			if r.WorkshopID == grades[i].WorkshopID && r.UserID == grades[i].UserID && r.Kind == grades[i].Kind {
				row := grades[i]
				row.GradebookGradeID = r.GradebookGradeID
				m.rows[j] = &row
				replaced = true
				break
			}
		}
		if !replaced {
			row := grades[i]
			if row.GradebookGradeID == "" {
				row.GradebookGradeID = uuid.New().String()
			}
			m.rows = append(m.rows, &row)
		}
	}
	return nil
}

func (m *mockGradebookRepo) ListByWorkshop(_ context.Context, workshopID string) ([]model.GradebookGrade, error) {
	var result []model.GradebookGrade
	for _, r := range m.rows {
		if r.WorkshopID == workshopID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UserID != result[j].UserID {
			return result[i].UserID < result[j].UserID
		}
		return result[i].Kind < result[j].Kind
	})
	return result, nil
}
