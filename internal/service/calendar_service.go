package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"gorm.io/gorm"

	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
)

// CalendarService 截止日历导出业务接口
type CalendarService interface {
	// ExportDeadlines 把工作坊的提交/互评窗口导出为 iCalendar 文本
	ExportDeadlines(ctx context.Context, workshopID string) (string, error)
}

type calendarService struct {
	repo *repository.Repository
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository) CalendarService {
	return &calendarService{repo: repo}
}

func (s *calendarService) ExportDeadlines(ctx context.Context, workshopID string) (string, error) {
	workshop, err := s.repo.Workshop.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrWorkshopNotFound
		}
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//peerworkshop//deadlines//CN")

	addDeadline(cal, workshop, "submission-open", "提交开始", workshop.SubmissionStart)
	addDeadline(cal, workshop, "submission-close", "提交截止", workshop.SubmissionEnd)
	addDeadline(cal, workshop, "assessment-open", "互评开始", workshop.AssessmentStart)
	addDeadline(cal, workshop, "assessment-close", "互评截止", workshop.AssessmentEnd)

	return cal.Serialize(), nil
}

// addDeadline 为非空的时间点追加一个零时长事件
func addDeadline(cal *ics.Calendar, workshop *model.Workshop, slug, label string, at *time.Time) {
	if at == nil {
		return
	}
	event := cal.AddEvent(fmt.Sprintf("%s-%s@peerworkshop", workshop.WorkshopID, slug))
	event.SetCreatedTime(time.Now())
	event.SetStartAt(*at)
	event.SetEndAt(*at)
	event.SetSummary(fmt.Sprintf("%s：%s", workshop.Name, label))
	if workshop.Description != "" {
		event.SetDescription(workshop.Description)
	}
}
