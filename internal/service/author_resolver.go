package service

import (
	"context"
	"errors"

	"peerworkshop/backend/internal/model"
	"peerworkshop/backend/internal/repository"
)

// ErrUserNotInGroup 团队模式下用户不属于任何小组
var ErrUserNotInGroup = errors.New("该用户不属于任何小组")

// AuthorResolver 作者归属解析。
//
// 团队模式是贯穿几乎所有查询的横切开关，集中收敛到这一个抽象：
// 上层组件（分配、汇总、报表）只依赖 CanonicalAuthor / AuthorsOf，
// 不各自分支判断 team_mode。
type AuthorResolver interface {
	// CanonicalAuthor 将任意用户归一到提交归属者：
	// 个人模式返回本人，团队模式返回其小组的代表成员
	CanonicalAuthor(ctx context.Context, workshopID, userID string) (string, error)
	// AuthorsOf 返回提交的全部等价作者：
	// 个人模式为 [author]，团队模式为小组全体成员
	AuthorsOf(ctx context.Context, submission *model.Submission) ([]string, error)
}

// ── 个人模式 ──

type individualResolver struct{}

func (individualResolver) CanonicalAuthor(_ context.Context, _, userID string) (string, error) {
	return userID, nil
}

func (individualResolver) AuthorsOf(_ context.Context, submission *model.Submission) ([]string, error) {
	return []string{submission.AuthorID}, nil
}

// ── 团队模式 ──

type teamResolver struct {
	repo *repository.Repository
}

// CanonicalAuthor 小组代表取成员中 user_id 最小者，保证归一结果确定
func (r *teamResolver) CanonicalAuthor(ctx context.Context, workshopID, userID string) (string, error) {
	group, err := r.repo.Group.GetGroupOfUser(ctx, workshopID, userID)
	if err != nil {
		return "", ErrUserNotInGroup
	}
	return representativeOf(group)
}

func (r *teamResolver) AuthorsOf(ctx context.Context, submission *model.Submission) ([]string, error) {
	group, err := r.repo.Group.GetGroupOfUser(ctx, submission.WorkshopID, submission.AuthorID)
	if err != nil {
		return nil, ErrUserNotInGroup
	}
	members := make([]string, 0, len(group.Members))
	for _, m := range group.Members {
		members = append(members, m.UserID)
	}
	return members, nil
}

func representativeOf(group *model.Group) (string, error) {
	if len(group.Members) == 0 {
		return "", ErrUserNotInGroup
	}
	rep := group.Members[0].UserID
	for _, m := range group.Members[1:] {
		if m.UserID < rep {
			rep = m.UserID
		}
	}
	return rep, nil
}

// resolverFor 按工作坊模式选择解析器实现
func resolverFor(repo *repository.Repository, teamMode bool) AuthorResolver {
	if teamMode {
		return &teamResolver{repo: repo}
	}
	return individualResolver{}
}
