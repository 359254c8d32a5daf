package viewmodel

import (
	"context"
	"errors"
	"fmt"

	"taskquest/model"
	"taskquest/repository"
	"taskquest/result"
)

type LeaderboardTab string

const (
	TabGlobal LeaderboardTab = "global"
	TabWeekly LeaderboardTab = "weekly"
)

type LeaderboardState struct {
	Loading bool             `json:"loading"`
	Tab     LeaderboardTab   `json:"tab"`
	Ranks   []model.UserRank `json:"ranks"`
	MyRank  *model.UserRank  `json:"my_rank,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type Leaderboard struct {
	base[LeaderboardState]
	repos  *repository.Repositories
	userID string
	limit  int
}

func NewLeaderboard(repos *repository.Repositories, userID string, limit int) *Leaderboard {
	l := &Leaderboard{repos: repos, userID: userID, limit: limit}
	l.setup(LeaderboardState{Loading: true, Tab: TabGlobal, Ranks: []model.UserRank{}})
	return l
}

// Start subscribes to ranking changes. The weekly tab and the user's own rank
// reload on every change.
func (l *Leaderboard) Start(ctx context.Context) {
	ctx = l.start(ctx)
	consume(&l.base, l.repos.Leaderboard.WatchTop(ctx, l.limit), func(r result.Result[[]model.UserRank]) {
		l.apply(ctx, r)
	})
}

func (l *Leaderboard) apply(ctx context.Context, global result.Result[[]model.UserRank]) {
	if global.IsLoading() {
		l.state.update(func(s *LeaderboardState) { s.Loading = true })
		return
	}

	ranks := global
	if l.State().Tab == TabWeekly {
		ranks = l.repos.Leaderboard.GetWeekly(ctx, l.limit)
	}
	mine := l.repos.Leaderboard.GetUserRank(ctx, l.userID)

	l.state.update(func(s *LeaderboardState) {
		s.Loading = false
		if list, ok := ranks.Value(); ok {
			s.Ranks, s.Error = list, ""
		} else {
			s.Error = ranks.Message()
		}
		if r, ok := mine.Value(); ok {
			s.MyRank = &r
		} else if !errors.Is(mine.Err(), repository.ErrNotFound) {
			s.Error = mine.Message()
		}
	})
}

// SelectTab switches between the global and weekly boards.
func (l *Leaderboard) SelectTab(ctx context.Context, tab LeaderboardTab) error {
	var res result.Result[[]model.UserRank]
	switch tab {
	case TabGlobal:
		res = l.repos.Leaderboard.GetTop(ctx, l.limit)
	case TabWeekly:
		res = l.repos.Leaderboard.GetWeekly(ctx, l.limit)
	default:
		return fmt.Errorf("%w: unknown tab %q", repository.ErrValidation, tab)
	}

	l.state.update(func(s *LeaderboardState) {
		s.Tab = tab
		if list, ok := res.Value(); ok {
			s.Ranks, s.Error = list, ""
		} else {
			s.Error = res.Message()
		}
	})
	return res.Err()
}

// Refresh rebuilds the ranking; the subscription delivers the new list.
func (l *Leaderboard) Refresh(ctx context.Context) {
	if res := l.repos.Leaderboard.Refresh(ctx); res.IsError() {
		l.state.update(func(s *LeaderboardState) { s.Error = res.Message() })
		l.events.push(errorEvent(res.Message()))
	}
}
