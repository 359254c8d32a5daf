package handler

import (
	"strconv"

	"taskquest/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) limit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 || n > h.opts.LeaderboardSize {
		return h.opts.LeaderboardSize
	}
	return n
}

func (h *Handler) Leaderboard(c *gin.Context) {
	respond(c, h.repos.Leaderboard.GetTop(c.Request.Context(), h.limit(c)))
}

func (h *Handler) WeeklyLeaderboard(c *gin.Context) {
	respond(c, h.repos.Leaderboard.GetWeekly(c.Request.Context(), h.limit(c)))
}

func (h *Handler) MyRank(c *gin.Context) {
	respond(c, h.repos.Leaderboard.GetUserRank(c.Request.Context(), middleware.UserID(c)))
}

func (h *Handler) RefreshLeaderboard(c *gin.Context) {
	respond(c, h.repos.Leaderboard.Refresh(c.Request.Context()))
}

// RemoteLeaderboard reads the ranking as last published to the remote store.
func (h *Handler) RemoteLeaderboard(c *gin.Context) {
	respond(c, h.repos.Sync.FetchRemoteRanks(c.Request.Context(), h.limit(c)))
}

func (h *Handler) Sync(c *gin.Context) {
	respond(c, h.repos.Sync.SyncUser(c.Request.Context(), middleware.UserID(c)))
}

func (h *Handler) PushTasks(c *gin.Context) {
	res := h.repos.Sync.PushTasks(c.Request.Context(), middleware.UserID(c))
	respondWith(c, res, func(n int) any { return gin.H{"pushed": n} })
}

func (h *Handler) PullTasks(c *gin.Context) {
	res := h.repos.Sync.PullTasks(c.Request.Context(), middleware.UserID(c))
	respondWith(c, res, func(n int) any { return gin.H{"pulled": n} })
}
