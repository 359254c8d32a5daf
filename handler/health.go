package handler

import (
	"context"
	"net/http"
	"time"

	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

const (
	cpuSampleInterval = 100 * time.Millisecond
	healthTimeout     = 3 * time.Second
)

type HealthReport struct {
	Status        string              `json:"status"`
	Checks        map[string]string   `json:"checks"`
	CPUPercent    float64             `json:"cpu_percent"`
	MemoryPercent float64             `json:"memory_percent"`
	OpenScreens   int                 `json:"open_screens"`
	Mongo         *utils.MongoMetrics `json:"mongo,omitempty"`
	Time          time.Time           `json:"time"`
}

// Health probes every configured dependency and reports host load. Any
// failing probe turns the answer into a 503.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := HealthReport{
		Status:        "ok",
		Checks:        make(map[string]string, len(h.opts.HealthChecks)),
		CPUPercent:    utils.GetCPUUsage(cpuSampleInterval),
		MemoryPercent: utils.GetMemoryUsage(),
		OpenScreens:   h.screens.len(),
		Time:          h.now().UTC(),
	}
	for name, check := range h.opts.HealthChecks {
		if err := check(ctx); err != nil {
			report.Status = "degraded"
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	if _, ok := h.opts.HealthChecks["mongo"]; ok {
		m := utils.GetMongoMetrics()
		report.Mongo = &m
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
