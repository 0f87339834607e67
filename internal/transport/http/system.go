package httptransport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"fivebear-admin-go/internal/utils"
)

// ConnectionCounter reports live websocket connection totals.
type ConnectionCounter interface {
	Counts() (connections int, accounts int)
}

// SystemHandler serves runtime status for the admin dashboard.
type SystemHandler struct {
	counter   ConnectionCounter
	logger    *utils.Logger
	startedAt time.Time
}

// NewSystemHandler builds the system status handler.
func NewSystemHandler(counter ConnectionCounter, logger *utils.Logger) *SystemHandler {
	return &SystemHandler{
		counter:   counter,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// RegisterRoutes attaches the system endpoints to the secured group.
func (h *SystemHandler) RegisterRoutes(r *Router) {
	group := r.API
	if r.Secured != nil {
		group = r.Secured
	}
	group.GET("/system/status", h.Status)
}

// Status reports host metrics and connection counts.
func (h *SystemHandler) Status(c *gin.Context) {
	payload := gin.H{
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"server_time":    time.Now().Format("2006-01-02 15:04:05"),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		payload["cpu_percent"] = percents[0]
	} else if err != nil {
		h.logger.DebugTag("HTTP", "cpu stats unavailable: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memory_percent"] = vm.UsedPercent
		payload["memory_total"] = vm.Total
		payload["memory_used"] = vm.Used
	} else {
		h.logger.DebugTag("HTTP", "memory stats unavailable: %v", err)
	}

	if info, err := host.Info(); err == nil {
		payload["hostname"] = info.Hostname
		payload["os"] = info.OS
		payload["host_uptime_seconds"] = info.Uptime
	}

	if h.counter != nil {
		connections, accounts := h.counter.Counts()
		payload["ws_connections"] = connections
		payload["online_accounts"] = accounts
	}

	RespondSuccess(c, http.StatusOK, payload, "")
}
