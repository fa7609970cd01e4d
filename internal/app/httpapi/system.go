package httpapi

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/R3E-Network/studio_layer/internal/app/metrics"
)

func (h *handler) registerSystem(r *mux.Router) {
	r.Handle("/health", public(h.health)).Methods(http.MethodGet)
	r.Handle("/info", public(h.info)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Handle("/system/status", admin(h.systemStatus)).Methods(http.MethodGet)
	r.Handle("/admin/audit", admin(h.auditEntries)).Methods(http.MethodGet)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	h.ok(w, map[string]string{"status": "ok"})
}

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	studios := make([]map[string]string, 0)
	for _, id := range h.app.Studios.StudioIDs() {
		st, _ := h.app.Studios.Studio(id)
		studios = append(studios, map[string]string{"id": id, "name": st.Name})
	}
	h.ok(w, map[string]any{
		"version":    h.version,
		"studios":    studios,
		"ai_enabled": h.app.AI.Enabled(),
		"services":   h.app.Services(),
	})
}

type hostStatus struct {
	MemoryTotal   uint64  `json:"memory_total,omitempty"`
	MemoryUsedPct float64 `json:"memory_used_percent,omitempty"`
	CPUs          int     `json:"cpus,omitempty"`
	UptimeSeconds uint64  `json:"uptime_seconds,omitempty"`
	Platform      string  `json:"platform,omitempty"`
}

// systemStatus reports process and host health. Host probes are best effort;
// fields that cannot be read are omitted.
func (h *handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var hs hostStatus
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hs.MemoryTotal = vm.Total
		hs.MemoryUsedPct = vm.UsedPercent
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		hs.CPUs = n
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		hs.UptimeSeconds = info.Uptime
		hs.Platform = info.Platform
	}

	status := map[string]any{
		"version":      h.version,
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"goroutines":   runtime.NumGoroutine(),
		"subscribers":  h.app.Hub.Subscribers(),
		"services":     h.app.Services(),
		"host":         hs,
		"ai_enabled":   h.app.AI.Enabled(),
		"cors_origins": h.origins,
	}
	if h.stats != nil {
		status["upstream"] = map[string]any{
			"circuit":  h.stats.CircuitState().String(),
			"requests": h.stats.Stats(),
		}
	}
	h.ok(w, status)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	h.ok(w, map[string]any{"entries": h.audit.List(limit)})
}
