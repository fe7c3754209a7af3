package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker 依赖健康检查
type HealthChecker interface {
	Health(ctx context.Context) error
}

// BuildInfo 构建信息
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// SystemHandler 系统端点
type SystemHandler struct {
	service string
	build   BuildInfo
	checks  map[string]HealthChecker
	started time.Time
	now     func() time.Time
}

// NewSystemHandler 创建系统处理器，checks 中为 nil 的依赖跳过
func NewSystemHandler(service string, build BuildInfo, checks map[string]HealthChecker) *SystemHandler {
	return &SystemHandler{
		service: service,
		build:   build,
		checks:  checks,
		started: time.Now(),
		now:     time.Now,
	}
}

// Register 注册路由
func (h *SystemHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /version", h.Version)
}

// Health 健康检查，任一依赖不可用时返回 503
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(h.checks))
	for name, c := range h.checks {
		if c == nil {
			deps[name] = "disabled"
			continue
		}
		if err := c.Health(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      h.service,
		"uptime":       h.now().Sub(h.started).Round(time.Second).String(),
		"dependencies": deps,
	})
}

// Version 版本信息
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.build)
}
