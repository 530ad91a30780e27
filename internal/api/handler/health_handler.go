package handler

import (
	"context"
	"sort"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Pinger 可探活的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse GET /api/health 的响应
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthHandler 检查存储和可选基础设施。存储不可用时返回 503，其他组件故障只标记 degraded。
type HealthHandler struct {
	store    Pinger
	optional map[string]Pinger
	timeout  time.Duration
}

// NewHealthHandler store 为必需依赖
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{
		store:    store,
		optional: make(map[string]Pinger),
		timeout:  2 * time.Second,
	}
}

// AddComponent 注册一个可选组件
func (h *HealthHandler) AddComponent(name string, p Pinger) {
	h.optional[name] = p
}

// HandleHealth GET /api/health
func (h *HealthHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Components: map[string]string{}}
	status := consts.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Components["store"] = err.Error()
		status = consts.StatusServiceUnavailable
	} else {
		resp.Components["store"] = "ok"
	}

	names := make([]string, 0, len(h.optional))
	for name := range h.optional {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.optional[name].Ping(ctx); err != nil {
			resp.Components[name] = err.Error()
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Components[name] = "ok"
	}

	c.JSON(status, resp)
}
