package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterLeadRoutes 线索池：创建/列表/详情/更新/删除/认领/退回/批量状态/分享
func (r *Router) RegisterLeadRoutes(h *LeadHandler) {
	r.HandleHandler(leadsBasePath, h)
	r.HandleHandler(leadsBasePath+"/", h)
}

// RegisterPlatformRoutes 平台与字段定义 + Excel 导入导出
func (r *Router) RegisterPlatformRoutes(h *PlatformHandler) {
	r.HandleHandler(platformsBasePath, h)
	r.HandleHandler(platformsBasePath+"/", h)
}

// RegisterMarketerRoutes 平台分配
func (r *Router) RegisterMarketerRoutes(h *MarketerHandler) {
	r.HandleHandler(marketersBasePath+"/", h)
}

// RegisterPublicRoutes 免认证分享视图
func (r *Router) RegisterPublicRoutes(h *PublicHandler) {
	r.HandleHandler(publicLeadsBasePath, h)
}

// RegisterAnalyticsRoutes 管理面板
func (r *Router) RegisterAnalyticsRoutes(h *AnalyticsHandler) {
	r.Handle("/crm/api/v1/analytics/dashboard", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetDashboard(w, req)
	})
}

// RegisterHealthRoute 存活探针
func (r *Router) RegisterHealthRoute() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}
