package httpapi

import (
	"net/http"
	"strings"

	"leadflow-data/internal/service"

	"go.uber.org/zap"
)

const publicLeadsBasePath = "/public/api/v1/leads/"

// PublicHandler 公开分享视图 Handler
// 免认证入口：令牌本身就是凭证，解析失败只区分 404 / 410
type PublicHandler struct {
	shareService *service.ShareService
	logger       *zap.Logger
}

// NewPublicHandler 创建公开分享 Handler
func NewPublicHandler(shareService *service.ShareService, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{
		shareService: shareService,
		logger:       logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *PublicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := strings.TrimPrefix(r.URL.Path, publicLeadsBasePath)
	if token == "" || strings.Contains(token, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	view, err := h.shareService.ResolveShareLink(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

var _ http.Handler = (*PublicHandler)(nil)
