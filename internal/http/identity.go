package httpapi

import (
	"net/http"

	"leadflow-data/internal/domain"
)

// identityFromReq Auth 协作方边界：
// 上游网关完成认证后以 X-User-Id / X-User-Role 头下发身份，
// 本服务信任这对头不再复验凭证。头缺失或角色不识别时拒绝请求
func identityFromReq(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id := r.Header.Get("X-User-Id")
	role := r.Header.Get("X-User-Role")

	if id == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing X-User-Id"))
		return domain.Identity{}, false
	}
	switch role {
	case domain.RoleMarketer, domain.RoleAdmin, domain.RoleSuperAdmin:
	default:
		writeJSON(w, http.StatusUnauthorized, Fail("unknown role"))
		return domain.Identity{}, false
	}
	return domain.Identity{ID: id, Role: role}, true
}
