package domain

import "errors"

// 错误分类（可被调用方恢复的业务错误，HTTP 层统一映射状态码）
// 其余错误视为请求级致命错误，不向外泄漏存储细节
var (
	// ErrNotFound 平台/线索/分享链接不存在
	ErrNotFound = errors.New("not found")

	// ErrGone 分享链接已过期（与 ErrNotFound 区分，调用方需要精确的 "expired" 信号）
	ErrGone = errors.New("gone")

	// ErrForbidden 角色或所有权校验失败
	ErrForbidden = errors.New("forbidden")

	// ErrConflict 认领竞争失败（线索已被他人认领）
	ErrConflict = errors.New("conflict")

	// ErrValidation 请求参数不合法
	ErrValidation = errors.New("validation error")
)
