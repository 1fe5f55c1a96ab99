package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"leadflow-data/internal/service"

	"go.uber.org/zap"
)

const platformsBasePath = "/crm/api/v1/platforms"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PlatformHandler 平台与字段定义 Handler（含 Excel 导入导出）
type PlatformHandler struct {
	platformService *service.PlatformService
	importService   *service.ImportService
	logger          *zap.Logger
}

// NewPlatformHandler 创建平台管理 Handler
func NewPlatformHandler(
	platformService *service.PlatformService,
	importService *service.ImportService,
	logger *zap.Logger,
) *PlatformHandler {
	return &PlatformHandler{
		platformService: platformService,
		importService:   importService,
		logger:          logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *PlatformHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	path := r.URL.Path

	switch {
	case path == platformsBasePath && r.Method == http.MethodPost:
		h.CreatePlatform(w, r)
	case path == platformsBasePath && r.Method == http.MethodGet:
		h.ListPlatforms(w, r)
	default:
		h.dispatchByID(w, r)
	}
}

// dispatchByID 处理 /crm/api/v1/platforms/{id}[/...] 子路径
func (h *PlatformHandler) dispatchByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, platformsBasePath+"/")
	if rest == r.URL.Path || rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	platformID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.GetPlatform(w, r, platformID)
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.UpdatePlatform(w, r, platformID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.DeletePlatform(w, r, platformID)
	case len(parts) == 2 && parts[1] == "fields" && r.Method == http.MethodPost:
		h.DefineField(w, r, platformID)
	case len(parts) == 2 && parts[1] == "fields" && r.Method == http.MethodGet:
		h.ListFields(w, r, platformID)
	case len(parts) == 3 && parts[1] == "fields" && r.Method == http.MethodDelete:
		h.RemoveField(w, r, platformID, parts[2])
	case len(parts) == 4 && parts[1] == "fields" && parts[3] == "order" && r.Method == http.MethodPut:
		h.ReorderField(w, r, platformID, parts[2])
	case len(parts) == 2 && parts[1] == "import-template" && r.Method == http.MethodGet:
		h.DownloadImportTemplate(w, r, platformID)
	case len(parts) == 2 && parts[1] == "import" && r.Method == http.MethodPost:
		h.ImportLeads(w, r, platformID)
	case len(parts) == 2 && parts[1] == "export" && r.Method == http.MethodGet:
		h.ExportLeads(w, r, platformID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// CreatePlatform 创建平台（仅管理员）
func (h *PlatformHandler) CreatePlatform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	p, err := h.platformService.CreatePlatform(ctx, service.CreatePlatformRequest{
		Identity:    identity,
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(p))
}

// ListPlatforms 平台列表（marketer 仅见有激活分配的平台）
func (h *PlatformHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	platforms, err := h.platformService.ListPlatforms(ctx, identity)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"platforms": platforms}))
}

// GetPlatform 平台详情（含字段定义）
func (h *PlatformHandler) GetPlatform(w http.ResponseWriter, r *http.Request, platformID string) {
	ctx := r.Context()

	if _, ok := identityFromReq(w, r); !ok {
		return
	}

	detail, err := h.platformService.GetPlatform(ctx, platformID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(detail))
}

// UpdatePlatform 更新平台名称/描述（仅管理员）
func (h *PlatformHandler) UpdatePlatform(w http.ResponseWriter, r *http.Request, platformID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if err := h.platformService.UpdatePlatform(ctx, identity, platformID, body.Name, body.Description); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"updated": true}))
}

// DeletePlatform 删除平台（仅管理员；存在线索时拒绝）
func (h *PlatformHandler) DeletePlatform(w http.ResponseWriter, r *http.Request, platformID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	if err := h.platformService.DeletePlatform(ctx, identity, platformID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
}

// DefineField 定义字段（仅管理员）
func (h *PlatformHandler) DefineField(w http.ResponseWriter, r *http.Request, platformID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		FieldName     string          `json:"field_name"`
		FieldType     string          `json:"field_type"`
		FieldCategory string          `json:"field_category"`
		IsRequired    bool            `json:"is_required"`
		DisplayOrder  *int            `json:"display_order"`
		Options       json.RawMessage `json:"options"`
		Placeholder   string          `json:"placeholder"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	field, err := h.platformService.DefineField(ctx, service.DefineFieldRequest{
		Identity:      identity,
		PlatformID:    platformID,
		FieldName:     body.FieldName,
		FieldType:     body.FieldType,
		FieldCategory: body.FieldCategory,
		IsRequired:    body.IsRequired,
		DisplayOrder:  body.DisplayOrder,
		Options:       body.Options,
		Placeholder:   body.Placeholder,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(field))
}

// ListFields 字段定义列表（display_order 升序）
func (h *PlatformHandler) ListFields(w http.ResponseWriter, r *http.Request, platformID string) {
	ctx := r.Context()

	if _, ok := identityFromReq(w, r); !ok {
		return
	}

	fields, err := h.platformService.ListFields(ctx, platformID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"fields": fields}))
}

// ReorderField 调整字段顺序（仅管理员）
func (h *PlatformHandler) ReorderField(w http.ResponseWriter, r *http.Request, platformID, fieldID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		DisplayOrder int `json:"display_order"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if err := h.platformService.ReorderField(ctx, identity, platformID, fieldID, body.DisplayOrder); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"updated": true}))
}

// RemoveField 删除字段定义（仅管理员；无条件，不检查存量载荷）
func (h *PlatformHandler) RemoveField(w http.ResponseWriter, r *http.Request, platformID, fieldID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	if err := h.platformService.RemoveField(ctx, identity, platformID, fieldID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
}

// DownloadImportTemplate 下载导入模板
func (h *PlatformHandler) DownloadImportTemplate(w http.ResponseWriter, r *http.Request, platformID string) {
	ctx := r.Context()

	if _, ok := identityFromReq(w, r); !ok {
		return
	}

	data, err := h.importService.GenerateImportTemplate(ctx, platformID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=lead-import-template.xlsx")
	_, _ = w.Write(data)
}

// ImportLeads 上传 Excel 批量导入线索
// multipart 字段名 file；query assign_to_pool=true 投入公共池（仅管理员生效）
func (h *PlatformHandler) ImportLeads(w http.ResponseWriter, r *http.Request, platformID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	// Parse multipart form
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("failed to parse multipart form"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("missing file"))
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("failed to read file"))
		return
	}

	assignToPool := r.URL.Query().Get("assign_to_pool") == "true"
	result, err := h.importService.ImportLeads(ctx, identity, platformID, bytes.NewReader(fileBytes), assignToPool)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// ExportLeads 导出线索为 Excel
func (h *PlatformHandler) ExportLeads(w http.ResponseWriter, r *http.Request, platformID string) {
	ctx := r.Context()

	identity, ok := identityFromReq(w, r)
	if !ok {
		return
	}

	data, err := h.importService.ExportLeads(ctx, identity, platformID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=leads-export.xlsx")
	_, _ = w.Write(data)
}

var _ http.Handler = (*PlatformHandler)(nil)
