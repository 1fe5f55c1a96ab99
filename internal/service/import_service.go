package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"leadflow-data/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// 模板里始终给出的基础联系列；动态列来自平台字段定义
var leadSystemHeaders = []string{"Name", "Phone", "Email", "Address"}

// ImportRowError 单行导入失败明细（行号从 2 起：1 是表头）
type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult 导入汇总
type ImportResult struct {
	Imported int              `json:"imported"`
	Failed   int              `json:"failed"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}

// ImportService 表格导入/导出（Import/Export 协作方）
// 导入就是逐行调用 CreateLead：每行独立成败，不是整体事务
type ImportService struct {
	leadService     *LeadService
	platformService *PlatformService
	logger          *zap.Logger
}

// NewImportService 创建导入服务
func NewImportService(leadService *LeadService, platformService *PlatformService, logger *zap.Logger) *ImportService {
	return &ImportService{
		leadService:     leadService,
		platformService: platformService,
		logger:          logger,
	}
}

// templateHeaders 基础列 + 平台动态字段列（去掉与基础列重名的）
func (s *ImportService) templateHeaders(ctx context.Context, platformID string) ([]string, error) {
	fields, err := s.platformService.ListFields(ctx, platformID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	headers := make([]string, 0, len(leadSystemHeaders)+len(fields))
	for _, h := range leadSystemHeaders {
		headers = append(headers, h)
		seen[strings.ToLower(h)] = true
	}
	for _, f := range fields {
		if seen[strings.ToLower(f.FieldName)] {
			continue
		}
		headers = append(headers, f.FieldName)
		seen[strings.ToLower(f.FieldName)] = true
	}
	return headers, nil
}

// GenerateImportTemplate 生成导入模板 Excel（表头 + 一行示例）
func (s *ImportService) GenerateImportTemplate(ctx context.Context, platformID string) ([]byte, error) {
	// 平台必须存在
	if _, err := s.platformService.GetPlatform(ctx, platformID); err != nil {
		return nil, err
	}
	headers, err := s.templateHeaders(ctx, platformID)
	if err != nil {
		return nil, err
	}

	example := make([]string, len(headers))
	for i, h := range headers {
		switch h {
		case "Phone":
			example[i] = "1234567890"
		case "Email":
			example[i] = "example@mail.com"
		default:
			example[i] = "Test " + h
		}
	}

	return writeLeadSheet("Template", headers, [][]string{example})
}

// ImportLeads 逐行导入：每行一次 CreateLead，单行失败不影响其余行
// marketer 导入的线索归自己；管理员可选择投入公共池
func (s *ImportService) ImportLeads(ctx context.Context, identity domain.Identity, platformID string, r io.Reader, assignToPool bool) (*ImportResult, error) {
	if _, err := s.platformService.GetPlatform(ctx, platformID); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read spreadsheet: %v", domain.ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: spreadsheet has no sheets", domain.ErrValidation)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet rows: %w", err)
	}
	if len(rows) < 2 {
		return &ImportResult{}, nil
	}

	headers := rows[0]
	result := &ImportResult{}

	for i, row := range rows[1:] {
		rowNum := i + 2 // 表头占第 1 行

		payload := map[string]string{}
		empty := true
		for col, header := range headers {
			if header == "" {
				continue
			}
			value := ""
			if col < len(row) {
				value = strings.TrimSpace(row[col])
			}
			if value != "" {
				empty = false
			}
			payload[header] = value
		}
		if empty {
			continue
		}

		leadData, err := json.Marshal(payload)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Error: err.Error()})
			continue
		}

		_, err = s.leadService.CreateLead(ctx, CreateLeadRequest{
			Identity:      identity,
			PlatformID:    platformID,
			LeadData:      leadData,
			CurrentStatus: domain.StatusNew,
			AssignToPool:  assignToPool,
		})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Error: err.Error()})
			continue
		}
		result.Imported++
	}

	s.logger.Info("lead import processed",
		zap.String("platform_id", platformID),
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// ExportLeads 导出平台线索为 Excel（受调用方可见性约束）
func (s *ImportService) ExportLeads(ctx context.Context, identity domain.Identity, platformID string) ([]byte, error) {
	detail, err := s.platformService.GetPlatform(ctx, platformID)
	if err != nil {
		return nil, err
	}
	headers, err := s.templateHeaders(ctx, platformID)
	if err != nil {
		return nil, err
	}
	// 固定的系统列附在动态列之后
	fullHeaders := append(append([]string{}, headers...), "Status", "Next Action", "Created At")

	resp, err := s.leadService.ListLeads(ctx, ListLeadsRequest{
		Identity:   identity,
		PlatformID: platformID,
		Limit:      10000,
	})
	if err != nil {
		return nil, err
	}

	dataRows := make([][]string, 0, len(resp.Leads))
	for _, lead := range resp.Leads {
		var payload map[string]any
		_ = json.Unmarshal(lead.LeadData, &payload)

		row := make([]string, 0, len(fullHeaders))
		for _, h := range headers {
			row = append(row, stringifyCell(payload[h]))
		}
		row = append(row, lead.CurrentStatus, lead.NextAction, lead.CreatedAt.Format("2006-01-02 15:04:05"))
		dataRows = append(dataRows, row)
	}

	return writeLeadSheet(detail.Platform.Name, fullHeaders, dataRows)
}

func stringifyCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// writeLeadSheet 生成单工作表 Excel：加粗表头 + 数据行
func writeLeadSheet(sheetName string, headers []string, dataRows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	// 这里不 defer Close：WriteTo 需要文件保持打开

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	for rowIdx, row := range dataRows {
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	f.Close()
	return buf.Bytes(), nil
}
