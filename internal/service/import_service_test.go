package service

import (
	"bytes"
	"context"
	"testing"

	"leadflow-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type importServiceFixture struct {
	*leadServiceFixture
	importSvc *ImportService
}

func newImportServiceFixture(t *testing.T) *importServiceFixture {
	t.Helper()

	base := newLeadServiceFixture(t)
	platformService := NewPlatformService(base.platforms, nil, testLogger())
	importSvc := NewImportService(base.svc, platformService, testLogger())
	return &importServiceFixture{leadServiceFixture: base, importSvc: importSvc}
}

// buildSheet 构造一个最小导入表格
func buildSheet(t *testing.T, headers []string, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		require.NoError(t, f.SetCellValue("Sheet1", cell, h))
	}
	for rowIdx, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func TestGenerateImportTemplate(t *testing.T) {
	fx := newImportServiceFixture(t)
	ctx := context.Background()

	_, err := fx.platforms.CreateField(ctx, &domain.Field{
		PlatformID: fx.platformID, FieldName: "Budget",
		FieldType: domain.FieldTypeNumber, FieldCategory: domain.FieldCategoryLeadDetail,
	})
	require.NoError(t, err)

	data, err := fx.importSvc.GenerateImportTemplate(ctx, fx.platformID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	// 基础列在前，动态字段列在后
	assert.Equal(t, []string{"Name", "Phone", "Email", "Address", "Budget"}, rows[0])
}

func TestGenerateImportTemplate_MissingPlatform(t *testing.T) {
	fx := newImportServiceFixture(t)

	_, err := fx.importSvc.GenerateImportTemplate(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestImportLeads_RowByRow(t *testing.T) {
	fx := newImportServiceFixture(t)
	ctx := context.Background()

	// Email 必填：第二行缺失会失败，但不影响其它行
	_, err := fx.platforms.CreateField(ctx, &domain.Field{
		PlatformID: fx.platformID, FieldName: "Email",
		FieldType: domain.FieldTypeEmail, FieldCategory: domain.FieldCategoryLeadDetail,
		IsRequired: true,
	})
	require.NoError(t, err)

	sheet := buildSheet(t,
		[]string{"Name", "Email"},
		[][]string{
			{"Acme", "a@acme.com"},
			{"NoMail", ""},
			{"", ""}, // 空行跳过
			{"Beta", "b@beta.com"},
		},
	)

	result, err := fx.importSvc.ImportLeads(ctx,
		domain.Identity{ID: "m1", Role: domain.RoleMarketer},
		fx.platformID, bytes.NewReader(sheet), false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Row) // 行号从 2 起算（1 是表头）

	// 导入的线索归 marketer 自己
	resp, err := fx.svc.ListLeads(ctx, ListLeadsRequest{
		Identity:   domain.Identity{ID: "m1", Role: domain.RoleMarketer},
		MarketerID: "m1",
		Limit:      100,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
}

func TestImportLeads_InvalidSpreadsheet(t *testing.T) {
	fx := newImportServiceFixture(t)

	_, err := fx.importSvc.ImportLeads(context.Background(),
		domain.Identity{ID: "m1", Role: domain.RoleMarketer},
		fx.platformID, bytes.NewReader([]byte("not a spreadsheet")), false)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExportLeads(t *testing.T) {
	fx := newImportServiceFixture(t)
	ctx := context.Background()

	admin := domain.Identity{ID: "a1", Role: domain.RoleAdmin}
	_, err := fx.svc.CreateLead(ctx, CreateLeadRequest{
		Identity:   admin,
		PlatformID: fx.platformID,
		LeadData:   []byte(`{"Name":"Acme","Email":"a@acme.com"}`),
	})
	require.NoError(t, err)

	data, err := fx.importSvc.ExportLeads(ctx, admin, fx.platformID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0], "Status")
	assert.Contains(t, rows[1], "Acme")
}
