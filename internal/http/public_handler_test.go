package httpapi

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow-data/internal/repository"
	"leadflow-data/internal/service"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPublicHandlerWithMock(t *testing.T) (*PublicHandler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	leadsRepo := repository.NewPostgresLeadsRepository(db)
	activitiesRepo := repository.NewPostgresActivitiesRepository(db)
	platformsRepo := repository.NewPostgresPlatformsRepository(db)
	marketersRepo := repository.NewPostgresMarketersRepository(db)
	sharedLinksRepo := repository.NewPostgresSharedLinksRepository(db)

	platformService := service.NewPlatformService(platformsRepo, nil, logger)
	shareService := service.NewShareService(sharedLinksRepo, leadsRepo, activitiesRepo, platformsRepo, marketersRepo, platformService, logger)

	return NewPublicHandler(shareService, logger), mock
}

func sharedLinkRow(token, leadID string, expiresAt any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "token", "lead_id", "created_by", "created_at", "expires_at"}).
		AddRow("link-1", token, leadID, "m1", time.Now(), expiresAt)
}

func TestPublicHandler_UnknownToken(t *testing.T) {
	h, mock := newPublicHandlerWithMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM shared_links WHERE token = \$1`).
		WithArgs("unknowntoken").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/public/api/v1/leads/unknowntoken", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 过期 token -> 410 Gone（与 404 区分：记录还在，只是过期了）
func TestPublicHandler_ExpiredToken(t *testing.T) {
	h, mock := newPublicHandlerWithMock(t)

	expired := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT (.+) FROM shared_links WHERE token = \$1`).
		WithArgs("expiredtoken").
		WillReturnRows(sharedLinkRow("expiredtoken", "lead-1", expired))

	req := httptest.NewRequest(http.MethodGet, "/public/api/v1/leads/expiredtoken", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublicHandler_ResolveOK(t *testing.T) {
	h, mock := newPublicHandlerWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM shared_links WHERE token = \$1`).
		WithArgs("livetoken").
		WillReturnRows(sharedLinkRow("livetoken", "lead-1", nil))
	mock.ExpectQuery(`SELECT (.+) FROM leads WHERE id = \$1::uuid`).
		WithArgs("lead-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "platform_id", "marketer_id", "lead_data",
			"current_status", "next_action", "next_meeting_date",
			"created_at", "last_activity_at",
		}).AddRow("lead-1", "platform-1", "m1", []byte(`{"Name":"Acme"}`), "New", "", nil, now, now))
	mock.ExpectQuery(`SELECT id::text, name, COALESCE\(description, ''\)`).
		WithArgs("platform-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_by", "created_at"}).
			AddRow("platform-1", "Fiverr", "", "a1", now))
	mock.ExpectQuery(`SELECT (.+) FROM platform_fields`).
		WithArgs("platform-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "platform_id", "field_name", "field_type", "field_category",
			"is_required", "display_order", "options", "placeholder",
		}))
	mock.ExpectQuery(`SELECT (.+) FROM lead_activities a`).
		WithArgs("lead-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "lead_id", "marketer_id", "activity_type",
			"old_values", "new_values", "notes", "created_at", "marketer_name",
		}))
	mock.ExpectQuery(`SELECT (.+) FROM marketers WHERE id = \$1::uuid`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "is_active", "created_at"}).
			AddRow("m1", "Alice Wang", "alice@x.com", true, now))

	req := httptest.NewRequest(http.MethodGet, "/public/api/v1/leads/livetoken", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"platform_name":"Fiverr"`)
	assert.Contains(t, body, `"marketer_name":"Alice Wang"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublicHandler_BadPaths(t *testing.T) {
	h, _ := newPublicHandlerWithMock(t)

	// 缺 token
	req := httptest.NewRequest(http.MethodGet, "/public/api/v1/leads/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 只读入口
	req = httptest.NewRequest(http.MethodPost, "/public/api/v1/leads/sometoken", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
