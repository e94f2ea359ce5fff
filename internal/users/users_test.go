package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/session"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, v := range r.values {
		*(dest[i].(*string)) = v.(string)
	}
	return nil
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	for i, v := range r.data[r.pos-1] {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *pgtype.Text:
			*d = v.(pgtype.Text)
		case *pgtype.Timestamptz:
			*d = v.(pgtype.Timestamptz)
		}
	}
	return nil
}

type fakeDB struct {
	row  fakeRow
	rows *fakeRows
	args []any
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.args = args
	return f.row
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	f.args = args
	return f.rows, nil
}

func TestProfile(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{"u-1", "Ana", "t-1"}}}
	p, err := NewRepository(db).Profile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, session.Profile{UserID: "u-1", DisplayName: "Ana", TenantID: "t-1"}, p)
	assert.Equal(t, []any{"u-1"}, db.args)
}

func TestProfileNotFound(t *testing.T) {
	_, err := NewRepository(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}).Profile(context.Background(), "u-x")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = NewRepository(&fakeDB{row: fakeRow{err: errors.New("conn reset")}}).Profile(context.Background(), "u-x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
}

func TestListByTenant(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: &fakeRows{data: [][]any{
		{"u-1", "t-1", "ana@example.com", "Ana", true, pgtype.Text{String: "super_admin", Valid: true}, pgtype.Timestamptz{Time: created, Valid: true}},
		{"u-2", "t-1", "budi@example.com", "Budi", true, pgtype.Text{}, pgtype.Timestamptz{Time: created, Valid: true}},
	}}}
	users, err := NewRepository(db).ListByTenant(context.Background(), "t-1")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "super_admin", users[0].AdminLevel)
	assert.Empty(t, users[1].AdminLevel)
	assert.Equal(t, []any{"t-1"}, db.args)

	_, err = NewRepository(db).ListByTenant(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrMissingTenantScope)
}

type stubRepo struct {
	tenant string
	users  []User
}

func (s *stubRepo) ListByTenant(_ context.Context, tenantID string) ([]User, error) {
	s.tenant = tenantID
	return s.users, nil
}

func TestHandlerListsSessionTenant(t *testing.T) {
	repo := &stubRepo{users: []User{{ID: "u-1", TenantID: "t-2", Name: "Ana"}}}
	r := chi.NewRouter()
	NewHandler(nil, NewService(repo)).MountRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(session.WithPrincipal(req.Context(), session.Principal{ID: "u-1", TenantID: "t-2"}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "t-2", repo.tenant)
	var body struct {
		Users []User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Users, 1)
}

func TestHandlerRequiresPrincipal(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, NewService(&stubRepo{})).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
