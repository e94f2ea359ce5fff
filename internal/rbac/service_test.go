package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-admin/internal/adminstatus"
	"github.com/odyssey-erp/odyssey-admin/internal/session"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan arity mismatch: got=%d want=%d", len(dest), len(r.values))
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = r.values[i].(string)
		case *bool:
			*d = r.values[i].(bool)
		default:
			return fmt.Errorf("unsupported scan target %T", dest[i])
		}
	}
	return nil
}

type fakeDB struct {
	row       fakeRow
	execTag   string
	execErr   error
	execSQL   []string
	queryArgs []any
	execArgs  []any
}

func (f *fakeDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	return nil, errors.New("transactions not supported by fake")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.queryArgs = append([]any(nil), args...)
	return f.row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append([]any(nil), args...)
	return pgconn.NewCommandTag(f.execTag), f.execErr
}

var ana = session.Principal{ID: "u-1", TenantID: "t-1"}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		name string
		row  fakeRow
		want adminstatus.Capabilities
	}{
		{name: "no grant", row: fakeRow{err: pgx.ErrNoRows}},
		{name: "platform admin", row: fakeRow{values: []any{"platform_admin"}}, want: adminstatus.Capabilities{PlatformAdmin: true}},
		{name: "super admin", row: fakeRow{values: []any{"super_admin"}}, want: adminstatus.Capabilities{PlatformAdmin: true, SuperAdmin: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := &fakeDB{row: tc.row}
			got, err := NewService(db).Capabilities(context.Background(), ana)
			if err != nil {
				t.Fatalf("capabilities: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
			if db.queryArgs[0] != "t-1" || db.queryArgs[1] != "u-1" {
				t.Fatalf("query must be tenant scoped, args=%v", db.queryArgs)
			}
		})
	}
}

func TestCapabilitiesErrors(t *testing.T) {
	_, err := NewService(&fakeDB{row: fakeRow{err: errors.New("conn reset")}}).Capabilities(context.Background(), ana)
	if err == nil || !strings.Contains(err.Error(), "conn reset") {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	_, err = NewService(&fakeDB{row: fakeRow{values: []any{"owner"}}}).Capabilities(context.Background(), ana)
	if err == nil {
		t.Fatalf("expected unknown level error")
	}
}

func TestSetLevelRejectsUnknownUser(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{false}}}
	err := setLevel(context.Background(), db, "t-1", "u-9", LevelPlatformAdmin, "u-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(db.execSQL) != 0 {
		t.Fatalf("no write expected for unknown user")
	}
}

func TestSetLevelUpserts(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{true}}, execTag: "INSERT 0 1"}
	if err := setLevel(context.Background(), db, "t-1", "u-2", LevelSuperAdmin, "u-1"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "ON CONFLICT") {
		t.Fatalf("expected upsert, got %v", db.execSQL)
	}
	if db.execArgs[2] != "super_admin" {
		t.Fatalf("unexpected level arg %v", db.execArgs[2])
	}
}

func TestSetLevelValidatesInput(t *testing.T) {
	svc := NewService(&fakeDB{})
	if err := svc.SetLevel(context.Background(), "t-1", "u-2", Level("owner"), "u-1"); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if err := svc.SetLevel(context.Background(), "", "u-2", LevelPlatformAdmin, "u-1"); err == nil {
		t.Fatalf("expected missing tenant error")
	}
}

func TestRevoke(t *testing.T) {
	db := &fakeDB{execTag: "DELETE 0"}
	if err := revoke(context.Background(), db, "t-1", "u-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	db = &fakeDB{execTag: "DELETE 1"}
	if err := revoke(context.Background(), db, "t-1", "u-2"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
}
