package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ehr/hospital/internal/domain/identity"
)

func stores(t *testing.T) map[string]KV {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "session.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]KV{"memory": NewMemory(), "sqlite": db}
}

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	for name, kv := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := Load(ctx, kv); ok || err != nil {
				t.Fatalf("empty store: ok=%v err=%v", ok, err)
			}

			u := identity.User{ID: 4, Username: "nurse1", Role: identity.RoleNurse}
			if err := Save(ctx, kv, "tok-1", u); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, ok, err := Load(ctx, kv)
			if err != nil || !ok {
				t.Fatalf("load: ok=%v err=%v", ok, err)
			}
			if got.Token != "tok-1" || got.User.Username != "nurse1" || got.User.Role != identity.RoleNurse {
				t.Errorf("unexpected session %+v", got)
			}

			if err := Save(ctx, kv, "tok-2", u); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _, _ = Load(ctx, kv)
			if got.Token != "tok-2" {
				t.Errorf("expected overwritten token, got %s", got.Token)
			}

			if err := Clear(ctx, kv); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if _, err := kv.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
				t.Errorf("token should be gone, got %v", err)
			}
			if _, err := kv.Get(ctx, KeyCurrentUser); !errors.Is(err, ErrNotFound) {
				t.Errorf("user should be gone, got %v", err)
			}
			if err := Clear(ctx, kv); err != nil {
				t.Errorf("second clear: %v", err)
			}
		})
	}
}

func TestLoad_Corrupt(t *testing.T) {
	ctx := context.Background()
	for name, kv := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_ = kv.Set(ctx, KeyToken, "tok")
			_ = kv.Set(ctx, KeyCurrentUser, "{not json")
			if _, ok, err := Load(ctx, kv); ok || !errors.Is(err, ErrCorrupt) {
				t.Errorf("expected ErrCorrupt, got ok=%v err=%v", ok, err)
			}

			_ = kv.Set(ctx, KeyCurrentUser, "{}")
			if _, _, err := Load(ctx, kv); !errors.Is(err, ErrCorrupt) {
				t.Errorf("expected empty profile to be corrupt, got %v", err)
			}
		})
	}
}

func TestLoad_RequiresBothKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	_ = kv.Set(ctx, KeyCurrentUser, `{"id":1,"username":"a"}`)
	if _, ok, err := Load(ctx, kv); ok || err != nil {
		t.Errorf("expected absent session, got ok=%v err=%v", ok, err)
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	db, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Save(ctx, db, "tok", identity.User{ID: 1, Username: "admin", Role: identity.RoleAdmin}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = db.Close()

	db, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	got, ok, err := Load(ctx, db)
	if err != nil || !ok || got.User.Username != "admin" {
		t.Errorf("unexpected reload: %+v ok=%v err=%v", got, ok, err)
	}
	if db.Path() != path {
		t.Errorf("Path() = %s, want %s", db.Path(), path)
	}
}

// partialKV applies the first entry of a batch and then fails, like a store
// without transactions.
type partialKV struct {
	*Memory
}

func (p partialKV) SetMany(ctx context.Context, entries map[string]string) error {
	_ = p.Memory.Set(ctx, KeyToken, entries[KeyToken])
	return errors.New("disk full")
}

func TestSave_FailedWriteLeavesNoHalfSession(t *testing.T) {
	ctx := context.Background()
	kv := partialKV{NewMemory()}
	_ = kv.Memory.Set(ctx, KeyCurrentUser, `{"id":1,"username":"previous"}`)

	err := Save(ctx, kv, "tok-new", identity.User{ID: 2, Username: "next"})
	if err == nil {
		t.Fatal("expected save to fail")
	}
	if kv.Len() != 0 {
		t.Errorf("expected both keys removed, %d left", kv.Len())
	}
	if _, ok, err := Load(ctx, kv); ok || err != nil {
		t.Errorf("expected no session, got ok=%v err=%v", ok, err)
	}
}

func TestSQLite_SetManyIsAtomic(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.db.ExecContext(ctx, `CREATE TRIGGER reject_user BEFORE INSERT ON kv
		WHEN NEW.key = 'currentUser' BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	err = db.SetMany(ctx, map[string]string{KeyToken: "tok", KeyCurrentUser: `{"id":1}`})
	if err == nil {
		t.Fatal("expected the batch to fail")
	}
	if _, err := db.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("token should not be written alone, got %v", err)
	}
}
