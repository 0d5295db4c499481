package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/leadbot/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Every pooled connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.ConversationState{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// storesUnderTest returns a fresh instance of every Store implementation.
func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	dbStore, err := NewDBStore(openTestDB(t))
	if err != nil {
		t.Fatalf("new db store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"db":     dbStore,
	}
}

func TestStage_Order(t *testing.T) {
	want := []Stage{CollectingProject, CollectingName, CollectingPhone, CollectingEmail, Idle}
	s := CollectingProject
	for i, w := range want[1:] {
		s = s.Next()
		if s != w {
			t.Fatalf("step %d: Next() = %s, want %s", i, s, w)
		}
	}
	if Idle.Next() != Idle {
		t.Errorf("Idle.Next() = %s, want idle", Idle.Next())
	}
}

func TestStage_Fields(t *testing.T) {
	tests := map[Stage]string{
		Idle:              "",
		CollectingProject: FieldProject,
		CollectingName:    FieldName,
		CollectingPhone:   FieldPhone,
		CollectingEmail:   FieldEmail,
	}
	for st, want := range tests {
		if got := st.Field(); got != want {
			t.Errorf("%s.Field() = %q, want %q", st, got, want)
		}
		if st.Collecting() != (want != "") {
			t.Errorf("%s.Collecting() = %v", st, st.Collecting())
		}
	}
}

func TestParseStage_RoundTrip(t *testing.T) {
	for _, st := range []Stage{Idle, CollectingProject, CollectingName, CollectingPhone, CollectingEmail} {
		got, err := ParseStage(st.String())
		if err != nil {
			t.Fatalf("ParseStage(%q): %v", st.String(), err)
		}
		if got != st {
			t.Errorf("ParseStage(%q) = %s", st.String(), got)
		}
	}
	if _, err := ParseStage("bogus"); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestIdentity_Key(t *testing.T) {
	if got := (Identity{ChatID: "42"}).Key(); got != "2:42:" {
		t.Errorf("Key() = %q, want 2:42:", got)
	}
	if got := (Identity{ChatID: "42", ThreadID: "7"}).Key(); got != "2:42:7" {
		t.Errorf("Key() = %q, want 2:42:7", got)
	}

	distinct := []Identity{
		{ChatID: "a:b"},
		{ChatID: "a", ThreadID: "b"},
		{ChatID: "a:", ThreadID: "b"},
		{ChatID: "a", ThreadID: ":b"},
		{ChatID: "2:42:"},
		{ChatID: "42"},
	}
	seen := map[string]Identity{}
	for _, id := range distinct {
		if prev, ok := seen[id.Key()]; ok {
			t.Errorf("%+v and %+v share key %q", prev, id, id.Key())
		}
		seen[id.Key()] = id
	}
	if (Identity{}).Valid() {
		t.Error("empty identity should not be valid")
	}
}

func TestSession_ResetClearsFields(t *testing.T) {
	s := New(Identity{ChatID: "1"})
	s.Stage = CollectingPhone
	s.Fields[FieldProject] = "shop"
	s.Fields[FieldName] = "Ali"
	s.Reset()
	if s.Stage != Idle || len(s.Fields) != 0 {
		t.Errorf("after Reset: stage=%s fields=%v", s.Stage, s.Fields)
	}
}

func TestStore_LazyCreateAndUpdate(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := Identity{ChatID: "100", ThreadID: "5"}

			if _, ok, err := store.Get(ctx, id); err != nil || ok {
				t.Fatalf("Get before update: ok=%v err=%v", ok, err)
			}

			err := store.Update(ctx, id, func(s *Session) error {
				if s.Stage != Idle {
					t.Errorf("new session stage = %s, want idle", s.Stage)
				}
				s.MessageCount++
				s.Stage = CollectingProject
				return nil
			})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}

			got, ok, err := store.Get(ctx, id)
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if got.Stage != CollectingProject || got.MessageCount != 1 {
				t.Errorf("stored session = %+v", got)
			}
			if got.Identity != id {
				t.Errorf("Identity = %+v, want %+v", got.Identity, id)
			}
		})
	}
}

func TestStore_ErrorDiscardsChanges(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := Identity{ChatID: "200"}
			boom := errors.New("boom")

			err := store.Update(ctx, id, func(s *Session) error {
				s.Stage = CollectingName
				s.Fields[FieldProject] = "x"
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("Update error = %v, want boom", err)
			}
			if got, ok, _ := store.Get(ctx, id); ok && got.Stage != Idle {
				t.Errorf("stage after failed update = %s, want idle or absent", got.Stage)
			}
		})
	}
}

func TestStore_FieldsPersist(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := Identity{ChatID: "300"}
			_ = store.Update(ctx, id, func(s *Session) error {
				s.Stage = CollectingName
				s.Fields[FieldProject] = "Need a booking app"
				return nil
			})
			got, _, err := store.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Fields[FieldProject] != "Need a booking app" {
				t.Errorf("project = %q", got.Fields[FieldProject])
			}
		})
	}
}

func TestStore_ListAndExpire(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := time.Now().Add(-2 * time.Hour)
			fresh := time.Now()

			set := func(chat string, st Stage, seen time.Time) {
				_ = store.Update(ctx, Identity{ChatID: chat}, func(s *Session) error {
					s.Stage = st
					if st.Collecting() {
						s.Fields[FieldProject] = "p"
					}
					s.LastSeen = seen
					return nil
				})
			}
			set("a", CollectingName, old)
			set("b", CollectingPhone, fresh)
			set("c", Idle, old)

			all, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("len(List) = %d, want 3", len(all))
			}

			n, err := store.ExpireIdle(ctx, time.Now().Add(-time.Hour))
			if err != nil {
				t.Fatalf("ExpireIdle: %v", err)
			}
			if n != 1 {
				t.Errorf("expired = %d, want 1", n)
			}
			a, _, _ := store.Get(ctx, Identity{ChatID: "a"})
			if a.Stage != Idle || len(a.Fields) != 0 {
				t.Errorf("a after expire = %s %v", a.Stage, a.Fields)
			}
			b, _, _ := store.Get(ctx, Identity{ChatID: "b"})
			if b.Stage != CollectingPhone {
				t.Errorf("b after expire = %s, want collecting_phone", b.Stage)
			}
		})
	}
}

func TestStore_ConcurrentTurnsAreSerialized(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := Identity{ChatID: "race", ThreadID: "1"}

			const turns = 50
			errs := make(chan error, turns)
			var wg sync.WaitGroup
			for i := 0; i < turns; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- store.Update(ctx, id, func(s *Session) error {
						s.MessageCount++
						return nil
					})
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("Update: %v", err)
				}
			}

			got, ok, err := store.Get(ctx, id)
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if got.MessageCount != turns {
				t.Errorf("MessageCount = %d, want %d (lost update)", got.MessageCount, turns)
			}

			var locks *keyLocker
			switch st := store.(type) {
			case *MemoryStore:
				locks = st.locks
			case *DBStore:
				locks = st.locks
			}
			if locks == nil || locks.size() != 0 {
				t.Errorf("locker still holds keys after all turns")
			}
		})
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Update(ctx, Identity{ChatID: "x"}, func(s *Session) error { return nil })
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewDBStore_NilDB(t *testing.T) {
	if _, err := NewDBStore(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}
