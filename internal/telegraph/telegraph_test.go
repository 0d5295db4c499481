package telegraph

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/leadbot/internal/config"
	"github.com/zulandar/leadbot/internal/models"
	"github.com/zulandar/leadbot/internal/session"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testCfg(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.ParseEnv([]byte(`
telegram:
  token: test-token
bot:
  handle: optimuspremiumbot
leads:
  channel_id: "-100200"
  topic_id: "5"
  digest:
    enabled: true
session:
  expire_after: 30m
`), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

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
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Lead{}, &models.ConversationState{}, &models.InstanceLock{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

// ---------------------------------------------------------------------------
// NewDaemon validation tests
// ---------------------------------------------------------------------------

func TestNewDaemon_NilConfig(t *testing.T) {
	_, err := NewDaemon(DaemonOpts{Adapter: NewMockAdapter()})
	if err == nil {
		t.Fatal("expected error for nil config")
	}
	if !strings.Contains(err.Error(), "config is required") {
		t.Errorf("error = %q", err)
	}
}

func TestNewDaemon_NilAdapter(t *testing.T) {
	_, err := NewDaemon(DaemonOpts{Config: testCfg(t)})
	if err == nil {
		t.Fatal("expected error for nil adapter")
	}
	if !strings.Contains(err.Error(), "adapter is required") {
		t.Errorf("error = %q", err)
	}
}

func TestNewDaemon_DefaultsStore(t *testing.T) {
	var out bytes.Buffer
	d, err := NewDaemon(DaemonOpts{Config: testCfg(t), Adapter: NewMockAdapter(), Out: &out})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.store == nil {
		t.Fatal("expected a default session store")
	}
	if !strings.Contains(out.String(), "no lead sink configured") {
		t.Errorf("output = %q", out.String())
	}
}

// ---------------------------------------------------------------------------
// Run lifecycle tests
// ---------------------------------------------------------------------------

func TestDaemon_RunHandlesInboundAndStops(t *testing.T) {
	adapter := NewMockAdapter()
	var out bytes.Buffer
	d, err := NewDaemon(DaemonOpts{Config: testCfg(t), Adapter: adapter, Out: &out})
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// SimulateInbound only needs the buffered channel, not a connection.
	adapter.SimulateInbound(InboundMessage{ChannelID: "100", ChatKind: ChatPrivate, UserID: "42", Text: "/help"})

	deadline := time.Now().Add(2 * time.Second)
	for adapter.SentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if adapter.SentCount() == 0 {
		cancel()
		t.Fatal("daemon did not reply")
	}
	last, _ := adapter.LastSent()
	if !strings.Contains(last.Text, "Mavjud buyruqlar") {
		t.Errorf("reply = %q", last.Text)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if !strings.Contains(out.String(), "Leadbot stopped") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDaemon_RunInboundClosed(t *testing.T) {
	adapter := NewMockAdapter()
	d, err := NewDaemon(DaemonOpts{Config: testCfg(t), Adapter: adapter, Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !adapter.Listening() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Closing the adapter closes the inbound channel.
	adapter.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after inbound closed")
	}
}

func TestDaemon_RunConnectError(t *testing.T) {
	adapter := NewMockAdapter()
	adapter.Close()
	d, _ := NewDaemon(DaemonOpts{Config: testCfg(t), Adapter: adapter, Out: &bytes.Buffer{}})
	if err := d.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "connect") {
		t.Errorf("Run error = %v, want connect error", err)
	}
}

func TestDaemon_RunHoldsInstanceLock(t *testing.T) {
	db := openTestDB(t)
	adapter := NewMockAdapter()
	adapter.SetBotUserID("777")
	d, _ := NewDaemon(DaemonOpts{DB: db, Config: testCfg(t), Adapter: adapter, Out: &bytes.Buffer{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	var n int64
	for n == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		db.Model(&models.InstanceLock{}).Where(&models.InstanceLock{Key: "telegram:777"}).Count(&n)
	}
	if n != 1 {
		cancel()
		t.Fatal("daemon did not take the instance lock")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	db.Model(&models.InstanceLock{}).Count(&n)
	if n != 0 {
		t.Errorf("lock rows after shutdown = %d, want 0", n)
	}
}

func TestDaemon_RunRefusesWhenLocked(t *testing.T) {
	db := openTestDB(t)
	if err := AcquireLock(db, "telegram:777", "other-host:1", DefaultHeartbeatTimeout); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	adapter := NewMockAdapter()
	adapter.SetBotUserID("777")
	d, _ := NewDaemon(DaemonOpts{DB: db, Config: testCfg(t), Adapter: adapter, Out: &bytes.Buffer{}})

	err := d.Run(context.Background())
	if !errors.Is(err, ErrLockHeld) {
		t.Errorf("Run error = %v, want ErrLockHeld", err)
	}
	if adapter.Listening() {
		t.Error("a process without the lock must not start listening")
	}
}

// ---------------------------------------------------------------------------
// Schedules
// ---------------------------------------------------------------------------

func TestDaemon_FireDigest(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	db.Create(&models.Lead{ID: "a", Platform: "telegram", ChatID: "1", UserID: "1", Language: "uz", Delivered: true, CreatedAt: now.Add(-2 * time.Hour)})
	db.Create(&models.Lead{ID: "b", Platform: "telegram", ChatID: "2", UserID: "2", Language: "en", CreatedAt: now.Add(-3 * time.Hour)})

	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	d, _ := NewDaemon(DaemonOpts{DB: db, Config: testCfg(t), Adapter: adapter, Out: &bytes.Buffer{}})

	d.fireDigest(context.Background(), now)

	last, ok := adapter.LastSent()
	if !ok {
		t.Fatal("expected a digest message")
	}
	if last.ChannelID != "-100200" || last.ThreadID != "5" {
		t.Errorf("digest target = %s/%s", last.ChannelID, last.ThreadID)
	}
	if len(last.Events) != 1 || !strings.Contains(last.Events[0].Body, "Leads: 2 (1 delivered, 1 failed)") {
		t.Errorf("digest events = %+v", last.Events)
	}
}

func TestDaemon_FireDigestSuppressedWhenEmpty(t *testing.T) {
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	d, _ := NewDaemon(DaemonOpts{DB: openTestDB(t), Config: testCfg(t), Adapter: adapter, Out: &bytes.Buffer{}})
	d.fireDigest(context.Background(), time.Now())
	if adapter.SentCount() != 0 {
		t.Errorf("sent %d messages, want 0", adapter.SentCount())
	}
}

func TestDaemon_SweepSessions(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()
	old := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store.Update(ctx, session.Identity{ChatID: "1"}, func(s *session.Session) error {
		s.Stage = session.CollectingPhone
		s.Fields[session.FieldProject] = "p"
		s.LastSeen = old
		return nil
	})

	var out bytes.Buffer
	d, _ := NewDaemon(DaemonOpts{Config: testCfg(t), Adapter: NewMockAdapter(), Store: store, Out: &out})
	d.sweepSessions(ctx, old.Add(time.Hour))

	s, _, _ := store.Get(ctx, session.Identity{ChatID: "1"})
	if s.Stage != session.Idle || len(s.Fields) != 0 {
		t.Errorf("session after sweep = %+v", s)
	}
	if !strings.Contains(out.String(), "reset 1") {
		t.Errorf("output = %q", out.String())
	}
}

func TestProfileFromConfig(t *testing.T) {
	p := ProfileFromConfig(config.CompanyConfig{Name: "Acme", Phone: "+1 555"})
	if p.Name != "Acme" || p.Phone != "+1 555" {
		t.Errorf("overrides not applied: %+v", p)
	}
	if p.Address != DefaultProfile().Address || p.Latitude != 40.3834 {
		t.Errorf("defaults lost: %+v", p)
	}
}
