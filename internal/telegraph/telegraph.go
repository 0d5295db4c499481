package telegraph

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/zulandar/leadbot/internal/config"
	"github.com/zulandar/leadbot/internal/session"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Daemon is the main bot process. It connects to a chat platform via an
// Adapter, pumps inbound messages through the Router with bounded
// concurrency, and runs the digest and session-sweep schedules.
type Daemon struct {
	db        *gorm.DB
	cfg       *config.Config
	adapter   Adapter
	store     session.Store
	responder Responder
	sink      LeadSink
	out       io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB        *gorm.DB // optional; enables the lead digest
	Config    *config.Config
	Adapter   Adapter
	Store     session.Store // defaults to a MemoryStore
	Responder Responder     // defaults to CannedResponder
	Sink      LeadSink      // optional
	Out       io.Writer     // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("telegraph: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore()
	}
	if opts.Sink == nil {
		fmt.Fprintf(out, "telegraph: no lead sink configured; leads are logged only\n")
	}
	return &Daemon{
		db:        opts.DB,
		cfg:       opts.Config,
		adapter:   opts.Adapter,
		store:     store,
		responder: opts.Responder,
		sink:      opts.Sink,
		out:       out,
	}, nil
}

// Run starts the daemon. It connects the adapter, builds the Router,
// starts the schedules, and blocks until the context is cancelled. On
// shutdown it waits for in-flight messages and closes the adapter.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Leadbot connecting to %s...\n", d.cfg.Platform)
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("telegraph: connect: %w", err)
	}

	router, err := d.buildRouter()
	if err != nil {
		d.adapter.Close()
		return err
	}

	// Only the lock holder may Listen: polling and webhook registration
	// both happen there.
	var key, holder string
	if d.db != nil {
		key, holder = d.lockKey(router), lockHolder()
		if err := AcquireLock(d.db, key, holder, DefaultHeartbeatTimeout); err != nil {
			d.adapter.Close()
			return err
		}
		defer func() {
			if err := ReleaseLock(d.db, key, holder); err != nil {
				log.Printf("telegraph: %v", err)
			}
		}()
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: listen: %w", err)
	}

	var lost chan error
	if d.db != nil {
		lost = make(chan error, 1)
		go d.runHeartbeat(ctx, key, holder, lost)
	}

	go d.runScheduler(ctx)

	fmt.Fprintf(d.out, "Leadbot online\n")

	var g errgroup.Group
	g.SetLimit(d.cfg.Bot.Concurrency)

	defer func() {
		g.Wait()
		if err := d.adapter.Close(); err != nil {
			log.Printf("telegraph: close adapter: %v", err)
		}
		fmt.Fprintf(d.out, "Leadbot stopped\n")
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Leadbot shutting down...\n")
			return nil

		case err := <-lost:
			return err

		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Leadbot inbound channel closed\n")
				return nil
			}
			g.Go(func() error {
				router.Handle(ctx, msg)
				return nil
			})
		}
	}
}

// buildRouter resolves bot identity, profile and hours and builds the Router.
func (d *Daemon) buildRouter() (*Router, error) {
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}
	botHandle := d.cfg.Bot.Handle
	if bh, ok := d.adapter.(BotHandler); ok && bh.BotHandle() != "" {
		botHandle = bh.BotHandle()
	}

	hours, err := HoursFromConfig(d.cfg.Hours)
	if err != nil {
		return nil, fmt.Errorf("telegraph: build hours: %w", err)
	}
	profile := ProfileFromConfig(d.cfg.Company)
	cmdHandler, err := NewCommandHandler(CommandHandlerOpts{Profile: &profile, Hours: &hours})
	if err != nil {
		return nil, fmt.Errorf("telegraph: build command handler: %w", err)
	}

	router, err := NewRouter(RouterOpts{
		Adapter:          d.adapter,
		Store:            d.store,
		CmdHandler:       cmdHandler,
		Responder:        d.responder,
		Sink:             d.sink,
		BotUserID:        botUserID,
		BotHandle:        botHandle,
		ThreadSessions:   d.cfg.Bot.ThreadSessionsEnabled(),
		ResponderTimeout: d.cfg.Bot.ResponderTimeout,
		DeliveryTimeout:  d.cfg.Bot.DeliveryTimeout,
		Out:              d.out,
	})
	if err != nil {
		return nil, fmt.Errorf("telegraph: build router: %w", err)
	}
	fmt.Fprintf(d.out, "telegraph: bot handle=%q user=%q\n", botHandle, botUserID)
	return router, nil
}

// lockKey identifies the bot account so that only one process serves it.
func (d *Daemon) lockKey(r *Router) string {
	id := r.botUserID
	if id == "" {
		id = r.botHandle
	}
	if id == "" {
		id = "default"
	}
	return d.cfg.Platform + ":" + id
}

func lockHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// runHeartbeat refreshes the instance lock until ctx is done. Losing the
// lock is reported on lost.
func (d *Daemon) runHeartbeat(ctx context.Context, key, holder string, lost chan<- error) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Heartbeat(d.db, key, holder); err != nil {
				lost <- err
				return
			}
		}
	}
}

// runScheduler manages the cron-based digest and session sweep timers.
// It returns immediately if neither is enabled.
func (d *Daemon) runScheduler(ctx context.Context) {
	digestCfg := d.cfg.Leads.Digest
	sessCfg := d.cfg.Session

	digestOn := digestCfg.Enabled && d.db != nil
	sweepOn := sessCfg.ExpireAfter > 0
	if !digestOn && !sweepOn {
		return
	}

	loc, err := time.LoadLocation(d.cfg.Hours.Timezone)
	if err != nil {
		loc = time.Local
	}
	next := func(expr string) time.Duration { return untilNext(expr, time.Now(), loc) }

	var digestTimer, sweepTimer *time.Timer
	if digestOn {
		if wait := next(digestCfg.Cron); wait > 0 {
			digestTimer = time.NewTimer(wait)
		}
	}
	if sweepOn {
		if wait := next(sessCfg.SweepCron); wait > 0 {
			sweepTimer = time.NewTimer(wait)
		}
	}

	defer func() {
		if digestTimer != nil {
			digestTimer.Stop()
		}
		if sweepTimer != nil {
			sweepTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerChan(digestTimer):
			d.fireDigest(ctx, time.Now())
			if wait := next(digestCfg.Cron); wait > 0 {
				digestTimer.Reset(wait)
			}
		case <-timerChan(sweepTimer):
			d.sweepSessions(ctx, time.Now())
			if wait := next(sessCfg.SweepCron); wait > 0 {
				sweepTimer.Reset(wait)
			}
		}
	}
}

// fireDigest builds and sends the lead digest for the 24 hours before now.
func (d *Daemon) fireDigest(ctx context.Context, now time.Time) {
	report, err := BuildDigest(d.db, now.Add(-24*time.Hour), now)
	if err != nil {
		log.Printf("telegraph: digest: %v", err)
		return
	}
	if report == nil {
		// No leads, no digest.
		return
	}
	if err := d.adapter.Send(ctx, OutboundMessage{
		ChannelID: d.cfg.Leads.ChannelID,
		ThreadID:  d.cfg.Leads.TopicID,
		Events:    []FormattedEvent{FormatDigest(report)},
	}); err != nil {
		log.Printf("telegraph: send digest: %v", err)
	}
}

// sweepSessions resets collecting sessions idle longer than expire_after.
func (d *Daemon) sweepSessions(ctx context.Context, now time.Time) {
	n, err := d.store.ExpireIdle(ctx, now.Add(-d.cfg.Session.ExpireAfter))
	if err != nil {
		log.Printf("telegraph: session sweep: %v", err)
		return
	}
	if n > 0 {
		fmt.Fprintf(d.out, "telegraph: session sweep reset %d abandoned dialogue(s)\n", n)
	}
}

// timerChan returns the timer's channel, or nil if the timer is nil.
// A nil channel blocks forever in select.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// HoursFromConfig converts the configured schedule.
func HoursFromConfig(c config.HoursConfig) (BusinessHours, error) {
	h := BusinessHours{}
	for _, s := range c.Days {
		day, err := config.ParseWeekday(s)
		if err != nil {
			return h, err
		}
		h.Days = append(h.Days, day)
	}
	var err error
	if h.Open, err = config.ParseClock(c.Open); err != nil {
		return h, err
	}
	if h.Close, err = config.ParseClock(c.Close); err != nil {
		return h, err
	}
	if h.Location, err = time.LoadLocation(c.Timezone); err != nil {
		return h, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return h, nil
}

// ProfileFromConfig overlays configured company fields on DefaultProfile.
func ProfileFromConfig(c config.CompanyConfig) Profile {
	p := DefaultProfile()
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&p.Name, c.Name)
	override(&p.City, c.City)
	override(&p.CityEn, c.CityEn)
	override(&p.Address, c.Address)
	override(&p.Phone, c.Phone)
	override(&p.Email, c.Email)
	override(&p.Website, c.Website)
	if c.Latitude != 0 || c.Longitude != 0 {
		p.Latitude = c.Latitude
		p.Longitude = c.Longitude
	}
	return p
}
