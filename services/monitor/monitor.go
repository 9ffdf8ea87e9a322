package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"slotwatch/lib/session"
	"slotwatch/lib/timezone"
	"slotwatch/services/notify"

	random "github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const escalationFactor = 5

type Options struct {
	Name     string
	Endpoint Endpoint
	// defaults to NoAuth
	Auth     Authenticator
	Sink     notify.Sink
	Channels Channels
	Labels   Labels
	// defaults to Any
	Constraint Constraint
	Interval   time.Duration
	// delay after a failed cycle, defaults to 5x Interval
	EscalatedInterval time.Duration
	// append slot details to earliest-match messages when the endpoint
	// supports it
	FetchDetail bool
	// start without polling until Start is called
	Paused bool
}

// State is a point in time view of a monitor.
type State struct {
	Name        string    `json:"name"`
	Active      bool      `json:"active"`
	Constraint  string    `json:"constraint"`
	Status      Status    `json:"status"`
	Earliest    string    `json:"earliest,omitempty"`
	Available   []string  `json:"available"`
	LastResult  string    `json:"last_result,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
	NextFireAt  time.Time `json:"next_fire_at,omitempty"`
	Cycles      int       `json:"cycles"`
}

// Monitor polls one endpoint on a timer. cycles never overlap, they all
// run on the goroutine that called Run.
type Monitor struct {
	name        string
	endpoint    Endpoint
	auth        Authenticator
	sink        notify.Sink
	channels    Channels
	labels      Labels
	interval    time.Duration
	escalated   time.Duration
	fetchDetail bool
	attrs       metric.MeasurementOption

	active atomic.Bool
	wake   chan struct{}

	mu         sync.Mutex
	constraint Constraint
	state      State
}

func New(opts Options) (*Monitor, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("monitor name is required")
	}
	if opts.Endpoint == nil {
		return nil, fmt.Errorf("monitor %s: endpoint is required", opts.Name)
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("monitor %s: sink is required", opts.Name)
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("monitor %s: interval must be positive", opts.Name)
	}
	if opts.EscalatedInterval <= 0 {
		opts.EscalatedInterval = opts.Interval * escalationFactor
	}
	if opts.Auth == nil {
		opts.Auth = NoAuth{}
	}
	if opts.Constraint == nil {
		opts.Constraint = Any{}
	}

	m := &Monitor{
		name:        opts.Name,
		endpoint:    opts.Endpoint,
		auth:        opts.Auth,
		sink:        opts.Sink,
		channels:    opts.Channels,
		labels:      opts.Labels.withDefaults(),
		interval:    opts.Interval,
		escalated:   opts.EscalatedInterval,
		fetchDetail: opts.FetchDetail,
		attrs:       metric.WithAttributes(attribute.String("monitor", opts.Name)),
		wake:        make(chan struct{}, 1),
		constraint:  opts.Constraint,
		state:       State{Name: opts.Name},
	}
	m.active.Store(!opts.Paused)
	return m, nil
}

func (m *Monitor) Name() string {
	return m.name
}

// Start resumes polling and makes the next cycle run right away. it
// returns false when the monitor was already active.
func (m *Monitor) Start() bool {
	if m.active.Swap(true) {
		return false
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop pauses polling, it returns false when already paused. a cycle
// in flight is allowed to finish.
func (m *Monitor) Stop() bool {
	return m.active.Swap(false)
}

func (m *Monitor) Active() bool {
	return m.active.Load()
}

// SetDesiredDate narrows matching to slots strictly before `date`. an
// invalid date leaves the current constraint in place.
func (m *Monitor) SetDesiredDate(date string) error {
	c, err := ParseDate(date)
	if err != nil {
		return err
	}
	m.SetConstraint(c)
	return nil
}

func (m *Monitor) SetConstraint(c Constraint) {
	if c == nil {
		c = Any{}
	}
	m.mu.Lock()
	m.constraint = c
	m.mu.Unlock()
}

func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	s.Active = m.active.Load()
	s.Constraint = m.constraint.String()
	s.Available = append([]string(nil), m.state.Available...)
	return s
}

// Run polls until ctx is cancelled. the first cycle runs immediately.
func (m *Monitor) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	defer m.shutdown()

	slog.InfoContext(ctx, "monitor started", "monitor", m.name, "interval", m.interval, "active", m.Active())

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "monitor stopped", "monitor", m.name)
			return nil
		case <-m.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		delay := m.RunCycle(ctx)
		m.mu.Lock()
		m.state.NextFireAt = timezone.Now().Add(delay)
		m.mu.Unlock()
		timer.Reset(delay)
	}
}

func (m *Monitor) shutdown() {
	signOuter, ok := m.endpoint.(SignOuter)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err := signOuter.SignOut(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to sign out", "monitor", m.name, "err", err)
	}
}

// RunCycle performs one poll and returns how long to wait before the
// next one. a paused monitor does no work and waits the base interval.
func (m *Monitor) RunCycle(ctx context.Context) time.Duration {
	if !m.active.Load() {
		return m.interval
	}

	cycleId, err := random.String(8)
	if err != nil {
		cycleId = "-"
	}
	ctx, span := tracer.Start(ctx, "monitor:RunCycle", trace.WithAttributes(
		attribute.String("monitor", m.name),
		attribute.String("cycle", cycleId),
	))
	defer span.End()
	logger := slog.Default().With("monitor", m.name, "cycle", cycleId)

	cyclesTotal.Add(ctx, 1, m.attrs)
	result := m.poll(ctx, logger)
	now := timezone.Now()

	if result.Kind != Success {
		if ctx.Err() != nil {
			return m.interval
		}
		cycleErrorsTotal.Add(ctx, 1, m.attrs)
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "cycle failed")
		logger.WarnContext(ctx, "cycle failed", "err", result.Err)

		m.deliver(ctx, logger, m.sink.SendError(ctx, m.channels.Error, result.Err))

		m.mu.Lock()
		m.state.LastResult = result.Kind.String()
		m.state.LastError = result.Err.Error()
		m.state.LastCycleAt = now
		m.state.Cycles++
		m.mu.Unlock()
		return m.escalated
	}

	m.mu.Lock()
	constraint := m.constraint
	last := m.state.Status
	m.mu.Unlock()

	detection := Detect(result.Slots, constraint, last)
	span.SetAttributes(
		attribute.Int("slots", len(detection.All)),
		attribute.Int("matching", len(detection.Matching)),
		attribute.String("status", detection.Status.String()),
	)
	logger.DebugContext(ctx, "cycle succeeded",
		"slots", len(detection.All),
		"matching", len(detection.Matching),
		"earliest", detection.Earliest,
	)

	m.announce(ctx, logger, detection)
	if detection.Notify {
		statusFlipsTotal.Add(ctx, 1, m.attrs)
	}

	m.mu.Lock()
	m.state.Status = detection.Status
	m.state.Earliest = detection.Earliest
	m.state.Available = detection.All
	m.state.LastResult = result.Kind.String()
	m.state.LastError = ""
	m.state.LastCycleAt = now
	m.state.Cycles++
	m.mu.Unlock()

	return m.interval
}

// poll fetches availability, signing in again and retrying once when
// the session has expired.
func (m *Monitor) poll(ctx context.Context, logger *slog.Logger) PollResult {
	result := m.endpoint.FetchAvailability(ctx)
	if result.Kind != AuthRequired {
		return result
	}

	reauthTotal.Add(ctx, 1, m.attrs)
	logger.InfoContext(ctx, "session expired, signing in", "reason", result.Err)

	err := m.auth.Authenticate(ctx)
	if err != nil {
		return Failed(fmt.Errorf("sign in: %w", err))
	}

	result = m.endpoint.FetchAvailability(ctx)
	if result.Kind == AuthRequired {
		err := result.Err
		if err == nil {
			err = session.ErrAuthRequired
		}
		return Failed(err)
	}
	return result
}

func (m *Monitor) announce(ctx context.Context, logger *slog.Logger, d Detection) {
	m.deliver(ctx, logger, m.sink.SendMessage(ctx, m.channels.Listing, listingFields(m.labels, d)))

	if d.Earliest != "" {
		fields := earliestFields(m.labels, d)
		fields = append(fields, m.details(ctx, logger, d.Earliest)...)
		m.deliver(ctx, logger, m.sink.SendMessage(ctx, m.channels.Earliest, fields))
	}

	if d.Notify {
		m.deliver(ctx, logger, m.sink.SendMessage(ctx, m.channels.Status, statusFields(m.name, m.labels, d)))
	}
}

// details failures never fail the cycle, the slot list alone is still
// worth sending.
func (m *Monitor) details(ctx context.Context, logger *slog.Logger, id string) []notify.Field {
	if !m.fetchDetail {
		return nil
	}
	fetcher, ok := m.endpoint.(DetailFetcher)
	if !ok {
		return nil
	}
	fields, err := fetcher.FetchDetail(ctx, id)
	if err != nil {
		logger.InfoContext(ctx, "skipping slot details", "slot", id, "err", err)
		return nil
	}
	return fields
}

func (m *Monitor) deliver(ctx context.Context, logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	logger.Log(ctx, level, "failed to deliver notification", "err", err)
}
