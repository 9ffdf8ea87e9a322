package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slotwatch/lib/telemetry"
	"slotwatch/services/notify"
)

type fakeEndpoint struct {
	mu      sync.Mutex
	results []PollResult
	calls   int
	// returned once results run out
	fallback PollResult

	detail    []notify.Field
	detailErr error
	signOuts  int
}

func (f *fakeEndpoint) Name() string { return "fake" }

func (f *fakeEndpoint) FetchAvailability(ctx context.Context) PollResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return f.fallback
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next
}

func (f *fakeEndpoint) FetchDetail(ctx context.Context, id string) ([]notify.Field, error) {
	return f.detail, f.detailErr
}

func (f *fakeEndpoint) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	return nil
}

func (f *fakeEndpoint) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAuth struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAuth) Authenticate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

type message struct {
	channel string
	fields  []notify.Field
	err     error
}

type recordingSink struct {
	mu       sync.Mutex
	messages []message
	fail     error
}

func (r *recordingSink) SendMessage(ctx context.Context, channel string, fields []notify.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message{channel: channel, fields: fields})
	return r.fail
}

func (r *recordingSink) SendError(ctx context.Context, channel string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message{channel: channel, err: err})
	return r.fail
}

func (r *recordingSink) on(channel string) []message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message
	for _, m := range r.messages {
		if m.channel == channel {
			out = append(out, m)
		}
	}
	return out
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

var testChannels = Channels{
	Listing:  "listing",
	Earliest: "earliest",
	Status:   "status",
	Error:    "errors",
}

const testInterval = time.Minute

func newTestMonitor(t testing.TB, endpoint *fakeEndpoint, auth Authenticator, sink notify.Sink, mutate ...func(*Options)) *Monitor {
	telemetry.SetupForTesting(t, "test:services/monitor")

	opts := Options{
		Name:     "visa",
		Endpoint: endpoint,
		Auth:     auth,
		Sink:     sink,
		Channels: testChannels,
		Interval: testInterval,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	m, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func slots(ids ...string) []Slot {
	out := make([]Slot, len(ids))
	for i, id := range ids {
		out[i] = Slot{ID: id}
	}
	return out
}

var errBoom = errors.New("boom")
