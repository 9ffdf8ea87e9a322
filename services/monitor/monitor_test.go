package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotwatch/lib/session"
	"slotwatch/services/notify"

	"github.com/stretchr/testify/require"
)

func TestRunCycleSuccess(t *testing.T) {
	endpoint := &fakeEndpoint{results: []PollResult{
		Succeeded(slots("2025-03-01", "2025-02-10")),
	}}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, NoAuth{}, sink, func(o *Options) {
		o.Constraint = Before{Date: "2025-03-01"}
	})

	delay := m.RunCycle(context.Background())
	require.Equal(t, testInterval, delay)

	listing := sink.on("listing")
	require.Len(t, listing, 1)
	require.Equal(t, []notify.Field{{Name: "Available dates", Value: "2025-02-10\n2025-03-01"}}, listing[0].fields)

	earliest := sink.on("earliest")
	require.Len(t, earliest, 1)
	require.Equal(t, []notify.Field{
		{Name: "Earliest date", Value: "2025-02-10"},
		{Name: "Available dates", Value: "2025-02-10"},
	}, earliest[0].fields)

	require.Len(t, sink.on("status"), 1)
	require.Empty(t, sink.on("errors"))

	state := m.Snapshot()
	require.Equal(t, StatusAvailable, state.Status)
	require.Equal(t, "2025-02-10", state.Earliest)
	require.Equal(t, []string{"2025-02-10", "2025-03-01"}, state.Available)
	require.Equal(t, "success", state.LastResult)
	require.Equal(t, 1, state.Cycles)
}

func TestRunCycleMarchAndJuneBeforeMay(t *testing.T) {
	endpoint := &fakeEndpoint{results: []PollResult{
		Succeeded(slots("2025-03-01", "2025-06-15")),
	}}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, NoAuth{}, sink, func(o *Options) {
		o.Constraint = Before{Date: "2025-05-01"}
	})

	m.RunCycle(context.Background())

	listing := sink.on("listing")
	require.Len(t, listing, 1)
	require.Equal(t, []notify.Field{{Name: "Available dates", Value: "2025-03-01\n2025-06-15"}}, listing[0].fields)

	earliest := sink.on("earliest")
	require.Len(t, earliest, 1)
	require.Equal(t, []notify.Field{
		{Name: "Earliest date", Value: "2025-03-01"},
		{Name: "Available dates", Value: "2025-03-01"},
	}, earliest[0].fields)

	require.Equal(t, StatusAvailable, m.Snapshot().Status)
}

func TestRunCycleNothingAvailable(t *testing.T) {
	endpoint := &fakeEndpoint{fallback: Succeeded(nil)}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, NoAuth{}, sink)

	m.RunCycle(context.Background())

	listing := sink.on("listing")
	require.Len(t, listing, 1)
	require.Equal(t, "No dates available", listing[0].fields[0].Value)
	require.Empty(t, sink.on("earliest"))
	require.Empty(t, sink.on("status"))
	require.Equal(t, StatusUnavailable, m.Snapshot().Status)
}

func TestRunCycleStatusFlips(t *testing.T) {
	endpoint := &fakeEndpoint{results: []PollResult{
		Succeeded(nil),
		Succeeded(nil),
		Succeeded(slots("2025-01-01")),
		Succeeded(slots("2025-01-01", "2025-01-02")),
		Succeeded(nil),
	}}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, NoAuth{}, sink)

	var fired []int
	for i := 0; i < 5; i++ {
		before := len(sink.on("status"))
		m.RunCycle(context.Background())
		if len(sink.on("status")) > before {
			fired = append(fired, i)
		}
	}
	require.Equal(t, []int{2, 4}, fired)
	require.Len(t, sink.on("listing"), 5)

	status := sink.on("status")
	require.Equal(t, "visa is available", status[0].fields[0].Value)
	require.Equal(t, "visa is no longer available", status[1].fields[0].Value)
}

func TestRunCycleReauthenticates(t *testing.T) {
	endpoint := &fakeEndpoint{results: []PollResult{
		NeedsAuth(nil),
		Succeeded(slots("2025-01-01")),
	}}
	auth := &fakeAuth{}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, auth, sink)

	delay := m.RunCycle(context.Background())
	require.Equal(t, testInterval, delay)
	require.Equal(t, 1, auth.calls)
	require.Equal(t, 2, endpoint.Calls())
	require.Empty(t, sink.on("errors"))
	require.Len(t, sink.on("earliest"), 1)
}

func TestRunCycleAuthRequiredTwice(t *testing.T) {
	endpoint := &fakeEndpoint{fallback: NeedsAuth(session.ErrAuthRequired)}
	auth := &fakeAuth{}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, auth, sink)

	delay := m.RunCycle(context.Background())
	require.Equal(t, testInterval*5, delay)
	require.Equal(t, 1, auth.calls)
	require.Equal(t, 2, endpoint.Calls())

	errs := sink.on("errors")
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].err, session.ErrAuthRequired)
	require.Empty(t, sink.on("listing"))

	state := m.Snapshot()
	require.Equal(t, "error", state.LastResult)
	require.Equal(t, StatusUnknown, state.Status)
}

func TestRunCycleSignInFails(t *testing.T) {
	endpoint := &fakeEndpoint{fallback: NeedsAuth(nil)}
	auth := &fakeAuth{err: session.ErrRejected}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, auth, sink)

	delay := m.RunCycle(context.Background())
	require.Equal(t, testInterval*5, delay)
	require.Equal(t, 1, endpoint.Calls())

	errs := sink.on("errors")
	require.Len(t, errs, 1)
	require.Equal(t, "Rejected", notify.ErrorName(errs[0].err))
}

func TestRunCycleTransientError(t *testing.T) {
	endpoint := &fakeEndpoint{results: []PollResult{
		Failed(&session.HTTPError{Method: "GET", Path: "/days", Status: 503}),
		Succeeded(nil),
	}}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, &fakeAuth{}, sink, func(o *Options) {
		o.EscalatedInterval = time.Hour
	})

	require.Equal(t, time.Hour, m.RunCycle(context.Background()))
	require.Len(t, sink.on("errors"), 1)
	require.Equal(t, "GET /days: unexpected status 503", m.Snapshot().LastError)

	// recovers on the next cycle
	require.Equal(t, testInterval, m.RunCycle(context.Background()))
	require.Equal(t, "", m.Snapshot().LastError)
}

func TestRunCycleSinkFailureDoesNotChangeSchedule(t *testing.T) {
	endpoint := &fakeEndpoint{fallback: Succeeded(slots("2025-01-01"))}
	sink := &recordingSink{fail: errBoom}
	m := newTestMonitor(t, endpoint, NoAuth{}, sink)

	require.Equal(t, testInterval, m.RunCycle(context.Background()))
	require.Equal(t, StatusAvailable, m.Snapshot().Status)
	require.Len(t, sink.on("listing"), 1)
	require.Len(t, sink.on("earliest"), 1)
	require.Len(t, sink.on("status"), 1)
}

func TestRunCyclePausedDoesNoWork(t *testing.T) {
	endpoint := &fakeEndpoint{fallback: Succeeded(slots("2025-01-01"))}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, NoAuth{}, sink)

	require.True(t, m.Stop())
	require.Equal(t, testInterval, m.RunCycle(context.Background()))
	require.Equal(t, 0, endpoint.Calls())
	require.Empty(t, sink.messages)
}

func TestRunCycleDetails(t *testing.T) {
	endpoint := &fakeEndpoint{
		fallback: Succeeded(slots("2025-01-01")),
		detail:   []notify.Field{{Name: "Available times", Value: "07:30, 08:00"}},
	}
	sink := &recordingSink{}
	m := newTestMonitor(t, endpoint, NoAuth{}, sink, func(o *Options) {
		o.FetchDetail = true
	})

	m.RunCycle(context.Background())
	earliest := sink.on("earliest")
	require.Len(t, earliest, 1)
	require.Equal(t, notify.Field{Name: "Available times", Value: "07:30, 08:00"}, earliest[0].fields[2])

	// a failed lookup is not an error
	endpoint.detailErr = session.ErrAuthRequired
	sink.reset()
	require.Equal(t, testInterval, m.RunCycle(context.Background()))
	require.Len(t, sink.on("earliest")[0].fields, 2)
	require.Empty(t, sink.on("errors"))
}

func TestStartStop(t *testing.T) {
	m := newTestMonitor(t, &fakeEndpoint{}, NoAuth{}, &recordingSink{})

	require.True(t, m.Active())
	require.False(t, m.Start())
	require.True(t, m.Stop())
	require.False(t, m.Stop())
	require.True(t, m.Start())
	require.True(t, m.Active())
}

func TestSetDesiredDate(t *testing.T) {
	m := newTestMonitor(t, &fakeEndpoint{}, NoAuth{}, &recordingSink{})

	require.NoError(t, m.SetDesiredDate("2025-03-01"))
	require.Equal(t, "before:2025-03-01", m.Snapshot().Constraint)

	err := m.SetDesiredDate("March 1st")
	require.ErrorIs(t, err, ErrInvalidConstraint)
	require.Equal(t, "before:2025-03-01", m.Snapshot().Constraint)

	err = m.SetDesiredDate("2025-13-40")
	require.ErrorIs(t, err, ErrInvalidConstraint)
	require.Equal(t, "before:2025-03-01", m.Snapshot().Constraint)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Name: "x", Endpoint: &fakeEndpoint{}, Sink: &recordingSink{}})
	require.Error(t, err)
	_, err = New(Options{Name: "x", Sink: &recordingSink{}, Interval: time.Second})
	require.Error(t, err)

	m, err := New(Options{Name: "x", Endpoint: &fakeEndpoint{}, Sink: &recordingSink{}, Interval: time.Second, Paused: true})
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, m.Active())
	require.Equal(t, "any", m.Snapshot().Constraint)
}

func TestClassify(t *testing.T) {
	require.Equal(t, Success, Classify(slots("a"), nil).Kind)
	require.Equal(t, AuthRequired, Classify(nil, errors.Join(errBoom, session.ErrAuthRequired)).Kind)
	require.Equal(t, TransientError, Classify(nil, errBoom).Kind)
}

func TestRunPollsAndSignsOut(t *testing.T) {
	endpoint := &fakeEndpoint{fallback: Succeeded(slots("2025-01-01"))}
	m := newTestMonitor(t, endpoint, NoAuth{}, &recordingSink{}, func(o *Options) {
		o.Interval = time.Millisecond * 10
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return endpoint.Calls() >= 3
	}, time.Second*2, time.Millisecond*5)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second * 2):
		t.Fatal("monitor did not stop")
	}
	require.Equal(t, 1, endpoint.signOuts)
	require.False(t, m.Snapshot().NextFireAt.IsZero())
}

func TestStartWakesPausedMonitor(t *testing.T) {
	endpoint := &fakeEndpoint{fallback: Succeeded(nil)}
	m := newTestMonitor(t, endpoint, NoAuth{}, &recordingSink{}, func(o *Options) {
		o.Interval = time.Hour
		o.Paused = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// the initial timer fires while paused and re-arms for an hour
	require.Eventually(t, func() bool {
		return !m.Snapshot().NextFireAt.IsZero()
	}, time.Second*2, time.Millisecond*5)
	require.Equal(t, 0, endpoint.Calls())

	require.True(t, m.Start())
	require.Eventually(t, func() bool {
		return endpoint.Calls() == 1
	}, time.Second*2, time.Millisecond*5)
}
