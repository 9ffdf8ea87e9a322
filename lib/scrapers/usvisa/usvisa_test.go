package usvisa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"slotwatch/lib/session"
	"slotwatch/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const signInPage = `<html><head><meta name="csrf-token" content="tok"></head></html>`

type fakeAis struct {
	signedIn bool
	// body returned by the days endpoint while signed in
	days string
	// status used when refusing a request
	refuseStatus int
}

func (f *fakeAis) handler(t testing.TB) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /en-ca/niv/users/sign_in", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, signInPage)
	})
	mux.HandleFunc("POST /en-ca/niv/users/sign_in", func(w http.ResponseWriter, r *http.Request) {
		f.signedIn = true
		http.SetCookie(w, &http.Cookie{Name: "_yatri_session", Value: "abc"})
		w.Header().Set("Session-Id", "1")
		w.Header().Set("X-Yatri-Email", "alice@example.com")
	})
	mux.HandleFunc("GET /en-ca/niv/schedule/123/appointment/days/95.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "false", r.URL.Query().Get("appointments[expedite]"))
		if !f.signedIn {
			w.WriteHeader(f.refuseStatus)
			fmt.Fprint(w, `{"error":"You need to sign in or sign up before continuing."}`)
			return
		}
		fmt.Fprint(w, f.days)
	})
	mux.HandleFunc("GET /en-ca/niv/schedule/123/appointment/times/95.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2025-03-01", r.URL.Query().Get("date"))
		fmt.Fprint(w, `{"available_times":["07:30","08:00"],"business_times":["07:30"]}`)
	})
	return mux
}

func setup(t testing.TB, ais *fakeAis) *Client {
	telemetry.SetupForTesting(t, "test:lib/scrapers/usvisa")

	srv := httptest.NewServer(ais.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{
		BaseUrl:    srv.URL,
		ScheduleId: "123",
		FacilityId: "95",
		Credentials: session.Credentials{
			Email:    "alice@example.com",
			Password: "secret",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestDays(t *testing.T) {
	client := setup(t, &fakeAis{
		signedIn: true,
		days:     `[{"date":"2025-03-01","business_day":true},{"date":"2025-02-10","business_day":true}]`,
	})

	days, err := client.Days(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []Day{
		{Date: "2025-03-01", BusinessDay: true},
		{Date: "2025-02-10", BusinessDay: true},
	}, days)
}

func TestDaysAuthRequired(t *testing.T) {
	cases := []struct {
		name   string
		status int
	}{
		{name: "unauthorized status", status: http.StatusUnauthorized},
		{name: "error body with 200", status: http.StatusOK},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			ais := &fakeAis{days: `[]`, refuseStatus: test.status}
			client := setup(t, ais)

			_, err := client.Days(context.Background())
			require.ErrorIs(t, err, session.ErrAuthRequired)
			require.Contains(t, err.Error(), "You need to sign in")

			err = client.SignIn(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			days, err := client.Days(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			require.Empty(t, days)
		})
	}
}

func TestDaysMalformed(t *testing.T) {
	client := setup(t, &fakeAis{signedIn: true, days: `<html>maintenance</html>`})

	_, err := client.Days(context.Background())
	var malformed *session.MalformedError
	require.True(t, errors.As(err, &malformed))
}

func TestTimes(t *testing.T) {
	client := setup(t, &fakeAis{signedIn: true})

	times, err := client.Times(context.Background(), "2025-03-01")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []string{"07:30", "08:00"}, times.AvailableTimes)
	require.Equal(t, []string{"07:30"}, times.BusinessTimes)
}

func TestNewClientRequiresIds(t *testing.T) {
	_, err := NewClient(ClientOptions{ScheduleId: "123"})
	require.Error(t, err)
}
