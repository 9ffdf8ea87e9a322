package targets

import (
	"context"
	"time"

	"slotwatch/lib/restyutil"
	"slotwatch/lib/scrapers/cineplex"
	"slotwatch/services/monitor"
	"slotwatch/services/notify"
)

type CineplexConfig struct {
	CommonConfig
	SubscriptionKey string `json:"subscription_key"`
	LocationId      string `json:"location_id"`
	FilmId          string `json:"film_id"`
	FilmTitle       string `json:"film_title"`
	ShowDate        string `json:"show_date"`
	Experiences     string `json:"experiences"`
	Language        string `json:"language"`
}

var cineplexLabels = monitor.Labels{
	Listing:  "Available showtimes",
	Earliest: "Earliest showtime",
	Empty:    "No showtimes available",
}

// Cineplex reports open showtimes as slots keyed by start time.
type Cineplex struct {
	client *cineplex.Client
}

func NewCineplex(config CineplexConfig, dump restyutil.InstrumentOutput) (*Cineplex, error) {
	client, err := cineplex.NewClient(cineplex.ClientOptions{
		BaseUrl:         config.BaseUrl,
		SubscriptionKey: config.SubscriptionKey,
		LocationId:      config.LocationId,
		FilmId:          config.FilmId,
		FilmTitle:       config.FilmTitle,
		ShowDate:        config.ShowDate,
		Experiences:     config.Experiences,
		Language:        config.Language,
		Timeout:         config.timeout(),
		Dump:            dump,
	})
	if err != nil {
		return nil, err
	}
	return &Cineplex{client: client}, nil
}

func (c *Cineplex) Name() string { return "cineplex" }

func (c *Cineplex) FetchAvailability(ctx context.Context) monitor.PollResult {
	showtimes, err := c.client.Showtimes(ctx)
	if err != nil {
		return monitor.Classify(nil, err)
	}
	slots := make([]monitor.Slot, 0, len(showtimes))
	for _, s := range showtimes {
		slots = append(slots, monitor.Slot{
			ID: s.StartsAt,
			Meta: map[string]string{
				"theatre":    s.Theatre,
				"film":       s.Film,
				"experience": s.Experience,
			},
		})
	}
	return monitor.Succeeded(slots)
}

func NewCineplexMonitor(config CineplexConfig, sink notify.Sink, dump restyutil.InstrumentOutput) (*monitor.Monitor, error) {
	endpoint, err := NewCineplex(config, dump)
	if err != nil {
		return nil, err
	}
	opts, err := config.options("cineplex", time.Hour)
	if err != nil {
		return nil, err
	}
	opts.Endpoint = endpoint
	opts.Sink = sink
	opts.Labels = cineplexLabels
	return monitor.New(opts)
}
