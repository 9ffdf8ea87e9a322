package cineplex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slotwatch/lib/restyutil"
	"slotwatch/lib/session"
	"slotwatch/lib/textutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("slotwatch/lib/scrapers/cineplex")

const DefaultBaseUrl = "https://apis.cineplex.com/prod/cpx/theatrical/api/v1"

// titles at or above this Jaro-Winkler similarity count as the same film
const titleThreshold = 0.85

type ClientOptions struct {
	BaseUrl         string
	SubscriptionKey string
	LocationId      string
	FilmId          string
	// when set, only movies whose name resembles this title are kept
	FilmTitle string
	// the api expects M/D/YYYY
	ShowDate    string
	Experiences string
	Language    string
	Timeout     time.Duration
	Dump        restyutil.InstrumentOutput
}

type Showtime struct {
	Theatre    string
	Film       string
	Experience string
	// local time as given by the api, ex. 2024-03-09T19:00:00
	StartsAt string
}

type sessionJson struct {
	ShowStartDateTime string `json:"showStartDateTime"`
	IsSoldOut         bool   `json:"isSoldOut"`
}

type experienceJson struct {
	ExperienceTypes []string      `json:"experienceTypes"`
	Sessions        []sessionJson `json:"sessions"`
}

type movieJson struct {
	Name        string           `json:"name"`
	Experiences []experienceJson `json:"experiences"`
}

type dateJson struct {
	StartDate string      `json:"startDate"`
	Movies    []movieJson `json:"movies"`
}

type theatreJson struct {
	Theatre string     `json:"theatre"`
	Dates   []dateJson `json:"dates"`
}

type Client struct {
	session *session.Manager
	opts    ClientOptions
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.LocationId == "" || opts.ShowDate == "" {
		return nil, fmt.Errorf("location id and show date are required")
	}

	headers := map[string]string{
		"Accept": "application/json",
	}
	if opts.SubscriptionKey != "" {
		headers["Ocp-Apim-Subscription-Key"] = opts.SubscriptionKey
	}
	manager, err := session.NewManager(session.Options{
		BaseUrl:    opts.BaseUrl,
		Headers:    headers,
		Timeout:    opts.Timeout,
		Dump:       opts.Dump,
		DumpPrefix: "cineplex",
	})
	if err != nil {
		return nil, err
	}
	return &Client{session: manager, opts: opts}, nil
}

func (c *Client) titleMatches(name string) bool {
	if c.opts.FilmTitle == "" {
		return true
	}
	return textutil.Similar(name, c.opts.FilmTitle, titleThreshold)
}

// Showtimes lists the sessions that are not sold out on the configured
// date.
func (c *Client) Showtimes(ctx context.Context) ([]Showtime, error) {
	ctx, span := tracer.Start(ctx, "client:Showtimes")
	defer span.End()

	query := url.Values{}
	query.Set("language", c.opts.Language)
	query.Set("locationId", c.opts.LocationId)
	query.Set("date", c.opts.ShowDate)
	if c.opts.FilmId != "" {
		query.Set("filmId", c.opts.FilmId)
	}
	if c.opts.Experiences != "" {
		query.Set("experiences", c.opts.Experiences)
	}

	res, err := c.session.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   "/showtimes",
		Query:  query,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch showtimes")
		return nil, err
	}

	// an empty body means nothing is scheduled for that date
	if len(strings.TrimSpace(string(res.Body))) == 0 {
		return nil, nil
	}
	var theatres []theatreJson
	err = json.Unmarshal(res.Body, &theatres)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode showtimes")
		return nil, &session.MalformedError{What: "showtimes", Err: err}
	}

	var out []Showtime
	for _, theatre := range theatres {
		for _, date := range theatre.Dates {
			for _, movie := range date.Movies {
				if !c.titleMatches(movie.Name) {
					continue
				}
				for _, experience := range movie.Experiences {
					for _, s := range experience.Sessions {
						if s.IsSoldOut {
							continue
						}
						out = append(out, Showtime{
							Theatre:    theatre.Theatre,
							Film:       movie.Name,
							Experience: strings.Join(experience.ExperienceTypes, ", "),
							StartsAt:   s.ShowStartDateTime,
						})
					}
				}
			}
		}
	}
	span.SetAttributes(attribute.Int("showtimes", len(out)))
	return out, nil
}
