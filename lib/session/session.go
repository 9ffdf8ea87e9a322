package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slotwatch/lib/htmlutil"
	"slotwatch/lib/restyutil"
	"slotwatch/lib/telemetry"
	"slotwatch/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("slotwatch/lib/session")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

const DefaultTimeout = time.Second * 30

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Options struct {
	BaseUrl string
	// SignInPath is left empty for endpoints that need no credentials,
	// Authenticate is then a no-op.
	SignInPath  string
	SignOutPath string
	Credentials Credentials
	// every header listed here must be present on the sign-in response
	// for the sign-in to count as accepted
	SessionHeaders []string
	// sent with every request
	Headers map[string]string
	// per request deadline, defaults to DefaultTimeout
	Timeout          time.Duration
	BypassCloudflare bool
	Dump             restyutil.InstrumentOutput
	DumpPrefix       string
}

type Session struct {
	Cookie          string
	CsrfToken       string
	AuthenticatedAt time.Time
}

// Manager owns the session of a single target site. it is not safe for
// concurrent use, each target is driven by exactly one poll loop.
type Manager struct {
	http    *resty.Client
	opts    Options
	session Session
}

func NewManager(opts Options) (*Manager, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseUrl, "/"))
	// the session cookie is replaced wholesale on every response, a jar
	// would merge it with stale values instead
	client.SetCookieJar(nil)
	if opts.BypassCloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("user-agent", userAgent)
	client.SetHeaders(opts.Headers)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "slotwatch/lib/session/http")
	restyutil.DumpExchanges(client, opts.DumpPrefix, opts.Dump)

	return &Manager{
		http: client,
		opts: opts,
	}, nil
}

func (m *Manager) Session() Session {
	return m.session
}

func (m *Manager) Authenticated() bool {
	return !m.session.AuthenticatedAt.IsZero()
}

func (m *Manager) Invalidate() {
	m.session = Session{}
}

type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Form    url.Values
	Headers map[string]string
	// sends x-requested-with: XMLHttpRequest
	XHR bool
	// a 401 yields ErrAuthRequired instead of an *HTTPError
	AuthSignal bool
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends req with the current session cookie attached and captures
// any cookie the response sets. a 401 always clears the session.
func (m *Manager) Do(ctx context.Context, req Request) (Response, error) {
	r := m.http.R().SetContext(ctx)
	if m.session.Cookie != "" {
		r.SetHeader("Cookie", m.session.Cookie)
	}
	if req.XHR {
		r.SetHeader("X-Requested-With", "XMLHttpRequest")
	}
	if req.Query != nil {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Form != nil {
		r.SetFormDataFromValues(req.Form)
	}
	r.SetHeaders(req.Headers)

	res, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return Response{}, &NetworkError{
			Op:  fmt.Sprintf("%s %s", req.Method, req.Path),
			Err: err,
		}
	}
	m.captureCookie(res)

	out := Response{
		Status: res.StatusCode(),
		Header: res.Header(),
		Body:   res.Body(),
	}

	if out.Status == http.StatusUnauthorized {
		m.Invalidate()
		if req.AuthSignal {
			return out, ErrAuthRequired
		}
	}
	if out.Status < 200 || out.Status > 299 {
		return out, &HTTPError{
			Method: req.Method,
			Path:   req.Path,
			Status: out.Status,
		}
	}
	return out, nil
}

func (m *Manager) captureCookie(res *resty.Response) {
	cookies := res.Cookies()
	if len(cookies) == 0 {
		return
	}
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	m.session.Cookie = strings.Join(pairs, "; ")
}

// Authenticate runs the sign-in handshake: it fetches the sign-in page
// for its csrf token and then submits the credentials form.
func (m *Manager) Authenticate(ctx context.Context) error {
	if m.opts.SignInPath == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "session:Authenticate")
	defer span.End()

	m.Invalidate()

	page, err := m.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   m.opts.SignInPath,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch sign-in page")
		return err
	}
	doc, err := htmlutil.ParseDocument(page.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse sign-in page")
		return &MalformedError{What: "sign-in page", Err: err}
	}
	token := htmlutil.MetaContent(doc, "csrf-token")
	if token == "" {
		span.SetStatus(codes.Error, ErrTokenNotFound.Error())
		// challenge and maintenance pages are recognizable by their title
		title := htmlutil.CleanText(doc.Find("title"))
		if title != "" {
			return fmt.Errorf("%w: sign-in page is %q", ErrTokenNotFound, title)
		}
		return ErrTokenNotFound
	}

	form := url.Values{}
	form.Set("utf8", "✓")
	form.Set("user[email]", m.opts.Credentials.Email)
	form.Set("user[password]", m.opts.Credentials.Password)
	form.Set("policy_confirmed", "1")
	form.Set("commit", "Sign In")

	res, err := m.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   m.opts.SignInPath,
		Form:   form,
		XHR:    true,
		Headers: map[string]string{
			"Accept":       "*/*;q=0.5, text/javascript, application/javascript, application/ecmascript, application/x-ecmascript",
			"Content-Type": "application/x-www-form-urlencoded; charset=UTF-8",
			"X-CSRF-Token": token,
		},
	})
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		span.SetStatus(codes.Error, ErrRejected.Error())
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit sign-in form")
		return err
	}

	for _, header := range m.opts.SessionHeaders {
		if res.Header.Get(header) == "" {
			span.SetStatus(codes.Error, ErrRejected.Error())
			return fmt.Errorf("%w: response has no %s header", ErrRejected, header)
		}
	}

	m.session.CsrfToken = token
	m.session.AuthenticatedAt = timezone.Now()
	span.SetAttributes(attribute.Bool("cookie_set", m.session.Cookie != ""))
	return nil
}

// SignOut ends the session on the remote side, the local session is
// cleared whether or not the request succeeds.
func (m *Manager) SignOut(ctx context.Context) error {
	defer m.Invalidate()
	if m.opts.SignOutPath == "" || m.session.Cookie == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "session:SignOut")
	defer span.End()

	_, err := m.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   m.opts.SignOutPath,
		XHR:    true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to sign out")
		return err
	}
	return nil
}
