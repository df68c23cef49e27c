// Package apiclient talks to the hospital REST API. It owns the bearer token,
// mirrors it into durable session storage, and turns every failed call into
// an *Error with a Kind.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/platform/session"
)

// Request is one API call. Endpoint is relative to the base URL.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     any
	// Header entries replace the defaults of the same name.
	Header http.Header
}

// Options configures the transport.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string        `json:"token"`
	User  identity.User `json:"user"`
}

type Client struct {
	http   *resty.Client
	kv     session.KV
	logger zerolog.Logger

	mu    sync.RWMutex
	token string
}

func New(opts Options, kv session.KV, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	logger = logger.With().Str("component", "apiclient").Logger()
	hc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetLogger(restyLogger{logger}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.RetryCount > 0 {
		hc.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second)
	}
	if kv == nil {
		kv = session.NewMemory()
	}
	return &Client{http: hc, kv: kv, logger: logger}
}

// Token returns the held bearer token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

// Do performs req and decodes a successful JSON body into out. out may be
// nil. DELETE requests and 204 responses leave out untouched.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	requestID := uuid.NewString()

	r := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID)
	if tok := c.Token(); tok != "" {
		r.SetHeader("Authorization", "Token "+tok)
	}
	for k, vs := range req.Header {
		r.Header.Del(k)
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(method, req.Endpoint)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("method", method).
			Str("endpoint", req.Endpoint).
			Str("request_id", requestID).
			Msg("request failed")
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}

	status := resp.StatusCode()
	event := c.logger.Debug()
	if status >= 400 {
		event = c.logger.Warn()
	}
	event.Str("method", method).
		Str("endpoint", req.Endpoint).
		Int("status", status).
		Dur("latency", resp.Time()).
		Str("request_id", requestID).
		Msg("request")

	if status == http.StatusUnauthorized {
		c.clear(ctx)
		return &Error{Kind: KindSessionExpired, Status: status, Message: sessionExpiredMessage}
	}
	if status < 200 || status >= 300 {
		return errorFromResponse(status, resp.Body())
	}
	if method == http.MethodDelete || status == http.StatusNoContent {
		return nil
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &Error{
			Kind:    KindServer,
			Status:  status,
			Message: fmt.Sprintf("decode %s response: %v", req.Endpoint, err),
			Err:     err,
		}
	}
	return nil
}

// Login exchanges credentials for a token and persists the session.
// Rejected credentials are reported as "Invalid username or password";
// transport and server failures keep their own message.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var res LoginResult
	if err := c.Do(ctx, Request{Method: http.MethodPost, Endpoint: EndpointLogin, Body: body}, &res); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && (apiErr.Kind == KindValidation || apiErr.Kind == KindSessionExpired) {
			return nil, &Error{
				Kind:    KindValidation,
				Status:  apiErr.Status,
				Message: "Invalid username or password",
				Fields:  apiErr.Fields,
			}
		}
		return nil, err
	}
	if res.Token == "" {
		return nil, &Error{Kind: KindServer, Status: http.StatusOK, Message: "login response did not include a token"}
	}

	c.setToken(res.Token)
	if err := session.Save(ctx, c.kv, res.Token, res.User); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist session")
	}
	return &res, nil
}

// Logout notifies the server when a token is held, then clears the token
// and persisted session whatever the outcome. The returned error is only
// informational.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if c.Token() != "" {
		err = c.Do(ctx, Request{Method: http.MethodPost, Endpoint: EndpointLogout}, nil)
	}
	c.clear(ctx)
	return err
}

// Resume loads a persisted session and adopts its token without contacting
// the server. A corrupt session is wiped and reported as absent.
func (c *Client) Resume(ctx context.Context) (session.Saved, bool) {
	saved, ok, err := session.Load(ctx, c.kv)
	if err != nil {
		c.logger.Warn().Err(err).Msg("discarding stored session")
		if errors.Is(err, session.ErrCorrupt) {
			c.clear(ctx)
		}
		return session.Saved{}, false
	}
	if !ok {
		return session.Saved{}, false
	}
	c.setToken(saved.Token)
	return saved, true
}

func (c *Client) clear(ctx context.Context) {
	c.setToken("")
	if err := session.Clear(context.WithoutCancel(ctx), c.kv); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear stored session")
	}
}

type restyLogger struct {
	l zerolog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error().Msgf(format, v...) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warn().Msgf(format, v...) }
func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug().Msgf(format, v...) }
