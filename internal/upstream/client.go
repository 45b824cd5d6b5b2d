package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agent-console/internal/calls"

	"golang.org/x/time/rate"
)

const maxResponseBytes = 16 << 20

// Observer receives one record per provider call. The metrics package implements it.
type Observer interface {
	ObserveUpstream(op, outcome string, d time.Duration)
}

type Options struct {
	BaseURL       string
	DefaultAPIKey string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int

	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   Observer
}

// Client talks to the voice-agent provider. It never retries: a failed call
// is reported once and the caller decides whether cached data can stand in.
type Client struct {
	baseURL    string
	defaultKey string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
	observer   Observer
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("upstream: base url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		defaultKey: opts.DefaultAPIKey,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		log:        opts.Logger.With("component", "upstream"),
		observer:   opts.Observer,
	}, nil
}

func (c *Client) ListAgents(ctx context.Context, t Tenant) ([]Agent, error) {
	const op = "list_agents"
	body, err := c.do(ctx, t, op, http.MethodGet, "/agents", nil, nil, false)
	if err != nil {
		return nil, err
	}
	out, _, err := decodeList(body, wireAgent.toAgent)
	if err != nil {
		return nil, unavailable(op, 0, fmt.Errorf("decode: %w", err))
	}
	return out, nil
}

func (c *Client) GetAgent(ctx context.Context, t Tenant, id string) (Agent, error) {
	const op = "get_agent"
	body, err := c.do(ctx, t, op, http.MethodGet, "/agents/"+url.PathEscape(id), nil, nil, true)
	if err != nil {
		return Agent{}, err
	}
	a, err := decodeOne(body, wireAgent.toAgent)
	if err != nil {
		return Agent{}, unavailable(op, 0, fmt.Errorf("decode: %w", err))
	}
	if a.ID == "" {
		a.ID = id
	}
	return a, nil
}

// UpdateAgent forwards a partial update. Only the provided keys are sent.
func (c *Client) UpdateAgent(ctx context.Context, t Tenant, id string, patch map[string]any) (Agent, error) {
	const op = "update_agent"
	payload, err := json.Marshal(patch)
	if err != nil {
		return Agent{}, fmt.Errorf("upstream: encode patch: %w", err)
	}
	body, err := c.do(ctx, t, op, http.MethodPatch, "/agents/"+url.PathEscape(id), nil, payload, true)
	if err != nil {
		return Agent{}, err
	}
	a, err := decodeOne(body, wireAgent.toAgent)
	if err != nil {
		return Agent{}, unavailable(op, 0, fmt.Errorf("decode: %w", err))
	}
	if a.ID == "" {
		a.ID = id
	}
	return a, nil
}

func (c *Client) ListCalls(ctx context.Context, t Tenant, limit, page int) (CallPage, error) {
	const op = "list_calls"
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	q.Set("use_cursor", "false")

	body, err := c.do(ctx, t, op, http.MethodGet, "/calls", q, nil, false)
	if err != nil {
		return CallPage{}, err
	}
	list, env, err := decodeList(body, wireCall.toCall)
	if err != nil {
		return CallPage{}, unavailable(op, 0, fmt.Errorf("decode: %w", err))
	}
	out := CallPage{Calls: list, Page: page, TotalPages: 1}
	if env.TotalPages.ok && env.TotalPages.v >= 1 {
		out.TotalPages = int(env.TotalPages.v)
	}
	return out, nil
}

func (c *Client) GetCall(ctx context.Context, t Tenant, id string) (calls.Call, error) {
	const op = "get_call"
	body, err := c.do(ctx, t, op, http.MethodGet, "/calls/"+url.PathEscape(id), nil, nil, true)
	if err != nil {
		return calls.Call{}, err
	}
	call, err := decodeOne(body, wireCall.toCall)
	if err != nil {
		return calls.Call{}, unavailable(op, 0, fmt.Errorf("decode: %w", err))
	}
	if call.ID == "" {
		call.ID = id
	}
	return call, nil
}

func (c *Client) ListPhoneNumbers(ctx context.Context, t Tenant) ([]PhoneNumber, error) {
	const op = "list_phone_numbers"
	q := url.Values{}
	q.Set("limit", "200")
	body, err := c.do(ctx, t, op, http.MethodGet, "/phone-numbers", q, nil, false)
	if err != nil {
		return nil, err
	}
	out, _, err := decodeList(body, wirePhoneNumber.toPhoneNumber)
	if err != nil {
		return nil, unavailable(op, 0, fmt.Errorf("decode: %w", err))
	}
	return out, nil
}

func (c *Client) ListKnowledgeBases(ctx context.Context, t Tenant) ([]KnowledgeBase, error) {
	const op = "list_knowledge_bases"
	body, err := c.do(ctx, t, op, http.MethodGet, "/knowledge-bases", nil, nil, false)
	if err != nil {
		return nil, err
	}
	out, _, err := decodeList(body, wireKnowledgeBase.toKnowledgeBase)
	if err != nil {
		return nil, unavailable(op, 0, fmt.Errorf("decode: %w", err))
	}
	return out, nil
}

// do performs one bounded request and classifies the outcome.
func (c *Client) do(ctx context.Context, t Tenant, op, method, path string, q url.Values, payload []byte, single bool) (body []byte, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrNotFound):
			outcome = "not_found"
		case errors.Is(err, ErrRejected):
			outcome = "rejected"
		case errors.Is(err, ErrUnavailable):
			outcome = "unavailable"
		case err != nil:
			outcome = "error"
		}
		if c.observer != nil {
			c.observer.ObserveUpstream(op, outcome, time.Since(start))
		}
		if err != nil && outcome != "not_found" {
			c.log.Warn("upstream call failed", "op", op, "tenant_id", t.ID.String(), "outcome", outcome, "err", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, unavailable(op, 0, fmt.Errorf("rate limiter: %w", err))
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	key := t.APIKey
	if key == "" {
		key = c.defaultKey
	}
	req.Header.Set("X-Api-Key", key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(op, 0, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, unavailable(op, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout:
		return nil, unavailable(op, resp.StatusCode, nil)
	case resp.StatusCode == http.StatusNotFound && single:
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Kind: ErrNotFound}
	case resp.StatusCode >= 400:
		return nil, rejected(op, resp.StatusCode, errors.New(snippet(body)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, unavailable(op, resp.StatusCode, nil)
	}
	return body, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
