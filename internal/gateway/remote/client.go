// Package remote implements gateway.Gateway over the REST API of another
// postadmin instance.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/postadmin/internal/gateway"
	"github.com/ButyrinIA/postadmin/internal/logger"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/querycodec"
	"github.com/cenkalti/backoff/v4"
)

// Client talks to /api/posts. List and Get are retried with exponential
// backoff on transport errors and 5xx responses; mutations are sent once.
type Client struct {
	base       *url.URL
	http       *http.Client
	maxRetries uint64
	interval   time.Duration
	log        *logger.Entry
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", baseURL)
	}

	c := &Client{
		base:       u,
		http:       &http.Client{Timeout: 5 * time.Second},
		maxRetries: 3,
		interval:   200 * time.Millisecond,
		log:        logger.Log.WithFields(logger.Fields{"component": "remote_gateway", "remote": u.Host}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote responded %d: %s", e.code, e.msg)
}

func (e *statusError) Unwrap() error {
	switch e.code {
	case http.StatusBadRequest:
		return gateway.ErrInvalidArgument
	case http.StatusNotFound:
		return gateway.ErrNotFound
	}
	return nil
}

func fail(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, gateway.ErrRequestFailed, err)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &statusError{code: resp.StatusCode, msg: payload.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// read performs an idempotent request, retrying transient failures.
// Every attempt decodes into a fresh value.
func read[T any](ctx context.Context, c *Client, target string) (*T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval

	var res *T
	attempt := 0
	operation := func() error {
		attempt++
		out := new(T)
		err := c.do(ctx, http.MethodGet, target, nil, out)
		if err == nil {
			res = out
			return nil
		}

		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.log.WithError(err).WithField("attempt", attempt).Warn("remote read failed")
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) List(ctx context.Context, query models.Query) (*models.ListResponse[models.Post], error) {
	const op = "remote.List"

	res, err := read[models.ListResponse[models.Post]](ctx, c, c.endpoint("/api/posts", querycodec.ToValues(query)))
	if err != nil {
		return nil, fail(op, err)
	}
	return res, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*models.Post, error) {
	const op = "remote.Get"

	post, err := read[models.Post](ctx, c, c.endpoint("/api/posts/"+strconv.FormatInt(id, 10), nil))
	if err != nil {
		return nil, fail(op, err)
	}
	return post, nil
}

func (c *Client) Create(ctx context.Context, dto models.CreatePostDto) (*models.CreatePostResult, error) {
	const op = "remote.Create"

	var res models.CreatePostResult
	if err := c.do(ctx, http.MethodPost, c.endpoint("/api/posts", nil), dto, &res); err != nil {
		return nil, fail(op, err)
	}
	return &res, nil
}

func (c *Client) Update(ctx context.Context, dto models.UpdatePostDto) error {
	const op = "remote.Update"

	target := c.endpoint("/api/posts/"+strconv.FormatInt(dto.ID, 10), nil)
	if err := c.do(ctx, http.MethodPut, target, dto, nil); err != nil {
		return fail(op, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	const op = "remote.Delete"

	if err := c.do(ctx, http.MethodDelete, c.endpoint("/api/posts/"+strconv.FormatInt(id, 10), nil), nil, nil); err != nil {
		return fail(op, err)
	}
	return nil
}

func (c *Client) BatchUpdateStatus(ctx context.Context, dto models.BatchUpdatePostsStatusDto) error {
	const op = "remote.BatchUpdateStatus"

	if err := c.do(ctx, http.MethodPost, c.endpoint("/api/posts/batch-status", nil), dto, nil); err != nil {
		return fail(op, err)
	}
	return nil
}

var _ gateway.Gateway = (*Client)(nil)
