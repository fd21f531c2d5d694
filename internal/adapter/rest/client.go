package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("feed-sync/rest")

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20

	HeaderRequestID = "X-Request-ID"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	// Timeout bounds a whole HTTP exchange. Feed requests usually carry
	// their own, shorter, context deadline.
	Timeout time.Duration
	// RateLimit is requests per second shared by every source of the
	// client; zero disables limiting.
	RateLimit  float64
	Burst      int
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client talks to the marketplace REST backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	session *Session
	limiter *rate.Limiter
	logger  *logger.Logger
	maxBody int64
}

// ErrBodyTooLarge is wrapped in a *feed.NetworkError when a response exceeds
// the body limit, so the feed shows a retryable error instead of ending.
var ErrBodyTooLarge = errors.New("response body too large")

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("rest: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: invalid base url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("rest: unsupported scheme %q", base.Scheme)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		session: NewSession(opts.Token),
		limiter: limiter,
		logger:  log.Named("rest"),
		maxBody: maxBodyBytes,
	}, nil
}

// Session exposes the bearer session so callers can rotate the token.
func (c *Client) Session() *Session { return c.session }

// get performs one GET of path with query values and returns status and body.
// Transport failures come back as *feed.NetworkError; an expired session as
// a 401 *feed.ServerError without touching the network.
func (c *Client) get(ctx context.Context, path string, values url.Values) (int, []byte, error) {
	if err := c.session.Check(); err != nil {
		return 0, nil, &feed.ServerError{Status: http.StatusUnauthorized, Message: err.Error()}
	}

	op := "GET " + path
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, &feed.NetworkError{Op: op, Err: err}
		}
	}

	ctx, span := tracer.Start(ctx, "REST "+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	u := *c.baseURL
	u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		span.RecordError(err)
		return 0, nil, &feed.NetworkError{Op: op, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	c.session.Apply(req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	span.SetAttributes(
		attribute.String("http.url", u.String()),
		attribute.String("request.id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		c.logger.Warn("Request failed", zap.String("op", op), zap.String("request_id", requestID), zap.Error(err))
		return 0, nil, &feed.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, nil, &feed.NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		err := fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, c.maxBody)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("Response body over limit",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Int64("limit", c.maxBody),
		)
		return resp.StatusCode, nil, &feed.NetworkError{Op: op, Err: err}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		c.logger.Warn("Request returned error status",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
		)
	}
	return resp.StatusCode, body, nil
}
