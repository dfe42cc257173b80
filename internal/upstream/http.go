package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Amund211/taskcache/internal/config"
	"github.com/Amund211/taskcache/internal/ratelimiting"
	"github.com/Amund211/taskcache/logging"
)

const userAgent = "taskcache/0.1.0 (+https://github.com/Amund211/taskcache)"

// fetchMaxOperationTime is the allowance the quota reserves for the request
// itself when checking the caller's deadline.
const fetchMaxOperationTime = time.Second

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestLimiter bounds the number of upstream requests. Limit runs operation
// once the limiter admits it and reports whether it ran.
type RequestLimiter interface {
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool
}

// unlimited admits every operation immediately.
type unlimited struct{}

func (unlimited) Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool {
	operation()
	return true
}

type mockedSource struct{}

func (s *mockedSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	return []byte(fmt.Sprintf(`{"key":%q,"payload":"mocked"}`, key)), nil
}

type httpSource struct {
	httpClient HttpClient
	baseURL    string
	limiter    *rate.Limiter
	quota      RequestLimiter

	tracer trace.Tracer
}

func (s *httpSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "HTTPSource.Fetch")
	defer span.End()

	logger := logging.FromContext(ctx)

	// Smooth our request rate towards the upstream. Waiting charges the
	// fetch's own context, so an expiring context abandons the fetch.
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRatelimited, err)
	}

	requestURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(s.baseURL, "/"), url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		logger.ErrorContext(ctx, err.Error())
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)

	start := time.Now()

	var resp *http.Response
	var data []byte
	ran := s.quota.Limit(ctx, fetchMaxOperationTime, func() {
		resp, err = s.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("failed to send request: %w", err)
			return
		}

		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response body: %w", err)
		}
	})
	if !ran {
		logger.WarnContext(ctx, "Upstream request refused by quota", "url", requestURL, "ctxError", ctx.Err())
		return nil, fmt.Errorf("%w: upstream request quota exhausted", ErrRatelimited)
	}
	if err != nil {
		logger.ErrorContext(ctx, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	logger.InfoContext(ctx, "Upstream request completed", "url", requestURL, "status", resp.StatusCode, "duration", time.Since(start).String())

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrKeyNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: upstream returned status code %d", ErrRatelimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: upstream returned status code %d", ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status code %d from upstream", resp.StatusCode)
	}
}

func NewHTTPSource(httpClient HttpClient, baseURL string, requestsPerSecond float64) Source {
	return NewHTTPSourceWithQuota(httpClient, baseURL, requestsPerSecond, unlimited{})
}

// NewHTTPSourceWithQuota is NewHTTPSource with a hard bound on the number of
// upstream requests per rolling window.
func NewHTTPSourceWithQuota(httpClient HttpClient, baseURL string, requestsPerSecond float64, quota RequestLimiter) Source {
	return &httpSource{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
		quota:      quota,

		tracer: otel.Tracer("taskcache/upstream/http"),
	}
}

func NewHTTPSourceOrMock(config config.Config, httpClient HttpClient) (Source, error) {
	if config.UpstreamURL() != "" {
		var quota RequestLimiter = unlimited{}
		if limit := config.UpstreamWindowLimit(); limit > 0 {
			quota = ratelimiting.NewWindowQuota(limit, config.UpstreamWindow(), time.Now, time.After)
		}
		return NewHTTPSourceWithQuota(httpClient, config.UpstreamURL(), config.UpstreamRPS(), quota), nil
	}
	if config.IsDevelopment() {
		return &mockedSource{}, nil
	}
	return nil, fmt.Errorf("Missing upstream URL in non-development environment")
}
