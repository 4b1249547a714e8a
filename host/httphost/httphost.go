// Package httphost implements a Task host that treats a Task state's
// Resource field as an "http(s)://..." URI and performs the request with
// resty, the HTTP client the rest of this dependency tree already pulls
// in for the same job. It is reference infrastructure: the core
// interpreter package never dials a network on its own, by design, and a
// real embedder wires whatever TaskExecutor fits its resources.
package httphost

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"asl/interpreter"
)

// Config configures Host's resty client.
type Config struct {
	Timeout     time.Duration
	MaxRetries  int
	RetryWaitMS int
	Debug       bool
}

// DefaultConfig matches the conservative client settings a Task host
// should start from: bounded timeout, a small retry budget, no debug
// logging.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		RetryWaitMS: 100,
	}
}

// Host is an interpreter.TaskExecutor that dispatches every Task state
// whose Resource begins with "http://" or "https://" as an HTTP request,
// using the resolved input value as the JSON request body.
type Host struct {
	client  *resty.Client
	sleeper interpreter.Sleeper
	log     *slog.Logger
}

// New builds a Host from cfg.
func New(cfg Config) *Host {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Duration(cfg.RetryWaitMS) * time.Millisecond).
		SetDebug(cfg.Debug)
	return &Host{client: client, sleeper: interpreter.RealSleeper{}, log: slog.Default()}
}

// Execute implements interpreter.TaskExecutor. The Resource URI's method
// defaults to POST; a "GET " prefix before the URL (e.g.
// "GET https://api.example.com/users") selects GET with no body.
func (h *Host) Execute(ctx context.Context, resource string, input interpreter.Value) (interpreter.Value, error) {
	method, url := "POST", resource
	if rest, ok := strings.CutPrefix(resource, "GET "); ok {
		method, url = "GET", rest
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("httphost: resource %q is not an http(s) URI", resource)
	}

	h.log.InfoContext(ctx, "dispatching task", "method", method, "url", url)

	result := map[string]any{}
	req := h.client.R().SetContext(ctx).SetResult(&result)
	if method != "GET" {
		req = req.SetBody(input)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		h.log.ErrorContext(ctx, "task request failed", "method", method, "url", url, "error", err)
		return nil, fmt.Errorf("httphost: request to %q failed: %w", url, err)
	}
	if resp.IsError() {
		h.log.ErrorContext(ctx, "task returned an error status", "method", method, "url", url, "status", resp.Status())
		return nil, &interpreter.ExecutionError{
			Error: interpreter.ErrorTaskFailed,
			Cause: strPtr(fmt.Sprintf("%s returned %s", url, resp.Status())),
		}
	}
	h.log.InfoContext(ctx, "task completed", "method", method, "url", url, "status", resp.Status())
	return result, nil
}

// Sleep implements interpreter.Sleeper by delegating to a real timer, so
// Host alone satisfies interpreter.Host for callers that don't need a
// separate Wait-state stub.
func (h *Host) Sleep(ctx context.Context, d time.Duration) error {
	return h.sleeper.Sleep(ctx, d)
}

func strPtr(s string) *string { return &s }
