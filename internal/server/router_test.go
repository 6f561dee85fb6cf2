package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/offline-shell/internal/exchange"
	"github.com/any-hub/offline-shell/internal/intercept"
	"github.com/any-hub/offline-shell/internal/lifecycle"
	"github.com/any-hub/offline-shell/internal/network"
	"github.com/any-hub/offline-shell/internal/router"
)

func TestAppForwardsRequestToWorker(t *testing.T) {
	worker := &workerRecorder{
		resp: exchange.NewResponse(http.StatusCreated, http.Header{
			"Content-Type": {"text/html"},
			"Connection":   {"close"},
			"X-Upstream":   {"a", "b"},
		}, []byte("<p>ok</p>")),
		outcome: intercept.OutcomeNetwork,
	}
	app := newTestApp(t, worker)

	req := httptest.NewRequest(http.MethodPost, "http://localhost:5000/hello?x=1", strings.NewReader("name=Ada"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Keep-Alive", "timeout=5")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<p>ok</p>" {
		t.Fatalf("unexpected body %q", body)
	}
	if resp.Header.Get(HeaderSource) != "network" {
		t.Fatalf("expected source header, got %q", resp.Header.Get(HeaderSource))
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if got := resp.Header.Values("X-Upstream"); len(got) != 2 {
		t.Fatalf("expected duplicate headers preserved, got %v", got)
	}

	got := worker.last
	if got == nil {
		t.Fatalf("worker was not called")
	}
	if got.Identity() != "POST https://app.example.com/hello?x=1" {
		t.Fatalf("unexpected identity %q", got.Identity())
	}
	if string(got.Body()) != "name=Ada" {
		t.Fatalf("unexpected forwarded body %q", got.Body())
	}
	if got.HeaderValue("Keep-Alive") != "" || got.HeaderValue("Host") != "" {
		t.Fatalf("hop-by-hop and host headers must not be forwarded: %v", got.Header())
	}
	if worker.requestID == "" || worker.requestID != resp.Header.Get("X-Request-ID") {
		t.Fatalf("request id must reach the worker context: %q", worker.requestID)
	}
}

func TestAppForwardsEncodedBodyUnchanged(t *testing.T) {
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write([]byte("payload")); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	worker := &workerRecorder{}
	app := newTestApp(t, worker)

	req := httptest.NewRequest(http.MethodPost, "http://localhost:5000/upload", bytes.NewReader(compressed.Bytes()))
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "text/plain")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	got := worker.last
	if got == nil {
		t.Fatalf("worker was not called")
	}
	if got.HeaderValue("Content-Encoding") != "gzip" {
		t.Fatalf("expected Content-Encoding to be forwarded, got %q", got.HeaderValue("Content-Encoding"))
	}
	if !bytes.Equal(got.Body(), compressed.Bytes()) {
		t.Fatalf("body must match its Content-Encoding, got %q", got.Body())
	}
}

func TestAppRendersOfflineFailure(t *testing.T) {
	netErr := &network.Error{Method: "GET", URL: "https://app.example.com/", Err: errors.New("refused")}
	worker := &workerRecorder{err: errors.Join(intercept.ErrOffline, netErr)}
	app := newTestApp(t, worker)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "http://localhost:5000/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"offline_unavailable"`)) {
		t.Fatalf("expected offline_unavailable error, got %s", body)
	}
}

func TestAppRendersHandlerFault(t *testing.T) {
	worker := &workerRecorder{err: router.ErrHandlerFault}
	app := newTestApp(t, worker)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "http://localhost:5000/a/clicked", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestDiagnosticsPathBypassesWorker(t *testing.T) {
	worker := &workerRecorder{}
	app := newTestApp(t, worker)
	app.Get("/-/ping", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "http://localhost:5000/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Fatalf("expected diagnostics route, got %d %q", resp.StatusCode, body)
	}
	if worker.last != nil {
		t.Fatalf("diagnostics requests must not reach the worker")
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	origin := &url.URL{Scheme: "https", Host: "app.example.com"}

	cases := []AppOptions{
		{Worker: &workerRecorder{}, Origin: origin, ListenPort: 5000},
		{Logger: logger, Origin: origin, ListenPort: 5000},
		{Logger: logger, Worker: &workerRecorder{}, ListenPort: 5000},
		{Logger: logger, Worker: &workerRecorder{}, Origin: origin},
	}
	for i, opts := range cases {
		if _, err := NewApp(opts); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func newTestApp(t *testing.T, worker Worker) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{
		Logger:     logger,
		Worker:     worker,
		Origin:     &url.URL{Scheme: "https", Host: "app.example.com"},
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}

type workerRecorder struct {
	last      *exchange.Request
	requestID string
	resp      *exchange.Response
	outcome   intercept.Outcome
	err       error
}

func (w *workerRecorder) Install(ctx context.Context) (lifecycle.InstallReport, error) {
	return lifecycle.InstallReport{}, nil
}

func (w *workerRecorder) Activate(ctx context.Context) (lifecycle.ActivateReport, error) {
	return lifecycle.ActivateReport{}, nil
}

func (w *workerRecorder) Fetch(ctx context.Context, req *exchange.Request) (*exchange.Response, intercept.Outcome, error) {
	w.last = req
	w.requestID = intercept.RequestIDFrom(ctx)
	if w.err != nil {
		return nil, intercept.OutcomeNone, w.err
	}
	if w.resp == nil {
		return exchange.NewResponse(http.StatusOK, nil, nil), intercept.OutcomeLocal, nil
	}
	return w.resp, w.outcome, nil
}

func (w *workerRecorder) Message(ctx context.Context, payload []byte) {}
