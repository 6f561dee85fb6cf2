package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/offline-shell/internal/exchange"
	"github.com/any-hub/offline-shell/internal/logging"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	return New(logging.Discard())
}

func mustRequest(t *testing.T, method, path string) *exchange.Request {
	t.Helper()
	req, err := exchange.NewRequest(method, "https://app.example.com"+path, nil, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestDispatchNoMatchIsNotAnError(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Get("/form", func(c fiber.Ctx, _ *State) error {
		return c.SendString("form")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, matched, err := r.Dispatch(context.Background(), mustRequest(t, http.MethodGet, "/missing"))
	if err != nil {
		t.Fatalf("dispatch error: %v", err)
	}
	if matched || resp != nil {
		t.Fatalf("expected no match, got matched=%v resp=%v", matched, resp)
	}
}

func TestDispatchMethodMustMatch(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Get("/form", func(c fiber.Ctx, _ *State) error {
		return c.SendString("form")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, matched, err := r.Dispatch(context.Background(), mustRequest(t, http.MethodDelete, "/form"))
	if err != nil {
		t.Fatalf("dispatch error: %v", err)
	}
	if matched {
		t.Fatalf("DELETE must not match a GET route")
	}
}

func TestDispatchUnknownMethodFallsThrough(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Get("/form", func(c fiber.Ctx, _ *State) error {
		return c.SendString("form")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, method := range []string{"PROPFIND", "PURGE"} {
		for _, path := range []string{"/form", "/other"} {
			resp, matched, err := r.Dispatch(context.Background(), mustRequest(t, method, path))
			if err != nil {
				t.Fatalf("%s %s: dispatch error: %v", method, path, err)
			}
			if matched || resp != nil {
				t.Fatalf("%s %s: expected no match, got matched=%v resp=%v", method, path, matched, resp)
			}
		}
	}
}

func TestDispatchTrailingSlashIsDistinct(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Get("/form", func(c fiber.Ctx, _ *State) error {
		return c.SendString("form")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, matched, err := r.Dispatch(context.Background(), mustRequest(t, http.MethodGet, "/form/"))
	if err != nil {
		t.Fatalf("dispatch error: %v", err)
	}
	if matched {
		t.Fatalf("/form/ must not match the /form route")
	}
	if _, matched, _ := r.Dispatch(context.Background(), mustRequest(t, http.MethodGet, "/form")); !matched {
		t.Fatalf("/form must still match")
	}
}

func TestDispatchHandlerNotFoundIsMatched(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Get("/gone", func(c fiber.Ctx, _ *State) error {
		return c.Status(fiber.StatusNotFound).SendString("handler says no")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, matched, err := r.Dispatch(context.Background(), mustRequest(t, http.MethodGet, "/gone"))
	if err != nil {
		t.Fatalf("dispatch error: %v", err)
	}
	if !matched {
		t.Fatalf("handler-produced 404 must count as matched")
	}
	if resp.Status != http.StatusNotFound || string(resp.Body) != "handler says no" {
		t.Fatalf("unexpected response: %d %q", resp.Status, resp.Body)
	}
}

func TestDispatchFirstRegisteredWins(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Post("/{name}/clicked", func(c fiber.Ctx, _ *State) error {
		return c.SendString("param:" + c.Params("name"))
	}); err != nil {
		t.Fatalf("register param: %v", err)
	}
	if err := r.Post("/hello/clicked", func(c fiber.Ctx, _ *State) error {
		return c.SendString("static")
	}); err != nil {
		t.Fatalf("register static: %v", err)
	}

	resp, matched, err := r.Dispatch(context.Background(), mustRequest(t, http.MethodPost, "/hello/clicked"))
	if err != nil || !matched {
		t.Fatalf("dispatch: matched=%v err=%v", matched, err)
	}
	if string(resp.Body) != "param:hello" {
		t.Fatalf("expected earlier registration to win, got %q", resp.Body)
	}
}

func TestDispatchPassesQueryAndForm(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Post("/echo", func(c fiber.Ctx, _ *State) error {
		return c.SendString(c.FormValue("email") + "|" + c.Query("q"))
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	body := url.Values{"email": {"a@example.com"}}.Encode()
	req, err := exchange.NewRequest(http.MethodPost, "https://app.example.com/echo?q=1", header, []byte(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	resp, matched, err := r.Dispatch(context.Background(), req)
	if err != nil || !matched {
		t.Fatalf("dispatch: matched=%v err=%v", matched, err)
	}
	if string(resp.Body) != "a@example.com|1" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestDispatchResponseHeaders(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Get("/page", func(c fiber.Ctx, _ *State) error {
		c.Set("X-Custom", "yes")
		c.Type("html")
		return c.SendString("<p>hi</p>")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, _, err := r.Dispatch(context.Background(), mustRequest(t, http.MethodGet, "/page"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.Header.Get("X-Custom") != "yes" {
		t.Fatalf("missing custom header: %v", resp.Header)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
}

func TestDispatchPanicBecomesFault(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Post("/boom", func(c fiber.Ctx, state *State) error {
		_, err := state.Update(func(current int64) (int64, error) {
			panic("mid-update")
		})
		return err
	}); err != nil {
		t.Fatalf("register boom: %v", err)
	}
	if err := r.Post("/panic", func(c fiber.Ctx, _ *State) error {
		panic("handler exploded")
	}); err != nil {
		t.Fatalf("register panic: %v", err)
	}
	if err := r.Post("/{name}/clicked", func(c fiber.Ctx, state *State) error {
		n, err := state.Increment()
		if err != nil {
			return err
		}
		return c.SendString(fmt.Sprint(n))
	}); err != nil {
		t.Fatalf("register clicked: %v", err)
	}

	ctx := context.Background()
	for _, path := range []string{"/boom", "/panic"} {
		resp, matched, err := r.Dispatch(ctx, mustRequest(t, http.MethodPost, path))
		if !errors.Is(err, ErrHandlerFault) {
			t.Fatalf("%s: expected ErrHandlerFault, got %v", path, err)
		}
		if !matched || resp != nil {
			t.Fatalf("%s: fault must be matched without response", path)
		}
	}
	if r.State().Value() != 0 {
		t.Fatalf("state must remain unchanged after fault, got %d", r.State().Value())
	}

	resp, _, err := r.Dispatch(ctx, mustRequest(t, http.MethodPost, "/x/clicked"))
	if err != nil {
		t.Fatalf("router must keep serving after fault: %v", err)
	}
	if string(resp.Body) != "1" {
		t.Fatalf("expected counter 1, got %q", resp.Body)
	}
}

func TestConcurrentClicksAreNotLost(t *testing.T) {
	r := newTestRouter(t)
	if err := r.Post("/{name}/clicked", func(c fiber.Ctx, state *State) error {
		n, err := state.Increment()
		if err != nil {
			return err
		}
		return c.SendString(fmt.Sprint(n))
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	const workers = 64
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := exchange.NewRequest(http.MethodPost, fmt.Sprintf("https://app.example.com/n%d/clicked", i), nil, nil)
			if err != nil {
				errs <- err
				return
			}
			if _, _, err := r.Dispatch(context.Background(), req); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("dispatch error: %v", err)
	}
	if got := r.State().Value(); got != workers {
		t.Fatalf("expected %d, got %d", workers, got)
	}
}

func TestHandleAfterDispatchIsSealed(t *testing.T) {
	r := newTestRouter(t)
	if _, _, err := r.Dispatch(context.Background(), mustRequest(t, http.MethodGet, "/")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	err := r.Get("/late", func(c fiber.Ctx, _ *State) error { return nil })
	if !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
	if len(r.Routes()) != 0 {
		t.Fatalf("sealed router must not record late routes")
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	r := newTestRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.Dispatch(ctx, mustRequest(t, http.MethodGet, "/")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStateUpdateErrorDoesNotCommit(t *testing.T) {
	var s State
	if _, err := s.Increment(); err != nil {
		t.Fatalf("increment: %v", err)
	}
	sentinel := errors.New("rejected")
	got, err := s.Update(func(current int64) (int64, error) {
		return current + 10, sentinel
	})
	if !errors.Is(err, sentinel) || got != 1 || s.Value() != 1 {
		t.Fatalf("update error must not commit: got=%d err=%v value=%d", got, err, s.Value())
	}
	if _, err := s.Update(func(int64) (int64, error) { return -1, nil }); !errors.Is(err, ErrHandlerFault) {
		t.Fatalf("negative counter must be rejected, got %v", err)
	}
}

func TestFiberPattern(t *testing.T) {
	cases := map[string]string{
		"/":               "/",
		"/form":           "/form",
		"/{name}/clicked": "/:name/clicked",
		"/:id":            "/:id",
	}
	for in, want := range cases {
		got, err := fiberPattern(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
	for _, bad := range []string{"form", "/{name", "/{a}/{a}", "/{}", "/files/*"} {
		if _, err := fiberPattern(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
