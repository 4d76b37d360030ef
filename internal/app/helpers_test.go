package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"linkbird/api/internal/data"
	"linkbird/api/internal/metrics"
	"linkbird/api/internal/nav"
	"linkbird/api/internal/search"
	"linkbird/api/internal/session"
	"linkbird/api/internal/store"
	"linkbird/api/internal/util"
)

type fakePinger struct {
	pingFn func(context.Context) error
}

func (f fakePinger) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type testEnv struct {
	service *Service
	server  *HTTPServer
	repo    *store.MemoryRepository
	slots   *session.SQLiteSnapshotStore
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, checks map[string]Pinger) *testEnv {
	t.Helper()
	ctx := context.Background()

	slots, err := session.NewSQLiteSnapshotStore(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	t.Cleanup(func() { _ = slots.Close() })
	return newTestEnvWithSlots(t, slots, checks)
}

func newTestEnvWithSlots(t *testing.T, slots *session.SQLiteSnapshotStore, checks map[string]Pinger) *testEnv {
	t.Helper()
	ctx := context.Background()
	m := metrics.New()

	sessions, err := session.New(ctx, slots, session.StubAuthenticator{}, session.WithRecorder(m))
	if err != nil {
		t.Fatalf("create session store: %v", err)
	}
	ids, err := util.NewIDGenerator(1)
	if err != nil {
		t.Fatalf("create id generator: %v", err)
	}
	repo := store.NewMemoryRepository(store.Latency{})
	dataStore := data.New(repo, ids, data.WithRecorder(m))
	navStore := nav.New(nil)

	svc := New(Dependencies{
		Session: sessions,
		Data:    dataStore,
		Nav:     navStore,
		Search:  search.NewService(nil, search.NewLocal(dataStore), nil),
		Metrics: m,
		Checks:  checks,
	})
	svc.Start()
	t.Cleanup(svc.Close)

	return &testEnv{
		service: svc,
		server:  NewHTTPServer(svc, "*", nil),
		repo:    repo,
		slots:   slots,
		metrics: m,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

// login signs in and waits for the initial data load to finish.
func (e *testEnv) login(t *testing.T) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/session/login", map[string]string{"email": "a@b.com", "password": "x"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	e.service.Wait()
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return out
}
