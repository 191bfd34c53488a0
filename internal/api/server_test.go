package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxzi/renewly/internal/client"
	"github.com/foxzi/renewly/internal/config"
	"github.com/foxzi/renewly/internal/eligibility"
	"github.com/foxzi/renewly/internal/intake"
	"github.com/foxzi/renewly/internal/metrics"
	"github.com/foxzi/renewly/internal/pipeline"
	"github.com/foxzi/renewly/internal/store"
	"github.com/foxzi/renewly/internal/token"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.Local)

func fixedNow() time.Time { return testNow }

// nopMailer satisfies the pipeline's mailer without sending anything
type nopMailer struct{}

func (nopMailer) SendReminder(ctx context.Context, rec *client.Record, tok string, tokenExpiry time.Time) error {
	return nil
}

// blockingMailer parks inside the first send until released, so a
// test can hold a run mid-flight.
type blockingMailer struct {
	entered chan struct{}
	release chan struct{}
}

func (m *blockingMailer) SendReminder(ctx context.Context, rec *client.Record, tok string, tokenExpiry time.Time) error {
	m.entered <- struct{}{}
	<-m.release
	return nil
}

type testServer struct {
	server *Server
	store  store.Store
	engine *token.Engine
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	return newTestServerWithMailer(t, mutate, nopMailer{})
}

func newTestServerWithMailer(t *testing.T, mutate func(*config.Config), mail pipeline.Mailer) *testServer {
	t.Helper()

	lead := 5
	cfg := &config.Config{}
	cfg.Server.Environment = "development"
	cfg.Server.BaseURL = "http://localhost:8080"
	cfg.Reminder.DaysBefore = &lead
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	if mutate != nil {
		mutate(cfg)
	}

	s, err := store.OpenBolt(filepath.Join(t.TempDir(), "clients.db"))
	if err != nil {
		t.Fatalf("OpenBolt() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	engine := token.NewEngine(token.Config{SecretKey: "test-secret", Now: fixedNow})
	eval := eligibility.New(cfg.LeadDays(), fixedNow)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	pipe := pipeline.New(s, engine, eval, mail, m, pipeline.Config{
		AllowOverlappingRuns: cfg.Schedule.AllowOverlappingRuns,
	}, logger)
	pipe.SetClock(fixedNow)

	ink := intake.New(s, engine, m, logger)
	ink.SetClock(fixedNow)

	srv := NewServer(Options{
		Config:   cfg,
		Pipeline: pipe,
		Intake:   ink,
		Store:    s,
		Metrics:  m,
		Logger:   logger,
	})

	return &testServer{server: srv, store: s, engine: engine}
}

// seedReminded adds a reminded client and returns its live token
func (ts *testServer) seedReminded(t *testing.T, id string) string {
	t.Helper()
	ctx := context.Background()

	row, err := ts.store.Append(ctx, &client.Record{
		ClientID:           id,
		Name:               "Client " + id,
		Email:              id + "@test.com",
		StartDate:          "2025-09-05",
		ExpiryDate:         "2026-09-05",
		SubscriptionStatus: client.StatusActive,
		PaymentStatus:      client.PaymentPaid,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	tok, expiry := ts.engine.Mint(id, "2026-09-05")
	if err := ts.store.WriteReminderFields(ctx, row, "2026-08-31", tok, expiry.Format(time.RFC3339)); err != nil {
		t.Fatalf("WriteReminderFields() error = %v", err)
	}
	return tok
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rr, req)
	return rr
}

func TestHandleRoot(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", rr.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedReminded(t, "CL001")

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rr.Code)
	}

	var health HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("health response is not JSON: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health status = %q, want ok", health.Status)
	}
	if health.Clients != 1 {
		t.Errorf("health clients = %d, want 1", health.Clients)
	}
}

func TestResponseForm(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.seedReminded(t, "CL001")

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/response/"+tok, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /response/{token} status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Client CL001") {
		t.Error("form page missing client name")
	}
	if !strings.Contains(body, "September 5, 2026") {
		t.Error("form page missing expiry date")
	}
}

func TestResponseFormRejectsUnknownToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/response/bogus.token", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	// The page must not reveal why the link was rejected
	if strings.Contains(rr.Body.String(), "not found") {
		t.Error("error page leaked the rejection reason")
	}
}

func TestSubmitResponseJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.seedReminded(t, "CL001")

	req := httptest.NewRequest(http.MethodPost, "/response/"+tok,
		strings.NewReader(`{"response": "Interested"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := ts.do(t, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body = %s", rr.Code, rr.Body.String())
	}

	records, _ := ts.store.FetchAll(context.Background())
	if records[0].Response != client.ResponseInterested {
		t.Errorf("stored response = %q, want Interested", records[0].Response)
	}

	// Replay fails
	req = httptest.NewRequest(http.MethodPost, "/response/"+tok,
		strings.NewReader(`{"response": "Not Interested"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = ts.do(t, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("replay status = %d, want 400", rr.Code)
	}
}

func TestSubmitResponseForm(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.seedReminded(t, "CL001")

	req := httptest.NewRequest(http.MethodPost, "/response/"+tok,
		strings.NewReader("response=Not+Interested"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := ts.do(t, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body = %s", rr.Code, rr.Body.String())
	}

	records, _ := ts.store.FetchAll(context.Background())
	if records[0].Response != client.ResponseNotInterested {
		t.Errorf("stored response = %q, want Not Interested", records[0].Response)
	}
}

func TestSubmitResponseRejectsBadValue(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.seedReminded(t, "CL001")

	req := httptest.NewRequest(http.MethodPost, "/response/"+tok,
		strings.NewReader(`{"response": "Maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := ts.do(t, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSubmitErrorDetailByEnvironment(t *testing.T) {
	t.Run("development shows the reason", func(t *testing.T) {
		ts := newTestServer(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/response/bogus.token",
			strings.NewReader(`{"response": "Interested"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := ts.do(t, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "token not found") {
			t.Errorf("development error = %s, want the specific reason", rr.Body.String())
		}
	})

	t.Run("production stays generic", func(t *testing.T) {
		ts := newTestServer(t, func(cfg *config.Config) {
			cfg.Server.Environment = "production"
		})
		req := httptest.NewRequest(http.MethodPost, "/response/bogus.token",
			strings.NewReader(`{"response": "Interested"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := ts.do(t, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
		if strings.Contains(rr.Body.String(), "not found") {
			t.Errorf("production error leaked the reason: %s", rr.Body.String())
		}
	})
}

func TestAdminAuth(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.APIKey = "admin-key"
	})

	tests := []struct {
		name   string
		header func(*http.Request)
		want   int
	}{
		{"no key", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong key", func(r *http.Request) { r.Header.Set("X-API-Key", "nope") }, http.StatusUnauthorized},
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", "admin-key") }, http.StatusAccepted},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer admin-key") }, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/run", nil)
			tt.header(req)
			if rr := ts.do(t, req); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestHandleRunOverlapPolicy(t *testing.T) {
	trigger := func(t *testing.T, allowOverlap bool, wantStatus int) {
		t.Helper()

		mail := &blockingMailer{entered: make(chan struct{}), release: make(chan struct{})}
		ts := newTestServerWithMailer(t, func(cfg *config.Config) {
			cfg.Schedule.AllowOverlappingRuns = allowOverlap
		}, mail)

		// Eligible today: expiry is exactly lead days out, no reminder yet
		if _, err := ts.store.Append(context.Background(), &client.Record{
			ClientID:           "CL001",
			Name:               "Client CL001",
			Email:              "cl001@test.com",
			StartDate:          "2025-09-05",
			ExpiryDate:         "2026-09-05",
			SubscriptionStatus: client.StatusActive,
			PaymentStatus:      client.PaymentPaid,
		}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			ts.server.pipeline.Run(context.Background())
		}()
		<-mail.entered // run is now parked inside the send

		rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/admin/run", nil))
		if rr.Code != wantStatus {
			t.Errorf("POST /admin/run while running: status = %d, want %d", rr.Code, wantStatus)
		}

		close(mail.release)
		<-done
	}

	t.Run("refused while a run is active", func(t *testing.T) {
		trigger(t, false, http.StatusConflict)
	})

	t.Run("accepted when overlapping runs are enabled", func(t *testing.T) {
		trigger(t, true, http.StatusAccepted)
	})
}

func TestAdminStats(t *testing.T) {
	ts := newTestServer(t, nil)

	// No runs yet
	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("stats before any run: status = %d, want 404", rr.Code)
	}

	if _, err := ts.server.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("stats after run: status = %d, want 200", rr.Code)
	}
	var stats pipeline.RunStats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("stats response is not JSON: %v", err)
	}
	if stats.RunID == "" {
		t.Error("stats missing run id")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "renewly_") {
		t.Error("metrics output missing renewly_ series")
	}
}
