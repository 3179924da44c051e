package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/streak/internal/auth"
	"example.com/streak/internal/domain"
	"example.com/streak/internal/persistence/memory"
)

var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, *memory.Repository, *http.ServeMux) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := memory.NewRepository()
	sessions := domain.NewSessions(repo,
		domain.WithClock(func() time.Time { return fixedNow }),
		domain.WithLogger(logger),
		domain.WithHistory(repo),
	)
	handler := NewHandler(sessions, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return handler, repo, mux
}

func withClaims(req *http.Request, subject string, scopes ...string) *http.Request {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		Subject:   subject,
		Scopes:    set,
		ExpiresAt: fixedNow.Add(time.Hour),
	}))
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) SnapshotView {
	t.Helper()
	var view SnapshotView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return view
}

func recordActivity(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/streak/activities", strings.NewReader(body))
	return serve(mux, withClaims(req, "user-1", auth.ScopeStreaksWrite))
}

func TestRecordActivityBuildsStreak(t *testing.T) {
	_, repo, mux := newTestHandler(t)

	for _, body := range []string{
		`{"kind":"task","date":"2025-03-08"}`,
		`{"kind":"workout","date":"2025-03-09"}`,
		`{"kind":"journal","description":"evening notes"}`,
	} {
		rr := recordActivity(t, mux, body)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
		}
	}

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak", nil), "user-1", auth.ScopeStreaksRead)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	view := decodeSnapshot(t, rr)
	if view.CurrentStreak != 3 || view.LongestStreak != 3 || view.TotalActiveDays != 3 {
		t.Fatalf("unexpected snapshot %+v", view)
	}

	if _, ok := repo.Raw("user-1"); !ok {
		t.Fatalf("expected log to be persisted")
	}
}

func TestRecordActivitySameDayIsIdempotent(t *testing.T) {
	_, _, mux := newTestHandler(t)

	recordActivity(t, mux, `{"kind":"task"}`)
	recordActivity(t, mux, `{"kind":"workout"}`)
	rr := recordActivity(t, mux, `{"kind":"task"}`)

	view := decodeSnapshot(t, rr)
	if view.CurrentStreak != 1 || view.TotalActiveDays != 1 {
		t.Fatalf("unexpected snapshot %+v", view)
	}
}

func TestRecordActivityValidation(t *testing.T) {
	_, _, mux := newTestHandler(t)

	cases := map[string]string{
		"unknown kind": `{"kind":"meditation"}`,
		"missing kind": `{"description":"x"}`,
		"bad date":     `{"kind":"task","date":"2025/03/01"}`,
		"future date":  `{"kind":"task","date":"2025-03-11"}`,
		"bad json":     `{"kind":`,
	}
	for name, body := range cases {
		rr := recordActivity(t, mux, body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, rr.Code)
		}
	}
}

func TestRecordActivityRequiresWriteScope(t *testing.T) {
	_, _, mux := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/streak/activities", strings.NewReader(`{"kind":"task"}`))
	rr := serve(mux, withClaims(req, "user-1", auth.ScopeStreaksRead))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}

	rr = serve(mux, httptest.NewRequest(http.MethodPost, "/v1/streak/activities", strings.NewReader(`{"kind":"task"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestStreakForDate(t *testing.T) {
	_, _, mux := newTestHandler(t)
	recordActivity(t, mux, `{"kind":"workout","date":"2025-03-05"}`)
	recordActivity(t, mux, `{"kind":"task","date":"2025-03-05"}`)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak/days/2025-03-05", nil), "user-1", auth.ScopeStreaksRead)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var day DayView
	if err := json.Unmarshal(rr.Body.Bytes(), &day); err != nil {
		t.Fatalf("failed to decode day: %v", err)
	}
	if day.Date != "2025-03-05" || strings.Join(day.Activities, ",") != "task,workout" {
		t.Fatalf("unexpected day %+v", day)
	}

	req = withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak/days/2025-03-06", nil), "user-1", auth.ScopeStreaksRead)
	if rr := serve(mux, req); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}

	req = withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak/days/yesterday", nil), "user-1", auth.ScopeStreaksRead)
	if rr := serve(mux, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestCalendarRange(t *testing.T) {
	_, _, mux := newTestHandler(t)
	recordActivity(t, mux, `{"kind":"task","date":"2025-02-27"}`)
	recordActivity(t, mux, `{"kind":"journal","date":"2025-03-02"}`)
	recordActivity(t, mux, `{"kind":"workout","date":"2025-03-09"}`)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak/calendar?from=2025-03-01&to=2025-03-31", nil), "user-1", auth.ScopeStreaksRead)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var view CalendarView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode calendar: %v", err)
	}
	if len(view.Days) != 2 {
		t.Fatalf("expected 2 days got %d", len(view.Days))
	}
	if view.Days[0].Date != "2025-03-02" || view.Days[1].Date != "2025-03-09" {
		t.Fatalf("unexpected calendar order %+v", view.Days)
	}

	req = withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak/calendar?from=2025-03-31&to=2025-03-01", nil), "user-1", auth.ScopeStreaksRead)
	if rr := serve(mux, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestResetStreak(t *testing.T) {
	_, repo, mux := newTestHandler(t)
	recordActivity(t, mux, `{"kind":"task"}`)

	req := withClaims(httptest.NewRequest(http.MethodDelete, "/v1/streak", nil), "user-1", auth.ScopeStreaksWrite)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if view := decodeSnapshot(t, rr); view != (SnapshotView{}) {
		t.Fatalf("expected zero snapshot got %+v", view)
	}
	raw, _ := repo.Raw("user-1")
	if string(raw) != "[]" {
		t.Fatalf("expected empty stored log got %s", raw)
	}
}

func TestSessionLifecycle(t *testing.T) {
	handler, repo, mux := newTestHandler(t)
	repo.AddHistory("user-2",
		domain.HistoricalActivity{Kind: domain.ActivityTask, OccurredAt: fixedNow.AddDate(0, 0, -1)},
		domain.HistoricalActivity{Kind: domain.ActivityJournal, OccurredAt: fixedNow},
	)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/streak/session", nil), "user-2", auth.ScopeStreaksRead)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if view := decodeSnapshot(t, rr); view.CurrentStreak != 2 || view.TotalActiveDays != 2 {
		t.Fatalf("expected migrated history in snapshot got %+v", view)
	}
	if handler.sessions.Len() != 1 {
		t.Fatalf("expected one open session got %d", handler.sessions.Len())
	}

	req = withClaims(httptest.NewRequest(http.MethodDelete, "/v1/streak/session", nil), "user-2", auth.ScopeStreaksRead)
	if rr := serve(mux, req); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}
	if handler.sessions.Len() != 0 {
		t.Fatalf("expected no open sessions got %d", handler.sessions.Len())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, mux := newTestHandler(t)
	req := withClaims(httptest.NewRequest(http.MethodPut, "/v1/streak", nil), "user-1", auth.ScopeStreaksWrite)
	if rr := serve(mux, req); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
}

type unreachableRepo struct {
	*memory.Repository
}

func (unreachableRepo) Load(context.Context, string) (domain.ActivityLog, bool, error) {
	return nil, false, errors.New("dial tcp: connection refused")
}

func TestStorageUnavailable(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	repo := unreachableRepo{Repository: memory.NewRepository()}
	sessions := domain.NewSessions(repo,
		domain.WithClock(func() time.Time { return fixedNow }),
		domain.WithLogger(logger),
	)
	mux := http.NewServeMux()
	NewHandler(sessions, logger).RegisterRoutes(mux)

	rr := recordActivity(t, mux, `{"kind":"task"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d: %s", rr.Code, rr.Body.String())
	}
	if _, stored := repo.Raw("user-1"); stored {
		t.Fatalf("expected nothing to be saved")
	}

	req := withClaims(httptest.NewRequest(http.MethodDelete, "/v1/streak", nil), "user-1", auth.ScopeStreaksWrite)
	if rr := serve(mux, req); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on reset got %d", rr.Code)
	}

	req = withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak", nil), "user-1", auth.ScopeStreaksRead)
	rr = serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if view := decodeSnapshot(t, rr); view != (SnapshotView{}) {
		t.Fatalf("expected zero snapshot got %+v", view)
	}
}
