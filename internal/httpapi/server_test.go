package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/dispatch"
	"github.com/fyrsmithlabs/reportd/internal/report"
	"github.com/fyrsmithlabs/reportd/internal/store"
	"github.com/fyrsmithlabs/reportd/internal/vacation"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []report.InboundMessage
	recalls  []report.RecallEvent
	fail     bool
}

func (p *fakePublisher) PublishMessage(msg report.InboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("bus down")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePublisher) PublishRecall(ev report.RecallEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("bus down")
	}
	p.recalls = append(p.recalls, ev)
	return nil
}

type nullDispatcher struct{}

func (nullDispatcher) Send(context.Context, []report.Report, string) error { return nil }

type fixedHeadcount int

func (f fixedHeadcount) ExpectedHeadcount(string) int { return int(f) }

func newTestServer(t *testing.T) (*Server, *fakePublisher, *store.Store) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "reports.json"), zap.NewNop())
	require.NoError(t, err)

	c, err := dispatch.New(st, nullDispatcher{}, fixedHeadcount(10),
		dispatch.Config{GracePeriod: time.Hour}, zap.NewNop())
	require.NoError(t, err)

	v, err := vacation.New(filepath.Join(dir, "vacations.json"), zap.NewNop())
	require.NoError(t, err)

	pub := &fakePublisher{}
	srv, err := New(Config{Port: 0}, pub, c, st, v, zap.NewNop())
	require.NoError(t, err)
	return srv, pub, st
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echoContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWebhookMessage(t *testing.T) {
	srv, pub, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/webhook/message",
		`{"text":"daily report","user_id":"u-1","chat_id":"c-1","message_id":"m-1","submitter":"alice"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "alice", pub.messages[0].Submitter)
	assert.Equal(t, "m-1", pub.messages[0].MessageID)
}

func TestWebhookMessage_FillsMissingMessageID(t *testing.T) {
	srv, pub, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/webhook/message",
		`{"text":"daily report","user_id":"u-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, pub.messages, 1)
	assert.NotEmpty(t, pub.messages[0].MessageID)
	assert.Equal(t, "u-1", pub.messages[0].Submitter, "user id doubles as submitter")
}

func TestWebhookMessage_CarriesExplicitDate(t *testing.T) {
	srv, pub, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/webhook/message",
		`{"text":"daily report","user_id":"u-1","date":"2026-02-02"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "2026-02-02", pub.messages[0].Date)

	rec = doJSON(t, srv, http.MethodPost, "/webhook/message",
		`{"text":"daily report","user_id":"u-1","date":"02/02/2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookMessage_Validation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/webhook/message", `{"user_id":"u-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing text")

	rec = doJSON(t, srv, http.MethodPost, "/webhook/message", `{"text":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing submitter and user id")
}

func TestWebhookMessage_BusUnavailable(t *testing.T) {
	srv, pub, _ := newTestServer(t)
	pub.fail = true

	rec := doJSON(t, srv, http.MethodPost, "/webhook/message",
		`{"text":"daily report","user_id":"u-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookRecall(t *testing.T) {
	srv, pub, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/webhook/recall", `{"message_id":"m-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.recalls, 1)
	assert.Equal(t, "m-1", pub.recalls[0].MessageID)

	rec = doJSON(t, srv, http.MethodPost, "/webhook/recall", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	srv, _, st := newTestServer(t)

	st.Upsert(report.Report{Submitter: "alice", WorkContent: "w"}, "2026-02-02")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/summary", `{"date":"2026-02-02"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, st.IsDispatched("2026-02-02"))

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/summary", `{"date":"2026-02-02"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/summary", `{"date":"not a date"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsEndpoint(t *testing.T) {
	srv, _, st := newTestServer(t)

	st.Upsert(report.Report{Submitter: "alice", WorkContent: "w"}, "2026-02-02")

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/reports/2026-02-02", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Date       string          `json:"date"`
		Dispatched bool            `json:"dispatched"`
		Reports    []report.Report `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "2026-02-02", payload.Date)
	assert.False(t, payload.Dispatched)
	require.Len(t, payload.Reports, 1)
	assert.Equal(t, "alice", payload.Reports[0].Submitter)
}

func TestVacationEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/vacations",
		`{"name":"alice","date":"2026-02-03"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/vacations",
		`{"name":"alice","date":"2026-02-03"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "duplicate set is not an error")

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/vacations/2026-02-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")

	rec = doJSON(t, srv, http.MethodDelete,
		"/api/v1/vacations?name=alice&date=2026-02-03", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete,
		"/api/v1/vacations?name=alice&date=2026-02-03", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
