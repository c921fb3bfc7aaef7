package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/corpus"
	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/metrics"
	"ragqa/internal/retrieval"
	"ragqa/internal/semantic"
	"ragqa/internal/service"
)

type fakeAsker struct {
	ans   service.Answer
	err   error
	panic bool
}

func (f *fakeAsker) Ask(_ context.Context, q string) (service.Answer, error) {
	if f.panic {
		panic("boom")
	}
	if strings.TrimSpace(q) == "" {
		return service.Answer{}, service.ErrEmptyQuestion
	}
	return f.ans, f.err
}

type fakeLibrary struct {
	snap    *corpus.Snapshot
	state   semantic.State
	mode    retrieval.Mode
	reloads int
	err     error
}

func (f *fakeLibrary) Mode() retrieval.Mode { return f.mode }
func (f *fakeLibrary) Snapshot() *corpus.Snapshot { return f.snap }
func (f *fakeLibrary) IndexState() (semantic.State, error) { return f.state, nil }

func (f *fakeLibrary) Reload(context.Context) (*corpus.Snapshot, error) {
	f.reloads++
	f.snap = &corpus.Snapshot{Generation: f.snap.Generation + 1, Units: f.snap.Units}
	return f.snap, f.err
}

func newTestServer(asker Asker, lib Library, opts Options) http.Handler {
	return NewServer(asker, lib, metrics.New(), opts, logging.Discard()).Handler()
}

func defaultLibrary() *fakeLibrary {
	return &fakeLibrary{
		mode: retrieval.ModeLexical,
		snap: &corpus.Snapshot{Generation: 1, Units: []domain.KnowledgeUnit{{Content: "نص"}}},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAsk_Answered(t *testing.T) {
	h := newTestServer(&fakeAsker{ans: service.Answer{Text: "جواب", Status: service.StatusAnswered}}, defaultLibrary(), Options{})
	rec := do(t, h, http.MethodPost, "/ask", `{"question":"ما الصلاة"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	body := decode(t, rec)
	assert.Equal(t, "جواب", body["answer"])
	assert.Equal(t, "answered", body["status"])
}

func TestAsk_BadRequests(t *testing.T) {
	h := newTestServer(&fakeAsker{}, defaultLibrary(), Options{})
	for _, body := range []string{``, `{`, `{"question":""}`, `{"question":"   "}`, `{"q":"x"}`} {
		rec := do(t, h, http.MethodPost, "/ask", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, service.MsgNoQuestion, decode(t, rec)["answer"], body)
	}
}

func TestAsk_NotReady(t *testing.T) {
	ans := service.Answer{Text: service.MsgNotReady, Status: service.StatusNotReady, RetryAfter: 1500 * time.Millisecond}
	h := newTestServer(&fakeAsker{ans: ans}, defaultLibrary(), Options{})
	rec := do(t, h, http.MethodPost, "/ask", `{"question":"x"}`, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "not_ready", decode(t, rec)["status"])
}

func TestAsk_HandledDegradationsAre200(t *testing.T) {
	for _, st := range []service.Status{service.StatusBusy, service.StatusNoInformation, service.StatusFallback, service.StatusDegraded} {
		h := newTestServer(&fakeAsker{ans: service.Answer{Text: "t", Status: st}}, defaultLibrary(), Options{})
		rec := do(t, h, http.MethodPost, "/ask", `{"question":"x"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code, st)
	}
}

func TestAsk_InternalErrors(t *testing.T) {
	h := newTestServer(&fakeAsker{err: errors.New("cancelled")}, defaultLibrary(), Options{})
	rec := do(t, h, http.MethodPost, "/ask", `{"question":"x"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, service.MsgInternal, decode(t, rec)["answer"])

	h = newTestServer(&fakeAsker{panic: true}, defaultLibrary(), Options{})
	rec = do(t, h, http.MethodPost, "/ask", `{"question":"x"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, service.MsgInternal, decode(t, rec)["answer"])
}

func TestHealth(t *testing.T) {
	lib := defaultLibrary()
	h := newTestServer(&fakeAsker{}, lib, Options{})
	body := decode(t, do(t, h, http.MethodGet, "/health", "", nil))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["units"])
	assert.Equal(t, "lexical", body["mode"])
	assert.Equal(t, "not_started", body["index"])

	lib.mode = retrieval.ModeSemantic
	lib.state = semantic.Building
	body = decode(t, do(t, h, http.MethodGet, "/health", "", nil))
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "building", body["index"])
}

func TestReload(t *testing.T) {
	lib := defaultLibrary()

	h := newTestServer(&fakeAsker{}, lib, Options{})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/admin/reload", "", nil).Code)

	h = newTestServer(&fakeAsker{}, lib, Options{AdminToken: "secret"})
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/admin/reload", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/admin/reload", "", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, 0, lib.reloads)

	rec := do(t, h, http.MethodPost, "/admin/reload", "", map[string]string{"Authorization": "Bearer secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["generation"])

	rec = do(t, h, http.MethodPost, "/admin/reload", "", map[string]string{"X-Admin-Token": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, lib.reloads)

	lib.err = errors.New("disk gone")
	rec = do(t, h, http.MethodPost, "/admin/reload", "", map[string]string{"X-Admin-Token": "secret"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newTestServer(&fakeAsker{}, defaultLibrary(), Options{CORSOrigins: []string{"https://lib.example"}})

	rec := do(t, h, http.MethodOptions, "/ask", "", map[string]string{"Origin": "https://lib.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://lib.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/health", "", map[string]string{"Origin": "https://other.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	h = newTestServer(&fakeAsker{}, defaultLibrary(), Options{})
	rec = do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&fakeAsker{}, defaultLibrary(), Options{})
	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAsk_OversizedBodyRejected(t *testing.T) {
	asker := &fakeAsker{ans: service.Answer{Text: "جواب", Status: service.StatusAnswered}}
	h := newTestServer(asker, defaultLibrary(), Options{})
	body := `{"question":"` + strings.Repeat("س", maxAskBody) + `"}`
	rec := do(t, h, http.MethodPost, "/ask", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgNoQuestion, decode(t, rec)["answer"])
}
