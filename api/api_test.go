package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orchestratorx "github.com/tanpawarit/chative-bank-onboarding/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	eventx "github.com/tanpawarit/chative-bank-onboarding/agent/event"
	nodex "github.com/tanpawarit/chative-bank-onboarding/agent/nodes"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeWorkflow struct {
	mu       sync.Mutex
	requests []orchestratorx.Request
	resets   []string

	response orchestratorx.Response
	err      error
	events   []eventx.Event
	session  statex.Session
}

func (f *fakeWorkflow) record(req orchestratorx.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeWorkflow) lastRequest(t *testing.T) orchestratorx.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeWorkflow) HandleMessage(_ context.Context, req orchestratorx.Request) (orchestratorx.Response, error) {
	f.record(req)
	if strings.TrimSpace(req.SessionID) == "" {
		return orchestratorx.Response{}, fmt.Errorf("%w: %w", contractx.ErrValidation, orchestratorx.ErrInvalidSession)
	}
	return f.response, f.err
}

func (f *fakeWorkflow) Stream(_ context.Context, req orchestratorx.Request) *eventx.Stream {
	f.record(req)
	stream := eventx.NewStream("run-1", req.SessionID)
	go func() {
		defer stream.Finish()
		for _, ev := range f.events {
			stream.Emit(ev)
		}
	}()
	return stream
}

func (f *fakeWorkflow) Reset(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, sessionID)
	return f.err
}

func (f *fakeWorkflow) Session(_ context.Context, sessionID string) (statex.Session, error) {
	if f.err != nil {
		return statex.Session{}, f.err
	}
	st := f.session
	st.SessionID = sessionID
	return st, nil
}

func multipartBody(t *testing.T, fields map[string]string, images ...[]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for i, img := range images {
		part, err := w.CreateFormFile("images[]", fmt.Sprintf("license-%d.png", i))
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandleBusinessMultipart(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflow{response: orchestratorx.Response{
		RunID:   "run-1",
		Success: true,
		Message: nodex.ReplyUploadFirst,
		Stage:   statex.StageNone,
	}}
	router := NewRouter(wf, nil)

	body, contentType := multipartBody(t, map[string]string{"content": "我要开户"}, []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/bank/business", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(sessionHeader, "s-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orchestratorx.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, nodex.ReplyUploadFirst, resp.Message)
	assert.Equal(t, statex.StageNone, resp.Stage)

	got := wf.lastRequest(t)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, "我要开户", got.Text)
	require.Len(t, got.Images, 1)
	assert.Equal(t, []byte("png-bytes"), got.Images[0])
}

func TestHandleBusinessJSONBody(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflow{response: orchestratorx.Response{Success: true, Message: nodex.ReplyWelcome}}
	router := NewRouter(wf, nil)

	req := httptest.NewRequest(http.MethodPost, "/bank/business", strings.NewReader(`{"session_id":"s-json","content":"你好"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := wf.lastRequest(t)
	assert.Equal(t, "s-json", got.SessionID)
	assert.Equal(t, "你好", got.Text)
	assert.Empty(t, got.Images)
}

func TestHandleBusinessValidationIsBadRequest(t *testing.T) {
	t.Parallel()

	router := NewRouter(&fakeWorkflow{}, nil)

	body, contentType := multipartBody(t, map[string]string{"content": "我要开户"})
	req := httptest.NewRequest(http.MethodPost, "/bank/business", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandleBusinessInternalError(t *testing.T) {
	t.Parallel()

	router := NewRouter(&fakeWorkflow{err: fmt.Errorf("boom")}, nil)

	req := httptest.NewRequest(http.MethodPost, "/bank/business", strings.NewReader(`{"session_id":"s-1","content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), nodex.ReplyGeneric)
}

func TestStreamBusinessWritesSSE(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflow{events: []eventx.Event{
		{Kind: eventx.KindStageEntered, Stage: nodex.StageVerify},
		{Kind: eventx.KindToolInvoked, Tool: contractx.ToolVerifyLicense},
		{Kind: eventx.KindToolResult, Tool: contractx.ToolVerifyLicense, Text: "verified"},
		{Kind: eventx.KindFinalOutput, Text: "开户成功！\n账户：1001"},
		{Kind: eventx.KindStageEntered, Stage: "after-terminal"},
	}}
	router := NewRouter(wf, nil)

	body, contentType := multipartBody(t, map[string]string{"content": "开户", "session_id": "s-stream"})
	req := httptest.NewRequest(http.MethodPost, "/bank/business/stream", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	want := "data: stage entered: verify\n\n" +
		"data: tool called: verify_license\n\n" +
		"data: tool output: verify_license: verified\n\n" +
		"data: 开户成功！\ndata: 账户：1001\n\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestStreamBusinessRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflow{}
	router := NewRouter(wf, nil)

	body, contentType := multipartBody(t, map[string]string{"session_id": "s-1"})
	req := httptest.NewRequest(http.MethodPost, "/bank/business/stream", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, wf.requests)
}

func TestSessionRoutes(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflow{session: statex.Session{Stage: statex.StageVerified}}
	router := NewRouter(wf, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bank/sessions/s-9", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st statex.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "s-9", st.SessionID)
	assert.Equal(t, statex.StageVerified, st.Stage)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/bank/sessions/s-9", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"s-9"}, wf.resets)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "bank_api_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	router := NewRouter(&fakeWorkflow{}, registry)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bank_api_test_total 1")

	rec = httptest.NewRecorder()
	NewRouter(&fakeWorkflow{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, Config{Addr: "127.0.0.1:0"}, http.NotFoundHandler())
	}()
	cancel()

	require.NoError(t, <-done)
}
