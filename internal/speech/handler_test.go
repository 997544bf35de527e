package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/eleven-am/tts-gateway/internal/shared"
	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/eleven-am/tts-gateway/internal/usage"
	"github.com/labstack/echo/v4"
)

type convertCall struct {
	text   string
	format string
}

type mockConverter struct {
	mu        sync.Mutex
	calls     []convertCall
	convertFn func(ctx context.Context, text, format string) ([]byte, error)
}

func (m *mockConverter) Convert(ctx context.Context, text, format string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, convertCall{text: text, format: format})
	m.mu.Unlock()
	if m.convertFn != nil {
		return m.convertFn(ctx, text, format)
	}
	return []byte("audio:" + text), nil
}

type mockRecorder struct {
	mu        sync.Mutex
	records   []usage.Conversion
	recordErr error
	rows      []*usage.Hourly
	hours     int
	getErr    error
}

func (m *mockRecorder) Record(_ context.Context, c usage.Conversion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, c)
	return m.recordErr
}

func (m *mockRecorder) GetHourly(_ context.Context, hours int) ([]*usage.Hourly, error) {
	m.hours = hours
	return m.rows, m.getErr
}

func newTestHandler(conv synthesis.Converter, rec usage.Recorder) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(conv, rec, 64, logger)
}

func newTestServer(h *Handler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e.Group("/v1"))
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func speechRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != status {
		t.Errorf("expected status %d, got %d", status, he.Code)
	}
	apiErr, ok := he.Message.(*shared.APIError)
	if !ok {
		t.Fatalf("expected *shared.APIError message, got %T", he.Message)
	}
	if apiErr.Code != code {
		t.Errorf("expected code %q, got %q", code, apiErr.Code)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := newTestServer(newTestHandler(&mockConverter{}, nil))

	expected := map[string]string{
		"/v1/audio/speech": http.MethodPost,
		"/v1/tts":          http.MethodGet,
		"/v1/usage":        http.MethodGet,
	}
	for _, r := range e.Routes() {
		if method, ok := expected[r.Path]; ok && method == r.Method {
			delete(expected, r.Path)
		}
	}
	for path := range expected {
		t.Errorf("expected route %s to be registered", path)
	}
}

func TestHandleSpeech_Success(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantFormat  string
		contentType string
	}{
		{"default format", `{"input":"hello"}`, "mp3", "audio/mpeg"},
		{"wav", `{"input":"hello","response_format":"wav"}`, "wav", "audio/wav"},
		{"opus", `{"input":"hello","response_format":"opus"}`, "opus", "audio/ogg; codecs=opus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &mockConverter{}
			rec := &mockRecorder{}
			e := newTestServer(newTestHandler(conv, rec))

			resp := serve(e, speechRequest(tt.body))
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
			}
			if got := resp.Header().Get(echo.HeaderContentType); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if resp.Body.String() != "audio:hello" {
				t.Errorf("unexpected body %q", resp.Body.String())
			}
			if len(conv.calls) != 1 || conv.calls[0].format != tt.wantFormat {
				t.Errorf("unexpected converter calls %+v", conv.calls)
			}
			if len(rec.records) != 1 || rec.records[0].Failed || rec.records[0].Bytes != len("audio:hello") {
				t.Errorf("unexpected usage records %+v", rec.records)
			}
		})
	}
}

func TestHandleSpeech_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{"input":`, http.StatusBadRequest, "invalid_body"},
		{"missing input", `{"response_format":"mp3"}`, http.StatusBadRequest, "missing_input"},
		{"input too long", fmt.Sprintf(`{"input":%q}`, strings.Repeat("a", 65)), http.StatusBadRequest, "input_too_long"},
		{"unsupported format", `{"input":"hi","response_format":"flac"}`, http.StatusBadRequest, "invalid_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &mockConverter{}
			h := newTestHandler(conv, nil)
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(speechRequest(tt.body), rec)

			assertAPIError(t, h.HandleSpeech(c), tt.status, tt.code)
			if len(conv.calls) != 0 {
				t.Errorf("converter should not be called, got %+v", conv.calls)
			}
		})
	}
}

func TestHandleSpeech_ConversionErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"timeout", fmt.Errorf("%w after 20s", synthesis.ErrTimeout), http.StatusGatewayTimeout, "synthesis_timeout"},
		{"connection closed", &synthesis.CloseError{Code: 1006, Reason: "gone"}, http.StatusBadGateway, "backend_closed"},
		{"handshake failed", fmt.Errorf("%w: handshake: 403", synthesis.ErrConnection), http.StatusBadGateway, "backend_unavailable"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "synthesis_timeout"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "synthesis_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &mockConverter{convertFn: func(context.Context, string, string) ([]byte, error) {
				return nil, tt.err
			}}
			rec := &mockRecorder{}
			h := newTestHandler(conv, rec)
			e := echo.New()
			c := e.NewContext(speechRequest(`{"input":"hi"}`), httptest.NewRecorder())

			assertAPIError(t, h.HandleSpeech(c), tt.status, tt.code)
			if len(rec.records) != 1 || !rec.records[0].Failed {
				t.Errorf("expected one failed usage record, got %+v", rec.records)
			}
		})
	}
}

func TestHandleSpeech_UsageFailureIsIgnored(t *testing.T) {
	rec := &mockRecorder{recordErr: errors.New("redis down")}
	e := newTestServer(newTestHandler(&mockConverter{}, rec))

	resp := serve(e, speechRequest(`{"input":"hi"}`))
	if resp.Code != http.StatusOK {
		t.Errorf("usage errors must not fail the request, got %d", resp.Code)
	}
}

func legacyQuery(t *testing.T, payload any, enc *base64.Encoding) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return "/v1/tts?data=" + url.QueryEscape(enc.EncodeToString(raw))
}

func TestHandleLegacy_Success(t *testing.T) {
	conv := &mockConverter{}
	rec := &mockRecorder{}
	e := newTestServer(newTestHandler(conv, rec))

	payload := map[string]any{
		"ttsdata": []map[string]string{
			{"text": url.PathEscape("你好 世界"), "voiceFormat": "wav", "name": url.PathEscape("第一章")},
			{"text": "second"},
		},
	}
	resp := serve(e, httptest.NewRequest(http.MethodGet, legacyQuery(t, payload, base64.StdEncoding), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var results []LegacyResult
	if err := json.Unmarshal(resp.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.Name != "第一章" || first.ContentType != "audio/wav" {
		t.Errorf("unexpected first result %+v", first)
	}
	audio, _ := base64.StdEncoding.DecodeString(first.AudioData)
	if string(audio) != "audio:你好 世界" {
		t.Errorf("unexpected first audio %q", audio)
	}
	if first.ID == 0 {
		t.Error("expected id to be set")
	}

	second := results[1]
	if second.Name != defaultLegacyName || second.ContentType != "audio/mpeg" {
		t.Errorf("expected defaults, got %+v", second)
	}

	if len(conv.calls) != 2 || conv.calls[0].text != "你好 世界" || conv.calls[1].format != "mp3" {
		t.Errorf("unexpected converter calls %+v", conv.calls)
	}
	if len(rec.records) != 2 {
		t.Errorf("expected 2 usage records, got %d", len(rec.records))
	}
}

func TestHandleLegacy_Errors(t *testing.T) {
	valid := func(items ...map[string]string) map[string]any {
		return map[string]any{"ttsdata": items}
	}

	tests := []struct {
		name   string
		target string
		convFn func(context.Context, string, string) ([]byte, error)
		status int
		code   string
	}{
		{"missing data", "/v1/tts", nil, http.StatusBadRequest, "invalid_data"},
		{"not base64", "/v1/tts?data=%21%21%21", nil, http.StatusBadRequest, "invalid_data"},
		{"missing ttsdata", legacyQuery(t, map[string]any{"other": 1}, base64.StdEncoding), nil, http.StatusBadRequest, "invalid_data"},
		{"empty text", legacyQuery(t, valid(map[string]string{"text": ""}), base64.StdEncoding), nil, http.StatusBadRequest, "missing_text"},
		{"bad format", legacyQuery(t, valid(map[string]string{"text": "a", "voiceFormat": "aac"}), base64.StdEncoding), nil, http.StatusBadRequest, "invalid_format"},
		{
			"backend timeout",
			legacyQuery(t, valid(map[string]string{"text": "a"}), base64.StdEncoding),
			func(context.Context, string, string) ([]byte, error) { return nil, synthesis.ErrTimeout },
			http.StatusGatewayTimeout,
			"synthesis_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&mockConverter{convertFn: tt.convFn}, nil)
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.target, nil), httptest.NewRecorder())
			assertAPIError(t, h.HandleLegacy(c), tt.status, tt.code)
		})
	}
}

func TestDecodeLegacy_Encodings(t *testing.T) {
	raw := []byte(`{"ttsdata":[{"text":"??>>"}]}`)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		req, err := DecodeLegacy(enc.EncodeToString(raw))
		if err != nil {
			t.Fatalf("DecodeLegacy(%q) error = %v", enc.EncodeToString(raw), err)
		}
		if len(req.TTSData) != 1 || req.TTSData[0].Text != "??>>" {
			t.Errorf("unexpected request %+v", req)
		}
	}
}

func TestDecodeLegacy_EmptyArray(t *testing.T) {
	req, err := DecodeLegacy(base64.StdEncoding.EncodeToString([]byte(`{"ttsdata":[]}`)))
	if err != nil {
		t.Fatalf("DecodeLegacy error = %v", err)
	}
	if len(req.TTSData) != 0 {
		t.Errorf("expected no items, got %d", len(req.TTSData))
	}
}

func TestHandleUsage(t *testing.T) {
	rec := &mockRecorder{rows: []*usage.Hourly{
		{Format: "mp3", Requests: 3, Successes: 2, Failures: 1, Bytes: 100},
		{Format: "wav", Requests: 1, Successes: 1, Bytes: 50},
	}}
	e := newTestServer(newTestHandler(&mockConverter{}, rec))

	resp := serve(e, httptest.NewRequest(http.MethodGet, "/v1/usage?hours=6", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body UsageResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Hours != 6 || rec.hours != 6 {
		t.Errorf("expected 6 hours, got %d (store %d)", body.Hours, rec.hours)
	}
	if body.Totals.Requests != 4 || body.Totals.Bytes != 150 || len(body.Usage) != 2 {
		t.Errorf("unexpected usage response %+v", body)
	}
}

func TestHandleUsage_HoursBounds(t *testing.T) {
	for _, q := range []string{"", "?hours=0", "?hours=-3", "?hours=abc", "?hours=1000"} {
		rec := &mockRecorder{}
		e := newTestServer(newTestHandler(&mockConverter{}, rec))
		resp := serve(e, httptest.NewRequest(http.MethodGet, "/v1/usage"+q, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", q, resp.Code)
		}
		if rec.hours != defaultUsageHours {
			t.Errorf("%q: expected default hours, got %d", q, rec.hours)
		}
	}
}

func TestHandleUsage_Errors(t *testing.T) {
	h := newTestHandler(&mockConverter{}, nil)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/usage", nil), httptest.NewRecorder())
	assertAPIError(t, h.HandleUsage(c), http.StatusServiceUnavailable, "usage_disabled")

	h = newTestHandler(&mockConverter{}, &mockRecorder{getErr: errors.New("redis down")})
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/usage", nil), httptest.NewRecorder())
	assertAPIError(t, h.HandleUsage(c), http.StatusInternalServerError, "get_usage_failed")
}
