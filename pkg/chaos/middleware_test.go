package chaos

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okBody = `{"id":1,"name":"widget","description":"a reasonably long body to cut"}`

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, okBody)
})

func faultBinding(path string, specs ...FaultSpec) RouteBinding {
	b := failingBinding("*", path, 1.0, 503)
	b.Faults = specs
	return b
}

func TestMiddleware_PassThrough(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{failingBinding("GET", "/never", 0.0)})
	mw := NewMiddleware(okHandler, inj)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/never", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, okBody, rec.Body.String())
	assert.Empty(t, rec.Header().Get(FaultHeader))
}

func TestMiddleware_DebugLogIncludesPathParams(t *testing.T) {
	lat := NewLatencyProfile(1, 0)
	slow := binding("GET", "/orgs/{org}/repos/{repo}")
	slow.Latency = &lat
	inj := newTestInjector(t, []RouteBinding{faultBinding("/orders/{id}"), slow})

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := NewMiddleware(okHandler, inj, WithMiddlewareLogger(log))

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders/42", nil))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orgs/acme/repos/widgets", nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"rendering chaos fault"`)
	assert.Contains(t, out, `"params":{"id":"42"}`)
	assert.Contains(t, out, `"msg":"delaying request"`)
	assert.Contains(t, out, `"params":{"org":"acme","repo":"widgets"}`)
}

func TestMiddleware_NilInjector(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMiddleware(okHandler, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_HTTPError(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{faultBinding("/err")})
	mw := NewMiddleware(okHandler, inj)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/err", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "http_error", rec.Header().Get(FaultHeader))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, DefaultFailureMessage, body["error"])
	assert.Equal(t, "http_error", body["kind"])
	assert.EqualValues(t, 503, body["status"])
}

func TestMiddleware_TagsFromHeader(t *testing.T) {
	f := NewFailureProfile(0.0).WithTagConfig(TagFailureConfig{
		Tag: "payments", ErrorRate: 1.0, StatusCodes: []int{402}, ErrorMessage: "card declined",
	})
	b := binding("POST", "/checkout")
	b.Failure = &f
	mw := NewMiddleware(okHandler, newTestInjector(t, []RouteBinding{b}))

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set(TagHeader, "orders, payments")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "card declined")

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_ConnectionErrorFallback(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{faultBinding("/drop", FaultSpec{Kind: FaultConnectionError})})
	rec := httptest.NewRecorder()
	NewMiddleware(okHandler, inj).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/drop", nil))

	// ResponseRecorder cannot be hijacked, so the fault is rendered instead.
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Connection error")
}

func TestMiddleware_ConnectionErrorHijacks(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{faultBinding("/drop", FaultSpec{Kind: FaultConnectionError})})
	srv := httptest.NewServer(NewMiddleware(okHandler, inj))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/drop")
	if err == nil {
		_ = resp.Body.Close()
	}
	assert.Error(t, err)
}

func TestMiddleware_Timeout(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{faultBinding("/hang", FaultSpec{Kind: FaultTimeout, DurationMs: 20})})
	mw := NewMiddleware(okHandler, inj)

	start := time.Now()
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hang", nil))

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request timeout after 20ms")
}

func TestMiddleware_TimeoutClientGone(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{faultBinding("/hang", FaultSpec{Kind: FaultTimeout, DurationMs: 60_000})})
	mw := NewMiddleware(okHandler, inj)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	start := time.Now()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hang", nil).WithContext(ctx))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, rec.Body.String())
}

func TestMiddleware_PartialResponse(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{faultBinding("/cut", FaultSpec{Kind: FaultPartialResponse, TruncatePercent: 50})})
	rec := httptest.NewRecorder()
	NewMiddleware(okHandler, inj).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cut", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, okBody[:len(okBody)/2], rec.Body.String())
	assert.Equal(t, "partial_response", rec.Header().Get(FaultHeader))
}

func TestMiddleware_PayloadCorruption(t *testing.T) {
	inj := newTestInjector(t,
		[]RouteBinding{faultBinding("/mangle", FaultSpec{Kind: FaultPayloadCorruption, Corruption: CorruptionBitFlip})},
		WithSource(NewSeededSource(41)),
	)
	rec := httptest.NewRecorder()
	NewMiddleware(okHandler, inj).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mangle", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Body.String(), len(okBody))
	assert.NotEqual(t, okBody, rec.Body.String())
}

func TestMiddleware_Latency(t *testing.T) {
	lat := NewLatencyProfile(25, 0)
	b := binding("GET", "/slow")
	b.Latency = &lat
	mw := NewMiddleware(okHandler, newTestInjector(t, []RouteBinding{b}))

	start := time.Now()
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_LatencyClientGone(t *testing.T) {
	lat := NewLatencyProfile(60_000, 0)
	b := binding("GET", "/slow")
	b.Latency = &lat
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	mw := NewMiddleware(next, newTestInjector(t, []RouteBinding{b}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil).WithContext(ctx))
	assert.False(t, called)
}

func TestChainTags(t *testing.T) {
	static := TagResolverFunc(func(*http.Request) []string { return []string{"users", "public"} })
	res := ChainTags(HeaderTags(TagHeader), nil, static)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Add(TagHeader, "beta,users")
	req.Header.Add(TagHeader, " , canary ")

	assert.Equal(t, []string{"beta", "users", "canary", "public"}, res.ResolveTags(req))
}

func TestCorruptPayload(t *testing.T) {
	body := []byte(strings.Repeat("abcdefghij", 20))

	tests := []struct {
		name  string
		ctype CorruptionType
		check func(t *testing.T, out []byte)
	}{
		{"none", CorruptionNone, func(t *testing.T, out []byte) {
			assert.Equal(t, body, out)
		}},
		{"truncate", CorruptionTruncate, func(t *testing.T, out []byte) {
			assert.GreaterOrEqual(t, len(out), len(body)/2)
			assert.LessOrEqual(t, len(out), len(body)*9/10)
			assert.Equal(t, body[:len(out)], out)
		}},
		{"bit flip", CorruptionBitFlip, func(t *testing.T, out []byte) {
			require.Len(t, out, len(body))
			assert.NotEqual(t, body, out)
		}},
		{"random bytes", CorruptionRandomBytes, func(t *testing.T, out []byte) {
			require.Len(t, out, len(body))
			var changed int
			for i := range out {
				if out[i] != body[i] {
					changed++
				}
			}
			assert.LessOrEqual(t, changed, len(body)/10)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := append([]byte(nil), body...)
			tt.check(t, CorruptPayload(body, tt.ctype, NewSeededSource(42)))
			assert.Equal(t, orig, body, "input must not be modified")
		})
	}

	assert.Empty(t, CorruptPayload(nil, CorruptionBitFlip, nil))
}
