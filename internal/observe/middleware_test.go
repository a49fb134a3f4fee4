package observe

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// lessonMux mimics the API's route shapes.
func lessonMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{id}/segments/{index}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF0000WAVE"))
	})
	mux.HandleFunc("POST /v1/search", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "llm offline", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_Routes(t *testing.T) {
	tests := []struct {
		method, target string
		wantSpan       string
		wantStatus     int
		wantErr        bool
	}{
		{"GET", "/v1/sessions/7f3a/segments/2", "HTTP GET /v1/sessions/{id}/segments/{index}", http.StatusOK, false},
		{"POST", "/v1/search", "HTTP POST /v1/search", http.StatusServiceUnavailable, true},
		{"GET", "/healthz", "HTTP GET /healthz", http.StatusNoContent, false},
		{"GET", "/nowhere", "HTTP unmatched", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			exp := useRecordingTracer(t)
			m, _ := newTestMetrics(t)

			rec := serve(Middleware(m)(lessonMux()), tt.method, tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("recorded %d spans, want 1", len(spans))
			}
			span := spans[0]
			if span.Name != tt.wantSpan {
				t.Errorf("span name = %q, want %q", span.Name, tt.wantSpan)
			}
			var status int64
			for _, kv := range span.Attributes {
				if kv.Key == "http.response.status_code" {
					status = kv.Value.AsInt64()
				}
			}
			if status != int64(tt.wantStatus) {
				t.Errorf("span status attribute = %d, want %d", status, tt.wantStatus)
			}
			if gotErr := span.Status.Code == codes.Error; gotErr != tt.wantErr {
				t.Errorf("span error status = %v, want %v", gotErr, tt.wantErr)
			}
			if cid := rec.Header().Get("X-Correlation-ID"); cid != span.SpanContext.TraceID().String() {
				t.Errorf("X-Correlation-ID = %q, want span trace id", cid)
			}
		})
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	exp := useRecordingTracer(t)
	m, _ := newTestMetrics(t)

	const traceID = "0af7651916cd43dd8448eb211c80319c"
	var inner string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = CorrelationID(r.Context())
	}))
	rec := serve(h, "GET", "/v1/sessions", http.Header{
		"Traceparent": {"00-" + traceID + "-b7ad6b7169203331-01"},
	})

	if inner != traceID {
		t.Errorf("handler correlation id = %q, want %q", inner, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
	if parent := exp.GetSpans()[0].Parent; parent.SpanID().String() != "b7ad6b7169203331" {
		t.Errorf("parent span = %s", parent.SpanID())
	}
}

func TestMiddleware_DurationKeyedByPattern(t *testing.T) {
	useRecordingTracer(t)
	m, reader := newTestMetrics(t)
	h := Middleware(m)(lessonMux())

	for _, id := range []string{"a", "b", "c"} {
		serve(h, "GET", "/v1/sessions/"+id+"/segments/0", nil)
	}

	met := findMetric(collect(t, reader), "lectern.http.request.duration")
	if met == nil {
		t.Fatal("duration histogram missing")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d series, want 1 per route", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 3 {
		t.Errorf("count = %d, want 3", dp.Count)
	}
	path, _ := dp.Attributes.Value("path")
	if path.AsString() != "GET /v1/sessions/{id}/segments/{index}" {
		t.Errorf("path attribute = %q", path.AsString())
	}
}

func TestMiddleware_LogsRequest(t *testing.T) {
	useRecordingTracer(t)
	m, _ := newTestMetrics(t)
	buf := captureLogs(t)

	serve(Middleware(m)(lessonMux()), "GET", "/v1/sessions/x/segments/1", nil)

	line := buf.String()
	for _, want := range []string{"http request", "status=200", "bytes=12", "trace_id="} {
		if !strings.Contains(line, want) {
			t.Errorf("log %q missing %q", line, want)
		}
	}
}

func TestResponseWriter_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	if err := http.NewResponseController(rw).Flush(); err != nil {
		t.Errorf("Flush through wrapper: %v", err)
	}
	_, _ = io.WriteString(rw, "ok")
	if rw.code() != http.StatusOK || rw.written != 2 {
		t.Errorf("code=%d written=%d", rw.code(), rw.written)
	}
}
