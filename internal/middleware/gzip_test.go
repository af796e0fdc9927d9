package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// echoForm отвечает телом запроса с заданным статусом; explicitHeader=false
// проверяет неявный WriteHeader(200) при первом Write.
func echoForm(status int, explicitHeader bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		defer r.Body.Close()

		if status >= http.StatusBadRequest {
			http.Error(w, `{"error":"invalid_range"}`, status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if explicitHeader {
			w.WriteHeader(status)
		}
		if status == http.StatusNoContent {
			return
		}
		_, _ = w.Write([]byte(`{"session_id":"s-1","received":` + string(body) + `}`))
	}
}

func gzipped(t *testing.T, s string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		statusCode      int
		contentEncoding string
		bodyContains    string
	}

	tests := []struct {
		name           string
		requestBody    string
		gzipRequest    bool
		acceptGzip     bool
		status         int
		explicitHeader bool
		want           want
	}{
		{
			name:           "client accepts gzip",
			requestBody:    `{"leave_type_id":3}`,
			acceptGzip:     true,
			status:         http.StatusOK,
			explicitHeader: true,
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				bodyContains:    `"received":{"leave_type_id":3}`,
			},
		},
		{
			name:           "created form is compressed",
			requestBody:    `{"employee_number":"E-1"}`,
			acceptGzip:     true,
			status:         http.StatusCreated,
			explicitHeader: true,
			want: want{
				statusCode:      http.StatusCreated,
				contentEncoding: "gzip",
				bodyContains:    `"employee_number":"E-1"`,
			},
		},
		{
			name:        "implicit status on first write",
			requestBody: `{"reason":"flu"}`,
			acceptGzip:  true,
			status:      http.StatusOK,
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				bodyContains:    `"reason":"flu"`,
			},
		},
		{
			name:           "client does not accept gzip",
			requestBody:    `{"half_day":true}`,
			status:         http.StatusOK,
			explicitHeader: true,
			want: want{
				statusCode:   http.StatusOK,
				bodyContains: `"half_day":true`,
			},
		},
		{
			name:           "compressed request body",
			requestBody:    `{"date_from":"2025-03-10","date_to":"2025-03-12"}`,
			gzipRequest:    true,
			acceptGzip:     true,
			status:         http.StatusOK,
			explicitHeader: true,
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				bodyContains:    `"date_to":"2025-03-12"`,
			},
		},
		{
			name:           "error status is not compressed",
			requestBody:    `{"date_from":"2025-03-12","date_to":"2025-03-10"}`,
			acceptGzip:     true,
			status:         http.StatusUnprocessableEntity,
			explicitHeader: true,
			want: want{
				statusCode:   http.StatusUnprocessableEntity,
				bodyContains: `"invalid_range"`,
			},
		},
		{
			name:           "no content is not compressed",
			acceptGzip:     true,
			status:         http.StatusNoContent,
			explicitHeader: true,
			want: want{
				statusCode: http.StatusNoContent,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(tt.requestBody)
			if tt.gzipRequest {
				requestBody = gzipped(t, tt.requestBody)
			}

			req := httptest.NewRequest(http.MethodPatch, "/api/leave/form", requestBody)
			req.Header.Set("Content-Type", "application/json")
			if tt.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}

			w := httptest.NewRecorder()

			h := GzipMiddleware(echoForm(tt.status, tt.explicitHeader))
			h.ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.want.statusCode {
				t.Fatalf("status: got %d want %d", res.StatusCode, tt.want.statusCode)
			}

			if ce := res.Header.Get("Content-Encoding"); ce != tt.want.contentEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.want.contentEncoding)
			}

			var body []byte
			var err error
			if res.Header.Get("Content-Encoding") == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer gr.Close()
				body, err = io.ReadAll(gr)
				if err != nil {
					t.Fatalf("read gzip body: %v", err)
				}
			} else {
				body, err = io.ReadAll(res.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
			}

			if tt.want.bodyContains == "" {
				if len(body) != 0 {
					t.Fatalf("body = %q, want empty", string(body))
				}
				return
			}
			if !strings.Contains(string(body), tt.want.bodyContains) {
				t.Fatalf("body %q does not contain %q", string(body), tt.want.bodyContains)
			}
		})
	}
}

func TestGzipMiddleware_CorruptRequestBody(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodPatch, "/api/leave/form", strings.NewReader(`{"reason":"not gzip"}`))
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(next).ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusBadRequest)
	}
	if ce := res.Header.Get("Content-Encoding"); ce != "" {
		t.Fatalf("content-encoding: got %q want empty", ce)
	}
	if called {
		t.Fatalf("next handler must not be called for a corrupt body")
	}
}
