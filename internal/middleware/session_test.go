package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFormSession_WithValidCookie(t *testing.T) {
	m := NewFormSession("test-secret", time.Minute)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := SessionIDFromContext(r.Context())
		if !ok {
			t.Fatalf("session id not in context")
		}
		if id != "6f1c2f7e-4a55-4a5e-9d0e-3c1b2a7e9f10" {
			t.Fatalf("session id from context = %q", id)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/leave/form", nil)

	m.SetCookie(w, "6f1c2f7e-4a55-4a5e-9d0e-3c1b2a7e9f10")
	resCookies := w.Result().Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetCookie")
	}
	if resCookies[0].Name != FormCookieName || !resCookies[0].HttpOnly {
		t.Fatalf("unexpected cookie: %+v", resCookies[0])
	}

	r.AddCookie(resCookies[0])

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestFormSession_Rejected(t *testing.T) {
	m := NewFormSession("test-secret", time.Minute)
	other := NewFormSession("other-secret", time.Minute)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie"},
		{name: "garbage", cookie: &http.Cookie{Name: FormCookieName, Value: "garbage"}},
		{name: "empty id", cookie: &http.Cookie{Name: FormCookieName, Value: ".abcdef"}},
		{name: "tampered id", cookie: &http.Cookie{Name: FormCookieName, Value: "other" + m.sign("abc")[3:]}},
		{name: "foreign secret", cookie: &http.Cookie{Name: FormCookieName, Value: other.sign("abc")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/leave/form", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}

			m.Middleware(next).ServeHTTP(w, r)

			if w.Result().StatusCode != http.StatusNotFound {
				t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
			}
		})
	}
}

func TestFormSession_ClearCookie(t *testing.T) {
	m := NewFormSession("", 0)

	w := httptest.NewRecorder()
	m.ClearCookie(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected expiring cookie, got %+v", cookies)
	}
}
