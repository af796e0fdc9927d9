// Package middleware содержит HTTP middleware портала заявок на отпуск.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const sessionIDKey contextKey = "formSessionID"

const (
	// FormCookieName задаёт имя cookie с подписанным идентификатором сессии формы.
	FormCookieName   = "leave_form"
	defaultCookieTTL = 30 * time.Minute
)

// FormSession связывает браузер с сессией формы через подписанный cookie.
type FormSession struct {
	secretKey []byte
	ttl       time.Duration
}

// NewFormSession создаёт FormSession с указанным секретом. Пустой секрет заменяется
// случайным ключом, и cookie перестают быть валидными после перезапуска.
func NewFormSession(secret string, ttl time.Duration) *FormSession {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = defaultCookieTTL
	}

	return &FormSession{
		secretKey: key,
		ttl:       ttl,
	}
}

// Middleware проверяет cookie формы и добавляет идентификатор сессии в контекст запроса.
func (f *FormSession) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(FormCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		id, ok := f.parse(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetCookie устанавливает cookie формы для указанной сессии.
func (f *FormSession) SetCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     FormCookieName,
		Value:    f.sign(id),
		Path:     "/",
		Expires:  time.Now().Add(f.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie удаляет cookie формы.
func (f *FormSession) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     FormCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (f *FormSession) sign(id string) string {
	mac := hmac.New(sha256.New, f.secretKey)
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

func (f *FormSession) parse(value string) (string, bool) {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", false
	}

	expected := f.sign(parts[0])
	if !hmac.Equal([]byte(value), []byte(expected)) {
		return "", false
	}
	return parts[0], true
}

// SessionIDFromContext извлекает идентификатор сессии формы из контекста запроса.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}
