// Package middleware содержит HTTP middleware для сервиса мини-магазина.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const openIDKey contextKey = "openid"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 365 * 24 * time.Hour
)

// AuthMiddleware проверяет подписанный токен с openid пользователя.
// Токен принимается из заголовка Authorization (Bearer) или из cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет токен и добавляет openid в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openid, ok := a.OpenIDFromRequest(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), openIDKey, openid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OpenIDFromRequest извлекает и проверяет openid из запроса без обязательности:
// используется эндпоинтами, где часть действий доступна до входа.
func (a *AuthMiddleware) OpenIDFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if openid, ok := a.parseToken(strings.TrimPrefix(h, "Bearer ")); ok {
			return openid, true
		}
	}

	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		return "", false
	}
	return a.parseToken(cookie.Value)
}

// IssueToken выпускает подписанный токен для указанного openid.
func (a *AuthMiddleware) IssueToken(openid string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(openid))
	return encoded + "." + a.sign(encoded)
}

// SetAuthCookie устанавливает cookie авторизации для указанного openid.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, openid string) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    a.IssueToken(openid),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", false
	}

	encoded := parts[0]
	signature := parts[1]

	if !hmac.Equal([]byte(signature), []byte(a.sign(encoded))) {
		return "", false
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) == 0 {
		return "", false
	}

	return string(raw), true
}

// GetOpenIDFromContext извлекает openid пользователя из контекста запроса.
func GetOpenIDFromContext(ctx context.Context) (string, bool) {
	openid, ok := ctx.Value(openIDKey).(string)
	return openid, ok
}
