// 文件路径: internal/api/middleware/auth.go
// 模块说明: 管理接口与指标接口的静态 Bearer 令牌校验。
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// BearerGuard rejects requests whose Authorization header does not carry token.
// An empty token rejects everything.
func BearerGuard(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				writeNotFound(w)
				return
			}
			got := extractBearer(r.Header.Get("Authorization"))
			if got == "" {
				writeUnauthorized(w, "missing authorization header / 缺少认证头")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				writeUnauthorized(w, "invalid token / 令牌无效")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminGuard protects the admin API with the configured admin token.
func AdminGuard(token string) func(http.Handler) http.Handler {
	return BearerGuard(token)
}

func extractBearer(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
