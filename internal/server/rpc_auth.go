package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// requireToken rejects requests that do not carry the daemon token as a
// bearer credential. The rejection body is a JSON-RPC error so that RPC
// clients can decode it. An empty secret rejects everything.
func requireToken(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validToken(secret, r.Header.Get("Authorization")) {
			writeRPCError(w, http.StatusUnauthorized, -32600, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validToken compares the bearer token of authHeader with secret in
// constant time.
func validToken(secret, authHeader string) bool {
	if secret == "" || !strings.HasPrefix(authHeader, bearerPrefix) {
		return false
	}
	token := authHeader[len(bearerPrefix):]
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

func writeRPCError(w http.ResponseWriter, status, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
		"id": nil,
	})
}
