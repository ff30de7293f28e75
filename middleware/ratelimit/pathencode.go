package ratelimit

import (
	"net/http"
	"strings"
)

var bracketEncoder = strings.NewReplacer("[", "%5B", "]", "%5D")

// EncodeBrackets reescreve '[' e ']' do caminho bruto como %5B/%5D antes do proxy.
// Alguns upstreams recusam colchetes literais no caminho.
func EncodeBrackets(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.EscapedPath()
		if strings.ContainsAny(raw, "[]") {
			r2 := r.Clone(r.Context())
			r2.URL.RawPath = bracketEncoder.Replace(raw)
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}
