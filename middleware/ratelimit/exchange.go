package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"gatekeeper/middleware/ratelimit/domain"
)

// httpExchange adapta um par (ResponseWriter, Request) ao domain.Exchange.
type httpExchange struct {
	w        http.ResponseWriter
	r        *http.Request
	trustXFF bool

	once    sync.Once
	replied bool
}

var _ domain.Exchange = (*httpExchange)(nil)

func newExchange(w http.ResponseWriter, r *http.Request, trustXFF bool) *httpExchange {
	return &httpExchange{w: w, r: r, trustXFF: trustXFF}
}

func (e *httpExchange) ClientAddr() string { return ClientIP(e.r, e.trustXFF) }

func (e *httpExchange) Header(name string) string { return e.r.Header.Get(name) }

func (e *httpExchange) Path() string { return e.r.URL.Path }

// Reply escreve status com corpo vazio. Só a primeira chamada escreve.
func (e *httpExchange) Reply(status int) bool {
	first := false
	e.once.Do(func() {
		e.w.Header().Set("Content-Length", "0")
		e.w.WriteHeader(status)
		e.replied = true
		first = true
	})
	return first
}

// ClientIP devolve o IP do cliente: com trustXFF, o primeiro item do X-Forwarded-For;
// senão o host do RemoteAddr. Devolve "" se nada servir.
func ClientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		// pega o primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	// fallback: RemoteAddr
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}
