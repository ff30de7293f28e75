package ratelimit

import (
	"fmt"
	"net/http"
	"strings"

	"gatekeeper/middleware/ratelimit/domain"
)

// StrategyDrop responde 429 sem corpo e encerra a requisição.
const StrategyDrop = "drop"

// DropHandler é a estratégia de rejeição "drop".
type DropHandler struct{}

func (DropHandler) Handle(ex domain.Exchange) {
	ex.Reply(http.StatusTooManyRequests)
}

// NewRejectionHandler devolve a estratégia configurada. Vazio vale "drop".
func NewRejectionHandler(strategy string) (domain.RejectionHandler, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyDrop:
		return DropHandler{}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, strategy)
}
