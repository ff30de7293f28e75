package domain

import "strings"

// Dimensões reconhecidas (comparadas sem diferenciar maiúsculas).
const (
	DimensionIP      = "ip"
	DimensionUserID  = "userId"
	DimensionAPIKey  = "apiKey"
	DefaultDimension = "default"
)

// Cabeçalhos lidos pelas dimensões userId e apiKey.
const (
	UserIDHeader = "X-User-Id"
	APIKeyHeader = "X-Api-Key"
)

// ResolveIdentity extrai o valor de uma dimensão. Nunca falha.
//
//	ip     -> endereço do cliente ou "unknown"
//	userId -> X-User-Id ou "anonymous"
//	apiKey -> X-Api-Key ou "unknown"
//	outras -> "default"
func ResolveIdentity(req Request, dimension string) string {
	switch strings.ToLower(strings.TrimSpace(dimension)) {
	case "ip":
		return orDefault(req.ClientAddr(), "unknown")
	case "userid":
		return orDefault(req.Header(UserIDHeader), "anonymous")
	case "apikey":
		return orDefault(req.Header(APIKeyHeader), "unknown")
	}
	return DefaultDimension
}

// IdentityKey é a chave de bucket de uma dimensão, com o nome da dimensão como prefixo
// para que valores iguais em dimensões diferentes não compartilhem bucket.
func IdentityKey(req Request, dimension string) string {
	v := ResolveIdentity(req, dimension)
	switch strings.ToLower(strings.TrimSpace(dimension)) {
	case "ip":
		return "ip=" + v
	case "userid":
		return "userId=" + v
	case "apikey":
		return "apiKey=" + v
	}
	return DefaultDimension
}

// CompositeKey junta as chaves de todas as dimensões, em ordem, com ":".
// Sem dimensões, devolve a chave global.
func CompositeKey(req Request, dimensions []string) string {
	if len(dimensions) == 0 {
		return DefaultDimension
	}
	parts := make([]string, len(dimensions))
	for i, dim := range dimensions {
		parts[i] = IdentityKey(req, dim)
	}
	return strings.Join(parts, ":")
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
