// Package pathpattern compila os padrões de caminho usados nas regras do gateway.
//
// Sintaxe (por segmento, separados por "/"):
//
//	literal      casa exatamente o segmento
//	?            um caractere qualquer dentro do segmento
//	*            zero ou mais caracteres dentro do segmento (sozinho: um segmento não vazio)
//	{name}       um segmento não vazio
//	{name:re}    um segmento que casa a expressão regular re
//	** ou {*name} zero ou mais segmentos
//
// Exemplo: "/users/**" casa "/users", "/users/42" e "/users/42/orders".
package pathpattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrMalformed = errors.New("malformed path pattern")

type segmentKind int

const (
	literalSegment segmentKind = iota
	wildcardSegment
	multiSegment
)

type segment struct {
	kind    segmentKind
	literal string
	re      *regexp.Regexp
}

func (s segment) match(v string) bool {
	switch s.kind {
	case literalSegment:
		return s.literal == v
	case wildcardSegment:
		return s.re.MatchString(v)
	}
	return false
}

// Pattern é um padrão compilado. É imutável e seguro para uso concorrente.
type Pattern struct {
	raw  string
	segs []segment
}

// Compile valida e compila um padrão. O padrão deve começar com "/".
func Compile(raw string) (*Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("%w %q: must start with /", ErrMalformed, raw)
	}
	p := &Pattern{raw: raw}
	for _, part := range splitPath(raw) {
		seg, err := compileSegment(part)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrMalformed, raw, err)
		}
		p.segs = append(p.segs, seg)
	}
	return p, nil
}

func MustCompile(raw string) *Pattern {
	p, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string { return p.raw }

// Match informa se o caminho (sem query string) casa com o padrão.
func (p *Pattern) Match(path string) bool {
	if path == "" {
		path = "/"
	}
	return matchSegments(p.segs, splitPath(path))
}

func matchSegments(segs []segment, parts []string) bool {
	for len(segs) > 0 {
		s := segs[0]
		if s.kind == multiSegment {
			rest := segs[1:]
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 || !s.match(parts[0]) {
			return false
		}
		segs, parts = segs[1:], parts[1:]
	}
	return len(parts) == 0
}

// splitPath("/") == nil; splitPath("/a/") == ["a", ""].
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func compileSegment(part string) (segment, error) {
	if part == "**" {
		return segment{kind: multiSegment}, nil
	}
	if !strings.ContainsAny(part, "*?{}") {
		return segment{kind: literalSegment, literal: part}, nil
	}
	if part == "*" {
		return segment{kind: wildcardSegment, re: regexp.MustCompile(`^[^/]+$`)}, nil
	}
	if strings.HasPrefix(part, "{*") && strings.HasSuffix(part, "}") {
		if !validName(part[2 : len(part)-1]) {
			return segment{}, fmt.Errorf("invalid capture name in %q", part)
		}
		return segment{kind: multiSegment}, nil
	}
	if strings.Contains(part, "**") {
		return segment{}, fmt.Errorf("** must be a whole segment, got %q", part)
	}

	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(part); i++ {
		switch c := part[i]; c {
		case '*':
			b.WriteString(`[^/]*`)
		case '?':
			b.WriteString(`[^/]`)
		case '}':
			return segment{}, fmt.Errorf("unbalanced } in %q", part)
		case '{':
			end, err := closingBrace(part, i)
			if err != nil {
				return segment{}, err
			}
			expr, err := variableExpr(part[i+1 : end])
			if err != nil {
				return segment{}, err
			}
			b.WriteString(expr)
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return segment{}, err
	}
	return segment{kind: wildcardSegment, re: re}, nil
}

// closingBrace devolve o índice do "}" que fecha o "{" em open, respeitando
// chaves aninhadas dentro de expressões regulares.
func closingBrace(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced { in %q", s)
}

func variableExpr(body string) (string, error) {
	name, re, hasRe := strings.Cut(body, ":")
	if !validName(name) {
		return "", fmt.Errorf("invalid variable name %q", name)
	}
	if !hasRe {
		return `[^/]+`, nil
	}
	if re == "" {
		return "", fmt.Errorf("empty regular expression for variable %q", name)
	}
	if _, err := regexp.Compile(re); err != nil {
		return "", err
	}
	return "(?:" + re + ")", nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
