package blueprint

import (
	"sort"
	"strings"
)

// TokenKind distinguishes numeric ({{1}}) from symbolic ({{name}})
// placeholders.
type TokenKind string

const (
	Positional TokenKind = "positional"
	Named      TokenKind = "named"
)

// Token is one placeholder occurrence in template text, in appearance
// order.
type Token struct {
	Kind TokenKind
	Key  string
}

// Tokenize scans text for double-brace placeholders and returns them in
// appearance order. Unterminated braces are ignored.
func Tokenize(text string) []Token {
	var tokens []Token
	for i := 0; i < len(text); {
		start := strings.Index(text[i:], "{{")
		if start < 0 {
			break
		}
		start += i
		end := strings.Index(text[start+2:], "}}")
		if end < 0 {
			break
		}
		key := strings.TrimSpace(text[start+2 : start+2+end])
		if key != "" {
			kind := Named
			if isNumeric(key) {
				kind = Positional
			}
			tokens = append(tokens, Token{Kind: kind, Key: key})
		}
		i = start + 2 + end + 2
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Blueprint is the variable metadata derived from one template section
// (header or body).
type Blueprint struct {
	VarsCount  int
	Positional bool
	Names      []string
}

// Resolve derives the blueprint for a section of template text. If
// every token is purely numeric the template is positional and the
// count is the number of distinct numeric tokens. Otherwise it is named
// and every token counts, order of appearance preserved.
func Resolve(text string) Blueprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Blueprint{}
	}

	positional := true
	for _, t := range tokens {
		if t.Kind != Positional {
			positional = false
			break
		}
	}

	var names []string
	if positional {
		seen := make(map[string]bool)
		for _, t := range tokens {
			if seen[t.Key] {
				continue
			}
			seen[t.Key] = true
			names = append(names, t.Key)
		}
	} else {
		for _, t := range tokens {
			names = append(names, t.Key)
		}
	}

	return Blueprint{
		VarsCount:  len(names),
		Positional: positional,
		Names:      names,
	}
}

// RenderDisplay substitutes recipient values into template text for
// chat-history display. Values are paired with placeholder names
// iterated in lexicographic order, not placeholder order; for
// positional templates with ten or more variables the two orders
// diverge ("1", "10", "2", ...). Observed behavior, kept until the
// owner confirms a fix; the provider payload is unaffected.
func RenderDisplay(text string, bp Blueprint, values []string) string {
	names := make([]string, len(bp.Names))
	copy(names, bp.Names)
	sort.Strings(names)

	out := text
	for i, name := range names {
		if i >= len(values) {
			break
		}
		out = strings.ReplaceAll(out, "{{"+name+"}}", values[i])
	}
	return out
}
