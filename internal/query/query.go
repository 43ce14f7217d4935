// Package query tokenizes the compact selection and parameter syntax used by
// administrators, for example:
//
//	abc identifier:something title:"a b:c" "d e:f"
//
// Input is split on whitespace outside double-quoted segments. A token of the
// form key:value becomes a field only when key is in the caller's recognized
// set; a key:value token whose key is not recognized is discarded, so stray
// field filters never leak into free-text search. Tokens without a key prefix
// are free text. Quote scanning takes precedence over the colon rule, so a
// token that opens with a quote is always free text.
package query

import (
	"strings"
	"unicode"
)

const quote = '"'

// Token is one parsed unit. An empty Key means the token is free text.
type Token struct {
	Key   string
	Value string
}

// HasKey reports whether the token is a recognized key/value field.
func (t Token) HasKey() bool {
	return t.Key != ""
}

// String renders the token back into query syntax. Values containing
// whitespace, colons, or nothing at all are quoted so the output reparses to
// the same token given the same recognized keys.
func (t Token) String() string {
	value := t.Value
	if needsQuoting(value) {
		value = string(quote) + value + string(quote)
	}
	if t.HasKey() {
		return t.Key + ":" + value
	}
	return value
}

// Parse splits input into tokens, preserving order.
func Parse(input string, recognizedKeys ...string) []Token {
	recognized := make(map[string]struct{}, len(recognizedKeys))
	for _, key := range recognizedKeys {
		if key = strings.TrimSpace(key); key != "" {
			recognized[key] = struct{}{}
		}
	}

	raw := split(input)
	tokens := make([]Token, 0, len(raw))
	for _, token := range raw {
		if token[0] == quote {
			if value := unquote(token); value != "" {
				tokens = append(tokens, Token{Value: value})
			}
			continue
		}
		candidate, rest, found := strings.Cut(token, ":")
		if !found {
			tokens = append(tokens, Token{Value: unquote(token)})
			continue
		}
		if _, ok := recognized[candidate]; !ok {
			continue
		}
		tokens = append(tokens, Token{Key: candidate, Value: unquote(rest)})
	}
	return tokens
}

// Keys returns the key prefix of every unquoted key:value token in input,
// recognized or not, in order of first appearance. Callers use it to report
// keys that Parse would discard.
func Keys(input string) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, token := range split(input) {
		if token[0] == quote {
			continue
		}
		candidate, _, found := strings.Cut(token, ":")
		if !found {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		keys = append(keys, candidate)
	}
	return keys
}

// split breaks input on whitespace outside double quotes. Raw tokens keep
// their quote characters. An unterminated quote extends to the end of input.
func split(input string) []string {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, current.String())
		}
		current.Reset()
		started = false
	}
	for _, r := range input {
		switch {
		case r == quote:
			quoted = !quoted
			current.WriteRune(r)
			started = true
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()
	return tokens
}

// unquote drops the quote delimiters. The grammar has no escape sequence, so
// every double quote is a delimiter.
func unquote(token string) string {
	if strings.IndexByte(token, quote) < 0 {
		return token
	}
	return strings.ReplaceAll(token, string(quote), "")
}

func needsQuoting(value string) bool {
	if value == "" {
		return true
	}
	return strings.ContainsFunc(value, func(r rune) bool {
		return unicode.IsSpace(r) || r == ':'
	})
}

// FreeText returns the values of keyless tokens, in order.
func FreeText(tokens []Token) []string {
	var out []string
	for _, token := range tokens {
		if !token.HasKey() {
			out = append(out, token.Value)
		}
	}
	return out
}

// Fields collects keyed tokens into a map. When a key repeats the last value
// wins.
func Fields(tokens []Token) map[string]string {
	out := make(map[string]string)
	for _, token := range tokens {
		if token.HasKey() {
			out[token.Key] = token.Value
		}
	}
	return out
}

// Join renders tokens back into a single query string.
func Join(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, token := range tokens {
		parts[i] = token.String()
	}
	return strings.Join(parts, " ")
}
