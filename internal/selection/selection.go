package selection

import (
	"fmt"
	"strings"
	"time"

	"scriptorium/internal/query"
	"scriptorium/internal/queue"
	"scriptorium/internal/textutil"
	"scriptorium/internal/timespan"
)

// Recognized selection keys.
const (
	KeyIdentifier = "identifier"
	KeyTitle      = "title"
	KeyImported   = "imported"
)

// Keys lists the recognized selection keys in documentation order.
var Keys = []string{KeyIdentifier, KeyTitle, KeyImported}

// Compile parses input and builds a filter. now anchors relative keys such as
// imported. An empty query selects every work.
func Compile(input string, now time.Time) (queue.WorkFilter, error) {
	return CompileTokens(query.Parse(input, Keys...), now)
}

// CompileTokens builds a filter from already parsed tokens.
func CompileTokens(tokens []query.Token, now time.Time) (queue.WorkFilter, error) {
	var (
		clauses []string
		args    []any
	)
	for _, token := range tokens {
		switch token.Key {
		case KeyIdentifier:
			clauses = append(clauses, "id = ?")
			args = append(args, textutil.NormalizeIdentifier(token.Value))
		case KeyTitle:
			clauses = append(clauses, `title LIKE ? ESCAPE '\'`)
			args = append(args, likePattern(token.Value))
		case KeyImported:
			span, err := timespan.Duration(token.Value)
			if err != nil {
				return queue.WorkFilter{}, fmt.Errorf("%s:%s: %w", KeyImported, token.Value, err)
			}
			clauses = append(clauses, "created_at >= ?")
			args = append(args, queue.FormatTimestamp(now.Add(-span)))
		case "":
			pattern := likePattern(token.Value)
			clauses = append(clauses, freeTextClause)
			args = append(args, pattern, pattern, pattern)
		}
	}
	return queue.WorkFilter{Where: strings.Join(clauses, " AND "), Args: args}, nil
}

// freeTextClause matches identifier, title, or any decoded metadata value.
const freeTextClause = `(id LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\' OR ` +
	`EXISTS (SELECT 1 FROM json_each(works.metadata_json) WHERE json_each.value LIKE ? ESCAPE '\'))`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
