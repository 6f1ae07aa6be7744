package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FragmentKind is the closed set of node kinds a Query is built from:
// raw dialect text, a bound parameter, a validated identifier spliced
// directly into the text, a literal value spliced directly into the
// text, and a parenthesized subquery.
type FragmentKind int

const (
	FragText FragmentKind = iota
	FragParam
	FragIdent
	FragLiteral
	FragSubquery
)

// Fragment is one node of a Query's AST.
type Fragment struct {
	Kind  FragmentKind
	Text  string // FragText, FragIdent
	Value any    // FragParam, FragLiteral
	Sub   *Query // FragSubquery
}

// Query is a dialect-neutral SQL statement assembled from Fragments.
// Build a Query with New, annotating each non-literal-text part with
// Param, Ident, or Literal so the builder knows how to render it:
// Param becomes a placeholder with a bound argument (the safe default
// for values), Ident is validated and spliced in literally (for
// identifiers a placeholder cannot stand in for — table and column
// names), and Literal is rendered directly into the text for engines
// or statement positions that reject a placeholder (e.g. LIMIT in
// some dialects).
//
//	q := store.New("SELECT * FROM ", store.Ident(collection),
//		" WHERE category = ", store.Param(category),
//		" LIMIT ", store.Literal(limit))
type Query struct {
	Fragments []Fragment
}

type paramTag struct{ v any }
type identTag struct{ name string }
type literalTag struct{ v any }

// Param marks v as a bound parameter rendered as a placeholder.
func Param(v any) any { return paramTag{v} }

// Ident marks name as an identifier (table, column, index name)
// spliced literally into the rendered text after validation. Never
// pass user input as name unless it is first checked against a known
// set of collection/column names — Ident bypasses parameter binding.
func Ident(name string) any { return identTag{name} }

// Literal marks v as a literal value rendered directly into the text
// rather than bound as a parameter.
func Literal(v any) any { return literalTag{v} }

// New builds a Query from parts. Each part is one of: a string
// (spliced in as raw dialect text), the result of Param, Ident, or
// Literal, or a *Query (embedded as a parenthesized subquery). Any
// other type is treated as an implicit Param, mirroring the common
// case of passing a plain Go value.
func New(parts ...any) *Query {
	q := &Query{}
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			q.Fragments = append(q.Fragments, Fragment{Kind: FragText, Text: v})
		case paramTag:
			q.Fragments = append(q.Fragments, Fragment{Kind: FragParam, Value: v.v})
		case identTag:
			q.Fragments = append(q.Fragments, Fragment{Kind: FragIdent, Text: v.name})
		case literalTag:
			q.Fragments = append(q.Fragments, Fragment{Kind: FragLiteral, Value: v.v})
		case *Query:
			q.Fragments = append(q.Fragments, Fragment{Kind: FragSubquery, Sub: v})
		default:
			q.Fragments = append(q.Fragments, Fragment{Kind: FragParam, Value: v})
		}
	}
	return q
}

// identPattern admits dotted, possibly-quoted-free SQL identifiers:
// letters, digits, and underscores, not starting with a digit, joined
// by at most one dot (table.column).
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Build renders q into dialect SQL text (using "?" as the placeholder
// marker, the convention database/sql drivers including
// mattn/go-sqlite3 accept) and the ordered slice of bound arguments
// for the FragParam fragments encountered.
func (q *Query) Build() (string, []any, error) {
	var sb strings.Builder
	var args []any
	if err := q.render(&sb, &args); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func (q *Query) render(sb *strings.Builder, args *[]any) error {
	for _, f := range q.Fragments {
		switch f.Kind {
		case FragText:
			sb.WriteString(f.Text)
		case FragParam:
			sb.WriteString("?")
			*args = append(*args, f.Value)
		case FragIdent:
			ident, err := quoteIdent(f.Text)
			if err != nil {
				return err
			}
			sb.WriteString(ident)
		case FragLiteral:
			lit, err := renderLiteral(f.Value)
			if err != nil {
				return err
			}
			sb.WriteString(lit)
		case FragSubquery:
			if f.Sub == nil {
				return fmt.Errorf("store: nil subquery fragment")
			}
			sb.WriteByte('(')
			if err := f.Sub.render(sb, args); err != nil {
				return err
			}
			sb.WriteByte(')')
		default:
			return fmt.Errorf("store: unknown fragment kind %d", f.Kind)
		}
	}
	return nil
}

func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("store: %q is not a valid identifier", name)
	}
	parts := strings.SplitN(name, ".", 2)
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, "."), nil
}

func renderLiteral(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'", nil
	default:
		return "", fmt.Errorf("store: literal of type %T is not supported, use Param instead", v)
	}
}
