package sparql

import (
	"fmt"
	"strings"
)

// ErrUnknownPrefix is returned when a query references a namespace prefix
// the store's namespace table does not recognize.
type ErrUnknownPrefix struct{ Prefix string }

func (e *ErrUnknownPrefix) Error() string { return fmt.Sprintf("sparql: unknown prefix %q", e.Prefix) }

// ErrParse wraps a syntax error with the offending token context.
type ErrParse struct{ Msg string }

func (e *ErrParse) Error() string { return "sparql: parse error: " + e.Msg }

// Namespaces maps a prefix (without trailing ':') to its expansion IRI.
type Namespaces map[string]string

// DefaultNamespaces returns the fixed namespace table from the data
// model's RDF section.
func DefaultNamespaces() Namespaces {
	return Namespaces{
		"cnv":  "https://cnv.dev/ontology#",
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
		"sh":   "http://www.w3.org/ns/shacl#",
		"xsd":  "http://www.w3.org/2001/XMLSchema#",
	}
}

type tokenizer struct {
	tokens []string
	pos    int
}

// tokenize performs a simple whitespace/punctuation split sufficient for
// this subset: outside string literals and <...> IRIs, braces, dots,
// commas, and parens are always their own tokens.
func tokenize(q string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	inString := false
	inIRI := false
	for _, r := range q {
		switch {
		case r == '"':
			cur.WriteRune(r)
			inString = !inString
		case inString:
			cur.WriteRune(r)
		case r == '<' || r == '>':
			cur.WriteRune(r)
			inIRI = r == '<'
		case inIRI:
			cur.WriteRune(r)
		case r == '{' || r == '}' || r == '.' || r == '(' || r == ')' || r == ',':
			flush()
			out = append(out, string(r))
		case r == ' ' || r == '\n' || r == '\t' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func newTokenizer(q string) *tokenizer { return &tokenizer{tokens: tokenize(q)} }

func (t *tokenizer) peek() string {
	if t.pos >= len(t.tokens) {
		return ""
	}
	return t.tokens[t.pos]
}

func (t *tokenizer) next() string {
	tok := t.peek()
	t.pos++
	return tok
}

func (t *tokenizer) expect(tok string) error {
	got := t.next()
	if !strings.EqualFold(got, tok) {
		return &ErrParse{Msg: fmt.Sprintf("expected %q, got %q", tok, got)}
	}
	return nil
}

// Parse parses a SELECT query string against the given namespace table.
func Parse(query string, ns Namespaces) (*Query, error) {
	t := newTokenizer(query)
	if err := t.expect("SELECT"); err != nil {
		return nil, err
	}

	var selectVars []SelectVar
	for {
		tok := t.peek()
		if strings.EqualFold(tok, "WHERE") {
			break
		}
		if tok == "" {
			return nil, &ErrParse{Msg: "unexpected end of query before WHERE"}
		}
		if tok == "(" {
			t.next()
			aggName := t.next()
			if err := t.expect("("); err != nil {
				return nil, err
			}
			v := t.next()
			if err := t.expect(")"); err != nil {
				return nil, err
			}
			var alias string
			if strings.EqualFold(t.peek(), "AS") {
				t.next()
				alias = strings.TrimPrefix(t.next(), "?")
			}
			if err := t.expect(")"); err != nil {
				return nil, err
			}
			agg := AggNone
			if strings.EqualFold(aggName, "COUNT") {
				agg = AggCount
			}
			selectVars = append(selectVars, SelectVar{Var: strings.TrimPrefix(v, "?"), Aggregate: agg, Alias: alias})
			continue
		}
		selectVars = append(selectVars, SelectVar{Var: strings.TrimPrefix(tok, "?")})
		t.next()
	}

	if err := t.expect("WHERE"); err != nil {
		return nil, err
	}

	q := &Query{SelectVars: selectVars}
	groups, unions, err := parseBraceBody(t, ns)
	if err != nil {
		return nil, err
	}
	q.Groups = groups
	q.Unions = unions
	return q, nil
}

// parseBraceBody parses a `{ ... }` body, splitting on UNION into
// multiple branches when present. When there is no UNION, the body is
// returned as a sequence of PatternGroups (plain BGP plus any OPTIONAL
// sub-groups encountered).
func parseBraceBody(t *tokenizer, ns Namespaces) ([]PatternGroup, []UnionBranch, error) {
	if err := t.expect("{"); err != nil {
		return nil, nil, err
	}

	var groups []PatternGroup
	current := PatternGroup{Kind: GroupBGP}

	flushCurrent := func() {
		if len(current.Patterns) > 0 || len(current.Filters) > 0 {
			groups = append(groups, current)
		}
		current = PatternGroup{Kind: GroupBGP}
	}

	for {
		tok := t.peek()
		switch {
		case tok == "}":
			t.next()
			flushCurrent()
			if strings.EqualFold(t.peek(), "UNION") {
				t.next()
				rightGroups, _, err := parseBraceBody(t, ns)
				if err != nil {
					return nil, nil, err
				}
				leftBranch := UnionBranch{Groups: groups}
				rightBranch := UnionBranch{Groups: rightGroups}
				return nil, []UnionBranch{leftBranch, rightBranch}, nil
			}
			return groups, nil, nil
		case tok == "":
			return nil, nil, &ErrParse{Msg: "unexpected end of query inside group"}
		case strings.EqualFold(tok, "FILTER"):
			t.next()
			f, err := parseFilter(t)
			if err != nil {
				return nil, nil, err
			}
			current.Filters = append(current.Filters, f)
		case strings.EqualFold(tok, "OPTIONAL"):
			t.next()
			optGroups, _, err := parseBraceBody(t, ns)
			if err != nil {
				return nil, nil, err
			}
			flushCurrent()
			for _, g := range optGroups {
				g.Kind = GroupOptional
				groups = append(groups, g)
			}
		case tok == ".":
			t.next()
		default:
			pat, err := parseTriplePattern(t, ns)
			if err != nil {
				return nil, nil, err
			}
			current.Patterns = append(current.Patterns, pat)
		}
	}
}

func parseTriplePattern(t *tokenizer, ns Namespaces) (TriplePattern, error) {
	s, err := parseTerm(t.next(), ns)
	if err != nil {
		return TriplePattern{}, err
	}
	predTok := t.next()
	pathOp := PathNone
	if strings.HasSuffix(predTok, "*") {
		pathOp = PathStar
		predTok = strings.TrimSuffix(predTok, "*")
	} else if strings.HasSuffix(predTok, "+") {
		pathOp = PathPlus
		predTok = strings.TrimSuffix(predTok, "+")
	}
	p, err := parseTerm(predTok, ns)
	if err != nil {
		return TriplePattern{}, err
	}
	o, err := parseTerm(t.next(), ns)
	if err != nil {
		return TriplePattern{}, err
	}
	return TriplePattern{Subject: s, Predicate: p, PathOp: pathOp, Object: o}, nil
}

func parseTerm(tok string, ns Namespaces) (PatternTerm, error) {
	switch {
	case strings.HasPrefix(tok, "?"):
		return PatternTerm{Kind: TermVar, Var: strings.TrimPrefix(tok, "?")}, nil
	case strings.HasPrefix(tok, "\""):
		lit := strings.Trim(tok, "\"")
		return PatternTerm{Kind: TermLiteral, Literal: lit}, nil
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return PatternTerm{Kind: TermIRI, IRI: strings.TrimSuffix(strings.TrimPrefix(tok, "<"), ">")}, nil
	case strings.Contains(tok, ":"):
		parts := strings.SplitN(tok, ":", 2)
		expansion, ok := ns[parts[0]]
		if !ok {
			return PatternTerm{}, &ErrUnknownPrefix{Prefix: parts[0]}
		}
		return PatternTerm{Kind: TermIRI, IRI: expansion + parts[1]}, nil
	default:
		return PatternTerm{}, &ErrParse{Msg: fmt.Sprintf("unrecognized term %q", tok)}
	}
}

func parseFilter(t *tokenizer) (FilterExpr, error) {
	if err := t.expect("("); err != nil {
		return FilterExpr{}, err
	}
	first := t.next()

	if strings.EqualFold(first, "CONTAINS") || strings.EqualFold(first, "STRSTARTS") {
		if err := t.expect("("); err != nil {
			return FilterExpr{}, err
		}
		v := strings.TrimPrefix(t.next(), "?")
		if err := t.expect(","); err != nil {
			return FilterExpr{}, err
		}
		lit := strings.Trim(t.next(), "\"")
		if err := t.expect(")"); err != nil {
			return FilterExpr{}, err
		}
		if err := t.expect(")"); err != nil {
			return FilterExpr{}, err
		}
		op := FilterContains
		if strings.EqualFold(first, "STRSTARTS") {
			op = FilterStrStarts
		}
		return FilterExpr{Op: op, Var: v, Literal: lit, HasLit: true}, nil
	}

	if strings.EqualFold(first, "BOUND") {
		if err := t.expect("("); err != nil {
			return FilterExpr{}, err
		}
		v := strings.TrimPrefix(t.next(), "?")
		if err := t.expect(")"); err != nil {
			return FilterExpr{}, err
		}
		if err := t.expect(")"); err != nil {
			return FilterExpr{}, err
		}
		return FilterExpr{Op: FilterBound, Var: v}, nil
	}

	v := strings.TrimPrefix(first, "?")
	opTok := t.next()
	rhs := t.next()
	if err := t.expect(")"); err != nil {
		return FilterExpr{}, err
	}

	op := FilterEq
	if opTok == "!=" {
		op = FilterNeq
	}

	if strings.HasPrefix(rhs, "?") {
		return FilterExpr{Op: op, Var: v, Var2: strings.TrimPrefix(rhs, "?"), HasVar2: true}, nil
	}
	return FilterExpr{Op: op, Var: v, Literal: strings.Trim(rhs, "\""), HasLit: true}, nil
}
