// Package sparql implements the SPARQL 1.1 subset named in the data
// model: SELECT ... WHERE { BGP ; FILTER ; OPTIONAL ; UNION ; path* },
// COUNT aggregation, and the CONTAINS/STRSTARTS string functions. There is
// no third-party SPARQL library in the example corpus's dependency
// surface, so this engine is hand-rolled against the stdlib — the one
// deliberate stdlib-only component in the semantic layer, documented in
// the grounding ledger.
package sparql

// PatternTerm is a pattern-position value: a variable, a bound IRI, or a bound
// literal. Exactly one of Var/IRI/Literal is meaningful, selected by Kind.
type TermKind int

const (
	TermVar TermKind = iota
	TermIRI
	TermLiteral
)

type PatternTerm struct {
	Kind     TermKind
	Var      string // meaningful when Kind == TermVar (without leading '?')
	IRI      string // meaningful when Kind == TermIRI (expanded, no prefix)
	Literal  string
	Datatype string
}

// PathOp marks a property-path operator applied to a predicate position.
type PathOp int

const (
	PathNone PathOp = iota
	PathStar        // p*
	PathPlus        // p+
)

// TriplePattern is one BGP line: (subject, predicate, object) with an
// optional path operator on the predicate.
type TriplePattern struct {
	Subject   PatternTerm
	Predicate PatternTerm
	PathOp    PathOp
	Object    PatternTerm
}

// FilterOp names a supported FILTER comparison or string function.
type FilterOp int

const (
	FilterEq FilterOp = iota
	FilterNeq
	FilterContains
	FilterStrStarts
	FilterBound
)

// FilterExpr is one FILTER(...) clause.
type FilterExpr struct {
	Op       FilterOp
	Var      string
	Var2     string // set when comparing two variables
	Literal  string // set when comparing against a literal
	HasVar2  bool
	HasLit   bool
}

// GroupKind distinguishes a plain BGP group from an OPTIONAL group.
type GroupKind int

const (
	GroupBGP GroupKind = iota
	GroupOptional
)

// PatternGroup is one `{ ... }` block: a BGP plus any FILTERs local to it.
type PatternGroup struct {
	Kind     GroupKind
	Patterns []TriplePattern
	Filters  []FilterExpr
}

// UnionBranch is one side of a UNION { ... } { ... } clause.
type UnionBranch struct {
	Groups []PatternGroup
}

// Aggregate names a supported SELECT-list aggregate function.
type Aggregate int

const (
	AggNone Aggregate = iota
	AggCount
)

// SelectVar is one entry in the SELECT list: either a plain variable or
// an aggregate applied to one.
type SelectVar struct {
	Var       string
	Aggregate Aggregate
	Alias     string // for COUNT(?x) AS ?n; empty means no AS clause
}

// Query is the parsed representation of one SELECT query.
type Query struct {
	SelectVars []SelectVar
	Groups     []PatternGroup
	Unions     []UnionBranch
}
