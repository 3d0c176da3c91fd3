// Package rules layers a fixed Mangle Datalog schema underneath the triple
// store: it derives agent-safety, shape-violation, and precondition-edge
// facts from the same grammar the hand-rolled SPARQL/SHACL engines see,
// as a second, independently-computed cross-check (SPEC_FULL.md §6.4).
package rules

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"

	"github.com/seanchatmangpt/autonomic-cli/internal/semantic"
	"github.com/seanchatmangpt/autonomic-cli/pkg/ontology"
)

// schema declares the base predicates mirroring the triple store's shape
// plus the derived rules named in SPEC_FULL.md §6.4. No predicate in
// pkg/ontology records a role that a verb grants, so precondition_edge
// treats a verb's own required-role set as the role
// set it grants on success -- a deliberate simplification recorded in
// DESIGN.md, not a general role-grant model.
const schema = `
Decl cnv_verb(V).
Decl cnv_has_capability(V, Class, Safety, Stability).
Decl cnv_requires_role(V, R).
Decl cnv_grants_role(V, R).

agent_safe_verb(V) :-
    cnv_has_capability(V, _, Safety, Stability),
    Safety = "AgentSafe",
    Stability != "Experimental",
    Stability != "NonDeterministic".

shape_violation(V, "missing_capability", "cnv:capability") :-
    cnv_verb(V),
    !cnv_has_capability(V, _, _, _).

precondition_edge(V1, V2) :-
    cnv_requires_role(V1, R),
    cnv_grants_role(V2, R),
    V1 != V2.
`

// Engine wraps github.com/google/mangle the way the teacher's
// internal/mangle.Engine does: schema loaded once, facts reloaded on each
// LoadFromStore call, derived predicates read back from the store after
// evaluation materializes them.
type Engine struct {
	mu          sync.Mutex
	store       factstore.FactStoreWithRemove
	programInfo *analysis.ProgramInfo
}

// New compiles the fixed schema and returns a ready, empty-facts Engine.
func New() (*Engine, error) {
	programInfo, err := compileSchema(schema)
	if err != nil {
		return nil, err
	}
	e := &Engine{programInfo: programInfo}
	e.store = factstore.NewSimpleInMemoryStore()
	return e, nil
}

// compileSchema parses and analyzes one Mangle source unit, shared by New
// and ReloadSchema so both go through the same validation path.
func compileSchema(source string) (*analysis.ProgramInfo, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(source)))
	if err != nil {
		return nil, fmt.Errorf("rules: parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("rules: analyze schema: %w", err)
	}
	return programInfo, nil
}

// ReloadSchema recompiles the engine's rule set from source and swaps it
// in atomically. It does not re-derive facts: callers must follow a
// reload with LoadFromStore so the new rules run over current data.
func (e *Engine) ReloadSchema(source string) error {
	programInfo, err := compileSchema(source)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.programInfo = programInfo
	return nil
}

// LoadFromStore clears all facts, re-derives them from the triple store's
// current content, and re-evaluates the rule set. The --graph handler in
// internal/cli calls it on a store freshly built from the registry's
// grammar.
func (e *Engine) LoadFromStore(s *semantic.Store) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store = factstore.NewSimpleInMemoryStore()

	for _, t := range s.ByPredicate(ontology.RDFType) {
		if t.Object.Value != ontology.ClassVerb {
			continue
		}
		e.store.Add(ast.Atom{
			Predicate: ast.PredicateSym{Symbol: "cnv_verb", Arity: 1},
			Args:      []ast.BaseTerm{strConst(t.Subject)},
		})
	}

	for _, capEdge := range s.ByPredicate(ontology.PredHasCapability) {
		verb := capEdge.Subject
		blank := capEdge.Object.Value
		var class, safety, stability string
		for _, t := range s.BySubject(blank) {
			switch t.Predicate {
			case ontology.PredCapabilityClass:
				class = t.Object.Value
			case ontology.PredCapabilitySafety:
				safety = t.Object.Value
			case ontology.PredCapabilityStability:
				stability = t.Object.Value
			}
		}
		e.store.Add(ast.Atom{
			Predicate: ast.PredicateSym{Symbol: "cnv_has_capability", Arity: 4},
			Args:      []ast.BaseTerm{strConst(verb), strConst(class), strConst(safety), strConst(stability)},
		})
	}

	for _, reqEdge := range s.ByPredicate(ontology.PredRequiresRole) {
		role := reqEdge.Object.Value
		e.store.Add(ast.Atom{
			Predicate: ast.PredicateSym{Symbol: "cnv_requires_role", Arity: 2},
			Args:      []ast.BaseTerm{strConst(reqEdge.Subject), strConst(role)},
		})
		e.store.Add(ast.Atom{
			Predicate: ast.PredicateSym{Symbol: "cnv_grants_role", Arity: 2},
			Args:      []ast.BaseTerm{strConst(reqEdge.Subject), strConst(role)},
		})
	}

	if _, err := mengine.EvalProgramWithStats(e.programInfo, e.store); err != nil {
		return fmt.Errorf("rules: eval program: %w", err)
	}
	return nil
}

// AgentSafeVerbs returns every verb subject derived as agent_safe_verb/1.
func (e *Engine) AgentSafeVerbs() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.lookupSym("agent_safe_verb", 1)
	if !ok {
		return nil, fmt.Errorf("rules: predicate agent_safe_verb/1 not declared")
	}
	var out []string
	err := e.store.GetFacts(ast.NewQuery(sym), func(fact ast.Atom) error {
		out = append(out, stringArg(fact.Args[0]))
		return nil
	})
	return out, err
}

// ShapeViolation mirrors shacl.Violation's shape for cross-checking: a
// verb subject flagged by the Datalog layer independently of the SHACL
// validator (SPEC_FULL.md §10 item 12).
type ShapeViolation struct {
	Subject string
	Reason  string
	Path    string
}

// ShapeViolations returns every shape_violation/3 fact.
func (e *Engine) ShapeViolations() ([]ShapeViolation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.lookupSym("shape_violation", 3)
	if !ok {
		return nil, fmt.Errorf("rules: predicate shape_violation/3 not declared")
	}
	var out []ShapeViolation
	err := e.store.GetFacts(ast.NewQuery(sym), func(fact ast.Atom) error {
		out = append(out, ShapeViolation{
			Subject: stringArg(fact.Args[0]),
			Reason:  stringArg(fact.Args[1]),
			Path:    stringArg(fact.Args[2]),
		})
		return nil
	})
	return out, err
}

// PreconditionEdge is one derived V1-requires-what-V2-grants edge, used
// by --graph to draw precondition arrows between verbs.
type PreconditionEdge struct {
	From string
	To   string
}

// PreconditionEdges returns every precondition_edge/2 fact.
func (e *Engine) PreconditionEdges() ([]PreconditionEdge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.lookupSym("precondition_edge", 2)
	if !ok {
		return nil, fmt.Errorf("rules: predicate precondition_edge/2 not declared")
	}
	var out []PreconditionEdge
	err := e.store.GetFacts(ast.NewQuery(sym), func(fact ast.Atom) error {
		out = append(out, PreconditionEdge{From: stringArg(fact.Args[0]), To: stringArg(fact.Args[1])})
		return nil
	})
	return out, err
}

func (e *Engine) lookupSym(symbol string, arity int) (ast.PredicateSym, bool) {
	for sym := range e.programInfo.Decls {
		if sym.Symbol == symbol && sym.Arity == arity {
			return sym, true
		}
	}
	return ast.PredicateSym{}, false
}

func strConst(s string) ast.Constant {
	return ast.Constant{Type: ast.StringType, Symbol: s}
}

func stringArg(t ast.BaseTerm) string {
	if c, ok := t.(ast.Constant); ok {
		return c.Symbol
	}
	return fmt.Sprintf("%v", t)
}
