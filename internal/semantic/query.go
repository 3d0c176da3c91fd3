package semantic

import (
	"sort"
	"strings"

	"github.com/seanchatmangpt/autonomic-cli/internal/semantic/sparql"
	"github.com/seanchatmangpt/autonomic-cli/pkg/ontology"
)

// Binding maps a SPARQL variable name to the Term it is bound to. A
// variable absent from the map is unbound (relevant after OPTIONAL/UNION).
type Binding map[string]Term

// Row is one output row after projection/aggregation: variable name to
// its rendered value, or a count for COUNT(...) columns.
type Row map[string]interface{}

// Execute runs a parsed SPARQL query against the store and returns
// projected/aggregated rows. An empty WHERE (no groups, no unions)
// yields a single empty binding per the boundary-behavior rule.
func Execute(s *Store, q *sparql.Query) []Row {
	var bindings []Binding

	if len(q.Unions) > 0 {
		var all []Binding
		for _, branch := range q.Unions {
			all = append(all, evalGroups(s, branch.Groups, []Binding{{}})...)
		}
		bindings = all
	} else if len(q.Groups) == 0 {
		bindings = []Binding{{}}
	} else {
		bindings = evalGroups(s, q.Groups, []Binding{{}})
	}

	return project(bindings, q.SelectVars)
}

// evalGroups threads bindings through each group in order: BGP groups
// narrow via join, OPTIONAL groups left-join (a binding that fails to
// extend is kept unchanged).
func evalGroups(s *Store, groups []sparql.PatternGroup, seed []Binding) []Binding {
	current := seed
	for _, g := range groups {
		switch g.Kind {
		case sparql.GroupBGP:
			current = joinGroup(s, g, current)
		case sparql.GroupOptional:
			current = leftJoinGroup(s, g, current)
		}
	}
	return current
}

func joinGroup(s *Store, g sparql.PatternGroup, in []Binding) []Binding {
	out := in
	for _, pat := range orderBySelectivity(s, g.Patterns) {
		var next []Binding
		for _, b := range out {
			next = append(next, extendWithPattern(s, pat, b)...)
		}
		out = next
	}
	for _, f := range g.Filters {
		out = applyFilter(f, out)
	}
	return out
}

func leftJoinGroup(s *Store, g sparql.PatternGroup, in []Binding) []Binding {
	var out []Binding
	for _, b := range in {
		extended := joinGroup(s, g, []Binding{b})
		if len(extended) == 0 {
			out = append(out, b)
			continue
		}
		out = append(out, extended...)
	}
	return out
}

// orderBySelectivity sorts patterns by estimated cardinality ascending
// (smallest candidate set first), tie-broken by bound-position count then
// lexicographically smaller predicate IRI, per the planning rule.
func orderBySelectivity(s *Store, patterns []sparql.TriplePattern) []sparql.TriplePattern {
	type scored struct {
		pat   sparql.TriplePattern
		card  int
		bound int
		pred  string
	}
	scoredList := make([]scored, len(patterns))
	for i, p := range patterns {
		var subj, predStr *string
		var obj *Term
		bound := 0
		if p.Subject.Kind != sparql.TermVar {
			v := termValue(p.Subject)
			subj = &v
			bound++
		}
		if p.Predicate.Kind != sparql.TermVar {
			v := termValue(p.Predicate)
			predStr = &v
			bound++
		}
		if p.Object.Kind != sparql.TermVar {
			t := patternTermToTerm(p.Object)
			obj = &t
			bound++
		}
		card := s.CardinalityEstimate(subj, predStr, obj)
		predLex := ""
		if predStr != nil {
			predLex = *predStr
		}
		scoredList[i] = scored{pat: p, card: card, bound: bound, pred: predLex}
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].card != scoredList[j].card {
			return scoredList[i].card < scoredList[j].card
		}
		if scoredList[i].bound != scoredList[j].bound {
			return scoredList[i].bound > scoredList[j].bound
		}
		return scoredList[i].pred < scoredList[j].pred
	})
	out := make([]sparql.TriplePattern, len(scoredList))
	for i, sc := range scoredList {
		out[i] = sc.pat
	}
	return out
}

func termValue(t sparql.PatternTerm) string {
	if t.Kind == sparql.TermIRI {
		return t.IRI
	}
	return t.Literal
}

func patternTermToTerm(t sparql.PatternTerm) Term {
	if t.Kind == sparql.TermIRI {
		return NewIRI(t.IRI)
	}
	return NewLiteral(t.Literal, "")
}

// extendWithPattern matches one triple pattern against the store, given
// an existing (possibly partial) binding, and returns every extension
// that is consistent with it. Property paths (p* / p+) are evaluated by
// BFS from the bound or candidate subject with a visited set.
func extendWithPattern(s *Store, pat sparql.TriplePattern, b Binding) []Binding {
	if pat.PathOp != sparql.PathNone {
		return extendWithPath(s, pat, b)
	}

	subjBound, subjVal, subjIsVar := resolveTerm(pat.Subject, b)
	predBound, predVal, predIsVar := resolveTerm(pat.Predicate, b)
	objBound, objVal, objIsVar := resolveTerm(pat.Object, b)

	var candidates []Triple
	switch {
	case subjBound && predBound:
		candidates = s.BySubjectPredicate(subjVal.Value, predVal.Value)
	case subjBound:
		candidates = s.BySubject(subjVal.Value)
	case predBound:
		candidates = s.ByPredicate(predVal.Value)
	case objBound && objVal.Kind == IRI:
		candidates = s.ByObjectIRI(objVal.Value)
	default:
		candidates = s.All()
	}

	var out []Binding
	for _, t := range candidates {
		if subjBound && t.Subject != subjVal.Value {
			continue
		}
		if predBound && t.Predicate != predVal.Value {
			continue
		}
		if objBound && !termsEqual(t.Object, objVal) {
			continue
		}
		nb := cloneBinding(b)
		if subjIsVar {
			if !consistentBind(nb, pat.Subject.Var, NewIRI(t.Subject)) {
				continue
			}
		}
		if predIsVar {
			if !consistentBind(nb, pat.Predicate.Var, NewIRI(t.Predicate)) {
				continue
			}
		}
		if objIsVar {
			if !consistentBind(nb, pat.Object.Var, t.Object) {
				continue
			}
		}
		out = append(out, nb)
	}
	return out
}

func extendWithPath(s *Store, pat sparql.TriplePattern, b Binding) []Binding {
	predBound, predVal, _ := resolveTerm(pat.Predicate, b)
	if !predBound {
		return nil
	}
	subjBound, subjVal, _ := resolveTerm(pat.Subject, b)

	var seeds []string
	if subjBound {
		seeds = []string{subjVal.Value}
	} else {
		for _, t := range s.ByPredicate(predVal.Value) {
			seeds = append(seeds, t.Subject)
		}
	}

	visited := make(map[string]bool)
	var reachable []string
	var bfs func(node string)
	bfs = func(node string) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, t := range s.BySubjectPredicate(node, predVal.Value) {
			if t.Object.Kind != IRI {
				continue
			}
			if !visited[t.Object.Value] {
				reachable = append(reachable, t.Object.Value)
			}
			bfs(t.Object.Value)
		}
	}
	for _, seed := range seeds {
		if pat.PathOp == sparql.PathStar && !visited[seed] {
			reachable = append(reachable, seed)
		}
		bfs(seed)
	}

	var out []Binding
	for _, obj := range dedupe(reachable) {
		nb := cloneBinding(b)
		objBound, objVal, objIsVar := resolveTerm(pat.Object, nb)
		if objBound && objVal.Value != obj {
			continue
		}
		if objIsVar {
			if !consistentBind(nb, pat.Object.Var, NewIRI(obj)) {
				continue
			}
		}
		out = append(out, nb)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func resolveTerm(t sparql.PatternTerm, b Binding) (bound bool, val Term, isVar bool) {
	if t.Kind != sparql.TermVar {
		return true, patternTermToTerm(t), false
	}
	if v, ok := b[t.Var]; ok {
		return true, v, true
	}
	return false, Term{}, true
}

func consistentBind(b Binding, varName string, val Term) bool {
	if existing, ok := b[varName]; ok {
		return termsEqual(existing, val)
	}
	b[varName] = val
	return true
}

func termsEqual(a, b Term) bool {
	return a.Kind == b.Kind && a.Value == b.Value && a.Datatype == b.Datatype && a.Lang == b.Lang
}

func cloneBinding(b Binding) Binding {
	nb := make(Binding, len(b)+1)
	for k, v := range b {
		nb[k] = v
	}
	return nb
}

// applyFilter evaluates a FILTER against each binding. FILTER on an
// unbound variable evaluates as false, per the edge-case policy.
func applyFilter(f sparql.FilterExpr, in []Binding) []Binding {
	var out []Binding
	for _, b := range in {
		v, ok := b[f.Var]
		if !ok {
			if f.Op == sparql.FilterBound {
				continue // BOUND(?x) is false, filter drops the row
			}
			continue
		}
		var keep bool
		switch f.Op {
		case sparql.FilterBound:
			keep = true
		case sparql.FilterEq:
			keep = filterEquals(v, f)
		case sparql.FilterNeq:
			keep = !filterEquals(v, f)
		case sparql.FilterContains:
			keep = strings.Contains(v.Value, f.Literal)
		case sparql.FilterStrStarts:
			keep = strings.HasPrefix(v.Value, f.Literal)
		}
		if keep {
			out = append(out, b)
		}
	}
	return out
}

// filterEquals compares lexical form plus datatype only; no numeric
// promotion is performed, matching the edge-case policy's literal
// comparison rule. The filter's literal carries no datatype, so it is
// equal only to an untyped or xsd:string literal of the same lexical
// form. A type mismatch (e.g. comparing a literal against a variable
// bound to an IRI, or against a literal of another datatype) evaluates
// false rather than erroring.
func filterEquals(v Term, f sparql.FilterExpr) bool {
	if !f.HasLit || v.Kind != Literal {
		return false
	}
	if v.Datatype != "" && v.Datatype != ontology.XSDString {
		return false
	}
	return v.Value == f.Literal
}

func project(bindings []Binding, selectVars []sparql.SelectVar) []Row {
	hasAgg := false
	for _, sv := range selectVars {
		if sv.Aggregate != sparql.AggNone {
			hasAgg = true
		}
	}

	if hasAgg {
		row := Row{}
		for _, sv := range selectVars {
			name := sv.Alias
			if name == "" {
				name = sv.Var
			}
			switch sv.Aggregate {
			case sparql.AggCount:
				row[name] = len(bindings)
			default:
				if len(bindings) > 0 {
					row[name] = bindings[0][sv.Var].Value
				}
			}
		}
		return []Row{row}
	}

	rows := make([]Row, 0, len(bindings))
	for _, b := range bindings {
		row := Row{}
		for _, sv := range selectVars {
			if t, ok := b[sv.Var]; ok {
				row[sv.Var] = t.Value
			}
		}
		rows = append(rows, row)
	}
	return rows
}
