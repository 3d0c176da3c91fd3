package semantic

import (
	"testing"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/pkg/ontology"
)

func threeVerbStore(t *testing.T) *Store {
	t.Helper()
	g := grammar.New("demo")
	ro := capability.ReadOnly()
	err := g.AddNoun(grammar.Noun{
		Name: "pods",
		Verbs: []grammar.Verb{
			{Name: "list", CapabilityContract: &ro},
			{Name: "describe", CapabilityContract: &ro},
			{Name: "logs", CapabilityContract: &ro, Help: "stream pod logs"},
		},
	})
	if err != nil {
		t.Fatalf("AddNoun failed: %v", err)
	}
	return BuildFromGrammar(g)
}

func TestExecuteEmptyWhereYieldsOneEmptyRow(t *testing.T) {
	s := New()
	rows := MustQuery(t, s, `SELECT ?x WHERE {  }`)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row for empty WHERE, got %d", len(rows))
	}
}

func TestExecuteEmptyStoreBGPYieldsZeroRows(t *testing.T) {
	s := New()
	rows := MustQuery(t, s, `SELECT ?v WHERE { ?v rdf:type cnv:Verb }`)
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows against empty store, got %d", len(rows))
	}
}

func TestExecuteEmptyStoreCountYieldsOneZeroRow(t *testing.T) {
	s := New()
	rows := MustQuery(t, s, `SELECT (COUNT(?v) AS ?n) WHERE { ?v rdf:type cnv:Verb }`)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row for COUNT over empty store, got %d", len(rows))
	}
	if rows[0]["n"] != 0 {
		t.Errorf("expected count 0, got %v", rows[0]["n"])
	}
}

func TestExecuteThreeVerbsUnderOneNoun(t *testing.T) {
	s := threeVerbStore(t)
	rows := MustQuery(t, s, `SELECT ?v WHERE { ?v rdf:type cnv:Verb }`)
	if len(rows) != 3 {
		t.Fatalf("expected 3 bindings, got %d: %+v", len(rows), rows)
	}
}

func TestExecuteFilterContainsNarrowsResults(t *testing.T) {
	s := threeVerbStore(t)
	rows := MustQuery(t, s, `SELECT ?v WHERE { ?v cnv:name ?n . FILTER(CONTAINS(?n, "desc")) }`)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %+v", len(rows), rows)
	}
}

func TestExecuteOptionalKeepsUnmatchedBindings(t *testing.T) {
	s := threeVerbStore(t)
	rows := MustQuery(t, s, `SELECT ?v ?c WHERE { ?v rdf:type cnv:Verb . OPTIONAL { ?v rdfs:comment ?c } }`)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (left join keeps all verbs), got %d", len(rows))
	}
	withComment := 0
	for _, r := range rows {
		if _, ok := r["c"]; ok {
			withComment++
		}
	}
	if withComment != 1 {
		t.Errorf("expected exactly 1 row with a bound comment, got %d", withComment)
	}
}

func TestExecuteUnionConcatenatesBranches(t *testing.T) {
	s := threeVerbStore(t)
	rows := MustQuery(t, s, `SELECT ?x WHERE { ?x rdf:type cnv:Verb } UNION { ?x rdf:type cnv:Noun }`)
	if len(rows) != 4 {
		t.Fatalf("expected 3 verbs + 1 noun = 4 rows, got %d", len(rows))
	}
}

func TestExecutePropertyPathStarIncludesSeed(t *testing.T) {
	s := New()
	s.Insert(Triple{Subject: "a", Predicate: "next", Object: NewIRI("b")})
	s.Insert(Triple{Subject: "b", Predicate: "next", Object: NewIRI("c")})

	rows := MustQuery(t, s, `SELECT ?n WHERE { <a> <next>* ?n }`)
	// PathStar includes the seed itself plus everything reachable.
	want := map[string]bool{"a": true, "b": true, "c": true}
	if len(rows) != len(want) {
		t.Fatalf("expected %d reachable nodes, got %d: %+v", len(want), len(rows), rows)
	}
}

func TestExecutePropertyPathPlusExcludesSeed(t *testing.T) {
	s := New()
	s.Insert(Triple{Subject: "a", Predicate: ontology.PredHasVerb, Object: NewIRI("b")})
	s.Insert(Triple{Subject: "b", Predicate: ontology.PredHasVerb, Object: NewIRI("c")})

	q := `SELECT ?n WHERE { <a> <` + ontology.PredHasVerb + `>+ ?n }`
	rows := MustQuery(t, s, q)
	for _, r := range rows {
		if r["n"] == "a" {
			t.Errorf("PathPlus should not include the seed node, got row %+v", r)
		}
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 reachable nodes excluding seed, got %d: %+v", len(rows), rows)
	}
}

func TestExecuteFilterOnUnboundVariableDropsRow(t *testing.T) {
	s := threeVerbStore(t)
	rows := MustQuery(t, s, `SELECT ?v ?c WHERE { ?v rdf:type cnv:Verb . OPTIONAL { ?v rdfs:comment ?c } FILTER(BOUND(?c)) }`)
	if len(rows) != 1 {
		t.Fatalf("BOUND(?c) after the optional should keep only the row where ?c got bound, got %d: %+v", len(rows), rows)
	}
}
