package semantic

import (
	"testing"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/pkg/ontology"
)

func buildTestGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	g := grammar.New("testapp")
	c := capability.ReadOnly()
	err := g.AddNoun(grammar.Noun{
		Name: "services",
		Verbs: []grammar.Verb{
			{Name: "status", CapabilityContract: &c},
			{Name: "restart", CapabilityContract: &c},
			{Name: "logs", CapabilityContract: &c},
		},
	})
	if err != nil {
		t.Fatalf("AddNoun failed: %v", err)
	}
	return g
}

func TestBuildFromGrammarProducesOneTripleSetPerVerb(t *testing.T) {
	g := buildTestGrammar(t)
	s := BuildFromGrammar(g)

	verbTriples := s.ByPredicate(ontology.RDFType)
	count := 0
	for _, tr := range verbTriples {
		if tr.Object.Value == ontology.ClassVerb {
			count++
		}
	}
	if count != 3 {
		t.Fatalf("expected 3 cnv:Verb triples, got %d", count)
	}
}

func TestSPARQLRoundTripReturnsAllVerbs(t *testing.T) {
	g := buildTestGrammar(t)
	s := BuildFromGrammar(g)

	rows := MustQuery(t, s, `SELECT ?v WHERE { ?v rdf:type cnv:Verb }`)
	if len(rows) != 3 {
		t.Fatalf("expected 3 bindings, got %d: %+v", len(rows), rows)
	}
}

func TestRiskScoreFromTriplesMatchesLiveContract(t *testing.T) {
	g := buildTestGrammar(t)
	s := BuildFromGrammar(g)

	verbIRI := "cnv:testapp/services/status"
	got, err := RiskScoreFromTriples(s, verbIRI)
	if err != nil {
		t.Fatalf("RiskScoreFromTriples failed: %v", err)
	}
	want := capability.ReadOnly().RiskScore()
	if got != want {
		t.Errorf("got risk score %d, want %d", got, want)
	}
}
