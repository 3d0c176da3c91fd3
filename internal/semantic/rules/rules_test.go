package rules

import (
	"sort"
	"testing"

	"go.uber.org/goleak"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/internal/semantic"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func demoGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	g := grammar.New("demo")
	ro := capability.ReadOnly()
	experimental := capability.New(capability.Network, capability.Medium, capability.Experimental, capability.AgentSafe)
	if err := g.AddNoun(grammar.Noun{
		Name: "pods",
		Verbs: []grammar.Verb{
			{Name: "list", CapabilityContract: &ro},
			{Name: "tail", CapabilityContract: &experimental},
		},
	}); err != nil {
		t.Fatalf("AddNoun failed: %v", err)
	}
	return g
}

func TestNewCompilesFixedSchema(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e == nil {
		t.Fatal("New() returned nil engine")
	}
}

func TestAgentSafeVerbExcludesExperimental(t *testing.T) {
	g := demoGrammar(t)
	store := semantic.BuildFromGrammar(g)

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.LoadFromStore(store); err != nil {
		t.Fatalf("LoadFromStore() error = %v", err)
	}

	safe, err := e.AgentSafeVerbs()
	if err != nil {
		t.Fatalf("AgentSafeVerbs() error = %v", err)
	}
	if len(safe) != 1 {
		t.Fatalf("expected exactly 1 agent-safe verb, got %d: %+v", len(safe), safe)
	}
	if safe[0] != "cnv:demo/pods/list" {
		t.Errorf("expected cnv:demo/pods/list, got %q", safe[0])
	}
}

func TestShapeViolationForVerbMissingCapability(t *testing.T) {
	store := semantic.New()
	store.Insert(semantic.Triple{Subject: "cnv:demo/pods/broken", Predicate: "http://www.w3.org/1999/02/22-rdf-syntax-ns#type", Object: semantic.NewIRI("https://cnv.dev/ontology#Verb")})

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.LoadFromStore(store); err != nil {
		t.Fatalf("LoadFromStore() error = %v", err)
	}

	violations, err := e.ShapeViolations()
	if err != nil {
		t.Fatalf("ShapeViolations() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d: %+v", len(violations), violations)
	}
	if violations[0].Subject != "cnv:demo/pods/broken" {
		t.Errorf("unexpected violation subject: %q", violations[0].Subject)
	}
}

func TestPreconditionEdgesFromSharedRoles(t *testing.T) {
	g := grammar.New("demo")
	admin := capability.New(capability.Subprocess, capability.Medium, capability.Stable, capability.HumanReviewRequired)
	admin.RequiredRoles = []string{"admin"}
	viewer := capability.ReadOnly()
	viewer.RequiredRoles = []string{"admin"}
	if err := g.AddNoun(grammar.Noun{
		Name: "cluster",
		Verbs: []grammar.Verb{
			{Name: "drain", CapabilityContract: &admin},
			{Name: "cordon", CapabilityContract: &viewer},
		},
	}); err != nil {
		t.Fatalf("AddNoun failed: %v", err)
	}
	store := semantic.BuildFromGrammar(g)

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.LoadFromStore(store); err != nil {
		t.Fatalf("LoadFromStore() error = %v", err)
	}

	edges, err := e.PreconditionEdges()
	if err != nil {
		t.Fatalf("PreconditionEdges() error = %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 directed edges (drain<->cordon over shared role), got %d: %+v", len(edges), edges)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].From < edges[j].From })
	if edges[0].From == edges[0].To {
		t.Errorf("precondition_edge must exclude self-edges")
	}
}

func TestLoadFromStoreIsIdempotentAcrossReloads(t *testing.T) {
	g := demoGrammar(t)
	store := semantic.BuildFromGrammar(g)

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.LoadFromStore(store); err != nil {
		t.Fatalf("first LoadFromStore() error = %v", err)
	}
	first, _ := e.AgentSafeVerbs()

	if err := e.LoadFromStore(store); err != nil {
		t.Fatalf("second LoadFromStore() error = %v", err)
	}
	second, _ := e.AgentSafeVerbs()

	if len(first) != len(second) {
		t.Fatalf("fact count changed across reloads: %d vs %d", len(first), len(second))
	}
}
