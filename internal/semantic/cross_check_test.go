package semantic_test

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/internal/semantic"
	"github.com/seanchatmangpt/autonomic-cli/internal/semantic/rules"
	"github.com/seanchatmangpt/autonomic-cli/internal/semantic/shacl"
	"github.com/seanchatmangpt/autonomic-cli/pkg/ontology"
)

// TestShaclAndRulesAgreeOnMissingCapabilityViolations is the direct
// side-by-side cross-check named in SPEC_FULL.md's testable properties:
// the hand-rolled SHACL validator and the independently-evaluated Mangle
// rule set must flag the exact same set of focus nodes as violating the
// "every verb carries a capability contract" constraint, computed two
// different ways over the same exported triples.
func TestShaclAndRulesAgreeOnMissingCapabilityViolations(t *testing.T) {
	g := grammar.New("demo")
	ro := capability.ReadOnly()
	if err := g.AddNoun(grammar.Noun{
		Name: "pods",
		Verbs: []grammar.Verb{
			{Name: "list", CapabilityContract: &ro},
			{Name: "exec"}, // no contract: both engines must flag this
		},
	}); err != nil {
		t.Fatalf("AddNoun failed: %v", err)
	}
	store := semantic.BuildFromGrammar(g)

	capabilityShape := shacl.Shape{
		Name:        "VerbHasCapabilityShape",
		TargetClass: ontology.ClassVerb,
		PropertyConstraints: []shacl.PropertyConstraint{
			{Path: ontology.PredHasCapability, MinCount: 1},
		},
	}
	shaclViolations := shacl.Validate(store, []shacl.Shape{capabilityShape})
	shaclFocusNodes := focusNodeSet(shaclViolations)

	engine, err := rules.New()
	if err != nil {
		t.Fatalf("rules.New() error = %v", err)
	}
	if err := engine.LoadFromStore(store); err != nil {
		t.Fatalf("LoadFromStore() error = %v", err)
	}
	ruleViolations, err := engine.ShapeViolations()
	if err != nil {
		t.Fatalf("ShapeViolations() error = %v", err)
	}
	ruleFocusNodes := ruleSubjectSet(ruleViolations)

	want := []string{"cnv:demo/pods/exec"}
	if diff := cmp.Diff(want, shaclFocusNodes); diff != "" {
		t.Errorf("shacl focus nodes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(shaclFocusNodes, ruleFocusNodes); diff != "" {
		t.Errorf("shacl and rules disagree (-shacl +rules):\n%s", diff)
	}
}

func focusNodeSet(violations []shacl.Violation) []string {
	var out []string
	for _, v := range violations {
		out = append(out, v.FocusNode)
	}
	sort.Strings(out)
	return out
}

func ruleSubjectSet(violations []rules.ShapeViolation) []string {
	var out []string
	for _, v := range violations {
		out = append(out, v.Subject)
	}
	sort.Strings(out)
	return out
}
