// Package negotiate implements the Version Negotiator (C8): grammar-diff
// computation and compatibility classification across runtime versions.
// Grounded on the grammar package's own tree-walking idiom (IterVerbs) and
// the capability lattice's classRank-equivalent ordering rule, since the
// teacher repo has no direct analog for schema diffing.
package negotiate

import (
	"strings"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
)

// Severity classifies one change in a GrammarDelta.
type Severity int

const (
	Compatible Severity = iota
	Ambiguous
	Breaking
)

func (s Severity) String() string {
	switch s {
	case Compatible:
		return "Compatible"
	case Ambiguous:
		return "Ambiguous"
	case Breaking:
		return "Breaking"
	default:
		return "Unknown"
	}
}

// Change describes one difference between two grammars.
type Change struct {
	Kind        string // "noun_added", "noun_removed", "verb_added", "verb_removed", "verb_renamed", "argument_added", "argument_removed", "argument_required", "argument_optional", "argument_type_changed", "capability_widened", "capability_narrowed"
	Path        string // dotted verb path, e.g. "services.status"
	Detail      string
	Severity    Severity
}

// GrammarDelta is the full set of changes between two grammar versions.
type GrammarDelta struct {
	Changes []Change
}

// HasBreaking reports whether the delta contains any Breaking change.
func (d GrammarDelta) HasBreaking() bool {
	for _, c := range d.Changes {
		if c.Severity == Breaking {
			return true
		}
	}
	return false
}

// BreakingPaths returns the verb paths touched by Breaking changes.
func (d GrammarDelta) BreakingPaths() []string {
	var out []string
	for _, c := range d.Changes {
		if c.Severity == Breaking {
			out = append(out, c.Path)
		}
	}
	return out
}

func verbKey(path []string, v *grammar.Verb) string {
	return strings.Join(append(append([]string{}, path...), v.Name), ".")
}

// indexedVerb pairs a verb with the dotted key used to match it across
// grammar versions.
type indexedVerb struct {
	key  string
	path []string
	verb *grammar.Verb
}

func indexVerbs(g *grammar.Grammar) map[string]indexedVerb {
	out := make(map[string]indexedVerb)
	g.IterVerbs(func(path []string, v *grammar.Verb) {
		k := verbKey(path, v)
		out[k] = indexedVerb{key: k, path: path, verb: v}
	})
	return out
}

// Diff computes the GrammarDelta from v1 to v2.
//
// Rename detection is resolved per the metadata hint convention: a verb in
// v2 whose Metadata["renamed_from"] names a verb key absent from v2 but
// present in v1 is treated as a rename (Ambiguous) rather than a
// removal+addition pair. Without that hint, removal and addition are
// reported as two independent events per the spec's documented fallback.
func Diff(v1, v2 *grammar.Grammar) GrammarDelta {
	old := indexVerbs(v1)
	next := indexVerbs(v2)

	renamedFrom := make(map[string]string) // old key -> new key
	renamedTo := make(map[string]string)   // new key -> old key
	for k, iv := range next {
		if from, ok := iv.verb.Metadata["renamed_from"]; ok {
			if _, existedBefore := old[from]; existedBefore {
				renamedFrom[from] = k
				renamedTo[k] = from
			}
		}
	}

	var changes []Change

	for k, iv := range old {
		if newKey, renamed := renamedFrom[k]; renamed {
			changes = append(changes, Change{
				Kind:     "verb_renamed",
				Path:     k,
				Detail:   "renamed to " + newKey,
				Severity: Ambiguous,
			})
			continue
		}
		if _, stillPresent := next[k]; !stillPresent {
			changes = append(changes, Change{
				Kind:     "verb_removed",
				Path:     k,
				Detail:   "verb removed",
				Severity: Breaking,
			})
			continue
		}
		changes = append(changes, diffVerb(iv, next[k])...)
	}

	for k := range next {
		if _, wasRename := renamedTo[k]; wasRename {
			continue
		}
		if _, existedBefore := old[k]; !existedBefore {
			changes = append(changes, Change{
				Kind:     "verb_added",
				Path:     k,
				Detail:   "verb added",
				Severity: Compatible,
			})
		}
	}

	oldNounNames := nounNameSet(v1.Nouns)
	newNounNames := nounNameSet(v2.Nouns)
	for name := range oldNounNames {
		if !newNounNames[name] {
			changes = append(changes, Change{Kind: "noun_removed", Path: name, Severity: Breaking})
		}
	}
	for name := range newNounNames {
		if !oldNounNames[name] {
			changes = append(changes, Change{Kind: "noun_added", Path: name, Severity: Compatible})
		}
	}

	return GrammarDelta{Changes: changes}
}

func nounNameSet(nouns []grammar.Noun) map[string]bool {
	out := make(map[string]bool, len(nouns))
	for _, n := range nouns {
		out[n.Name] = true
	}
	return out
}

func diffVerb(oldV, newV indexedVerb) []Change {
	var changes []Change
	path := oldV.key

	oldArgs := argByName(oldV.verb.Arguments)
	newArgs := argByName(newV.verb.Arguments)

	for name, a := range oldArgs {
		b, stillPresent := newArgs[name]
		if !stillPresent {
			changes = append(changes, Change{Kind: "argument_removed", Path: path, Detail: name, Severity: Breaking})
			continue
		}
		if !a.Required && b.Required {
			changes = append(changes, Change{Kind: "argument_required", Path: path, Detail: name, Severity: Breaking})
		} else if a.Required && !b.Required {
			changes = append(changes, Change{Kind: "argument_optional", Path: path, Detail: name, Severity: Compatible})
		}
		if a.ArgType != b.ArgType {
			changes = append(changes, Change{Kind: "argument_type_changed", Path: path, Detail: name, Severity: Breaking})
		}
	}
	for name := range newArgs {
		if _, existedBefore := oldArgs[name]; !existedBefore {
			changes = append(changes, Change{Kind: "argument_added", Path: path, Detail: name, Severity: Compatible})
		}
	}

	if oldV.verb.CapabilityContract != nil && newV.verb.CapabilityContract != nil {
		oldClass := oldV.verb.CapabilityContract.Class
		newClass := newV.verb.CapabilityContract.Class
		if classRank(newClass) > classRank(oldClass) {
			changes = append(changes, Change{Kind: "capability_widened", Path: path, Severity: Breaking})
		} else if classRank(newClass) < classRank(oldClass) {
			changes = append(changes, Change{Kind: "capability_narrowed", Path: path, Severity: Compatible})
		}
	}

	return changes
}

func argByName(args []grammar.Argument) map[string]grammar.Argument {
	out := make(map[string]grammar.Argument, len(args))
	for _, a := range args {
		out[a.Name] = a
	}
	return out
}

// classRank mirrors capability.classRank's total order without reaching
// into that package's unexported helper.
func classRank(c capability.Class) int {
	switch c {
	case capability.Pure:
		return 0
	case capability.ReadOnlyFS:
		return 1
	case capability.ReadWriteFS, capability.Network, capability.Environment:
		return 2
	case capability.Subprocess:
		return 3
	case capability.Dangerous:
		return 4
	default:
		return 4
	}
}

// CompatibilityLevel governs how Negotiate treats Breaking changes.
type CompatibilityLevel int

const (
	Strict CompatibilityLevel = iota
	Lenient
)

// Request is the caller's negotiation input.
type Request struct {
	KnownVersion         string
	RequiredCapabilities []string // verb dotted-keys the caller actually invokes
	CompatibilityLevel   CompatibilityLevel
}

// Outcome is the negotiation result.
type Outcome struct {
	CurrentVersion string
	Compatible     bool
	Warnings       []string
}

// Negotiate evaluates a Request's compatibility against the delta from the
// caller's known grammar to the current one. Strict rejects any Breaking
// change outright. Lenient downgrades a Breaking change to a warning only
// when the caller's RequiredCapabilities do not include the affected path.
func Negotiate(delta GrammarDelta, currentVersion string, req Request) Outcome {
	required := make(map[string]bool, len(req.RequiredCapabilities))
	for _, c := range req.RequiredCapabilities {
		required[c] = true
	}

	out := Outcome{CurrentVersion: currentVersion, Compatible: true}

	for _, c := range delta.Changes {
		if c.Severity != Breaking {
			continue
		}
		switch req.CompatibilityLevel {
		case Strict:
			out.Compatible = false
			out.Warnings = append(out.Warnings, "breaking change at "+c.Path+": "+c.Kind)
		case Lenient:
			if required[c.Path] {
				out.Compatible = false
				out.Warnings = append(out.Warnings, "breaking change at "+c.Path+" affects a required capability: "+c.Kind)
			} else {
				out.Warnings = append(out.Warnings, "breaking change at "+c.Path+" (not required by caller): "+c.Kind)
			}
		}
	}
	return out
}
