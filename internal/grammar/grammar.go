// Package grammar defines the typed tree of nouns, verbs, and arguments
// that forms the single source of truth for the CLI parser, the
// introspection views, and the RDF ontology (see internal/semantic).
package grammar

import (
	"fmt"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
)

// ArgKind distinguishes positional arguments from named (flag) arguments.
type ArgKind int

const (
	// Named is a flag-style argument (--foo, -f).
	Named ArgKind = iota
	// Positional is an index-addressed argument.
	Positional
)

func (k ArgKind) String() string {
	if k == Positional {
		return "positional"
	}
	return "named"
}

// Argument describes one parameter of a Verb.
type Argument struct {
	Name           string
	Short          string
	Long           string
	Kind           ArgKind
	Index          int // meaningful only when Kind == Positional
	ArgType        string
	Help           string
	Required       bool
	Default        string
	HasDefault     bool
	EnvVar         string
	ValueName      string
	PossibleValues []string
	Multiple       bool
	Group          string
	Requires       []string
	ConflictsWith  []string
}

// Verb is a single invocable action under a Noun.
type Verb struct {
	Name                string
	NounPath            []string
	Help                string
	Arguments           []Argument
	Aliases             []string
	Deprecated          bool
	DeprecationMessage  string
	CapabilityContract  *capability.Contract
	Metadata            map[string]string
}

// Noun is a command group: a named subtree of verbs and sub-nouns.
type Noun struct {
	Name     string
	Help     string
	Verbs    []Verb
	SubNouns []Noun
	Metadata map[string]string
}

// Grammar is the root of the command tree for one application.
type Grammar struct {
	AppName    string
	AppVersion string
	Nouns      []Noun
}

// New creates an empty grammar for the given application name.
func New(appName string) *Grammar {
	return &Grammar{AppName: appName, Nouns: []Noun{}}
}

// Errors returned by grammar mutation and lookup operations.
var (
	ErrDuplicateName = fmt.Errorf("duplicate name")
	ErrInvalidIndex  = fmt.Errorf("invalid positional index")
	ErrNotFound      = fmt.Errorf("not found")
	ErrEmptyName     = fmt.Errorf("name must not be empty")
)

// AddNoun inserts a top-level noun. It fails with ErrDuplicateName if a
// sibling noun already carries that name, and validates the noun's own
// subtree (verb-name uniqueness, argument-name uniqueness, dense
// positional indexes) before insertion.
func (g *Grammar) AddNoun(n Noun) error {
	if n.Name == "" {
		return ErrEmptyName
	}
	for _, existing := range g.Nouns {
		if existing.Name == n.Name {
			return fmt.Errorf("%w: noun %q", ErrDuplicateName, n.Name)
		}
	}
	if err := validateNoun(n); err != nil {
		return err
	}
	g.Nouns = append(g.Nouns, n)
	return nil
}

// validateNoun enforces §4.1's insert-time invariants recursively: unique
// verb names per noun, unique sub-noun names per noun, unique argument
// names per verb, and dense-from-0 positional indexes per verb.
func validateNoun(n Noun) error {
	seenVerbs := make(map[string]bool, len(n.Verbs))
	for _, v := range n.Verbs {
		if v.Name == "" {
			return ErrEmptyName
		}
		if seenVerbs[v.Name] {
			return fmt.Errorf("%w: verb %q in noun %q", ErrDuplicateName, v.Name, n.Name)
		}
		seenVerbs[v.Name] = true
		for _, alias := range v.Aliases {
			if seenVerbs[alias] {
				return fmt.Errorf("%w: verb alias %q in noun %q", ErrDuplicateName, alias, n.Name)
			}
			seenVerbs[alias] = true
		}
		if err := validateVerb(v); err != nil {
			return fmt.Errorf("verb %q: %w", v.Name, err)
		}
	}

	seenSub := make(map[string]bool, len(n.SubNouns))
	for _, sub := range n.SubNouns {
		if seenSub[sub.Name] {
			return fmt.Errorf("%w: sub-noun %q in noun %q", ErrDuplicateName, sub.Name, n.Name)
		}
		seenSub[sub.Name] = true
		if err := validateNoun(sub); err != nil {
			return err
		}
	}
	return nil
}

// validateVerb checks argument-name uniqueness, long-flag uniqueness, and
// that positional indexes form a dense permutation of [0, n).
func validateVerb(v Verb) error {
	seenNames := make(map[string]bool, len(v.Arguments))
	seenLongs := make(map[string]bool, len(v.Arguments))
	var positionalIndexes []int

	for _, a := range v.Arguments {
		if a.Name == "" {
			return ErrEmptyName
		}
		if seenNames[a.Name] {
			return fmt.Errorf("%w: argument %q", ErrDuplicateName, a.Name)
		}
		seenNames[a.Name] = true

		if a.Long != "" {
			if seenLongs[a.Long] {
				return fmt.Errorf("%w: long flag %q", ErrDuplicateName, a.Long)
			}
			seenLongs[a.Long] = true
		}

		if a.Kind == Positional {
			positionalIndexes = append(positionalIndexes, a.Index)
		}
	}

	if len(positionalIndexes) == 0 {
		return nil
	}
	seen := make([]bool, len(positionalIndexes))
	for _, idx := range positionalIndexes {
		if idx < 0 || idx >= len(positionalIndexes) || seen[idx] {
			return fmt.Errorf("%w: index %d (expected dense permutation of [0,%d))", ErrInvalidIndex, idx, len(positionalIndexes))
		}
		seen[idx] = true
	}
	return nil
}

// GetVerb resolves a dotted path of noun names followed by a verb name,
// e.g. []string{"services", "status"} or []string{"services", "k8s", "restart"}.
func (g *Grammar) GetVerb(path []string) (*Verb, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: path must have at least one noun and a verb", ErrNotFound)
	}
	nouns := g.Nouns
	var cur *Noun
	for _, segment := range path[:len(path)-1] {
		found := findNoun(nouns, segment)
		if found == nil {
			return nil, fmt.Errorf("%w: noun %q", ErrNotFound, segment)
		}
		cur = found
		nouns = found.SubNouns
	}
	verbName := path[len(path)-1]
	for i := range cur.Verbs {
		if cur.Verbs[i].Name == verbName || containsStr(cur.Verbs[i].Aliases, verbName) {
			return &cur.Verbs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: verb %q", ErrNotFound, verbName)
}

// FindNounMutable resolves a noun path and returns a pointer into the live
// tree so a caller (the registry) can append a verb to it directly. Unlike
// GetVerb, path names only nouns — no trailing verb segment.
func (g *Grammar) FindNounMutable(path []string) (*Noun, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty noun path", ErrNotFound)
	}
	nouns := g.Nouns
	var cur *Noun
	for _, segment := range path {
		found := findNoun(nouns, segment)
		if found == nil {
			return nil, fmt.Errorf("%w: noun %q", ErrNotFound, segment)
		}
		cur = found
		nouns = found.SubNouns
	}
	return cur, nil
}

// ValidateVerbPublic exposes validateVerb for callers outside the package
// (the registry validates a verb before splicing it into a live noun).
func ValidateVerbPublic(v Verb) error { return validateVerb(v) }

func findNoun(nouns []Noun, name string) *Noun {
	for i := range nouns {
		if nouns[i].Name == name {
			return &nouns[i]
		}
	}
	return nil
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// IterVerbs walks the entire grammar depth-first and invokes fn once per
// verb with its full noun path (excluding the verb name itself).
func (g *Grammar) IterVerbs(fn func(path []string, v *Verb)) {
	for i := range g.Nouns {
		walkNoun(&g.Nouns[i], nil, fn)
	}
}

func walkNoun(n *Noun, prefix []string, fn func(path []string, v *Verb)) {
	path := append(append([]string{}, prefix...), n.Name)
	for i := range n.Verbs {
		fn(path, &n.Verbs[i])
	}
	for i := range n.SubNouns {
		walkNoun(&n.SubNouns[i], path, fn)
	}
}

// AllNouns returns every noun and sub-noun in depth-first order, each
// paired with its full path prefix (the path to reach it, not including
// its own name).
func (g *Grammar) AllNouns() []struct {
	Path []string
	Noun *Noun
} {
	var out []struct {
		Path []string
		Noun *Noun
	}
	var walk func(n *Noun, prefix []string)
	walk = func(n *Noun, prefix []string) {
		out = append(out, struct {
			Path []string
			Noun *Noun
		}{Path: prefix, Noun: n})
		path := append(append([]string{}, prefix...), n.Name)
		for i := range n.SubNouns {
			walk(&n.SubNouns[i], path)
		}
	}
	for i := range g.Nouns {
		walk(&g.Nouns[i], nil)
	}
	return out
}
