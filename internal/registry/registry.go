// Package registry implements the process-wide Command Registry (C3): the
// catalog of nouns and verbs that produces both the parser tree handed to
// the cobra collaborator and the ontology triples consumed by the
// semantic store. Modeled on the teacher's internal/tools.Registry —
// same RWMutex-guarded map shape — generalized with a freeze-on-first-use
// state machine in place of the teacher's always-mutable registration.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/internal/logging"
)

var (
	// ErrFrozen is returned when a mutation is attempted after the
	// registry has been frozen by BuildParser.
	ErrFrozen = errors.New("registry: frozen, no further mutations permitted")
)

// ResolvedInvocation is the structural dispatch result of resolve(argv).
// Typed argument parsing is delegated to the parser collaborator (cobra);
// the registry only walks noun/verb tokens until it bottoms out at a verb.
type ResolvedInvocation struct {
	VerbPath     []string
	Verb         *grammar.Verb
	ResidualArgs []string
}

// ParserSpec is the opaque tree handed to the external parser collaborator
// to construct real flags/positionals. It mirrors the grammar shape
// closely enough that internal/cli can walk it without reaching back into
// the registry's internals.
type ParserSpec struct {
	AppName string
	Nouns   []grammar.Noun
}

// Registry is the process-wide noun/verb catalog.
type Registry struct {
	mu      sync.RWMutex
	grammar *grammar.Grammar
	frozen  bool
}

// New creates an empty registry for the given application name.
func New(appName string) *Registry {
	return &Registry{grammar: grammar.New(appName)}
}

// RegisterNoun inserts a noun subtree. Fails with grammar's duplicate
// errors on name collision, or ErrFrozen if called after freeze.
func (r *Registry) RegisterNoun(n grammar.Noun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	if err := r.grammar.AddNoun(n); err != nil {
		return err
	}
	logging.Get(logging.CategoryRegistry).Debug("noun registered", map[string]interface{}{"noun": n.Name})
	return nil
}

// RegisterVerb attaches a verb to an already-registered noun path. It is
// a convenience over RegisterNoun for the common case of adding one verb
// at a time; noun_path must resolve to an existing noun.
func (r *Registry) RegisterVerb(nounPath []string, v grammar.Verb) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	n, err := r.grammar.FindNounMutable(nounPath)
	if err != nil {
		return err
	}
	for _, existing := range n.Verbs {
		if existing.Name == v.Name {
			return fmt.Errorf("%w: verb %q under noun %q", grammar.ErrDuplicateName, v.Name, n.Name)
		}
	}
	if err := grammar.ValidateVerbPublic(v); err != nil {
		return err
	}
	n.Verbs = append(n.Verbs, v)
	logging.Get(logging.CategoryRegistry).Debug("verb registered", map[string]interface{}{"noun_path": nounPath, "verb": v.Name})
	return nil
}

// Resolve performs structural dispatch only: it walks argv consuming noun
// tokens, then one verb token (by name or alias), and returns everything
// after as residual args for the parser collaborator to interpret as
// flags/positionals.
func (r *Registry) Resolve(argv []string) (ResolvedInvocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(argv) == 0 {
		return ResolvedInvocation{}, grammar.ErrNotFound
	}

	path := make([]string, 0, len(argv))
	path = append(path, argv[0])
	for i := 1; i < len(argv); i++ {
		tentative := append(append([]string{}, path...), argv[i])
		if v, err := r.grammar.GetVerb(tentative); err == nil {
			return ResolvedInvocation{
				VerbPath:     append(append([]string{}, path...), v.Name),
				Verb:         v,
				ResidualArgs: append([]string{}, argv[i+1:]...),
			}, nil
		}
		path = tentative
	}
	return ResolvedInvocation{}, grammar.ErrNotFound
}

// BuildParser freezes the registry (if not already frozen) and returns
// the parser spec for the external parser collaborator.
func (r *Registry) BuildParser() ParserSpec {
	r.freeze()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ParserSpec{AppName: r.grammar.AppName, Nouns: r.grammar.Nouns}
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *Registry) freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.frozen {
		r.frozen = true
		logging.Get(logging.CategoryRegistry).Info("registry frozen", nil)
	}
}

// Grammar returns the underlying grammar tree for read-only consumers
// (the semantic store's ontology builder, introspection commands). The
// caller must not mutate fields reachable through it.
func (r *Registry) Grammar() *grammar.Grammar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grammar
}

// AllVerbs is a convenience wrapper used by introspection and by
// cmd/autonomic to enumerate every registered verb with its full path.
func (r *Registry) AllVerbs() []ResolvedInvocation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ResolvedInvocation
	r.grammar.IterVerbs(func(path []string, v *grammar.Verb) {
		full := append(append([]string{}, path...), v.Name)
		out = append(out, ResolvedInvocation{VerbPath: full, Verb: v})
	})
	return out
}
