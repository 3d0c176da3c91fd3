// Package cli is the parser collaborator: it builds a real cobra command
// tree from a frozen Registry's parser spec, and resolves the
// introspection flags (--capabilities, --introspect, --graph, ...) named
// in SPEC_FULL.md §8 against the semantic store. Grounded on the
// teacher's cmd/nerd/main.go root-command wiring (persistent flags,
// verbose/quiet toggles, version flag) generalized from a hand-written
// static command set to one generated from a grammar tree.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/internal/registry"
	"github.com/seanchatmangpt/autonomic-cli/internal/semantic"
	"github.com/seanchatmangpt/autonomic-cli/internal/semantic/rules"
)

// Dispatch is invoked for every resolved verb. verbPath is the full
// noun.../verb path; residualArgs is everything cobra left over after
// flag parsing, handed unparsed to the verb body per the parser
// collaborator contract in spec.md §4.3/§6.
type Dispatch func(verbPath []string, residualArgs []string) error

// Options configures global flags shared by every Build call.
type Options struct {
	Version string
}

// flagState holds the parsed values of the standard and introspection
// flags, read back by the root command's RunE.
type flagState struct {
	verbose         bool
	quiet           bool
	color           bool
	format          string
	capabilities    bool
	introspect      bool
	introspectNoun  string
	graph           bool
	dumpGrammar     bool
	generateManpage bool
}

// Build walks reg's parser spec and constructs the full cobra command
// tree, wiring dispatch to every leaf verb command.
func Build(reg *registry.Registry, dispatch Dispatch, opts Options) *cobra.Command {
	spec := reg.BuildParser()
	var fs flagState

	root := &cobra.Command{
		Use:           spec.AppName,
		Short:         spec.AppName + " — a capability-graph CLI runtime",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&fs.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVarP(&fs.quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVar(&fs.color, "color", os.Getenv("NO_COLOR") == "", "colorize output")
	root.PersistentFlags().StringVar(&fs.format, "format", "json", "introspection output format: json|yaml")
	root.PersistentFlags().BoolVar(&fs.capabilities, "capabilities", false, "list every verb's capability contract and risk score")
	root.PersistentFlags().BoolVar(&fs.introspect, "introspect", false, "dump the full noun/verb/argument tree")
	root.PersistentFlags().StringVar(&fs.introspectNoun, "introspect-noun", "", "dump one noun's subtree")
	root.PersistentFlags().BoolVar(&fs.graph, "graph", false, "dump the agent-safe capability graph derived by the rule engine")
	root.PersistentFlags().BoolVar(&fs.dumpGrammar, "dump-grammar", false, "dump the raw grammar tree")
	root.PersistentFlags().BoolVar(&fs.generateManpage, "generate-manpages", false, "generate manpage stubs for every verb")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		handled, err := handleIntrospection(cmd.OutOrStdout(), reg, fs, spec.AppName, opts.Version)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
		return cmd.Help()
	}

	for i := range spec.Nouns {
		root.AddCommand(buildNounCommand(&spec.Nouns[i], []string{}, dispatch))
	}
	return root
}

func buildNounCommand(n *grammar.Noun, path []string, dispatch Dispatch) *cobra.Command {
	nounPath := append(append([]string{}, path...), n.Name)
	cmd := &cobra.Command{
		Use:   n.Name,
		Short: n.Help,
	}
	for i := range n.Verbs {
		cmd.AddCommand(buildVerbCommand(&n.Verbs[i], nounPath, dispatch))
	}
	for i := range n.SubNouns {
		cmd.AddCommand(buildNounCommand(&n.SubNouns[i], nounPath, dispatch))
	}
	return cmd
}

func buildVerbCommand(v *grammar.Verb, nounPath []string, dispatch Dispatch) *cobra.Command {
	verbPath := append(append([]string{}, nounPath...), v.Name)
	cmd := &cobra.Command{
		Use:     v.Name,
		Short:   v.Help,
		Aliases: v.Aliases,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(verbPath, args)
		},
	}
	if v.Deprecated {
		msg := v.DeprecationMessage
		if msg == "" {
			msg = "this verb is deprecated"
		}
		cmd.Deprecated = msg
	}

	var required int
	for i := range v.Arguments {
		a := &v.Arguments[i]
		switch a.Kind {
		case grammar.Named:
			registerNamedFlag(cmd, a)
		case grammar.Positional:
			required++
		}
	}
	if required > 0 {
		cmd.Args = cobra.MinimumNArgs(required)
	}
	return cmd
}

// registerNamedFlag registers a documentation-only string flag for a
// Named argument. Its parsed value is never read back: the verb body
// reparses the raw residual args itself, per the parser-collaborator
// boundary in SPEC_FULL.md §8 (cobra drives argv into a
// ResolvedInvocation, it does not own typed argument decoding).
func registerNamedFlag(cmd *cobra.Command, a *grammar.Argument) {
	var placeholder string
	long := a.Long
	if long == "" {
		long = a.Name
	}
	if a.Short != "" {
		cmd.Flags().StringVarP(&placeholder, long, a.Short, a.Default, a.Help)
	} else {
		cmd.Flags().StringVar(&placeholder, long, a.Default, a.Help)
	}
	if a.Required {
		_ = cmd.MarkFlagRequired(long)
	}
}

func handleIntrospection(out io.Writer, reg *registry.Registry, fs flagState, appName, version string) (bool, error) {
	g := reg.Grammar()
	switch {
	case fs.capabilities:
		return true, writeCapabilities(out, reg, appName, version, fs.format)
	case fs.introspectNoun != "":
		n, err := g.FindNounMutable([]string{fs.introspectNoun})
		if err != nil {
			return true, fmt.Errorf("introspect-noun: %w", err)
		}
		return true, encode(out, fs.format, toNounDocument(n))
	case fs.introspect:
		return true, encode(out, fs.format, toRootNounDocument(g))
	case fs.dumpGrammar:
		return true, encode(out, fs.format, toGrammarDocument(g))
	case fs.graph:
		return true, writeGraph(out, reg, fs.format)
	case fs.generateManpage:
		return true, writeManpageStubs(out, reg)
	}
	return false, nil
}

// --- introspection DTOs -----------------------------------------------
//
// These mirror spec.md §6's stable JSON shapes exactly (snake_case keys,
// the documented nesting); they deliberately do not reuse internal/
// grammar's Go-field-named structs, since the grammar tree also backs
// the semantic ontology builder and should not be coupled to a
// particular wire format.

// capabilityRow is one entry of the --capabilities table.
type capabilityRow struct {
	ID        string `json:"id" yaml:"id"`
	Class     string `json:"class" yaml:"class"`
	Band      string `json:"band" yaml:"band"`
	Stability string `json:"stability" yaml:"stability"`
	Safety    string `json:"safety" yaml:"safety"`
	RiskScore int    `json:"risk_score" yaml:"risk_score"`
}

// capabilitiesDocument is the --capabilities output: spec.md §6's
// `{ app, version, capabilities: [...] }`.
type capabilitiesDocument struct {
	App          string          `json:"app" yaml:"app"`
	Version      string          `json:"version" yaml:"version"`
	Capabilities []capabilityRow `json:"capabilities" yaml:"capabilities"`
}

func writeCapabilities(out io.Writer, reg *registry.Registry, appName, version, format string) error {
	var rows []capabilityRow
	for _, rv := range reg.AllVerbs() {
		if rv.Verb.CapabilityContract == nil {
			continue
		}
		c := rv.Verb.CapabilityContract
		rows = append(rows, capabilityRow{
			ID:        joinPath(rv.VerbPath),
			Class:     c.Class.String(),
			Band:      c.ResourceBand.String(),
			Stability: c.Stability.String(),
			Safety:    c.Safety.String(),
			RiskScore: c.RiskScore(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RiskScore > rows[j].RiskScore })
	return encode(out, format, capabilitiesDocument{App: appName, Version: version, Capabilities: rows})
}

// argumentDTO mirrors spec.md §3's argument record verbatim.
type argumentDTO struct {
	Name           string   `json:"name" yaml:"name"`
	Short          string   `json:"short,omitempty" yaml:"short,omitempty"`
	Long           string   `json:"long,omitempty" yaml:"long,omitempty"`
	Kind           string   `json:"kind" yaml:"kind"`
	Index          int      `json:"index,omitempty" yaml:"index,omitempty"`
	ArgType        string   `json:"arg_type" yaml:"arg_type"`
	Help           string   `json:"help,omitempty" yaml:"help,omitempty"`
	Required       bool     `json:"required" yaml:"required"`
	Default        string   `json:"default,omitempty" yaml:"default,omitempty"`
	EnvVar         string   `json:"env_var,omitempty" yaml:"env_var,omitempty"`
	ValueName      string   `json:"value_name,omitempty" yaml:"value_name,omitempty"`
	PossibleValues []string `json:"possible_values,omitempty" yaml:"possible_values,omitempty"`
	Multiple       bool     `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Group          string   `json:"group,omitempty" yaml:"group,omitempty"`
	Requires       []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	ConflictsWith  []string `json:"conflicts_with,omitempty" yaml:"conflicts_with,omitempty"`
}

// capabilityDTO mirrors spec.md §3's capability contract record.
type capabilityDTO struct {
	Class         string   `json:"class" yaml:"class"`
	ResourceBand  string   `json:"resource_band" yaml:"resource_band"`
	Stability     string   `json:"stability" yaml:"stability"`
	Safety        string   `json:"safety" yaml:"safety"`
	RequiredRoles []string `json:"required_roles,omitempty" yaml:"required_roles,omitempty"`
	Idempotent    bool     `json:"idempotent,omitempty" yaml:"idempotent,omitempty"`
	TenantID      string   `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
}

// verbDTO is one entry of a noun's `verbs` array: spec.md §6's
// `{name, args:[...], capability}`.
type verbDTO struct {
	Name       string         `json:"name" yaml:"name"`
	Args       []argumentDTO  `json:"args" yaml:"args"`
	Capability *capabilityDTO `json:"capability,omitempty" yaml:"capability,omitempty"`
}

// nounDocument is the recursive shape spec.md §6 documents for
// --introspect/--introspect-noun:
// `{noun, verbs:[...], sub_nouns:[...]}`.
type nounDocument struct {
	Noun     string         `json:"noun" yaml:"noun"`
	Help     string         `json:"help,omitempty" yaml:"help,omitempty"`
	Verbs    []verbDTO      `json:"verbs" yaml:"verbs"`
	SubNouns []nounDocument `json:"sub_nouns" yaml:"sub_nouns"`
}

// grammarDocument wraps every top-level noun document with the app
// identity, used for --dump-grammar.
type grammarDocument struct {
	AppName    string         `json:"app_name" yaml:"app_name"`
	AppVersion string         `json:"app_version,omitempty" yaml:"app_version,omitempty"`
	Nouns      []nounDocument `json:"nouns" yaml:"nouns"`
}

// toRootNounDocument wraps every top-level noun under a synthetic root
// node named after the app, matching spec.md §6's --introspect shape
// literally: the whole output is one recursive {noun, verbs, sub_nouns}
// value, not an array of nouns. --dump-grammar uses grammarDocument
// instead, since its contract ("the full Grammar as JSON") does not
// require squeezing multiple top-level nouns under one root.
func toRootNounDocument(g *grammar.Grammar) nounDocument {
	subNouns := make([]nounDocument, 0, len(g.Nouns))
	for i := range g.Nouns {
		subNouns = append(subNouns, toNounDocument(&g.Nouns[i]))
	}
	return nounDocument{Noun: g.AppName, Verbs: []verbDTO{}, SubNouns: subNouns}
}

func toGrammarDocument(g *grammar.Grammar) grammarDocument {
	nouns := make([]nounDocument, 0, len(g.Nouns))
	for i := range g.Nouns {
		nouns = append(nouns, toNounDocument(&g.Nouns[i]))
	}
	return grammarDocument{AppName: g.AppName, AppVersion: g.AppVersion, Nouns: nouns}
}

func toNounDocument(n *grammar.Noun) nounDocument {
	verbs := make([]verbDTO, 0, len(n.Verbs))
	for i := range n.Verbs {
		verbs = append(verbs, toVerbDTO(&n.Verbs[i]))
	}
	subNouns := make([]nounDocument, 0, len(n.SubNouns))
	for i := range n.SubNouns {
		subNouns = append(subNouns, toNounDocument(&n.SubNouns[i]))
	}
	return nounDocument{Noun: n.Name, Help: n.Help, Verbs: verbs, SubNouns: subNouns}
}

func toVerbDTO(v *grammar.Verb) verbDTO {
	args := make([]argumentDTO, 0, len(v.Arguments))
	for i := range v.Arguments {
		args = append(args, toArgumentDTO(&v.Arguments[i]))
	}
	var capDTO *capabilityDTO
	if v.CapabilityContract != nil {
		c := v.CapabilityContract
		capDTO = &capabilityDTO{
			Class:         c.Class.String(),
			ResourceBand:  c.ResourceBand.String(),
			Stability:     c.Stability.String(),
			Safety:        c.Safety.String(),
			RequiredRoles: c.RequiredRoles,
			Idempotent:    c.Idempotent,
			TenantID:      c.TenantID,
		}
	}
	return verbDTO{Name: v.Name, Args: args, Capability: capDTO}
}

func toArgumentDTO(a *grammar.Argument) argumentDTO {
	return argumentDTO{
		Name:           a.Name,
		Short:          a.Short,
		Long:           a.Long,
		Kind:           a.Kind.String(),
		Index:          a.Index,
		ArgType:        a.ArgType,
		Help:           a.Help,
		Required:       a.Required,
		Default:        a.Default,
		EnvVar:         a.EnvVar,
		ValueName:      a.ValueName,
		PossibleValues: a.PossibleValues,
		Multiple:       a.Multiple,
		Group:          a.Group,
		Requires:       a.Requires,
		ConflictsWith:  a.ConflictsWith,
	}
}

// graphNode is one entry of --graph's `nodes` array: spec.md §6's
// `{id, effect, metadata}`. effect is the verb's capability class (the
// "typed effect descriptor" spec.md §1 names); a verb with no contract
// reports "unknown". agent-safety, which has no field of its own in the
// documented shape, rides along as a metadata key instead of being
// dropped.
type graphNode struct {
	ID       string            `json:"id" yaml:"id"`
	Effect   string            `json:"effect" yaml:"effect"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// graphEdge is one entry of --graph's `edges` array: spec.md §6's
// `{from, to, relation}`. Only "precondition" edges are derived today;
// "conflict" and "follows" have no producing rule yet.
type graphEdge struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	Relation string `json:"relation" yaml:"relation"`
}

type graphDocument struct {
	Nodes []graphNode `json:"nodes" yaml:"nodes"`
	Edges []graphEdge `json:"edges" yaml:"edges"`
}

func writeGraph(out io.Writer, reg *registry.Registry, format string) error {
	g := reg.Grammar()
	store := semantic.BuildFromGrammar(g)
	engine, err := rules.New()
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if err := engine.LoadFromStore(store); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	safe, err := engine.AgentSafeVerbs()
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	edges, err := engine.PreconditionEdges()
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}

	// The rule engine derives facts over the cnv: IRIs the ontology
	// publishes (cnv:<app>/<verb path>); every other id in this package
	// (capability rows, dispatch, the policy governor) uses the bare
	// verb path. Translate back at this boundary so --graph's ids are
	// consistent with --capabilities'.
	iriPrefix := "cnv:" + g.AppName + "/"
	safeSet := make(map[string]bool, len(safe))
	for _, iri := range safe {
		safeSet[strings.TrimPrefix(iri, iriPrefix)] = true
	}

	nodes := make([]graphNode, 0, len(reg.AllVerbs()))
	for _, rv := range reg.AllVerbs() {
		id := joinPath(rv.VerbPath)
		effect := "unknown"
		if rv.Verb.CapabilityContract != nil {
			effect = rv.Verb.CapabilityContract.Class.String()
		}
		var metadata map[string]string
		if len(rv.Verb.Metadata) > 0 {
			metadata = make(map[string]string, len(rv.Verb.Metadata)+1)
			for k, v := range rv.Verb.Metadata {
				metadata[k] = v
			}
		}
		if safeSet[id] {
			if metadata == nil {
				metadata = make(map[string]string, 1)
			}
			metadata["agent_safe"] = "true"
		}
		nodes = append(nodes, graphNode{ID: id, Effect: effect, Metadata: metadata})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	graphEdges := make([]graphEdge, 0, len(edges))
	for _, e := range edges {
		graphEdges = append(graphEdges, graphEdge{
			From:     strings.TrimPrefix(e.From, iriPrefix),
			To:       strings.TrimPrefix(e.To, iriPrefix),
			Relation: "precondition",
		})
	}

	return encode(out, format, graphDocument{Nodes: nodes, Edges: graphEdges})
}

func writeManpageStubs(out io.Writer, reg *registry.Registry) error {
	for _, rv := range reg.AllVerbs() {
		fmt.Fprintf(out, ".TH %s 1\n.SH NAME\n%s \\- %s\n.SH SYNOPSIS\n%s\n\n",
			joinPath(rv.VerbPath), rv.Verb.Name, rv.Verb.Help, joinPath(rv.VerbPath))
	}
	return nil
}

func encode(out io.Writer, format string, v interface{}) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}
