// Package ontology defines the fixed RDF namespace IRIs and JSON-LD export
// shape used across the semantic store (spec §6). It is a leaf package
// with no dependency on grammar or registry so both can import it.
package ontology

// Namespace prefixes, fixed by the external interface contract.
const (
	NSCnv  = "https://cnv.dev/ontology#"
	NSRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NSSH   = "http://www.w3.org/ns/shacl#"
	NSXSD  = "http://www.w3.org/2001/XMLSchema#"
)

// Predicate and class IRIs used by the ontology builder.
const (
	RDFType = NSRDF + "type"

	ClassNoun     = NSCnv + "Noun"
	ClassVerb     = NSCnv + "Verb"
	ClassArgument = NSCnv + "Argument"
	ClassCommand  = NSCnv + "Command"

	PredHasNoun      = NSCnv + "hasNoun"
	PredHasVerb      = NSCnv + "hasVerb"
	PredHasArgument  = NSCnv + "hasArgument"
	PredHasCapability = NSCnv + "capability"
	PredName         = NSCnv + "name"
	PredComment      = NSRDFS + "comment"
	PredRequired     = NSCnv + "required"
	PredDatatype     = NSCnv + "datatype"
	PredRequiresRole = NSCnv + "requiresRole"
	PredMetadata     = NSCnv + "metadata"

	PredCapabilityClass     = NSCnv + "capabilityClass"
	PredCapabilityBand      = NSCnv + "resourceBand"
	PredCapabilityStability = NSCnv + "stability"
	PredCapabilitySafety    = NSCnv + "safety"

	XSDBoolean = NSXSD + "boolean"
	XSDString  = NSXSD + "string"
)

// Document is the JSON-LD export shape: {"@context", "@graph"}.
type Document struct {
	Context map[string]string `json:"@context"`
	Graph   []GraphTriple     `json:"@graph"`
}

// GraphTriple is one row of the @graph array.
type GraphTriple struct {
	Subject   string      `json:"subject"`
	Predicate string      `json:"predicate"`
	Object    interface{} `json:"object"`
}

// LiteralValue is the JSON-LD shape for a literal object.
type LiteralValue struct {
	Value    string `json:"@value"`
	Type     string `json:"@type,omitempty"`
	Language string `json:"@language,omitempty"`
}

// DefaultContext is the @context block emitted with every export.
func DefaultContext() map[string]string {
	return map[string]string{
		"cnv":  NSCnv,
		"rdf":  NSRDF,
		"rdfs": NSRDFS,
		"sh":   NSSH,
		"xsd":  NSXSD,
	}
}
