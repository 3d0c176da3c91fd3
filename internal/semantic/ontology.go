package semantic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/pkg/ontology"
)

// BuildFromGrammar populates a fresh Store from the given grammar tree per
// the construction rules in the data model: every noun, verb, and
// argument becomes a subject, linked by cnv:hasNoun/hasVerb/hasArgument
// edges, with capability contracts attached as a blank node carrying
// class/band/stability/safety.
func BuildFromGrammar(g *grammar.Grammar) *Store {
	s := New()
	blankCounter := 0
	nextBlank := func() string {
		blankCounter++
		return "_:cap" + strconv.Itoa(blankCounter)
	}

	var walkNoun func(n *grammar.Noun, iriPrefix string)
	walkNoun = func(n *grammar.Noun, iriPrefix string) {
		nounIRI := iriPrefix + n.Name
		s.Insert(Triple{Subject: nounIRI, Predicate: ontology.RDFType, Object: NewIRI(ontology.ClassNoun)})
		s.Insert(Triple{Subject: nounIRI, Predicate: ontology.PredName, Object: NewLiteral(n.Name, ontology.XSDString)})

		for i := range n.Verbs {
			v := &n.Verbs[i]
			verbIRI := nounIRI + "/" + v.Name
			s.Insert(Triple{Subject: verbIRI, Predicate: ontology.RDFType, Object: NewIRI(ontology.ClassVerb)})
			s.Insert(Triple{Subject: verbIRI, Predicate: ontology.PredHasNoun, Object: NewIRI(nounIRI)})
			s.Insert(Triple{Subject: nounIRI, Predicate: ontology.PredHasVerb, Object: NewIRI(verbIRI)})
			s.Insert(Triple{Subject: verbIRI, Predicate: ontology.PredName, Object: NewLiteral(v.Name, ontology.XSDString)})
			if v.Help != "" {
				s.Insert(Triple{Subject: verbIRI, Predicate: ontology.PredComment, Object: NewLiteral(v.Help, ontology.XSDString)})
			}

			for j := range v.Arguments {
				a := &v.Arguments[j]
				argIRI := verbIRI + "/" + a.Name
				s.Insert(Triple{Subject: argIRI, Predicate: ontology.RDFType, Object: NewIRI(ontology.ClassArgument)})
				s.Insert(Triple{Subject: verbIRI, Predicate: ontology.PredHasArgument, Object: NewIRI(argIRI)})
				s.Insert(Triple{Subject: argIRI, Predicate: ontology.PredName, Object: NewLiteral(a.Name, ontology.XSDString)})
				s.Insert(Triple{Subject: argIRI, Predicate: ontology.PredDatatype, Object: NewLiteral(a.ArgType, ontology.XSDString)})
				s.Insert(Triple{Subject: argIRI, Predicate: ontology.PredRequired, Object: NewLiteral(strconv.FormatBool(a.Required), ontology.XSDBoolean)})
			}

			if v.CapabilityContract != nil {
				blank := nextBlank()
				c := v.CapabilityContract
				s.Insert(Triple{Subject: verbIRI, Predicate: ontology.PredHasCapability, Object: NewIRI(blank)})
				s.Insert(Triple{Subject: blank, Predicate: ontology.PredCapabilityClass, Object: NewLiteral(c.Class.String(), ontology.XSDString)})
				s.Insert(Triple{Subject: blank, Predicate: ontology.PredCapabilityBand, Object: NewLiteral(c.ResourceBand.String(), ontology.XSDString)})
				s.Insert(Triple{Subject: blank, Predicate: ontology.PredCapabilityStability, Object: NewLiteral(c.Stability.String(), ontology.XSDString)})
				s.Insert(Triple{Subject: blank, Predicate: ontology.PredCapabilitySafety, Object: NewLiteral(c.Safety.String(), ontology.XSDString)})
				for _, role := range c.RequiredRoles {
					s.Insert(Triple{Subject: verbIRI, Predicate: ontology.PredRequiresRole, Object: NewLiteral(role, ontology.XSDString)})
				}
			}

			// §6.1 metadata supplement: one cnv:metadata "k=v" literal per
			// key, giving agents a documented escape hatch for fields the
			// core ontology doesn't model.
			for k, val := range v.Metadata {
				s.Insert(Triple{Subject: verbIRI, Predicate: ontology.PredMetadata, Object: NewLiteral(k+"="+val, ontology.XSDString)})
			}
		}

		for i := range n.SubNouns {
			walkNoun(&n.SubNouns[i], nounIRI+"/")
		}
	}

	for i := range g.Nouns {
		walkNoun(&g.Nouns[i], "cnv:"+g.AppName+"/")
	}
	return s
}

// ExportJSONLD renders the store as the stable JSON-LD shape from §6.
func ExportJSONLD(s *Store) ontology.Document {
	triples := s.All()
	graph := make([]ontology.GraphTriple, 0, len(triples))
	for _, t := range triples {
		var obj interface{}
		if t.Object.Kind == IRI {
			obj = t.Object.Value
		} else {
			obj = ontology.LiteralValue{Value: t.Object.Value, Type: t.Object.Datatype, Language: t.Object.Lang}
		}
		graph = append(graph, ontology.GraphTriple{Subject: t.Subject, Predicate: t.Predicate, Object: obj})
	}
	return ontology.Document{Context: ontology.DefaultContext(), Graph: graph}
}

// RiskScoreFromTriples recomputes a verb's capability risk score purely
// from stored triples, independent of the live grammar — used to
// cross-check the registry's in-memory capability.Contract.RiskScore
// against what the ontology actually published (SPEC_FULL.md §6.2).
func RiskScoreFromTriples(s *Store, verbIRI string) (int, error) {
	capEdges := s.BySubjectPredicate(verbIRI, ontology.PredHasCapability)
	if len(capEdges) == 0 {
		return 0, fmt.Errorf("no capability attached to %s", verbIRI)
	}
	blank := capEdges[0].Object.Value

	var class capability.Class
	var band capability.ResourceBand
	var stability capability.Stability
	var safety capability.Safety

	for _, t := range s.BySubject(blank) {
		switch t.Predicate {
		case ontology.PredCapabilityClass:
			class = parseClass(t.Object.Value)
		case ontology.PredCapabilityBand:
			band = parseBand(t.Object.Value)
		case ontology.PredCapabilityStability:
			stability = parseStability(t.Object.Value)
		case ontology.PredCapabilitySafety:
			safety = parseSafety(t.Object.Value)
		}
	}
	return capability.New(class, band, stability, safety).RiskScore(), nil
}

func parseClass(s string) capability.Class {
	for c := capability.Pure; c <= capability.Dangerous; c++ {
		if strings.EqualFold(c.String(), s) {
			return c
		}
	}
	return capability.Pure
}

func parseBand(s string) capability.ResourceBand {
	for b := capability.Instant; b <= capability.Cold; b++ {
		if strings.EqualFold(b.String(), s) {
			return b
		}
	}
	return capability.Instant
}

func parseStability(s string) capability.Stability {
	for st := capability.Stable; st <= capability.NonDeterministic; st++ {
		if strings.EqualFold(st.String(), s) {
			return st
		}
	}
	return capability.Stable
}

func parseSafety(s string) capability.Safety {
	for sf := capability.AgentSafe; sf <= capability.InteractiveOnly; sf++ {
		if strings.EqualFold(sf.String(), s) {
			return sf
		}
	}
	return capability.AgentSafe
}
