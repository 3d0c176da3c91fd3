// Package shacl implements the SHACL-style shape validation named in the
// data model: shapes target a class and enumerate property constraints
// {path, min_count, max_count?, datatype?}.
package shacl

import (
	"fmt"

	"github.com/seanchatmangpt/autonomic-cli/internal/semantic"
	"github.com/seanchatmangpt/autonomic-cli/pkg/ontology"
)

// PropertyConstraint is one constraint within a shape.
type PropertyConstraint struct {
	Path     string
	MinCount int
	MaxCount int // 0 means unbounded
	Datatype string
}

// Shape targets an rdf:type class and enumerates its property constraints.
type Shape struct {
	Name               string
	TargetClass        string
	PropertyConstraints []PropertyConstraint
}

// Violation reports one failed constraint on one focus node.
type Violation struct {
	Shape     string
	FocusNode string
	Path      string
	Message   string
}

// Validate checks every instance of each shape's target class in the
// store against its property constraints. An empty report means valid.
func Validate(s *semantic.Store, shapes []Shape) []Violation {
	var violations []Violation
	for _, shape := range shapes {
		instances := s.ByObjectIRI(shape.TargetClass)
		for _, inst := range instances {
			if inst.Predicate != ontology.RDFType {
				continue
			}
			focus := inst.Subject
			for _, pc := range shape.PropertyConstraints {
				matches := s.BySubjectPredicate(focus, pc.Path)
				count := len(matches)
				if count < pc.MinCount {
					violations = append(violations, Violation{
						Shape:     shape.Name,
						FocusNode: focus,
						Path:      pc.Path,
						Message:   fmt.Sprintf("expected at least %d value(s), got %d", pc.MinCount, count),
					})
				}
				if pc.MaxCount > 0 && count > pc.MaxCount {
					violations = append(violations, Violation{
						Shape:     shape.Name,
						FocusNode: focus,
						Path:      pc.Path,
						Message:   fmt.Sprintf("expected at most %d value(s), got %d", pc.MaxCount, count),
					})
				}
				if pc.Datatype != "" {
					for _, m := range matches {
						if m.Object.Kind == semantic.Literal && m.Object.Datatype != "" && m.Object.Datatype != pc.Datatype {
							violations = append(violations, Violation{
								Shape:     shape.Name,
								FocusNode: focus,
								Path:      pc.Path,
								Message:   fmt.Sprintf("expected datatype %s, got %s", pc.Datatype, m.Object.Datatype),
							})
						}
					}
				}
			}
		}
	}
	return violations
}

// CommandShape is the default shape targeting cnv:Verb (the closest
// analog to a Command in this ontology), enforcing the required-property
// cardinalities named in the data model: every verb must carry exactly
// one cnv:name literal.
func CommandShape() Shape {
	return Shape{
		Name:        "CommandShape",
		TargetClass: ontology.ClassVerb,
		PropertyConstraints: []PropertyConstraint{
			{Path: ontology.PredName, MinCount: 1, MaxCount: 1},
		},
	}
}
