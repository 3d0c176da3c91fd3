package semantic

import (
	"testing"

	"github.com/seanchatmangpt/autonomic-cli/internal/semantic/sparql"
)

// MustQuery parses and executes a SPARQL query against s using the
// default namespace table, failing the test on a parse error. Shared by
// every _test.go file in this package and its ontology companion.
func MustQuery(t *testing.T, s *Store, query string) []Row {
	t.Helper()
	q, err := sparql.Parse(query, sparql.DefaultNamespaces())
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	return Execute(s, q)
}
