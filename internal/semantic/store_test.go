package semantic

import "testing"

func TestInsertIsIdempotent(t *testing.T) {
	s := New()
	tr := Triple{Subject: "a", Predicate: "p", Object: NewIRI("b")}
	if !s.Insert(tr) {
		t.Fatal("first insert should report true")
	}
	if s.Insert(tr) {
		t.Fatal("duplicate insert should report false")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 triple, got %d", s.Len())
	}
}

func TestIndexLookups(t *testing.T) {
	s := New()
	s.Insert(Triple{Subject: "a", Predicate: "p1", Object: NewIRI("b")})
	s.Insert(Triple{Subject: "a", Predicate: "p2", Object: NewLiteral("x", "")})
	s.Insert(Triple{Subject: "c", Predicate: "p1", Object: NewIRI("b")})

	if len(s.BySubject("a")) != 2 {
		t.Errorf("expected 2 triples for subject a")
	}
	if len(s.ByPredicate("p1")) != 2 {
		t.Errorf("expected 2 triples for predicate p1")
	}
	if len(s.ByObjectIRI("b")) != 2 {
		t.Errorf("expected 2 triples with object IRI b")
	}
	if len(s.BySubjectPredicate("a", "p1")) != 1 {
		t.Errorf("expected 1 triple for (a,p1)")
	}
}

func TestEmptyStoreCardinalityZero(t *testing.T) {
	s := New()
	if got := s.CardinalityEstimate(nil, nil, nil); got != 0 {
		t.Errorf("expected 0 for empty store, got %d", got)
	}
}
