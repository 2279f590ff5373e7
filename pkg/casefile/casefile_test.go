package casefile

import (
	"testing"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	cat, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cat.IDs()) == 0 {
		t.Fatalf("expected at least one embedded case")
	}

	for _, id := range cat.IDs() {
		c := cat.ByID(id)
		if c.ID != id {
			t.Fatalf("catalog returned wrong case for %q: %q", id, c.ID)
		}
		if _, ok := c.Suspect(c.TrueCulpritID); !ok {
			t.Fatalf("case %q: culprit %q is not a suspect", id, c.TrueCulpritID)
		}
		if len(c.Clues) == 0 || len(c.Suspects) == 0 {
			t.Fatalf("case %q has no content", id)
		}
	}
}

func TestUnknownCaseFallsBackToDefault(t *testing.T) {
	cat, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cat.Has("no-such-case") {
		t.Fatalf("expected unknown id to be absent")
	}

	if got := cat.ByID("no-such-case"); got != cat.Default() {
		t.Fatalf("expected fallback to the default case, got %q", got.ID)
	}
}

func TestIsCulprit(t *testing.T) {
	c := &Case{TrueCulpritID: "s2", Suspects: []Suspect{{ID: "s2"}}}

	if !c.IsCulprit("s2") {
		t.Fatalf("expected true culprit to match")
	}
	if c.IsCulprit("s1") {
		t.Fatalf("expected wrong suspect to mismatch")
	}
	if c.IsCulprit("") {
		t.Fatalf("an empty pick must never be correct")
	}
}

func TestCaseLookups(t *testing.T) {
	cat, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	c := cat.Default()

	clue := c.Clues[0]
	if got, ok := c.Clue(clue.ID); !ok || got.Name != clue.Name {
		t.Fatalf("clue lookup failed for %q", clue.ID)
	}
	if _, ok := c.Clue("nope"); ok {
		t.Fatalf("expected missing clue lookup to fail")
	}

	s := c.Suspects[0]
	if got, ok := c.Suspect(s.ID); !ok || got.Name != s.Name {
		t.Fatalf("suspect lookup failed for %q", s.ID)
	}
}
