// Package casefile holds the authored case content: locations, clues,
// suspects, and the designated culprit for each case. The catalog is
// embedded at build time and immutable after load.
package casefile

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed cases/*.json
var casesFS embed.FS

// Reliability grades how much weight a clue carries.
type Reliability string

const (
	ReliabilityHigh   Reliability = "High"
	ReliabilityMedium Reliability = "Medium"
	ReliabilityLow    Reliability = "Low"
)

// Visibility restricts which detective can examine a clue. The asymmetry is
// the point of the game: each player sees pieces the other cannot.
type Visibility string

const (
	VisibleToAll     Visibility = "all"
	VisibleToPlayer1 Visibility = "player1"
	VisibleToPlayer2 Visibility = "player2"
)

// Clue is a single discoverable piece of evidence.
type Clue struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	Reliability Reliability `json:"reliability"`
	// Connections are author-suggested evidence-board edges, seeded onto the
	// board when the case loads.
	Connections []string   `json:"connections"`
	VisibleTo   Visibility `json:"visibleTo"`
}

// Suspect is one person of interest. A suspect with an empty
// UnlockedByClues list is visible from the start; otherwise finding any one
// listed clue unlocks them.
type Suspect struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Age             int      `json:"age"`
	Occupation      string   `json:"occupation"`
	Profile         string   `json:"profile"`
	Alibi           string   `json:"alibi"`
	UnlockedByClues []string `json:"unlockedByClues"`
}

// Case is one complete authored investigation.
type Case struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Briefing      string    `json:"briefing"`
	Difficulty    string    `json:"difficulty"`
	Setting       string    `json:"setting"`
	Locations     []string  `json:"locations"`
	Clues         []Clue    `json:"clues"`
	Suspects      []Suspect `json:"suspects"`
	TrueCulpritID string    `json:"trueCulpritId"`
}

// Clue returns the clue with the given id.
func (c *Case) Clue(id string) (Clue, bool) {
	for _, cl := range c.Clues {
		if cl.ID == id {
			return cl, true
		}
	}
	return Clue{}, false
}

// Suspect returns the suspect with the given id.
func (c *Case) Suspect(id string) (Suspect, bool) {
	for _, s := range c.Suspects {
		if s.ID == id {
			return s, true
		}
	}
	return Suspect{}, false
}

// IsCulprit reports whether accusing suspectID closes the case. The check
// is pure equality; an empty id is never correct.
func (c *Case) IsCulprit(suspectID string) bool {
	return suspectID != "" && suspectID == c.TrueCulpritID
}

// Catalog is the full set of authored cases.
type Catalog struct {
	cases []*Case
	byID  map[string]*Case
}

// Load parses and validates the embedded case files.
func Load() (*Catalog, error) {
	entries, err := fs.Glob(casesFS, "cases/*.json")
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	cat := &Catalog{byID: make(map[string]*Case)}

	for _, name := range entries {
		data, err := casesFS.ReadFile(name)
		if err != nil {
			return nil, err
		}

		var c Case
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if err := validate(&c); err != nil {
			return nil, fmt.Errorf("validate %s: %w", name, err)
		}
		if _, dup := cat.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate case id %q in %s", c.ID, name)
		}

		cat.cases = append(cat.cases, &c)
		cat.byID[c.ID] = &c
	}

	if len(cat.cases) == 0 {
		return nil, fmt.Errorf("no case files embedded")
	}

	return cat, nil
}

// Default returns the catalog's first case, used when a joiner requests no
// case or an unknown one.
func (cat *Catalog) Default() *Case {
	return cat.cases[0]
}

// ByID returns the case with the given id, falling back to the default
// case when the id is unknown.
func (cat *Catalog) ByID(id string) *Case {
	if c, ok := cat.byID[id]; ok {
		return c
	}
	return cat.Default()
}

// Has reports whether id names a known case.
func (cat *Catalog) Has(id string) bool {
	_, ok := cat.byID[id]
	return ok
}

// IDs lists every case id in catalog order.
func (cat *Catalog) IDs() []string {
	ids := make([]string, 0, len(cat.cases))
	for _, c := range cat.cases {
		ids = append(ids, c.ID)
	}
	return ids
}

func validate(c *Case) error {
	if c.ID == "" {
		return fmt.Errorf("missing case id")
	}

	clues := make(map[string]bool, len(c.Clues))
	for _, cl := range c.Clues {
		if cl.ID == "" {
			return fmt.Errorf("clue with empty id")
		}
		if clues[cl.ID] {
			return fmt.Errorf("duplicate clue id %q", cl.ID)
		}
		clues[cl.ID] = true
	}

	for _, cl := range c.Clues {
		for _, target := range cl.Connections {
			if !clues[target] {
				return fmt.Errorf("clue %q connects to unknown clue %q", cl.ID, target)
			}
		}
	}

	suspects := make(map[string]bool, len(c.Suspects))
	for _, s := range c.Suspects {
		if s.ID == "" {
			return fmt.Errorf("suspect with empty id")
		}
		if suspects[s.ID] {
			return fmt.Errorf("duplicate suspect id %q", s.ID)
		}
		suspects[s.ID] = true

		for _, clueID := range s.UnlockedByClues {
			if !clues[clueID] {
				return fmt.Errorf("suspect %q unlocked by unknown clue %q", s.ID, clueID)
			}
		}
	}

	if !suspects[c.TrueCulpritID] {
		return fmt.Errorf("true culprit %q is not a suspect", c.TrueCulpritID)
	}

	return nil
}
