// Package board owns the canonical local view of shared investigation
// progress: found clues, unlocked suspects, and the evidence-board
// connection graph. Remote fragments fold in through a purely additive
// union merge, so applying the same fragment twice, or two fragments in
// either order, always lands on the same state.
package board

import (
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/Seednode/casebox/pkg/casefile"
	"github.com/Seednode/casebox/pkg/wire"
)

// Pair is an undirected evidence-board edge in canonical form: A sorts
// before B, so both orientations of the same edge map to one key.
type Pair struct {
	A string
	B string
}

// Canonical returns the canonical form of an edge between two clue ids.
func Canonical(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Position is a 2D board coordinate for a clue card. Layout is purely
// presentational and local; it is never part of the synchronized snapshot.
type Position struct {
	X float64
	Y float64
}

// Progress is the merge engine for one loaded case. It is not safe for
// concurrent use; callers drive it from a single event loop.
type Progress struct {
	c *casefile.Case

	foundClues       mapset.Set[string]
	unlockedSuspects mapset.Set[string]
	connections      mapset.Set[Pair]

	positions map[string]Position
}

// New returns a Progress loaded with the given case.
func New(c *casefile.Case) *Progress {
	p := &Progress{}
	p.Load(c)
	return p
}

// Load resets all progress and seeds the board from the case definition:
// author-suggested clue connections go onto the board in canonical form,
// and suspects with no unlock requirement start unlocked.
func (p *Progress) Load(c *casefile.Case) {
	p.c = c
	p.foundClues = mapset.New[string]()
	p.unlockedSuspects = mapset.New[string]()
	p.connections = mapset.New[Pair]()
	p.positions = make(map[string]Position)

	for _, clue := range c.Clues {
		for _, target := range clue.Connections {
			p.connections.Put(Canonical(clue.ID, target))
		}
	}

	p.sweepUnlocks()
}

// Case returns the loaded case definition.
func (p *Progress) Case() *casefile.Case {
	return p.c
}

// RecordClueFound marks a clue as found and re-evaluates every suspect's
// unlock requirement. Reports whether the clue was newly found.
func (p *Progress) RecordClueFound(clueID string) bool {
	if clueID == "" || p.foundClues.Has(clueID) {
		return false
	}

	p.foundClues.Put(clueID)
	p.sweepUnlocks()

	return true
}

// sweepUnlocks runs the full unlock evaluation against the current found
// set. It is idempotent and deliberately not incremental, so a merge that
// lands several clues at once cannot miss a cross-dependency.
func (p *Progress) sweepUnlocks() {
	for _, s := range p.c.Suspects {
		if p.unlockedSuspects.Has(s.ID) {
			continue
		}

		if len(s.UnlockedByClues) == 0 {
			p.unlockedSuspects.Put(s.ID)
			continue
		}

		// Any one listed clue suffices.
		for _, clueID := range s.UnlockedByClues {
			if p.foundClues.Has(clueID) {
				p.unlockedSuspects.Put(s.ID)
				break
			}
		}
	}
}

// AddConnection draws an edge between two clues on the board.
func (p *Progress) AddConnection(a, b string) {
	if a == "" || b == "" || a == b {
		return
	}
	p.connections.Put(Canonical(a, b))
}

// RemoveConnection erases an edge, regardless of the orientation it was
// added with. Removal is local-only: the remote merge is union-only, so a
// removed edge can be resurrected by a delayed partner snapshot that still
// contains it.
func (p *Progress) RemoveConnection(a, b string) {
	p.connections.Remove(Canonical(a, b))
}

// Connected reports whether an edge exists between two clues.
func (p *Progress) Connected(a, b string) bool {
	return p.connections.Has(Canonical(a, b))
}

// MergeRemote folds a partner's snapshot fragment into local state. The
// merge is a straight union on every field — commutative, associative,
// idempotent — and never removes anything. Missing fragment fields are
// empty sets, so a partial fragment merges cleanly.
func (p *Progress) MergeRemote(f wire.Fragment) {
	for _, clueID := range f.FoundClues {
		if clueID != "" {
			p.foundClues.Put(clueID)
		}
	}

	for _, suspectID := range f.UnlockedSuspects {
		if suspectID != "" {
			p.unlockedSuspects.Put(suspectID)
		}
	}

	for _, conn := range f.BoardConnections {
		if conn.Source == "" || conn.Target == "" || conn.Source == conn.Target {
			continue
		}
		p.connections.Put(Canonical(conn.Source, conn.Target))
	}

	// A partner may have found clues whose unlock consequences were not in
	// the fragment; the sweep closes that gap locally.
	p.sweepUnlocks()
}

// Fragment exports the current snapshot for relay to the partner, with
// deterministic ordering.
func (p *Progress) Fragment() wire.Fragment {
	conns := p.Connections()
	wired := make([]wire.Connection, 0, len(conns))
	for _, pair := range conns {
		wired = append(wired, wire.Connection{Source: pair.A, Target: pair.B})
	}

	return wire.Fragment{
		FoundClues:       p.FoundClues(),
		UnlockedSuspects: p.UnlockedSuspects(),
		BoardConnections: wired,
	}
}

// HasProgress reports whether any field of the snapshot is non-empty.
// Outbound sync must not fire while this is false, so a just-joined client
// can never push an empty snapshot over a partner's in-progress session.
func (p *Progress) HasProgress() bool {
	return p.foundClues.Size() > 0 || p.unlockedSuspects.Size() > 0 || p.connections.Size() > 0
}

// ClueFound reports whether a clue has been found by either detective.
func (p *Progress) ClueFound(clueID string) bool {
	return p.foundClues.Has(clueID)
}

// SuspectUnlocked reports whether a suspect is visible.
func (p *Progress) SuspectUnlocked(suspectID string) bool {
	return p.unlockedSuspects.Has(suspectID)
}

// FoundClues returns the found clue ids, sorted.
func (p *Progress) FoundClues() []string {
	return sortedKeys(p.foundClues)
}

// UnlockedSuspects returns the unlocked suspect ids, sorted.
func (p *Progress) UnlockedSuspects() []string {
	return sortedKeys(p.unlockedSuspects)
}

// Connections returns the board edges in canonical form, sorted.
func (p *Progress) Connections() []Pair {
	pairs := make([]Pair, 0, p.connections.Size())
	p.connections.Each(func(pair Pair) {
		pairs = append(pairs, pair)
	})

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})

	return pairs
}

// SetPosition records a clue card's board coordinate. Positions are local
// layout only and never leave this client.
func (p *Progress) SetPosition(clueID string, pos Position) {
	p.positions[clueID] = pos
}

// Position returns a clue card's board coordinate, if one was set.
func (p *Progress) Position(clueID string) (Position, bool) {
	pos, ok := p.positions[clueID]
	return pos, ok
}

func sortedKeys(s mapset.Set[string]) []string {
	keys := make([]string, 0, s.Size())
	s.Each(func(key string) {
		keys = append(keys, key)
	})
	sort.Strings(keys)
	return keys
}
