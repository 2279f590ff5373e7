package session

import (
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/Seednode/casebox/pkg/wire"
)

// Notifier synthesizes "partner found X" notices by diffing incoming
// snapshot fragments against everything already known locally. A clue the
// local player found independently is never re-announced, and a fragment
// replayed twice announces nothing the second time.
type Notifier struct {
	known mapset.Set[string]
}

// NewNotifier starts with nothing known.
func NewNotifier() *Notifier {
	return &Notifier{known: mapset.New[string]()}
}

// ObserveLocal records clues the local player has found, so a later
// fragment echoing them back does not read as partner activity.
func (n *Notifier) ObserveLocal(clueIDs ...string) {
	for _, id := range clueIDs {
		if id != "" {
			n.known.Put(id)
		}
	}
}

// PartnerFinds returns the clue ids in the fragment that are new relative
// to everything observed so far, sorted, and marks them known.
func (n *Notifier) PartnerFinds(f wire.Fragment) []string {
	var fresh []string

	for _, id := range f.FoundClues {
		if id == "" || n.known.Has(id) {
			continue
		}
		n.known.Put(id)
		fresh = append(fresh, id)
	}

	sort.Strings(fresh)
	return fresh
}
