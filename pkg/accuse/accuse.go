// Package accuse implements the joint-accusation handshake. Each client
// runs its own copy of the state machine; there is no server-side arbiter.
// Both sides evaluate agreement independently with whatever partner pick
// they hold at the time, and each side's terminal verdict is self-consistent
// even when it is reached by a different branch than the partner's.
package accuse

import (
	"github.com/Seednode/casebox/pkg/casefile"
)

// State of the local accusation machine.
type State int

const (
	// Picking: browsing suspects, nothing committed or sent.
	Picking State = iota
	// Committed: our pick has been emitted; waiting on the partner.
	Committed
	// Disagreeing: both committed, picks differ; player must override or adopt.
	Disagreeing
	// Resolved: terminal. The resolved pick decides this player's verdict.
	Resolved
)

func (s State) String() string {
	switch s {
	case Picking:
		return "picking"
	case Committed:
		return "committed"
	case Disagreeing:
		return "disagreeing"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Tracker is one player's accusation state. Not safe for concurrent use.
type Tracker struct {
	state       State
	myPick      string
	partnerPick string
	resolved    string
}

// NewTracker starts in Picking with no picks held.
func NewTracker() *Tracker {
	return &Tracker{state: Picking}
}

// State returns the current machine state.
func (t *Tracker) State() State {
	return t.state
}

// Select records a local suspect choice while still picking. It has no
// network effect and can be changed freely until Commit.
func (t *Tracker) Select(suspectID string) {
	if t.state != Picking {
		return
	}
	t.myPick = suspectID
}

// MyPick returns the locally selected or committed suspect id.
func (t *Tracker) MyPick() string {
	return t.myPick
}

// PartnerPick returns the last known partner pick, which may arrive before
// or after our own commit.
func (t *Tracker) PartnerPick() string {
	return t.partnerPick
}

// Commit finalizes the local selection and reports the pick to emit to the
// partner. If the partner's pick is already held, agreement is evaluated
// immediately; otherwise the machine waits in Committed.
func (t *Tracker) Commit() (string, bool) {
	if t.state != Picking || t.myPick == "" {
		return "", false
	}

	t.state = Committed
	t.evaluate()

	return t.myPick, true
}

// ObservePartner records the partner's committed pick. While picking it is
// only a hint; once we have committed it triggers agreement evaluation.
// Resolved is terminal, so late picks are remembered but change nothing.
func (t *Tracker) ObservePartner(suspectID string) {
	if suspectID == "" {
		return
	}

	t.partnerPick = suspectID

	if t.state == Committed {
		t.evaluate()
	}
}

func (t *Tracker) evaluate() {
	if t.partnerPick == "" {
		return
	}

	if t.partnerPick == t.myPick {
		t.state = Resolved
		t.resolved = t.myPick
	} else {
		t.state = Disagreeing
	}
}

// Override resolves a disagreement by filing our own pick.
func (t *Tracker) Override() bool {
	if t.state != Disagreeing {
		return false
	}

	t.state = Resolved
	t.resolved = t.myPick

	return true
}

// Adopt resolves a disagreement by taking the partner's pick as our own.
func (t *Tracker) Adopt() bool {
	if t.state != Disagreeing || t.partnerPick == "" {
		return false
	}

	t.myPick = t.partnerPick
	t.state = Resolved
	t.resolved = t.partnerPick

	return true
}

// ResolvedPick returns the final pick once the machine has resolved.
func (t *Tracker) ResolvedPick() (string, bool) {
	if t.state != Resolved {
		return "", false
	}
	return t.resolved, true
}

// Verdict evaluates the resolved pick against the case's true culprit.
// Reaching the verdict without ever resolving a pick is always incorrect;
// the absence of a pick must never read as a correct accusation.
func (t *Tracker) Verdict(c *casefile.Case) bool {
	pick, ok := t.ResolvedPick()
	if !ok {
		return false
	}
	return c.IsCulprit(pick)
}
