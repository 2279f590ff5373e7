package session

import (
	"reflect"
	"testing"

	"github.com/Seednode/casebox/pkg/wire"
)

func TestPartnerFindsReportsOnlyNewClues(t *testing.T) {
	n := NewNotifier()

	got := n.PartnerFinds(wire.Fragment{FoundClues: []string{"cl2", "cl1"}})
	if !reflect.DeepEqual(got, []string{"cl1", "cl2"}) {
		t.Fatalf("expected sorted fresh clues, got %v", got)
	}

	// A replayed snapshot announces nothing the second time.
	if got := n.PartnerFinds(wire.Fragment{FoundClues: []string{"cl1", "cl2"}}); got != nil {
		t.Fatalf("expected no re-announcement, got %v", got)
	}
}

func TestLocalFindsAreNeverAnnounced(t *testing.T) {
	n := NewNotifier()
	n.ObserveLocal("cl1")

	got := n.PartnerFinds(wire.Fragment{FoundClues: []string{"cl1", "cl3"}})
	if !reflect.DeepEqual(got, []string{"cl3"}) {
		t.Fatalf("expected only the partner's clue, got %v", got)
	}
}

func TestEmptyFragmentAnnouncesNothing(t *testing.T) {
	n := NewNotifier()

	if got := n.PartnerFinds(wire.Fragment{}); got != nil {
		t.Fatalf("expected nothing from an empty fragment, got %v", got)
	}
}
