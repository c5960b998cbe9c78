package giftcard

import (
	"errors"
	"testing"
)

func rel(user, referrer byte) Relationship {
	return Relationship{
		User:     newTestPrincipal(user),
		Referrer: newTestPrincipal(referrer),
	}
}

func TestResolvePlacementUnderLimit(t *testing.T) {
	requested := newTestPrincipal(0xA1)
	buyer := newTestPrincipal(0x77)
	history := []Relationship{rel(0x11, 0xA1), rel(0x12, 0xA1)}
	got, err := ResolvePlacement(requested, buyer, history, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != requested {
		t.Fatalf("requested referrer has capacity but was not credited")
	}
}

func TestResolvePlacementSpilloverFirstFit(t *testing.T) {
	requested := newTestPrincipal(0xA1)
	buyer := newTestPrincipal(0x77)
	history := []Relationship{
		rel(0x11, 0xA1),
		rel(0x12, 0xA1),
		rel(0x13, 0xA1), // requested saturated at limit 3
		rel(0x14, 0xA2), // earliest under-capacity referrer
		rel(0x15, 0xA3),
	}
	got, err := ResolvePlacement(requested, buyer, history, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != newTestPrincipal(0xA2) {
		t.Fatalf("expected first-fit spillover to A2, got %x", got[:4])
	}
}

func TestResolvePlacementSkipsSaturatedEarlierReferrers(t *testing.T) {
	requested := newTestPrincipal(0xA3)
	buyer := newTestPrincipal(0x77)
	history := []Relationship{
		rel(0x11, 0xA1),
		rel(0x12, 0xA1), // A1 saturated at limit 2
		rel(0x13, 0xA2), // A2 holds one slot
		rel(0x14, 0xA3),
		rel(0x15, 0xA3), // requested saturated
	}
	got, err := ResolvePlacement(requested, buyer, history, 2)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != newTestPrincipal(0xA2) {
		t.Fatalf("expected A2 after skipping saturated A1, got %x", got[:4])
	}
}

func TestResolvePlacementSkipsBuyer(t *testing.T) {
	requested := newTestPrincipal(0xA1)
	buyer := newTestPrincipal(0x77)
	history := []Relationship{
		rel(0x11, 0xA1),
		rel(0x12, 0xA1),
		rel(0x13, 0xA1), // requested saturated at limit 3
		rel(0x14, 0x77), // buyer holds capacity but must not self-credit
		rel(0x15, 0xA2),
	}
	got, err := ResolvePlacement(requested, buyer, history, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != newTestPrincipal(0xA2) {
		t.Fatalf("expected the scan to pass over the buyer, got %x", got[:4])
	}
}

func TestResolvePlacementOnlyBuyerHasCapacity(t *testing.T) {
	requested := newTestPrincipal(0xA1)
	buyer := newTestPrincipal(0x77)
	history := []Relationship{
		rel(0x11, 0xA1),
		rel(0x12, 0x77), // only the buyer is under capacity
	}
	if _, err := ResolvePlacement(requested, buyer, history, 1); !errors.Is(err, ErrNoSpilloverAvailable) {
		t.Fatalf("expected ErrNoSpilloverAvailable, got %v", err)
	}
}

func TestResolvePlacementExhaustion(t *testing.T) {
	requested := newTestPrincipal(0xA1)
	buyer := newTestPrincipal(0x77)
	history := []Relationship{rel(0x11, 0xA1), rel(0x12, 0xA2)}
	if _, err := ResolvePlacement(requested, buyer, history, 1); !errors.Is(err, ErrNoSpilloverAvailable) {
		// A1 and A2 each hold one relationship at limit 1.
		t.Fatalf("expected ErrNoSpilloverAvailable, got %v", err)
	}
}

func TestResolvePlacementDeterministic(t *testing.T) {
	requested := newTestPrincipal(0xA1)
	buyer := newTestPrincipal(0x77)
	history := []Relationship{
		rel(0x11, 0xA1), rel(0x12, 0xA1), rel(0x13, 0xA1),
		rel(0x14, 0xA2), rel(0x15, 0xA4), rel(0x16, 0xA2),
	}
	first, err := ResolvePlacement(requested, buyer, history, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := ResolvePlacement(requested, buyer, history, 3)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("placement not deterministic: %x vs %x", first[:4], again[:4])
		}
	}
}

func TestResolvePlacementZeroLimit(t *testing.T) {
	requested := newTestPrincipal(0xA1)
	buyer := newTestPrincipal(0x77)
	if _, err := ResolvePlacement(requested, buyer, nil, 0); !errors.Is(err, ErrNoSpilloverAvailable) {
		t.Fatalf("limit zero admits nobody, got %v", err)
	}
}

func TestResolvePlacementEmptyHistory(t *testing.T) {
	requested := newTestPrincipal(0xA1)
	buyer := newTestPrincipal(0x77)
	got, err := ResolvePlacement(requested, buyer, nil, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != requested {
		t.Fatalf("empty history must credit the requested referrer")
	}
}
