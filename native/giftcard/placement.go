package giftcard

// ResolvePlacement decides which referrer is credited for buyer's purchase.
// Counts are folded from the full relationship history on every call rather
// than read from an incremental index, so replays over the same history always
// reproduce the same placement.
//
// The requested referrer wins while it holds fewer than limit relationships.
// Once saturated, the scan walks the history in insertion order and credits
// the first referrer anywhere with spare capacity (flat-map first-fit; an
// older variant of this engine searched a true tree by direct-child count and
// can place differently for the same history). The buyer is never credited
// for their own purchase: the scan skips them and continues. With every
// eligible referrer at capacity the purchase is rejected with
// ErrNoSpilloverAvailable.
func ResolvePlacement(requested, buyer Principal, relationships []Relationship, limit uint32) (Principal, error) {
	counts := make(map[Principal]uint32, len(relationships))
	for _, rel := range relationships {
		counts[rel.Referrer]++
	}
	if requested != buyer && counts[requested] < limit {
		return requested, nil
	}
	for _, rel := range relationships {
		if rel.Referrer == buyer {
			continue
		}
		if counts[rel.Referrer] < limit {
			return rel.Referrer, nil
		}
	}
	return Principal{}, ErrNoSpilloverAvailable
}
