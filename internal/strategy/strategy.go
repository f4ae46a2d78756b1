// Package strategy decides how a structured intent maps onto the stores:
// one store alone, or one store feeding the other through a join key.
package strategy

import (
	"fedquery/internal/domain"
)

// Select maps an intent to one of the four federation strategies. It is a
// pure function of the snapshot and the intent: no I/O, no state, no
// fallback. When the intent references both stores and no dependency
// direction can be established, it returns AmbiguousStrategyError rather
// than guessing.
func Select(snap *domain.Snapshot, in *domain.Intent) (domain.Strategy, error) {
	stores := in.StoresReferenced()
	if len(stores) == 0 {
		return domain.StrategyUnknown, domain.ErrAmbiguousStrategy("intent references no fields", nil)
	}

	if s, ok := applyHint(snap, in, stores); ok {
		return s, nil
	}

	if len(stores) == 1 {
		switch stores[0] {
		case domain.StoreMySQL:
			return domain.StrategyMySQLOnly, nil
		case domain.StoreInflux:
			return domain.StrategyInfluxOnly, nil
		}
	}

	// Mixed references. A declared join link is the only bridge between the
	// stores; without one there is nothing to join on.
	links := snap.LinksBetween(
		in.CollectionsFor(domain.StoreMySQL),
		in.CollectionsFor(domain.StoreInflux),
	)
	if len(links) == 0 {
		return domain.StrategyUnknown, domain.ErrAmbiguousStrategy(
			"no declared join relationship between the referenced collections", in.Refs())
	}

	forward := directionEvidence(snap, in, domain.StoreMySQL, domain.StoreInflux)
	reverse := directionEvidence(snap, in, domain.StoreInflux, domain.StoreMySQL)

	switch {
	case forward && !reverse:
		return domain.StrategyMySQLThenFlux, nil
	case reverse && !forward:
		return domain.StrategyFluxThenMySQL, nil
	case forward && reverse:
		return domain.StrategyUnknown, domain.ErrAmbiguousStrategy(
			"both dependency directions are plausible", in.Refs())
	default:
		return domain.StrategyUnknown, domain.ErrAmbiguousStrategy(
			"no dependency direction can be established", in.Refs())
	}
}

// applyHint honors an intent's strategy hint when it is consistent with the
// referenced stores. Inconsistent hints are ignored, not errors: the normal
// rules decide.
func applyHint(snap *domain.Snapshot, in *domain.Intent, stores []domain.StoreID) (domain.Strategy, bool) {
	if !in.Hint.Valid() {
		return domain.StrategyUnknown, false
	}
	hinted := in.Hint.Stores()
	if !sameStoreSet(hinted, stores) {
		return domain.StrategyUnknown, false
	}
	if in.Hint.CrossStore() {
		links := snap.LinksBetween(
			in.CollectionsFor(domain.StoreMySQL),
			in.CollectionsFor(domain.StoreInflux),
		)
		if len(links) == 0 {
			return domain.StrategyUnknown, false
		}
	}
	return in.Hint, true
}

// directionEvidence reports whether the intent shows "from feeds to": a
// predicate on the first store narrowing what the second store's metrics
// are asked about. Filters on timestamp fields do not count; a bare time
// window says nothing about direction.
func directionEvidence(snap *domain.Snapshot, in *domain.Intent, from, to domain.StoreID) bool {
	hasFilter := false
	for _, f := range in.FiltersFor(from) {
		if fld, err := snap.ResolveField(f.Ref); err == nil && fld.Type == domain.FieldTimestamp {
			continue
		}
		hasFilter = true
		break
	}
	return hasFilter && len(in.MetricsFor(to)) > 0
}

func sameStoreSet(a, b []domain.StoreID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[domain.StoreID]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}
