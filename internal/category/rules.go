package category

import "github.com/brandond/obra-upgrades/internal/discipline"

// upgradeThreshold describes one category's points requirement for one
// upgrade-discipline (spec §4.6).
type upgradeThreshold struct {
	Min     int
	Max     int
	Races   int // 0 means unset
	Podiums int // 0 means unset; podium rule takes precedence over sum rule
}

// thresholds is keyed by upgrade-discipline then category. Mountain-bike
// and track are intentionally absent: the source marks their thresholds
// FIXME, and the spec's Open Questions direct implementers to leave them
// unparameterized rather than guess.
var thresholds = map[discipline.Tag]map[int]upgradeThreshold{
	discipline.Road: {
		4: {Min: 15, Max: 25, Races: 10},
		3: {Min: 20, Max: 30, Races: 25},
		2: {Min: 25, Max: 40},
		1: {Min: 30, Max: 50},
	},
	discipline.Cyclocross: {
		4: {Min: 0, Max: 20},
		3: {Min: 0, Max: 20},
		2: {Min: 20, Max: 20},
		1: {Min: 20, Max: 35},
	},
}

func lookupThreshold(d discipline.Tag, category int) (upgradeThreshold, bool) {
	byCategory, ok := thresholds[d]
	if !ok {
		return upgradeThreshold{}, false
	}
	t, ok := byCategory[category]
	return t, ok
}

// needsUpgrade implements the first predicate of §4.6.
func needsUpgrade(d discipline.Tag, category int, sum int, catPoints []catPoint) bool {
	t, ok := lookupThreshold(d, category)
	if !ok {
		return false
	}
	if t.Podiums > 0 {
		podiums := 0
		for _, p := range catPoints {
			if p.Place >= 1 && p.Place <= 3 {
				podiums++
			}
		}
		return podiums >= t.Podiums
	}
	return sum >= t.Max
}

// canUpgrade implements the second predicate of §4.6.
func canUpgrade(d discipline.Tag, category int, sum int, catPoints []catPoint, checkMinRaces bool) bool {
	t, ok := lookupThreshold(d, category)
	if !ok {
		return true
	}
	if t.Podiums > 0 {
		return category > 0
	}
	if sum >= t.Min {
		return true
	}
	if checkMinRaces && t.Races > 0 {
		return len(catPoints) >= t.Races
	}
	return false
}
