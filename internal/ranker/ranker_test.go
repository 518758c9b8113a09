package ranker

import (
	"math"
	"testing"

	"github.com/brandond/obra-upgrades/internal/types"
)

func TestComputeQualityClampedAndMonotonic(t *testing.T) {
	smallField := &types.Race{Starters: 5, Categories: []int{3}}
	largeField := &types.Race{Starters: 50, Categories: []int{3}}

	qSmall, _ := computeQuality(smallField, nil, nil)
	qLarge, _ := computeQuality(largeField, nil, nil)

	if qLarge <= qSmall {
		t.Errorf("expected a larger field to score higher quality: small=%v large=%v", qSmall, qLarge)
	}
	if qSmall < 0 || qSmall > 10 || qLarge < 0 || qLarge > 10 {
		t.Errorf("quality must be clamped to [0,10]: small=%v large=%v", qSmall, qLarge)
	}
}

func TestComputeQualityNoCategoriesDefaultsSpreadToOne(t *testing.T) {
	race := &types.Race{Starters: 10, Categories: nil}
	withNoCats, _ := computeQuality(race, nil, nil)

	raceWithOne := &types.Race{Starters: 10, Categories: []int{1}}
	withOneCat, _ := computeQuality(raceWithOne, nil, nil)

	if withNoCats != withOneCat {
		t.Errorf("an uncategorized race should score the same spread term as a single-category race: %v != %v", withNoCats, withOneCat)
	}
}

func TestComputeQualityUsesPriorRankMean(t *testing.T) {
	race := &types.Race{Starters: 10, Categories: []int{3}}
	weak := map[int64]float64{1: 1, 2: 1}
	strong := map[int64]float64{1: 9, 2: 9}

	qWeak, _ := computeQuality(race, weak, nil)
	qStrong, _ := computeQuality(race, strong, nil)

	if qStrong <= qWeak {
		t.Errorf("a field of stronger prior riders should score higher: weak=%v strong=%v", qWeak, qStrong)
	}
}

func TestComputeQualityIdenticalInputsProduceEqualQuality(t *testing.T) {
	race1 := &types.Race{Starters: 20, Categories: []int{3, 4}}
	race2 := &types.Race{Starters: 20, Categories: []int{3, 4}}
	priors := map[int64]float64{1: 5, 2: 6}

	q1, _ := computeQuality(race1, priors, nil)
	q2, _ := computeQuality(race2, priors, nil)

	if q1 != q2 {
		t.Errorf("identical starters/categories/priors should produce equal quality: %v != %v", q1, q2)
	}
}

func TestComputeRankFirstPlaceKeepsFullQuality(t *testing.T) {
	res := &types.Result{Place: "1"}
	if got := computeRank(8, res, 20); got != 8 {
		t.Errorf("computeRank(first place) = %v, want 8", got)
	}
}

func TestComputeRankDecaysWithPlace(t *testing.T) {
	res := &types.Result{Place: "10"}
	got := computeRank(8, res, 20)
	want := 8 * (1 - 9.0/20.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("computeRank(place 10 of 20) = %v, want %v", got, want)
	}
}

func TestComputeRankNonNumericPlaceIsZero(t *testing.T) {
	res := &types.Result{Place: "dnf"}
	if got := computeRank(8, res, 20); got != 0 {
		t.Errorf("computeRank(dnf) = %v, want 0", got)
	}
}

func TestComputeRankZeroStartersIsZero(t *testing.T) {
	res := &types.Result{Place: "1"}
	if got := computeRank(8, res, 0); got != 0 {
		t.Errorf("computeRank(zero starters) = %v, want 0", got)
	}
}
