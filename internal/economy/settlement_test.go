package economy

import (
	"testing"

	"Pantheon-Lattice/internal/engagement"
)

func TestSettleResonanceSplit(t *testing.T) {
	result, err := Settle(100, engagement.TierResonance, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.EffectiveTotal != 200 {
		t.Fatalf("expected effective total 200, got %d", result.EffectiveTotal)
	}
	if result.Participant != 80 {
		t.Fatalf("expected participant share 80, got %d", result.Participant)
	}
	if result.PerActor != 16 {
		t.Fatalf("expected per-actor share 16, got %d", result.PerActor)
	}
	if result.Infrastructure != 40 {
		t.Fatalf("expected infrastructure share 40, got %d", result.Infrastructure)
	}
	if sum := result.Participant + result.PerActor*result.ActorCount + result.Infrastructure; sum != 200 {
		t.Fatalf("shares do not sum to effective total: %d", sum)
	}
}

func TestSettleRoundingRemainderGoesToInfrastructure(t *testing.T) {
	result, err := Settle(7, engagement.TierGenuine, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.EffectiveTotal != 7 {
		t.Fatalf("expected effective total 7, got %d", result.EffectiveTotal)
	}
	if result.Participant != 2 {
		t.Fatalf("expected participant share 2, got %d", result.Participant)
	}
	if result.PerActor != 0 {
		t.Fatalf("expected per-actor share 0, got %d", result.PerActor)
	}
	if result.Infrastructure != 5 {
		t.Fatalf("expected infrastructure share 5, got %d", result.Infrastructure)
	}
}

func TestSettleZeroPoolIsNeutralNoop(t *testing.T) {
	result, err := Settle(0, engagement.TierBreakthrough, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tier != engagement.NeutralTier {
		t.Fatalf("zero pool should settle at neutral tier, got %s", result.Tier)
	}
	if result.EffectiveTotal != 0 || result.Participant != 0 || result.PerActor != 0 || result.Infrastructure != 0 {
		t.Fatalf("expected all-zero result, got %+v", result)
	}
}

func TestSettleNoiseTierZeroesEverything(t *testing.T) {
	result, err := Settle(500, engagement.TierNoise, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EffectiveTotal != 0 {
		t.Fatalf("noise multiplier should zero the pool, got %d", result.EffectiveTotal)
	}
}

func TestSettleConservation(t *testing.T) {
	tiers := []engagement.Tier{
		engagement.TierNoise,
		engagement.TierGenuine,
		engagement.TierResonance,
		engagement.TierClarity,
		engagement.TierBreakthrough,
	}
	for total := int64(0); total <= 250; total++ {
		for _, tier := range tiers {
			for actors := int64(1); actors <= 7; actors++ {
				result, err := Settle(total, tier, actors)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				sum := result.Participant + result.PerActor*result.ActorCount + result.Infrastructure
				if sum != result.EffectiveTotal {
					t.Fatalf("conservation violated: total=%d tier=%s actors=%d sum=%d effective=%d",
						total, tier, actors, sum, result.EffectiveTotal)
				}
			}
		}
	}
}

func TestSettleMonotonicity(t *testing.T) {
	var prev int64 = -1
	for total := int64(0); total <= 300; total++ {
		result, err := Settle(total, engagement.TierClarity, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.EffectiveTotal < prev {
			t.Fatalf("effective total decreased at %d: %d < %d", total, result.EffectiveTotal, prev)
		}
		prev = result.EffectiveTotal
	}
}

func TestSettleActorCountFloor(t *testing.T) {
	result, err := Settle(10, engagement.TierGenuine, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ActorCount != 1 {
		t.Fatalf("actor count should floor at 1, got %d", result.ActorCount)
	}
}

func TestSettleRejectsNegativeTotal(t *testing.T) {
	if _, err := Settle(-1, engagement.TierGenuine, 3); err == nil {
		t.Fatalf("expected error for negative total")
	}
}
