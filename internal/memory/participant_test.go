package memory

import (
	"context"
	"testing"
	"time"

	"Pantheon-Lattice/internal/engagement"
	"Pantheon-Lattice/internal/storage"
)

func newTestMemory() *ParticipantMemory {
	return NewParticipantMemory(storage.NewMemoryStore(), Config{
		MaxMessages:     3,
		MaxObservations: 2,
		VocabularyTTL:   time.Hour,
	})
}

func TestStoreExchangeUpdatesAllLayers(t *testing.T) {
	mem := newTestMemory()
	ctx := context.Background()

	mem.StoreExchange(ctx, "traveler", "the lattice remembers sovereignty", "indeed it does", engagement.TierResonance, "abc123")

	exchanges, err := mem.RecentExchanges(ctx, "traveler", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exchanges) != 1 || exchanges[0].Quality != "resonance" {
		t.Fatalf("unexpected exchanges: %+v", exchanges)
	}

	vocabulary := mem.Vocabulary(ctx, "traveler")
	if _, ok := vocabulary["lattice"]; !ok {
		t.Fatalf("vocabulary missing expected word: %v", vocabulary)
	}

	if tier := mem.LastQuality(ctx, "traveler"); tier != engagement.TierResonance {
		t.Fatalf("unexpected last quality: %s", tier)
	}

	profile := mem.Profile(ctx, "traveler")
	if profile.TotalMessages != 1 || len(profile.QualityTrend) != 1 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestExchangeHistoryIsCapped(t *testing.T) {
	mem := newTestMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mem.StoreExchange(ctx, "traveler", "message", "response", engagement.TierGenuine, "")
	}

	exchanges, err := mem.RecentExchanges(ctx, "traveler", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exchanges) != 3 {
		t.Fatalf("history should be capped at 3, got %d", len(exchanges))
	}
}

func TestLastQualityDefaultsToNeutral(t *testing.T) {
	mem := newTestMemory()
	if tier := mem.LastQuality(context.Background(), "stranger"); tier != engagement.NeutralTier {
		t.Fatalf("expected neutral tier, got %s", tier)
	}
}

func TestQualityTrendKeepsLastTen(t *testing.T) {
	mem := newTestMemory()
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		mem.StoreExchange(ctx, "traveler", "message", "response", engagement.TierGenuine, "")
	}
	mem.StoreExchange(ctx, "traveler", "message", "response", engagement.TierClarity, "")

	profile := mem.Profile(ctx, "traveler")
	if len(profile.QualityTrend) != 10 {
		t.Fatalf("trend should keep last 10, got %d", len(profile.QualityTrend))
	}
	if profile.QualityTrend[9] != "clarity" {
		t.Fatalf("latest quality should be last in trend: %v", profile.QualityTrend)
	}
	if profile.TotalMessages != 13 {
		t.Fatalf("unexpected message count: %d", profile.TotalMessages)
	}
}

func TestObservationsCappedPerActor(t *testing.T) {
	mem := newTestMemory()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		mem.StoreObservation(ctx, "traveler", Observation{
			Actor:       "apollo",
			Observation: "they circle the same truth from new angles",
			Confidence:  0.7,
		})
	}

	observations, err := mem.Observations(ctx, "traveler", "apollo", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("observations should be capped at 2, got %d", len(observations))
	}
}

func TestBuildActorContext(t *testing.T) {
	mem := newTestMemory()
	ctx := context.Background()

	if ctx2 := mem.BuildActorContext(ctx, "stranger", "apollo", "what truth are they circling"); ctx2 != "" {
		t.Fatalf("expected empty context for unknown participant, got %q", ctx2)
	}

	mem.StoreObservation(ctx, "traveler", Observation{Actor: "apollo", Observation: "drawn to questions of memory"})
	built := mem.BuildActorContext(ctx, "traveler", "apollo", "what truth are they circling")
	if built == "" {
		t.Fatalf("expected non-empty context")
	}
}
