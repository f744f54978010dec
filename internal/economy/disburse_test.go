package economy

import (
	"context"
	"testing"
	"time"

	"Pantheon-Lattice/internal/engagement"
	"Pantheon-Lattice/internal/observability/alerting"
	"Pantheon-Lattice/internal/payment"
	"Pantheon-Lattice/internal/session"
	"Pantheon-Lattice/internal/storage"
)

type fixedQuality struct {
	tier engagement.Tier
}

func (q fixedQuality) LastQuality(context.Context, string) engagement.Tier {
	return q.tier
}

func TestDisburserFullSettlement(t *testing.T) {
	store := storage.NewMemoryStore()
	pool := session.NewPool(store, time.Hour)
	payments := payment.NewMemoryClient()
	registry := testRegistry(t)
	ctx := context.Background()

	if err := pool.Accumulate(ctx, "traveler", 100, []string{"apollo", "athena"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	disburser := NewDisburser(pool, registry, payments, fixedQuality{engagement.TierResonance}, store, 500)
	out, err := disburser.Settle(ctx, "traveler")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100 * 2.0 = 200; participant 80, actor pool 80 / 2 = 40 each, infra 40.
	if out.Result.EffectiveTotal != 200 || out.Result.Participant != 80 || out.Result.PerActor != 40 {
		t.Fatalf("unexpected split: %+v", out.Result)
	}
	if out.TransfersAttempted != 3 || out.TransfersFailed != 0 {
		t.Fatalf("unexpected transfer tally: %+v", out)
	}

	participantBalance, _ := payments.Balance(ctx, "traveler")
	if participantBalance != 80 {
		t.Fatalf("expected participant balance 80, got %d", participantBalance)
	}
	apolloBalance, _ := payments.Balance(ctx, "addr-apollo")
	if apolloBalance != 40 {
		t.Fatalf("expected apollo balance 40, got %d", apolloBalance)
	}

	snap, err := pool.Read(ctx, "traveler")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Total != 0 || len(snap.Actors) != 0 {
		t.Fatalf("pool should be cleared after settlement, got %+v", snap)
	}

	audit, err := store.Range(ctx, "lattice:settlements", 0, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audit) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit))
	}
}

func TestDisburserZeroPool(t *testing.T) {
	store := storage.NewMemoryStore()
	pool := session.NewPool(store, time.Hour)
	payments := payment.NewMemoryClient()

	disburser := NewDisburser(pool, testRegistry(t), payments, fixedQuality{engagement.TierBreakthrough}, store, 500)
	out, err := disburser.Settle(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("zero pool must settle cleanly: %v", err)
	}
	if out.Result.EffectiveTotal != 0 || out.TransfersAttempted != 0 {
		t.Fatalf("expected zero-valued settlement, got %+v", out)
	}
	if out.Result.Tier != engagement.NeutralTier {
		t.Fatalf("zero pool should use neutral tier, got %s", out.Result.Tier)
	}
}

type capturingDispatcher struct {
	events []alerting.Event
}

func (d *capturingDispatcher) Notify(_ context.Context, event alerting.Event) error {
	d.events = append(d.events, event)
	return nil
}

func TestDisburserTransferFailuresAreTallied(t *testing.T) {
	store := storage.NewMemoryStore()
	pool := session.NewPool(store, time.Hour)
	alerts := &capturingDispatcher{}
	ctx := context.Background()

	if err := pool.Accumulate(ctx, "traveler", 100, []string{"apollo", "athena"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	disburser := NewDisburser(pool, testRegistry(t), failingPayments{}, fixedQuality{engagement.TierGenuine}, store, 500, WithAlerting(alerts))
	out, err := disburser.Settle(ctx, "traveler")
	if err != nil {
		t.Fatalf("transfer failures must not abort settlement: %v", err)
	}
	if out.TransfersAttempted != 3 || out.TransfersFailed != 3 {
		t.Fatalf("unexpected tally: %+v", out)
	}

	// Pool is still cleared: the loss is accepted, not rolled back.
	snap, _ := pool.Read(ctx, "traveler")
	if snap.Total != 0 {
		t.Fatalf("pool should be cleared even when transfers fail, got %+v", snap)
	}

	if len(alerts.events) != 1 {
		t.Fatalf("expected one alert event, got %d", len(alerts.events))
	}
	if alerts.events[0].Failed != 3 || alerts.events[0].ParticipantID != "traveler" {
		t.Fatalf("unexpected alert event: %+v", alerts.events[0])
	}
}

func TestDisburserRejectsEmptyParticipant(t *testing.T) {
	store := storage.NewMemoryStore()
	disburser := NewDisburser(session.NewPool(store, time.Hour), testRegistry(t), payment.NewMemoryClient(), fixedQuality{engagement.TierGenuine}, store, 500)
	if _, err := disburser.Settle(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty participant id")
	}
}
