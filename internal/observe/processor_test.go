package observe

import (
	"context"
	"strings"
	"testing"
	"time"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/deliberation"
	"Pantheon-Lattice/internal/economy"
	"Pantheon-Lattice/internal/llm"
	"Pantheon-Lattice/internal/memory"
	"Pantheon-Lattice/internal/payment"
	"Pantheon-Lattice/internal/storage"
)

type observerClient struct {
	responses map[string]string
}

func (c *observerClient) Generate(_ context.Context, req llm.Request) (string, error) {
	for key, text := range c.responses {
		if strings.Contains(req.System, key) {
			return text, nil
		}
	}
	return "nothing notable", nil
}

func processorFixture(t *testing.T, client llm.Client) (*Processor, *MemoryQueue, *memory.ParticipantMemory, *payment.MemoryClient) {
	t.Helper()

	registry, err := actor.NewRegistry(actor.Definitions{
		Actors: []actor.Actor{
			{ID: "apollo", Name: "Apollo", Prompt: "You are Apollo.", Lens: "creative potential", Address: "addr-apollo"},
			{ID: "athena", Name: "Athena", Prompt: "You are Athena.", Lens: "strategic thinking", Address: "addr-athena"},
		},
		Treasury: actor.Actor{Name: "Treasury", Address: "addr-treasury"},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	store := storage.NewMemoryStore()
	payments := payment.NewMemoryClient()
	participantMemory := memory.NewParticipantMemory(store, memory.Config{})
	queue := NewMemoryQueue(8)

	proc := NewProcessor(
		registry,
		client,
		participantMemory,
		economy.NewLedger(registry, payments),
		queue,
		WithWorkerCount(1),
	)
	return proc, queue, participantMemory, payments
}

func runProcessor(t *testing.T, proc *Processor, queue *MemoryQueue, req deliberation.ObservationRequest) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := NewEnqueuer(queue).Enqueue(ctx, req); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = proc.Start(ctx)
	}()

	// The memory queue is drained in order, so a short grace period is
	// enough for the single pending request.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("processor did not stop after cancellation")
	}
}

func TestProcessorStoresObservationsAndCredits(t *testing.T) {
	client := &observerClient{
		responses: map[string]string{
			"Apollo": "This traveler keeps circling back to questions of permanence.",
			"Athena": "nothing notable",
		},
	}
	proc, queue, participantMemory, payments := processorFixture(t, client)

	runProcessor(t, proc, queue, deliberation.ObservationRequest{
		ParticipantID: "traveler",
		Message:       "what endures when everything changes",
		ThoughtHash:   "abc123",
		ActorResponses: map[string]string{
			"apollo": "Change is the canvas permanence paints on.",
			"athena": "Consider what you rebuild after every loss.",
		},
	})

	ctx := context.Background()
	fromApollo, err := participantMemory.Observations(ctx, "traveler", "apollo", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fromApollo) != 1 {
		t.Fatalf("expected one stored observation, got %d", len(fromApollo))
	}
	if fromApollo[0].SourceHash != "abc123" {
		t.Fatalf("observation should carry the round hash: %+v", fromApollo[0])
	}

	// "nothing notable" is a respected refusal: nothing stored, nothing credited.
	fromAthena, err := participantMemory.Observations(ctx, "traveler", "athena", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fromAthena) != 0 {
		t.Fatalf("refusals must not be stored: %+v", fromAthena)
	}

	apollo, _ := payments.Balance(ctx, "addr-apollo")
	athena, _ := payments.Balance(ctx, "addr-athena")
	if apollo != 1 || athena != 0 {
		t.Fatalf("only stored observations earn credit: apollo=%d athena=%d", apollo, athena)
	}
}

func TestProcessorDiscardsShortObservations(t *testing.T) {
	client := &observerClient{
		responses: map[string]string{"Apollo": "ok", "Athena": "fine."},
	}
	proc, queue, participantMemory, _ := processorFixture(t, client)

	runProcessor(t, proc, queue, deliberation.ObservationRequest{
		ParticipantID:  "traveler",
		Message:        "hello",
		ThoughtHash:    "def456",
		ActorResponses: map[string]string{"apollo": "hi", "athena": "hey"},
	})

	ctx := context.Background()
	for _, actorID := range []string{"apollo", "athena"} {
		stored, err := participantMemory.Observations(ctx, "traveler", actorID, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(stored) != 0 {
			t.Fatalf("trivial observations must be discarded: %s stored %+v", actorID, stored)
		}
	}
}

func TestProcessorIgnoresMalformedPayloads(t *testing.T) {
	proc, queue, _, payments := processorFixture(t, &observerClient{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := queue.Publish(ctx, "not json at all"); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = proc.Start(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	apollo, _ := payments.Balance(context.Background(), "addr-apollo")
	if apollo != 0 {
		t.Fatalf("malformed payloads must not produce credits, got %d", apollo)
	}
}
