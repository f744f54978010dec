package deliberation

import (
	"context"
	"strings"
	"testing"
	"time"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/llm"
)

// scriptedClient 根据系统提示词中的人格名返回预设回复。
type scriptedClient struct {
	responses map[string]string
	errs      map[string]error
	hang      map[string]bool
}

func (c *scriptedClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	for name, should := range c.hang {
		if should && strings.Contains(req.System, name) {
			<-ctx.Done()
			return "", ctx.Err()
		}
	}
	for name, err := range c.errs {
		if strings.Contains(req.System, name) {
			return "", err
		}
	}
	for name, response := range c.responses {
		if strings.Contains(req.System, name) {
			return response, nil
		}
	}
	return "a considered reply", nil
}

func broadcastRegistry(t *testing.T) *actor.Registry {
	t.Helper()
	registry, err := actor.NewRegistry(actor.Definitions{
		Actors: []actor.Actor{
			{ID: "apollo", Name: "Apollo", Prompt: "You are Apollo."},
			{ID: "athena", Name: "Athena", Prompt: "You are Athena."},
			{ID: "hermes", Name: "Hermes", Prompt: "You are Hermes."},
		},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

func TestBroadcastOutcomeCompleteness(t *testing.T) {
	client := &scriptedClient{
		responses: map[string]string{
			"Apollo": "[silent]",
			"Athena": "hello world",
		},
		hang: map[string]bool{"Hermes": true},
	}
	pool := NewResponderPool(broadcastRegistry(t), client, 50*time.Millisecond)

	outcomes := pool.Broadcast(context.Background(), "what is truth", "", nil)

	if len(outcomes) != 3 {
		t.Fatalf("expected one outcome per actor, got %d", len(outcomes))
	}
	if outcomes[0].ActorID != "apollo" || outcomes[0].State != StateSilent {
		t.Fatalf("apollo should be silent: %+v", outcomes[0])
	}
	if outcomes[1].ActorID != "athena" || outcomes[1].State != StateSpoke || outcomes[1].Text != "hello world" {
		t.Fatalf("athena should speak: %+v", outcomes[1])
	}
	if outcomes[2].ActorID != "hermes" || outcomes[2].State != StateFailed {
		t.Fatalf("hermes should fail on timeout: %+v", outcomes[2])
	}
}

func TestBroadcastSilenceSentinelIsCaseInsensitive(t *testing.T) {
	client := &scriptedClient{
		responses: map[string]string{
			"Apollo": "  [SILENT]  ",
			"Athena": "[Silent]",
			"Hermes": "silence is not my way",
		},
	}
	pool := NewResponderPool(broadcastRegistry(t), client, time.Second)

	outcomes := pool.Broadcast(context.Background(), "message", "", nil)
	if outcomes[0].State != StateSilent || outcomes[1].State != StateSilent {
		t.Fatalf("sentinel not recognised: %+v", outcomes[:2])
	}
	if outcomes[2].State != StateSpoke {
		t.Fatalf("mentioning silence is not the sentinel: %+v", outcomes[2])
	}
}

func TestBroadcastStripsSelfPrefix(t *testing.T) {
	client := &scriptedClient{
		responses: map[string]string{
			"Apollo": "Apollo: the pattern is already visible",
			"Athena": "athena: structure precedes strategy",
			"Hermes": "plain words without a prefix",
		},
	}
	pool := NewResponderPool(broadcastRegistry(t), client, time.Second)

	outcomes := pool.Broadcast(context.Background(), "message", "", nil)
	if outcomes[0].Text != "the pattern is already visible" {
		t.Fatalf("name prefix not stripped: %q", outcomes[0].Text)
	}
	if outcomes[1].Text != "structure precedes strategy" {
		t.Fatalf("id prefix not stripped: %q", outcomes[1].Text)
	}
	if outcomes[2].Text != "plain words without a prefix" {
		t.Fatalf("text without prefix should be untouched: %q", outcomes[2].Text)
	}
}

func TestBroadcastFailureDoesNotAbortSiblings(t *testing.T) {
	client := &scriptedClient{
		errs: map[string]error{"Apollo": context.DeadlineExceeded},
		responses: map[string]string{
			"Athena": "still here",
			"Hermes": "me too",
		},
	}
	pool := NewResponderPool(broadcastRegistry(t), client, time.Second)

	outcomes := pool.Broadcast(context.Background(), "message", "", nil)
	if outcomes[0].State != StateFailed {
		t.Fatalf("apollo should fail: %+v", outcomes[0])
	}
	if outcomes[1].State != StateSpoke || outcomes[2].State != StateSpoke {
		t.Fatalf("siblings should be unaffected: %+v", outcomes[1:])
	}
}
