package deliberation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"Pantheon-Lattice/internal/llm"
)

type fixedClient struct {
	out string
	err error
}

func (c fixedClient) Generate(context.Context, llm.Request) (string, error) {
	return c.out, c.err
}

func spokeOutcomes() []Outcome {
	return []Outcome{
		{ActorID: "apollo", State: StateSilent},
		{ActorID: "athena", State: StateSpoke, Text: "structure precedes strategy"},
		{ActorID: "hermes", State: StateFailed},
	}
}

func TestSynthesizePrimaryPath(t *testing.T) {
	synth := NewSynthesizer(broadcastRegistry(t), fixedClient{out: "one woven voice"})

	out := synth.Synthesize(context.Background(), "question", spokeOutcomes(), "")
	if out != "one woven voice" {
		t.Fatalf("unexpected synthesis: %q", out)
	}
}

func TestSynthesizeFallsBackToConcatenation(t *testing.T) {
	synth := NewSynthesizer(broadcastRegistry(t), fixedClient{err: errors.New("all hosts down")})

	out := synth.Synthesize(context.Background(), "question", spokeOutcomes(), "")
	if !strings.HasPrefix(out, "Multiple perspectives considered:") {
		t.Fatalf("expected concatenation fallback, got %q", out)
	}
	if !strings.Contains(out, "[Athena]: structure precedes strategy") {
		t.Fatalf("fallback should include the labeled outcome: %q", out)
	}
	if strings.Contains(out, "apollo") || strings.Contains(out, "hermes") {
		t.Fatalf("silent and failed actors must not appear in synthesis input: %q", out)
	}
}

func TestSynthesizeAllSilentReturnsSentinel(t *testing.T) {
	synth := NewSynthesizer(broadcastRegistry(t), fixedClient{out: "should not be called"})

	outcomes := []Outcome{
		{ActorID: "apollo", State: StateSilent},
		{ActorID: "athena", State: StateFailed},
		{ActorID: "hermes", State: StateSilent},
	}
	out := synth.Synthesize(context.Background(), "question", outcomes, "")
	if out != NoPerspectives {
		t.Fatalf("expected sentinel for empty synthesis input, got %q", out)
	}
}

func TestSynthesizeEmptyBackendOutputFallsBack(t *testing.T) {
	synth := NewSynthesizer(broadcastRegistry(t), fixedClient{out: "   "})

	out := synth.Synthesize(context.Background(), "question", spokeOutcomes(), "")
	if !strings.HasPrefix(out, "Multiple perspectives considered:") {
		t.Fatalf("blank backend output must fall back, got %q", out)
	}
}
