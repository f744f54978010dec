package llm

import (
	"context"
	"errors"
	"testing"
)

type stubClient struct {
	reply string
	err   error
	calls int
}

func (s *stubClient) Generate(_ context.Context, _ Request) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func TestFallbackUsesFirstHealthyBackend(t *testing.T) {
	primary := &stubClient{reply: "primary"}
	secondary := &stubClient{reply: "secondary"}

	fb, err := NewFallback(primary, secondary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := fb.Generate(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "primary" {
		t.Fatalf("unexpected output: %q", out)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary should not be called")
	}
}

func TestFallbackSkipsFailingBackend(t *testing.T) {
	primary := &stubClient{err: errors.New("connection refused")}
	secondary := &stubClient{reply: "secondary"}

	fb, err := NewFallback(primary, secondary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := fb.Generate(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "secondary" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFallbackAllBackendsDown(t *testing.T) {
	primary := &stubClient{err: errors.New("down")}
	secondary := &stubClient{err: errors.New("also down")}

	fb, err := NewFallback(primary, secondary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := fb.Generate(context.Background(), Request{Prompt: "hello"}); err == nil {
		t.Fatalf("expected error when all backends fail")
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("each backend should be tried once")
	}
}

func TestNewFallbackRequiresBackends(t *testing.T) {
	if _, err := NewFallback(); err == nil {
		t.Fatalf("expected error without backends")
	}
}
