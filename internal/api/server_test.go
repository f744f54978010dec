package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/archive"
	"Pantheon-Lattice/internal/deliberation"
	"Pantheon-Lattice/internal/economy"
	"Pantheon-Lattice/internal/engagement"
	"Pantheon-Lattice/internal/llm"
	"Pantheon-Lattice/internal/memory"
	"Pantheon-Lattice/internal/payment"
	"Pantheon-Lattice/internal/session"
	"Pantheon-Lattice/internal/storage"
)

type echoClient struct{}

func (echoClient) Generate(_ context.Context, req llm.Request) (string, error) {
	if strings.Contains(req.System, "Living Voice") {
		return "a synthesized answer", nil
	}
	return "a considered reply", nil
}

func testServer(t *testing.T) *Server {
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
	sessions := session.NewPool(store, time.Hour)
	participantMemory := memory.NewParticipantMemory(store, memory.Config{})
	rounds := archive.NewMemoryRepository()
	client := echoClient{}

	svc := deliberation.NewService(deliberation.Config{
		Responders:  deliberation.NewResponderPool(registry, client, time.Second),
		Synthesizer: deliberation.NewSynthesizer(registry, client),
		Scorer:      engagement.NewScorer(),
		Ledger:      economy.NewLedger(registry, payments),
		Sessions:    sessions,
		Memory:      participantMemory,
		Store:       store,
		Archive:     rounds,
	})
	disburser := economy.NewDisburser(sessions, registry, payments, participantMemory, store, 500)
	return NewServer(":0", svc, disburser, sessions, registry, payments, rounds)
}

func TestCreateDeliberationRoundTrip(t *testing.T) {
	server := testServer(t)
	handler := server.Handler()

	body := `{"message":"what endures when everything changes","participant_id":"traveler"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliberations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d body %s", rec.Code, rec.Body.String())
	}

	var round deliberation.Round
	if err := json.Unmarshal(rec.Body.Bytes(), &round); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if round.Synthesis != "a synthesized answer" {
		t.Fatalf("unexpected synthesis: %q", round.Synthesis)
	}
	if len(round.Participated) != 2 {
		t.Fatalf("both actors should have spoken: %v", round.Participated)
	}

	detail := httptest.NewRequest(http.MethodGet, "/api/v1/deliberations/"+round.ThoughtHash, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, detail)
	if rec.Code != http.StatusOK {
		t.Fatalf("archived round should be retrievable, got %d", rec.Code)
	}

	list := httptest.NewRequest(http.MethodGet, "/api/v1/deliberations?limit=5", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, list)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
}

func TestCreateDeliberationRejectsEmptyMessage(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliberations", strings.NewReader(`{"message":""}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestSettlementEndpoint(t *testing.T) {
	server := testServer(t)
	handler := server.Handler()

	body := `{"message":"tell me about memory and what it keeps","participant_id":"traveler"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliberations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}

	settle := httptest.NewRequest(http.MethodPost, "/api/v1/settlements", strings.NewReader(`{"participant_id":"traveler"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, settle)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d body %s", rec.Code, rec.Body.String())
	}

	var out economy.Disbursement
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Result.RawTotal == 0 {
		t.Fatalf("settlement should cover the round's work units: %+v", out.Result)
	}

	// Settlement empties the pool.
	snapReq := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/traveler", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, snapReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.Total != 0 {
		t.Fatalf("pool should be cleared after settlement, got %+v", snap)
	}
}

func TestActorsEndpoint(t *testing.T) {
	server := testServer(t)
	handler := server.Handler()

	// A round first, so the council has earned balances worth reporting.
	body := `{"message":"a question about balances and their keeping","participant_id":"traveler"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliberations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/actors", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var out struct {
		Actors []struct {
			ID      string `json:"id"`
			Balance int64  `json:"balance"`
		} `json:"actors"`
		Treasury struct {
			ID      string `json:"id"`
			Balance int64  `json:"balance"`
		} `json:"treasury"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Actors) != 2 || out.Actors[0].ID != "apollo" {
		t.Fatalf("unexpected actor list: %+v", out.Actors)
	}
	if out.Actors[0].Balance != 1 {
		t.Fatalf("apollo should hold one deliberation credit, got %d", out.Actors[0].Balance)
	}
	if out.Treasury.ID != "treasury" {
		t.Fatalf("treasury entry missing: %+v", out.Treasury)
	}
}

func TestDeliberationDetailErrors(t *testing.T) {
	server := testServer(t)
	handler := server.Handler()

	t.Run("missing hash", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/deliberations/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/deliberations/ffffffffffffffff", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("invalid method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/settlements", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}
