package payment

import (
	"context"
	"testing"
)

func TestMemoryTransferMovesBalance(t *testing.T) {
	client := NewMemoryClient()
	ctx := context.Background()

	receipt, err := client.Transfer(ctx, Transfer{From: "treasury", To: "apollo", Amount: 3, Memo: "deliberation"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Status != StatusSettled || receipt.Reference == "" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	apollo, _ := client.Balance(ctx, "apollo")
	treasury, _ := client.Balance(ctx, "treasury")
	if apollo != 3 || treasury != -3 {
		t.Fatalf("unexpected balances: apollo=%d treasury=%d", apollo, treasury)
	}
}

func TestMemoryTransferRejectsInvalid(t *testing.T) {
	client := NewMemoryClient()
	ctx := context.Background()

	if _, err := client.Transfer(ctx, Transfer{From: "treasury", To: "apollo", Amount: 0}); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if _, err := client.Transfer(ctx, Transfer{From: "treasury", To: "apollo", Amount: -5}); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if _, err := client.Transfer(ctx, Transfer{From: "treasury", Amount: 1}); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
	if len(client.History()) != 0 {
		t.Fatalf("rejected transfers must not be recorded")
	}
}
