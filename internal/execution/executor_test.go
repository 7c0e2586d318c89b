package execution

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"polymarket-arb/internal/market"
	"polymarket-arb/internal/strategy"
)

func newTestExecutor(t *testing.T, store *market.Store) *Executor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := Config{BaseURL: "https://example.invalid", DryRun: true, PaperFeeRate: 0.01}
	return NewExecutor(cfg, nil, store, logger)
}

func TestPlaceDryRunUsesPaperFillWhenBookPresent(t *testing.T) {
	t.Parallel()
	store := setupPairWithBooks(t)
	exec := newTestExecutor(t, store)

	fill, err := exec.Place(context.Background(), "yes", 0.45, 50.0, Buy)
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if !fill.IsPaper {
		t.Error("expected paper fill in dry-run mode")
	}
	if diff := fill.Price - 0.45; diff > 0.001 || diff < -0.001 {
		t.Errorf("Price = %v, want ~0.45", fill.Price)
	}
}

func TestPlaceDryRunFallsBackWithoutBook(t *testing.T) {
	t.Parallel()
	store := market.NewStore()
	exec := newTestExecutor(t, store)

	fill, err := exec.Place(context.Background(), "unknown", 0.5, 10.0, Sell)
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if !fill.IsPaper {
		t.Error("expected a synthetic dry-run fill")
	}
	if fill.OrderID == "" {
		t.Error("expected a synthetic order id")
	}
}

func TestExecuteArbitrageProducesTwoFills(t *testing.T) {
	t.Parallel()
	store := setupPairWithBooks(t)
	exec := newTestExecutor(t, store)

	intent := strategy.NewArbitrageIntent("yes", "no", 0.45, 0.50, 0.04, 50.0)
	fills, err := exec.Execute(context.Background(), intent)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("len(fills) = %v, want 2", len(fills))
	}
}

func TestPlaceLiveWithoutSignerFails(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := Config{BaseURL: "https://example.invalid", DryRun: false}
	exec := NewExecutor(cfg, nil, market.NewStore(), logger)

	_, err := exec.Place(context.Background(), "yes", 0.5, 10.0, Buy)
	if err == nil {
		t.Error("expected an error placing a live order without a signing key")
	}
}

func TestCancelDryRunIsNoop(t *testing.T) {
	t.Parallel()
	exec := newTestExecutor(t, market.NewStore())
	if err := exec.Cancel(context.Background(), "order-123"); err != nil {
		t.Errorf("Cancel() error = %v, want nil in dry-run mode", err)
	}
}

func TestCancelLiveWithoutSignerFails(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := Config{BaseURL: "https://example.invalid", DryRun: false}
	exec := NewExecutor(cfg, nil, market.NewStore(), logger)

	err := exec.Cancel(context.Background(), "order-123")
	if err == nil {
		t.Error("expected an error cancelling a live order without a signing key")
	}
}

func TestSignProducesDistinctSignaturesPerMessage(t *testing.T) {
	t.Parallel()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	exec := NewExecutor(Config{BaseURL: "https://example.invalid"}, key, market.NewStore(), logger)

	sigA, err := exec.sign("order-1:1")
	if err != nil {
		t.Fatalf("sign() error = %v", err)
	}
	sigB, err := exec.sign("order-2:1")
	if err != nil {
		t.Fatalf("sign() error = %v", err)
	}
	if sigA == sigB {
		t.Error("expected distinct signatures for distinct messages")
	}
	if sigA[:2] != "0x" {
		t.Errorf("sign() = %q, want 0x-prefixed hex", sigA)
	}
}
