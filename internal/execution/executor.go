// Package execution implements the Executor (spec §4.7): it turns a
// risk-admitted TradeIntent into one or two signed REST order placements
// against the venue, or — in dry-run mode — a VWAP-simulated paper fill.
//
// Grounded on the teacher's internal/exchange/client.go for the resty
// client shape (base URL, timeout; retries are disabled here) and
// internal/exchange/auth.go for reusing go-ethereum's crypto.Sign rather
// than hand-rolling ECDSA. The canonical signed message here is spec §4.7's
// "token:price:size:side:nonce" string, not Polymarket's real EIP-712/HMAC
// dual-auth scheme, since the spec defines its own simpler signing contract.
package execution

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"polymarket-arb/internal/market"
	"polymarket-arb/internal/strategy"
)

// microPerDollar converts between microdollars and dollars, matching the
// Risk Gate's P&L unit.
const microPerDollar = 1_000_000.0

// orderTimeout is the HTTP timeout for order requests — short because a
// stale fill is worse than a failed one in latency-sensitive arbitrage.
const orderTimeout = 500 * time.Millisecond

// Side mirrors the wire value the venue expects.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// orderRequest is the JSON body posted to the venue's order endpoint.
type orderRequest struct {
	TokenID    string `json:"tokenId"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	Side       Side   `json:"side"`
	OrderType  string `json:"orderType"`
	Signature  string `json:"signature"`
	Timestamp  int64  `json:"timestamp"`
	Nonce      int64  `json:"nonce"`
}

type orderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// Fill is the outcome of placing (or simulating) a single leg.
type Fill struct {
	OrderID string
	Price   float64
	Size    float64
	IsPaper bool
}

// Config configures the Executor.
type Config struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	DryRun       bool
	PaperFeeRate float64
}

// Executor places orders against the venue, falling back to paper-traded
// VWAP fills in dry-run mode.
type Executor struct {
	cfg    Config
	http   *resty.Client
	rl     *TokenBucket
	signer *ecdsa.PrivateKey // nil in dry-run without a configured wallet
	paper  *PaperTrader
	store  *market.Store
	logger *slog.Logger
}

// NewExecutor builds an Executor. signer may be nil when cfg.DryRun is true
// and no wallet is configured — live trading requires a non-nil signer.
func NewExecutor(cfg Config, signer *ecdsa.PrivateKey, store *market.Store, logger *slog.Logger) *Executor {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(orderTimeout).
		SetRetryCount(0). // a 500ms-budget order request has no room for retries
		SetHeader("Content-Type", "application/json")

	return &Executor{
		cfg:    cfg,
		http:   httpClient,
		rl:     NewTokenBucket(350, 50),
		signer: signer,
		paper:  NewPaperTrader(cfg.PaperFeeRate),
		store:  store,
		logger: logger.With("component", "execution"),
	}
}

// PaperTrader exposes the executor's paper-fill accountant for stats
// reporting (spec §4.8 state broadcasts).
func (e *Executor) PaperTrader() *PaperTrader { return e.paper }

// Execute dispatches a risk-admitted TradeIntent: a single Place for
// Buy/Sell, or two concurrent-less sequential Place calls for Arbitrage
// (the Strategy Engine does not use Execute: it calls Place for each leg
// concurrently and handles partial failure per
// enginecore.Config.CancelOnPartialArbFailure).
func (e *Executor) Execute(ctx context.Context, intent strategy.TradeIntent) ([]Fill, error) {
	switch intent.Kind {
	case strategy.IntentBuy:
		fill, err := e.Place(ctx, intent.Token, intent.Price, intent.Size, Buy)
		if err != nil {
			return nil, err
		}
		return []Fill{fill}, nil
	case strategy.IntentSell:
		fill, err := e.Place(ctx, intent.Token, intent.Price, intent.Size, Sell)
		if err != nil {
			return nil, err
		}
		return []Fill{fill}, nil
	case strategy.IntentArbitrage:
		yesFill, err := e.Place(ctx, intent.YesToken, intent.YesPrice, intent.Size, Buy)
		if err != nil {
			return nil, fmt.Errorf("yes leg: %w", err)
		}
		noFill, err := e.Place(ctx, intent.NoToken, intent.NoPrice, intent.Size, Buy)
		if err != nil {
			return []Fill{yesFill}, fmt.Errorf("no leg: %w", err)
		}
		return []Fill{yesFill, noFill}, nil
	default:
		return nil, fmt.Errorf("unknown intent kind %q", intent.Kind)
	}
}

// Place submits a single order, or — in dry-run mode — produces a
// paper/synthetic fill without touching the network.
func (e *Executor) Place(ctx context.Context, token string, price, size float64, side Side) (Fill, error) {
	timestamp := time.Now().Unix()
	nonce := timestamp*1000 + rand.Int63n(1000)

	// Exact decimal formatting for the canonical signed message — float
	// formatting can round differently than the venue expects at the 4th/2nd
	// decimal place, which would invalidate the signature.
	priceStr := decimal.NewFromFloat(price).StringFixed(4)
	sizeStr := decimal.NewFromFloat(size).StringFixed(2)

	if e.cfg.DryRun {
		if side == Buy {
			if fill, ok := e.paper.SimulateBuy(e.store, token, size); ok {
				e.logger.Info("paper fill", "token", token, "price", fill.Price, "size", fill.Size)
				return Fill{OrderID: "paper-" + uuid.NewString(), Price: fill.Price, Size: fill.Size, IsPaper: true}, nil
			}
		}
		e.logger.Info("dry-run order", "token", token, "side", side, "price", priceStr, "size", sizeStr)
		return Fill{OrderID: "dry-run-" + uuid.NewString(), Price: price, Size: size, IsPaper: true}, nil
	}

	if e.signer == nil {
		return Fill{}, fmt.Errorf("no signing key configured - cannot place live orders")
	}
	if err := e.rl.Wait(ctx); err != nil {
		return Fill{}, err
	}

	message := fmt.Sprintf("%s:%s:%s:%s:%d", token, priceStr, sizeStr, side, nonce)
	sig, err := e.sign(message)
	if err != nil {
		return Fill{}, fmt.Errorf("sign order: %w", err)
	}

	req := orderRequest{
		TokenID:   token,
		Price:     priceStr,
		Size:      sizeStr,
		Side:      side,
		OrderType: "GTC",
		Signature: sig,
		Timestamp: timestamp,
		Nonce:     nonce,
	}

	var result orderResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeader("POLY-API-KEY", e.cfg.APIKey).
		SetHeader("POLY-SIGNATURE", sig).
		SetHeader("POLY-TIMESTAMP", fmt.Sprintf("%d", timestamp)).
		SetBody(req).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return Fill{}, fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Fill{}, fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
	}

	e.logger.Info("order placed", "order_id", result.OrderID, "token", token, "side", side, "price", price, "size", size)
	return Fill{OrderID: result.OrderID, Price: price, Size: size}, nil
}

// sign produces an ECDSA signature over the canonical order message on a
// dedicated goroutine, isolating the CPU-bound crypto.Sign call from the
// caller's own cancellation path — mirroring the original's
// tokio::task::spawn_blocking isolation without needing a literal thread
// pool, since Go's scheduler already preempts goroutines fairly.
func (e *Executor) sign(message string) (string, error) {
	type result struct {
		sig []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		hash := crypto.Keccak256([]byte(message))
		sig, err := crypto.Sign(hash, e.signer)
		done <- result{sig: sig, err: err}
	}()

	r := <-done
	if r.err != nil {
		return "", r.err
	}
	return "0x" + common.Bytes2Hex(r.sig), nil
}

// Cancel cancels a previously placed order. No-op in dry-run mode.
func (e *Executor) Cancel(ctx context.Context, orderID string) error {
	if e.cfg.DryRun {
		e.logger.Info("dry-run cancel", "order_id", orderID)
		return nil
	}
	if e.signer == nil {
		return fmt.Errorf("no signing key configured - cannot cancel live orders")
	}
	if err := e.rl.Wait(ctx); err != nil {
		return err
	}

	timestamp := time.Now().Unix()
	nonce := timestamp*1000 + rand.Int63n(1000)
	message := fmt.Sprintf("%s:%d", orderID, nonce)
	sig, err := e.sign(message)
	if err != nil {
		return fmt.Errorf("sign cancel: %w", err)
	}

	resp, err := e.http.R().
		SetContext(ctx).
		SetHeader("POLY-API-KEY", e.cfg.APIKey).
		SetHeader("POLY-SIGNATURE", sig).
		SetHeader("POLY-TIMESTAMP", fmt.Sprintf("%d", timestamp)).
		Delete("/order/" + orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	e.logger.Info("order cancelled", "order_id", orderID)
	return nil
}
