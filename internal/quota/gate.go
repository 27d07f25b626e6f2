// Package quota enforces the per-user generation allowance and the time-boxed
// ad-unlock flow. The gate is the only writer of quota state and always
// mutates it through conditional updates, never read-then-write.
package quota

import (
	"context"
	"time"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/pkg/logger"
	"github.com/personify-ai/chat-platform/pkg/metrics"
)

// Store is the subset of storage operations the gate needs. Every mutation is
// atomic on the storage side.
type Store interface {
	EnsureQuota(ctx context.Context, userID string, initial int) error
	DebitIfRemaining(ctx context.Context, userID string) (remaining int, debited bool, err error)
	PendingUnlockToken(ctx context.Context, userID string) (string, error)
	SavePendingUnlockToken(ctx context.Context, userID, token string, issuedAt time.Time) error
	ConsumeUnlockToken(ctx context.Context, userID, token string, resetTo int) (remaining int, consumed bool, err error)
}

// Config holds gate policy knobs.
type Config struct {
	Secret    string        // HMAC secret for unlock tokens
	Initial   int           // allowance seeded for new users
	Replenish int           // counter value after a successful unlock
	TokenTTL  time.Duration // validity window from token issuance
}

// Gate admits or denies generation requests against the user's allowance.
type Gate struct {
	store  Store
	cfg    Config
	logger *logger.Logger
	now    func() time.Time
}

// NewGate creates a quota gate.
func NewGate(store Store, cfg Config, log *logger.Logger) *Gate {
	return &Gate{store: store, cfg: cfg, logger: log, now: time.Now}
}

// CheckAndDebit decides whether one generation may proceed and debits the
// counter. Must run before any paid downstream call. The debit is final: it
// is not reversed if a later pipeline stage fails.
//
// With remaining > 0 the conditional debit wins or loses atomically; two
// concurrent requests observing remaining=1 cannot both pass. With remaining
// at zero a valid, unexpired, never-used unlock token resets the counter to
// the replenishment value and consumes one unit for the current call.
func (g *Gate) CheckAndDebit(ctx context.Context, userID, unlockToken string) (remaining int, err error) {
	if err := g.store.EnsureQuota(ctx, userID, g.cfg.Initial); err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, "failed to load quota record", err)
	}

	remaining, debited, err := g.store.DebitIfRemaining(ctx, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, "failed to debit quota", err)
	}
	if debited {
		return remaining, nil
	}

	if unlockToken == "" {
		metrics.QuotaDenialsTotal.WithLabelValues("exhausted").Inc()
		return 0, apperr.New(apperr.CodeQuotaExhausted, "message quota exhausted")
	}

	return g.redeemUnlockToken(ctx, userID, unlockToken)
}

func (g *Gate) redeemUnlockToken(ctx context.Context, userID, unlockToken string) (int, error) {
	stored, err := g.store.PendingUnlockToken(ctx, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, "failed to load unlock token", err)
	}
	if stored == "" {
		metrics.QuotaDenialsTotal.WithLabelValues("no_pending_token").Inc()
		return 0, apperr.New(apperr.CodeInvalidUnlockToken, "no pending unlock token")
	}

	presented, err := g.parseUnlockToken(unlockToken)
	if err != nil {
		metrics.QuotaDenialsTotal.WithLabelValues("bad_signature").Inc()
		return 0, apperr.Wrap(apperr.CodeInvalidUnlockToken, "invalid unlock token", err)
	}
	pending, err := g.parseUnlockToken(stored)
	if err != nil {
		metrics.QuotaDenialsTotal.WithLabelValues("bad_stored_token").Inc()
		return 0, apperr.Wrap(apperr.CodeInvalidUnlockToken, "stored unlock token is invalid", err)
	}

	if presented.UnlockKey != pending.UnlockKey {
		metrics.QuotaDenialsTotal.WithLabelValues("key_mismatch").Inc()
		return 0, apperr.New(apperr.CodeInvalidUnlockToken, "unlock token mismatch")
	}

	issuedAt := pending.IssuedAt.Time
	if g.now().Sub(issuedAt) > g.cfg.TokenTTL {
		metrics.QuotaDenialsTotal.WithLabelValues("expired").Inc()
		return 0, apperr.New(apperr.CodeInvalidUnlockToken, "unlock token expired")
	}

	// Reset and consume one unit for the current call in a single
	// conditional update keyed on the stored token. Losing the race (or
	// replaying a consumed token) affects no rows.
	remaining, consumed, err := g.store.ConsumeUnlockToken(ctx, userID, stored, g.cfg.Replenish-1)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, "failed to consume unlock token", err)
	}
	if !consumed {
		metrics.QuotaDenialsTotal.WithLabelValues("already_used").Inc()
		return 0, apperr.New(apperr.CodeInvalidUnlockToken, "unlock token already used")
	}

	g.logger.Info("quota replenished via unlock token")
	return remaining, nil
}
