package quota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/personify-ai/chat-platform/internal/apperr"
)

// UnlockClaims is the signed payload of an ad-unlock token. The validity
// window is enforced by the gate from IssuedAt; the JWT expiry is only an
// upper bound.
type UnlockClaims struct {
	UnlockKey string `json:"unlock_key"`
	PressedAt string `json:"pressed_at"`
	jwt.RegisteredClaims
}

// unlockKeyFor derives the user-bound key carried inside the token.
func unlockKeyFor(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

// IssueUnlockToken mints a signed unlock token for the user and records it as
// the pending token on the quota record. Reissuing replaces any previous
// pending token.
func (g *Gate) IssueUnlockToken(ctx context.Context, userID, pressedAt string) (string, error) {
	now := g.now()
	claims := UnlockClaims{
		UnlockKey: unlockKeyFor(userID),
		PressedAt: pressedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign unlock token: %w", err)
	}

	if err := g.store.EnsureQuota(ctx, userID, g.cfg.Initial); err != nil {
		return "", apperr.Wrap(apperr.CodePersistence, "failed to load quota record", err)
	}
	if err := g.store.SavePendingUnlockToken(ctx, userID, token, now); err != nil {
		return "", apperr.Wrap(apperr.CodePersistence, "failed to record unlock token", err)
	}

	return token, nil
}

func (g *Gate) parseUnlockToken(token string) (*UnlockClaims, error) {
	claims := &UnlockClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(g.cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt == nil {
		return nil, jwt.ErrTokenRequiredClaimMissing
	}
	return claims, nil
}
