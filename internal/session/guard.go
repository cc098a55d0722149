package session

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/repository"
)

// Guard revalidates session identities against the stored security stamp.
// It takes its store handle explicitly rather than resolving it from the
// request scope.
type Guard struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewGuard wires the guard to the user store.
func NewGuard(users repository.UserRepository, logger *zap.Logger) *Guard {
	return &Guard{users: users, logger: logger}
}

// Outcome reports the result of a revalidation.
type Outcome struct {
	// OK means the addressed identity is still valid and the request may
	// proceed as authenticated.
	OK bool
	// Principal is the rebuilt identity set when OK is false. The request
	// is still treated as unauthenticated, but the caller must re-issue
	// the session cookie from it.
	Principal Principal
	// Renew signals that the cookie must be rewritten.
	Renew bool
}

// Revalidate checks the identity at the given session index against the
// user's current stamp. On mismatch the identity is rebuilt from the fresh
// record (or dropped when none exists) while every other identity is kept
// unchanged.
func (g *Guard) Revalidate(ctx context.Context, principal Principal, index int) (Outcome, error) {
	identity, ok := principal.At(index)
	if !ok || identity.UserID == "" {
		return Outcome{}, nil
	}

	fresh, err := g.users.FindSecurityInfoByID(ctx, identity.UserID)
	switch {
	case err == nil && fresh.SecurityStamp == identity.SecurityStamp && identity.SecurityStamp != "":
		return Outcome{OK: true}, nil
	case err != nil && !errors.Is(err, mongo.ErrNoDocuments):
		return Outcome{}, fmt.Errorf("revalidate session: %w", err)
	}

	g.logger.Info("session stamp mismatch, rebuilding principal",
		zap.String("user_id", identity.UserID),
	)

	rebuilt := Principal{}
	for _, id := range principal.Identities {
		if id.UserID != identity.UserID {
			rebuilt.Identities = append(rebuilt.Identities, id)
			continue
		}
		// A missing record drops the identity entirely.
		if fresh.ID != "" {
			rebuilt.Identities = append(rebuilt.Identities, Identity{
				UserName:      fresh.UserName,
				UserID:        fresh.ID,
				SecurityStamp: fresh.SecurityStamp,
			})
		}
	}

	return Outcome{Principal: rebuilt, Renew: true}, nil
}
