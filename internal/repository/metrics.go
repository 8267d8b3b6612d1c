package repository

import (
	"context"
	"errors"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
)

func recordOperation(ctx context.Context, repo, op string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrVerificationNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrDuplicateEmail):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	observability.RecordRepositoryOperation(ctx, repo, op, outcome)
}
