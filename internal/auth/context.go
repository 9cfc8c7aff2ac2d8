package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxUsername
)

func WithIdentity(ctx context.Context, userID int64, username string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxUsername, username)
	return ctx
}

func UserID(ctx context.Context) (int64, error) {
	v := ctx.Value(ctxUserID)
	if id, ok := v.(int64); ok && id > 0 {
		return id, nil
	}
	return 0, errors.New("user_id not in context")
}

func Username(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUsername)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("username not in context")
}
