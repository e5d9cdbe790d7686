package middleware

import "context"

// AccessTokenHeader carries a freshly minted access token on auth responses.
const AccessTokenHeader = "X-Wardrobe-Token"

type principalKey struct{}

// principal is the caller Auth admitted.
type principal struct {
	userID string
	email  string
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, p principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// UserIDFromContext is empty for anonymous requests.
func UserIDFromContext(ctx context.Context) string { return principalFrom(ctx).userID }

func EmailFromContext(ctx context.Context) string { return principalFrom(ctx).email }

func WithUserID(ctx context.Context, userID string) context.Context {
	p := principalFrom(ctx)
	p.userID = userID
	return withPrincipal(ctx, p)
}

func WithEmail(ctx context.Context, email string) context.Context {
	p := principalFrom(ctx)
	p.email = email
	return withPrincipal(ctx, p)
}
