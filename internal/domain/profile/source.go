package profile

import "context"

// Source looks up accounts by username.
//
// Implementations return errors.ProfileNotFound (code PRF_002) when the account
// does not exist and a wrapped AppError for every other failure. They must be
// safe for concurrent use and honour ctx cancellation.
type Source interface {
	Fetch(ctx context.Context, username string) (*Profile, error)

	// Name identifies the source in logs and metrics.
	Name() string
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, username string) (*Profile, error)

func (f SourceFunc) Fetch(ctx context.Context, username string) (*Profile, error) {
	return f(ctx, username)
}

func (f SourceFunc) Name() string { return "func" }
