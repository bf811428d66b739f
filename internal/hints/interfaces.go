package hints

import "context"

// HintService is what the daemon and CLI call.
type HintService interface {
	Generate(ctx context.Context, req Request) (string, error)
}

var _ HintService = (*Service)(nil)
