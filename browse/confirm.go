package browse

import "context"

// Confirmer asks the admin to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Confirmed answers every prompt with v; the REST surface passes the
// request's confirm flag through it.
type Confirmed bool

func (c Confirmed) Confirm(context.Context, string) bool { return bool(c) }
