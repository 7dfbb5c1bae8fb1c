package command

import "context"

type ctxKey int

const ctxDataKey ctxKey = 0

// CtxData identifies the caller of a command. It travels on the context
// so handlers stay free of transport concerns.
type CtxData struct {
	UserID     string
	OrgID      string
	InstanceID string

	// SystemCall marks callers holding a system token. They bypass
	// permission checks entirely.
	SystemCall bool
}

// WithCtxData attaches caller identity to the context.
func WithCtxData(ctx context.Context, data CtxData) context.Context {
	return context.WithValue(ctx, ctxDataKey, data)
}

// CtxDataFromContext returns the caller identity, zero if none was set.
func CtxDataFromContext(ctx context.Context) CtxData {
	data, _ := ctx.Value(ctxDataKey).(CtxData)
	return data
}

// IsSystemCall reports whether the caller holds a system token.
func IsSystemCall(ctx context.Context) bool {
	return CtxDataFromContext(ctx).SystemCall
}
