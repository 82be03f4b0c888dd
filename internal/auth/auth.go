package auth

import "context"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Caller is resolved once at the HTTP boundary and threaded through every
// core call. Core trusts it for identity but re-validates store ownership on
// each row access (store_id is always part of the key).
type Caller struct {
	StoreID string
	Role    Role
	UserID  string // customer identity
	Cashier string // admin identity
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// Actor is the name recorded on audit entries.
func (c Caller) Actor() string {
	if c.IsAdmin() {
		return c.Cashier
	}
	return c.UserID
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
