package auth

import (
	"context"

	"github.com/google/uuid"
)

// PrincipalKind discriminates the two account variants the system issues
// tokens for. The variant is resolved once, at login, and carried in the
// token — handlers never probe request attributes to guess who is calling.
type PrincipalKind string

const (
	KindPatient PrincipalKind = "patient"
	KindStaff   PrincipalKind = "staff"
)

// Principal identifies the authenticated caller. For staff the Role field
// holds the staff member's role name (e.g. "doctor", "lab_technician",
// "admin"); for patients it is empty.
type Principal struct {
	Kind PrincipalKind `json:"kind"`
	ID   uuid.UUID     `json:"id"`
	Role string        `json:"role,omitempty"`
}

// IsPatient reports whether the principal is a patient account.
func (p Principal) IsPatient() bool { return p.Kind == KindPatient }

// IsStaff reports whether the principal is a staff account.
func (p Principal) IsStaff() bool { return p.Kind == KindStaff }

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated principal. The second
// return value is false when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
