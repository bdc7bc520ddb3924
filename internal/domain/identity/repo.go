package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type StaffRepository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	GetByEmail(ctx context.Context, email string) (*Staff, error)
	Update(ctx context.Context, s *Staff) error
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*Staff, int, error)
	List(ctx context.Context, limit, offset int) ([]*Staff, int, error)
}

type RoleRepository interface {
	Create(ctx context.Context, r *Role) error
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
}
