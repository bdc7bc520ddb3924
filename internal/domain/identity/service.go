package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/notification"
	"github.com/medicore/hms/internal/platform/otp"
)

var (
	ErrEmailTaken      = errors.New("an account with this email already exists")
	ErrAccountNotFound = errors.New("no account found for this email")
)

// Service implements account management and the OTP login flow for both
// patient and staff accounts.
type Service struct {
	patients PatientRepository
	staff    StaffRepository
	roles    RoleRepository
	otp      otp.Store
	notifier *notification.NotificationManager
	jwtCfg   auth.JWTConfig
	otpTTL   time.Duration
	logger   zerolog.Logger
}

func NewService(
	patients PatientRepository,
	staff StaffRepository,
	roles RoleRepository,
	otpStore otp.Store,
	notifier *notification.NotificationManager,
	jwtCfg auth.JWTConfig,
	otpTTL time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		patients: patients,
		staff:    staff,
		roles:    roles,
		otp:      otpStore,
		notifier: notifier,
		jwtCfg:   jwtCfg,
		otpTTL:   otpTTL,
		logger:   logger.With().Str("component", "identity").Logger(),
	}
}

// =========== Patients ===========

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Email) == "" || !strings.Contains(p.Email, "@") {
		return fmt.Errorf("a valid email is required")
	}
	if strings.TrimSpace(p.Mobile) == "" {
		return fmt.Errorf("mobile number is required")
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))

	if err := s.patients.Create(ctx, p); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patient %s not found", id)
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// =========== Staff ===========

func (s *Service) CreateStaff(ctx context.Context, m *Staff) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(m.Email) == "" || !strings.Contains(m.Email, "@") {
		return fmt.Errorf("a valid email is required")
	}
	if !ValidStaffRoles[m.Role] {
		return fmt.Errorf("invalid staff role: %s", m.Role)
	}
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	m.Active = true

	if err := s.staff.Create(ctx, m); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	m, err := s.staff.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("staff member %s not found", id)
		}
		return nil, err
	}
	return m, nil
}

func (s *Service) UpdateStaff(ctx context.Context, m *Staff) error {
	if !ValidStaffRoles[m.Role] {
		return fmt.Errorf("invalid staff role: %s", m.Role)
	}
	return s.staff.Update(ctx, m)
}

func (s *Service) ListStaff(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	return s.staff.List(ctx, limit, offset)
}

func (s *Service) ListStaffByRole(ctx context.Context, role string, limit, offset int) ([]*Staff, int, error) {
	if !ValidStaffRoles[role] {
		return nil, 0, fmt.Errorf("invalid staff role: %s", role)
	}
	return s.staff.ListByRole(ctx, role, limit, offset)
}

// =========== Roles ===========

func (s *Service) CreateRole(ctx context.Context, role *Role) error {
	if strings.TrimSpace(role.Name) == "" {
		return fmt.Errorf("role name is required")
	}
	role.Name = strings.ToLower(strings.TrimSpace(role.Name))
	if err := s.roles.Create(ctx, role); err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("role %q already exists", role.Name)
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

// =========== OTP login ===========

// RequestLoginCode issues a one-time code for an existing account and emails
// it. The code stays valid even when delivery fails, so a retried request
// with a flaky mail provider still converges.
func (s *Service) RequestLoginCode(ctx context.Context, kind auth.PrincipalKind, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.lookupAccount(ctx, kind, email); err != nil {
		return err
	}

	code, err := s.otp.Issue(ctx, string(kind), email)
	if err != nil {
		return fmt.Errorf("issue login code: %w", err)
	}

	_, err = s.notifier.SendFromTemplate(ctx, "otp-login", map[string]string{
		"otp":         code,
		"ttl_minutes": strconv.Itoa(int(s.otpTTL.Minutes())),
	}, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to deliver login code")
		return fmt.Errorf("send login code: %w", err)
	}
	return nil
}

// VerifyLoginCode checks the code and returns a signed token for the account.
func (s *Service) VerifyLoginCode(ctx context.Context, kind auth.PrincipalKind, email, code string) (string, auth.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.otp.Verify(ctx, string(kind), email, code); err != nil {
		return "", auth.Principal{}, err
	}

	principal, err := s.lookupAccount(ctx, kind, email)
	if err != nil {
		return "", auth.Principal{}, err
	}

	token, err := auth.IssueToken(s.jwtCfg, principal)
	if err != nil {
		return "", auth.Principal{}, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info().Str("kind", string(kind)).Stringer("id", principal.ID).Msg("login verified")
	return token, principal, nil
}

func (s *Service) lookupAccount(ctx context.Context, kind auth.PrincipalKind, email string) (auth.Principal, error) {
	switch kind {
	case auth.KindPatient:
		p, err := s.patients.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return auth.Principal{}, ErrAccountNotFound
			}
			return auth.Principal{}, err
		}
		return auth.Principal{Kind: auth.KindPatient, ID: p.ID}, nil
	case auth.KindStaff:
		m, err := s.staff.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return auth.Principal{}, ErrAccountNotFound
			}
			return auth.Principal{}, err
		}
		if !m.Active {
			return auth.Principal{}, ErrAccountNotFound
		}
		return auth.Principal{Kind: auth.KindStaff, ID: m.ID, Role: m.Role}, nil
	default:
		return auth.Principal{}, fmt.Errorf("unknown principal kind: %s", kind)
	}
}
