package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayursutra/portal/internal/platform/auth"
)

const minPasswordLen = 8

type Service struct {
	repo        Repository
	issuer      *auth.Issuer
	revocations *auth.TokenRevocationStore
	logger      zerolog.Logger
	cost        int
	now         func() time.Time
}

func NewService(repo Repository, issuer *auth.Issuer, revocations *auth.TokenRevocationStore, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		issuer:      issuer,
		revocations: revocations,
		logger:      logger,
		cost:        bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token   *auth.Token `json:"token"`
	Account *Account    `json:"account"`
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: at least %d characters", ErrWeakPassword, minPasswordLen)
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != auth.RolePatient && role != auth.RoleDoctor {
		return nil, fmt.Errorf("%w: must be %q or %q", ErrInvalidRole, auth.RolePatient, auth.RoleDoctor)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	a := &Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Name:         strings.TrimSpace(req.Name),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Doctors have nothing to complete.
	a.ProfileCompleted = role == auth.RoleDoctor

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("account_id", a.ID.String()).Str("role", role).Msg("account registered")
	return a, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	a, err := s.repo.GetByEmail(ctx, NormalizeEmail(req.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	tok, err := s.issuer.Issue(a.ID.String(), a.Role, a.Name, a.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: tok, Account: a}, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(_ context.Context, claims *auth.Claims) {
	if s.revocations == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	s.revocations.Revoke(claims.ID, claims.ExpiresAt.Time)
}

func (s *Service) Me(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// Lookup is used by other domains to denormalize a patient's name and email.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// ListDoctors returns every doctor account, ordered by name.
func (s *Service) ListDoctors(ctx context.Context) ([]*Account, error) {
	return s.repo.ListByRole(ctx, auth.RoleDoctor)
}

func (s *Service) CompleteProfile(ctx context.Context, id uuid.UUID, req ProfileRequest) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dosha, ok := CanonicalDosha(req.Dosha)
	if !ok {
		return nil, fmt.Errorf("%w: must be one of %s", ErrInvalidDosha, strings.Join(Doshas, ", "))
	}
	dob := strings.TrimSpace(req.DOB)
	if dob != "" {
		if _, err := time.Parse(time.DateOnly, dob); err != nil {
			return nil, ErrInvalidDOB
		}
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		a.Name = name
	}
	a.DOB = dob
	a.Dosha = dosha
	a.Allergy = strings.TrimSpace(req.Allergy)
	a.ProfileCompleted = true
	a.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
