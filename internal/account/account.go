// Package account registers users, logs them in and manages their roles.
package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/allisson/go-pwdhash"
	validation "github.com/jellydator/validation"

	"holistica/internal/domain"
	"holistica/internal/gateway"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// dummyPassword is hashed once so unknown emails cost as much as wrong passwords.
const dummyPassword = "holistica-timing-equalizer"

// UserRepository persists users.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, id int64, role domain.Role) error
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks field presence, email format and length limits.
func (in RegisterInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("el nombre es obligatorio"),
			validation.Length(1, 255).Error("el nombre debe tener entre 1 y 255 caracteres"),
		),
		validation.Field(&in.Email,
			validation.Required.Error("el correo es obligatorio"),
			validation.Length(5, 255).Error("el correo debe tener entre 5 y 255 caracteres"),
			validation.Match(emailRegex).Error("el correo no es válido"),
		),
		validation.Field(&in.Password,
			validation.Required.Error("la contraseña es obligatoria"),
			validation.Length(8, 128).Error("la contraseña debe tener entre 8 y 128 caracteres"),
		),
	)
	return invalid(err)
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present.
func (in LoginInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required.Error("el correo es obligatorio")),
		validation.Field(&in.Password, validation.Required.Error("la contraseña es obligatoria")),
	)
	return invalid(err)
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, err.Error())
}

// Service implements the account use cases.
type Service struct {
	users       UserRepository
	signer      gateway.TokenSigner
	hasher      *pwdhash.PasswordHasher
	dummyHash   string
	defaultRole domain.Role
}

// NewService wires a Service. Passwords are hashed with Argon2id.
func NewService(users UserRepository, signer gateway.TokenSigner) (*Service, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return nil, fmt.Errorf("creating password hasher: %w", err)
	}
	dummy, err := hasher.Hash([]byte(dummyPassword))
	if err != nil {
		return nil, fmt.Errorf("hashing dummy password: %w", err)
	}
	return &Service{
		users:       users,
		signer:      signer,
		hasher:      hasher,
		dummyHash:   dummy,
		defaultRole: domain.RoleStudent,
	}, nil
}

// Register creates a student account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         s.defaultRole,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks credentials and issues an access token. Unknown emails and
// wrong passwords both return domain.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput) (*domain.Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		_, _ = s.hasher.Verify([]byte(in.Password), s.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify([]byte(in.Password), u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	tok, _, err := s.signer.Sign(u.Claims())
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.signer.TTL().Seconds()),
		User:        *u,
	}, nil
}

// Profile returns the account of the authenticated subject.
func (s *Service) Profile(ctx context.Context, subjectID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, subjectID)
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// ChangeRole assigns role to user id and returns the updated account.
// Tokens already issued keep the old role until they expire.
func (s *Service) ChangeRole(ctx context.Context, id int64, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
