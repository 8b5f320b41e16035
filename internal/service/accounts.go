package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ximoveis/internal/auth"
	"ximoveis/internal/models"
	"ximoveis/internal/store"
)

const usersListCap = 500

type RegisterRequest struct {
	Name          string `json:"name" validate:"required,max=150"`
	Email         string `json:"email" validate:"required,email,max=190"`
	Password      string `json:"password" validate:"required"`
	Role          string `json:"role" validate:"omitempty,oneof=BROKER AGENCY"`
	Phone         string `json:"phone" validate:"max=40"`
	AgencyName    string `json:"agencyName" validate:"max=150"`
	CPF           string `json:"cpf" validate:"max=20"`
	Creci         string `json:"creci" validate:"max=40"`
	CNPJ          string `json:"cnpj" validate:"max=20"`
	CreciJuridico string `json:"creciJuridico" validate:"max=40"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthUser is the user shape returned with a token.
type AuthUser struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type AuthResult struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func blank(v string) bool { return strings.TrimSpace(v) == "" }

// Register creates a BROKER (the default) or an AGENCY account and signs the
// caller in. Agencies get their agency row in the same transaction.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (AuthResult, error) {
	if err := s.check(req); err != nil {
		return AuthResult{}, err
	}
	if err := s.ValidatePassword(req.Password); err != nil {
		return AuthResult{}, err
	}
	role := models.RoleBroker
	if req.Role == string(models.RoleAgency) {
		role = models.RoleAgency
	}

	in := store.NewUser{
		Name:  req.Name,
		Email: req.Email,
		Phone: optional(req.Phone),
		Role:  role,
	}
	switch role {
	case models.RoleAgency:
		if blank(req.CNPJ) || blank(req.CreciJuridico) || blank(req.Phone) {
			return AuthResult{}, fmt.Errorf("%w: cnpj, creciJuridico and phone are required for agencies", ErrValidation)
		}
		name := req.AgencyName
		if blank(name) {
			name = req.Name
		}
		in.Agency = &models.Agency{
			Name:          name,
			Email:         optional(strings.ToLower(req.Email)),
			Phone:         optional(req.Phone),
			CNPJ:          optional(req.CNPJ),
			CreciJuridico: optional(req.CreciJuridico),
		}
	default:
		if blank(req.CPF) || blank(req.Creci) || blank(req.Phone) {
			return AuthResult{}, fmt.Errorf("%w: cpf, creci and phone are required for brokers", ErrValidation)
		}
		in.CPF = optional(req.CPF)
		in.Creci = optional(req.Creci)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return AuthResult{}, err
	}
	in.PasswordHash = hash
	u, err := s.st.CreateUser(ctx, in)
	if err != nil {
		return AuthResult{}, storeErr(err, "email already registered")
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user registered")
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResult, error) {
	if err := s.check(req); err != nil {
		return AuthResult{}, err
	}
	u, err := s.st.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	if err != nil {
		return AuthResult{}, err
	}
	if !auth.VerifyPassword(u.PasswordHash, req.Password) {
		return AuthResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	return s.issue(u)
}

func (s *Service) issue(u models.User) (AuthResult, error) {
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: AuthUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}}, nil
}

// Authenticate turns a bearer token into an identity.
func (s *Service) Authenticate(raw string) (auth.Identity, error) {
	id, err := s.tokens.Verify(raw)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return id, nil
}

// BootstrapAdmin creates or refreshes the configured admin account. It is a
// no-op when no admin email or password is configured.
func (s *Service) BootstrapAdmin(ctx context.Context, name, email, password string) error {
	if blank(email) || blank(password) {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if blank(name) {
		name = "Administrador"
	}
	return s.st.EnsureAdmin(ctx, name, email, hash)
}

func (s *Service) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	return s.st.ListUsers(ctx, usersListCap)
}
