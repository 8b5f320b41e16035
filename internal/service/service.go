package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"ximoveis/internal/auth"
	"ximoveis/internal/config"
	"ximoveis/internal/notify"
	"ximoveis/internal/storage"
	"ximoveis/internal/store"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

const (
	passwordMinLength = 6
	passwordMaxLength = 128
)

type Service struct {
	cfg      config.Config
	st       *store.Store
	files    *storage.Storage
	tokens   *auth.TokenService
	sender   notify.Sender
	validate *validator.Validate
	log      *logrus.Logger
}

func New(cfg config.Config, st *store.Store, files *storage.Storage, tokens *auth.TokenService, sender notify.Sender, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if sender == nil {
		sender = notify.LogSender{Logger: logger}
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{cfg: cfg, st: st, files: files, tokens: tokens, sender: sender, validate: v, log: logger}
}

func (s *Service) Store() *store.Store { return s.st }

func (s *Service) Files() *storage.Storage { return s.files }

func (s *Service) Tokens() *auth.TokenService { return s.tokens }

func (s *Service) ValidatePassword(pw string) error {
	pw = strings.TrimSpace(pw)
	if pw == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if len(pw) < passwordMinLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, passwordMinLength)
	}
	if len(pw) > passwordMaxLength {
		return fmt.Errorf("%w: password must be at most %d characters", ErrValidation, passwordMaxLength)
	}
	return nil
}

// check runs struct validation and folds field errors into one ErrValidation.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}

// storeErr maps store sentinels onto service sentinels.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	}
	return err
}
