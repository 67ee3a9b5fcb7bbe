// Package identity implements the authentication and authorization engine:
// credential verification, token issuance and role-based registration over
// the users / roles / user_roles relations.
package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gaht-identity/internal/core/token"
	"gaht-identity/pkg/utils"
)

// dummyHash keeps the unknown-username path doing the same bcrypt work as the
// wrong-password path, so the two are indistinguishable by timing as well as
// by error shape.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Credentials is the Authenticate input.
type Credentials struct {
	Username string `validate:"required,max=100"`
	Password string `validate:"required"`
}

// Registration is the Register input. All fields are required; email and
// cell phone are format-checked.
type Registration struct {
	Username          string `validate:"required,max=100"`
	Password          string `validate:"required"`
	Role              string `validate:"required,max=64"`
	Name              string `validate:"required,max=100"`
	LastName          string `validate:"required,max=100"`
	MothersMaidenName string `validate:"required,max=100"`
	Email             string `validate:"required,email"`
	CellPhone         string `validate:"required,cellphone"`
}

// Engine orchestrates the store and the token issuer into the two public
// operations. It holds no per-request state; a single Engine serves all
// concurrent requests.
type Engine struct {
	store    *Store
	issuer   *token.Issuer
	validate *validator.Validate
	log      *zap.Logger
}

// loose syntactic phone check: optional +, separators allowed, 7-20 digits
var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()\-\.]{5,24}$`)

func NewEngine(store *Store, issuer *token.Issuer, log *zap.Logger) *Engine {
	v := validator.New()
	// 比 e164 宽松：接受本地格式的手机号
	_ = v.RegisterValidation("cellphone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !phoneRe.MatchString(s) {
			return false
		}
		digits := 0
		for _, r := range s {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		return digits >= 7 && digits <= 20
	})
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, issuer: issuer, validate: v, log: log}
}

// Authenticate verifies the credentials and returns a signed token bound to
// (username, role). Unknown username, wrong password and a role-less user all
// come back as ErrInvalidCredentials.
func (e *Engine) Authenticate(ctx context.Context, in Credentials) (string, error) {
	in.Username = strings.TrimSpace(in.Username)
	if strings.TrimSpace(in.Password) == "" {
		return "", fieldErr("Password", "is required")
	}
	if err := e.checkStruct(in); err != nil {
		return "", err
	}

	u, err := e.store.FindUserByUsername(ctx, in.Username)
	if err != nil {
		return "", err
	}
	if u == nil {
		e.store.VerifyPassword(in.Password, dummyHash)
		return "", ErrInvalidCredentials
	}
	if !e.store.VerifyPassword(in.Password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	role, ok := u.PrimaryRole()
	if !ok {
		// account state is not leaked as a distinct error
		return "", ErrInvalidCredentials
	}

	tok, err := e.issuer.Issue(u.Username, role)
	if err != nil {
		return "", fmt.Errorf("issue token for %q: %w", u.Username, err)
	}
	return tok, nil
}

// Register creates the user and its role assignment atomically, both active.
// It does not log the user in; the caller authenticates separately.
func (e *Engine) Register(ctx context.Context, in Registration) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.TrimSpace(in.Role)
	in.Name = strings.TrimSpace(in.Name)
	in.LastName = strings.TrimSpace(in.LastName)
	in.MothersMaidenName = strings.TrimSpace(in.MothersMaidenName)
	in.Email = strings.TrimSpace(in.Email)
	in.CellPhone = strings.TrimSpace(in.CellPhone)
	if strings.TrimSpace(in.Password) == "" {
		return fieldErr("Password", "is required")
	}
	if err := e.checkStruct(in); err != nil {
		return err
	}

	exists, err := e.store.UsernameExists(ctx, in.Username)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateUsername
	}

	role, err := e.store.FindRoleByName(ctx, in.Role)
	if err != nil {
		return err
	}
	if role == nil {
		return ErrInvalidRole
	}

	hash, err := e.store.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:                utils.NewID(),
		Username:          in.Username,
		PasswordHash:      hash,
		Name:              in.Name,
		LastName:          in.LastName,
		MothersMaidenName: in.MothersMaidenName,
		Email:             in.Email,
		CellPhone:         in.CellPhone,
		Active:            true,
	}
	if err := e.store.CreateUserWithRole(ctx, u, role.ID); err != nil {
		return err
	}
	e.log.Info("user registered",
		zap.String("username", u.Username),
		zap.String("role", role.Name),
	)
	return nil
}

func (e *Engine) checkStruct(in any) error {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		switch fe.Tag() {
		case "required":
			return fieldErr(fe.Field(), "is required")
		case "email":
			return fieldErr(fe.Field(), "is not a valid email address")
		case "cellphone":
			return fieldErr(fe.Field(), "is not a valid phone number")
		default:
			return fieldErr(fe.Field(), "failed "+fe.Tag()+" validation")
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
