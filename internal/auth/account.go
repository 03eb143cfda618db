package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/drojas/tienda/internal/api"
	"github.com/drojas/tienda/internal/domain"
	"github.com/go-playground/validator/v10"
)

// accountAPI is the subset of the API client the account operations need.
type accountAPI interface {
	Register(ctx context.Context, req api.RegisterRequest) error
	VerifyRegistrationCode(ctx context.Context, email, code string) error
	ResendVerificationCode(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	UpdateUsername(ctx context.Context, name string) error
	UpdatePhoneNumber(ctx context.Context, phone string) error
	UpdateIdentificationNumber(ctx context.Context, id string) error
	SetupSecondFactor(ctx context.Context) (*api.TwoFactorSetup, error)
	EnableSecondFactor(ctx context.Context, code string) error
	DisableSecondFactor(ctx context.Context, code string) error
	SecondFactorStatus(ctx context.Context) (bool, error)
}

// Accounts bundles the stateless request/response account operations:
// registration, email verification, password recovery and second-factor
// enrollment. Inputs are validated before any network call; failures come
// back as the domain taxonomy.
type Accounts struct {
	api      accountAPI
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAccounts(apiClient accountAPI, logger *slog.Logger) *Accounts {
	return &Accounts{
		api:      apiClient,
		validate: validator.New(),
		logger:   logger.With("component", "accounts"),
	}
}

func (a *Accounts) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return fmt.Errorf("%w: a user name is required", domain.ErrInvalidInput)
	}
	if err := a.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	if err := a.validate.Var(password, "required,min=8"); err != nil {
		return fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}

	if err := a.api.Register(ctx, api.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}); err != nil {
		return err
	}
	a.logger.Info("account registered", "email", email)
	return nil
}

// VerifyRegistrationCode redeems the emailed 6-digit confirmation code.
func (a *Accounts) VerifyRegistrationCode(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if err := a.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	if err := a.validate.Var(code, "required,len=6,numeric"); err != nil {
		return fmt.Errorf("%w: the code must be 6 digits", domain.ErrInvalidInput)
	}
	return a.api.VerifyRegistrationCode(ctx, email, code)
}

func (a *Accounts) ResendVerificationCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := a.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	return a.api.ResendVerificationCode(ctx, email)
}

// VerifyEmail redeems the token carried by a verification link.
func (a *Accounts) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: verification token is required", domain.ErrInvalidInput)
	}
	return a.api.VerifyEmail(ctx, token)
}

func (a *Accounts) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := a.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	return a.api.RequestPasswordReset(ctx, email)
}

// CompletePasswordReset exchanges the emailed reset token for a new
// password. The confirm argument is the retyped password; a mismatch is
// caught here, before the network.
func (a *Accounts) CompletePasswordReset(ctx context.Context, token, newPassword, confirm string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: reset token is required", domain.ErrInvalidInput)
	}
	if err := a.validate.Var(newPassword, "required,min=8"); err != nil {
		return fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	if newPassword != confirm {
		return fmt.Errorf("%w: passwords do not match", domain.ErrInvalidInput)
	}
	return a.api.ResetPassword(ctx, token, newPassword)
}

// UpdateUsername changes the account's display name. Requires an
// authenticated session.
func (a *Accounts) UpdateUsername(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: a user name is required", domain.ErrInvalidInput)
	}
	if err := a.api.UpdateUsername(ctx, name); err != nil {
		return err
	}
	a.logger.Info("username updated")
	return nil
}

// UpdatePhoneNumber changes the account's phone number. Separators are
// tolerated in the input; the number must carry 7 to 15 digits.
func (a *Accounts) UpdatePhoneNumber(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	digits := strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, phone)
	if err := a.validate.Var(digits, "required,min=7,max=15"); err != nil {
		return fmt.Errorf("%w: phone number must have 7 to 15 digits", domain.ErrInvalidInput)
	}
	if err := a.api.UpdatePhoneNumber(ctx, phone); err != nil {
		return err
	}
	a.logger.Info("phone number updated")
	return nil
}

// UpdateIdentificationNumber changes the account's identification number.
func (a *Accounts) UpdateIdentificationNumber(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := a.validate.Var(id, "required,min=5"); err != nil {
		return fmt.Errorf("%w: identification number must have at least 5 characters", domain.ErrInvalidInput)
	}
	if err := a.api.UpdateIdentificationNumber(ctx, id); err != nil {
		return err
	}
	a.logger.Info("identification number updated")
	return nil
}

// SetupSecondFactor asks the backend for the authenticator secret and QR
// image. Requires an authenticated session; a 409 (already enabled) comes
// back as ErrConflict.
func (a *Accounts) SetupSecondFactor(ctx context.Context) (*api.TwoFactorSetup, error) {
	return a.api.SetupSecondFactor(ctx)
}

func (a *Accounts) EnableSecondFactor(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if err := a.validate.Var(code, "required,len=6,numeric"); err != nil {
		return fmt.Errorf("%w: the code must be 6 digits", domain.ErrInvalidInput)
	}
	if err := a.api.EnableSecondFactor(ctx, code); err != nil {
		return err
	}
	a.logger.Info("second factor enabled")
	return nil
}

func (a *Accounts) DisableSecondFactor(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if err := a.validate.Var(code, "required,len=6,numeric"); err != nil {
		return fmt.Errorf("%w: the code must be 6 digits", domain.ErrInvalidInput)
	}
	if err := a.api.DisableSecondFactor(ctx, code); err != nil {
		return err
	}
	a.logger.Info("second factor disabled")
	return nil
}

func (a *Accounts) SecondFactorStatus(ctx context.Context) (bool, error) {
	return a.api.SecondFactorStatus(ctx)
}
