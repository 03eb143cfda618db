package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/drojas/tienda/internal/domain"
)

const (
	pathLogin          = "/auth/login"
	pathCurrentUser    = "/auth/user"
	pathLogout         = "/auth/logout"
	pathRegister       = "/register"
	pathVerifyCode     = "/register/verify-code"
	pathResendCode     = "/resend-verification-code"
	pathVerifyEmail    = "/verify"
	pathForgotPassword = "/auth/forgot-password"
	pathResetPassword  = "/auth/reset-password"
	pathUpdateUsername = "/auth/update-username"
	pathUpdatePhone    = "/auth/update-phone"
	pathUpdateID       = "/auth/update-id"
	path2FASetup       = "/auth/2fa/setup"
	path2FAEnable      = "/auth/2fa/enable"
	path2FADisable     = "/auth/2fa/disable"
	path2FAStatus      = "/auth/2fa/status"
)

type LoginRequest struct {
	Email         string `json:"email_usuario"`
	Password      string `json:"password_usuario"`
	TwoFactorCode string `json:"twoFactorCode,omitempty"`
}

// LoginResponse is the normalized login outcome. Requires2FA is true when
// the credentials were accepted but a second factor is still needed; the
// backend signals that either with a 200 carrying requires2FA or with a
// 2FA_REQUIRED error code, and both arrive here the same way.
type LoginResponse struct {
	Token       string `json:"token"`
	Name        string `json:"nombre"`
	Email       string `json:"email"`
	Requires2FA bool   `json:"requires2FA"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, "login", http.MethodPost, pathLogin, req, &resp)
	if errors.Is(err, domain.ErrSecondFactorRequired) {
		return &LoginResponse{Requires2FA: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type identityResponse struct {
	Name  string `json:"nombre_usuario"`
	Email string `json:"email_usuario"`
}

// CurrentUser validates the stored token against the who-am-I endpoint
// and returns the identity it belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*domain.Identity, error) {
	var resp identityResponse
	if err := c.do(ctx, "current_user", http.MethodGet, pathCurrentUser, nil, &resp); err != nil {
		return nil, err
	}
	return &domain.Identity{Name: resp.Name, Email: resp.Email}, nil
}

// Logout invalidates the server-side session. Local sign-out does not
// depend on this succeeding.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, pathLogout, struct{}{}, nil)
}

type RegisterRequest struct {
	Name     string `json:"nombre_usuario"`
	Email    string `json:"email_usuario"`
	Password string `json:"password_usuario"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, "register", http.MethodPost, pathRegister, req, nil)
}

func (c *Client) VerifyRegistrationCode(ctx context.Context, email, code string) error {
	body := struct {
		Code  string `json:"code"`
		Email string `json:"email"`
	}{Code: code, Email: email}
	return c.do(ctx, "verify_code", http.MethodPost, pathVerifyCode, body, nil)
}

func (c *Client) ResendVerificationCode(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.do(ctx, "resend_code", http.MethodPost, pathResendCode, body, nil)
}

// VerifyEmail redeems the token from a verification link.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	path := pathVerifyEmail + "?token=" + url.QueryEscape(token)
	return c.do(ctx, "verify_email", http.MethodGet, path, nil, nil)
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email_usuario"`
	}{Email: email}
	return c.do(ctx, "forgot_password", http.MethodPost, pathForgotPassword, body, nil)
}

func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}{Token: token, NewPassword: newPassword}
	return c.do(ctx, "reset_password", http.MethodPost, pathResetPassword, body, nil)
}

// Profile updates. Each field has its own endpoint; all of them require
// an authenticated session.

func (c *Client) UpdateUsername(ctx context.Context, name string) error {
	body := struct {
		Name string `json:"nombre_usuario"`
	}{Name: name}
	return c.do(ctx, "update_username", http.MethodPut, pathUpdateUsername, body, nil)
}

func (c *Client) UpdatePhoneNumber(ctx context.Context, phone string) error {
	body := struct {
		Phone string `json:"numero_telefono"`
	}{Phone: phone}
	return c.do(ctx, "update_phone", http.MethodPut, pathUpdatePhone, body, nil)
}

func (c *Client) UpdateIdentificationNumber(ctx context.Context, id string) error {
	body := struct {
		ID string `json:"numero_identificacion"`
	}{ID: id}
	return c.do(ctx, "update_id", http.MethodPut, pathUpdateID, body, nil)
}

// TwoFactorSetup carries the shared secret and QR image the user loads
// into an authenticator app.
type TwoFactorSetup struct {
	Secret      string `json:"secret"`
	QRCodeImage string `json:"qrCodeImage"`
	Message     string `json:"message"`
}

func (c *Client) SetupSecondFactor(ctx context.Context) (*TwoFactorSetup, error) {
	var resp TwoFactorSetup
	if err := c.do(ctx, "2fa_setup", http.MethodPost, path2FASetup, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) EnableSecondFactor(ctx context.Context, code string) error {
	body := struct {
		Code string `json:"code"`
	}{Code: code}
	return c.do(ctx, "2fa_enable", http.MethodPost, path2FAEnable, body, nil)
}

func (c *Client) DisableSecondFactor(ctx context.Context, code string) error {
	body := struct {
		Code string `json:"code"`
	}{Code: code}
	return c.do(ctx, "2fa_disable", http.MethodPost, path2FADisable, body, nil)
}

func (c *Client) SecondFactorStatus(ctx context.Context) (bool, error) {
	var resp struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.do(ctx, "2fa_status", http.MethodGet, path2FAStatus, nil, &resp); err != nil {
		return false, err
	}
	return resp.Enabled, nil
}
