package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/drojas/tienda/internal/auth"
	"github.com/drojas/tienda/internal/domain"
	"github.com/drojas/tienda/internal/metrics"
)

const secondFactorAttempts = 3

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *email == "" {
		*email = prompt("Email: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}

	result, err := a.auth.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	if result.Outcome == auth.LoginSecondFactorRequired {
		result, err = a.promptSecondFactor(ctx, result.ChallengeEmail)
		if err != nil {
			return err
		}
	}

	fmt.Printf("Signed in as %s <%s>.\n", result.Identity.Name, result.Identity.Email)
	if n := a.cart.TotalItems(); n > 0 {
		fmt.Printf("Your cart has %d item(s).\n", n)
	}
	return nil
}

// promptSecondFactor keeps the challenge open across bad codes; only a
// blank entry or a non-retryable failure abandons it.
func (a *app) promptSecondFactor(ctx context.Context, email string) (*auth.LoginResult, error) {
	fmt.Printf("Two-factor authentication is enabled for %s.\n", maskEmail(email))

	for attempt := 0; attempt < secondFactorAttempts; attempt++ {
		code := prompt("6-digit code (blank to cancel): ")
		if code == "" {
			a.auth.CancelSecondFactor()
			return nil, fmt.Errorf("%w: sign-in cancelled", domain.ErrInvalidInput)
		}

		result, err := a.auth.SubmitSecondFactor(ctx, code)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, domain.ErrInvalidSecondFactorCode),
			errors.Is(err, domain.ErrInvalidInput):
			fmt.Println(messageFor(err))
		default:
			return nil, err
		}
	}

	a.auth.CancelSecondFactor()
	return nil, domain.ErrInvalidSecondFactorCode
}

func (a *app) cmdLogout(ctx context.Context) error {
	a.auth.Logout(ctx)
	return nil
}

func (a *app) cmdWhoami() error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	id := a.auth.Identity()
	fmt.Printf("%s <%s>\n", id.Name, id.Email)
	return nil
}

func (a *app) cmdOAuthLogin(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	token, err := a.oauth.Run(ctx, func(authorizeURL string) {
		fmt.Println("Open this URL in your browser to sign in:")
		fmt.Println("  " + authorizeURL)
	})
	if err != nil {
		return err
	}

	identity, err := a.auth.AdoptToken(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s <%s>.\n", identity.Name, identity.Email)
	return nil
}

// cmdWatch keeps the process alive and re-validates the session on an
// interval, the closest CLI analog to a browser tab staying open. When
// METRICS_PORT is set it also exposes /metrics for the duration.
func (a *app) cmdWatch(ctx context.Context) error {
	if err := a.requireAuth(); err != nil {
		return err
	}

	if a.cfg.MetricsPort != "" {
		srv := metrics.NewServer(":" + a.cfg.MetricsPort)
		go func() {
			a.logger.Info("metrics server started", "port", a.cfg.MetricsPort)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("metrics server shutdown", "error", err)
			}
		}()
	}

	interval := time.Duration(a.cfg.WatchIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("watching session", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.auth.CheckSession(ctx); err != nil && !errors.Is(err, auth.ErrSuperseded) {
				a.logger.Error("session re-check", "error", err)
			}
			if !a.auth.IsAuthenticated() {
				return fmt.Errorf("%w: session ended", domain.ErrSessionExpired)
			}
		}
	}
}

func (a *app) cmd2FA(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := a.requireAuth(); err != nil {
		return err
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "setup":
		setup, err := a.accounts.SetupSecondFactor(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Add this secret to your authenticator app:")
		fmt.Println("  secret: " + setup.Secret)
		if setup.QRCodeImage != "" {
			fmt.Println("  QR image (data URI): " + setup.QRCodeImage)
		}
		if setup.Message != "" {
			fmt.Println(setup.Message)
		}
		fmt.Println(`Then run "tienda 2fa enable -code <6 digits>".`)
		return nil
	case "enable", "disable":
		fs := flag.NewFlagSet("2fa "+sub, flag.ContinueOnError)
		code := fs.String("code", "", "6-digit authenticator code")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *code == "" {
			*code = prompt("6-digit code: ")
		}
		var err error
		if sub == "enable" {
			err = a.accounts.EnableSecondFactor(ctx, *code)
		} else {
			err = a.accounts.DisableSecondFactor(ctx, *code)
		}
		if err != nil {
			return err
		}
		fmt.Println("Two-factor authentication " + sub + "d.")
		return nil
	case "status":
		enabled, err := a.accounts.SecondFactorStatus(ctx)
		if err != nil {
			return err
		}
		if enabled {
			fmt.Println("Two-factor authentication is enabled.")
		} else {
			fmt.Println("Two-factor authentication is disabled.")
		}
		return nil
	default:
		return errUsage
	}
}

func prompt(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// maskEmail hides most of the local part, matching what the backend's own
// challenge screens show: "jo***@example.com".
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 2 {
		return email
	}
	return email[:2] + strings.Repeat("*", at-2) + email[at:]
}
