package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drojas/tienda/config"
	"github.com/drojas/tienda/internal/api"
	"github.com/drojas/tienda/internal/auth"
	"github.com/drojas/tienda/internal/cart"
	"github.com/drojas/tienda/internal/domain"
	ctxlog "github.com/drojas/tienda/internal/log"
	"github.com/drojas/tienda/internal/metrics"
	"github.com/drojas/tienda/internal/oauth"
	"github.com/drojas/tienda/internal/storage"
	"github.com/gin-gonic/gin"
)

var errUsage = errors.New("usage")

// app carries the wired stores so every command handler sees the same
// instances, the way a UI tree would see the providers.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *api.Client
	auth     *auth.Store
	accounts *auth.Accounts
	cart     *cart.Store
	oauth    *oauth.Flow
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stderr, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFileStore(cfg.StateDir, logger)
	if err != nil {
		log.Fatalf("state store: %v", err)
	}

	metrics.Register()

	client := api.NewClient(cfg.APIBaseURL, time.Duration(cfg.HTTPTimeoutSec)*time.Second, store, logger)
	authStore := auth.NewStore(client, store, logger)
	accounts := auth.NewAccounts(client, logger)
	cartStore := cart.NewStore(store, logger)
	oauthFlow := oauth.NewFlow(cfg.APIBaseURL, cfg.OAuthProviderPath, cfg.OAuthCallbackPort, logger)

	// Cross-store effects are wired here, explicitly, not hidden inside
	// either store: a session coming up attaches the cart to the account,
	// any sign-out (user-initiated or 401-forced) detaches it.
	client.OnUnauthorized(authStore.HandleUnauthorized)
	authStore.OnLogin(func(id domain.Identity) { cartStore.SetOwner(id.Email) })
	authStore.OnLogout(cartStore.Detach)
	authStore.OnLogout(func() {
		fmt.Fprintln(os.Stderr, `You are signed out. Run "tienda login" to sign in.`)
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		auth:     authStore,
		accounts: accounts,
		cart:     cartStore,
		oauth:    oauthFlow,
	}

	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error: "+messageFor(err))
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	// The startup session check: restores the persisted session (if any)
	// before a command runs, so commands see a settled auth state.
	if err := a.auth.CheckSession(ctx); err != nil {
		return fmt.Errorf("session check: %w", err)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, rest)
	case "logout":
		return a.cmdLogout(ctx)
	case "whoami":
		return a.cmdWhoami()
	case "oauth-login":
		return a.cmdOAuthLogin(ctx)
	case "watch":
		return a.cmdWatch(ctx)
	case "2fa":
		return a.cmd2FA(ctx, rest)
	case "register":
		return a.cmdRegister(ctx, rest)
	case "verify-code":
		return a.cmdVerifyCode(ctx, rest)
	case "resend-code":
		return a.cmdResendCode(ctx, rest)
	case "verify-email":
		return a.cmdVerifyEmail(ctx, rest)
	case "forgot-password":
		return a.cmdForgotPassword(ctx, rest)
	case "reset-password":
		return a.cmdResetPassword(ctx, rest)
	case "profile":
		return a.cmdProfile(ctx, rest)
	case "cart":
		return a.cmdCart(ctx, rest)
	case "products":
		return a.cmdProducts(ctx, rest)
	default:
		return errUsage
	}
}

// requireAuth is the routing guard: protected commands bail out with a
// sign-in hint instead of hitting the API and bouncing on a 401.
func (a *app) requireAuth() error {
	if !a.auth.IsAuthenticated() {
		return fmt.Errorf("%w: sign in first with \"tienda login\"", domain.ErrSessionExpired)
	}
	return nil
}

func usage() {
	fmt.Fprint(os.Stderr, `tienda - storefront client

Usage:
  tienda login [-email E] [-password P]
  tienda logout
  tienda whoami
  tienda oauth-login
  tienda watch
  tienda 2fa setup|enable|disable|status [-code C]
  tienda register [-name N] [-email E] [-password P]
  tienda verify-code -email E -code C
  tienda resend-code -email E
  tienda verify-email -token T
  tienda forgot-password -email E
  tienda reset-password -token T [-password P]
  tienda profile set-name|set-phone|set-id [args]
  tienda cart show|add|remove|set|clear [args]
  tienda products list|show|create [args]
`)
}
