// Package oauth implements the redirect login flow for an external
// identity provider. The browser analog redirects the whole page to the
// provider; here the user opens the authorize URL in a browser and the
// provider redirects back to a short-lived loopback listener carrying the
// session token.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	sloggin "github.com/samber/slog-gin"
)

// ErrStateMismatch reports a callback whose state nonce does not match
// the one issued for this attempt.
var ErrStateMismatch = errors.New("oauth state mismatch")

// ErrNoToken reports a callback that carried no session token.
var ErrNoToken = errors.New("oauth callback carried no token")

type Flow struct {
	base         string // backend base URL
	providerPath string // e.g. /oauth2/authorization/google
	port         int
	logger       *slog.Logger
}

func NewFlow(baseURL, providerPath string, port int, logger *slog.Logger) *Flow {
	return &Flow{
		base:         strings.TrimRight(baseURL, "/"),
		providerPath: providerPath,
		port:         port,
		logger:       logger.With("component", "oauth_flow"),
	}
}

// Run starts the loopback listener, reports the authorize URL through
// announce, and blocks until the provider redirects back with a token or
// ctx expires. The backend completes the code exchange server-side, so
// the callback carries the finished bearer token.
func (f *Flow) Run(ctx context.Context, announce func(authorizeURL string)) (string, error) {
	state := uuid.NewString()
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", f.port)

	type outcome struct {
		token string
		err   error
	}
	done := make(chan outcome, 1)
	// Only the first callback counts; duplicates must not block their
	// handler (and with it the server shutdown).
	deliver := func(out outcome) {
		select {
		case done <- out:
		default:
		}
	}

	engine := gin.New()
	engine.Use(sloggin.New(f.logger), gin.Recovery())
	engine.GET("/callback", func(c *gin.Context) {
		if c.Query("state") != state {
			c.String(http.StatusBadRequest, "Sign-in rejected: state mismatch.")
			deliver(outcome{err: ErrStateMismatch})
			return
		}
		token := c.Query("token")
		if token == "" {
			c.String(http.StatusBadRequest, "Sign-in failed: no token in callback.")
			deliver(outcome{err: ErrNoToken})
			return
		}
		c.String(http.StatusOK, "Signed in. You can close this window.")
		deliver(outcome{token: token})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", f.port),
		Handler: engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			f.logger.Error("callback server shutdown", "error", err)
		}
	}()

	announce(f.authorizeURL(state, redirectURI))
	f.logger.Info("waiting for oauth callback", "redirect_uri", redirectURI)

	select {
	case out := <-done:
		return out.token, out.err
	case err := <-serveErr:
		return "", fmt.Errorf("callback listener: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *Flow) authorizeURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return f.base + f.providerPath + "?" + q.Encode()
}
