package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Guliveer/feedsync-go/internal/api"
	"github.com/Guliveer/feedsync-go/internal/auth"
	"github.com/Guliveer/feedsync-go/internal/config"
	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/logger"
	"github.com/Guliveer/feedsync-go/internal/model"
)

// ensureSession reuses the stored token when the backend still accepts it
// and otherwise logs in with the configured account.
func ensureSession(ctx context.Context, client *api.Client, store *auth.TokenStore, acct config.AccountConfig, log *logger.Logger) (*model.User, error) {
	if store.AuthToken() != "" {
		user, err := client.CurrentUser(ctx)
		if err == nil {
			return user, nil
		}
		if !api.IsStatus(err, http.StatusUnauthorized) && !api.IsStatus(err, http.StatusForbidden) {
			return nil, fmt.Errorf("checking stored session: %w", err)
		}
		log.Warn("Stored session token rejected, logging in again")
		if err := client.Logout(); err != nil {
			log.Warn("Failed to clear stale token", "error", err)
		}
	}

	if acct.Username == "" {
		return nil, errors.New("no stored session and account.username is not set (or FEEDSYNC_USERNAME)")
	}

	password := acct.Password
	if password == "" {
		var err error
		password, err = promptPassword(acct.Username)
		if err != nil {
			return nil, err
		}
	}

	if _, err := client.Login(ctx, model.LoginCredentials{Username: acct.Username, Password: password}); err != nil {
		return nil, err
	}
	return client.CurrentUser(ctx)
}

func promptPassword(username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required: set account.password or FEEDSYNC_PASSWORD")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	password := strings.TrimSpace(string(raw))
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}

func userAgentHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", constants.UserAgent)
	return h
}
