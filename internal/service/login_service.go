package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mtlprog/chatboot/internal/domain"
	"github.com/mtlprog/chatboot/internal/repository"
	"github.com/mtlprog/chatboot/internal/rocketchat"
)

// LoginService authenticates against a server and keeps the resulting
// account, token and current-session preferences.
type LoginService struct {
	factory   rocketchat.Factory
	accounts  *repository.AccountRepository
	tokens    *repository.TokenRepository
	prefs     *repository.PreferenceRepository
	validator *Validator
	now       func() time.Time
}

// NewLoginService creates a new LoginService.
func NewLoginService(
	factory rocketchat.Factory,
	accounts *repository.AccountRepository,
	tokens *repository.TokenRepository,
	prefs *repository.PreferenceRepository,
) *LoginService {
	return &LoginService{
		factory:   factory,
		accounts:  accounts,
		tokens:    tokens,
		prefs:     prefs,
		validator: NewValidator(),
		now:       time.Now,
	}
}

// Login validates req, logs in, and saves the account and token. The server
// becomes the current one.
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (*domain.Account, error) {
	if err := s.validator.ValidateLogin(req); err != nil {
		return nil, err
	}

	client, err := s.factory.Create(req.Server)
	if err != nil {
		return nil, err
	}

	settings, err := client.PublicSettings(ctx)
	if err != nil {
		return nil, err
	}

	creds := domain.Credentials{
		Method:           s.validator.LoginMethod(req, *settings),
		UsernameOrEmail:  strings.TrimSpace(req.UsernameOrEmail),
		Password:         req.Password,
		CredentialToken:  strings.TrimSpace(req.CASToken),
		CredentialSecret: strings.TrimSpace(req.OAuthSecret),
	}
	switch creds.Method {
	case domain.LoginMethodCAS:
		if !settings.CASEnabled {
			return nil, domain.ErrCASDisabled
		}
	case domain.LoginMethodOAuth:
		creds.CredentialToken = strings.TrimSpace(req.OAuthToken)
	}

	token, err := client.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	me, err := client.Me(ctx, token)
	if err != nil {
		return nil, err
	}

	serverURL := client.ServerURL()
	account := domain.Account{
		ServerURL: serverURL,
		Username:  me.Username,
		AvatarURL: domain.AvatarURL(serverURL, me.Username),
		IconURL:   domain.AssetURL(serverURL, settings.Favicon),
		LogoURL:   domain.AssetURL(serverURL, settings.WideTile),
		CreatedAt: s.now().UTC(),
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	if err := s.tokens.Save(ctx, *token); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	if err := s.prefs.Set(ctx, domain.PrefCurrentServer, serverURL); err != nil {
		return nil, err
	}
	if err := s.prefs.Set(ctx, domain.PrefCurrentUsername, me.Username); err != nil {
		return nil, err
	}

	slog.Info("logged in", "server", serverURL, "username", account.Username, "method", creds.Method)

	return &account, nil
}

// Whoami checks the stored token against the server and returns its account.
// An empty serverURL means the current server.
func (s *LoginService) Whoami(ctx context.Context, serverURL string) (*domain.Account, error) {
	client, err := s.client(ctx, serverURL)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Get(ctx, client.ServerURL())
	if err != nil {
		return nil, err
	}

	me, err := client.Me(ctx, token)
	if err != nil {
		return nil, err
	}

	return s.accounts.Get(ctx, client.ServerURL(), me.Username)
}

// Logout revokes the stored token on the server and forgets it locally.
// The local token is removed even when the server cannot be reached.
// An empty serverURL means the current server.
func (s *LoginService) Logout(ctx context.Context, serverURL string) error {
	client, err := s.client(ctx, serverURL)
	if err != nil {
		return err
	}
	server := client.ServerURL()

	token, err := s.tokens.Get(ctx, server)
	if err != nil {
		return err
	}

	if err := client.Logout(ctx, token); err != nil {
		slog.Warn("server logout failed, removing local token", "server", server, "error", err)
	}

	if err := s.tokens.Delete(ctx, server); err != nil {
		return err
	}

	current, err := s.prefs.Get(ctx, domain.PrefCurrentServer)
	if err != nil && !errors.Is(err, domain.ErrPrefNotFound) {
		return err
	}
	if current == server {
		if err := s.prefs.Delete(ctx, domain.PrefCurrentServer); err != nil {
			return err
		}
		if err := s.prefs.Delete(ctx, domain.PrefCurrentUsername); err != nil {
			return err
		}
	}

	slog.Info("logged out", "server", server)
	return nil
}

// Accounts lists every saved account.
func (s *LoginService) Accounts(ctx context.Context) ([]domain.Account, error) {
	return s.accounts.List(ctx)
}

func (s *LoginService) client(ctx context.Context, serverURL string) (*rocketchat.Client, error) {
	if strings.TrimSpace(serverURL) == "" {
		current, err := s.prefs.Get(ctx, domain.PrefCurrentServer)
		if errors.Is(err, domain.ErrPrefNotFound) {
			return nil, domain.ErrNoCurrentServer
		}
		if err != nil {
			return nil, err
		}
		serverURL = current
	}

	if err := s.validator.ValidateServer(serverURL); err != nil {
		return nil, err
	}
	return s.factory.Create(serverURL)
}
