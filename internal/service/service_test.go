package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mtlprog/chatboot/internal/database"
	"github.com/mtlprog/chatboot/internal/domain"
	"github.com/mtlprog/chatboot/internal/repository"
	"github.com/mtlprog/chatboot/internal/rocketchat"
	"github.com/mtlprog/chatboot/internal/service"
)

// ServiceTestSuite runs the services against SQLite and a fake server.
type ServiceTestSuite struct {
	suite.Suite
	db       *database.DB
	server   *httptest.Server
	version  atomic.Value
	lastBody atomic.Value
	ldap     atomic.Bool
	cas      atomic.Bool
	revoked  atomic.Int32
	logoutOK atomic.Bool

	servers  *repository.ServerRepository
	accounts *repository.AccountRepository
	tokens   *repository.TokenRepository
	prefs    *repository.PreferenceRepository

	serverService *service.ServerService
	loginService  *service.LoginService
}

func (s *ServiceTestSuite) SetupTest() {
	db, err := database.Initializer{DataDir: s.T().TempDir()}.Init(context.Background(), database.Config{
		Name:    "rocketchat.db",
		Version: 3,
	})
	s.Require().NoError(err)
	s.db = db

	s.version.Store("0.65.0")
	s.lastBody.Store(map[string]any{})
	s.ldap.Store(false)
	s.cas.Store(false)
	s.revoked.Store(0)
	s.logoutOK.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/info", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"version": s.version.Load(), "success": true})
	})
	mux.HandleFunc("GET /api/v1/settings.public", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `{"settings":[
			{"_id":"LDAP_Enable","value":%t},
			{"_id":"CAS_enabled","value":%t},
			{"_id":"Assets_favicon","value":{"defaultUrl":"favicon.ico"}},
			{"_id":"Assets_tile_310_wide","value":{"url":"assets/tile_310_wide.png"}}
		],"success":true}`, s.ldap.Load(), s.cas.Load())
	})
	mux.HandleFunc("POST /api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.lastBody.Store(body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"userId": "u1", "authToken": "tok"},
		})
	})
	mux.HandleFunc("GET /api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"_id": "u1", "username": "jane", "success": true})
	})
	mux.HandleFunc("POST /api/v1/logout", func(w http.ResponseWriter, _ *http.Request) {
		if !s.logoutOK.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.revoked.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "success"})
	})
	s.server = httptest.NewServer(mux)

	factory := rocketchat.Factory{HTTP: s.server.Client()}
	s.servers = repository.NewServerRepository(db)
	s.accounts = repository.NewAccountRepository(db)
	s.tokens = repository.NewTokenRepository(db)
	s.prefs = repository.NewPreferenceRepository(db)
	s.serverService = service.NewServerService(factory, s.servers, "0.62.0", "0.65.0")
	s.loginService = service.NewLoginService(factory, s.accounts, s.tokens, s.prefs)
}

func (s *ServiceTestSuite) TearDownTest() {
	s.server.Close()
	s.db.Close()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) login() *domain.Account {
	account, err := s.loginService.Login(context.Background(), service.LoginRequest{
		Server:          s.server.URL,
		UsernameOrEmail: "jane",
		Password:        "hunter2",
	})
	s.Require().NoError(err)
	return account
}

func (s *ServiceTestSuite) TestCheckClassifiesAndSaves() {
	ctx := context.Background()

	cases := map[string]domain.VersionStatus{
		"0.61.0":    domain.VersionUnsupported,
		"0.63.2":    domain.VersionOutdated,
		"0.65.0":    domain.VersionSupported,
		"1.0.0-rc1": domain.VersionSupported,
	}
	for version, want := range cases {
		s.version.Store(version)

		check, err := s.serverService.Check(ctx, s.server.URL)
		s.Require().NoError(err, version)
		s.Equal(want, check.Status, version)

		saved, err := s.servers.GetByURL(ctx, s.server.URL)
		s.Require().NoError(err)
		s.Equal(version, saved.Version)
	}
}

func (s *ServiceTestSuite) TestCheckReportsPreviousVersion() {
	ctx := context.Background()

	s.version.Store("0.62.0")
	check, err := s.serverService.Check(ctx, s.server.URL)
	s.Require().NoError(err)
	s.Empty(check.PreviousVersion)

	s.version.Store("0.66.1")
	check, err = s.serverService.Check(ctx, s.server.URL+"/")
	s.Require().NoError(err)
	s.Equal("0.62.0", check.PreviousVersion)

	servers, err := s.serverService.Servers(ctx)
	s.Require().NoError(err)
	s.Require().Len(servers, 1)
	s.Equal("0.66.1", servers[0].Version)
}

func (s *ServiceTestSuite) TestCheckRejectsInvalidServer() {
	_, err := s.serverService.Check(context.Background(), "not a url")
	s.ErrorIs(err, domain.ErrInvalidServer)
}

func (s *ServiceTestSuite) TestLoginValidation() {
	ctx := context.Background()

	_, err := s.loginService.Login(ctx, service.LoginRequest{Server: s.server.URL, UsernameOrEmail: "   ", Password: "x"})
	s.ErrorIs(err, domain.ErrInvalidUsername)

	_, err = s.loginService.Login(ctx, service.LoginRequest{Server: s.server.URL, UsernameOrEmail: "jane"})
	s.ErrorIs(err, domain.ErrInvalidPassword)

	_, err = s.loginService.Login(ctx, service.LoginRequest{UsernameOrEmail: "", Password: ""})
	s.ErrorIs(err, domain.ErrInvalidUsername, "username is checked first")

	_, err = s.loginService.Login(ctx, service.LoginRequest{Server: "chat", UsernameOrEmail: "jane", Password: "x"})
	s.ErrorIs(err, domain.ErrInvalidServer)

	_, err = s.loginService.Login(ctx, service.LoginRequest{Server: s.server.URL, OAuthToken: "t"})
	s.ErrorIs(err, domain.ErrInvalidOAuth)
}

func (s *ServiceTestSuite) TestLoginSavesAccountTokenAndSession() {
	ctx := context.Background()

	account, err := s.loginService.Login(ctx, service.LoginRequest{
		Server:          s.server.URL + "/",
		UsernameOrEmail: "jane",
		Password:        "hunter2",
	})
	s.Require().NoError(err)
	s.Equal(s.server.URL, account.ServerURL)
	s.Equal("jane", account.Username)
	s.Equal(s.server.URL+"/avatar/jane", account.AvatarURL)
	s.Equal(s.server.URL+"/favicon.ico", account.IconURL)
	s.Equal(s.server.URL+"/assets/tile_310_wide.png", account.LogoURL)

	token, err := s.tokens.Get(ctx, s.server.URL)
	s.Require().NoError(err)
	s.Equal("tok", token.AuthToken)

	current, err := s.prefs.Get(ctx, domain.PrefCurrentUsername)
	s.Require().NoError(err)
	s.Equal("jane", current)

	server, err := s.prefs.Get(ctx, domain.PrefCurrentServer)
	s.Require().NoError(err)
	s.Equal(s.server.URL, server)

	accounts, err := s.loginService.Accounts(ctx)
	s.Require().NoError(err)
	s.Len(accounts, 1)
}

func (s *ServiceTestSuite) TestLoginMethodSelection() {
	ctx := context.Background()

	_, err := s.loginService.Login(ctx, service.LoginRequest{Server: s.server.URL, UsernameOrEmail: "jane@example.com", Password: "x", LDAP: true})
	s.Require().NoError(err)
	body := s.lastBody.Load().(map[string]any)
	s.Equal("jane@example.com", body["user"], "email wins over ldap")
	s.NotContains(body, "ldap")

	_, err = s.loginService.Login(ctx, service.LoginRequest{Server: s.server.URL, UsernameOrEmail: "jane", Password: "x"})
	s.Require().NoError(err)
	body = s.lastBody.Load().(map[string]any)
	s.Equal("jane", body["user"])
	s.NotContains(body, "ldap")

	s.ldap.Store(true)
	_, err = s.loginService.Login(ctx, service.LoginRequest{Server: s.server.URL, UsernameOrEmail: "jane", Password: "x"})
	s.Require().NoError(err)
	body = s.lastBody.Load().(map[string]any)
	s.Equal(true, body["ldap"], "server settings enable ldap")
	s.Equal("jane", body["username"])
}

func (s *ServiceTestSuite) TestLoginWithCAS() {
	ctx := context.Background()
	req := service.LoginRequest{Server: s.server.URL, CASToken: "ticket-1"}

	_, err := s.loginService.Login(ctx, req)
	s.ErrorIs(err, domain.ErrCASDisabled)

	s.cas.Store(true)
	account, err := s.loginService.Login(ctx, req)
	s.Require().NoError(err)
	s.Equal("jane", account.Username)

	body := s.lastBody.Load().(map[string]any)
	s.Equal(map[string]any{"credentialToken": "ticket-1"}, body["cas"])
}

func (s *ServiceTestSuite) TestLoginWithOAuth() {
	_, err := s.loginService.Login(context.Background(), service.LoginRequest{
		Server:      s.server.URL,
		OAuthToken:  "oauth-token",
		OAuthSecret: "oauth-secret",
	})
	s.Require().NoError(err)

	body := s.lastBody.Load().(map[string]any)
	s.Equal(map[string]any{"credentialToken": "oauth-token", "credentialSecret": "oauth-secret"}, body["oauth"])
}

func (s *ServiceTestSuite) TestWhoamiUsesStoredToken() {
	ctx := context.Background()

	_, err := s.loginService.Whoami(ctx, "")
	s.ErrorIs(err, domain.ErrNoCurrentServer)

	s.login()

	account, err := s.loginService.Whoami(ctx, "")
	s.Require().NoError(err)
	s.Equal("jane", account.Username)
	s.Equal(s.server.URL+"/favicon.ico", account.IconURL)

	s.Require().NoError(s.tokens.Save(ctx, domain.Token{ServerURL: s.server.URL, UserID: "u1", AuthToken: "stale"}))
	_, err = s.loginService.Whoami(ctx, s.server.URL)
	s.ErrorIs(err, domain.ErrUnauthorized)
}

func (s *ServiceTestSuite) TestLogoutForgetsTokenAndSession() {
	ctx := context.Background()
	s.login()

	s.Require().NoError(s.loginService.Logout(ctx, ""))
	s.EqualValues(1, s.revoked.Load())

	_, err := s.tokens.Get(ctx, s.server.URL)
	s.ErrorIs(err, domain.ErrTokenNotFound)
	_, err = s.prefs.Get(ctx, domain.PrefCurrentUsername)
	s.ErrorIs(err, domain.ErrPrefNotFound)

	accounts, err := s.loginService.Accounts(ctx)
	s.Require().NoError(err)
	s.Len(accounts, 1, "accounts outlive their session")

	s.ErrorIs(s.loginService.Logout(ctx, s.server.URL), domain.ErrTokenNotFound)
}

func (s *ServiceTestSuite) TestLogoutRemovesTokenWhenServerFails() {
	ctx := context.Background()
	s.login()
	s.logoutOK.Store(false)

	s.Require().NoError(s.loginService.Logout(ctx, s.server.URL))

	_, err := s.tokens.Get(ctx, s.server.URL)
	s.ErrorIs(err, domain.ErrTokenNotFound)
}

func TestValidatorLoginMethod(t *testing.T) {
	v := service.NewValidator()
	none := domain.PublicSettings{}

	tests := []struct {
		name     string
		req      service.LoginRequest
		settings domain.PublicSettings
		want     domain.LoginMethod
	}{
		{"username", service.LoginRequest{UsernameOrEmail: "jane"}, none, domain.LoginMethodUsername},
		{"email", service.LoginRequest{UsernameOrEmail: " jane@example.com "}, none, domain.LoginMethodEmail},
		{"ldap flag", service.LoginRequest{UsernameOrEmail: "jane", LDAP: true}, none, domain.LoginMethodLDAP},
		{"ldap setting", service.LoginRequest{UsernameOrEmail: "jane"}, domain.PublicSettings{LDAPEnabled: true}, domain.LoginMethodLDAP},
		{"email over ldap setting", service.LoginRequest{UsernameOrEmail: "jane@example.com"}, domain.PublicSettings{LDAPEnabled: true}, domain.LoginMethodEmail},
		{"cas", service.LoginRequest{CASToken: "t"}, none, domain.LoginMethodCAS},
		{"oauth", service.LoginRequest{OAuthToken: "t", OAuthSecret: "s"}, none, domain.LoginMethodOAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.LoginMethod(tt.req, tt.settings); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}
