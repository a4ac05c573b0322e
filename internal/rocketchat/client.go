// Package rocketchat is a minimal REST client for a Rocket.Chat server.
// It runs on whatever *http.Client it is given, normally the shared one.
package rocketchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mtlprog/chatboot/internal/domain"
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match domain sentinels by status.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case domain.ErrUnexpectedServerResponse:
		return true
	}
	return false
}

// Client talks to one server.
type Client struct {
	http   *http.Client
	server *url.URL
	now    func() time.Time
}

// New creates a Client for serverURL using httpClient for transport.
func New(httpClient *http.Client, serverURL string) (*Client, error) {
	u, err := ParseServerURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &Client{http: httpClient, server: u, now: time.Now}, nil
}

// ParseServerURL accepts an http(s) URL with a host and strips any trailing slash.
func ParseServerURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidServer, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidServer, raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// ServerURL returns the normalized server address.
func (c *Client) ServerURL() string {
	return c.server.String()
}

type serverInfoResponse struct {
	Version string `json:"version"`
	Info    struct {
		Version string `json:"version"`
	} `json:"info"`
	Success bool `json:"success"`
}

// ServerInfo fetches the server's version.
func (c *Client) ServerInfo(ctx context.Context) (*domain.ServerInfo, error) {
	var resp serverInfoResponse
	if err := c.do(ctx, http.MethodGet, "/api/info", nil, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get server info: %w", err)
	}

	version := resp.Version
	if version == "" {
		version = resp.Info.Version
	}
	if version == "" {
		return nil, fmt.Errorf("get server info: %w: missing version", domain.ErrUnexpectedServerResponse)
	}

	return &domain.ServerInfo{URL: c.ServerURL(), Version: domain.ParseVersion(version)}, nil
}

type loginRequest struct {
	User        string         `json:"user,omitempty"`
	Password    string         `json:"password,omitempty"`
	LDAP        bool           `json:"ldap,omitempty"`
	Username    string         `json:"username,omitempty"`
	LDAPPass    string         `json:"ldapPass,omitempty"`
	LDAPOptions map[string]any `json:"ldapOptions,omitempty"`
	CAS         *casLogin      `json:"cas,omitempty"`
	OAuth       *oauthLogin    `json:"oauth,omitempty"`
}

type casLogin struct {
	CredentialToken string `json:"credentialToken"`
}

type oauthLogin struct {
	CredentialToken  string `json:"credentialToken"`
	CredentialSecret string `json:"credentialSecret"`
}

type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		UserID    string `json:"userId"`
		AuthToken string `json:"authToken"`
	} `json:"data"`
}

func newLoginRequest(creds domain.Credentials) loginRequest {
	switch creds.Method {
	case domain.LoginMethodLDAP:
		return loginRequest{
			LDAP:        true,
			Username:    creds.UsernameOrEmail,
			LDAPPass:    creds.Password,
			LDAPOptions: map[string]any{},
		}
	case domain.LoginMethodCAS:
		return loginRequest{CAS: &casLogin{CredentialToken: creds.CredentialToken}}
	case domain.LoginMethodOAuth:
		return loginRequest{OAuth: &oauthLogin{
			CredentialToken:  creds.CredentialToken,
			CredentialSecret: creds.CredentialSecret,
		}}
	default:
		return loginRequest{User: creds.UsernameOrEmail, Password: creds.Password}
	}
}

// Login authenticates with username, email, LDAP, CAS or OAuth credentials.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.Token, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/login", nil, newLoginRequest(creds), nil, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.Status != "success" || resp.Data.AuthToken == "" || resp.Data.UserID == "" {
		return nil, fmt.Errorf("login: %w: status %q", domain.ErrUnexpectedServerResponse, resp.Status)
	}

	return &domain.Token{
		ServerURL: c.ServerURL(),
		UserID:    resp.Data.UserID,
		AuthToken: resp.Data.AuthToken,
		CreatedAt: c.now().UTC(),
	}, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// Logout invalidates token on the server.
func (c *Client) Logout(ctx context.Context, token *domain.Token) error {
	var resp statusResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/logout", nil, struct{}{}, token, &resp); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Setting IDs read by PublicSettings.
const (
	settingLDAPEnable = "LDAP_Enable"
	settingCASEnabled = "CAS_enabled"
	settingFavicon    = "Assets_favicon"
	settingWideTile   = "Assets_tile_310_wide"
)

type publicSettingsResponse struct {
	Settings []struct {
		ID    string          `json:"_id"`
		Value json.RawMessage `json:"value"`
	} `json:"settings"`
	Success bool `json:"success"`
}

type assetValue struct {
	URL        string `json:"url"`
	DefaultURL string `json:"defaultUrl"`
}

// PublicSettings fetches the login-related public settings. Settings the
// server does not report keep their zero value.
func (c *Client) PublicSettings(ctx context.Context) (*domain.PublicSettings, error) {
	ids := []string{settingLDAPEnable, settingCASEnabled, settingFavicon, settingWideTile}
	filter, err := json.Marshal(map[string]any{"_id": map[string]any{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("encode settings query: %w", err)
	}

	var resp publicSettingsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/settings.public", url.Values{"query": {string(filter)}}, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get public settings: %w", err)
	}

	var settings domain.PublicSettings
	for _, s := range resp.Settings {
		switch s.ID {
		case settingLDAPEnable:
			settings.LDAPEnabled = decodeBool(s.Value)
		case settingCASEnabled:
			settings.CASEnabled = decodeBool(s.Value)
		case settingFavicon:
			settings.Favicon = decodeAsset(s.Value)
		case settingWideTile:
			settings.WideTile = decodeAsset(s.Value)
		}
	}
	return &settings, nil
}

func decodeBool(raw json.RawMessage) bool {
	var b bool
	return json.Unmarshal(raw, &b) == nil && b
}

func decodeAsset(raw json.RawMessage) string {
	var a assetValue
	if json.Unmarshal(raw, &a) != nil {
		return ""
	}
	if a.URL != "" {
		return a.URL
	}
	return a.DefaultURL
}

type meResponse struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token *domain.Token) (*domain.Myself, error) {
	var resp meResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, nil, token, &resp); err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}
	if resp.Username == "" {
		return nil, fmt.Errorf("get me: %w: missing username", domain.ErrUnexpectedServerResponse)
	}
	return &domain.Myself{ID: resp.ID, Username: resp.Username, Name: resp.Name}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, token *domain.Token, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.server.JoinPath(path)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		req.Header.Set("X-Auth-Token", token.AuthToken)
		req.Header.Set("X-User-Id", token.UserID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrUnexpectedServerResponse, err)
	}
	return nil
}

func newAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// Factory creates clients that share one *http.Client.
type Factory struct {
	HTTP *http.Client
}

// Create returns a Client for serverURL.
func (f Factory) Create(serverURL string) (*Client, error) {
	return New(f.HTTP, serverURL)
}
