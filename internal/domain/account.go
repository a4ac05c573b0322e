package domain

import (
	"strings"
	"time"
)

// LoginMethod selects how credentials are sent to the server.
type LoginMethod string

const (
	LoginMethodUsername LoginMethod = "username"
	LoginMethodEmail    LoginMethod = "email"
	LoginMethodLDAP     LoginMethod = "ldap"
	LoginMethodCAS      LoginMethod = "cas"
	LoginMethodOAuth    LoginMethod = "oauth"
)

// Credentials is what a login method sends. Username, email and LDAP use
// UsernameOrEmail and Password; CAS uses CredentialToken; OAuth uses
// CredentialToken and CredentialSecret.
type Credentials struct {
	Method           LoginMethod
	UsernameOrEmail  string
	Password         string
	CredentialToken  string
	CredentialSecret string
}

// Token is an authenticated session on a server.
type Token struct {
	ServerURL string
	UserID    string
	AuthToken string
	CreatedAt time.Time
}

// Myself is the authenticated user as reported by the server.
type Myself struct {
	ID       string
	Username string
	Name     string
}

// Account is a user known on a server.
type Account struct {
	ServerURL string
	Username  string
	AvatarURL string
	IconURL   string
	LogoURL   string
	CreatedAt time.Time
}

// AvatarURL builds the avatar address of a user on a server.
func AvatarURL(serverURL, username string) string {
	return strings.TrimRight(serverURL, "/") + "/avatar/" + username
}

// AssetURL resolves a server asset path such as the favicon. Empty paths stay empty.
func AssetURL(serverURL, asset string) string {
	if asset == "" {
		return ""
	}
	if strings.HasPrefix(asset, "http://") || strings.HasPrefix(asset, "https://") {
		return asset
	}
	return strings.TrimRight(serverURL, "/") + "/" + strings.TrimLeft(asset, "/")
}

// PublicSettings is the subset of a server's public settings used at login.
type PublicSettings struct {
	LDAPEnabled bool
	CASEnabled  bool
	Favicon     string
	WideTile    string
}

// Preference keys.
const (
	PrefCurrentServer   = "current_server"
	PrefCurrentUsername = "current_username"
)
