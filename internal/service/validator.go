package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mtlprog/chatboot/internal/domain"
)

// LoginRequest is the input of LoginService.Login. A CAS token or an OAuth
// token/secret pair replaces the username and password.
type LoginRequest struct {
	Server          string
	UsernameOrEmail string
	Password        string
	LDAP            bool
	CASToken        string
	OAuthToken      string
	OAuthSecret     string
}

func (r LoginRequest) usesCAS() bool {
	return strings.TrimSpace(r.CASToken) != ""
}

func (r LoginRequest) usesOAuth() bool {
	return strings.TrimSpace(r.OAuthToken) != "" || strings.TrimSpace(r.OAuthSecret) != ""
}

// Validator checks request input before anything goes over the network.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateServer checks that serverURL is an absolute http(s) URL.
func (v *Validator) ValidateServer(serverURL string) error {
	if err := v.validate.Var(strings.TrimSpace(serverURL), "required,http_url"); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidServer, serverURL)
	}
	return nil
}

// ValidateLogin checks a login request. A blank username is rejected before
// an empty password, matching the order the fields are presented to the user.
func (v *Validator) ValidateLogin(req LoginRequest) error {
	switch {
	case req.usesCAS():
	case req.usesOAuth():
		if strings.TrimSpace(req.OAuthToken) == "" || strings.TrimSpace(req.OAuthSecret) == "" {
			return domain.ErrInvalidOAuth
		}
	default:
		if strings.TrimSpace(req.UsernameOrEmail) == "" {
			return domain.ErrInvalidUsername
		}
		if req.Password == "" {
			return domain.ErrInvalidPassword
		}
	}
	return v.ValidateServer(req.Server)
}

// IsEmail reports whether s looks like an email address.
func (v *Validator) IsEmail(s string) bool {
	return v.validate.Var(s, "email") == nil
}

// LoginMethod picks how credentials are sent. An email address always logs
// in by email; otherwise LDAP is used when requested or enabled on the server.
func (v *Validator) LoginMethod(req LoginRequest, settings domain.PublicSettings) domain.LoginMethod {
	switch {
	case req.usesCAS():
		return domain.LoginMethodCAS
	case req.usesOAuth():
		return domain.LoginMethodOAuth
	case v.IsEmail(strings.TrimSpace(req.UsernameOrEmail)):
		return domain.LoginMethodEmail
	case req.LDAP || settings.LDAPEnabled:
		return domain.LoginMethodLDAP
	default:
		return domain.LoginMethodUsername
	}
}
