// Package authmode decides which credential, if any, the gateway attaches to
// an upstream call.
package authmode

import "strings"

// HeaderName is the inbound header carrying an explicit auth mode override
const HeaderName = "X-Auth-Type"

// Mode is the credential-injection mode applied to one request
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeNone  Mode = "none"
	ModeJWT   Mode = "jwt"
	ModeToken Mode = "token"
)

// ParseMode maps a header value to a Mode. Empty and unrecognised values
// resolve to ModeAuto; "api_token" is accepted as an alias of ModeToken.
func ParseMode(value string) Mode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return ModeNone
	case "jwt":
		return ModeJWT
	case "token", "api_token":
		return ModeToken
	default:
		return ModeAuto
	}
}

// AuthRequirement is the outcome of classifying a request.
// At most one of the two flags is ever set.
type AuthRequirement struct {
	RequiresSessionAuth  bool `json:"requires_session_auth"`
	RequiresServiceToken bool `json:"requires_service_token"`
}

// Mode returns the concrete mode this requirement stands for
func (a AuthRequirement) Mode() Mode {
	switch {
	case a.RequiresSessionAuth:
		return ModeJWT
	case a.RequiresServiceToken:
		return ModeToken
	default:
		return ModeNone
	}
}

// RequirementFor returns the requirement for a concrete mode.
// ModeAuto has no fixed requirement and maps to the zero value.
func RequirementFor(m Mode) AuthRequirement {
	switch m {
	case ModeJWT:
		return AuthRequirement{RequiresSessionAuth: true}
	case ModeToken:
		return AuthRequirement{RequiresServiceToken: true}
	default:
		return AuthRequirement{}
	}
}

// Source records where a classification came from
type Source string

const (
	SourceOverride Source = "override"
	SourceCache    Source = "cache"
	SourceTable    Source = "table"
)
