package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// RoleClaim is the private claim the managed auth provider sets on user sessions.
const RoleClaim = "role"

// TokenValidator checks the claims of an access token minted by the managed auth provider.
// Subjects must be user UUIDs since they key sellers.user_id and admins.user_id.
type TokenValidator struct {
	Issuer    string
	Audience  string
	Role      string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks algorithm, time window, issuer, audience, subject and role.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return err
	}

	if _, err := uuid.Parse(tok.Subject()); err != nil {
		return fmt.Errorf("auth: subject %q is not a user id", tok.Subject())
	}
	if v.Role != "" {
		raw, _ := tok.Get(RoleClaim)
		if role, _ := raw.(string); role != v.Role {
			return fmt.Errorf("auth: role %q is not allowed", role)
		}
	}
	return nil
}
