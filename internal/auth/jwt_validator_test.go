package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jasa/internal/config"
)

const managedIssuer = "https://auth.jasa.test/auth/v1"

// validatorFromConfig builds the validator the API would install for the loaded auth settings.
func validatorFromConfig(t *testing.T, overrides map[string]string) TokenValidator {
	t.Helper()
	env := map[string]string{
		"DATABASE_URL": "postgres://localhost/jasa",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "super-secret-key",
		"JWT_ISSUER":   managedIssuer,
		"JWT_AUDIENCE": "authenticated",
		"JWT_ROLE":     "",
	}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	v, err := NewVerifier(VerifierConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Role:     cfg.JWTRole,
	})
	require.NoError(t, err)
	return v.validator
}

type sessionClaims struct {
	issuer   string
	audience string
	subject  string
	role     string
	nbf      time.Time
	exp      time.Time
}

func sessionToken(t *testing.T, now time.Time, edit func(*sessionClaims)) jwt.Token {
	t.Helper()
	c := sessionClaims{
		issuer:   managedIssuer,
		audience: "authenticated",
		subject:  uuid.NewString(),
		role:     "authenticated",
		nbf:      now,
		exp:      now.Add(time.Hour),
	}
	if edit != nil {
		edit(&c)
	}
	b := jwt.NewBuilder().
		Issuer(c.issuer).
		Audience([]string{c.audience}).
		Subject(c.subject).
		IssuedAt(now).
		NotBefore(c.nbf).
		Expiration(c.exp)
	if c.role != "" {
		b = b.Claim(RoleClaim, c.role)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestValidatorUsesConfiguredManagedAuth(t *testing.T) {
	v := validatorFromConfig(t, nil)
	require.Equal(t, managedIssuer, v.Issuer)
	require.Equal(t, "authenticated", v.Audience)
	require.Equal(t, "authenticated", v.Role)
	require.Equal(t, jwa.HS256, v.Algorithm)
}

func TestValidatorManagedAuthSessions(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	v := validatorFromConfig(t, nil)

	cases := []struct {
		name    string
		edit    func(*sessionClaims)
		alg     jwa.SignatureAlgorithm
		wantErr bool
	}{
		{name: "seller session", alg: jwa.HS256},
		{name: "within clock skew", alg: jwa.HS256, edit: func(c *sessionClaims) { c.nbf = now.Add(20 * time.Second) }},
		{name: "other project issuer", alg: jwa.HS256, wantErr: true, edit: func(c *sessionClaims) { c.issuer = "https://other.jasa.test/auth/v1" }},
		{name: "service audience", alg: jwa.HS256, wantErr: true, edit: func(c *sessionClaims) { c.audience = "service_role" }},
		{name: "anon role", alg: jwa.HS256, wantErr: true, edit: func(c *sessionClaims) { c.role = "anon" }},
		{name: "missing role", alg: jwa.HS256, wantErr: true, edit: func(c *sessionClaims) { c.role = "" }},
		{name: "subject is not a user id", alg: jwa.HS256, wantErr: true, edit: func(c *sessionClaims) { c.subject = "seller-1" }},
		{name: "expired session", alg: jwa.HS256, wantErr: true, edit: func(c *sessionClaims) { c.exp = now.Add(-time.Minute) }},
		{name: "not yet valid", alg: jwa.HS256, wantErr: true, edit: func(c *sessionClaims) { c.nbf = now.Add(5 * time.Minute) }},
		{name: "asymmetric algorithm", alg: jwa.RS256, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(sessionToken(t, now, tc.edit), tc.alg, now)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidatorRoleOverride(t *testing.T) {
	now := time.Now()
	v := validatorFromConfig(t, map[string]string{"JWT_ROLE": "seller"})
	require.Error(t, v.Validate(sessionToken(t, now, nil), jwa.HS256, now))
	require.NoError(t, v.Validate(sessionToken(t, now, func(c *sessionClaims) { c.role = "seller" }), jwa.HS256, now))
}
