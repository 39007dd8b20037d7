// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/portfolio-backend/internal/config"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/middleware"
)

type signingKeys struct {
	private jwk.Key
	public  jwk.Key
}

// JWTManager mints and verifies tokens. Each kind has its own key pair and
// lifetime; the manager keeps no state beyond its keys.
type JWTManager struct {
	keys       map[middleware.TokenKind]signingKeys
	lifetimes  map[middleware.TokenKind]time.Duration
	publicJWKS jwk.Set
	issuer     string
	audience   []string
	now        func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	access, err := loadPrivateKey(cfg.AccessPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("access key: %w", err)
	}

	refresh, err := loadPrivateKey(cfg.RefreshPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("refresh key: %w", err)
	}

	return NewJWTManagerFromKeys(cfg, access, refresh)
}

// NewJWTManagerFromKeys builds a manager from already parsed private keys.
func NewJWTManagerFromKeys(
	cfg config.JWTConfig,
	accessKey, refreshKey jwk.Key,
) (*JWTManager, error) {
	m := &JWTManager{
		keys:      make(map[middleware.TokenKind]signingKeys, 2),
		lifetimes: map[middleware.TokenKind]time.Duration{
			middleware.AccessToken:  cfg.AccessTokenExpire,
			middleware.RefreshToken: cfg.RefreshTokenExpire,
		},
		publicJWKS: jwk.NewSet(),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        time.Now,
	}

	for kind, key := range map[middleware.TokenKind]jwk.Key{
		middleware.AccessToken:  accessKey,
		middleware.RefreshToken: refreshKey,
	} {
		pair, err := prepareKey(key)
		if err != nil {
			return nil, fmt.Errorf("%s key: %w", kind, err)
		}
		m.keys[kind] = pair
	}

	if err := m.publicJWKS.AddKey(m.keys[middleware.AccessToken].public); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	return m, nil
}

func loadPrivateKey(path string) (jwk.Key, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	key, err := jwk.ParseKey(pem, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return key, nil
}

func prepareKey(key jwk.Key) (signingKeys, error) {
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return signingKeys{}, fmt.Errorf("set algorithm: %w", err)
	}

	var kid string
	if err := key.Get(jwk.KeyIDKey, &kid); err != nil || kid == "" {
		if setErr := key.Set(jwk.KeyIDKey, uuid.New().String()[:8]); setErr != nil {
			return signingKeys{}, fmt.Errorf("set key id: %w", setErr)
		}
	}

	public, err := key.PublicKey()
	if err != nil {
		return signingKeys{}, fmt.Errorf("derive public key: %w", err)
	}

	if err := public.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return signingKeys{}, fmt.Errorf("set key usage: %w", err)
	}

	return signingKeys{private: key, public: public}, nil
}

// GenerateKey creates a fresh ES256 private key.
func GenerateKey() (jwk.Key, error) {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	key, err := jwk.Import(raw)
	if err != nil {
		return nil, fmt.Errorf("import private key: %w", err)
	}

	return key, nil
}

func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	key, err := GenerateKey()
	if err != nil {
		return err
	}

	if setErr := key.Set(jwk.KeyIDKey, uuid.New().String()[:8]); setErr != nil {
		return fmt.Errorf("set key id: %w", setErr)
	}
	if setErr := key.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
		return fmt.Errorf("set algorithm: %w", setErr)
	}

	privatePEM, err := jwk.Pem(key)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}

	if writeErr := os.WriteFile(privateKeyPath, privatePEM, 0o600); writeErr != nil {
		return fmt.Errorf("write private key: %w", writeErr)
	}

	public, err := key.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(public)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	//nolint:gosec // G306: public key is intentionally world-readable
	if writeErr := os.WriteFile(publicKeyPath, publicPEM, 0o644); writeErr != nil {
		return fmt.Errorf("write public key: %w", writeErr)
	}

	return nil
}

// Issue signs a token of the given kind for subject.
func (m *JWTManager) Issue(
	subject middleware.TokenSubject,
	kind middleware.TokenKind,
) (string, time.Time, error) {
	keys, ok := m.keys[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}

	now := m.now()
	expiresAt := now.Add(m.lifetimes[kind])

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.issuer).
		Audience(m.audience).
		Subject(subject.UserID).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim("email", subject.Email).
		Claim("role", subject.Role).
		Claim("type", string(kind)).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), keys.private))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), expiresAt, nil
}

type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IssuePair mints an access and a refresh token. Persisting the refresh
// token reference is the caller's job.
func (m *JWTManager) IssuePair(subject middleware.TokenSubject) (*TokenPair, error) {
	access, accessExp, err := m.Issue(subject, middleware.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, refreshExp, err := m.Issue(subject, middleware.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify performs only cryptographic and structural checks.
func (m *JWTManager) Verify(
	_ context.Context,
	tokenString string,
	kind middleware.TokenKind,
) (*middleware.TokenClaims, error) {
	keys, ok := m.keys[kind]
	if !ok {
		return nil, fmt.Errorf("verify token: unknown kind %q: %w", kind, core.ErrTokenInvalid)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.ES256(), keys.public),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.issuer),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", classifyParseError(err))
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil ||
		tokenType != string(kind) {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	var role string
	if err := token.Get("role", &role); err != nil || role == "" {
		return nil, fmt.Errorf(
			"verify token: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	audience, _ := token.Audience()
	if !m.audienceAccepted(audience, role) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenAudience)
	}

	var email string
	//nolint:errcheck // email is informational
	_ = token.Get("email", &email)

	jti, _ := token.JwtID()
	issuedAt, _ := token.IssuedAt()
	expiresAt, _ := token.Expiration()

	return &middleware.TokenClaims{
		UserID:    subject,
		Email:     email,
		Role:      role,
		Kind:      kind,
		JTI:       jti,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// audienceAccepted requires every configured audience to be present and the
// role claim to be one of them.
func (m *JWTManager) audienceAccepted(audience []string, role string) bool {
	for _, want := range m.audience {
		if !slices.Contains(audience, want) {
			return false
		}
	}
	return slices.Contains(audience, role)
}

func classifyParseError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, `"exp" not satisfied`):
		return core.ErrTokenExpired
	case strings.Contains(msg, `"iss" not satisfied`):
		return core.ErrTokenIssuer
	case strings.Contains(msg, `"aud" not satisfied`):
		return core.ErrTokenAudience
	default:
		return core.ErrTokenInvalid
	}
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.publicJWKS); err != nil {
			http.Error(
				w,
				"Internal Server Error",
				http.StatusInternalServerError,
			)
			return
		}
	}
}

func (m *JWTManager) GetKeyID() string {
	var kid string
	//nolint:errcheck // key ID always set in prepareKey
	_ = m.keys[middleware.AccessToken].private.Get(jwk.KeyIDKey, &kid)
	return kid
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.lifetimes[middleware.AccessToken]
}

func (m *JWTManager) RefreshTokenTTL() time.Duration {
	return m.lifetimes[middleware.RefreshToken]
}

var _ middleware.TokenVerifier = (*JWTManager)(nil)
