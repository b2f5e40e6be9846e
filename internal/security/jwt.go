package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cwrk-planet/session-service/internal/clock"
	"github.com/cwrk-planet/session-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

// AccessClaims is the payload issued by the auth service.
type AccessClaims struct {
	jwt.StandardClaims
	Role string `json:"role,omitempty"`
}

// JWTValidator checks access tokens signed with RS256 (public key) or HS256
// (shared secret). Only validation lives here; issuance is the auth service's.
type JWTValidator struct {
	alg       string
	public    *rsa.PublicKey
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
	clock     clock.Clock
}

type ValidatorOption func(*JWTValidator)

func WithClock(c clock.Clock) ValidatorOption {
	return func(v *JWTValidator) { v.clock = c }
}

func NewRS256Validator(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration, opts ...ValidatorOption) *JWTValidator {
	return newValidator(jwt.SigningMethodRS256.Alg(), public, nil, issuer, audience, clockSkew, opts)
}

func NewHS256Validator(secret []byte, issuer, audience string, clockSkew time.Duration, opts ...ValidatorOption) *JWTValidator {
	return newValidator(jwt.SigningMethodHS256.Alg(), nil, secret, issuer, audience, clockSkew, opts)
}

func newValidator(alg string, public *rsa.PublicKey, secret []byte, issuer, audience string, skew time.Duration, opts []ValidatorOption) *JWTValidator {
	v := &JWTValidator{
		alg:       alg,
		public:    public,
		secret:    secret,
		issuer:    issuer,
		audience:  audience,
		clockSkew: skew,
		clock:     clock.Real(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate turns a raw bearer token into a Principal. Expired tokens yield
// ErrTokenExpired, everything else that is wrong yields ErrInvalidToken or a
// more specific sentinel.
func (v *JWTValidator) Validate(tokenStr string) (domain.Principal, error) {
	if tokenStr == "" {
		return domain.Principal{}, ErrMissingToken
	}

	claims := &AccessClaims{}
	// time claims are checked below with clock skew
	parser := jwt.Parser{ValidMethods: []string{v.alg}, SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenStr, claims, v.keyFunc)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Principal{}, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return domain.Principal{}, ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return domain.Principal{}, ErrInvalidAudience
	}

	now := v.clock.Now()
	if claims.ExpiresAt == 0 {
		return domain.Principal{}, ErrInvalidToken
	}
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	if now.After(exp) {
		return domain.Principal{}, ErrTokenExpired
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return domain.Principal{}, ErrTokenExpired
	}

	id, err := SubjectAsUserID(claims)
	if err != nil {
		return domain.Principal{}, err
	}

	return domain.Principal{
		ParticipantID: id,
		Role:          domain.Role(claims.Role),
		Claims: domain.Claims{
			Subject:   claims.Subject,
			Issuer:    claims.Issuer,
			ExpiresAt: time.Unix(claims.ExpiresAt, 0),
		},
	}, nil
}

func (v *JWTValidator) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != v.alg {
		return nil, ErrInvalidToken
	}
	switch t.Method.(type) {
	case *jwt.SigningMethodRSA:
		if v.public == nil {
			return nil, ErrInvalidToken
		}
		return v.public, nil
	case *jwt.SigningMethodHMAC:
		if len(v.secret) == 0 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	default:
		return nil, ErrInvalidToken
	}
}

// SubjectAsUserID парсит sub в id участника.
func SubjectAsUserID(claims *AccessClaims) (int64, error) {
	if claims == nil || claims.Subject == "" {
		return 0, ErrInvalidSubject
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSubject
	}
	return id, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}

// IsExpired is a convenience for callers that only need the distinction.
func IsExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}
