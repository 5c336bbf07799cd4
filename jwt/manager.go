package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed tokens, wrong signatures, wrong
	// algorithms, and claim validation failures other than expiry.
	ErrTokenInvalid = errors.New("token invalid")
)

// Kind names one of the three independent signing contexts.
type Kind string

const (
	// KindAccess is an exported constant or variable used by the engine.
	KindAccess Kind = "access"
	// KindRefresh is an exported constant or variable used by the engine.
	KindRefresh Kind = "refresh"
	// KindTemp is an exported constant or variable used by the engine.
	KindTemp Kind = "temp"
)

// Config defines a public type used by the token manager.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise. The three secrets must be
// pairwise distinct so a token of one kind never validates as another.
type Config struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
	TempSecret    []byte
	TempTTL       time.Duration
	Issuer        string
	Leeway        time.Duration
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UID   string `json:"uid"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It deliberately carries
// nothing but the subject id; profile data is re-read at exchange time.
type RefreshClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// TempClaims is the payload of a short-lived temp token minted after a
// password-reset code verification. Purpose pins the token to that single flow.
type TempClaims struct {
	UID     string `json:"uid"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager signs and parses HS256 tokens across the three contexts.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.TempTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 || len(cfg.TempSecret) == 0 {
		return nil, errors.New("hs256 requires all three secrets")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) ||
		string(cfg.AccessSecret) == string(cfg.TempSecret) ||
		string(cfg.RefreshSecret) == string(cfg.TempSecret) {
		return nil, errors.New("secrets must be pairwise distinct")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// SignAccess mints an access token carrying the user's id, role, and profile
// summary claims.
func (j *Manager) SignAccess(uid, role, name, email string) (string, error) {
	claims := AccessClaims{
		UID:              uid,
		Role:             role,
		Name:             name,
		Email:            email,
		RegisteredClaims: j.registered(uid, j.config.AccessTTL),
	}
	return j.sign(claims, j.config.AccessSecret)
}

// SignRefresh mints a refresh token for the user.
func (j *Manager) SignRefresh(uid string) (string, error) {
	claims := RefreshClaims{
		UID:              uid,
		RegisteredClaims: j.registered(uid, j.config.RefreshTTL),
	}
	return j.sign(claims, j.config.RefreshSecret)
}

// SignTemp mints a temp token bound to the given purpose.
func (j *Manager) SignTemp(uid, purpose string) (string, error) {
	claims := TempClaims{
		UID:              uid,
		Purpose:          purpose,
		RegisteredClaims: j.registered(uid, j.config.TempTTL),
	}
	return j.sign(claims, j.config.TempSecret)
}

// ParseAccess validates an access token and returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, j.config.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh validates a refresh token and returns its claims.
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, j.config.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseTemp validates a temp token and checks its purpose claim.
func (j *Manager) ParseTemp(tokenStr, purpose string) (*TempClaims, error) {
	claims := &TempClaims{}
	if err := j.parse(tokenStr, claims, j.config.TempSecret); err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", ErrTokenInvalid)
	}
	return claims, nil
}

func (j *Manager) registered(uid string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   uid,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    j.config.Issuer,
	}
}

func (j *Manager) sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
