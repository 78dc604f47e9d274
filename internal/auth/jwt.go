package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"epistolary-lite/internal/model"
)

var ErrMalformedToken = errors.New("malformed access token")

// Claims is the payload of an access token: the username plus the registered claims,
// of which exp is the one the client relies on.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret: secret,
		Expiry: time.Hour,
		Issuer: "epistolary",
	}
}

func CreateToken(username string, cfg TokenConfig) (string, error) {
	return CreateTokenAt(username, cfg, time.Now())
}

func CreateTokenAt(username string, cfg TokenConfig, now time.Time) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("missing secret")
	}
	if username == "" {
		return "", errors.New("missing username")
	}
	if cfg.Expiry <= 0 {
		return "", errors.New("invalid expiry")
	}

	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
			ID:        uuid.NewString(),
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

func VerifyToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("missing secret")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Username == "" {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

// DecodeClaims reads the username and expiry out of an access token without verifying
// its signature. The client never holds the signing secret; the server remains the
// authority on whether the token is accepted.
func DecodeClaims(tokenString string) (model.AuthClaims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return model.AuthClaims{}, errors.Join(ErrMalformedToken, err)
	}
	if claims.Username == "" {
		return model.AuthClaims{}, ErrMalformedToken
	}

	out := model.AuthClaims{Username: claims.Username}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	return out, nil
}
