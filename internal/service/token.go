package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL bounds the transport credential itself. Actual session liveness is
// decided by the registry on every request; the JWT only carries who is
// calling from which device.
const tokenTTL = 24 * time.Hour

// TokenService issues the signed bearer tokens that carry identity and device
// token between client and server.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Issue signs an HS256 token binding the identity to its device token.
func (s *TokenService) Issue(identity, deviceID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": identity,
		"did": deviceID,
		"exp": time.Now().Add(tokenTTL).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
