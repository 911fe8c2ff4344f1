package auth

import (
	"context"
	"fmt"
	"time"

	"election-core/internal/domain"
	"election-core/pkg/errors"
	"election-core/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// Service validates HMAC-signed bearer tokens issued by the identity
// provider. The engine only consumes the voter id and role claims.
type Service struct {
	secret []byte
	logger *logger.Logger
}

// NewService creates a new auth service
func NewService(jwtSecret string, logger *logger.Logger) *Service {
	return &Service{
		secret: []byte(jwtSecret),
		logger: logger,
	}
}

// ValidateToken validates a bearer token with signature verification and
// returns the voter claims.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*domain.AuthClaims, error) {
	if len(s.secret) == 0 {
		s.logger.Error("AUTH_JWT_SECRET not configured")
		return nil, errors.NewAuthenticationError("token validation not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		s.logger.WithError(err).Debug("Failed to parse/validate token")
		return nil, errors.NewAuthenticationError("Invalid token")
	}
	if !token.Valid {
		return nil, errors.NewAuthenticationError("Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.NewAuthenticationError("Invalid token")
	}

	if exp, ok := claims["exp"].(float64); ok {
		if time.Now().Unix() > int64(exp) {
			return nil, errors.NewAuthenticationError("Token has expired")
		}
	}

	authClaims := &domain.AuthClaims{
		VoterID:     getStringValue(claims, "sub"),
		Role:        getStringValue(claims, "role"),
		DisplayName: getStringValue(claims, "name"),
	}
	if authClaims.Role == "" {
		authClaims.Role = domain.RoleVoter
	}

	if authClaims.VoterID == "" {
		return nil, errors.NewAuthenticationError("Invalid token: no voter identifier")
	}

	s.logger.WithField("voter_id", authClaims.VoterID).Debug("Token validated successfully")
	return authClaims, nil
}

// getStringValue safely extracts a string claim
func getStringValue(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}
