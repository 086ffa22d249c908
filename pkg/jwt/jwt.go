package jwt

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Role identifies the privilege level of an admin-console account.
type Role string

const (
	// RoleAdmin is a hospital agent: manages one hospital's dashboard and
	// answers hand-off chats for that hospital.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin manages all tenants and receives contact-form
	// notifications.
	RoleSuperAdmin Role = "superadmin"
)

// JWTClaims represents the claims in a JWT token
type JWTClaims struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	HospitalID *uint  `json:"hospital_id,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry the given role. Super-admins
// satisfy every role check.
func (c *JWTClaims) HasRole(role Role) bool {
	if c.Role == RoleSuperAdmin {
		return true
	}
	return c.Role == role
}

// GenerateToken generates a new JWT token for an admin-console account
func GenerateToken(userID uint, email string, role Role, hospitalID *uint) (string, error) {
	return generateToken(getSecretKey(), 24*time.Hour, userID, email, role, hospitalID)
}

func generateToken(secretKey string, expiry time.Duration, userID uint, email string, role Role, hospitalID *uint) (string, error) {
	expirationTime := time.Now().Add(expiry)

	claims := &JWTClaims{
		UserID:     userID,
		Email:      email,
		Role:       role,
		HospitalID: hospitalID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	return validateToken(getSecretKey(), tokenString)
}

func validateToken(secretKey, tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&JWTClaims{},
		func(token *jwt.Token) (interface{}, error) {
			// Validate signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(secretKey), nil
		},
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// getSecretKey gets the JWT secret key from environment variables
func getSecretKey() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// Fallback to a default secret for development (not recommended for production)
		secret = "devJwtSecretDoNotUseInProduction"
	}
	return secret
}
