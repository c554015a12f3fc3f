package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"satriarisk/backend/internal/models"
	"satriarisk/backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtKey []byte

// Claims struct to be encoded to JWT
type Claims struct {
	UserID     uuid.UUID `json:"user_id"`
	WorkUnitID uuid.UUID `json:"work_unit_id"`
	Email      string    `json:"email"`
	// Roles is the comma-separated role set, e.g. "risk_owner,risk_committee".
	Roles string `json:"roles"`
	jwt.RegisteredClaims
}

// InitializeJWT loads the JWT secret key from environment variables.
func InitializeJWT() error {
	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY environment variable not set")
	}
	jwtKey = []byte(secret)
	return nil
}

// GenerateToken generates a new JWT token for a given user.
func GenerateToken(user *models.User) (string, error) {
	if len(jwtKey) == 0 {
		return "", fmt.Errorf("JWT secret key not initialized, call InitializeJWT() first")
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	tokenLifespanStr := os.Getenv("JWT_TOKEN_LIFESPAN_HOURS")
	if tokenLifespanHours, err := time.ParseDuration(tokenLifespanStr + "h"); err == nil {
		expirationTime = time.Now().Add(tokenLifespanHours)
	}

	claims := &Claims{
		UserID:     user.ID,
		WorkUnitID: user.WorkUnitID,
		Email:      user.Email,
		Roles:      user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "satriarisk",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtKey)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token string.
// Returns the claims if the token is valid, otherwise returns an error.
func ValidateToken(tokenString string) (*Claims, error) {
	if len(jwtKey) == 0 {
		return nil, fmt.Errorf("JWT secret key not initialized")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("error parsing token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// AuthMiddleware creates a gin middleware for JWT authentication.
// It checks the Authorization header for a Bearer token and, when valid,
// stores the caller identity in the gin context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token: " + err.Error()})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("workUnitID", claims.WorkUnitID)
		c.Set("userEmail", claims.Email)
		c.Set("userRoles", models.ParseRoleList(claims.Roles))

		c.Next()
	}
}

// ActorFromContext builds the workflow actor from the values the auth
// middleware stored in the gin context.
func ActorFromContext(c *gin.Context) (workflow.Actor, bool) {
	userID, userExists := c.Get("userID")
	unitID, unitExists := c.Get("workUnitID")
	roles, rolesExist := c.Get("userRoles")
	if !userExists || !unitExists || !rolesExist {
		return workflow.Actor{}, false
	}
	return workflow.Actor{
		UserID:     userID.(uuid.UUID),
		WorkUnitID: unitID.(uuid.UUID),
		Roles:      roles.(models.RoleList),
	}, true
}
