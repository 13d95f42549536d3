package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/animechat/backend/internal/config"
)

const tokenLifetime = 24 * time.Hour

// GenerateJWT issues a signed, time-limited token identifying the user.
func GenerateJWT(userID int64, username string) (string, error) {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(userID, 10),
		"username": username,
		"jti":      uuid.NewString(),
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(tokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// ValidateJWT verifies signature and expiry and returns the user id and
// username encoded in the token. Nothing from an unverified payload is trusted.
func ValidateJWT(tokenString string) (int64, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return 0, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", fmt.Errorf("invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return 0, "", fmt.Errorf("token missing subject: %w", err)
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid subject claim: %w", err)
	}

	username, _ := claims["username"].(string)
	if username == "" {
		return 0, "", fmt.Errorf("token missing username claim")
	}

	return userID, username, nil
}
