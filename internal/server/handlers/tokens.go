package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const (
	tokenIssuer   = "tripsync"
	tokenAudience = "tripsync-api"
	// clockLeeway допустимое расхождение часов клиента и сервера
	clockLeeway = 5 * time.Second
	// refreshTokenBytes длина случайной части refresh token
	refreshTokenBytes = 32
)

// ErrInvalidAccessToken токен не прошел проверку
var ErrInvalidAccessToken = errors.New("invalid access token")

// AccessClaims содержимое access token. Subject совпадает с UserID.
type AccessClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTConfig секрет подписи и время жизни токенов
type JWTConfig struct {
	Secret          []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// GenerateAccessToken подписывает access token (HS256). Возвращает токен и
// время его жизни в секундах для TokenResponse.ExpiresIn.
func GenerateAccessToken(cfg JWTConfig, userID, username string) (string, int64, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    tokenIssuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, int64(cfg.AccessTokenTTL / time.Second), nil
}

// ValidateAccessToken проверяет подпись, издателя, аудиторию и срок действия
func ValidateAccessToken(cfg JWTConfig, raw string) (*AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)

	var claims AccessClaims
	token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, ErrInvalidAccessToken
	}
	return &claims, nil
}

// GenerateRefreshToken создает случайный refresh token. Клиент получает сам
// токен, сервер хранит только HashRefreshToken от него.
func GenerateRefreshToken(cfg JWTConfig) (string, time.Time, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), time.Now().Add(cfg.RefreshTokenTTL), nil
}

// HashRefreshToken SHA256 от токена в hex
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
