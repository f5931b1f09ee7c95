package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-key-for-testing-purposes"
	testIssuer = "booking-backend-test"
)

func TestNewService(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)

	assert.NotNil(t, service)
	assert.Equal(t, testSecret, service.secret)
	assert.Equal(t, time.Hour, service.tokenExpiry)
	assert.Equal(t, testIssuer, service.issuer)
}

func TestGenerateToken(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)
	userID := uuid.New()
	email := "tourist@example.com"
	roles := []string{"tourist"}

	token, err := service.GenerateToken(userID, email, roles)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, email, claims.Email)
	assert.Equal(t, roles, claims.Roles)
}

func TestValidateToken(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)
	userID := uuid.New()
	email := "guide@example.com"
	roles := []string{"guide", "admin"}

	token, err := service.GenerateToken(userID, email, roles)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, email, claims.Email)
	assert.Equal(t, roles, claims.Roles)

	// Invalid token
	_, err = service.ValidateToken("invalid.token.here")
	assert.Error(t, err)

	// Token signed with a different secret
	wrongService := NewService("wrong-secret", time.Hour, testIssuer)
	_, err = wrongService.ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	service := NewService(testSecret, time.Millisecond, testIssuer)
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "tourist@example.com", []string{"tourist"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = service.ValidateToken(token)
	assert.Error(t, err)
}

func TestExtractClaims(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)
	userID := uuid.New()
	email := "tourist@example.com"
	roles := []string{"tourist"}

	token, err := service.GenerateToken(userID, email, roles)
	require.NoError(t, err)

	claims, err := service.ExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, email, claims.Email)
	assert.Equal(t, roles, claims.Roles)
}

func TestIsTokenExpired(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "tourist@example.com", []string{"tourist"})
	require.NoError(t, err)

	assert.False(t, service.IsTokenExpired(token))

	expiredService := NewService(testSecret, -time.Hour, testIssuer)
	expiredToken, err := expiredService.GenerateToken(userID, "tourist@example.com", []string{"tourist"})
	require.NoError(t, err)

	assert.True(t, service.IsTokenExpired(expiredToken))
	assert.True(t, service.IsTokenExpired("invalid.token.here"))
}

func TestTokenSigningMethod(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "tourist@example.com", []string{"tourist"})
	require.NoError(t, err)

	parsedToken, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)

	_, ok := parsedToken.Method.(*jwt.SigningMethodHMAC)
	assert.True(t, ok, "Token should use HMAC signing method")
}

func TestMultipleRoles(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)
	userID := uuid.New()
	roles := []string{"tourist", "guide", "admin"}

	token, err := service.GenerateToken(userID, "multi@example.com", roles)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, roles, claims.Roles)
	assert.Len(t, claims.Roles, 3)
}

func TestEmptyRoles(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "tourist@example.com", []string{})
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Empty(t, claims.Roles)
}

func TestTokenIssuerAndSubject(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "tourist@example.com", []string{"tourist"})
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service := NewService(testSecret, time.Hour, testIssuer)

	done := make(chan bool)
	errors := make(chan error, 100)

	for i := 0; i < 100; i++ {
		go func() {
			userID := uuid.New()

			token, err := service.GenerateToken(userID, "tourist@example.com", []string{"tourist"})
			if err != nil {
				errors <- err
				done <- true
				return
			}

			_, err = service.ValidateToken(token)
			if err != nil {
				errors <- err
			}
			done <- true
		}()
	}

	for i := 0; i < 100; i++ {
		<-done
	}

	close(errors)
	assert.Empty(t, errors)
}
