package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(15*time.Minute, "test-issuer", "test-audience", testJWTSecret)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		issuer      string
		audience    string
		secretKey   string
		expectError bool
	}{
		{
			name:      "valid symmetric key configuration",
			issuer:    "test-issuer",
			audience:  "test-audience",
			secretKey: testJWTSecret,
		},
		{
			name:        "missing secret key",
			issuer:      "test-issuer",
			audience:    "test-audience",
			secretKey:   "",
			expectError: true,
		},
		{
			name:      "empty issuer and audience",
			secretKey: testJWTSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(15*time.Minute, tt.issuer, tt.audience, tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, service)
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	for _, role := range []Role{RoleAgent, RoleAdmin, RoleUser} {
		t.Run(string(role), func(t *testing.T) {
			token, err := service.GenerateAccessToken(42, role)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			claims, err := service.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, uint(42), claims.UserID)
			assert.Equal(t, role, claims.Role)
			assert.Equal(t, role == RoleAdmin, claims.IsAdmin())
			assert.NotEmpty(t, claims.TokenID)
			assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
		})
	}
}

func TestGenerateAccessTokenUnknownRole(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	_, err = service.GenerateAccessToken(1, Role("ROOT"))
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"role":    string(RoleAgent),
		"iat":     past.Add(-time.Minute).Unix(),
		"exp":     past.Unix(),
		"iss":     "test-issuer",
		"aud":     "test-audience",
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, claims)
}

func TestValidateTokenRejectsForeignClaims(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"user_id": 7,
			"role":    string(RoleAdmin),
			"iat":     time.Now().Unix(),
			"exp":     time.Now().Add(time.Hour).Unix(),
			"iss":     "test-issuer",
			"aud":     "test-audience",
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"missing user id", sign(func() jwt.MapClaims { c := base(); delete(c, "user_id"); return c }(), jwt.SigningMethodHS256, []byte(testJWTSecret))},
		{"unknown role", sign(func() jwt.MapClaims { c := base(); c["role"] = "ROOT"; return c }(), jwt.SigningMethodHS256, []byte(testJWTSecret))},
		{"wrong issuer", sign(func() jwt.MapClaims { c := base(); c["iss"] = "other"; return c }(), jwt.SigningMethodHS256, []byte(testJWTSecret))},
		{"wrong audience", sign(func() jwt.MapClaims { c := base(); c["aud"] = "other"; return c }(), jwt.SigningMethodHS256, []byte(testJWTSecret))},
		{"wrong key", sign(base(), jwt.SigningMethodHS256, []byte("another-secret-key-for-signing-00"))},
		{"hs512 not accepted", sign(base(), jwt.SigningMethodHS512, []byte(testJWTSecret))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenSecurity(t *testing.T) {
	service1, err := NewTokenService(15*time.Minute, "issuer1", "audience1", "test-secret-key-1-for-jwt-signing-32-chars")
	require.NoError(t, err)

	service2, err := NewTokenService(15*time.Minute, "issuer2", "audience2", "test-secret-key-2-for-jwt-signing-32-chars")
	require.NoError(t, err)

	token1, err := service1.GenerateAccessToken(123, RoleAgent)
	require.NoError(t, err)

	token2, err := service2.GenerateAccessToken(123, RoleAgent)
	require.NoError(t, err)

	assert.NotEqual(t, token1, token2)

	claims, err := service1.ValidateToken(token2)
	assert.Error(t, err)
	assert.Nil(t, claims)

	claims, err = service2.ValidateToken(token1)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	const numGoroutines = 10
	tokens := make(chan string, numGoroutines)
	errors := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(userID uint) {
			token, err := service.GenerateAccessToken(userID, RoleAgent)
			if err != nil {
				errors <- err
				return
			}
			tokens <- token
		}(uint(i + 1))
	}

	generatedTokens := make(map[string]bool)
	for i := 0; i < numGoroutines; i++ {
		select {
		case token := <-tokens:
			assert.NotEmpty(t, token)
			assert.False(t, generatedTokens[token], "Duplicate token generated")
			generatedTokens[token] = true
		case err := <-errors:
			t.Errorf("Error generating token: %v", err)
		}
	}

	assert.Equal(t, numGoroutines, len(generatedTokens))
}

func TestTokenValidationEdgeCases(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "single character", token: "a"},
		{name: "non-JWT string", token: "this is not a jwt token"},
		{name: "JWT with wrong number of parts", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJjdXN0b21lcl9pZCI6MTIzfQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func BenchmarkValidateToken(b *testing.B) {
	service, err := createTestTokenService()
	require.NoError(b, err)

	token, err := service.GenerateAccessToken(123, RoleAgent)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := service.ValidateToken(token)
		require.NoError(b, err)
	}
}
