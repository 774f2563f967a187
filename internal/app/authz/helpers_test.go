package authz_test

import (
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func clientToken(t *testing.T, tenantID string) string {
	t.Helper()

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"client_id": "client-1",
		"user_id":   "user-1",
		"tenant_id": tenantID,
	})
	signed, err := token.SignedString([]byte("client-secret"))
	require.NoError(t, err)
	return signed
}
