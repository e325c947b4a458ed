package testutil

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// SignedToken issues an HS256 token carrying the userId claim, valid for
// ttl. A negative ttl yields an already expired token.
func SignedToken(t *testing.T, key []byte, userId int, ttl time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userId,
		"exp":    time.Now().Add(ttl).Unix(),
	})

	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
