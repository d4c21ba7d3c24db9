package mqtt

import (
	"fmt"
	"os"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
)

// TokenTTL is how long a signed broker password stays valid.
const TokenTTL = 24 * time.Hour

// SignPassword creates a JWT broker password signed with an RSA (RS256) or
// EC (ES256) private key in PEM form.
func SignPassword(keyPEM []byte, audience string, now time.Time) (string, error) {
	var (
		key    any
		method jwt.SigningMethod
	)
	if rsaKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM); err == nil {
		key, method = rsaKey, jwt.SigningMethodRS256
	} else if ecKey, ecErr := jwt.ParseECPrivateKeyFromPEM(keyPEM); ecErr == nil {
		key, method = ecKey, jwt.SigningMethodES256
	} else {
		return "", fmt.Errorf("unsupported private key: %w", err)
	}

	token := jwt.NewWithClaims(method, &jwt.StandardClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(TokenTTL).Unix(),
		Audience:  audience,
	})
	pass, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign broker password: %w", err)
	}
	return pass, nil
}

// PasswordFromKeyFile reads a PEM private key and signs a broker password.
func PasswordFromKeyFile(path, audience string, now time.Time) (string, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read private key: %w", err)
	}
	return SignPassword(keyData, audience, now)
}
