// Package interaction binds a completed user interaction to the grant request that started it.
package interaction

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/cyphera/grantpay/internal/apperrors"
)

// ComputeHash returns base64(sha256(clientNonce \n interactNonce \n interactRef \n authServerURL/)).
// authServerURL is hashed exactly as given; callers record it in one canonical form.
func ComputeHash(clientNonce, interactNonce, interactRef, authServerURL string) string {
	input := clientNonce + "\n" + interactNonce + "\n" + interactRef + "\n" + authServerURL + "/"
	sum := sha256.Sum256([]byte(input))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Verify reports whether received matches the hash computed from the other inputs. The
// comparison runs in constant time.
func Verify(received, clientNonce, interactNonce, interactRef, authServerURL string) bool {
	if received == "" || interactRef == "" {
		return false
	}
	expected := ComputeHash(clientNonce, interactNonce, interactRef, authServerURL)
	return subtle.ConstantTimeCompare([]byte(received), []byte(expected)) == 1
}

// Check is Verify returning an authentication error on mismatch.
func Check(received, clientNonce, interactNonce, interactRef, authServerURL string) error {
	if !Verify(received, clientNonce, interactNonce, interactRef, authServerURL) {
		return apperrors.Authentication("interaction.Check", "interaction hash mismatch")
	}
	return nil
}
