package application

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	saltLength   = 64
	saltAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// randomSalt returns n characters drawn uniformly from saltAlphabet.
func randomSalt(n int) (string, error) {
	max := big.NewInt(int64(len(saltAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(saltAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// GenerateConfirmationToken hashes user id, a fresh salt and the unix time
// with SHA-256 and encodes the digest as padded URL-safe base64 (44 chars).
func GenerateConfirmationToken(userID uuid.UUID, now time.Time) (string, error) {
	salt, err := randomSalt(saltLength)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := sha256.Sum256([]byte(userID.String() + salt + strconv.FormatInt(now.Unix(), 10)))
	return base64.URLEncoding.EncodeToString(sum[:]), nil
}

// ConfirmationLink builds the link mailed to the user.
func ConfirmationLink(baseURL string, userID uuid.UUID, token string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/users/" + userID.String() + "/email/confirmation?token=" + token
}
