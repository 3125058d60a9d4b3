package registration

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultHashRounds matches passlib's pbkdf2_sha256 default, so hashes
	// written by either side verify on the other.
	DefaultHashRounds = 29000

	hashIdent   = "pbkdf2-sha256"
	saltBytes   = 16
	digestBytes = 32
)

// passlib's "adapted base64": standard alphabet, '.' instead of '+', no padding.
var ab64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789./").WithPadding(base64.NoPadding)

// HashPassword returns password as a salted PBKDF2-SHA256 hash in the
// "$pbkdf2-sha256$<rounds>$<salt>$<digest>" form. rounds below 1 fall back
// to DefaultHashRounds. Passwords of any length are accepted.
func HashPassword(password string, rounds int) (string, error) {
	if rounds < 1 {
		rounds = DefaultHashRounds
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := pbkdf2.Key([]byte(password), salt, rounds, digestBytes, sha256.New)
	return fmt.Sprintf("$%s$%d$%s$%s", hashIdent, rounds, ab64.EncodeToString(salt), ab64.EncodeToString(digest)), nil
}

// VerifyPassword reports whether password matches a hash produced by
// HashPassword. Malformed hashes never match.
func VerifyPassword(hash, password string) bool {
	rounds, salt, digest, err := parseHash(hash)
	if err != nil {
		return false
	}
	candidate := pbkdf2.Key([]byte(password), salt, rounds, len(digest), sha256.New)
	return subtle.ConstantTimeCompare(candidate, digest) == 1
}

func parseHash(hash string) (rounds int, salt, digest []byte, err error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != hashIdent {
		return 0, nil, nil, fmt.Errorf("unrecognized password hash format")
	}

	rounds, err = strconv.Atoi(parts[2])
	if err != nil || rounds < 1 {
		return 0, nil, nil, fmt.Errorf("invalid rounds %q", parts[2])
	}
	if salt, err = ab64.DecodeString(parts[3]); err != nil {
		return 0, nil, nil, fmt.Errorf("invalid salt: %w", err)
	}
	if digest, err = ab64.DecodeString(parts[4]); err != nil || len(digest) == 0 {
		return 0, nil, nil, fmt.Errorf("invalid digest")
	}
	return rounds, salt, digest, nil
}
