package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"taskquest/utils"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters.
const (
	memory      = 64 * 1024
	iterations  = 3
	parallelism = 2
	keyLength   = 32
	saltLength  = 16
)

var (
	ErrWeakPassword      = errors.New("password must be at least 6 characters and contain a number and a special character")
	ErrInvalidHashFormat = errors.New("invalid stored password format")
)

// HashPassword returns "salt$hash", both base64 without padding.
func HashPassword(password string) (string, error) {
	if !utils.ValidatePassword(password) {
		return "", ErrWeakPassword
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)

	return base64.RawStdEncoding.EncodeToString(salt) + "$" + base64.RawStdEncoding.EncodeToString(hash), nil
}

func VerifyPassword(storedPassword, providedPassword string) (bool, error) {
	salt, storedHash, ok := strings.Cut(storedPassword, "$")
	if !ok {
		return false, ErrInvalidHashFormat
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHashFormat, err)
	}
	hashBytes, err := base64.RawStdEncoding.DecodeString(storedHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHashFormat, err)
	}

	computed := argon2.IDKey([]byte(providedPassword), saltBytes, iterations, memory, parallelism, uint32(len(hashBytes)))
	return subtle.ConstantTimeCompare(computed, hashBytes) == 1, nil
}

// ComparePasswords treats a malformed hash as a mismatch.
func ComparePasswords(storedHash, plainPassword string) bool {
	match, err := VerifyPassword(storedHash, plainPassword)
	return err == nil && match
}
