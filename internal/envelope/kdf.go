package envelope

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// deriveKEKPassword runs Argon2id over password with the slot's stored
// salt and cost parameters.
func deriveKEKPassword(password string, salt []byte, params Argon2Params) []byte {
	return argon2.IDKey([]byte(password), salt, params.Iterations, params.MemoryKiB, params.Parallelism, params.KeyLen)
}

// deriveKEKRecovery runs HKDF-SHA256 over the recovery secret with the
// slot's stored salt, using the fixed info string "cass-recovery/v1".
func deriveKEKRecovery(secret []byte, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(RecoveryInfo))
	kek := make([]byte, dekSize)
	if _, err := io.ReadFull(r, kek); err != nil {
		return nil, fmt.Errorf("envelope: hkdf expand: %w", err)
	}
	return kek, nil
}
