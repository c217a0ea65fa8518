// Package envelope implements the LUKS-style envelope encryption used to
// protect an export archive's payload: a random Data Encryption Key
// (DEK) encrypts the payload once, and one or more Key Encryption Keys
// (KEKs) — one per credential a caller can unlock with — each wrap a copy
// of the same DEK into an independent slot.
package envelope

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// SlotType names the KDF family a KeySlot's KEK was derived with.
type SlotType string

const (
	SlotPassword SlotType = "password"
	SlotRecovery SlotType = "recovery"
)

// Argon2Params are the Argon2id cost parameters for a password slot,
// recorded alongside the slot so a future unlock can reproduce the KEK
// even if the package defaults change later.
type Argon2Params struct {
	MemoryKiB   uint32 `json:"memory_kib"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

// DefaultArgon2Params: 64 MiB memory, 3 iterations,
// 4-way parallelism, 32-byte output.
var DefaultArgon2Params = Argon2Params{
	MemoryKiB:   64 * 1024,
	Iterations:  3,
	Parallelism: 4,
	KeyLen:      32,
}

// RecoveryInfo is the fixed HKDF info string for recovery slots.
const RecoveryInfo = "cass-recovery/v1"

// KeySlot is one independently wrapped copy of the DEK. Slot ids are never
// reused or renumbered across Add/Revoke so that AAD-bound authentication
// can't be fooled by moving a wrapped DEK between slot positions.
type KeySlot struct {
	ID            int          `json:"id"`
	Type          SlotType     `json:"type"`
	KDF           string       `json:"kdf"`
	KDFParams     *Argon2Params `json:"kdf_params,omitempty"`
	Salt          []byte       `json:"salt"`
	WrappingNonce []byte       `json:"wrapping_nonce"`
	WrappedDEK    []byte       `json:"wrapped_dek"`
}

// EncryptionConfig is the full on-disk key-management record for one
// archive, serialized as `config.json`.
type EncryptionConfig struct {
	Version     int       `json:"version"`
	ExportID    []byte    `json:"export_id"`
	BaseNonce   []byte    `json:"base_nonce"`
	Compression string    `json:"compression"`
	Payload     Payload   `json:"payload"`
	KeySlots    []KeySlot `json:"key_slots"`
}

// Payload describes the chunked, compressed ciphertext body.
type Payload struct {
	ChunkSize  int      `json:"chunk_size"`
	ChunkCount int      `json:"chunk_count"`
	Files      []string `json:"files"`
}

// dekSize is the AES-256 key length in bytes.
const dekSize = 32

// nonceSize is the AES-GCM standard nonce length; base_nonce and each
// slot's wrapping nonce are both this size.
const nonceSize = 12

// ErrInvalidCredential is the single opaque error returned for every
// decryption failure — wrong password, wrong recovery secret, or corrupted
// archive all look identical to the caller so none can be used as an
// oracle.
var ErrInvalidCredential = errors.New("invalid password or corrupted archive")

// ErrLastSlot is returned by RevokeKey when only one slot remains.
var ErrLastSlot = errors.New("envelope: cannot revoke the last remaining key slot")

// ErrRevokeCurrentSlot is returned by RevokeKey when asked to revoke the
// slot that authenticated the current session.
var ErrRevokeCurrentSlot = errors.New("envelope: cannot revoke the slot used to authenticate")

// GenerateDEK returns a fresh random 256-bit Data Encryption Key.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, dekSize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("envelope: generate dek: %w", err)
	}
	return dek, nil
}

// GenerateBaseNonce returns a fresh random 12-byte base nonce. Rotation
// always calls this again: reusing a base_nonce with a new DEK would risk
// nonce collisions across archive generations.
func GenerateBaseNonce() ([]byte, error) {
	n := make([]byte, nonceSize)
	if _, err := rand.Read(n); err != nil {
		return nil, fmt.Errorf("envelope: generate base nonce: %w", err)
	}
	return n, nil
}
