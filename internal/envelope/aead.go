package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// newGCM builds an AES-256-GCM AEAD over key, which must be exactly 32
// bytes (a DEK or a derived KEK).
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: new aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: new gcm: %w", err)
	}
	return gcm, nil
}

// wrapDEK encrypts dek under kek with a fresh random nonce, returning the
// nonce and the ciphertext‖tag. aad binds the wrap to {export_id, slot_id,
// slot_type} so a wrapped DEK can't be moved to a different slot.
func wrapDEK(kek, dek, aad []byte) (nonce, wrapped []byte, err error) {
	gcm, err := newGCM(kek)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("envelope: generate wrapping nonce: %w", err)
	}
	wrapped = gcm.Seal(nil, nonce, dek, aad)
	return nonce, wrapped, nil
}

// unwrapDEK reverses wrapDEK. Any failure — wrong kek, tampered
// ciphertext, wrong aad — surfaces as the single opaque ErrInvalidCredential;
// cipher.AEAD.Open already performs a constant-time tag comparison
// internally, so no separate timing-safe compare is needed here.
func unwrapDEK(kek, nonce, wrapped, aad []byte) ([]byte, error) {
	gcm, err := newGCM(kek)
	if err != nil {
		return nil, err
	}
	dek, err := gcm.Open(nil, nonce, wrapped, aad)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	return dek, nil
}
