package envelope

import (
	"encoding/binary"
)

// chunkNonce derives the per-chunk AES-GCM nonce from an archive's
// base_nonce: the last 4 bytes are overwritten (not XORed) with
// chunkIndex in big-endian. Because chunkIndex occupies those
// bytes directly, distinct indices can never collide as long as
// base_nonce itself is fresh per archive.
func chunkNonce(baseNonce []byte, chunkIndex uint32) []byte {
	n := make([]byte, len(baseNonce))
	copy(n, baseNonce)
	binary.BigEndian.PutUint32(n[len(n)-4:], chunkIndex)
	return n
}

// chunkAAD binds one chunk's ciphertext to its archive and position, so a
// chunk from one export can't be spliced into another or reordered within
// the same one.
func chunkAAD(exportID []byte, chunkIndex uint32) []byte {
	aad := make([]byte, len(exportID)+4)
	n := copy(aad, exportID)
	binary.BigEndian.PutUint32(aad[n:], chunkIndex)
	return aad
}

// EncryptChunk seals one payload chunk under dek.
func EncryptChunk(dek, baseNonce, exportID []byte, chunkIndex uint32, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(dek)
	if err != nil {
		return nil, err
	}
	nonce := chunkNonce(baseNonce, chunkIndex)
	return gcm.Seal(nil, nonce, plaintext, chunkAAD(exportID, chunkIndex)), nil
}

// DecryptChunk reverses EncryptChunk. Failure returns the opaque
// ErrInvalidCredential, same as an unwrap failure, since a caller cannot
// distinguish "wrong DEK" from "corrupted chunk" without an oracle.
func DecryptChunk(dek, baseNonce, exportID []byte, chunkIndex uint32, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(dek)
	if err != nil {
		return nil, err
	}
	nonce := chunkNonce(baseNonce, chunkIndex)
	plain, err := gcm.Open(nil, nonce, ciphertext, chunkAAD(exportID, chunkIndex))
	if err != nil {
		return nil, ErrInvalidCredential
	}
	return plain, nil
}
