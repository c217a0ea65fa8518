package envelope

import (
	"bytes"
	"testing"
)

func mustDEK(t *testing.T) []byte {
	t.Helper()
	dek, err := GenerateDEK()
	if err != nil {
		t.Fatalf("generate dek: %v", err)
	}
	return dek
}

func TestPasswordAndRecoverySlotsBothUnlockToSameDEK(t *testing.T) {
	exportID := []byte("0123456789abcdef")
	dek := mustDEK(t)

	pwSlot, err := NewPasswordSlot(exportID, 0, "correct horse battery staple", dek)
	if err != nil {
		t.Fatalf("new password slot: %v", err)
	}
	recSlot, err := NewRecoverySlot(exportID, 1, []byte("recovery-secret-material"), dek)
	if err != nil {
		t.Fatalf("new recovery slot: %v", err)
	}
	cfg := EncryptionConfig{ExportID: exportID, KeySlots: []KeySlot{pwSlot, recSlot}}

	gotPW, slotID, err := Unlock(cfg, Credential{Password: "correct horse battery staple"})
	if err != nil {
		t.Fatalf("unlock with password: %v", err)
	}
	if slotID != 0 || !bytes.Equal(gotPW, dek) {
		t.Errorf("password unlock: slot=%d dek match=%v", slotID, bytes.Equal(gotPW, dek))
	}

	gotRec, slotID, err := Unlock(cfg, Credential{RecoverySecret: []byte("recovery-secret-material")})
	if err != nil {
		t.Fatalf("unlock with recovery: %v", err)
	}
	if slotID != 1 || !bytes.Equal(gotRec, dek) {
		t.Errorf("recovery unlock: slot=%d dek match=%v", slotID, bytes.Equal(gotRec, dek))
	}
}

func TestUnlockWithWrongCredentialReturnsOpaqueError(t *testing.T) {
	exportID := []byte("0123456789abcdef")
	dek := mustDEK(t)
	slot, err := NewPasswordSlot(exportID, 0, "right-password", dek)
	if err != nil {
		t.Fatalf("new password slot: %v", err)
	}
	cfg := EncryptionConfig{ExportID: exportID, KeySlots: []KeySlot{slot}}

	_, _, err = Unlock(cfg, Credential{Password: "wrong-password"})
	if err != ErrInvalidCredential {
		t.Fatalf("want ErrInvalidCredential, got %v", err)
	}
}

func TestAddKeyPreservesPayloadAccess(t *testing.T) {
	exportID := []byte("0123456789abcdef")
	dek := mustDEK(t)
	slot, err := NewPasswordSlot(exportID, 0, "first-password", dek)
	if err != nil {
		t.Fatalf("new password slot: %v", err)
	}
	cfg := EncryptionConfig{ExportID: exportID, KeySlots: []KeySlot{slot}}

	updated, err := AddKey(cfg, Credential{Password: "first-password"}, Credential{Password: "second-password"}, false)
	if err != nil {
		t.Fatalf("add key: %v", err)
	}
	if len(updated.KeySlots) != 2 {
		t.Fatalf("want 2 slots after add, got %d", len(updated.KeySlots))
	}

	got, _, err := Unlock(updated, Credential{Password: "second-password"})
	if err != nil {
		t.Fatalf("unlock with new password: %v", err)
	}
	if !bytes.Equal(got, dek) {
		t.Errorf("want new slot to recover the same dek")
	}
}

func TestRevokeKeyRefusesLastSlotAndCurrentSlot(t *testing.T) {
	exportID := []byte("0123456789abcdef")
	dek := mustDEK(t)
	slotA, _ := NewPasswordSlot(exportID, 0, "a", dek)
	slotB, _ := NewPasswordSlot(exportID, 1, "b", dek)
	cfg := EncryptionConfig{ExportID: exportID, KeySlots: []KeySlot{slotA, slotB}}

	if _, err := RevokeKey(cfg, 0, 0); err != ErrRevokeCurrentSlot {
		t.Errorf("want ErrRevokeCurrentSlot, got %v", err)
	}

	updated, err := RevokeKey(cfg, 0, 1)
	if err != nil {
		t.Fatalf("revoke other slot: %v", err)
	}
	if len(updated.KeySlots) != 1 {
		t.Fatalf("want 1 slot remaining, got %d", len(updated.KeySlots))
	}

	if _, err := RevokeKey(updated, 0, 0); err != ErrLastSlot {
		t.Errorf("want ErrLastSlot, got %v", err)
	}
}

func TestRotateChangesExportIDAndBaseNonce(t *testing.T) {
	exportID := []byte("0123456789abcdef")
	dek := mustDEK(t)
	slot, _ := NewPasswordSlot(exportID, 0, "old-password", dek)
	baseNonce, err := GenerateBaseNonce()
	if err != nil {
		t.Fatalf("generate base nonce: %v", err)
	}
	cfg := EncryptionConfig{ExportID: exportID, BaseNonce: baseNonce, KeySlots: []KeySlot{slot}}

	fresh, newDEK, err := Rotate(cfg, Credential{Password: "old-password"}, RotatedCredentials{
		Password:       "new-password",
		KeepRecovery:   true,
		RecoverySecret: []byte("new-recovery-secret"),
	})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if bytes.Equal(fresh.ExportID, exportID) {
		t.Errorf("want a new export id after rotation")
	}
	if bytes.Equal(fresh.BaseNonce, baseNonce) {
		t.Errorf("want a new base nonce after rotation")
	}
	if len(fresh.KeySlots) != 2 {
		t.Fatalf("want password+recovery slots, got %d", len(fresh.KeySlots))
	}

	if _, _, err := Unlock(cfg, Credential{Password: "new-password"}); err != ErrInvalidCredential {
		t.Errorf("want old config to reject the new password, got %v", err)
	}
	gotDEK, _, err := Unlock(fresh, Credential{Password: "new-password"})
	if err != nil {
		t.Fatalf("unlock rotated config: %v", err)
	}
	if !bytes.Equal(gotDEK, newDEK) {
		t.Errorf("want unlock to recover the rotated dek")
	}
}

func TestListSlotsReportsMetadataWithoutWrappedDEK(t *testing.T) {
	exportID := []byte("0123456789abcdef")
	dek := mustDEK(t)
	pwSlot, err := NewPasswordSlot(exportID, 0, "a-password", dek)
	if err != nil {
		t.Fatalf("new password slot: %v", err)
	}
	recSlot, err := NewRecoverySlot(exportID, 1, []byte("recovery-secret-material"), dek)
	if err != nil {
		t.Fatalf("new recovery slot: %v", err)
	}
	cfg := EncryptionConfig{ExportID: exportID, KeySlots: []KeySlot{pwSlot, recSlot}}

	slots := ListSlots(cfg)
	if len(slots) != 2 {
		t.Fatalf("want 2 slot summaries, got %d", len(slots))
	}
	if slots[0].ID != 0 || slots[0].Type != SlotPassword || slots[0].KDF != "argon2id" {
		t.Errorf("password slot summary = %+v", slots[0])
	}
	if slots[0].KDFParams == nil || slots[0].KDFParams.MemoryKiB != DefaultArgon2Params.MemoryKiB {
		t.Errorf("want password slot to carry its KDF params, got %+v", slots[0].KDFParams)
	}
	if slots[1].ID != 1 || slots[1].Type != SlotRecovery || slots[1].KDF != "hkdf-sha256" {
		t.Errorf("recovery slot summary = %+v", slots[1])
	}
	if slots[1].KDFParams != nil {
		t.Errorf("want recovery slot to carry no argon2 params, got %+v", slots[1].KDFParams)
	}
}

func TestEncryptDecryptChunkRoundTrips(t *testing.T) {
	exportID := []byte("0123456789abcdef")
	dek := mustDEK(t)
	baseNonce, err := GenerateBaseNonce()
	if err != nil {
		t.Fatalf("generate base nonce: %v", err)
	}
	plaintext := []byte("a chunk of compressed sqlite bytes")

	ct, err := EncryptChunk(dek, baseNonce, exportID, 7, plaintext)
	if err != nil {
		t.Fatalf("encrypt chunk: %v", err)
	}
	got, err := DecryptChunk(dek, baseNonce, exportID, 7, ct)
	if err != nil {
		t.Fatalf("decrypt chunk: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q want %q", got, plaintext)
	}

	if _, err := DecryptChunk(dek, baseNonce, exportID, 8, ct); err != ErrInvalidCredential {
		t.Errorf("want decrypting with the wrong chunk index to fail opaquely, got %v", err)
	}
}

func TestChunkNonceVariesOnlyByIndex(t *testing.T) {
	baseNonce := bytes.Repeat([]byte{0xAB}, 12)
	n0 := chunkNonce(baseNonce, 0)
	n1 := chunkNonce(baseNonce, 1)
	if bytes.Equal(n0, n1) {
		t.Errorf("want distinct nonces for distinct chunk indices")
	}
	if !bytes.Equal(n0[:8], baseNonce[:8]) {
		t.Errorf("want the first 8 bytes of the nonce untouched")
	}
}
