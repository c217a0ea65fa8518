package envelope

import (
	"crypto/rand"
	"fmt"
)

// Credential is a caller-supplied secret a slot can be unlocked with.
// Exactly one of Password or RecoverySecret is set.
type Credential struct {
	Password       string
	RecoverySecret []byte
}

// SlotSummary is everything about a KeySlot that's safe to show before any
// credential is supplied: id, type, and KDF. WrappedDEK, Salt, and
// WrappingNonce never leave the KeySlot they came from.
type SlotSummary struct {
	ID        int           `json:"id"`
	Type      SlotType      `json:"type"`
	KDF       string        `json:"kdf"`
	KDFParams *Argon2Params `json:"kdf_params,omitempty"`
}

// ListSlots summarizes cfg's key slots without requiring a credential, so a
// caller can report "2 slots: password, recovery" before prompting for
// anything.
func ListSlots(cfg EncryptionConfig) []SlotSummary {
	out := make([]SlotSummary, len(cfg.KeySlots))
	for i, s := range cfg.KeySlots {
		summary := SlotSummary{ID: s.ID, Type: s.Type, KDF: s.KDF}
		if s.Type == SlotPassword && s.KDFParams != nil {
			params := *s.KDFParams
			summary.KDFParams = &params
		}
		out[i] = summary
	}
	return out
}

func slotAAD(exportID []byte, slot KeySlot) []byte {
	aad := make([]byte, 0, len(exportID)+1+len(slot.Type)+4)
	aad = append(aad, exportID...)
	aad = append(aad, byte(slot.ID>>24), byte(slot.ID>>16), byte(slot.ID>>8), byte(slot.ID))
	aad = append(aad, []byte(slot.Type)...)
	return aad
}

// kekForSlot derives the KEK a credential produces against one slot's
// stored KDF parameters, without attempting to open anything.
func kekForSlot(cred Credential, slot KeySlot) ([]byte, error) {
	switch slot.Type {
	case SlotPassword:
		params := DefaultArgon2Params
		if slot.KDFParams != nil {
			params = *slot.KDFParams
		}
		return deriveKEKPassword(cred.Password, slot.Salt, params), nil
	case SlotRecovery:
		return deriveKEKRecovery(cred.RecoverySecret, slot.Salt)
	default:
		return nil, fmt.Errorf("envelope: unknown slot type %q", slot.Type)
	}
}

// Unlock tries cred against every slot in cfg until one authenticates,
// returning the recovered DEK and the id of the slot that worked. Every
// failing slot and a wholly-wrong credential are indistinguishable:
// Unlock never returns which slots were tried or why they failed.
func Unlock(cfg EncryptionConfig, cred Credential) (dek []byte, slotID int, err error) {
	for _, slot := range cfg.KeySlots {
		kek, derr := kekForSlot(cred, slot)
		if derr != nil {
			continue
		}
		d, uerr := unwrapDEK(kek, slot.WrappingNonce, slot.WrappedDEK, slotAAD(cfg.ExportID, slot))
		if uerr == nil {
			return d, slot.ID, nil
		}
	}
	return nil, 0, ErrInvalidCredential
}

func nextSlotID(slots []KeySlot) int {
	max := -1
	for _, s := range slots {
		if s.ID > max {
			max = s.ID
		}
	}
	return max + 1
}

// NewPasswordSlot wraps dek under a freshly salted Argon2id KEK derived
// from password, as a new slot with the given id.
func NewPasswordSlot(exportID []byte, slotID int, password string, dek []byte) (KeySlot, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return KeySlot{}, err
	}
	params := DefaultArgon2Params
	slot := KeySlot{ID: slotID, Type: SlotPassword, KDF: "argon2id", KDFParams: &params, Salt: salt}
	kek := deriveKEKPassword(password, salt, DefaultArgon2Params)
	nonce, wrapped, err := wrapDEK(kek, dek, slotAAD(exportID, slot))
	if err != nil {
		return KeySlot{}, err
	}
	slot.WrappingNonce, slot.WrappedDEK = nonce, wrapped
	return slot, nil
}

// NewRecoverySlot wraps dek under an HKDF-SHA256 KEK derived from secret,
// as a new slot with the given id.
func NewRecoverySlot(exportID []byte, slotID int, secret, dek []byte) (KeySlot, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return KeySlot{}, err
	}
	slot := KeySlot{ID: slotID, Type: SlotRecovery, KDF: "hkdf-sha256", Salt: salt}
	kek, err := deriveKEKRecovery(secret, salt)
	if err != nil {
		return KeySlot{}, err
	}
	nonce, wrapped, err := wrapDEK(kek, dek, slotAAD(exportID, slot))
	if err != nil {
		return KeySlot{}, err
	}
	slot.WrappingNonce, slot.WrappedDEK = nonce, wrapped
	return slot, nil
}

// AddKey unlocks cfg with an existing credential to recover the DEK, then
// wraps that same DEK into a brand new slot authenticated by newCred. The
// payload itself is never touched.
func AddKey(cfg EncryptionConfig, existing, newCred Credential, newIsRecovery bool) (EncryptionConfig, error) {
	dek, _, err := Unlock(cfg, existing)
	if err != nil {
		return EncryptionConfig{}, err
	}
	id := nextSlotID(cfg.KeySlots)
	var slot KeySlot
	if newIsRecovery {
		slot, err = NewRecoverySlot(cfg.ExportID, id, newCred.RecoverySecret, dek)
	} else {
		slot, err = NewPasswordSlot(cfg.ExportID, id, newCred.Password, dek)
	}
	if err != nil {
		return EncryptionConfig{}, err
	}
	cfg.KeySlots = append(append([]KeySlot{}, cfg.KeySlots...), slot)
	return cfg, nil
}

// RevokeKey drops the slot matching revokeSlotID from cfg. It refuses when
// only one slot remains, and refuses to revoke the slot that authenticated
// the current session.
func RevokeKey(cfg EncryptionConfig, authenticatedSlotID, revokeSlotID int) (EncryptionConfig, error) {
	if len(cfg.KeySlots) <= 1 {
		return EncryptionConfig{}, ErrLastSlot
	}
	if revokeSlotID == authenticatedSlotID {
		return EncryptionConfig{}, ErrRevokeCurrentSlot
	}
	kept := make([]KeySlot, 0, len(cfg.KeySlots)-1)
	found := false
	for _, s := range cfg.KeySlots {
		if s.ID == revokeSlotID {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return EncryptionConfig{}, fmt.Errorf("envelope: no key slot with id %d", revokeSlotID)
	}
	cfg.KeySlots = kept
	return cfg, nil
}
