package envelope

import "github.com/google/uuid"

// RotatedCredentials describes the fresh credentials Rotate should install
// in place of whatever slots cfg previously had.
type RotatedCredentials struct {
	Password       string
	KeepRecovery   bool
	RecoverySecret []byte
}

// Rotate unlocks cfg with the current credential, generates a brand new
// DEK, export id, and base nonce, and constructs a fresh slot list from
// next. The caller is responsible for re-encrypting the payload under the
// returned DEK/base nonce and discarding the old ones.
func Rotate(cfg EncryptionConfig, current Credential, next RotatedCredentials) (EncryptionConfig, []byte, error) {
	if _, _, err := Unlock(cfg, current); err != nil {
		return EncryptionConfig{}, nil, err
	}

	newDEK, err := GenerateDEK()
	if err != nil {
		return EncryptionConfig{}, nil, err
	}
	newBaseNonce, err := GenerateBaseNonce()
	if err != nil {
		return EncryptionConfig{}, nil, err
	}
	newExportID := uuid.New()

	fresh := EncryptionConfig{
		Version:     cfg.Version,
		ExportID:    newExportID[:],
		BaseNonce:   newBaseNonce,
		Compression: cfg.Compression,
		Payload:     cfg.Payload,
	}

	pwSlot, err := NewPasswordSlot(fresh.ExportID, 0, next.Password, newDEK)
	if err != nil {
		return EncryptionConfig{}, nil, err
	}
	fresh.KeySlots = append(fresh.KeySlots, pwSlot)

	if next.KeepRecovery {
		recSlot, err := NewRecoverySlot(fresh.ExportID, 1, next.RecoverySecret, newDEK)
		if err != nil {
			return EncryptionConfig{}, nil, err
		}
		fresh.KeySlots = append(fresh.KeySlots, recSlot)
	}

	return fresh, newDEK, nil
}
