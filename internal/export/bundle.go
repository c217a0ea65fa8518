package export

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rawwerks/cass-go/internal/envelope"
)

// siteDir and privateDir are the two top-level directories of a bundle.
// Only siteDir is meant to ever be published; privateDir
// holds recovery material that must never ship alongside it.
const (
	siteDir    = "site"
	privateDir = "private"
	payloadDir = "payload"
)

// BundleOptions configures the encrypt-and-bundle step that follows
// CopyFiltered.
type BundleOptions struct {
	ChunkSize      int
	Password       string
	RecoverySecret []byte
}

// PrivateRecoveryMaterial is written to private/recovery.json when a
// recovery secret is given: the export id, the recovery secret, and the
// integrity manifest fingerprint, kept out of site/ entirely. It holds no
// description of the DEK or of the key slots that wrap it.
type PrivateRecoveryMaterial struct {
	ExportID             []byte `json:"export_id"`
	RecoverySecret       []byte `json:"recovery_secret"`
	IntegrityFingerprint string `json:"integrity_fingerprint"`
}

// Bundle compresses derivedDBPath, encrypts it in fixed-size chunks, and
// writes the full `{site/, private/}` tree under destDir.
func Bundle(ctx context.Context, derivedDBPath, destDir string, opts BundleOptions) error {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	plain, err := os.ReadFile(derivedDBPath)
	if err != nil {
		return fmt.Errorf("export: read derived database: %w", err)
	}
	compressed, err := deflate(plain)
	if err != nil {
		return err
	}

	exportID := uuid.New()
	baseNonce, err := envelope.GenerateBaseNonce()
	if err != nil {
		return err
	}
	dek, err := envelope.GenerateDEK()
	if err != nil {
		return err
	}

	site := filepath.Join(destDir, siteDir)
	private := filepath.Join(destDir, privateDir)
	payload := filepath.Join(site, payloadDir)
	if err := os.MkdirAll(payload, 0o755); err != nil {
		return fmt.Errorf("export: create payload dir: %w", err)
	}
	if err := os.MkdirAll(private, 0o700); err != nil {
		return fmt.Errorf("export: create private dir: %w", err)
	}

	var chunkFiles []string
	chunkCount := 0
	for offset := 0; offset < len(compressed); offset += chunkSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		end := offset + chunkSize
		if end > len(compressed) {
			end = len(compressed)
		}
		chunk := compressed[offset:end]
		ct, err := envelope.EncryptChunk(dek, baseNonce, exportID[:], uint32(chunkCount), chunk)
		if err != nil {
			return fmt.Errorf("export: encrypt chunk %d: %w", chunkCount, err)
		}
		name := fmt.Sprintf("chunk-%05d.bin", chunkCount)
		if err := os.WriteFile(filepath.Join(payload, name), ct, 0o644); err != nil {
			return fmt.Errorf("export: write chunk %d: %w", chunkCount, err)
		}
		chunkFiles = append(chunkFiles, filepath.Join(payloadDir, name))
		chunkCount++
	}

	cfg := envelope.EncryptionConfig{
		Version:     1,
		ExportID:    exportID[:],
		BaseNonce:   baseNonce,
		Compression: "deflate",
		Payload: envelope.Payload{
			ChunkSize:  chunkSize,
			ChunkCount: chunkCount,
			Files:      chunkFiles,
		},
	}
	pwSlot, err := envelope.NewPasswordSlot(exportID[:], 0, opts.Password, dek)
	if err != nil {
		return err
	}
	cfg.KeySlots = append(cfg.KeySlots, pwSlot)
	if len(opts.RecoverySecret) > 0 {
		recSlot, err := envelope.NewRecoverySlot(exportID[:], 1, opts.RecoverySecret, dek)
		if err != nil {
			return err
		}
		cfg.KeySlots = append(cfg.KeySlots, recSlot)
	}

	if err := writeJSON(filepath.Join(site, "config.json"), cfg); err != nil {
		return err
	}
	if err := writeStaticAssets(site); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(site, "site.json"), siteManifest{
		Version:    1,
		ExportID:   exportID.String(),
		ChunkCount: chunkCount,
	}); err != nil {
		return err
	}

	fingerprint, err := writeIntegrity(site)
	if err != nil {
		return err
	}

	if len(opts.RecoverySecret) > 0 {
		if err := writeJSON(filepath.Join(private, "recovery.json"), PrivateRecoveryMaterial{
			ExportID:             exportID[:],
			RecoverySecret:       opts.RecoverySecret,
			IntegrityFingerprint: fingerprint,
		}); err != nil {
			return err
		}
	}

	return nil
}

type siteManifest struct {
	Version    int    `json:"version"`
	ExportID   string `json:"export_id"`
	ChunkCount int    `json:"chunk_count"`
}

func deflate(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("export: new flate writer: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, fmt.Errorf("export: flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("export: flate close: %w", err)
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("export: flate read: %w", err)
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
