package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rawwerks/cass-go/internal/envelope"
)

// ReadConfig loads and parses a bundle's config.json.
func ReadConfig(siteDirPath string) (envelope.EncryptionConfig, error) {
	b, err := os.ReadFile(filepath.Join(siteDirPath, "config.json"))
	if err != nil {
		return envelope.EncryptionConfig{}, fmt.Errorf("export: read config.json: %w", err)
	}
	var cfg envelope.EncryptionConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return envelope.EncryptionConfig{}, fmt.Errorf("export: parse config.json: %w", err)
	}
	return cfg, nil
}

// Open unlocks a bundle with cred and returns the decompressed derived
// database bytes, ready to be written to disk and opened read-only.
func Open(siteDirPath string, cred envelope.Credential) ([]byte, error) {
	cfg, err := ReadConfig(siteDirPath)
	if err != nil {
		return nil, err
	}
	dek, _, err := envelope.Unlock(cfg, cred)
	if err != nil {
		return nil, err
	}

	compressed := make([]byte, 0, cfg.Payload.ChunkSize*cfg.Payload.ChunkCount)
	for i, rel := range cfg.Payload.Files {
		ct, err := os.ReadFile(filepath.Join(siteDirPath, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("export: read chunk %d: %w", i, err)
		}
		plain, err := envelope.DecryptChunk(dek, cfg.BaseNonce, cfg.ExportID, uint32(i), ct)
		if err != nil {
			return nil, err
		}
		compressed = append(compressed, plain...)
	}

	if cfg.Compression == "deflate" {
		return inflate(compressed)
	}
	return compressed, nil
}
