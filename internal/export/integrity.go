package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// integrityFileName is the one file in site/ that is never itself listed
// inside its own manifest.
const integrityFileName = "integrity.json"

// FileDigest is one entry in integrity.json.
type FileDigest struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest is the full integrity.json structure.
type Manifest struct {
	Version int                   `json:"version"`
	Files   map[string]FileDigest `json:"files"`
}

// writeIntegrity hashes every file under siteDirPath except integrity.json
// itself, writes integrity.json, and returns a short fingerprint of the
// manifest for recovery material to reference.
func writeIntegrity(siteDirPath string) (string, error) {
	manifest := Manifest{Version: 1, Files: make(map[string]FileDigest)}

	err := filepath.WalkDir(siteDirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(siteDirPath, path)
		if err != nil {
			return err
		}
		if rel == integrityFileName {
			return nil
		}
		digest, size, err := hashFile(path)
		if err != nil {
			return err
		}
		manifest.Files[filepath.ToSlash(rel)] = FileDigest{SHA256: digest, Size: size}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("export: build integrity manifest: %w", err)
	}

	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshal integrity manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(siteDirPath, integrityFileName), b, 0o644); err != nil {
		return "", fmt.Errorf("export: write integrity manifest: %w", err)
	}

	fingerprint := sha256.Sum256(b)
	return hex.EncodeToString(fingerprint[:]), nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("export: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// VerifyResult is the outcome of an offline integrity check.
type VerifyResult struct {
	Valid    bool
	Mismatch []string
	Missing  []string
}

// Verify reads integrity.json from siteDirPath and recomputes every
// listed file's hash, reporting any mismatch or missing file. It never
// touches the encrypted payload's plaintext — this checks bundle
// integrity, not credential validity.
func Verify(siteDirPath string) (VerifyResult, error) {
	b, err := os.ReadFile(filepath.Join(siteDirPath, integrityFileName))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("export: read integrity manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(b, &manifest); err != nil {
		return VerifyResult{}, fmt.Errorf("export: parse integrity manifest: %w", err)
	}

	result := VerifyResult{Valid: true}
	for rel, want := range manifest.Files {
		path := filepath.Join(siteDirPath, filepath.FromSlash(rel))
		got, size, err := hashFile(path)
		if err != nil {
			result.Valid = false
			result.Missing = append(result.Missing, rel)
			continue
		}
		if got != want.SHA256 || size != want.Size {
			result.Valid = false
			result.Mismatch = append(result.Mismatch, rel)
		}
	}
	return result, nil
}
