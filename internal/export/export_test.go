package export

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rawwerks/cass-go/internal/envelope"
	"github.com/rawwerks/cass-go/internal/recordmodel"
	"github.com/rawwerks/cass-go/internal/storage"
)

func seedStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	started := time.Unix(1000, 0)
	conv := &recordmodel.Conversation{
		AgentSlug:  "claude-code",
		Workspace:  "/home/dev/widgets",
		SourcePath: "/home/dev/widgets/src/main.rs",
		StartedAt:  &started,
		Messages: []recordmodel.Message{
			{Idx: 0, Role: recordmodel.NewRole(recordmodel.RoleUser), Content: "fix the build"},
			{Idx: 1, Role: recordmodel.NewRole(recordmodel.RoleAgent), Content: "done"},
		},
	}
	if _, err := db.UpsertConversation(conv); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func TestCopyFilteredProjectsConversationsAndMessages(t *testing.T) {
	src := seedStore(t)
	dst, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open dst: %v", err)
	}
	defer dst.Close()

	result, err := CopyFiltered(context.Background(), src.Conn(), dst, Options{PathMode: PathRelative})
	if err != nil {
		t.Fatalf("copy filtered: %v", err)
	}
	if result.ConversationCount != 1 || result.MessageCount != 2 {
		t.Fatalf("want 1 conversation / 2 messages, got %d / %d", result.ConversationCount, result.MessageCount)
	}

	var sourcePath string
	if err := dst.QueryRow("SELECT source_path FROM conversations").Scan(&sourcePath); err != nil {
		t.Fatalf("query source_path: %v", err)
	}
	if sourcePath != "src/main.rs" {
		t.Errorf("want relative path 'src/main.rs', got %q", sourcePath)
	}

	var ftsCount int
	if err := dst.QueryRow("SELECT count(*) FROM fts_prose WHERE fts_prose MATCH 'build'").Scan(&ftsCount); err != nil {
		t.Fatalf("query fts_prose: %v", err)
	}
	if ftsCount != 1 {
		t.Errorf("want fts_prose to find the seeded message, got %d matches", ftsCount)
	}
}

func TestRewritePathRelativeRoundTrips(t *testing.T) {
	workspace := "/home/dev/widgets"
	original := "/home/dev/widgets/src/lib/mod.rs"
	rewritten := rewritePath(PathRelative, workspace, original)
	if filepath.Join(workspace, rewritten) != original {
		t.Errorf("want concat(workspace, rewritten) == original, got %q + %q", workspace, rewritten)
	}
}

func TestRewritePathHashPrefixIsStableAndShort(t *testing.T) {
	a := rewritePath(PathHashPrefix16, "", "/a/b/c.rs")
	b := rewritePath(PathHashPrefix16, "", "/a/b/c.rs")
	if a != b {
		t.Errorf("want deterministic hash prefix, got %q vs %q", a, b)
	}
	if len(a) < 16 {
		t.Errorf("want at least a 16-char hash prefix, got %q", a)
	}
}

func TestBundleAndVerifyRoundTrip(t *testing.T) {
	src := seedStore(t)
	dbPath := filepath.Join(t.TempDir(), "derived.db")
	dst, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open derived db: %v", err)
	}
	if _, err := CopyFiltered(context.Background(), src.Conn(), dst, Options{}); err != nil {
		t.Fatalf("copy filtered: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("close derived db: %v", err)
	}

	destDir := t.TempDir()
	err = Bundle(context.Background(), dbPath, destDir, BundleOptions{
		Password:       "archive-password",
		RecoverySecret: []byte("archive-recovery-secret"),
	})
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}

	siteDirPath := filepath.Join(destDir, siteDir)
	result, err := Verify(siteDirPath)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid {
		t.Fatalf("want a valid freshly-written bundle, got mismatches=%v missing=%v", result.Mismatch, result.Missing)
	}

	plain, err := Open(siteDirPath, envelope.Credential{Password: "archive-password"})
	if err != nil {
		t.Fatalf("open with password: %v", err)
	}
	original, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("read original derived db: %v", err)
	}
	if len(plain) != len(original) {
		t.Errorf("want decrypted payload length %d to match original %d", len(plain), len(original))
	}

	if _, err := Open(siteDirPath, envelope.Credential{Password: "wrong-password"}); err != envelope.ErrInvalidCredential {
		t.Errorf("want opaque invalid-credential error for a wrong password, got %v", err)
	}
}

func TestRotateCredentialsReplacesPasswordAndPreservesPayload(t *testing.T) {
	src := seedStore(t)
	dbPath := filepath.Join(t.TempDir(), "derived.db")
	dst, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open derived db: %v", err)
	}
	if _, err := CopyFiltered(context.Background(), src.Conn(), dst, Options{}); err != nil {
		t.Fatalf("copy filtered: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("close derived db: %v", err)
	}

	destDir := t.TempDir()
	if err := Bundle(context.Background(), dbPath, destDir, BundleOptions{
		Password:       "old-password",
		RecoverySecret: []byte("old-recovery-secret"),
	}); err != nil {
		t.Fatalf("bundle: %v", err)
	}

	siteDirPath := filepath.Join(destDir, siteDir)
	privateDirPath := filepath.Join(destDir, privateDir)

	err = RotateCredentials(siteDirPath, privateDirPath,
		envelope.Credential{Password: "old-password"},
		envelope.RotatedCredentials{Password: "new-password", KeepRecovery: true, RecoverySecret: []byte("new-recovery-secret")},
	)
	if err != nil {
		t.Fatalf("rotate credentials: %v", err)
	}

	if _, err := Open(siteDirPath, envelope.Credential{Password: "old-password"}); err != envelope.ErrInvalidCredential {
		t.Errorf("want the old password rejected after rotation, got %v", err)
	}

	plain, err := Open(siteDirPath, envelope.Credential{Password: "new-password"})
	if err != nil {
		t.Fatalf("open with new password: %v", err)
	}
	original, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("read original derived db: %v", err)
	}
	if len(plain) != len(original) {
		t.Errorf("want decrypted payload length %d to match original %d", len(plain), len(original))
	}

	result, err := Verify(siteDirPath)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid {
		t.Fatalf("want a valid bundle after rotation, got mismatches=%v missing=%v", result.Mismatch, result.Missing)
	}
}

func TestAddAndRevokeKeySlots(t *testing.T) {
	src := seedStore(t)
	dbPath := filepath.Join(t.TempDir(), "derived.db")
	dst, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open derived db: %v", err)
	}
	if _, err := CopyFiltered(context.Background(), src.Conn(), dst, Options{}); err != nil {
		t.Fatalf("copy filtered: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("close derived db: %v", err)
	}

	destDir := t.TempDir()
	if err := Bundle(context.Background(), dbPath, destDir, BundleOptions{Password: "first-password"}); err != nil {
		t.Fatalf("bundle: %v", err)
	}
	siteDirPath := filepath.Join(destDir, siteDir)

	err = AddKeySlot(siteDirPath,
		envelope.Credential{Password: "first-password"},
		envelope.Credential{Password: "second-password"}, false)
	if err != nil {
		t.Fatalf("add key slot: %v", err)
	}

	if _, err := Open(siteDirPath, envelope.Credential{Password: "second-password"}); err != nil {
		t.Fatalf("open with added password: %v", err)
	}
	if _, err := Open(siteDirPath, envelope.Credential{Password: "first-password"}); err != nil {
		t.Fatalf("original password must keep working after add: %v", err)
	}
	result, err := Verify(siteDirPath)
	if err != nil || !result.Valid {
		t.Fatalf("want valid bundle after add, got valid=%v err=%v", result.Valid, err)
	}

	// Revoking the original slot while authenticated with the new one.
	if err := RevokeKeySlot(siteDirPath, envelope.Credential{Password: "second-password"}, 0); err != nil {
		t.Fatalf("revoke key slot: %v", err)
	}
	if _, err := Open(siteDirPath, envelope.Credential{Password: "first-password"}); err != envelope.ErrInvalidCredential {
		t.Errorf("want revoked password rejected, got %v", err)
	}
	if _, err := Open(siteDirPath, envelope.Credential{Password: "second-password"}); err != nil {
		t.Errorf("surviving slot must still unlock: %v", err)
	}

	// The single remaining slot cannot be revoked.
	if err := RevokeKeySlot(siteDirPath, envelope.Credential{Password: "second-password"}, 1); err == nil {
		t.Errorf("want revoking the last slot to fail")
	}
}

func TestVerifyDetectsTamperedChunk(t *testing.T) {
	src := seedStore(t)
	dbPath := filepath.Join(t.TempDir(), "derived.db")
	dst, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open derived db: %v", err)
	}
	if _, err := CopyFiltered(context.Background(), src.Conn(), dst, Options{}); err != nil {
		t.Fatalf("copy filtered: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("close derived db: %v", err)
	}

	destDir := t.TempDir()
	if err := Bundle(context.Background(), dbPath, destDir, BundleOptions{Password: "pw"}); err != nil {
		t.Fatalf("bundle: %v", err)
	}

	chunkPath := filepath.Join(destDir, siteDir, payloadDir, "chunk-00000.bin")
	if err := os.WriteFile(chunkPath, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("tamper chunk: %v", err)
	}

	result, err := Verify(filepath.Join(destDir, siteDir))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid {
		t.Errorf("want tampered chunk to fail verification")
	}
}
