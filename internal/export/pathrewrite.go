package export

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// rewritePath applies mode to sourcePath, given the workspace path its
// conversation belongs to (may be empty for workspace-less conversations).
// PathRelative guarantees filepath.Join(workspace, result) == sourcePath whenever
// sourcePath is actually workspace-prefixed; when
// it isn't prefixed, rewritePath falls back to the full path unchanged
// rather than fabricate a misleading relative path.
func rewritePath(mode PathMode, workspace, sourcePath string) string {
	switch mode {
	case PathRelative:
		if workspace != "" && strings.HasPrefix(sourcePath, workspace) {
			rel := strings.TrimPrefix(sourcePath, workspace)
			return strings.TrimPrefix(rel, string(filepath.Separator))
		}
		return sourcePath
	case PathBasename:
		return filepath.Base(sourcePath)
	case PathHashPrefix16:
		sum := sha256.Sum256([]byte(sourcePath))
		return hex.EncodeToString(sum[:])[:16] + filepath.Ext(sourcePath)
	case PathFull:
		fallthrough
	default:
		return sourcePath
	}
}
