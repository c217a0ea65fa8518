package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// staticIndexHTML is a minimal offline placeholder page: this package
// builds the encrypted archive, not a browser-side viewer, so the page
// only points a reader at config.json/payload for a real client to
// consume.
const staticIndexHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>cass export</title></head>
<body>
<p>This is an encrypted cass conversation export. Decrypt payload/ using
config.json's key slots with a compatible client.</p>
</body>
</html>
`

const staticRobotsTxt = "User-agent: *\nDisallow: /\n"

func writeStaticAssets(siteDirPath string) error {
	files := map[string]string{
		"index.html": staticIndexHTML,
		"robots.txt": staticRobotsTxt,
		".nojekyll":  "",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(siteDirPath, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("export: write %s: %w", name, err)
		}
	}
	return nil
}
