package dump

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dumpmate/dumpmate/internal/models"
)

// PlanPath derives the default destination path for a dump:
//
//	<root>/<environment>/<alias-or-name>/<name>-<timestamp>.sql[.gz]
//
// The timestamp is RFC 3339 with ':' and '.' replaced by '-' so the name is
// safe on every filesystem. root falls back to the system temp directory
// when empty. The function has no filesystem side effects.
func PlanPath(root string, target models.Target, compress bool, now time.Time) string {
	if root == "" {
		root = os.TempDir()
	}

	ts := now.Format(time.RFC3339)
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)

	name := target.Name + "-" + ts + ".sql"
	if compress {
		name += ".gz"
	}
	return filepath.Join(root, target.Environment, target.DisplayName(), name)
}
