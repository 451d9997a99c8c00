package worktree

import (
	"os"

	"github.com/odvcencio/twig/pkg/object"
)

func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode()&0o111 != 0 {
		return object.ModeExecutable
	}
	return object.ModeFile
}

// NormalizeMode maps anything that is not executable to the regular file mode.
func NormalizeMode(mode string) string {
	if mode == object.ModeExecutable {
		return object.ModeExecutable
	}
	return object.ModeFile
}

func filePermFromMode(mode string) os.FileMode {
	if NormalizeMode(mode) == object.ModeExecutable {
		return 0o755
	}
	return 0o644
}
