package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"

	devenv "cptracker-backend/dev/env"
)

// FilesystemOutput dumps every request/response pair into its own file
// under a directory, the directory is wiped when the output is created.
type FilesystemOutput struct {
	directory string
}

// `dir` may use the <dev_state> prefix.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	dir, err := devenv.ResolvePath(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	os.RemoveAll(dir)
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
