package hook

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// RegisterFileLogger appends every entry at the logger's level to path,
// rendered with formatter (the logger's own formatter when nil). The
// file is opened in append mode so it survives being truncated by log
// rotation. Close the returned io.Closer on shutdown.
func RegisterFileLogger(logger *logrus.Logger, path string, formatter logrus.Formatter) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	logger.AddHook(&writerHook{
		writer:    f,
		levels:    logrus.AllLevels,
		formatter: formatter,
	})

	return f, nil
}
