package action

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// LogRotation archives the directory holding LogFile, then optionally
// truncates LogFile and prunes old archives.
type LogRotation struct {
	LogFile     string
	ArchiveName string
	ArchiveType string
	ArchiveDir  string
	Truncate    bool

	Prune         bool
	RetentionDays int

	// Now defaults to time.Now.
	Now func() time.Time
}

// RotationReport describes what a rotation did.
type RotationReport struct {
	Archive   string
	Packed    []string
	Truncated string
	Deleted   []string
}

func (r *LogRotation) Kind() string {
	return KindLogRotation
}

func (r *LogRotation) Run(logger *logrus.Entry) error {
	_, err := r.Rotate(logger)
	return err
}

func (r *LogRotation) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Rotate runs the three steps in order. Archiving and truncation failures
// abort the rotation; pruning skips files it cannot remove.
func (r *LogRotation) Rotate(logger *logrus.Entry) (RotationReport, error) {
	var report RotationReport

	archive, packed, err := r.archive()
	if err != nil {
		return report, &ExecutionError{Step: "archive", Err: err}
	}
	report.Archive = archive
	report.Packed = packed
	logger.WithFields(logrus.Fields{"files": len(packed)}).Infof("archive added: %s", archive)

	if r.Truncate {
		if err := truncateFile(r.LogFile); err != nil {
			return report, &ExecutionError{Step: "truncate", Err: err}
		}
		report.Truncated = r.LogFile
		logger.Infof("logfile truncated: %s", r.LogFile)
	}

	if r.Prune {
		deleted, err := pruneOlderThan(r.ArchiveDir, r.now().Add(-time.Duration(r.RetentionDays)*24*time.Hour), logger)
		if err != nil {
			return report, &ExecutionError{Step: "delete", Err: err}
		}
		report.Deleted = deleted
		if len(deleted) > 0 {
			logger.Infof("archive deleted: %v", deleted)
		}
	}

	return report, nil
}

func (r *LogRotation) archive() (string, []string, error) {
	fromDir, err := filepath.Abs(filepath.Dir(r.LogFile))
	if err != nil {
		return "", nil, err
	}
	toDir, err := filepath.Abs(r.ArchiveDir)
	if err != nil {
		return "", nil, err
	}

	dst, err := ArchivePath(toDir, r.ArchiveName, r.ArchiveType, r.now())
	if err != nil {
		return "", nil, err
	}

	if err := os.MkdirAll(toDir, 0o755); err != nil {
		return "", nil, err
	}

	packed, err := archiveDir(dst, r.ArchiveType, fromDir, toDir)
	if err != nil {
		return "", nil, err
	}
	return dst, packed, nil
}

func truncateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return os.Truncate(path, 0)
}

// pruneOlderThan removes the regular files directly inside dir whose
// modification time is before cutoff.
func pruneOlderThan(dir string, cutoff time.Time, logger *logrus.Entry) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var deleted []string
	var errs []error

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted = append(deleted, path)
	}

	if len(errs) > 0 {
		logger.Warnf("some archives could not be deleted: %v", errors.Join(errs...))
	}

	return deleted, nil
}
