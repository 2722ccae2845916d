package action

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rotationTime = time.Date(2026, time.September, 10, 14, 25, 30, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func tarNames(t *testing.T, path string) []string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gr, err := gzip.NewReader(f)
	require.NoError(t, err)

	var names []string
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestArchivePath(t *testing.T) {
	p, err := ArchivePath("/var/arch", "app", ArchiveGzip, rotationTime)
	require.NoError(t, err)
	assert.Equal(t, "/var/arch/app_2026-09-10_14:25:30.tar.gz", p)

	p, err = ArchivePath("/var/arch", "app", ArchiveZip, rotationTime)
	require.NoError(t, err)
	assert.Equal(t, "/var/arch/app_2026-09-10_14:25:30.zip", p)

	_, err = ArchivePath("/var/arch", "app", "rar", rotationTime)
	assert.Error(t, err)
}

func TestRotateGzipExcludesArchiveDir(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "log", "app.log")
	archDir := filepath.Join(dir, "log", "arch")

	writeFile(t, logFile, "line 1\nline 2\n")
	writeFile(t, filepath.Join(dir, "log", "sub", "other.log"), "other\n")
	writeFile(t, filepath.Join(archDir, "previous.tar.gz"), "old archive")

	logger, _ := newTestLogger()
	rotation := &LogRotation{
		LogFile:     logFile,
		ArchiveName: "app",
		ArchiveType: ArchiveGzip,
		ArchiveDir:  archDir,
		Truncate:    true,
		Now:         func() time.Time { return rotationTime },
	}

	report, err := rotation.Rotate(logger)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(archDir, "app_2026-09-10_14:25:30.tar.gz"), report.Archive)
	assert.ElementsMatch(t, []string{logFile, filepath.Join(dir, "log", "sub", "other.log")}, report.Packed)
	assert.Equal(t, []string{"app.log", "sub/other.log"}, tarNames(t, report.Archive))

	assert.Equal(t, logFile, report.Truncated)
	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestRotateZipWithoutTruncate(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "log", "app.log")
	archDir := filepath.Join(dir, "arch")

	writeFile(t, logFile, "keep me\n")

	logger, _ := newTestLogger()
	rotation := &LogRotation{
		LogFile:     logFile,
		ArchiveName: "app",
		ArchiveType: ArchiveZip,
		ArchiveDir:  archDir,
		Now:         func() time.Time { return rotationTime },
	}

	report, err := rotation.Rotate(logger)
	require.NoError(t, err)

	assert.Equal(t, []string{"app.log"}, zipNames(t, report.Archive))
	assert.Empty(t, report.Truncated)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "keep me\n", string(content))
}

func TestRotateTwiceInSameSecondOverwrites(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "log", "app.log")
	archDir := filepath.Join(dir, "arch")

	writeFile(t, logFile, "first\n")

	logger, _ := newTestLogger()
	rotation := &LogRotation{
		LogFile:     logFile,
		ArchiveName: "app",
		ArchiveType: ArchiveGzip,
		ArchiveDir:  archDir,
		Truncate:    true,
		Now:         func() time.Time { return rotationTime },
	}

	first, err := rotation.Rotate(logger)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "log", "later.log"), "second\n")

	second, err := rotation.Rotate(logger)
	require.NoError(t, err)
	assert.Equal(t, first.Archive, second.Archive)
	assert.Equal(t, []string{"app.log", "later.log"}, tarNames(t, second.Archive))

	entries, err := os.ReadDir(archDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRotatePrunesExpiredArchives(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "log", "app.log")
	archDir := filepath.Join(dir, "arch")

	writeFile(t, logFile, "x\n")
	expired := filepath.Join(archDir, "app_old.tar.gz")
	recent := filepath.Join(archDir, "app_recent.tar.gz")
	writeFile(t, expired, "old")
	writeFile(t, recent, "new")
	require.NoError(t, os.MkdirAll(filepath.Join(archDir, "nested"), 0o755))

	// The archive written by this rotation gets the real mtime, so the
	// retention window is measured from the real clock here.
	now := time.Now()
	old := now.Add(-40 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(expired, old, old))
	fresh := now.Add(-2 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(recent, fresh, fresh))

	logger, _ := newTestLogger()
	rotation := &LogRotation{
		LogFile:       logFile,
		ArchiveName:   "app",
		ArchiveType:   ArchiveGzip,
		ArchiveDir:    archDir,
		Prune:         true,
		RetentionDays: 30,
		Now:           func() time.Time { return now },
	}

	report, err := rotation.Rotate(logger)
	require.NoError(t, err)

	assert.Equal(t, []string{expired}, report.Deleted)
	assert.NoFileExists(t, expired)
	assert.FileExists(t, recent)
	assert.DirExists(t, filepath.Join(archDir, "nested"))
}

func TestRotateTruncateMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	// The directory exists but the log file does not.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "log"), 0o755))

	logger, _ := newTestLogger()
	rotation := &LogRotation{
		LogFile:     filepath.Join(dir, "log", "missing.log"),
		ArchiveName: "app",
		ArchiveType: ArchiveGzip,
		ArchiveDir:  filepath.Join(dir, "arch"),
		Truncate:    true,
		Now:         func() time.Time { return rotationTime },
	}

	err := rotation.Run(logger)

	var execErr *ExecutionError
	if assert.ErrorAs(t, err, &execErr) {
		assert.Equal(t, "truncate", execErr.Step)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	}
}

func TestRotateInvalidArchiveType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.log"), "x\n")

	logger, _ := newTestLogger()
	rotation := &LogRotation{
		LogFile:     filepath.Join(dir, "app.log"),
		ArchiveName: "app",
		ArchiveType: "rar",
		ArchiveDir:  filepath.Join(dir, "arch"),
	}

	err := rotation.Run(logger)

	var execErr *ExecutionError
	if assert.ErrorAs(t, err, &execErr) {
		assert.Equal(t, "archive", execErr.Step)
	}
	assert.Equal(t, KindLogRotation, rotation.Kind())
}

func TestPruneMissingDirectoryFails(t *testing.T) {
	logger, _ := newTestLogger()

	_, err := pruneOlderThan(filepath.Join(t.TempDir(), "nope"), rotationTime, logger)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
