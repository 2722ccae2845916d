package action

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

const (
	ArchiveGzip = "gz"
	ArchiveZip  = "zip"

	archiveTimeLayout = "2006-01-02_15:04:05"
)

// ArchivePath returns the dated archive file name for the given format.
func ArchivePath(dir, name, format string, at time.Time) (string, error) {
	stamp := at.Format(archiveTimeLayout)

	switch format {
	case ArchiveGzip:
		return filepath.Join(dir, fmt.Sprintf("%s_%s.tar.gz", name, stamp)), nil
	case ArchiveZip:
		return filepath.Join(dir, fmt.Sprintf("%s_%s.zip", name, stamp)), nil
	default:
		return "", fmt.Errorf("invalid archive type %q: can be %q or %q", format, ArchiveGzip, ArchiveZip)
	}
}

// archiveDir packs every regular file below fromDir into dst, skipping
// the subtree rooted at exclude. It returns the packed paths.
func archiveDir(dst, format, fromDir, exclude string) ([]string, error) {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	var add func(rel string, info fs.FileInfo, src io.Reader) error
	var finish func() error

	switch format {
	case ArchiveGzip:
		gw := gzip.NewWriter(f)
		tw := tar.NewWriter(gw)

		add = func(rel string, info fs.FileInfo, src io.Reader) error {
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(rel)
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			// The header size is fixed; a file still growing is cut at it.
			_, err = io.CopyN(tw, src, hdr.Size)
			return err
		}
		finish = func() error {
			if err := tw.Close(); err != nil {
				return err
			}
			return gw.Close()
		}
	case ArchiveZip:
		zw := zip.NewWriter(f)

		add = func(rel string, info fs.FileInfo, src io.Reader) error {
			hdr, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(rel)
			hdr.Method = zip.Deflate
			w, err := zw.CreateHeader(hdr)
			if err != nil {
				return err
			}
			_, err = io.Copy(w, src)
			return err
		}
		finish = zw.Close
	default:
		f.Close()
		os.Remove(dst)
		return nil, fmt.Errorf("invalid archive type %q", format)
	}

	packed, err := walkFiles(fromDir, exclude, dst, add)
	if err == nil {
		err = finish()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return nil, err
	}

	return packed, nil
}

func walkFiles(root, exclude, self string, add func(string, fs.FileInfo, io.Reader) error) ([]string, error) {
	var packed []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if exclude != "" && path == exclude {
				return filepath.SkipDir
			}
			return nil
		}

		if path == self || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		if err := add(rel, info, src); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		packed = append(packed, path)
		return nil
	})

	return packed, err
}
