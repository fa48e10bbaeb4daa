package storage

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/chigopher/pathlib"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	DirPermissions        = 0755
	PrivateDirPermissions = 0700
	FilePermissions       = 0644
)

// Files an openssl ca database directory must contain.
const (
	IndexFile     = "index.txt"
	SerialFile    = "serial"
	InitialSerial = "1000\n"
)

// ConcatFiles writes the bytes of every source, in order, to dest. Nothing is
// inserted between sources and the content is not inspected. dest is
// replaced if it exists.
func ConcatFiles(fs afero.Fs, dest string, sources ...string) error {
	l := zap.L()

	buf := &bytes.Buffer{}
	for _, source := range sources {
		sourcePath := pathlib.NewPath(source, pathlib.PathWithAfero(fs))
		content, err := sourcePath.ReadFile()
		if err != nil {
			l.Error("Reading chain source failed", zap.String("source", source), zap.Error(err))
			return errors.Wrapf(err, "reading %s", source)
		}
		buf.Write(content)
	}

	destPath := pathlib.NewPath(dest, pathlib.PathWithAfero(fs))
	if err := destPath.WriteFileMode(buf.Bytes(), os.FileMode(FilePermissions)); err != nil {
		l.Error("Writing chain failed", zap.String("dest", dest), zap.Error(err))
		return errors.Wrapf(err, "writing %s", dest)
	}
	l.Debug("Wrote concatenated file", zap.String("dest", dest), zap.Strings("sources", sources), zap.Int("bytes", buf.Len()))
	return nil
}

// PrepareLayout creates missing directories and openssl ca database files.
// Existing files and directories are left untouched. It returns the paths it
// created.
func PrepareLayout(fs afero.Fs, directories []string, databases []string) ([]string, error) {
	l := zap.L()
	created := []string{}

	for _, dir := range directories {
		dirPath := pathlib.NewPath(dir, pathlib.PathWithAfero(fs))
		if exists, err := dirPath.Exists(); err != nil {
			l.Error("Filesystem access error", zap.String("path", dir), zap.Error(err))
			return created, err
		} else if exists {
			l.Debug("Found existing directory", zap.String("path", dir))
			continue
		}

		perm := os.FileMode(DirPermissions)
		if filepath.Base(dir) == "private" {
			perm = os.FileMode(PrivateDirPermissions)
		}
		if err := dirPath.MkdirAllMode(perm); err != nil {
			l.Error("Creating directory failed", zap.String("path", dir), zap.Error(err))
			return created, errors.Wrapf(err, "creating %s", dir)
		}
		created = append(created, dir)
	}

	for _, db := range databases {
		for _, file := range []struct{ name, content string }{{IndexFile, ""}, {SerialFile, InitialSerial}} {
			path := filepath.Join(db, file.name)
			made, err := createIfMissing(fs, path, []byte(file.content))
			if err != nil {
				l.Error("Creating database file failed", zap.String("path", path), zap.Error(err))
				return created, err
			}
			if made {
				created = append(created, path)
			}
		}
	}

	return created, nil
}

func createIfMissing(fs afero.Fs, path string, content []byte) (bool, error) {
	p := pathlib.NewPath(path, pathlib.PathWithAfero(fs))
	if exists, err := p.Exists(); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}
	if err := p.Parent().MkdirAllMode(os.FileMode(DirPermissions)); err != nil {
		return false, errors.Wrapf(err, "creating parent of %s", path)
	}
	if err := p.WriteFileMode(content, os.FileMode(FilePermissions)); err != nil {
		return false, errors.Wrapf(err, "writing %s", path)
	}
	return true, nil
}
