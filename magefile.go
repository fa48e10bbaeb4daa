//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/integralist/go-findroot/find"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/mholt/archiver"
	"github.com/pkg/errors"
)

const binaryName = "makepki"

var Default = Build //nolint:gochecknoglobals

// gitDescribe returns the commitish embedded as the version.
func gitDescribe() string {
	out, err := sh.Output("git", "describe", "--tags", "--dirty", "--always")
	if err != nil {
		return "development"
	}
	return strings.TrimSpace(out)
}

// toRepoRoot changes to the repository root so targets work from any subdirectory.
func toRepoRoot() error {
	root, err := find.Repo()
	if err != nil {
		return errors.Wrap(err, "finding repository root")
	}
	return os.Chdir(root.Path)
}

func binaryPath(goos, goarch string) string {
	name := binaryName
	if goos == "windows" {
		name += ".exe"
	}
	return filepath.Join("bin", fmt.Sprintf("%s_%s", goos, goarch), name)
}

// Build the binary for the current platform.
func Build() error {
	if err := toRepoRoot(); err != nil {
		return err
	}
	return buildFor(runtime.GOOS, runtime.GOARCH)
}

func buildFor(goos, goarch string) error {
	ldflags := fmt.Sprintf("-X github.com/wrouesnel/makepki/version.Version=%s", gitDescribe())
	env := map[string]string{"GOOS": goos, "GOARCH": goarch, "CGO_ENABLED": "0"}
	return sh.RunWithV(env, "go", "build", "-ldflags", ldflags, "-o", binaryPath(goos, goarch), "./cmd/makepki")
}

// Test runs the unit tests.
func Test() error {
	if err := toRepoRoot(); err != nil {
		return err
	}
	return sh.RunV("go", "test", "-tags", "test", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	if err := toRepoRoot(); err != nil {
		return err
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Release builds every release platform and archives each binary.
func Release() error {
	mg.SerialDeps(Test)

	for _, platform := range []struct{ goos, goarch string }{
		{"linux", "amd64"},
		{"linux", "arm64"},
		{"darwin", "arm64"},
		{"windows", "amd64"},
	} {
		if err := buildFor(platform.goos, platform.goarch); err != nil {
			return err
		}
		binary := binaryPath(platform.goos, platform.goarch)
		archive := filepath.Join("release", fmt.Sprintf("%s_%s_%s_%s.tar.gz", binaryName, gitDescribe(), platform.goos, platform.goarch))
		if err := os.MkdirAll(filepath.Dir(archive), os.FileMode(0755)); err != nil {
			return err
		}
		_ = os.Remove(archive)
		if err := archiver.Archive([]string{binary}, archive); err != nil {
			return errors.Wrapf(err, "archiving %s", binary)
		}
	}
	return nil
}
