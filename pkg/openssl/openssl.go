// Package openssl runs the external openssl binary.
package openssl

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/yuseferi/zax/v2"
	"go.uber.org/zap"
)

var ErrCommandFailed = errors.New("external command failed")
var ErrCommandNotStarted = errors.New("external command could not be started")

// firstExtraFd is the descriptor number of the first entry of Invocation.Files
// in the child. 0-2 are the standard streams.
const firstExtraFd = 3

// Invocation is a single run of the external tool.
type Invocation struct {
	// Args excludes the binary name.
	Args []string
	// Dir is the working directory of the child. Blank means the current directory.
	Dir string
	// Env is appended to the parent environment of the child only.
	Env []string
	// Files are handed to the child as readable pipes starting at descriptor 3.
	Files [][]byte
}

// Runner runs invocations of the external tool.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecRunner runs invocations as child processes which share the given
// standard streams.
type ExecRunner struct {
	Binary string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns an ExecRunner for binary using the given streams.
func NewExecRunner(binary string, stdIn io.Reader, stdOut io.Writer, stdErr io.Writer) *ExecRunner {
	return &ExecRunner{Binary: binary, Stdin: stdIn, Stdout: stdOut, Stderr: stdErr}
}

func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	l := zap.L().With(zax.Get(ctx)...)

	cmd := exec.CommandContext(ctx, r.Binary, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	readers := make([]*os.File, 0, len(inv.Files))
	defer func() {
		for _, f := range readers {
			_ = f.Close()
		}
	}()
	for _, content := range inv.Files {
		pr, err := pipeWith(content)
		if err != nil {
			return errors.Wrap(err, "could not create pipe for child")
		}
		readers = append(readers, pr)
	}
	cmd.ExtraFiles = readers

	l.Info("Running", zap.String("binary", r.Binary), zap.Strings("args", Redact(inv.Args)), zap.String("dir", inv.Dir))
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(ErrCommandNotStarted, "%s: %s", r.Binary, err.Error())
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return errors.Wrapf(ErrCommandFailed, "%s %s: exit status %d", r.Binary, subcommand(inv.Args), exitErr.ExitCode())
		}
		return errors.Wrapf(ErrCommandFailed, "%s %s: %s", r.Binary, subcommand(inv.Args), err.Error())
	}
	return nil
}

// pipeWith returns the read end of a pipe which yields content then EOF.
func pipeWith(content []byte) (*os.File, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	// Passphrases are far below the pipe buffer size so this cannot block.
	if _, err := io.Copy(pw, bytes.NewReader(content)); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	if err := pw.Close(); err != nil {
		_ = pr.Close()
		return nil, err
	}
	return pr, nil
}

// DryRunRunner logs invocations instead of running them.
type DryRunRunner struct {
	Binary string
}

func (r DryRunRunner) Run(ctx context.Context, inv Invocation) error {
	l := zap.L().With(zax.Get(ctx)...)
	l.Info("Dry run", zap.String("command", r.Binary+" "+strings.Join(Redact(inv.Args), " ")), zap.String("dir", inv.Dir))
	return nil
}

// Redact returns a copy of args with literal passphrases masked.
func Redact(args []string) []string {
	return lo.Map(args, func(item string, _ int) string {
		if strings.HasPrefix(item, passPrefix) {
			return passPrefix + "******"
		}
		return item
	})
}

func subcommand(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
