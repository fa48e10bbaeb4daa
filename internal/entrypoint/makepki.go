package entrypoint

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/wrouesnel/makepki/pkg/issuer"
	"github.com/wrouesnel/makepki/pkg/models"
	"github.com/wrouesnel/makepki/pkg/openssl"
	"github.com/wrouesnel/makepki/pkg/prompt"
	"github.com/wrouesnel/makepki/pkg/recipe"
	"github.com/yuseferi/zax/v2"
	"go.uber.org/zap"
)

// IO carries the standard streams of the invocation.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// MakePKI runs each selected operation to completion, in order, against the
// configured base directory.
func MakePKI(ctx context.Context, cfg models.IssueConfig, selectors []models.Selector, stdio IO) error {
	ctx = zax.Set(ctx, []zap.Field{zap.String("variant", cfg.Variant.String())})
	l := zap.L().With(zax.Get(ctx)...)

	baseDir := cfg.ResolvedBaseDir()
	layout := models.LayoutFor(cfg.Variant)

	var runner openssl.Runner
	var fs afero.Fs = afero.NewBasePathFs(afero.NewOsFs(), baseDir)
	if cfg.DryRun {
		l.Info("Dry run: no commands will run and no files will be written")
		runner = openssl.DryRunRunner{Binary: cfg.OpenSSL}
		fs = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(fs), afero.NewMemMapFs())
	} else {
		runner = openssl.NewExecRunner(cfg.OpenSSL, childStdin(stdio.Stdin), stdio.Stdout, stdio.Stderr)
	}

	if cfg.PassphraseMode == models.PassphraseModeArg {
		l.Warn("Passphrases will be visible in the process list", zap.String("passphrase_mode", cfg.PassphraseMode.String()))
	}

	pki := issuer.New(runner, fs, baseDir, cfg.OnFailure)
	prompter := prompt.New(stdio.Stdin, stdio.Stdout)

	l.Info("Running operations", zap.Strings("operations", lo.Map(selectors, func(item models.Selector, _ int) string {
		return item.String()
	})), zap.String("base_dir", baseDir))

	for _, selector := range selectors {
		pass := openssl.Passphrase{Mode: cfg.PassphraseMode}
		if selector.Prompts() {
			value, err := prompter.Passphrase()
			if err != nil {
				l.Error("Could not read passphrase", zap.String("operation", selector.String()), zap.Error(err))
				return errors.Wrapf(err, "%s", selector)
			}
			pass.Value = value
		}

		r, err := recipe.Build(cfg.Variant, selector, layout, pass.Arg())
		if err != nil {
			return err
		}

		report, err := pki.Run(ctx, r, pass)
		if err != nil {
			return errors.Wrapf(err, "%s", selector)
		}
		for _, failure := range report.Failed() {
			l.Warn("Ignored failure", zap.String("operation", selector.String()), zap.Error(failure))
		}
	}

	l.Info("All operations finished")
	return nil
}

// childStdin returns the stream external commands may read from. Only a real
// file is shared: any other reader would be drained by the copy goroutine
// exec starts for it.
func childStdin(in io.Reader) io.Reader {
	if f, ok := in.(*os.File); ok {
		return f
	}
	return nil
}
