// Package issuer runs certificate recipes.
package issuer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/wrouesnel/makepki/pkg/models"
	"github.com/wrouesnel/makepki/pkg/openssl"
	"github.com/wrouesnel/makepki/pkg/recipe"
	"github.com/wrouesnel/makepki/pkg/storage"
	"github.com/yuseferi/zax/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrStepFailed = errors.New("step failed")
var ErrUnknownStep = errors.New("unknown step type")

// Issuer runs recipes against a single base directory.
type Issuer struct {
	runner  openssl.Runner
	fs      afero.Fs
	baseDir string
	policy  models.FailurePolicy
}

// New returns an Issuer. fs must be rooted at baseDir: recipe paths are
// relative and are used unchanged for both fs and the external tool, which
// runs with baseDir as its working directory.
func New(runner openssl.Runner, fs afero.Fs, baseDir string, policy models.FailurePolicy) *Issuer {
	return &Issuer{runner: runner, fs: fs, baseDir: baseDir, policy: policy}
}

// Report describes a completed recipe run.
type Report struct {
	Selector models.Selector
	// Ran counts the steps which were attempted.
	Ran int
	// Failures holds every step failure tolerated by the continue policy.
	Failures error
}

// Failed lists the individual tolerated failures.
func (r Report) Failed() []error {
	return multierr.Errors(r.Failures)
}

// Run executes the steps of r in order. Under the continue policy step
// failures are logged and recorded in the report, and Run returns nil. Under
// the abort policy the first failure is returned. Context cancellation always
// stops the run.
func (i *Issuer) Run(ctx context.Context, r recipe.Recipe, pass openssl.Passphrase) (Report, error) {
	ctx = zax.Set(ctx, []zap.Field{zap.String("operation", r.Selector.String()), zap.String("variant", r.Variant.String())})
	l := zap.L().With(zax.Get(ctx)...)

	report := Report{Selector: r.Selector}
	l.Info("Starting operation", zap.Int("steps", len(r.Steps)), zap.String("base_dir", i.baseDir))

	for idx, step := range r.Steps {
		if err := ctx.Err(); err != nil {
			l.Warn("context finished: aborting")
			return report, err
		}

		stepCtx := zax.Set(ctx, []zap.Field{zap.String("step", step.StepName())})
		sl := zap.L().With(zax.Get(stepCtx)...)

		report.Ran++
		err := i.runStep(stepCtx, step, pass)
		if err == nil {
			sl.Debug("Step completed")
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			sl.Warn("Step interrupted", zap.Error(err))
			return report, ctxErr
		}

		stepErr := errors.Wrap(err, fmt.Sprintf("step %d (%s)", idx+1, step.StepName()))
		if i.policy == models.FailurePolicyAbort {
			sl.Error("Step failed - aborting", zap.Error(err))
			return report, errors.Wrap(ErrStepFailed, stepErr.Error())
		}
		if concat, ok := step.(recipe.Concat); ok {
			// The output is missing or stale; later steps do not reveal that.
			sl.Error("Output file not written - continuing", zap.String("dest", concat.Dest), zap.Error(err))
		} else {
			sl.Warn("Step failed - continuing", zap.Error(err))
		}
		report.Failures = multierr.Append(report.Failures, stepErr)
	}

	if report.Failures != nil {
		l.Warn("Operation finished with failed steps", zap.Int("failed", len(report.Failed())))
	} else {
		l.Info("Operation finished")
	}
	return report, nil
}

func (i *Issuer) runStep(ctx context.Context, step recipe.Step, pass openssl.Passphrase) error {
	switch s := step.(type) {
	case recipe.Exec:
		inv := pass.Apply(openssl.Invocation{Args: s.Args, Dir: i.baseDir})
		return i.runner.Run(ctx, inv)
	case recipe.Concat:
		return storage.ConcatFiles(i.fs, s.Dest, s.Sources...)
	case recipe.Prepare:
		l := zap.L().With(zax.Get(ctx)...)
		created, err := storage.PrepareLayout(i.fs, s.Directories, s.Databases)
		l.Info("Prepared layout", zap.Strings("created", created))
		return err
	default:
		return errors.Wrapf(ErrUnknownStep, "%T", step)
	}
}
