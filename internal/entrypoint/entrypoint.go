package entrypoint

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/wrouesnel/makepki/pkg/models"
	"github.com/wrouesnel/makepki/version"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ErrUsage = errors.New("usage error")
var ErrNoOperation = errors.New("at least one of --root, --intermediate, --node or --init is required")

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const longHelp = `

Each operation runs a fixed sequence of openssl commands inside the base
directory. Operations run in the order given on the command line. Every
operation except --init prompts once for a passphrase, which is used for all
keys the operation creates or reads.

hierarchy variant (base directory root/ca):
  --root          private/ca.key.pem, certs/ca.cert.pem (7300 days)
  --intermediate  intermediate/private/intermediate.key.pem,
                  intermediate/csr/intermediate.csr.pem,
                  intermediate/certs/intermediate.cert.pem (3650 days),
                  intermediate/certs/ca-chain.cert.pem
  --node          intermediate/private/node.key.pem,
                  intermediate/csr/node.csr.pem,
                  intermediate/certs/node.cert.pem (375 days)

selfsigned variant (base directory .):
  --root          rsa_key.pem, selfcert.crt (10000 days)
  --node          node_key.pem, node.csr, node.crt (10000 days)

openssl.cnf (and intermediate/openssl.cnf) must already exist.
`

type CLIConfig struct {
	Version kong.VersionFlag `env:"-" help:"Show version number"`
	Config  kong.ConfigFlag  `env:"-" help:"Load configuration from a YAML file"`
	Logging struct {
		Level  string `default:"info"    help:"logging level"`
		Format string `default:"console" enum:"console,json"  help:"logging format (${enum})"`
	} `embed:"" prefix:"log-"`

	Root         bool `env:"-" group:"Operations" help:"Issue the root CA certificate"                         short:"r"`
	Intermediate bool `env:"-" group:"Operations" help:"Issue the intermediate CA certificate and chain"       short:"i"`
	Node         bool `env:"-" group:"Operations" help:"Issue a node certificate"                              short:"n"`
	Init         bool `env:"-" group:"Operations" help:"Create missing directories and openssl ca databases"`

	Issue models.IssueConfig `embed:""`
}

// Entrypoint parses args (excluding the program name), sets up logging and
// signal handling, and runs the requested operations. The returned error maps
// to a process exit code with ExitCode.
func Entrypoint(args []string, stdOut io.Writer, stdErr io.Writer, stdIn io.ReadCloser) error {
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	var cli CLIConfig
	exitCode := -1

	vars := kong.Vars{"version": version.Version}
	vars["variants"] = strings.Join(models.VariantNames(), ",")
	vars["passphrasemodes"] = strings.Join(models.PassphraseModeNames(), ",")
	vars["failurepolicies"] = strings.Join(models.FailurePolicyNames(), ",")

	parser, err := kong.New(&cli,
		kong.Name(version.Name),
		kong.Description(version.Description+longHelp),
		kong.DefaultEnvars(version.Name),
		kong.Configuration(YAMLConfigLoader, ConfigPaths()...),
		kong.Writers(stdOut, stdErr),
		kong.Exit(func(code int) { exitCode = code }),
		vars)
	if err != nil {
		return errors.Wrap(err, "building command line parser")
	}

	kongCtx, parseErr := parser.Parse(args)
	// --help and --version ask kong to exit.
	if exitCode >= 0 {
		if exitCode == ExitOK {
			return nil
		}
		return ErrUsage
	}
	if parseErr != nil {
		_, _ = fmt.Fprintf(stdOut, "%s: error: %s\n", version.Name, parseErr.Error())
		var kongErr *kong.ParseError
		if errors.As(parseErr, &kongErr) && kongErr.Context != nil {
			_ = kongErr.Context.PrintUsage(false)
		}
		return errors.Wrap(ErrUsage, parseErr.Error())
	}

	selectors, err := OrderedSelectors(kongCtx, args)
	if err == nil {
		err = validateSelectors(cli.Issue.Variant, selectors)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stdOut, "%s: error: %s\n", version.Name, err.Error())
		_ = kongCtx.PrintUsage(false)
		return errors.Wrap(ErrUsage, err.Error())
	}

	// Initialize logging as soon as possible
	logConfig := zap.NewProductionConfig()
	deferredLogs := []string{}
	if err := logConfig.Level.UnmarshalText([]byte(cli.Logging.Level)); err != nil {
		deferredLogs = append(deferredLogs, err.Error())
	}
	logConfig.Encoding = cli.Logging.Format
	logConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	if cli.Logging.Format == "console" {
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := buildLogger(logConfig, stdErr)
	if err != nil {
		// Error unhandled since this is a very early failure
		_, _ = io.WriteString(stdErr, "Failure while building logger")
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Debug("Configuring signal handling")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	sigCtx, cancelFn := context.WithCancel(appCtx)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Caught signal - exiting", zap.String("signal", sig.String()))
			cancelFn()
			_ = stdIn.Close()
			logger.Warn("Stdin Closed")
		case <-sigCtx.Done():
		}
	}()

	// Install as the global logger
	zap.ReplaceGlobals(logger)

	// Emit deferred logs
	for _, line := range deferredLogs {
		logger.Error(line)
	}

	if err := MakePKI(sigCtx, cli.Issue, selectors, IO{Stdin: stdIn, Stdout: stdOut, Stderr: stdErr}); err != nil {
		logger.Error("Error", zap.Error(err))
		return err
	}
	return nil
}

// ExitCode maps an Entrypoint result to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// buildLogger builds a logger from logConfig which writes to w instead of the
// configured output paths.
func buildLogger(logConfig zap.Config, w io.Writer) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	switch logConfig.Encoding {
	case "json":
		encoder = zapcore.NewJSONEncoder(logConfig.EncoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(logConfig.EncoderConfig)
	default:
		return nil, errors.Errorf("unknown log encoding: %s", logConfig.Encoding)
	}
	sink := zapcore.Lock(zapcore.AddSync(w))
	core := zapcore.NewCore(encoder, sink, logConfig.Level)
	return zap.New(core, zap.ErrorOutput(sink), zap.AddCaller()), nil
}
