// Command nscache inspects and maintains a namespaced cache from the shell.
//
//	nscache [flags] ping
//	nscache [flags] get <key>
//	nscache [flags] set <key> <value>
//	nscache [flags] del <key>
//	nscache [flags] purge <pattern>
//	nscache [flags] ttl <key>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/config"
	nszap "github.com/unkn0wn-root/nscache/log/zap"
)

// Version information (set at build time).
var version = "dev"

const usage = `usage: nscache [flags] <command> [args]

commands:
  ping               connect and check the store
  get <key>          print the stored value
  set <key> <value>  store value (see -ttl)
  del <key>          remove key
  purge <pattern>    remove every key matching pattern
  ttl <key>          print remaining time to live

flags:
`

// cliFlags holds command line flags.
type cliFlags struct {
	configPath string
	logLevel   string
	namespace  string
	ttl        time.Duration
	timeout    time.Duration
	attempts   int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nscache", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var f cliFlags
	fs.StringVar(&f.configPath, "config", os.Getenv("NSCACHE_CONFIG"), "Path to YAML configuration file")
	fs.StringVar(&f.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.namespace, "namespace", "", "Override the key namespace")
	fs.DurationVar(&f.ttl, "ttl", 0, "TTL for set; 0 keeps the key until removed")
	fs.DurationVar(&f.timeout, "timeout", time.Minute, "Overall command timeout")
	fs.IntVar(&f.attempts, "attempts", 0, "Override connect attempts")
	showVersion := fs.Bool("version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "nscache version %s\n", version)
		return 0
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger, err := initLogger(f.logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	cl, err := newClient(ctx, f, logger)
	if err != nil {
		logger.Error("failed to create cache client", zap.Error(err))
		return 1
	}
	defer func() { _ = cl.Close(context.Background()) }()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := dispatch(ctx, cl, f, fs.Args(), stdout); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(stderr, ue)
			fs.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "nscache: %v\n", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func dispatch(ctx context.Context, cl *nscache.Client, f cliFlags, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	need := func(n int) error {
		if len(rest) != n {
			return usageError(fmt.Sprintf("%s: expected %d argument(s), got %d", cmd, n, len(rest)))
		}
		return nil
	}

	switch cmd {
	case "ping":
		if err := need(0); err != nil {
			return err
		}
		if err := cl.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "PONG")
	case "get":
		if err := need(1); err != nil {
			return err
		}
		v, ok, err := cl.GetBytes(ctx, rest[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: not found", rest[0])
		}
		fmt.Fprintln(out, string(v))
	case "set":
		if err := need(2); err != nil {
			return err
		}
		return cl.SetBytes(ctx, rest[0], []byte(rest[1]), f.ttl)
	case "del":
		if err := need(1); err != nil {
			return err
		}
		return cl.Remove(ctx, rest[0])
	case "purge":
		if err := need(1); err != nil {
			return err
		}
		n, err := cl.RemoveByPattern(ctx, rest[0])
		fmt.Fprintf(out, "%d key(s) removed\n", n)
		return err
	case "ttl":
		if err := need(1); err != nil {
			return err
		}
		d, ok, err := cl.TTL(ctx, rest[0])
		if err != nil {
			return err
		}
		switch {
		case !ok:
			return fmt.Errorf("%s: not found", rest[0])
		case d == 0:
			fmt.Fprintln(out, "no expiry")
		default:
			fmt.Fprintln(out, d)
		}
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
	return nil
}

func newClient(ctx context.Context, f cliFlags, logger *zap.Logger) (*nscache.Client, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.namespace != "" {
		cfg.Namespace = f.namespace
	}
	if f.attempts > 0 {
		cfg.Retry.MaxAttempts = f.attempts
	}
	logger.Debug("configuration loaded",
		zap.String("addr", cfg.RedisStore().Addr()),
		zap.String("namespace", cfg.Namespace),
	)

	opts, err := cfg.Options(ctx, nszap.New(logger), nil)
	if err != nil {
		return nil, err
	}
	return nscache.New(opts)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}
