package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"
	"github.com/urfave/cli/v2"

	"epistolary-lite/internal/app"
	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/config"
	"epistolary-lite/internal/di"
	"epistolary-lite/internal/logger"
	"epistolary-lite/internal/sentry"
	"epistolary-lite/internal/version"
)

var errUsage = errors.New("incorrect usage")

func main() {
	// Load the dotenv file if it exists
	_ = godotenv.Load()
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// console holds what every command needs. It is populated by the app's Before hook.
type console struct {
	app      *app.App
	injector *do.RootScope
	flush    func()
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	con := &console{stdin: stdin, stdout: stdout, stderr: stderr}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newApp(con).RunContext(ctx, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	case errors.Is(err, auth.ErrLoginRequired):
		fmt.Fprintln(stderr, "not signed in, run: epistolary login")
		return 1
	case expected(err):
		fmt.Fprintln(stderr, err)
		return 1
	default:
		sentry.Report(err, "command failed")
		fmt.Fprintln(stderr, err)
		return 1
	}
}

func newApp(con *console) *cli.App {
	return &cli.App{
		Name:      "epistolary",
		Version:   version.Version(),
		Usage:     "keep a reading list on an epistolary api",
		Reader:    con.stdin,
		Writer:    con.stdout,
		ErrWriter: con.stderr,
		Before:    con.setup,
		After:     con.teardown,
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				return fmt.Errorf("unknown command %q", c.Args().First())
			}
			_ = cli.ShowAppHelp(c)
			return errUsage
		},
		// Exit codes are decided by run, never by the library.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands:       commands(con),
	}
}

func (con *console) setup(c *cli.Context) error {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return err
	}
	logger.Configure(cfg.LogLevel, cfg.ConsoleLog)

	if con.flush, err = sentry.Init(cfg.Sentry); err != nil {
		log.Warn().Err(err).Msg("could not initialize sentry")
	}

	con.injector = di.NewContainer(cfg)
	if err := di.Bootstrap(con.injector); err != nil {
		return err
	}
	con.app = do.MustInvoke[*app.App](con.injector)
	return nil
}

func (con *console) teardown(c *cli.Context) error {
	if con.app != nil {
		con.printAlerts()
	}
	if con.injector != nil {
		if report := con.injector.Shutdown(); !report.Succeed {
			log.Warn().Err(report).Msg("shutdown")
		}
	}
	if con.flush != nil {
		con.flush()
	}
	return nil
}
