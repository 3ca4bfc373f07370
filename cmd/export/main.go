package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bbbpartner/internal/config"
	"bbbpartner/internal/ingest"
	"bbbpartner/internal/platform/notify"
)

const (
	exitOK        = 0
	exitFailures  = 1
	exitBadConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one export and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		bbbIDs        = fs.String("bbb-ids", "", "Comma separated BBB IDs to process (default: all)")
		ignore        = fs.String("ignore", "", "Comma separated BBB IDs to skip, added to BBB_IGNORE_IDS")
		skipProcessed = fs.Bool("skip-processed", false, "Skip BBBs that already have a results file")
		noNotify      = fs.Bool("no-notify", false, "Do not send webhook notifications")
		envFile       = fs.String("env-file", "", "Extra .env file to load")
		showProgress  = fs.Bool("progress", true, "Show a progress bar on stderr")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitBadConfig
	}

	var extra []string
	if *envFile != "" {
		extra = append(extra, *envFile)
	}
	config.LoadEnvFiles(extra...)

	cfg, err := config.Load()
	if err != nil {
		log.Printf("configuration error: %v", err)
		return exitBadConfig
	}
	if *noNotify {
		cfg.Notify.Disabled = true
	}
	notifier := notify.Logged(notify.New(cfg.Notify))

	notifyCtx := context.WithoutCancel(ctx)

	if err := cfg.RequireAPIToken(); err != nil {
		log.Printf("configuration error: %v", err)
		_ = notifier.Error(notifyCtx, err.Error())
		return exitBadConfig
	}

	var progress io.Writer
	if *showProgress {
		progress = stderr
	}
	svc, _, closeRepo, err := ingest.Build(ctx, cfg, progress)
	if err != nil {
		log.Printf("startup error: %v", err)
		_ = notifier.Error(notifyCtx, err.Error())
		return exitBadConfig
	}
	defer closeRepo()

	opts := ingest.Options{
		Only:          append(splitIDs(*bbbIDs), fs.Args()...),
		Ignore:        append(cfg.IgnoreIDs, splitIDs(*ignore)...),
		SkipProcessed: *skipProcessed,
	}

	_ = notifier.Status(notifyCtx, "Started")
	rep, err := svc.Run(ctx, opts)
	if rep != nil {
		fmt.Fprintln(stdout, rep.Summary())
	}
	switch {
	case errors.Is(err, context.Canceled):
		log.Printf("export interrupted")
		_ = notifier.Error(notifyCtx, "export interrupted")
		return exitFailures
	case err != nil:
		log.Printf("export failed: %v", err)
		_ = notifier.Error(notifyCtx, err.Error())
		return exitBadConfig
	case rep.Failed():
		_ = notifier.Error(notifyCtx, rep.Summary())
		_ = notifier.Status(notifyCtx, "Completed with errors")
		return exitFailures
	}

	_ = notifier.Status(notifyCtx, "Completed")
	return exitOK
}

// splitIDs accepts "0123,0456" as well as "0123 0456".
func splitIDs(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
}
