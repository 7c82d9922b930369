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

	"cardspend/internal/cli"
	"cardspend/internal/config"
	"cardspend/internal/core"
	applog "cardspend/internal/log"
)

const usage = `Usage: cardspend <command> [flags]

Commands:
  analyze [-year N] [-month N] [-sort amount|name] [-out FILE]
        compute the dashboard document and print it as JSON
  catalog import FILE
        replace the SQLite subscription catalog with a JSON catalog
  catalog export [-out FILE]
        print the configured subscription catalog as JSON
  catalog add -name NAME -pattern P [-pattern P...] -amount N [-cycle C] [-tolerance N] [-category C] [-note TEXT]
        append one entry to the SQLite subscription catalog
  catalog remove NAME
        delete an entry from the SQLite subscription catalog
`

// exitEmpty is returned when no transactions remain to analyze.
const exitEmpty = 2

func main() {
	cli.LoadEnvFile()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, cfg, logger, os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		fmt.Fprint(os.Stderr, usage)
	case errors.Is(err, core.ErrEmptyData):
		logger.Error("Analysis failed", "error", err)
		stop()
		os.Exit(exitEmpty)
	default:
		logger.Error("Command failed", "error", err, "command", os.Args[1])
		stop()
		os.Exit(1)
	}
}

// run dispatches one command. Documents go to stdout; logs go to stderr.
func run(ctx context.Context, cfg *config.Config, logger *applog.Logger, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return flag.ErrHelp
	}

	switch args[0] {
	case "analyze":
		return runAnalyze(ctx, cfg, logger, args[1:], stdout)
	case "catalog":
		if len(args) < 2 {
			return flag.ErrHelp
		}
		switch args[1] {
		case "import":
			return runCatalogImport(ctx, cfg, logger, args[2:])
		case "export":
			return runCatalogExport(ctx, cfg, logger, args[2:], stdout)
		case "add":
			return runCatalogAdd(ctx, cfg, logger, args[2:])
		case "remove":
			return runCatalogRemove(ctx, cfg, logger, args[2:])
		}
		return fmt.Errorf("unknown catalog command %q", args[1])
	case "help", "-h", "--help":
		return flag.ErrHelp
	}
	return fmt.Errorf("unknown command %q", args[0])
}
