// Command swrload runs a Zipf-distributed workload against a swrcache cache
// and prints a JSON report.
//
//	swrload --config load.yaml
//	SWRLOAD_LRU_SIZE=64 SWRLOAD_SNAPSHOT_BACKEND=ristretto swrload
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/swrcache/internal/loadgen"
	swrlogrus "github.com/unkn0wn-root/swrcache/log/logrus"
)

type cliOptions struct {
	configPath string
	checkOnly  bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, opts))
}

func run(ctx context.Context, opts cliOptions) int {
	cfg, err := loadgen.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "load config: %v\n", err)
		return 1
	}
	logger, err := loadgen.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "init logger: %v\n", err)
		return 1
	}
	if opts.checkOnly {
		logger.WithField("config", opts.configPath).Info("config ok")
		return 0
	}

	rep, err := loadgen.Run(ctx, cfg, swrlogrus.New(logger))
	if err != nil {
		logger.WithError(err).Error("run failed")
		return 1
	}
	enc := json.NewEncoder(stdOut)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintf(stdErr, "write report: %v\n", err)
		return 1
	}
	return 0
}

func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("swrload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	fs.StringVar(&opts.configPath, "config", "", "config file (yaml, toml or json); defaults and SWRLOAD_* env apply")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "validate the config and exit")
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("parse flags: %w", err)
	}
	if opts.configPath == "" {
		opts.configPath = os.Getenv("SWRLOAD_CONFIG")
	}
	return opts, nil
}
