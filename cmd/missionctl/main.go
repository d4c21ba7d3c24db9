package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff"
	"github.com/skyfleet/missionctl/internal/config"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"

	AppName = "missionctl"
)

type options struct {
	configDir string
	headless  bool
	pattern   string
	profile   string
	speedup   float64
	remote    string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.StringVar(&o.configDir, "config-dir", ".", "directory containing "+config.FileName)
	fs.BoolVar(&o.headless, "headless", false, "fly one mission to completion and exit")
	fs.StringVar(&o.pattern, "pattern", "", "mission pattern for headless mode (default: catalog default)")
	fs.StringVar(&o.profile, "profile", "", "capture profile for headless mode (default: catalog default)")
	fs.Float64Var(&o.speedup, "speedup", 1, "simulation time multiplier")
	fs.StringVar(&o.remote, "remote", "", "fly one mission on the missionctl server at this URL and exit")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("MISSIONCTL")); err != nil {
		return o, err
	}
	if o.speedup <= 0 {
		return o, fmt.Errorf("speedup must be positive, got %v", o.speedup)
	}
	return o, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Load(opts.configDir); err != nil {
		return err
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("Starting up", "version", Version, "buildDate", BuildDate, "headless", opts.headless)
	switch {
	case opts.remote != "":
		return a.runRemote(ctx, opts)
	case opts.headless:
		return a.runHeadless(ctx, opts)
	default:
		return a.serve(ctx)
	}
}
