package commands

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/BarrensZeppelin/funcptr/internal/config"
)

// RootCmd analyzes the packages named on the command line.
var RootCmd = &cobra.Command{
	Use:   "funcptr [packages]",
	Short: "Resolve the targets of calls through function pointers",
	Long: `funcptr runs a flow-sensitive points-to analysis from the entry function
of the given packages and prints, for every call site, the functions it may
invoke:

  <line> : <callee1>, <callee2>`,
	SilenceUsage: true,
	RunE:         runRoot,
}

func Execute() error {
	return RootCmd.Execute()
}

func init() {
	flags := RootCmd.Flags()
	flags.String("config", "", "config file (default "+config.DefaultPath+")")
	flags.String("cpuprofile", "", "write cpu profile to `file`")
	flags.String("dir", "", "alternative directory to run the go build tool in")
	flags.String("entry", "", "name of the function to analyze")
	flags.String("format", "", "output format: text, yaml or msgpack")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("callgraph", false, "also print the resolved call graph")
	flags.Bool("liveness", false, "also print the live values of the entry function's blocks")
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("entry") {
		cfg.Entry, _ = flags.GetString("entry")
	}
	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		cfg.Format = config.Format(format)
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("callgraph") {
		cfg.CallGraph, _ = flags.GetBool("callgraph")
	}
	if flags.Changed("liveness") {
		cfg.Liveness, _ = flags.GetBool("liveness")
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg *config.Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
}

// askPattern prompts for a package pattern on an interactive terminal.
func askPattern() ([]string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil, fmt.Errorf("specify a package query on the command line")
	}

	pattern := "."
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Package to analyze").
				Description("A package pattern as accepted by go list").
				Placeholder(".").
				Value(&pattern),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("interactive prompt failed: %w", err)
	}
	return []string{pattern}, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if len(args) == 0 {
		if args, err = askPattern(); err != nil {
			return err
		}
	}

	if path, _ := cmd.Flags().GetString("cpuprofile"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Errorf("Failed to close %s: %v", path, err)
			}
		}()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	dir, _ := cmd.Flags().GetString("dir")
	return run(cmd.OutOrStdout(), cfg, dir, args)
}
