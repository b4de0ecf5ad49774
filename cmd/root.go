package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/expr-lang/expr/vm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lndup/lndup/pkg/config"
	"github.com/lndup/lndup/pkg/dedup"
	"github.com/lndup/lndup/pkg/logger"
	"github.com/lndup/lndup/pkg/output"
	"github.com/lndup/lndup/pkg/scan"
	"github.com/lndup/lndup/pkg/targets"
)

var (
	flagVerbose    int
	flagQuiet      int
	flagConfigFile = config.DefaultPath()
	flagLogFile    = config.DefaultLogPath()

	flagRaw         bool
	flagNoBraces    bool
	flagDryRun      bool
	flagInteractive bool
	flagMinSize     string
	flagSeparator   string
	flagTargetFile  string
	flagThreads     int
	flagExcludes    []string
	flagFilter      string
	flagTrustDigest bool
)

func RootCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "lndup [flags] TARGET...",
		Short: "Hardlink duplicate files",
		Long: `Finds byte-identical regular files inside the given targets and replaces
duplicates with hardlinks to one representative, reclaiming space.

Targets form one set confined to a single device; a separator token
splits the target list into independent sets that are never linked
to each other.`,

		Args: cobra.ArbitraryArgs,
		Run:  run,
	}

	command.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "Increase verbosity")
	command.PersistentFlags().CountVarP(&flagQuiet, "quiet", "q", "Decrease verbosity")
	command.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", flagConfigFile, "Config file")
	command.PersistentFlags().StringVarP(&flagLogFile, "log", "l", flagLogFile, "Log file (empty to disable)")

	command.Flags().BoolVar(&flagRaw, "raw", false, "Machine readable output on stdout")
	command.Flags().BoolVar(&flagNoBraces, "no-brace-output", false, "Do not merge reported path pairs into brace form")
	command.Flags().BoolVar(&flagDryRun, "dry-run", false, "Plan and report without touching the filesystem")
	command.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "Ask once for confirmation before linking")
	command.Flags().StringVarP(&flagMinSize, "min-size", "m", "1", "Minimum file size to consider, accepts units (e.g. 64KiB)")
	command.Flags().StringVarP(&flagSeparator, "separator", "s", ";", "Token splitting targets into independent sets")
	command.Flags().StringVarP(&flagTargetFile, "target-file", "f", "", "Read targets from file, one per line (- for stdin)")
	command.Flags().IntVarP(&flagThreads, "threads", "t", 2, "Hashing/comparison worker count")
	command.Flags().StringArrayVar(&flagExcludes, "exclude", nil, "Regex of paths to skip (repeatable)")
	command.Flags().StringVar(&flagFilter, "filter", "", "Expression selecting which files to consider")
	command.Flags().BoolVar(&flagTrustDigest, "trust-digest", false, "Skip the byte-for-byte confirmation of digest matches")

	return command
}

func run(c *cobra.Command, args []string) {
	// raw mode keeps stdout parseable, so console logging moves off
	logger.Init(flagVerbose-flagQuiet, flagLogFile, !flagRaw)
	log := logger.GetLogger("run")

	cfg, err := buildSettings(c, args)
	if err != nil {
		fatal(log, err, "Failed loading configuration")
	}

	sets, err := targets.Resolve(cfg)
	if err != nil {
		fatal(log, err, "Failed resolving targets")
	}
	if len(sets) == 0 {
		log.Debug("No targets resolved, nothing to do")
		return
	}

	excludes, err := scan.CompileExcludes(cfg.Excludes)
	if err != nil {
		fatal(log, err, "Failed compiling exclude patterns")
	}

	var filter *vm.Program
	if cfg.Filter != "" {
		if filter, err = scan.CompileFilter(cfg.Filter); err != nil {
			fatal(log, err, "Failed compiling filter expression")
		}
	}

	var out output.Renderer
	if cfg.Raw {
		out = output.NewRaw(os.Stdout)
	} else {
		out = output.NewHuman(!cfg.NoBraces)
	}

	engine := dedup.New(cfg, excludes, filter, out)

	plan, err := engine.Plan(sets)
	if err != nil {
		fatal(log, err, "Failed planning hardlinks")
	}

	if cfg.DryRun {
		engine.Render(plan)
		engine.Summarize()
		return
	}

	if cfg.Interactive && engine.Stats().Operations > 0 {
		engine.Render(plan)
		if !confirm(engine.Stats().Operations) {
			log.Info("Declined, nothing touched")
			return
		}
	}

	engine.Execute(plan)
	engine.Summarize()
}

func buildSettings(c *cobra.Command, args []string) (*config.Settings, error) {
	cfg := config.Defaults()

	if err := config.Load(flagConfigFile, c.Flags().Changed("config"), cfg); err != nil {
		return nil, err
	}

	// explicit flags win over the config file
	flags := c.Flags()
	if flags.Changed("separator") {
		cfg.Separator = flagSeparator
	}
	if flags.Changed("min-size") {
		size, err := humanize.ParseBytes(flagMinSize)
		if err != nil {
			return nil, config.Wrap(err, "parse minimum size %q", flagMinSize)
		}
		cfg.MinSize = int64(size)
	}
	if flags.Changed("threads") {
		cfg.Threads = flagThreads
	}
	if flags.Changed("trust-digest") {
		cfg.TrustDigest = flagTrustDigest
	}
	if flags.Changed("no-brace-output") {
		cfg.NoBraces = flagNoBraces
	}
	if flags.Changed("exclude") {
		cfg.Excludes = flagExcludes
	}
	if flags.Changed("filter") {
		cfg.Filter = flagFilter
	}

	cfg.Targets = args
	cfg.TargetFile = flagTargetFile
	cfg.Verbosity = flagVerbose - flagQuiet
	cfg.Raw = flagRaw
	cfg.DryRun = flagDryRun
	cfg.Interactive = flagInteractive

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fatal reports err and exits. Raw mode drops the console log writer, so
// the message is mirrored straight to stderr there; stderr sits outside
// the raw stdout contract. Configuration faults exit with code 2,
// anything else with 1.
func fatal(log *logrus.Entry, err error, msg string) {
	log.WithError(err).Error(msg)
	if flagRaw {
		fmt.Fprint(os.Stderr, fatalMessage(msg, err))
	}
	os.Exit(exitCode(err))
}

// fatalMessage is the one-line stderr form of a fatal fault.
func fatalMessage(msg string, err error) string {
	return fmt.Sprintf("lndup: %s: %v\n", msg, err)
}

// exitCode maps a fatal error to the process exit status.
func exitCode(err error) int {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

// confirm asks once on stderr so raw stdout stays parseable.
func confirm(operations int) bool {
	fmt.Fprintf(os.Stderr, "Hardlink %d duplicate files? (y/N): ", operations)

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}
