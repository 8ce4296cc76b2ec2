package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/telemetry"
	"github.com/vunamhung/antikit/pkg/version"
)

var (
	cfgFile string
	cli     *app
)

var rootCmd = &cobra.Command{
	Use:   "antikit",
	Short: "Manage agent skills from GitHub repositories",
	Long: `antikit installs, lists, removes and upgrades skills: directories holding a
SKILL.md file with YAML frontmatter, fetched from one or more GitHub
repositories into the project's .agent/skills directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.Init(viper.GetViper(), cfgFile); err != nil {
			return err
		}
		settings, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		if err := logger.SetLogLevel(settings.LogLevel); err != nil {
			return err
		}
		logger.SetLogFormat(settings.LogFormat)

		if noCheck, _ := cmd.Flags().GetBool("no-update-check"); noCheck {
			settings.UpdateCheck = false
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		presenter.SetQuiet(quiet)

		telemetry.SetAttributes(cmd.Context(), commandAttributes(cmd)...)

		cli = newApp(settings)
		if settings.LogFile != "" {
			f, err := openLogFile(settings.LogFile)
			if err != nil {
				return err
			}
			cli.logFile = f
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if cli == nil {
			return
		}
		if cmd.Name() != updateCmd.Name() && !isCompletionCommand(cmd) {
			showUpdateNotice(cmd.Context())
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "settings file (default ~/.antikit/settings.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (fmt, text, json)")
	flags.String("log-file", "", "append logs to this file instead of stderr")
	flags.String("skills-dir", "", "skills directory relative to the project (default .agent/skills)")
	flags.Int("concurrency", 0, "maximum number of parallel GitHub requests")
	flags.Bool("no-update-check", false, "do not check for a newer antikit release")
	flags.BoolP("quiet", "q", false, "only print errors")

	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("log_file", flags.Lookup("log-file"))
	viper.BindPFlag("skills_dir", flags.Lookup("skills-dir"))
	viper.BindPFlag("concurrency", flags.Lookup("concurrency"))

	rootCmd.Version = version.Get().Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(
		listCmd,
		localCmd,
		installCmd,
		removeCmd,
		infoCmd,
		validateCmd,
		upgradeCmd,
		diffCmd,
		updateCmd,
		sourceCmd,
		configCmd,
		backupCmd,
		restoreCmd,
		statsCmd,
		completionCmd,
		versionCmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	shutdown, err := telemetry.InitTracer(ctx, tracingSettings(), version.Get().Version)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.G(ctx).WithError(err).Debug("failed to shut down tracing")
			}
		}()
	}

	rootCmd.SetArgs(args)
	err = telemetry.WithSpan(ctx, "cli.command", func(ctx context.Context) error {
		return rootCmd.ExecuteContext(ctx)
	}, attribute.Int("args.count", len(args)))
	// Cobra skips PersistentPostRun when RunE fails.
	if cli != nil {
		cli.Close()
		cli = nil
	}
	if err == nil {
		return 0
	}
	if errorsIsCancelled(err) {
		presenter.Warning("Operation cancelled.")
		return 130
	}

	presenter.Error(err, "")
	if hint := errorHint(err); hint != "" {
		presenter.Dim(hint)
	}
	return 1
}

// tracingSettings reads tracing settings before the command tree runs so the
// root span is exported too.
func tracingSettings() config.TracingSettings {
	v := viper.New()
	if err := config.Init(v, ""); err != nil {
		return config.TracingSettings{}
	}
	s, err := config.Load(v)
	if err != nil {
		return config.TracingSettings{}
	}
	return s.Tracing
}

// commandAttributes describes the invoked command and the flags set on it.
func commandAttributes(cmd *cobra.Command) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("command.name", cmd.Name()),
		attribute.String("command.path", cmd.CommandPath()),
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		if strings.Contains(flag.Name, "token") {
			return
		}
		attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
	})
	return attrs
}

func errorHint(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.SkillNotFound:
		return "Use 'antikit list' to see available skills."
	case apperr.GitHubRateLimit:
		return "Set a token with 'antikit config set-token <token>' to raise the GitHub API rate limit."
	case apperr.GitHubAuthFailed:
		return "Check the token configured with 'antikit config set-token'."
	case apperr.DirectoryNotFound:
		return "Make sure you are in a project with a .agent/skills folder."
	case apperr.GitNotInstalled:
		return "Install git from https://git-scm.com and try again."
	}
	return ""
}
