package main

import (
	"github.com/MatthiasKunnen/lockscreen/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"io"
	"log/slog"
	"os"
	"strings"
)

// newRootCmd builds the command tree. args are only used to find the configuration file before
// the flags, which override it, are bound.
func newRootCmd(args []string) *cobra.Command {
	configPath := configPathFromArgs(args)

	cfg, loadErr := config.Load(configPath)
	if loadErr != nil {
		cfg = config.Default()
	}

	root := &cobra.Command{
		Use:   "lockscreen",
		Short: "Lock the X display until the user's password is entered",
		Long: `lockscreen covers the X display, grabs the keyboard and pointer and waits
until the password of the current user is verified through PAM.

While locked, the display is turned off after a short timeout and switching
virtual consoles is disabled. Press Escape to turn the display off right away.`,
		Version:            version,
		Args:               cobra.NoArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loadErr != nil {
				return loadErr
			}
			logger, err := newLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			return runLock(cmd.Context(), cfg, logger)
		},
	}
	root.SetArgs(args)
	root.Flags().String("config", configPath, "configuration file")
	cfg.BindFlags(root.Flags())

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Stay resident and lock on request, when idle and before sleep",
		Long: `watch starts the lock screen when logind asks to lock the session, for
example through "loginctl lock-session", after the configured idle time and
before the system goes to sleep.

Lock flags given to watch are passed on to the lock screen.`,
		Args:               cobra.NoArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loadErr != nil {
				return loadErr
			}
			logger, err := newLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cfg, lockArgs(args), logger)
		},
	}
	cfg.BindWatchFlags(watch.Flags())
	root.AddCommand(watch)

	return root
}

// configPathFromArgs returns the value of --config, or the default path.
func configPathFromArgs(args []string) string {
	defaultPath, err := config.DefaultPath()
	if err != nil {
		defaultPath = ""
	}

	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsAllowlist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	path := fs.String("config", defaultPath, "")
	_ = fs.Parse(args)

	return *path
}

// lockArgs returns args without the watch subcommand and its own flags, for starting the lock
// screen from watch.
func lockArgs(args []string) []string {
	watchFlags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	config.Default().BindWatchFlags(watchFlags)

	out := make([]string, 0, len(args))
	skipValue := false
	for _, arg := range args {
		if skipValue {
			skipValue = false
			continue
		}
		if arg == "watch" {
			continue
		}

		name, hasValue := flagName(arg)
		if name == "" {
			out = append(out, arg)
			continue
		}
		flag := watchFlags.Lookup(name)
		if flag == nil {
			out = append(out, arg)
			continue
		}
		if !hasValue && flag.NoOptDefVal == "" {
			skipValue = true
		}
	}

	return out
}

// flagName returns the name of a long flag argument and whether it carries its value.
func flagName(arg string) (string, bool) {
	rest, ok := strings.CutPrefix(arg, "--")
	if !ok || rest == "" {
		return "", false
	}
	name, _, hasValue := strings.Cut(rest, "=")
	return name, hasValue
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
