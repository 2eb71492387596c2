// Package main is the mudra command: the sign recognition service and its
// model maintenance tools.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	flagDataDir       = "data-dir"
	flagDebug         = "debug"
	flagAddr          = "addr"
	flagPlugins       = "plugins"
	flagTracker       = "tracker"
	flagWeb           = "web"
	flagTray          = "tray"
	flagLabels        = "labels"
	flagMinConfidence = "min-confidence"
	flagLimit         = "limit"
)

var logger = zap.NewNop().Sugar()

var cliApp = &cli.App{
	Name:            "mudra",
	Usage:           "real-time hand sign recognition",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagDataDir,
			EnvVars: []string{"MUDRA_DATA_DIR"},
			Usage:   "directory holding the database and plugins",
			Value:   defaultDataDir(),
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			EnvVars: []string{"MUDRA_DEBUG"},
			Usage:   "enable debug logging",
		},
	},
	Before: func(c *cli.Context) error {
		l, err := newLogger(c.Bool(flagDebug))
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	After: func(c *cli.Context) error {
		// Sync fails on terminals; nothing useful to report
		_ = logger.Sync()
		return nil
	},
	Commands: []*cli.Command{
		{
			Name:  "serve",
			Usage: "run the recognition engine with its HTTP API",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    flagAddr,
					EnvVars: []string{"MUDRA_ADDR"},
					Usage:   "HTTP listen address",
					Value:   ":8080",
				},
				&cli.StringFlag{
					Name:    flagPlugins,
					EnvVars: []string{"MUDRA_PLUGINS"},
					Usage:   "plugin directory (default: <data-dir>/plugins)",
				},
				&cli.StringFlag{
					Name:    flagTracker,
					EnvVars: []string{"MUDRA_TRACKER"},
					Usage:   "hand tracker `COMMAND` emitting JSON frames; \"-\" reads stdin, empty accepts frames over /api/frames only",
				},
				&cli.StringFlag{
					Name:  flagWeb,
					Usage: "static web `DIR` to serve",
				},
				&cli.BoolFlag{
					Name:  flagTray,
					Usage: "show a system tray menu",
				},
				&cli.StringSliceFlag{
					Name:  flagLabels,
					Usage: "signs that can be trained",
					Value: cli.NewStringSlice(defaultLabels()...),
				},
				&cli.Float64Flag{
					Name:  flagMinConfidence,
					Usage: "drop tracked hands scored below this",
					Value: 0.5,
				},
			},
			Action: ServeAction,
		},
		{
			Name:      "export",
			Usage:     "write the saved model to a file",
			ArgsUsage: "<file>",
			Action:    ExportAction,
		},
		{
			Name:      "import",
			Usage:     "replace the saved model with one read from a file",
			ArgsUsage: "<file>",
			Action:    ImportAction,
		},
		{
			Name:   "labels",
			Usage:  "list labels and their example counts",
			Action: LabelsAction,
		},
		{
			Name:  "sessions",
			Usage: "list recent training sessions",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  flagLimit,
					Usage: "number of sessions to show",
					Value: 20,
				},
			},
			Action: SessionsAction,
		},
		{
			Name:   "clear",
			Usage:  "delete the saved model",
			Action: ClearAction,
		},
	},
}

func main() {
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger returns a console logger at info level, or debug when asked.
func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if debug {
		cfg.Level.SetLevel(zap.DebugLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Sugar().Named("mudra"), nil
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(homeDir, ".mudra")
}
