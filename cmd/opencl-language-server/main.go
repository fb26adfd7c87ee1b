// Command opencl-language-server runs an LSP server that diagnoses OpenCL
// kernel sources against a locally discovered compute device.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Galarius/opencl-language-server/internal/clgateway"
	"github.com/Galarius/opencl-language-server/internal/config"
	"github.com/Galarius/opencl-language-server/internal/device"
	"github.com/Galarius/opencl-language-server/internal/diagnostics"
	"github.com/Galarius/opencl-language-server/internal/idgen"
	"github.com/Galarius/opencl-language-server/internal/jsonrpc"
	"github.com/Galarius/opencl-language-server/internal/lspsession"
	"github.com/Galarius/opencl-language-server/internal/obslog"
)

// version is overridden at release build time via -ldflags.
var version = "dev"

const name = "opencl-language-server"

// exit codes, per the original implementation's contract: clean shutdown
// succeeds, an exit without a prior shutdown fails, and an interrupt exits
// as if the process had received an uncaught SIGINT.
const (
	exitShutdownNotRequested = 1
	exitInterrupted          = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root, flags := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitShutdownNotRequested
	}
	return flags.exitCode
}

type rootFlags struct {
	enableFileLogging bool
	logFile           string
	logLevel          string
	logFormat         string
	configPath        string
	showVersion       bool

	exitCode int
}

func newRootCommand() (*cobra.Command, *rootFlags) {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           name,
		Short:         "Diagnose OpenCL kernel sources over the Language Server Protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.showVersion {
				fmt.Println(version)
				return nil
			}
			return runServer(cmd.Context(), flags)
		},
	}
	flags.bind(cmd.PersistentFlags())

	cmd.AddCommand(newDevicesCommand(flags), newDiagnoseCommand(flags))
	return cmd, flags
}

func (f *rootFlags) bind(flagSet *pflag.FlagSet) {
	flagSet.BoolVarP(&f.enableFileLogging, "enable-file-logging", "e", false, "Enable file logging")
	flagSet.StringVarP(&f.logFile, "log-file", "f", "opencl-language-server.log", "Path to log file")
	flagSet.StringVarP(&f.logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	flagSet.StringVar(&f.logFormat, "log-format", "color", "Log format: text, color, json")
	flagSet.StringVar(&f.configPath, "config", "", "Path to a JSONC defaults file")
	flagSet.BoolVarP(&f.showVersion, "version", "v", false, "Show version")
}

func newLogger(f *rootFlags) (*zap.Logger, error) {
	var sink io.Writer = io.Discard
	if f.enableFileLogging {
		file, err := os.OpenFile(f.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		sink = file
	}
	return obslog.New(sink, f.logLevel, f.logFormat)
}

// newEngine wires a Compiler Gateway and Diagnostics Engine, applying the
// local config file (if any) before the caller does anything else with it.
func newEngine(f *rootFlags, logger *zap.Logger) *diagnostics.Engine {
	gateway := clgateway.New(obslog.Named(logger, "clinfo"))
	engine := diagnostics.New(gateway, obslog.Named(logger, "diagnostics"))
	if f.configPath != "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			logger.Sugar().Warnw("failed to load local config, using defaults", "error", err)
		} else {
			config.Apply(cfg, engine)
		}
	}
	return engine
}

func runServer(ctx context.Context, f *rootFlags) error {
	logger, err := newLogger(f)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	engine := newEngine(f, logger)
	rpc := jsonrpc.New(obslog.Named(logger, "jrpc"))
	handler := lspsession.New(engine, rpc, idgen.UUIDGenerator{}, lspsession.ProcessExitHandler{}, obslog.Named(logger, "lsp"))
	loop := lspsession.NewLoop(rpc, handler, os.Stdout, obslog.Named(logger, "lsp"))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Sugar().Info("interrupt signal received, shutting down")
		loop.Interrupt()
	}()

	err = loop.Run(os.Stdin)
	if err == lspsession.ErrInterrupted {
		f.exitCode = exitInterrupted
		return nil
	}
	return err
}

func newDevicesCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Print discovered OpenCL devices as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(f)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			gateway := clgateway.New(obslog.Named(logger, "clinfo"))
			devices, err := gateway.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), devicesToJSON(devices))
		},
	}
}

func devicesToJSON(devices []device.Device) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(devices))
	for _, d := range devices {
		out = append(out, map[string]interface{}{
			"id":          d.ID,
			"description": d.Description,
			"powerIndex":  d.PowerIndex,
		})
	}
	return out
}

func newDiagnoseCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose <file>",
		Short: "Run a single diagnostics pass against a file on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(f)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			engine := newEngine(f, logger)
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			diags, err := engine.GetDiagnostics(cmd.Context(), diagnostics.Source{
				FilePath: args[0],
				Text:     string(text),
			})
			if err != nil {
				return fmt.Errorf("diagnose %s: %w", args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), diags)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
