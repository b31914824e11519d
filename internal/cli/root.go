// Package cli implements the elektronctl commands: offline note synthesis,
// refinement and export, transcript confidence scoring and usage reports.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/elektron/internal/app"
	"github.com/MrWong99/elektron/internal/config"
	"github.com/MrWong99/elektron/internal/observe"
	"github.com/MrWong99/elektron/internal/soap"
	"github.com/MrWong99/elektron/pkg/provider/llm"
)

// Output formats.
const (
	formatJSON = "json"
	formatText = "text"
)

// options holds the persistent flags shared by all commands.
type options struct {
	configPath string
	format     string
}

// NewRootCmd returns the top-level command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "elektronctl",
		Short:         "Elektron clinical documentation tools",
		Long:          "Generate, refine and export SOAP notes from the command line, score transcripts and inspect usage.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: $ELEKTRON_CONFIG; none means template-only synthesis)")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", formatJSON, "Output format: json or text")

	root.AddCommand(
		newSynthesizeCmd(opts),
		newRefineCmd(opts),
		newExportCmd(),
		newTemplatesCmd(),
		newConfidenceCmd(),
		newStatsCmd(opts),
		newLogsCmd(opts),
	)
	return root
}

// loadConfig returns the config named by --config or $ELEKTRON_CONFIG, or
// a defaulted empty config when neither is set.
func (o *options) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("ELEKTRON_CONFIG")
	}
	if path == "" {
		cfg := &config.Config{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return config.Load(path)
}

// engine builds a synthesis engine around the configured primary LLM.
// Fallbacks and breakers are left to the server. An LLM that fails to load
// is reported on stderr and the engine runs on templates.
func (o *options) engine(cmd *cobra.Command) (*soap.Engine, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	var model llm.Provider
	if cfg.Providers.LLM.Name != "" {
		reg := config.NewRegistry()
		app.RegisterBuiltinProviders(reg)
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			err = fmt.Errorf("%w: llm provider %q: %w", soap.ErrBackendUnavailable, cfg.Providers.LLM.Name, err)
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; using templates\n", err)
		} else {
			model = p
		}
	}
	return app.NewEngine(cfg.Synthesis, model, observe.DefaultMetrics()), nil
}

func (o *options) validateFormat() error {
	if o.format != formatJSON && o.format != formatText {
		return fmt.Errorf("unknown format %q (want json or text)", o.format)
	}
	return nil
}

// readInput returns args joined by spaces, or stdin when args is empty.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

// readFile returns the content of path, or stdin for "-".
func readFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
