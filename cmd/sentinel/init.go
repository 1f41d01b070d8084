package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/nao1215/sentinel/internal/config"
	"github.com/nao1215/sentinel/internal/model"
)

//go:embed templates/sentinel.yaml.tmpl
var configTemplateText string

var configTemplate = template.Must(template.New("sentinel.yaml").Parse(configTemplateText))

// templateValues fills the generated configuration file.
type templateValues struct {
	Chain          model.Chain
	Timeout        time.Duration
	ReportDir      string
	SourceCacheTTL time.Duration
	ExplorerRate   float64
	BotWorkers     int
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Sentinel configuration file",
		Long: `Initialize creates a new .sentinel configuration file in the current directory.

The generated file includes:
- The default chain and request timeout
- Commented per-chain RPC and explorer overrides
- Commented examples of additional detection rules
- Telegram bot settings

Examples:
  # Create .sentinel in current directory
  sentinel init

  # Default to BNB Smart Chain for targets given without a chain
  sentinel init --chain bsc

  # Create config file at a specific path, replacing an existing one
  sentinel init -o ~/.sentinel -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().StringP("chain", "n", config.DefaultChain.String(),
		"Default chain written to the file (ethereum, bsc, polygon)")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}
	chainName, err := flags.GetString("chain")
	if err != nil {
		return err
	}
	chain, err := model.ParseChain(chainName)
	if err != nil {
		return err
	}

	if !force {
		_, err := os.Stat(outputPath)
		switch {
		case err == nil:
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to check %s: %w", outputPath, err)
		}
	}

	content, err := renderConfig(chain)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	// The file may hold RPC keys and the bot token.
	if err := renameio.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s (default chain: %s)\n", outputPath, chain.Title())
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Private RPC endpoints per chain")
	fmt.Fprintln(out, "  - Additional detection rules")
	fmt.Fprintln(out, "  - Telegram bot settings")
	return nil
}

// renderConfig fills the template with the built-in defaults and chain.
func renderConfig(chain model.Chain) ([]byte, error) {
	var buf bytes.Buffer
	err := configTemplate.Execute(&buf, templateValues{
		Chain:          chain,
		Timeout:        config.DefaultTimeout,
		ReportDir:      config.DefaultReportDir,
		SourceCacheTTL: config.DefaultSourceCacheTTL,
		ExplorerRate:   config.DefaultExplorerRate,
		BotWorkers:     config.DefaultBotWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render config template: %w", err)
	}
	return buf.Bytes(), nil
}
