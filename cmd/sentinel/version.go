package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sentinel/internal/analyzer"
	"github.com/nao1215/sentinel/internal/model"
)

// Version information set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo describes the running binary and what it can scan.
type buildInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	Built     string   `json:"built"`
	Modified  bool     `json:"modified,omitempty"`
	GoVersion string   `json:"go_version"`
	Chains    []string `json:"chains"`
	Rules     int      `json:"rules"`
}

// currentBuild merges ldflags values with the VCS stamp of the binary.
// ldflags win; missing values fall back to "(devel)" and "unknown".
func currentBuild() buildInfo {
	b := buildInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Rules:     len(analyzer.DefaultRules()),
	}
	for _, c := range model.SupportedChains() {
		b.Chains = append(b.Chains, c.String())
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if b.Version == "" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = s.Value
				}
			case "vcs.time":
				if b.Built == "" {
					b.Built = s.Value
				}
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}

	if len(b.Commit) > 7 {
		b.Commit = b.Commit[:7]
	}
	if b.Version == "" {
		b.Version = "(devel)"
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Built == "" {
		b.Built = "unknown"
	}
	return b
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit hash and build date of sentinel, together
with the supported chains and the number of built-in detection rules.`,
		Args: cobra.NoArgs,
		RunE: runVersionCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Print version information as JSON")
	return cmd
}

func runVersionCmd(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	b := currentBuild()
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}

	commitLine := b.Commit
	if b.Modified {
		commitLine += " (modified)"
	}
	fmt.Fprintf(out, "sentinel version %s\n", b.Version)
	fmt.Fprintf(out, "  commit: %s\n", commitLine)
	fmt.Fprintf(out, "  built:  %s\n", b.Built)
	fmt.Fprintf(out, "  go:     %s\n", b.GoVersion)
	fmt.Fprintf(out, "  chains: %s\n", strings.Join(b.Chains, ", "))
	fmt.Fprintf(out, "  rules:  %d built-in\n", b.Rules)
	return nil
}
