package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var completionInstall bool

// completionTarget describes where an installed completion script lives
// relative to the user's home directory.
type completionTarget struct {
	dir  []string
	file string
	hint string
}

var completionTargets = map[string]completionTarget{
	"bash": {
		dir:  []string{".local", "share", "bash-completion", "completions"},
		file: "weblog",
		hint: "Restart your shell or run: source %s",
	},
	"zsh": {
		dir:  []string{".local", "share", "zsh", "site-functions"},
		file: "_weblog",
		hint: "Ensure the directory of %s is in your fpath, then run: autoload -Uz compinit && compinit",
	},
	"fish": {
		dir:  []string{".config", "fish", "completions"},
		file: "weblog.fish",
		hint: "Completions for %s load in new fish sessions automatically.",
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion SHELL",
	Short: "Generate or install shell completions for weblog",
	Long: `Print the weblog completion script for the given shell, or install it
into the user's completion directory with --install.

Supported shells: bash, zsh, fish, powershell

  weblog completion bash --install
  eval "$(weblog completion zsh)"
  weblog completion fish | source`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		shell := args[0]

		if completionInstall {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("detecting home directory: %w", err)
			}
			target, err := installCompletion(shell, home)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s completions installed to %s\n", shell, target)
			fmt.Fprintf(out, completionTargets[shell].hint+"\n", target)
			return nil
		}

		return generateCompletion(cmd.OutOrStdout(), shell)
	},
}

func generateCompletion(w io.Writer, shell string) error {
	switch shell {
	case "bash":
		return rootCmd.GenBashCompletionV2(w, true)
	case "zsh":
		return rootCmd.GenZshCompletion(w)
	case "fish":
		return rootCmd.GenFishCompletion(w, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, powershell)", shell)
	}
}

// installCompletion writes the completion script for shell under home and
// returns the path it wrote.
func installCompletion(shell, home string) (string, error) {
	t, ok := completionTargets[shell]
	if !ok {
		if shell == "powershell" {
			return "", fmt.Errorf("automatic install is not supported for PowerShell; add the output of 'weblog completion powershell' to your profile")
		}
		return "", fmt.Errorf("unsupported shell %q", shell)
	}

	dir := filepath.Join(append([]string{home}, t.dir...)...)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating completion directory: %w", err)
	}
	target := filepath.Join(dir, t.file)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating completion file %s: %w", target, err)
	}
	writeErr := generateCompletion(f, shell)
	closeErr := f.Close()
	if writeErr != nil {
		return "", writeErr
	}
	if closeErr != nil {
		return "", fmt.Errorf("closing completion file %s: %w", target, closeErr)
	}
	return target, nil
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false,
		"Install completions into your shell's completion directory")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}
