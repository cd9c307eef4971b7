package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCompletion(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { completionInstall = false })

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"completion"}, args...))
	err := rootCmd.Execute()
	return stdout.String(), err
}

func TestCompletionCommand_DisablesDefault(t *testing.T) {
	if !rootCmd.CompletionOptions.DisableDefaultCmd {
		t.Error("expected Cobra default completion command to be disabled")
	}
}

func TestCompletionCommand_NoArgsShowsHelp(t *testing.T) {
	out, err := runCompletion(t)
	if err != nil {
		t.Fatalf("completion with no args should show help, not error: %v", err)
	}
	if !strings.Contains(out, "Supported shells") {
		t.Errorf("expected help output, got:\n%s", out)
	}
}

func TestCompletionCommand_Generate(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "__start_weblog"},
		{"zsh", "compdef"},
		{"fish", "complete -c weblog"},
		{"powershell", "Register-ArgumentCompleter"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			out, err := runCompletion(t, tt.shell)
			if err != nil {
				t.Fatalf("completion %s failed: %v", tt.shell, err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("%s completion output should contain %q", tt.shell, tt.want)
			}
		})
	}
}

func TestCompletionCommand_UnsupportedShell(t *testing.T) {
	if _, err := runCompletion(t, "nushell"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestCompletionCommand_Install(t *testing.T) {
	tests := []struct {
		shell  string
		target []string
		want   string
	}{
		{"bash", []string{".local", "share", "bash-completion", "completions", "weblog"}, "__start_weblog"},
		{"zsh", []string{".local", "share", "zsh", "site-functions", "_weblog"}, "compdef"},
		{"fish", []string{".config", "fish", "completions", "weblog.fish"}, "complete"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv("HOME", home)

			out, err := runCompletion(t, tt.shell, "--install")
			if err != nil {
				t.Fatalf("completion %s --install failed: %v", tt.shell, err)
			}

			target := filepath.Join(append([]string{home}, tt.target...)...)
			data, err := os.ReadFile(target)
			if err != nil {
				t.Fatalf("expected completion file at %s: %v", target, err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("completion file should contain %q", tt.want)
			}
			if !strings.Contains(out, "installed to "+target) {
				t.Errorf("expected install message, got:\n%s", out)
			}
		})
	}
}

func TestInstallCompletion_PowershellUnsupported(t *testing.T) {
	_, err := installCompletion("powershell", t.TempDir())
	if err == nil {
		t.Fatal("expected error for powershell install")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("error should mention 'not supported', got: %v", err)
	}
}
