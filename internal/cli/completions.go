package cli

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// logExtensions are suggested first when completing a log file argument.
var logExtensions = []string{"log", "txt"}

// completeLogFiles completes the FILE argument of analyze and dashboard. It
// offers previously uploaded files when the prefix matches one, and falls back
// to the shell's file completion filtered to log extensions.
func completeLogFiles(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	if uploads := uploadedFiles(toComplete); len(uploads) > 0 {
		return uploads, cobra.ShellCompDirectiveNoFileComp
	}
	return logExtensions, cobra.ShellCompDirectiveFilterFileExt
}

// uploadedFiles lists paths in the upload directory whose path starts with
// prefix. Nothing is returned when the upload store is not wired.
func uploadedFiles(prefix string) []string {
	if Uploads == nil || prefix == "" {
		return nil
	}
	dir := Uploads.Dir()
	if !strings.HasPrefix(prefix, dir) && !strings.HasPrefix(dir, prefix) {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// completeOutputFormats completes the analyze --output flag.
func completeOutputFormats(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	formats := []string{
		formatHuman + "\tstyled terminal report",
		formatJSON + "\tindented JSON",
		formatYAML + "\tYAML document",
	}
	var out []string
	for _, f := range formats {
		if strings.HasPrefix(f, toComplete) {
			out = append(out, f)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	analyzeCmd.ValidArgsFunction = completeLogFiles
	dashboardCmd.ValidArgsFunction = completeLogFiles
	_ = analyzeCmd.RegisterFlagCompletionFunc("output", completeOutputFormats)
}
