// Package ghoutput publishes pass results to GitHub Actions when rrbot runs as a workflow step.
package ghoutput

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	outputEnv  = "GITHUB_OUTPUT"
	summaryEnv = "GITHUB_STEP_SUMMARY"
)

// Write appends values as step outputs to the file named by GITHUB_OUTPUT.
// Outside GitHub Actions it does nothing.
func Write(values map[string]string) error {
	return WriteTo(strings.TrimSpace(os.Getenv(outputEnv)), values)
}

// WriteTo appends values to path in sorted key order. Multi-line values use the
// name<<DELIMITER form.
func WriteTo(path string, values map[string]string) error {
	if path == "" || len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		value := strings.ReplaceAll(values[key], "\r\n", "\n")
		if !strings.Contains(value, "\n") {
			fmt.Fprintf(&b, "%s=%s\n", key, value)
			continue
		}
		delim := "RRBOT_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		fmt.Fprintf(&b, "%s<<%s\n%s\n%s\n", key, delim, strings.TrimSuffix(value, "\n"), delim)
	}
	return appendFile(path, b.String())
}

// AppendSummary appends markdown to the job summary named by GITHUB_STEP_SUMMARY.
func AppendSummary(markdown string) error {
	path := strings.TrimSpace(os.Getenv(summaryEnv))
	if path == "" || strings.TrimSpace(markdown) == "" {
		return nil
	}
	if !strings.HasSuffix(markdown, "\n") {
		markdown += "\n"
	}
	return appendFile(path, markdown)
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
