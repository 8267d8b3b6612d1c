package common

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
)

type CIResult struct {
	OK      bool     `json:"ok"`
	Title   string   `json:"title"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func PrintCIResult(ok bool, title string, details []string, err error) {
	result := CIResult{OK: ok, Title: title, Details: details}
	if err != nil {
		result.Error = err.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

// RecordRun reports a finished tool command to the metrics pipeline.
func RecordRun(tool, command string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ctx := context.Background()
	observability.RecordToolCommandRun(ctx, tool, command, status)
	observability.RecordToolCommandDuration(ctx, tool, command, status, time.Since(start))
}
