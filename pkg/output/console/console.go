package console

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ericogr/heating-panel-bridge/pkg/output"
	"github.com/ericogr/heating-panel-bridge/pkg/telemetry"
)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{w: os.Stdout} }

func NewWriter(w io.Writer) output.Output { return &ConsoleOutput{w: w} }

func (c *ConsoleOutput) Publish(batches []telemetry.Batch) error {
	for _, b := range batches {
		if _, err := fmt.Fprintln(c.w, formatBatch(b)); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }

// formatBatch renders tags and fields sorted by key so lines are stable.
func formatBatch(b telemetry.Batch) string {
	var sb strings.Builder
	if !b.Time.IsZero() {
		sb.WriteString(b.Time.Format(time.RFC3339))
		sb.WriteByte(' ')
	}
	sb.WriteString(b.Measurement)
	for _, k := range sortedKeys(b.Tags) {
		fmt.Fprintf(&sb, " %s=%s", k, b.Tags[k])
	}
	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %q=%v", k, b.Fields[k])
	}
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
