// Package output renders command results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

func Valid(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q, want table, json or yaml", format)
}

// Print writes v in the requested format. table is used for the table format
// and gets a tabwriter that is flushed afterwards.
func Print(w io.Writer, format string, v any, table func(tw *tabwriter.Writer)) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		return printYAML(w, v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// printYAML goes through JSON first so json tags and raw JSON payloads
// render the same way in both formats.
func printYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// Status colours a queue or conflict status for terminals.
func Status(s string) string {
	switch s {
	case "pending":
		return cyan(s)
	case "syncing":
		return yellow(s)
	case "failed", "conflicted":
		return red(s)
	}
	return s
}

func Online(online bool) string {
	if online {
		return green("online")
	}
	return red("offline")
}

func Good(s string) string { return green(s) }
func Warn(s string) string { return yellow(s) }
func Bad(s string) string  { return red(s) }

func Time(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// Compact renders a JSON document on one line, truncated to max runes.
func Compact(raw json.RawMessage, max int) string {
	if len(raw) == 0 {
		return "-"
	}
	s := string(raw)
	r := []rune(s)
	if max > 0 && len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

// Indent pretty-prints a JSON document, "null" for empty input.
func Indent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}
