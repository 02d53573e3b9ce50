package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/okian/beatfeat/internal/adapters/mq/worker"
)

// maxErrorWidth truncates long causes in the failure table.
const maxErrorWidth = 80

func renderReport(w io.Writer, report worker.Report, colorize bool) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)
	for _, c := range []*color.Color{green, yellow, red} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	if len(report.Failures) > 0 {
		fmt.Fprintln(w, renderFailures(report))
	}

	_, _ = green.Fprintf(w, "wrote %d of %d rows", report.Written, report.Total)
	fmt.Fprintf(w, " in %s (run %s)\n", report.Duration.Round(time.Millisecond), report.RunID)
	if n := len(report.Failures); n > 0 {
		_, _ = yellow.Fprintf(w, "%d item(s) failed\n", n)
	}
	if report.Interrupted {
		_, _ = red.Fprintf(w, "interrupted: %d item(s) never ran\n", report.Skipped)
	}
}

func renderFailures(report worker.Report) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Reference", "Kind", "Error"})
	for _, f := range report.Failures {
		tw.AppendRow(table.Row{strconv.Itoa(f.Index), f.Reference, string(f.Kind), text.Trim(f.Err.Error(), maxErrorWidth)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
