// Package report renders the run outcome: a column-aligned table on the
// console, the same table width-capped in the results file, and one
// appended line per offline host in the errors file.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"svcscan/internal/audit"
)

const (
	// ResultsFileName holds the match table.
	ResultsFileName = "ServersWithServiceAccount.txt"
	// ErrorsFileName collects offline-host notices, append mode.
	ErrorsFileName = "ServersWithServiceAccountErrors.txt"

	resultsFileWidth = 200
	timestampLayout  = "2006-01-02 15:04:05"
)

var tableHeader = [4]string{"SystemName", "Name", "DisplayName", "StartName"}

// Writer emits the report files into Folder and human output to Console.
type Writer struct {
	Folder  string
	Console io.Writer
}

// New returns a Writer targeting folder, with console output on stdout.
func New(folder string) *Writer {
	return &Writer{Folder: folder, Console: os.Stdout}
}

// AppendOffline adds one notice line to the errors file. The file is opened
// per write so a partial run still leaves a trace and never holds a lock.
func (w *Writer) AppendOffline(notice audit.OfflineNotice) error {
	path := filepath.Join(w.Folder, ErrorsFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening errors file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	_, err = fmt.Fprintf(f, "Computer %s was not online %s\n", notice.Host, notice.At.Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("appending errors file: %w", err)
	}
	return nil
}

// WriteResults renders the match table to the console and to the results
// file. The file copy is capped at 200 columns and carries a header naming
// the filter that produced it.
func (w *Writer) WriteResults(filter audit.AccountFilter, matches []audit.ServiceRecord) error {
	renderTable(w.Console, matches, 0)

	path := filepath.Join(w.Folder, ResultsFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	fmt.Fprintf(f, "Services with start name matching %s, generated %s\n\n",
		filter, time.Now().Format(timestampLayout))
	renderTable(f, matches, resultsFileWidth)
	return nil
}

// PrintSummary writes the run totals and timing breakdown to the console.
func (w *Writer) PrintSummary(report audit.RunReport) {
	fmt.Fprintln(w.Console)
	fmt.Fprintf(w.Console, "Hosts attempted:   %d\n", report.HostsAttempted)
	fmt.Fprintf(w.Console, "Hosts not online:  %d\n", len(report.Offline))
	fmt.Fprintf(w.Console, "Services matched:  %d\n", len(report.Matches))
	fmt.Fprintf(w.Console, "Started:  %s\n", report.Started.Format(timestampLayout))
	fmt.Fprintf(w.Console, "Finished: %s\n", report.Finished.Format(timestampLayout))
	fmt.Fprintf(w.Console, "Elapsed:  %s\n", formatElapsed(report.Finished.Sub(report.Started)))
}

// renderTable writes a fixed-width table with a dashed underline per column.
// maxWidth of zero leaves lines uncapped; otherwise each line is truncated.
func renderTable(out io.Writer, matches []audit.ServiceRecord, maxWidth int) {
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matching services found.")
		return
	}

	widths := [4]int{}
	for i, h := range tableHeader {
		widths[i] = len(h)
	}
	for _, m := range matches {
		for i, cell := range recordCells(m) {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells [4]string) {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			if pad := widths[i] - len(cell); pad > 0 && i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		line := b.String()
		if maxWidth > 0 && len(line) > maxWidth {
			line = line[:maxWidth]
		}
		fmt.Fprintln(out, line)
	}

	writeRow(tableHeader)
	writeRow([4]string{
		strings.Repeat("-", widths[0]),
		strings.Repeat("-", widths[1]),
		strings.Repeat("-", widths[2]),
		strings.Repeat("-", widths[3]),
	})
	for _, m := range matches {
		writeRow(recordCells(m))
	}
}

func recordCells(m audit.ServiceRecord) [4]string {
	return [4]string{m.HostName, m.ServiceName, m.DisplayName, m.StartName}
}

// formatElapsed breaks a duration into days, hours, minutes and seconds with
// millisecond precision.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	millis := (d - seconds*time.Second) / time.Millisecond

	return fmt.Sprintf("%d days, %d hours, %d minutes, %d.%03d seconds",
		days, hours, minutes, seconds, millis)
}
