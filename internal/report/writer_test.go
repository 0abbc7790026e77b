package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"svcscan/internal/audit"
)

func sampleMatches() []audit.ServiceRecord {
	return []audit.ServiceRecord{
		{HostName: "SQL1", ServiceName: "MSSQLSERVER", DisplayName: "SQL Server (MSSQLSERVER)", StartName: `DOMAIN\svc_sql`},
		{HostName: "WEB1", ServiceName: "W3SVC", DisplayName: "World Wide Web Publishing Service", StartName: `DOMAIN\svc_web`},
	}
}

func TestRenderTableAlignment(t *testing.T) {
	var out strings.Builder
	renderTable(&out, sampleMatches(), 0)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "SystemName"))
	require.True(t, strings.HasPrefix(lines[1], strings.Repeat("-", len("SystemName"))))

	// Every column starts at the same offset on every row. The first column
	// is as wide as its header plus the two-space gap.
	nameCol := len("SystemName") + 2
	require.Equal(t, "Name", strings.TrimRight(lines[0][nameCol:nameCol+len("MSSQLSERVER")], " "))
	require.Equal(t, "MSSQLSERVER", lines[2][nameCol:nameCol+len("MSSQLSERVER")])
}

func TestRenderTableEmpty(t *testing.T) {
	var out strings.Builder
	renderTable(&out, nil, 0)
	require.Equal(t, "No matching services found.\n", out.String())
}

func TestRenderTableCapsLineWidth(t *testing.T) {
	long := audit.ServiceRecord{
		HostName:    "SQL1",
		ServiceName: strings.Repeat("x", 120),
		DisplayName: strings.Repeat("y", 120),
		StartName:   `DOMAIN\svc_sql`,
	}

	var out strings.Builder
	renderTable(&out, []audit.ServiceRecord{long}, resultsFileWidth)

	for _, line := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		require.LessOrEqual(t, len(line), resultsFileWidth)
	}
}

func TestWriteResultsFile(t *testing.T) {
	folder := t.TempDir()
	w := &Writer{Folder: folder, Console: &strings.Builder{}}

	filter, err := audit.NewAccountFilter("svc", "")
	require.NoError(t, err)
	require.NoError(t, w.WriteResults(filter, sampleMatches()))

	data, err := os.ReadFile(filepath.Join(folder, ResultsFileName))
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, `substring "svc"`)
	require.Contains(t, content, "SystemName")
	require.Contains(t, content, "MSSQLSERVER")
	require.Contains(t, content, `DOMAIN\svc_web`)
}

func TestAppendOfflineAppends(t *testing.T) {
	folder := t.TempDir()
	w := &Writer{Folder: folder, Console: &strings.Builder{}}

	at := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)
	require.NoError(t, w.AppendOffline(audit.OfflineNotice{Host: "DEAD1", At: at}))
	require.NoError(t, w.AppendOffline(audit.OfflineNotice{Host: "DEAD2", At: at.Add(time.Minute)}))

	data, err := os.ReadFile(filepath.Join(folder, ErrorsFileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Computer DEAD1 was not online 2026-08-31 10:30:00", lines[0])
	require.Equal(t, "Computer DEAD2 was not online 2026-08-31 10:31:00", lines[1])
}

func TestFormatElapsed(t *testing.T) {
	d := 26*time.Hour + 3*time.Minute + 4*time.Second + 56*time.Millisecond
	require.Equal(t, "1 days, 2 hours, 3 minutes, 4.056 seconds", formatElapsed(d))
	require.Equal(t, "0 days, 0 hours, 0 minutes, 0.000 seconds", formatElapsed(0))
	require.Equal(t, "0 days, 0 hours, 0 minutes, 0.000 seconds", formatElapsed(-time.Second))
}
