package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	offline map[string]bool
	probed  []string
}

func (p *fakeProber) Reachable(_ context.Context, host string) bool {
	p.probed = append(p.probed, host)
	return !p.offline[host]
}

type fakeEnumerator struct {
	services map[string][]Service
	fail     map[string]bool
}

func (e *fakeEnumerator) Services(_ context.Context, host string) ([]Service, error) {
	if e.fail[host] {
		return nil, errors.New("access denied")
	}
	return e.services[host], nil
}

func hostList(names ...string) []HostSpec {
	out := make([]HostSpec, 0, len(names))
	for _, n := range names {
		out = append(out, HostSpec{Host: n})
	}
	return out
}

func TestRunMatchesInHostOrder(t *testing.T) {
	filter, err := NewAccountFilter("svc", "")
	require.NoError(t, err)

	enum := &fakeEnumerator{services: map[string][]Service{
		"SQL1": {
			{Name: "MSSQLSERVER", DisplayName: "SQL Server", StartName: `DOMAIN\svc_sql`},
			{Name: "Spooler", DisplayName: "Print Spooler", StartName: "LocalSystem"},
		},
		"WEB1": {
			{Name: "W3SVC", DisplayName: "WWW Publishing", StartName: `DOMAIN\SVC_WEB`},
		},
	}}
	runner := &Runner{Filter: filter, Prober: &fakeProber{}, Services: enum}

	report := runner.Run(context.Background(), hostList("SQL1", "WEB1"))

	require.Len(t, report.Matches, 2)
	require.Equal(t, "SQL1", report.Matches[0].HostName)
	require.Equal(t, "MSSQLSERVER", report.Matches[0].ServiceName)
	require.Equal(t, "WEB1", report.Matches[1].HostName)
	require.Empty(t, report.Offline)
	require.Equal(t, 2, report.HostsAttempted)
	require.False(t, report.Finished.Before(report.Started))
}

func TestRunRecordsOfflineHosts(t *testing.T) {
	filter, err := NewAccountFilter("svc", "")
	require.NoError(t, err)

	prober := &fakeProber{offline: map[string]bool{"DEAD1": true}}
	enum := &fakeEnumerator{services: map[string][]Service{
		"SQL1": {{Name: "MSSQLSERVER", StartName: `DOMAIN\svc_sql`}},
	}}

	var notified []string
	runner := &Runner{
		Filter:   filter,
		Prober:   prober,
		Services: enum,
		OnOffline: func(n OfflineNotice) {
			notified = append(notified, n.Host)
		},
	}

	report := runner.Run(context.Background(), hostList("DEAD1", "SQL1"))

	require.Len(t, report.Offline, 1)
	require.Equal(t, "DEAD1", report.Offline[0].Host)
	require.False(t, report.Offline[0].At.IsZero())
	require.Equal(t, []string{"DEAD1"}, notified)

	// The offline host contributes no matches; the live one still does.
	require.Len(t, report.Matches, 1)
	require.Equal(t, "SQL1", report.Matches[0].HostName)
}

func TestRunQueryFailureIsSilent(t *testing.T) {
	filter, err := NewAccountFilter("svc", "")
	require.NoError(t, err)

	enum := &fakeEnumerator{
		services: map[string][]Service{
			"SQL1": {{Name: "MSSQLSERVER", StartName: `DOMAIN\svc_sql`}},
		},
		fail: map[string]bool{"LOCKED1": true},
	}
	runner := &Runner{Filter: filter, Prober: &fakeProber{}, Services: enum}

	report := runner.Run(context.Background(), hostList("LOCKED1", "SQL1"))

	// Reachable-but-failed hosts end up in neither sequence.
	require.Empty(t, report.Offline)
	require.Len(t, report.Matches, 1)
	require.Equal(t, "SQL1", report.Matches[0].HostName)
}

func TestRunProcessesDuplicatesVerbatim(t *testing.T) {
	filter, err := NewAccountFilter("svc", "")
	require.NoError(t, err)

	prober := &fakeProber{}
	enum := &fakeEnumerator{services: map[string][]Service{
		"SQL1": {{Name: "MSSQLSERVER", StartName: `DOMAIN\svc_sql`}},
	}}
	runner := &Runner{Filter: filter, Prober: prober, Services: enum}

	report := runner.Run(context.Background(), hostList("SQL1", "SQL1"))

	require.Equal(t, []string{"SQL1", "SQL1"}, prober.probed)
	require.Len(t, report.Matches, 2)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Config{AccountName: "svc"}.Validate())
	require.NoError(t, Config{LiteralAccountName: "svc@domain.tld"}.Validate())
	require.ErrorIs(t, Config{}.Validate(), ErrNoFilter)
	require.ErrorIs(t, Config{AccountName: "a", LiteralAccountName: "b"}.Validate(), ErrBothFilters)
}

func TestDirectoryEntryHostName(t *testing.T) {
	e := DirectoryEntry{Name: "SQL1", DNSHostName: "sql1.domain.tld"}
	require.Equal(t, "sql1.domain.tld", e.HostName())

	e.DNSHostName = ""
	require.Equal(t, "SQL1", e.HostName())
}
