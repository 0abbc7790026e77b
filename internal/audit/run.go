package audit

import (
	"context"
	"log/slog"
	"time"
)

// Runner walks a host list one machine at a time, gates the service query on
// the liveness probe and accumulates matches in host order.
type Runner struct {
	Filter   AccountFilter
	Prober   Prober
	Services ServiceEnumerator

	// OnOffline, when set, is called for each unreachable host at the moment
	// it is found, before the run completes. The report writer uses it to
	// append the errors file as the run progresses.
	OnOffline func(OfflineNotice)
}

// Run processes the hosts strictly in order and returns the finished report.
// Unreachable hosts get one offline notice each. A host that answers the
// probe but fails the service query contributes nothing; only probe failures
// are recorded.
func (r *Runner) Run(ctx context.Context, hostList []HostSpec) RunReport {
	report := RunReport{
		HostsAttempted: len(hostList),
		Started:        time.Now(),
	}

	for _, host := range hostList {
		slog.Debug("testing host", "host", host.Host)

		if !r.Prober.Reachable(ctx, host.Host) {
			notice := OfflineNotice{Host: host.Host, At: time.Now()}
			report.Offline = append(report.Offline, notice)
			if r.OnOffline != nil {
				r.OnOffline(notice)
			}
			continue
		}

		services, err := r.Services.Services(ctx, host.Host)
		if err != nil {
			// Reachable but the query failed: skip the host without a
			// notice. The errors file records offline hosts only.
			slog.Debug("service query failed", "host", host.Host, "err", err)
			continue
		}

		matched := 0
		for _, svc := range services {
			if !r.Filter.Match(svc.StartName) {
				continue
			}
			report.Matches = append(report.Matches, ServiceRecord{
				HostName:    host.Host,
				ServiceName: svc.Name,
				DisplayName: svc.DisplayName,
				StartName:   svc.StartName,
			})
			matched++
		}
		slog.Debug("host done", "host", host.Host, "services", len(services), "matched", matched)
	}

	report.Finished = time.Now()
	return report
}
