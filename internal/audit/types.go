package audit

import (
	"context"
	"errors"
	"time"
)

// Config describes the parameters of an audit run.
type Config struct {
	AccountName        string // substring match against service start names
	LiteralAccountName string // exact match against service start names
	ComputerName       string // optional host-name substring filter
	InputFile          string // optional host list file, one name per line
	OrganizationalUnit string // optional directory subtree DN
	Folder             string // output directory for report files
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.AccountName != "" && c.LiteralAccountName != "" {
		return ErrBothFilters
	}
	if c.AccountName == "" && c.LiteralAccountName == "" {
		return ErrNoFilter
	}
	return nil
}

// DirectoryEntry is a computer object returned by a directory query.
type DirectoryEntry struct {
	Name            string
	DisplayName     string
	DNSHostName     string
	DN              string
	OperatingSystem string
}

// SortName returns the name directory results are ordered by: the display
// name when the object has one, the plain name otherwise.
func (e DirectoryEntry) SortName() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Name
}

// HostName returns the identifier used to reach the machine on the network.
func (e DirectoryEntry) HostName() string {
	if e.DNSHostName != "" {
		return e.DNSHostName
	}
	return e.Name
}

// HostSpec is a single candidate machine. Entry is set only for hosts
// sourced from a directory query.
type HostSpec struct {
	Host  string
	Entry *DirectoryEntry
}

// Service is one entry from a host's service manager.
type Service struct {
	Name        string
	DisplayName string
	StartName   string
}

// ServiceRecord is a service whose start name satisfied the active filter.
type ServiceRecord struct {
	HostName    string
	ServiceName string
	DisplayName string
	StartName   string
}

// OfflineNotice records a host that failed the liveness probe.
type OfflineNotice struct {
	Host string
	At   time.Time
}

// RunReport is the accumulated outcome of a run. Matches and Offline are
// append-only and keep host processing order.
type RunReport struct {
	Matches        []ServiceRecord
	Offline        []OfflineNotice
	HostsAttempted int
	Started        time.Time
	Finished       time.Time
}

// Prober reports whether a host answers a liveness probe. Probe failures of
// any kind are folded into an unreachable answer.
type Prober interface {
	Reachable(ctx context.Context, host string) bool
}

// ServiceEnumerator lists all services registered on a reachable host.
type ServiceEnumerator interface {
	Services(ctx context.Context, host string) ([]Service, error)
}

var (
	// ErrBothFilters indicates both account filters were supplied.
	ErrBothFilters = errors.New("account-name and literal-account-name are mutually exclusive")
	// ErrNoFilter indicates neither account filter was supplied.
	ErrNoFilter = errors.New("either account-name or literal-account-name is required")
)
