package hosts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"svcscan/internal/audit"
)

// ErrNoHosts is wrapped by every "nothing to process" outcome so callers can
// tell an empty candidate list apart from a configuration failure. The
// wrapping message names the source branch that came up empty.
var ErrNoHosts = errors.New("no hosts to process")

// Directory is the subset of directory-service operations the resolver needs.
type Directory interface {
	// OUExists checks that a distinguished name resolves to an existing
	// object. A missing object is not an error.
	OUExists(ctx context.Context, dn string) (bool, error)
	// ComputersByName returns computer objects whose host address contains
	// pattern, optionally restricted to the ouDN subtree, sorted by display name.
	ComputersByName(ctx context.Context, pattern, ouDN string) ([]audit.DirectoryEntry, error)
	// ServerComputers returns computer objects whose operating system
	// attribute contains "server", with the same scoping and ordering.
	ServerComputers(ctx context.Context, ouDN string) ([]audit.DirectoryEntry, error)
}

// Resolver produces the ordered candidate host list for a run. Directory may
// be nil when the configuration names an input file, in which case no
// directory connectivity is ever required.
type Resolver struct {
	Directory Directory
}

// Resolve picks the host source from the configuration:
//
//  1. ComputerName only: directory query by host-address substring.
//  2. InputFile only: file lines verbatim, no validation, no dedup.
//  3. Both: file lines kept when they contain ComputerName.
//  4. Neither: directory query for server-class operating systems.
//
// Directory branches validate the OU scope before querying.
func (r *Resolver) Resolve(ctx context.Context, cfg audit.Config) ([]audit.HostSpec, error) {
	switch {
	case cfg.ComputerName != "" && cfg.InputFile == "":
		entries, err := r.queryDirectory(ctx, cfg.OrganizationalUnit, func(dirCtx context.Context) ([]audit.DirectoryEntry, error) {
			return r.Directory.ComputersByName(dirCtx, cfg.ComputerName, cfg.OrganizationalUnit)
		})
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("%w: no directory computers matched name filter %q", ErrNoHosts, cfg.ComputerName)
		}
		return entriesToHosts(entries), nil

	case cfg.InputFile != "" && cfg.ComputerName == "":
		lines, err := readHostFile(cfg.InputFile)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("%w: input file %s contains no host names", ErrNoHosts, cfg.InputFile)
		}
		return linesToHosts(lines), nil

	case cfg.InputFile != "" && cfg.ComputerName != "":
		lines, err := readHostFile(cfg.InputFile)
		if err != nil {
			return nil, err
		}
		kept := lines[:0]
		for _, line := range lines {
			if containsFold(line, cfg.ComputerName) {
				kept = append(kept, line)
			}
		}
		if len(kept) == 0 {
			return nil, fmt.Errorf("%w: no hosts in %s matched name filter %q", ErrNoHosts, cfg.InputFile, cfg.ComputerName)
		}
		return linesToHosts(kept), nil

	default:
		entries, err := r.queryDirectory(ctx, cfg.OrganizationalUnit, func(dirCtx context.Context) ([]audit.DirectoryEntry, error) {
			return r.Directory.ServerComputers(dirCtx, cfg.OrganizationalUnit)
		})
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("%w: no server-class computers found in the directory", ErrNoHosts)
		}
		return entriesToHosts(entries), nil
	}
}

func (r *Resolver) queryDirectory(ctx context.Context, ouDN string, query func(context.Context) ([]audit.DirectoryEntry, error)) ([]audit.DirectoryEntry, error) {
	if r.Directory == nil {
		return nil, errors.New("directory service is not available")
	}
	if ouDN != "" {
		ok, err := r.Directory.OUExists(ctx, ouDN)
		if err != nil {
			return nil, fmt.Errorf("validating organizational unit %s: %w", ouDN, err)
		}
		if !ok {
			return nil, fmt.Errorf("organizational unit %s does not exist", ouDN)
		}
	}
	entries, err := query(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory query: %w", err)
	}
	return entries, nil
}

// readHostFile returns the file's lines verbatim, one host per line. Only
// line terminators are stripped; the content is not validated.
func readHostFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading host list: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading host list: %w", err)
	}
	return lines, nil
}

func linesToHosts(lines []string) []audit.HostSpec {
	out := make([]audit.HostSpec, 0, len(lines))
	for _, line := range lines {
		out = append(out, audit.HostSpec{Host: line})
	}
	return out
}

func entriesToHosts(entries []audit.DirectoryEntry) []audit.HostSpec {
	out := make([]audit.HostSpec, 0, len(entries))
	for i := range entries {
		out = append(out, audit.HostSpec{Host: entries[i].HostName(), Entry: &entries[i]})
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
