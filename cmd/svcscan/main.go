package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"svcscan/internal/audit"
	"svcscan/internal/directory"
	"svcscan/internal/hosts"
	"svcscan/internal/log"
	"svcscan/internal/probe"
	"svcscan/internal/report"
	"svcscan/internal/scm"
)

var (
	flagAccountName        string
	flagLiteralAccountName string
	flagComputerName       string
	flagInputFile          string
	flagOrganizationalUnit string
	flagFolder             string

	flagLDAPURL      string
	flagLDAPBindDN   string
	flagLDAPPassword string
	flagLDAPBaseDN   string

	flagSCMDomain   string
	flagSCMUser     string
	flagSCMPassword string

	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "svcscan",
	Short: "Report services running under a given logon account across servers",
	Long: `svcscan enumerates server-class machines from a directory service (or a
supplied host list), pings each one, queries reachable machines for their
services over the remote service manager and reports every service whose
logon account matches the requested filter.`,
	RunE: doRun,
	// Errors surface exactly once, through main's logger.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	f := rootCmd.Flags()
	f.StringVar(&flagAccountName, "account-name", "", "substring to find in service start names")
	f.StringVar(&flagLiteralAccountName, "literal-account-name", "", "exact service start name to find")
	f.StringVar(&flagComputerName, "computer-name", "", "only consider hosts whose name contains this value")
	f.StringVar(&flagInputFile, "input-file", "", "read host names from this file instead of the directory")
	f.StringVar(&flagOrganizationalUnit, "organizational-unit", "", "restrict the directory query to this OU subtree (DN)")
	f.StringVar(&flagOrganizationalUnit, "ou", "", "alias for --organizational-unit")
	f.StringVar(&flagFolder, "folder", "", "output directory for report files (default: current directory)")

	f.StringVar(&flagLDAPURL, "ldap-url", "", "directory server URL, e.g. ldap://dc01.domain.tld")
	f.StringVar(&flagLDAPBindDN, "ldap-bind-dn", "", "directory bind DN (empty for unauthenticated bind)")
	f.StringVar(&flagLDAPPassword, "ldap-password", "", "directory bind password (or SVCSCAN_LDAP_PASSWORD)")
	f.StringVar(&flagLDAPBaseDN, "ldap-base-dn", "", "directory search base (default: server defaultNamingContext)")

	f.StringVar(&flagSCMDomain, "scm-domain", "", "domain for the remote service manager query")
	f.StringVar(&flagSCMUser, "scm-user", "", "user for the remote service manager query (empty for anonymous)")
	f.StringVar(&flagSCMPassword, "scm-password", "", "password for the remote service manager query (or SVCSCAN_SCM_PASSWORD)")

	f.BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	_ = f.MarkHidden("ou")
	rootCmd.MarkFlagsOneRequired("account-name", "literal-account-name")
	rootCmd.MarkFlagsMutuallyExclusive("account-name", "literal-account-name")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("svcscan failed", "err", err)
		os.Exit(1)
	}
}

func doRun(cmd *cobra.Command, _ []string) error {
	slog.SetDefault(log.New(flagVerbose))
	ctx := cmd.Context()

	cfg := audit.Config{
		AccountName:        flagAccountName,
		LiteralAccountName: flagLiteralAccountName,
		ComputerName:       flagComputerName,
		InputFile:          flagInputFile,
		OrganizationalUnit: flagOrganizationalUnit,
		Folder:             flagFolder,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	filter, err := audit.NewAccountFilter(cfg.AccountName, cfg.LiteralAccountName)
	if err != nil {
		return err
	}

	// Startup gates: all configuration problems abort before any host is
	// contacted, and a missing input file aborts before the directory
	// service is even dialed.
	if cfg.InputFile != "" {
		if err := checkInputFile(cfg.InputFile); err != nil {
			return err
		}
	}
	folder, err := resolveFolder(cfg.Folder)
	if err != nil {
		return err
	}

	resolver := &hosts.Resolver{}
	if cfg.InputFile == "" {
		client, err := dialDirectory()
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()
		resolver.Directory = client
	}

	// A no-hosts outcome surfaces through the returned error; main reports
	// it once.
	hostList, err := resolver.Resolve(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("svcscan: looking for services with start name %s\n", filter)
	fmt.Printf("Hosts to test: %d (%s)\n", len(hostList), hostSource(cfg))
	fmt.Printf("Reports go to %s\n\n", folder)

	writer := report.New(folder)
	runner := &audit.Runner{
		Filter:   filter,
		Prober:   probe.New(),
		Services: &scm.Enumerator{Creds: scmCredentials()},
		OnOffline: func(n audit.OfflineNotice) {
			if err := writer.AppendOffline(n); err != nil {
				slog.Error("recording offline host", "host", n.Host, "err", err)
			}
		},
	}

	runReport := runner.Run(ctx, hostList)

	if err := writer.WriteResults(filter, runReport.Matches); err != nil {
		return err
	}
	writer.PrintSummary(runReport)
	return nil
}

func checkInputFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input file %s is a directory", path)
	}
	return nil
}

// resolveFolder validates the output folder, defaulting to the current
// working directory. The folder must already exist and be a directory.
func resolveFolder(folder string) (string, error) {
	if folder == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return wd, nil
	}
	info, err := os.Stat(folder)
	if err != nil {
		return "", fmt.Errorf("output folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("output folder %s is a file", folder)
	}
	return folder, nil
}

func dialDirectory() (*directory.Client, error) {
	if flagLDAPURL == "" {
		return nil, errors.New("directory service required: supply --ldap-url or use --input-file")
	}
	password := flagLDAPPassword
	if password == "" {
		password = os.Getenv("SVCSCAN_LDAP_PASSWORD")
	}
	client, err := directory.Dial(directory.Options{
		URL:      flagLDAPURL,
		BindDN:   flagLDAPBindDN,
		Password: password,
		BaseDN:   flagLDAPBaseDN,
	})
	if err != nil {
		return nil, fmt.Errorf("directory service unavailable: %w", err)
	}
	return client, nil
}

func scmCredentials() scm.Credentials {
	password := flagSCMPassword
	if password == "" {
		password = os.Getenv("SVCSCAN_SCM_PASSWORD")
	}
	return scm.Credentials{
		Domain:   flagSCMDomain,
		Username: flagSCMUser,
		Password: password,
	}
}

func hostSource(cfg audit.Config) string {
	switch {
	case cfg.InputFile != "" && cfg.ComputerName != "":
		return fmt.Sprintf("file %s filtered by %q", cfg.InputFile, cfg.ComputerName)
	case cfg.InputFile != "":
		return "file " + cfg.InputFile
	case cfg.ComputerName != "":
		return fmt.Sprintf("directory query for names containing %q", cfg.ComputerName)
	default:
		return "directory query for server operating systems"
	}
}
