// Package directory queries computer objects from an LDAP directory such as
// Active Directory. It is the only package that talks to the directory
// service; callers see plain audit.DirectoryEntry values.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"svcscan/internal/audit"
)

// Options configures the directory connection. BindDN/Password may be empty
// for servers that accept unauthenticated binds. BaseDN defaults to the
// server's defaultNamingContext.
type Options struct {
	URL      string // e.g. ldap://dc01.domain.tld or ldaps://dc01.domain.tld
	BindDN   string
	Password string
	BaseDN   string
}

// Client is a connected directory client. Not safe for concurrent use; the
// run loop is strictly sequential so a single connection suffices.
type Client struct {
	conn   *ldap.Conn
	baseDN string
}

const pagingSize = 500

var computerAttributes = []string{"name", "displayName", "dNSHostName", "operatingSystem"}

// Dial connects and binds to the directory named by opts.
func Dial(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("directory URL is required")
	}

	conn, err := ldap.DialURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to directory %s: %w", opts.URL, err)
	}

	if opts.BindDN != "" {
		err = conn.Bind(opts.BindDN, opts.Password)
	} else {
		err = conn.UnauthenticatedBind("")
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("directory bind: %w", err)
	}

	c := &Client{conn: conn, baseDN: opts.BaseDN}
	if c.baseDN == "" {
		c.baseDN, err = defaultNamingContext(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// OUExists checks whether dn resolves to an existing object. A missing
// object reports false without an error; everything else is an error.
func (c *Client) OUExists(ctx context.Context, dn string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	req := ldap.NewSearchRequest(
		dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=*)", []string{"distinguishedName"}, nil,
	)
	_, err := c.conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ComputersByName returns computer objects whose DNS host name contains
// pattern, sorted by display name. An empty ouDN searches the whole base.
func (c *Client) ComputersByName(ctx context.Context, pattern, ouDN string) ([]audit.DirectoryEntry, error) {
	return c.searchComputers(ctx, computerNameFilter(pattern), ouDN)
}

// ServerComputers returns computer objects running a server-class operating
// system, sorted by display name.
func (c *Client) ServerComputers(ctx context.Context, ouDN string) ([]audit.DirectoryEntry, error) {
	return c.searchComputers(ctx, serverOSFilter(), ouDN)
}

func (c *Client) searchComputers(ctx context.Context, filter, ouDN string) ([]audit.DirectoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := ouDN
	if base == "" {
		base = c.baseDN
	}
	req := ldap.NewSearchRequest(
		base, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter, computerAttributes, nil,
	)
	res, err := c.conn.SearchWithPaging(req, pagingSize)
	if err != nil {
		return nil, err
	}

	entries := make([]audit.DirectoryEntry, 0, len(res.Entries))
	for _, e := range res.Entries {
		entries = append(entries, audit.DirectoryEntry{
			Name:            e.GetAttributeValue("name"),
			DisplayName:     e.GetAttributeValue("displayName"),
			DNSHostName:     e.GetAttributeValue("dNSHostName"),
			DN:              e.DN,
			OperatingSystem: e.GetAttributeValue("operatingSystem"),
		})
	}
	sortEntries(entries)
	return entries, nil
}

func defaultNamingContext(conn *ldap.Conn) (string, error) {
	req := ldap.NewSearchRequest(
		"", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)", []string{"defaultNamingContext"}, nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return "", fmt.Errorf("reading rootDSE: %w", err)
	}
	if len(res.Entries) == 0 {
		return "", errors.New("rootDSE has no defaultNamingContext")
	}
	dn := res.Entries[0].GetAttributeValue("defaultNamingContext")
	if dn == "" {
		return "", errors.New("rootDSE has no defaultNamingContext")
	}
	return dn, nil
}

func computerNameFilter(pattern string) string {
	return fmt.Sprintf("(&(objectCategory=computer)(dNSHostName=*%s*))", ldap.EscapeFilter(pattern))
}

func serverOSFilter() string {
	return "(&(objectCategory=computer)(operatingSystem=*server*))"
}

func sortEntries(entries []audit.DirectoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].SortName()) < strings.ToLower(entries[j].SortName())
	})
}
