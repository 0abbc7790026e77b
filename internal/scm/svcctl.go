// Package scm enumerates services on a remote host over the Service Control
// Manager Remote protocol (MS-SCMR), carried on the svcctl named pipe.
package scm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oiweiwei/go-msrpc/dcerpc"
	svcctl "github.com/oiweiwei/go-msrpc/msrpc/scmr/svcctl/v2"
	"github.com/oiweiwei/go-msrpc/ssp"
	"github.com/oiweiwei/go-msrpc/ssp/credential"
	"github.com/oiweiwei/go-msrpc/ssp/gssapi"

	"svcscan/internal/audit"
)

// Access rights and enumeration scopes from MS-SCMR.
const (
	scManagerConnect          = 0x0001
	scManagerEnumerateService = 0x0004

	serviceQueryConfig = 0x0001

	serviceTypeWin32 = 0x00000030 // own-process | share-process
	serviceStateAll  = 0x00000003

	errorSuccess  = 0x00000000
	errorMoreData = 0x000000EA
)

const (
	dialTimeout = 3 * time.Second
	callTimeout = 30 * time.Second

	// Large enough for a typical service database in one round trip;
	// EnumServicesStatusW reports the exact size when it is not.
	initialEnumBufferSize = 256 * 1024
	configBufferSize      = 8 * 1024
)

// Credentials identify the caller to the remote service manager. The zero
// value queries anonymously.
type Credentials struct {
	Domain   string
	Username string
	Password string
}

func (c Credentials) anonymous() bool { return c.Username == "" }

func (c Credentials) qualified() string {
	if c.Domain == "" {
		return c.Username
	}
	return c.Domain + "\\" + c.Username
}

// Enumerator lists services on remote hosts. One instance serves the whole
// run; each call opens and closes its own connection.
type Enumerator struct {
	Creds Credentials
}

// Services connects to host's service manager and returns every Win32
// service with its display name and start name.
func (e *Enumerator) Services(ctx context.Context, host string) ([]audit.Service, error) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	cred := credential.Anonymous()
	if !e.Creds.anonymous() {
		cred = credential.NewFromPassword(e.Creds.qualified(), e.Creds.Password)
	}
	secCtx := gssapi.NewSecurityContext(callCtx,
		gssapi.WithCredential(cred),
		gssapi.WithMechanismFactory(ssp.NTLM),
		gssapi.WithMechanismFactory(ssp.SPNEGO),
	)

	conn, err := dcerpc.Dial(secCtx, host,
		dcerpc.WithEndpoint("ncacn_np:[svcctl]"),
		dcerpc.WithTimeout(dialTimeout),
		dcerpc.WithSMBPort(445),
	)
	if err != nil {
		return nil, fmt.Errorf("svcctl dial %s: %w", host, err)
	}
	defer func() {
		_ = conn.Close(secCtx)
	}()

	client, err := svcctl.NewSvcctlClient(secCtx, conn, dcerpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("svcctl client: %w", err)
	}

	return collectServices(secCtx, client, host)
}

// serviceManagerRPC is the slice of the generated svcctl client the
// enumerator actually calls.
type serviceManagerRPC interface {
	OpenSCMW(context.Context, *svcctl.OpenSCMWRequest, ...dcerpc.CallOption) (*svcctl.OpenSCMWResponse, error)
	EnumServicesStatusW(context.Context, *svcctl.EnumServicesStatusWRequest, ...dcerpc.CallOption) (*svcctl.EnumServicesStatusWResponse, error)
	OpenServiceW(context.Context, *svcctl.OpenServiceWRequest, ...dcerpc.CallOption) (*svcctl.OpenServiceWResponse, error)
	QueryServiceConfigW(context.Context, *svcctl.QueryServiceConfigWRequest, ...dcerpc.CallOption) (*svcctl.QueryServiceConfigWResponse, error)
	CloseService(context.Context, *svcctl.CloseServiceRequest, ...dcerpc.CallOption) (*svcctl.CloseServiceResponse, error)
}

func collectServices(ctx context.Context, client serviceManagerRPC, host string) ([]audit.Service, error) {
	scm, err := openManager(ctx, client, host)
	if err != nil {
		return nil, err
	}
	defer closeHandle(ctx, client, scm)

	entries, err := enumServices(ctx, client, scm)
	if err != nil {
		return nil, err
	}

	services := make([]audit.Service, 0, len(entries))
	for _, entry := range entries {
		startName, err := queryStartName(ctx, client, scm, entry.name)
		if err != nil {
			// A service that vanished or denies config access drops out of
			// the result without failing the whole host.
			continue
		}
		services = append(services, audit.Service{
			Name:        entry.name,
			DisplayName: entry.displayName,
			StartName:   startName,
		})
	}
	return services, nil
}

func openManager(ctx context.Context, client serviceManagerRPC, host string) (*svcctl.Handle, error) {
	resp, err := client.OpenSCMW(ctx, &svcctl.OpenSCMWRequest{
		MachineName:   host,
		DatabaseName:  "ServicesActive",
		DesiredAccess: scManagerConnect | scManagerEnumerateService,
	})
	if err != nil {
		return nil, fmt.Errorf("open service manager: %w", err)
	}
	if resp.Return != errorSuccess {
		return nil, fmt.Errorf("open service manager: status 0x%08x", resp.Return)
	}
	return resp.SCM, nil
}

func enumServices(ctx context.Context, client serviceManagerRPC, scm *svcctl.Handle) ([]enumEntry, error) {
	bufferSize := uint32(initialEnumBufferSize)

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := client.EnumServicesStatusW(ctx, &svcctl.EnumServicesStatusWRequest{
			ServiceManager: scm,
			ServiceType:    serviceTypeWin32,
			ServiceState:   serviceStateAll,
			BufferLength:   bufferSize,
		})
		if resp == nil {
			return nil, fmt.Errorf("enum services: %w", err)
		}
		switch resp.Return {
		case errorSuccess:
			return parseServiceEntries(resp.Buffer, resp.ServicesReturned)
		case errorMoreData:
			bufferSize = resp.BytesNeededLength
		default:
			return nil, fmt.Errorf("enum services: status 0x%08x", resp.Return)
		}
	}
	return nil, errors.New("enum services: buffer still too small after resize")
}

func queryStartName(ctx context.Context, client serviceManagerRPC, scm *svcctl.Handle, name string) (string, error) {
	openResp, err := client.OpenServiceW(ctx, &svcctl.OpenServiceWRequest{
		ServiceManager: scm,
		ServiceName:    name,
		DesiredAccess:  serviceQueryConfig,
	})
	if err != nil {
		return "", fmt.Errorf("open service %s: %w", name, err)
	}
	if openResp.Return != errorSuccess {
		return "", fmt.Errorf("open service %s: status 0x%08x", name, openResp.Return)
	}
	defer closeHandle(ctx, client, openResp.Service)

	cfgResp, err := client.QueryServiceConfigW(ctx, &svcctl.QueryServiceConfigWRequest{
		Service:      openResp.Service,
		BufferLength: configBufferSize,
	})
	if err != nil {
		return "", fmt.Errorf("query config %s: %w", name, err)
	}
	if cfgResp.Return != errorSuccess || cfgResp.ServiceConfig == nil {
		return "", fmt.Errorf("query config %s: status 0x%08x", name, cfgResp.Return)
	}
	return cfgResp.ServiceConfig.ServiceStartName, nil
}

func closeHandle(ctx context.Context, client serviceManagerRPC, handle *svcctl.Handle) {
	if handle == nil {
		return
	}
	_, _ = client.CloseService(ctx, &svcctl.CloseServiceRequest{ServiceObject: handle})
}
