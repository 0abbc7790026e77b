// Package probe answers the single question the run loop asks before
// touching a host: does it respond to an ICMP echo.
package probe

import (
	"context"
	"errors"
	"runtime"
	"time"

	ping "github.com/go-ping/ping"
)

const defaultAttempts = 3

// Pinger is the ICMP liveness probe. The zero value is not usable; call New.
type Pinger struct {
	attempts int
}

// New returns a Pinger with the default echo count.
func New() *Pinger {
	return &Pinger{attempts: defaultAttempts}
}

// Reachable sends ICMP echoes to host and reports whether any reply came
// back. Every probe failure, including name resolution and socket errors,
// reads as unreachable.
func (p *Pinger) Reachable(ctx context.Context, host string) bool {
	err := echo(ctx, host, p.attempts)
	return err == nil
}

func echo(ctx context.Context, host string, attempts int) error {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return err
	}

	// Windows has no unprivileged ICMP sockets.
	pinger.SetPrivileged(runtime.GOOS == "windows")

	if attempts <= 0 {
		attempts = 1
	}
	pinger.Count = attempts
	pinger.Timeout = time.Duration(attempts) * 2 * time.Second

	statsCh := make(chan *ping.Statistics, 1)
	pinger.OnFinish = func(stats *ping.Statistics) {
		statsCh <- stats
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	var stats *ping.Statistics
	select {
	case stats = <-statsCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	if stats == nil || stats.PacketsRecv == 0 {
		return errors.New("no response")
	}
	return nil
}
