package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	clamd "github.com/dutchcoders/go-clamd"
)

// ClamAV scans file bytes through a clamd daemon using the INSTREAM command.
type ClamAV struct {
	client *clamd.Clamd
}

// NewClamAV dials the clamd address (e.g. "tcp://localhost:3310").
// The connection itself is established per scan; construction never fails.
func NewClamAV(address string) *ClamAV {
	return &ClamAV{client: clamd.NewClamd(address)}
}

// Available pings the daemon.
func (c *ClamAV) Available() bool {
	return c.client.Ping() == nil
}

// Scan streams the bytes to clamd and reports the verdict.
func (c *ClamAV) Scan(ctx context.Context, data []byte) (*Result, error) {
	abort := make(chan bool)
	defer close(abort)

	results, err := c.client.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return nil, fmt.Errorf("clamav scan failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-results:
		if !ok || res == nil {
			return nil, errors.New("clamav returned no scan result")
		}
		switch res.Status {
		case clamd.RES_OK:
			return &Result{}, nil
		case clamd.RES_FOUND:
			return &Result{Infected: true, Signature: res.Description}, nil
		default:
			return nil, fmt.Errorf("clamav scan error: %s", res.Description)
		}
	}
}
