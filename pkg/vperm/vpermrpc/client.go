package vpermrpc

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sb2root/sbcore/pkg/ruletree"
	"github.com/sb2root/sbcore/pkg/vperm"
)

// Client implements vperm.Store against a session daemon reachable at
// Addr, a Unix domain socket path. Every call opens a fresh connection:
// the InodeStat table sees one mutating call per traced syscall, never
// enough volume to justify a pooled connection, and a fresh dial avoids
// ever sending a request down a half-broken one left over from a daemon
// restart.
type Client struct {
	Addr string
	mu   sync.Mutex
}

// NewClient returns a Client dialing the daemon at addr.
func NewClient(addr string) *Client {
	return &Client{Addr: addr}
}

func (c *Client) call(req Request) (Response, error) {
	conn, err := net.Dial("unix", c.Addr)
	if err != nil {
		return Response{}, fmt.Errorf("vpermrpc: dial %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if err := writeFrame(conn, req); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := readFrame(conn, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Get implements vperm.Store.
func (c *Client) Get(key vperm.InodeKey) (ruletree.InodeStat, error) {
	resp, err := c.call(Request{Op: OpGet, Dev: key.Dev, Ino: key.Ino})
	if err != nil {
		return ruletree.InodeStat{}, err
	}
	switch resp.Code {
	case CodeOK:
		return resp.Rec, nil
	case CodeNoRecord:
		return ruletree.InodeStat{}, vperm.ErrNoRecord
	default:
		return ruletree.InodeStat{}, errors.New(resp.Err)
	}
}

// Set implements vperm.Store.
func (c *Client) Set(rec ruletree.InodeStat) error {
	resp, err := c.call(Request{Op: OpSet, Dev: rec.Dev, Ino: rec.Ino, Rec: rec})
	if err != nil {
		return err
	}
	return responseErr(resp)
}

// Release implements vperm.Store.
func (c *Client) Release(key vperm.InodeKey, fields ruletree.InodeField) error {
	resp, err := c.call(Request{Op: OpRelease, Dev: key.Dev, Ino: key.Ino, Fields: fields})
	if err != nil {
		return err
	}
	return responseErr(resp)
}

// Clear implements vperm.Store.
func (c *Client) Clear(key vperm.InodeKey) error {
	resp, err := c.call(Request{Op: OpClear, Dev: key.Dev, Ino: key.Ino})
	if err != nil {
		return err
	}
	return responseErr(resp)
}

func responseErr(resp Response) error {
	switch resp.Code {
	case CodeOK:
		return nil
	case CodeNoRecord:
		return vperm.ErrNoRecord
	default:
		return errors.New(resp.Err)
	}
}

var _ vperm.Store = (*Client)(nil)
