//go:build linux

// Package nftexport optionally mirrors netrule DENY verdicts into a
// real nft table, so a bug in the in-process interception layer still
// leaves a kernel-level backstop. It is pure defense in depth: nothing
// in pkg/netrule or the pipeline depends on Setup succeeding, and a
// session runs correctly with nftexport entirely absent.
package nftexport

import (
	"fmt"
	"net"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"

	"github.com/sb2root/sbcore/pkg/netrule"
)

const tableName = "sbcore"

// Exporter owns one nft table scoped to a session, named after the
// traced process's network namespace interface.
type Exporter struct {
	iface string
	conn  *nftables.Conn
	table *nftables.Table
	chain *nftables.Chain
}

// NewExporter returns an Exporter that will manage rules on iface.
func NewExporter(iface string) *Exporter {
	return &Exporter{iface: iface}
}

// Setup opens an nftables connection and creates this session's table
// and output-drop chain, accepting everything by default; DenyAddress
// then adds specific drop rules as the netrule engine produces DENY
// verdicts.
func (e *Exporter) Setup() error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("nftexport: open nftables connection: %w", err)
	}
	e.conn = conn

	e.table = conn.AddTable(&nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   tableName + "_" + e.iface,
	})

	e.chain = conn.AddChain(&nftables.Chain{
		Name:     "output",
		Table:    e.table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookOutput,
		Priority: nftables.ChainPriorityFilter,
	})

	return conn.Flush()
}

// DenyAddress installs a drop rule for one netrule.Verdict's denied
// destination address and port (0 meaning "any port"). Best-effort: a
// malformed address is reported but never prevents the in-process
// netrule engine from continuing to enforce the same denial itself.
func (e *Exporter) DenyAddress(addr string, port uint16) error {
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return fmt.Errorf("nftexport: %q is not a valid IPv4 address", addr)
	}

	exprs := []expr.Any{
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseNetworkHeader,
			Offset:       16, // destination address offset in an IPv4 header
			Len:          4,
		},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ip},
	}
	if port != 0 {
		exprs = append(exprs,
			&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 2},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 2, Data: []byte{unix.IPPROTO_TCP}},
			&expr.Payload{
				DestRegister: 2,
				Base:         expr.PayloadBaseTransportHeader,
				Offset:       2,
				Len:          2,
			},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 2, Data: binaryutil.BigEndian.PutUint16(port)},
		)
	}
	exprs = append(exprs, &expr.Verdict{Kind: expr.VerdictDrop})

	e.conn.AddRule(&nftables.Rule{Table: e.table, Chain: e.chain, Exprs: exprs})
	return e.conn.Flush()
}

// SyncVerdict installs a drop rule when v is a denial with a concrete
// address, a convenience wrapper pipeline code calls right after
// netrule.Engine.Evaluate.
func (e *Exporter) SyncVerdict(addr string, port uint16, v netrule.Verdict) error {
	if v.Allowed || v.NoMatch {
		return nil
	}
	return e.DenyAddress(addr, port)
}

// Cleanup removes this session's table.
func (e *Exporter) Cleanup() error {
	if e.conn == nil {
		conn, err := nftables.New()
		if err != nil {
			return err
		}
		e.conn = conn
	}

	tables, err := e.conn.ListTables()
	if err != nil {
		return err
	}
	name := tableName + "_" + e.iface
	for _, t := range tables {
		if t.Name == name && t.Family == nftables.TableFamilyIPv4 {
			e.conn.DelTable(t)
			break
		}
	}
	return e.conn.Flush()
}
