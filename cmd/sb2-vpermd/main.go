// Command sb2-vpermd is the reference session daemon §5 describes:
// it owns the InodeStat table a session's vperm.Writer calls mutate
// through vpermrpc, so the table outlives any one traced process and
// is linearized across every process in the session. It is the Unix
// domain socket counterpart of the teacher's own VFS daemon
// (cmd/guest-fused), just speaking vpermrpc's CBOR framing instead of
// FUSE.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sb2root/sbcore/internal/logging"
	"github.com/sb2root/sbcore/pkg/vperm"
	"github.com/sb2root/sbcore/pkg/vperm/vpermrpc"
)

var (
	sessionDir string
	socketPath string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "sb2-vpermd",
	Short: "Session daemon serving the vperm InodeStat table over a Unix domain socket",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&sessionDir, "session-dir", os.Getenv("SBOX_SESSION_DIR"),
		"session directory; --socket and --db default to <session-dir>/vperm.{sock,db}")
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "Unix domain socket path (default <session-dir>/vperm.sock)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (default <session-dir>/vperm.db)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sb2-vpermd:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if socketPath == "" {
		if sessionDir == "" {
			return fmt.Errorf("one of --socket or --session-dir (or $SBOX_SESSION_DIR) is required")
		}
		socketPath = filepath.Join(sessionDir, "vperm.sock")
	}
	if dbPath == "" {
		if sessionDir == "" {
			return fmt.Errorf("one of --db or --session-dir (or $SBOX_SESSION_DIR) is required")
		}
		dbPath = filepath.Join(sessionDir, "vperm.db")
	}

	log := logging.NewEmitter(logging.LevelInfo, logging.NewJSONLSink(os.Stderr))
	defer log.Close()

	store, err := vperm.OpenSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("sb2-vpermd: %w", err)
	}
	defer store.Close()

	// A stale socket from a crashed prior daemon must not block bind.
	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("sb2-vpermd: listen %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)

	srv := &vpermrpc.Server{Store: store, Log: log}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Log(logging.LevelInfo, "", 0, "vperm: listening on %s, store %s", socketPath, dbPath)

	err = srv.Serve(ln)
	if ctx.Err() != nil {
		return nil // closed by signal, not a failure
	}
	return err
}
