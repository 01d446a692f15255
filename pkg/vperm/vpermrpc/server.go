package vpermrpc

import (
	"errors"
	"net"

	"github.com/sb2root/sbcore/internal/logging"
	"github.com/sb2root/sbcore/pkg/vperm"
)

// Server answers Client requests against a backing vperm.Store. It is
// deliberately store-agnostic: cmd/sb2-vpermd wires it to a
// sqlite-backed Store so the InodeStat table survives daemon restarts,
// tests wire it directly to a vperm.MemoryStore.
type Server struct {
	Store vperm.Store
	Log   *logging.Emitter
}

// Serve accepts connections on ln until it returns an error (typically
// because ln was closed), handling each serially on its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := readFrame(conn, &req); err != nil {
		s.logf("vpermrpc: read request: %v", err)
		return
	}

	resp := s.dispatch(req)
	if err := writeFrame(conn, resp); err != nil {
		s.logf("vpermrpc: write response: %v", err)
	}
}

func (s *Server) dispatch(req Request) Response {
	key := vperm.InodeKey{Dev: req.Dev, Ino: req.Ino}

	switch req.Op {
	case OpGet:
		rec, err := s.Store.Get(key)
		if err != nil {
			return errResponse(err)
		}
		return Response{Code: CodeOK, Rec: rec}
	case OpSet:
		if err := s.Store.Set(req.Rec); err != nil {
			return errResponse(err)
		}
		return Response{Code: CodeOK}
	case OpRelease:
		if err := s.Store.Release(key, req.Fields); err != nil {
			return errResponse(err)
		}
		return Response{Code: CodeOK}
	case OpClear:
		if err := s.Store.Clear(key); err != nil {
			return errResponse(err)
		}
		return Response{Code: CodeOK}
	default:
		return Response{Code: CodeError, Err: "vpermrpc: unknown op"}
	}
}

func errResponse(err error) Response {
	if errors.Is(err, vperm.ErrNoRecord) {
		return Response{Code: CodeNoRecord}
	}
	return Response{Code: CodeError, Err: err.Error()}
}

func (s *Server) logf(format string, args ...interface{}) {
	s.Log.Log(logging.LevelWarning, "", 0, format, args...)
}
