package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/wharfhq/wharfd/internal"
	"github.com/wharfhq/wharfd/internal/build"
	"github.com/wharfhq/wharfd/internal/protocol"
)

// Runs a build on behalf of a client and reports the output location.
func (s *Server) handleBuild(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if req.Descriptor == nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: "build request missing descriptor"})
		return
	}

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	result, err := build.Run(ctx, s.runtime, build.Options{
		Descriptor: req.Descriptor,
		Name:       req.Name,
		Output:     req.Output,
		Context:    req.Context,
		Platforms:  req.Platforms,
	})
	if err != nil {
		slog.Error("build failed", "name", req.Name, "error", err)
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, &protocol.BuildResult{Output: result.Output})
}

// Reports daemon status.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	builds := s.builds
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Builds:  builds,
	})
}

// Acknowledges the shutdown request, then stops the server.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	conn.Close()

	go func() {
		s.Stop()
	}()
}
