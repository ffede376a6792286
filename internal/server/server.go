// ABOUTME: Newline-delimited stdio transport for the MCP server
// ABOUTME: Reads one request per line, dispatches it, and flushes each reply before reading on

package server

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/kyhei/local-dev-insights/internal/jsonrpc"
	"github.com/kyhei/local-dev-insights/internal/logger"
)

// Auditor observes every line crossing the transport.
type Auditor interface {
	Inbound(line []byte)
	Outbound(line []byte)
}

type Server struct {
	dispatcher *Dispatcher
	auditor    Auditor
}

// NewServer wires a dispatcher to the transport. auditor may be nil.
func NewServer(dispatcher *Dispatcher, auditor Auditor) *Server {
	return &Server{dispatcher: dispatcher, auditor: auditor}
}

// Serve runs the read-dispatch-write loop until in is exhausted or ctx is done.
// End of input is a clean shutdown; read and write failures are returned.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	writer := bufio.NewWriter(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if err := s.handleLine(ctx, line, writer); err != nil {
				return err
			}
		}

		if readErr != nil {
			if stderrors.Is(readErr, io.EOF) {
				logger.Info("Input closed, shutting down")
				return nil
			}
			return fmt.Errorf("failed to read request: %w", readErr)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte, writer *bufio.Writer) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	if s.auditor != nil {
		s.auditor.Inbound(line)
	}

	req, err := jsonrpc.Parse(line)
	if err != nil {
		logger.Warn("Ignoring unparseable line: %v", err)
		return nil
	}

	logger.Debug("<- %s (id=%s)", req.Method, string(req.ID))

	resp := s.dispatcher.Dispatch(ctx, req)
	if resp == nil {
		return nil
	}

	data, err := jsonrpc.Serialize(resp)
	if err != nil {
		logger.Error("Dropping response to %s: %v", req.Method, err)
		return nil
	}

	if _, err := writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush response: %w", err)
	}

	if s.auditor != nil {
		s.auditor.Outbound(data)
	}
	return nil
}
