// ABOUTME: Audit session recording one server run and every protocol line it handles
// ABOUTME: Each run gets its own session id; logging failures never stop the transport

package session

import (
	"github.com/google/uuid"
	"github.com/kyhei/local-dev-insights/internal/db"
	"github.com/kyhei/local-dev-insights/internal/logger"
)

// Store is the slice of the database the audit session writes to.
type Store interface {
	CreateSession(sessionID, workingDir string) error
	CloseSession(sessionID string) error
	LogMessage(sessionID string, direction db.MessageDirection, rawMessage []byte) error
}

type Session struct {
	ID         string
	WorkingDir string
	DB         Store

	inbound  int
	outbound int
}

// New opens an audit session row for this run.
func New(store Store, workingDir string) (*Session, error) {
	s := &Session{
		ID:         "sess_" + uuid.New().String()[:8],
		WorkingDir: workingDir,
		DB:         store,
	}

	if err := store.CreateSession(s.ID, workingDir); err != nil {
		return nil, err
	}

	logger.Info("[%s] Audit session started (working dir: %s)", s.ID, workingDir)
	return s, nil
}

// Inbound records a line read from the client.
func (s *Session) Inbound(line []byte) {
	s.inbound++
	s.record(db.DirectionClientToServer, line)
}

// Outbound records a line written to the client.
func (s *Session) Outbound(line []byte) {
	s.outbound++
	s.record(db.DirectionServerToClient, line)
}

func (s *Session) record(direction db.MessageDirection, line []byte) {
	logger.Debug("[%s] %s: %s", s.ID, direction, preview(line))
	if err := s.DB.LogMessage(s.ID, direction, line); err != nil {
		logger.Warn("[%s] failed to log %s message: %v", s.ID, direction, err)
	}
}

// Close marks the session closed.
func (s *Session) Close() error {
	logger.Info("[%s] Audit session closed after %d inbound / %d outbound messages", s.ID, s.inbound, s.outbound)
	return s.DB.CloseSession(s.ID)
}

func preview(line []byte) string {
	p := string(line)
	if len(p) > 100 {
		p = p[:100] + "..."
	}
	return p
}
