package session

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kyhei/local-dev-insights/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	createErr error
	logCalls  int
}

func (f *failingStore) CreateSession(string, string) error { return f.createErr }
func (f *failingStore) CloseSession(string) error          { return nil }
func (f *failingStore) LogMessage(string, db.MessageDirection, []byte) error {
	f.logCalls++
	return errors.New("disk full")
}

func TestSessionRecordsBothDirections(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer database.Close()

	sess, err := New(database, "/work")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.ID, "sess_"))
	assert.Len(t, sess.ID, len("sess_")+8)

	sess.Inbound([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	sess.Outbound([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	require.NoError(t, sess.Close())

	messages, err := database.GetSessionMessages(sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, db.DirectionClientToServer, messages[0].Direction)
	assert.Equal(t, db.DirectionServerToClient, messages[1].Direction)

	sessions, err := database.GetAllSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "/work", sessions[0].WorkingDirectory)
	assert.NotNil(t, sessions[0].ClosedAt)
}

func TestNew_PropagatesCreateFailure(t *testing.T) {
	_, err := New(&failingStore{createErr: errors.New("read-only")}, "/work")
	assert.Error(t, err)
}

func TestRecordFailureIsNotFatal(t *testing.T) {
	store := &failingStore{}
	sess, err := New(store, "/work")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		sess.Inbound([]byte("x"))
		sess.Outbound([]byte("y"))
	})
	assert.Equal(t, 2, store.logCalls)
}
