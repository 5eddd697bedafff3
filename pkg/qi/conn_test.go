package qi

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptAuth answers the authenticate call on conn with an empty
// capability map.
func acceptAuth(conn net.Conn) error {
	call, err := ReadMessage(conn)
	if err != nil {
		return err
	}

	e := NewEncoder()
	if err := e.Encode("{sm}", map[string]any{}); err != nil {
		return err
	}
	reply := &Message{ID: call.ID, Type: TypeReply, Address: call.Address, Payload: e.Bytes()}
	_, err = reply.WriteTo(conn)
	return err
}

func TestSession_ReadErrorClosesConn(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)

	authed := make(chan error, 1)
	go func() { authed <- acceptAuth(server) }()

	s, err := Connect(context.Background(), client, Options{Logger: log})
	require.NoError(t, err)
	require.NoError(t, <-authed)

	// A header with the wrong magic ends the read loop.
	garbage := make([]byte, headerSize)
	copy(garbage, []byte{0xde, 0xad, 0xbe, 0xef})
	_, err = server.Write(garbage)
	require.NoError(t, err)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on bad magic")
	}
	assert.Contains(t, s.Err().Error(), "bad magic")
	assert.NoError(t, s.Close())

	written := make(chan error, 1)
	go func() {
		_, err := server.Write([]byte{1})
		written <- err
	}()
	select {
	case err := <-written:
		assert.Error(t, err, "client end of the connection is closed")
	case <-time.After(2 * time.Second):
		t.Fatal("write blocked: client end of the connection is still open")
	}
}
