package session

import (
	"bufio"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netconsole/internal/errors"
)

func TestLineChannel_ReadLine(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	ch := NewLineChannel(server)

	go func() {
		_, _ = io.WriteString(client, "first\nsecond\r\n\ntrailing")
		_ = client.Close()
	}()

	for _, want := range []string{"first", "second", "", "trailing"} {
		got, err := ch.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ch.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineChannel_WriteLine(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	ch := NewLineChannel(server)
	r := bufio.NewReader(client)

	go func() {
		_ = ch.WriteLine("hello")
		_ = ch.WriteLine("")
		_ = ch.WriteLine("with  inner   spaces")
	}()

	for _, want := range []string{"hello\n", "\n", "with  inner   spaces\n"} {
		got, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLineChannel_ClosedLocally(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	ch := NewLineChannel(server)
	require.NoError(t, server.Close())

	_, err := ch.ReadLine()
	assert.ErrorIs(t, err, errors.ErrChannelClosed)
	assert.NotErrorIs(t, err, io.EOF)

	err = ch.WriteLine("late")
	assert.ErrorIs(t, err, errors.ErrChannelClosed)
}
