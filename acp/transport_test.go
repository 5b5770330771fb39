package acp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReadFramedLineOversizeResyncs exercises spec.md §4.1's "exceeding the
// maximum is a recoverable framing error on read (log and keep reading from
// the next newline)": a line past maxLineLength must not desync the stream
// for the line that follows it.
func TestReadFramedLineOversizeResyncs(t *testing.T) {
	oversized := strings.Repeat("x", maxLineLength+1)
	input := oversized + "\n" + `{"ok":true}` + "\n"
	r := bufio.NewReaderSize(bytes.NewReader([]byte(input)), initialReadBuffer)

	_, err := readFramedLine(r)
	require.ErrorIs(t, err, errLineTooLong)

	line, err := readFramedLine(r)
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(line))
}

// TestTransportReadLoopSkipsOversizedLine verifies the same behavior through
// the full Transport: the connection survives an oversized frame and keeps
// delivering subsequent well-formed messages to the handler instead of
// treating the overflow as a disconnect.
func TestTransportReadLoopSkipsOversizedLine(t *testing.T) {
	oversized := strings.Repeat("x", maxLineLength+1)
	input := oversized + "\n" + `{"jsonrpc":"2.0","method":"session/cancel","params":{"sessionId":"s-1"}}` + "\n"

	received := make(chan *JSONRPCMessage, 1)
	tr := NewTransport(strings.NewReader(input), &bytes.Buffer{}, nil)
	tr.SetHandler(func(msg *JSONRPCMessage) { received <- msg })
	tr.Start()

	msg := <-received
	require.Equal(t, "session/cancel", msg.Method)
}
