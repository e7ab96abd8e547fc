package main

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamr/hamrd/internal/rpc"
)

func TestDefaultSocketPath_UsesXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/hamr.sock", defaultSocketPath())
}

func TestDefaultSocketPath_FallsBackToTmp(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Equal(t, "/tmp/hamr.sock", defaultSocketPath())
}

func TestSendRequest_OmitsParamsWhenNil(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		codec := rpc.NewCodec(client)
		require.NoError(t, sendRequest(codec, rpc.NewRequestID(1), "status", nil))
	}()

	codec := rpc.NewCodec(server)
	frame, err := codec.ReadFrame()
	require.NoError(t, err)

	var req rpc.Request
	require.NoError(t, json.Unmarshal(frame, &req))
	assert.Equal(t, "status", req.Method)
	assert.Empty(t, req.Params)
}

func TestReadResponse_SkipsStrayNotification(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		codec := rpc.NewCodec(server)
		notif := rpc.Notification{JSONRPC: "2.0", Method: "update", Params: json.RawMessage(`{"kind":"busy"}`)}
		payload, err := json.Marshal(notif)
		require.NoError(t, err)
		require.NoError(t, codec.WriteFrame(payload))

		resp := rpc.Response{JSONRPC: "2.0", ID: rpc.NewRequestID(2), Result: json.RawMessage(`{"ok":true}`)}
		payload, err = json.Marshal(resp)
		require.NoError(t, err)
		require.NoError(t, codec.WriteFrame(payload))
	}()

	codec := rpc.NewCodec(client)
	result, err := readResponse(codec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestReadResponse_PropagatesRPCError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		codec := rpc.NewCodec(server)
		resp := rpc.Response{JSONRPC: "2.0", ID: rpc.NewRequestID(2), Error: rpc.NewError(rpc.ErrControlRequired, "nope")}
		payload, err := json.Marshal(resp)
		require.NoError(t, err)
		require.NoError(t, codec.WriteFrame(payload))
	}()

	codec := rpc.NewCodec(client)
	_, err := readResponse(codec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}
