package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_Request(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"register","params":{"role":"ui"}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Request)
	assert.Equal(t, "register", msg.Request.Method)
	assert.False(t, msg.Request.IsNotification())
}

func TestParseMessage_Notification(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","method":"query_changed","params":{"text":"fir"}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, "query_changed", msg.Notification.Method)
}

func TestParseMessage_Response(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Response)
	assert.Nil(t, msg.Response.Error)
}

func TestParseMessage_ErrorResponse(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Response)
	require.NotNil(t, msg.Response.Error)
	assert.Equal(t, ErrMethodNotFound, msg.Response.Error.Code)
}

func TestParseMessage_InvalidJSON(t *testing.T) {
	_, err := ParseMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestRequestID_NullRoundTrip(t *testing.T) {
	var id RequestID
	require.NoError(t, json.Unmarshal([]byte("null"), &id))
	assert.True(t, id.IsNull())

	out, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestRequestID_NumericRoundTrip(t *testing.T) {
	id := NewRequestID(float64(42))
	out, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "42", string(out))
}

func TestRPCError_ErrorString(t *testing.T) {
	e := NewError(ErrInvalidParams, "bad params")
	assert.Contains(t, e.Error(), "bad params")
	assert.Contains(t, e.Error(), "-32602")
}
