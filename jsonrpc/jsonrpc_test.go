package jsonrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidRequest(t *testing.T) {
	err := Validate([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"scrape"}}`))
	assert.NoError(t, err)
}

func TestValidNotification(t *testing.T) {
	err := Validate([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.NoError(t, err)
}

func TestValidResponse(t *testing.T) {
	err := Validate([]byte(`{"jsonrpc":"2.0","id":"a1","result":{"content":[]}}`))
	assert.NoError(t, err)
}

func TestValidErrorResponse(t *testing.T) {
	err := Validate([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
	assert.NoError(t, err)
}

func TestValidBatch(t *testing.T) {
	err := Validate([]byte(`[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","method":"notify"}]`))
	assert.NoError(t, err)
}

func TestMissingVersion(t *testing.T) {
	err := Validate([]byte(`{"id":1,"method":"ping"}`))
	assert.Error(t, err)
}

func TestWrongVersion(t *testing.T) {
	err := Validate([]byte(`{"jsonrpc":"1.0","id":1,"method":"ping"}`))
	assert.Error(t, err)
}

func TestErrorWithoutCode(t *testing.T) {
	err := Validate([]byte(`{"jsonrpc":"2.0","id":1,"error":{"message":"boom"}}`))
	assert.Error(t, err)
}

func TestEmptyBatch(t *testing.T) {
	err := Validate([]byte(`[]`))
	assert.Error(t, err)
}

func TestNotJSON(t *testing.T) {
	err := Validate([]byte(`event: message`))
	assert.Error(t, err)
}
