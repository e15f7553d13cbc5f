// Package jsonrpc provides best-effort validation of JSON-RPC 2.0 messages.
// The proxy uses it to flag malformed client packets in the logs; traffic
// is never rejected on validation grounds.
package jsonrpc

import (
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// messageSchema accepts a single JSON-RPC 2.0 request, notification or
// response, or a non-empty batch of them.
const messageSchema = `{
	"$schema": "http://json-schema.org/draft-04/schema#",
	"oneOf": [
		{"$ref": "#/definitions/message"},
		{
			"type": "array",
			"items": {"$ref": "#/definitions/message"},
			"minItems": 1
		}
	],
	"definitions": {
		"message": {
			"type": "object",
			"properties": {
				"jsonrpc": {"type": "string", "enum": ["2.0"]},
				"id": {"type": ["string", "number", "null"]},
				"method": {"type": "string"},
				"params": {"type": ["object", "array"]},
				"result": {},
				"error": {
					"type": "object",
					"properties": {
						"code": {"type": "integer"},
						"message": {"type": "string"}
					},
					"required": ["code", "message"]
				}
			},
			"required": ["jsonrpc"],
			"anyOf": [
				{"required": ["method"]},
				{"required": ["result"]},
				{"required": ["error"]}
			]
		}
	}
}`

var schema *gojsonschema.Schema

func init() {
	var err error
	schema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(messageSchema))
	if err != nil {
		panic(err)
	}
}

// Validate checks that data is a structurally valid JSON-RPC 2.0 message or
// batch, returning an error describing the first violation found.
func Validate(data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.Wrap(err, "parsing json-rpc message")
	}
	if !result.Valid() {
		return errors.Errorf("invalid json-rpc message: %s", result.Errors()[0])
	}
	return nil
}
