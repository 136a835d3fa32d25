package policy

import (
	"bytes"
	"encoding/json"
)

const malformedMessage = "Unrecognised policy response"

// parseResult reads a verdict from a raw function response. Anything it cannot
// interpret yields Valid=false.
func parseResult(raw []byte) Result {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Result{Message: malformedMessage}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Result{Message: malformedMessage}
	}

	body := top
	if rawBody, ok := top["body"]; ok && !bytes.Equal(bytes.TrimSpace(rawBody), []byte("null")) {
		inner, ok := unwrapBody(rawBody)
		if !ok {
			return Result{Message: malformedMessage}
		}
		body = inner
	}

	res := Result{Valid: isTrue(body["is_valid"]) || isTrue(body["is_allowed"])}
	var msg string
	if json.Unmarshal(body["message"], &msg) == nil {
		res.Message = msg
	}
	return res
}

// unwrapBody accepts a body that is an object or a JSON string holding one.
func unwrapBody(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func isTrue(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("true"))
}
