package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// BoxInfo is an element's bounding box in viewport coordinates.
type BoxInfo struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of the box.
func (b BoxInfo) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// evalString calls a script.callFunction expecting a string return value
// (commonly a JSON-encoded payload), round-tripping structured data as a
// JSON string to sidestep BiDi's remote value serialization for objects.
func (c *Client) evalString(context, script string, args []map[string]any, timeout time.Duration) (string, error) {
	params := map[string]any{
		"functionDeclaration": script,
		"target":              map[string]any{"context": context},
		"arguments":           args,
		"awaitPromise":        false,
		"resultOwnership":     "root",
	}
	if args == nil {
		params["arguments"] = []map[string]any{}
	}

	raw, err := c.SendCommand("script.callFunction", params, timeout)
	if err != nil {
		return "", err
	}

	var callResult struct {
		Type   string          `json:"type"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &callResult); err != nil {
		return "", fmt.Errorf("parse callFunction result: %w", err)
	}
	if callResult.Type == "exception" {
		return "", fmt.Errorf("script exception: %s", string(callResult.Result))
	}

	var remote struct {
		Type  string `json:"type"`
		Value string `json:"value,omitempty"`
	}
	if err := json.Unmarshal(callResult.Result, &remote); err != nil {
		return "", fmt.Errorf("parse remote value: %w", err)
	}
	if remote.Type == "null" || remote.Type == "undefined" {
		return "", errNullResult
	}
	return remote.Value, nil
}

var errNullResult = fmt.Errorf("script returned null")

// IsNullResult reports whether err is the sentinel returned when a script
// evaluates to null/undefined (typically "element not found").
func IsNullResult(err error) bool {
	return err == errNullResult
}

// stringArg/numberArg/boolArg build script.callFunction argument values.
func stringArg(v string) map[string]any { return map[string]any{"type": "string", "value": v} }
func numberArg(v float64) map[string]any { return map[string]any{"type": "number", "value": v} }
func boolArg(v bool) map[string]any     { return map[string]any{"type": "boolean", "value": v} }

// Eval runs an arbitrary expression against context and returns its raw
// JSON-encoded string result, for the Wait executor's custom-script form.
func (c *Client) Eval(context, script string, timeout time.Duration) (string, error) {
	wrapped := fmt.Sprintf(`() => JSON.stringify({result: (%s)})`, script)
	return c.evalString(context, wrapped, nil, timeout)
}
