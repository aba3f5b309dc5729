package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContextInfo describes one browsing context in the tree.
type ContextInfo struct {
	Context string `json:"context"`
	URL     string `json:"url"`
}

// GetTree returns the browsing contexts known to this client's context.
func (c *Client) GetTree(timeout time.Duration) ([]ContextInfo, error) {
	raw, err := c.SendCommand("browsingContext.getTree", map[string]any{}, timeout)
	if err != nil {
		return nil, err
	}
	var result struct {
		Contexts []ContextInfo `json:"contexts"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse getTree result: %w", err)
	}
	return result.Contexts, nil
}

// CreateContext opens a new top-level browsing context (a page/tab).
func (c *Client) CreateContext(timeout time.Duration) (string, error) {
	raw, err := c.SendCommand("browsingContext.create", map[string]any{"type": "tab"}, timeout)
	if err != nil {
		return "", fmt.Errorf("create browsing context: %w", err)
	}
	var result struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("parse create context result: %w", err)
	}
	return result.Context, nil
}

// CloseContext closes a browsing context.
func (c *Client) CloseContext(context string, timeout time.Duration) error {
	_, err := c.SendCommand("browsingContext.close", map[string]any{"context": context}, timeout)
	return err
}

// NavigateResult is the outcome of a navigate primitive.
type NavigateResult struct {
	URL string `json:"url"`
}

// Navigate navigates context to url, waiting for the given BiDi readiness
// state ("none", "interactive", "complete").
func (c *Client) Navigate(context, url, wait string, timeout time.Duration) (*NavigateResult, error) {
	params := map[string]any{"context": context, "url": url, "wait": wait}
	raw, err := c.SendCommand("browsingContext.navigate", params, timeout)
	if err != nil {
		return nil, err
	}
	var result NavigateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse navigate result: %w", err)
	}
	return &result, nil
}

// SetViewport installs a fixed viewport size on context, used when a
// session is created.
func (c *Client) SetViewport(context string, width, height int, timeout time.Duration) error {
	params := map[string]any{
		"context":  context,
		"viewport": map[string]any{"width": width, "height": height},
	}
	_, err := c.SendCommand("browsingContext.setViewport", params, timeout)
	return err
}

// PageInfo is the coarse observable state of a page, used both to report
// navigate results and to compute the state-diff envelope.
type PageInfo struct {
	URL   string
	Title string
	// ElementHash is a cheap structural signal (element count) standing in
	// for a full DOM diff.
	ElementHash string
}

// Snapshot evaluates a small script against context to capture URL, title,
// and a coarse element-count hash in a single round trip.
func (c *Client) Snapshot(context string, timeout time.Duration) (PageInfo, error) {
	script := `() => JSON.stringify({
		url: location.href,
		title: document.title,
		count: document.querySelectorAll('*').length
	})`
	raw, err := c.evalString(context, script, nil, timeout)
	if err != nil {
		return PageInfo{}, err
	}
	var parsed struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return PageInfo{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return PageInfo{URL: parsed.URL, Title: parsed.Title, ElementHash: fmt.Sprintf("%d", parsed.Count)}, nil
}
