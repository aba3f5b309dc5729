package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// ElementInfo is what Find/FindAll report about a matched element.
type ElementInfo struct {
	Tag      string  `json:"tag"`
	Text     string  `json:"text"`
	Box      BoxInfo `json:"box"`
	Disabled bool    `json:"disabled"`
	ReadOnly bool    `json:"readonly"`
	Editable bool    `json:"editable"`
	Value    string  `json:"value"`
}

// findScript locates an element (or all matches), scrolls each returned
// match into view, and reports its actionability-relevant state in one round
// trip, combining find + scroll + checks into a single
// script.callFunction call.
const findScript = `
(selector, all, limit) => {
	const nodes = Array.from(document.querySelectorAll(selector));
	if (nodes.length === 0) return null;
	const slice = all ? (limit > 0 ? nodes.slice(0, limit) : nodes) : [nodes[0]];
	const out = slice.map((el) => {
		if (el.scrollIntoViewIfNeeded) el.scrollIntoViewIfNeeded(true);
		else el.scrollIntoView({block: 'center', inline: 'nearest'});
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const visible = rect.width > 0 && rect.height > 0 &&
			style.visibility !== 'hidden' && style.display !== 'none';
		const tag = el.tagName.toLowerCase();
		const textTypes = ['text','password','email','number','search','tel','url'];
		const editable = visible && !el.disabled &&
			(tag === 'textarea' || el.isContentEditable ||
				(tag === 'input' && textTypes.includes((el.type||'text').toLowerCase()))) &&
			!el.readOnly;
		return {
			tag,
			text: (el.textContent || '').trim().substring(0, 200),
			box: {x: rect.x, y: rect.y, width: rect.width, height: rect.height},
			disabled: !!el.disabled || el.getAttribute('aria-disabled') === 'true',
			readonly: !!el.readOnly,
			editable,
			value: (el.value !== undefined) ? String(el.value) : '',
			visible,
		};
	});
	return JSON.stringify(out);
}`

type rawElement struct {
	Tag      string  `json:"tag"`
	Text     string  `json:"text"`
	Box      BoxInfo `json:"box"`
	Disabled bool    `json:"disabled"`
	ReadOnly bool    `json:"readonly"`
	Editable bool    `json:"editable"`
	Value    string  `json:"value"`
	Visible  bool    `json:"visible"`
}

// FindAll locates elements matching selector. If all is false only the
// first match is scrolled into view and returned.
func (c *Client) FindAll(context, selector string, all bool, limit int, timeout time.Duration) ([]ElementInfo, error) {
	raw, err := c.evalString(context, findScript, []map[string]any{
		stringArg(selector), boolArg(all), numberArg(float64(limit)),
	}, timeout)
	if err != nil {
		if IsNullResult(err) {
			return nil, nil
		}
		return nil, err
	}

	var parsed []rawElement
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse find result: %w", err)
	}

	out := make([]ElementInfo, len(parsed))
	for i, e := range parsed {
		out[i] = ElementInfo{
			Tag: e.Tag, Text: e.Text, Box: e.Box,
			Disabled: e.Disabled, ReadOnly: e.ReadOnly, Editable: e.Editable, Value: e.Value,
		}
	}
	return out, nil
}

// Find locates the first element matching selector, or returns
// (ElementInfo{}, false, nil) if none matched.
func (c *Client) Find(context, selector string, timeout time.Duration) (ElementInfo, bool, error) {
	els, err := c.FindAll(context, selector, false, 1, timeout)
	if err != nil {
		return ElementInfo{}, false, err
	}
	if len(els) == 0 {
		return ElementInfo{}, false, nil
	}
	return els[0], true, nil
}

// ClickAt performs a mouse click at viewport coordinates using BiDi's
// input.performActions pointer-action sequence.
func (c *Client) ClickAt(context string, x, y float64, button string, count int, timeout time.Duration) error {
	btn := map[string]int{"left": 0, "middle": 1, "right": 2}[button]

	actions := []map[string]any{
		{"type": "pointerMove", "x": int(x), "y": int(y), "duration": 0},
	}
	for i := 0; i < count; i++ {
		actions = append(actions,
			map[string]any{"type": "pointerDown", "button": btn},
			map[string]any{"type": "pointerUp", "button": btn},
		)
	}

	params := map[string]any{
		"context": context,
		"actions": []map[string]any{
			{
				"type": "pointer", "id": "mouse",
				"parameters": map[string]any{"pointerType": "mouse"},
				"actions":    actions,
			},
		},
	}
	_, err := c.SendCommand("input.performActions", params, timeout)
	return err
}

// fillScript sets an element's value via the DOM and dispatches input/change
// events so framework-bound listeners observe the change, rather than
// relying solely on synthesized keystrokes.
const fillScript = `
(selector, value, clearFirst) => {
	const el = document.querySelector(selector);
	if (!el) return null;
	const previous = el.value !== undefined ? String(el.value) : '';
	if (clearFirst) el.value = '';
	el.focus();
	el.value = (clearFirst ? '' : el.value) + value;
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return JSON.stringify({previous, current: String(el.value)});
}`

// focusAndClearScript focuses selector, optionally clearing its existing
// value, and reports the value as it stood before clearing. Used ahead of
// key-by-key typing, where the keystrokes themselves (not a script) produce
// the final value.
const focusAndClearScript = `
(selector, clearFirst) => {
	const el = document.querySelector(selector);
	if (!el) return null;
	const previous = el.value !== undefined ? String(el.value) : '';
	el.focus();
	if (clearFirst) el.value = '';
	return previous;
}`

// readValueScript reads back an input-like element's current value.
const readValueScript = `
(selector) => {
	const el = document.querySelector(selector);
	if (!el) return null;
	return String(el.value !== undefined ? el.value : '');
}`

// FillResult reports the before/after values of a fill primitive.
type FillResult struct {
	Previous string
	Current  string
}

// Fill sets selector's value to value in one DOM assignment, optionally
// clearing existing content first. Use TypeText instead when the caller
// needs real per-character pacing.
func (c *Client) Fill(context, selector, value string, clearFirst bool, timeout time.Duration) (FillResult, error) {
	raw, err := c.evalString(context, fillScript, []map[string]any{
		stringArg(selector), stringArg(value), boolArg(clearFirst),
	}, timeout)
	if err != nil {
		if IsNullResult(err) {
			return FillResult{}, errElementGone
		}
		return FillResult{}, err
	}
	var parsed struct {
		Previous string `json:"previous"`
		Current  string `json:"current"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return FillResult{}, fmt.Errorf("parse fill result: %w", err)
	}
	return FillResult{Previous: parsed.Previous, Current: parsed.Current}, nil
}

// TypeText focuses selector, optionally clears it, then dispatches one
// BiDi input.performActions key-down/key-up pair per rune with a pause of
// charDelay between characters, the same direct-input-actions path ClickAt
// uses for pointer events but applied to the keyboard input source so
// framework keystroke handlers (not just value-assignment listeners) see
// each character land.
func (c *Client) TypeText(context, selector, value string, clearFirst bool, charDelay time.Duration, timeout time.Duration) (FillResult, error) {
	previous, err := c.evalString(context, focusAndClearScript, []map[string]any{
		stringArg(selector), boolArg(clearFirst),
	}, timeout)
	if err != nil {
		if IsNullResult(err) {
			return FillResult{}, errElementGone
		}
		return FillResult{}, err
	}

	runes := []rune(value)
	for i, r := range runes {
		params := map[string]any{
			"context": context,
			"actions": []map[string]any{
				{
					"type": "key", "id": "keyboard",
					"actions": []map[string]any{
						{"type": "keyDown", "value": string(r)},
						{"type": "keyUp", "value": string(r)},
					},
				},
			},
		}
		if _, err := c.SendCommand("input.performActions", params, timeout); err != nil {
			return FillResult{}, err
		}
		if charDelay > 0 && i < len(runes)-1 {
			time.Sleep(charDelay)
		}
	}

	current, err := c.evalString(context, readValueScript, []map[string]any{stringArg(selector)}, timeout)
	if err != nil {
		if IsNullResult(err) {
			return FillResult{}, errElementGone
		}
		return FillResult{}, err
	}

	return FillResult{Previous: previous, Current: current}, nil
}

var errElementGone = fmt.Errorf("element not found")

// IsElementGone reports whether err is the sentinel for a selector that
// stopped matching between the find and the action (a TOCTOU race with
// page mutation).
func IsElementGone(err error) bool {
	return err == errElementGone
}

// pressEnterScript dispatches an Enter keydown/keyup pair on the focused
// element's selector.
const pressEnterScript = `
(selector) => {
	const el = document.querySelector(selector);
	if (!el) return null;
	const opts = {key: 'Enter', code: 'Enter', keyCode: 13, bubbles: true};
	el.dispatchEvent(new KeyboardEvent('keydown', opts));
	el.dispatchEvent(new KeyboardEvent('keyup', opts));
	return JSON.stringify({ok: true});
}`

// PressEnter simulates an Enter keypress on selector.
func (c *Client) PressEnter(context, selector string, timeout time.Duration) error {
	_, err := c.evalString(context, pressEnterScript, []map[string]any{stringArg(selector)}, timeout)
	if err != nil && IsNullResult(err) {
		return errElementGone
	}
	return err
}

// extractScript pulls text/html/attribute/property data from every
// matching element, trimming whitespace on request.
const extractScript = `
(selector, kind, attrName, propName, trim) => {
	const nodes = Array.from(document.querySelectorAll(selector));
	const out = nodes.map((el) => {
		let data = '';
		if (kind === 'text') data = el.textContent || '';
		else if (kind === 'html') data = el.innerHTML || '';
		else if (kind === 'attribute') data = el.getAttribute(attrName) || '';
		else if (kind === 'property') data = el[propName] !== undefined ? String(el[propName]) : '';
		if (trim) data = data.trim();
		const rect = el.getBoundingClientRect();
		return {data, tag: el.tagName.toLowerCase(), box: {x: rect.x, y: rect.y, width: rect.width, height: rect.height}};
	});
	return JSON.stringify(out);
}`

// ExtractedElement is one matched element's extracted data plus metadata.
type ExtractedElement struct {
	Data string  `json:"data"`
	Tag  string  `json:"tag"`
	Box  BoxInfo `json:"box"`
}

// Extract pulls kind-specific data from every element matching selector.
func (c *Client) Extract(context, selector, kind, attrName, propName string, trim bool, timeout time.Duration) ([]ExtractedElement, error) {
	raw, err := c.evalString(context, extractScript, []map[string]any{
		stringArg(selector), stringArg(kind), stringArg(attrName), stringArg(propName), boolArg(trim),
	}, timeout)
	if err != nil {
		if IsNullResult(err) {
			return nil, nil
		}
		return nil, err
	}
	var parsed []ExtractedElement
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse extract result: %w", err)
	}
	return parsed, nil
}

// textEqualsScript checks whether selector's trimmed text content equals want.
const textEqualsScript = `
(selector, want) => {
	const el = document.querySelector(selector);
	if (!el) return JSON.stringify({found: false, equal: false});
	return JSON.stringify({found: true, equal: (el.textContent||'').trim() === want});
}`

// TextEquals reports whether selector is present and its text equals want.
func (c *Client) TextEquals(context, selector, want string, timeout time.Duration) (found, equal bool, err error) {
	raw, err := c.evalString(context, textEqualsScript, []map[string]any{stringArg(selector), stringArg(want)}, timeout)
	if err != nil {
		return false, false, err
	}
	var parsed struct {
		Found bool `json:"found"`
		Equal bool `json:"equal"`
	}
	if e := json.Unmarshal([]byte(raw), &parsed); e != nil {
		return false, false, fmt.Errorf("parse text-equals result: %w", e)
	}
	return parsed.Found, parsed.Equal, nil
}

// presenceScript reports whether selector currently matches an attached,
// visible element — backing the visible/hidden/attached/detached wait
// conditions with a single poll primitive.
const presenceScript = `
(selector) => {
	const el = document.querySelector(selector);
	if (!el) return JSON.stringify({attached: false, visible: false});
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	const visible = rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none';
	return JSON.stringify({attached: true, visible});
}`

// Presence reports whether selector is attached to the DOM and, if so,
// whether it is visible.
func (c *Client) Presence(context, selector string, timeout time.Duration) (attached, visible bool, err error) {
	raw, err := c.evalString(context, presenceScript, []map[string]any{stringArg(selector)}, timeout)
	if err != nil {
		return false, false, err
	}
	var parsed struct {
		Attached bool `json:"attached"`
		Visible  bool `json:"visible"`
	}
	if e := json.Unmarshal([]byte(raw), &parsed); e != nil {
		return false, false, fmt.Errorf("parse presence result: %w", e)
	}
	return parsed.Attached, parsed.Visible, nil
}
