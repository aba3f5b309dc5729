package engine

import "time"

// Page is a single browsing context bound to a Client, the unit the
// executor layer operates against. It hides the BiDi context id and
// command plumbing behind the gateway's own vocabulary (navigate, find,
// fill, extract, wait) so internal/executor never imports script strings
// or BiDi method names directly.
type Page struct {
	client  *Client
	context string
}

// NewPage wraps an existing browsing context.
func NewPage(client *Client, context string) *Page {
	return &Page{client: client, context: context}
}

// Context returns the underlying BiDi browsing context id.
func (p *Page) Context() string { return p.context }

func (p *Page) Navigate(url, wait string, timeout time.Duration) (*NavigateResult, error) {
	return p.client.Navigate(p.context, url, wait, timeout)
}

func (p *Page) Snapshot(timeout time.Duration) (PageInfo, error) {
	return p.client.Snapshot(p.context, timeout)
}

func (p *Page) SetViewport(width, height int, timeout time.Duration) error {
	return p.client.SetViewport(p.context, width, height, timeout)
}

func (p *Page) Find(selector string, timeout time.Duration) (ElementInfo, bool, error) {
	return p.client.Find(p.context, selector, timeout)
}

func (p *Page) ClickAt(x, y float64, button string, count int, timeout time.Duration) error {
	return p.client.ClickAt(p.context, x, y, button, count, timeout)
}

func (p *Page) Fill(selector, value string, clearFirst bool, timeout time.Duration) (FillResult, error) {
	return p.client.Fill(p.context, selector, value, clearFirst, timeout)
}

// TypeText fills selector character-by-character with a pause of charDelay
// between keystrokes, for callers that need realistic typing pacing rather
// than a single DOM assignment.
func (p *Page) TypeText(selector, value string, clearFirst bool, charDelay time.Duration, timeout time.Duration) (FillResult, error) {
	return p.client.TypeText(p.context, selector, value, clearFirst, charDelay, timeout)
}

func (p *Page) PressEnter(selector string, timeout time.Duration) error {
	return p.client.PressEnter(p.context, selector, timeout)
}

func (p *Page) Extract(selector, kind, attrName, propName string, trim bool, timeout time.Duration) ([]ExtractedElement, error) {
	return p.client.Extract(p.context, selector, kind, attrName, propName, trim, timeout)
}

func (p *Page) TextEquals(selector, want string, timeout time.Duration) (found, equal bool, err error) {
	return p.client.TextEquals(p.context, selector, want, timeout)
}

func (p *Page) Presence(selector string, timeout time.Duration) (attached, visible bool, err error) {
	return p.client.Presence(p.context, selector, timeout)
}

func (p *Page) Eval(script string, timeout time.Duration) (string, error) {
	return p.client.Eval(p.context, script, timeout)
}

func (p *Page) Close(timeout time.Duration) error {
	return p.client.CloseContext(p.context, timeout)
}
