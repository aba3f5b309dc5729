// Package protocol defines the wire command and result contracts: the
// discriminated command variants clients send and the result shapes the
// gateway replies with.
package protocol

import "encoding/json"

// Kind identifies a command variant.
type Kind string

const (
	KindNavigate Kind = "navigate"
	KindClick    Kind = "click"
	KindFill     Kind = "fill"
	KindExtract  Kind = "extract"
	KindWait     Kind = "wait"
)

// ReadOnly reports whether commands of this kind never mutate page state
// and are therefore cache-eligible in principle (Wait is read-only but
// time-sensitive, so the cache layer excludes it separately).
func (k Kind) ReadOnly() bool {
	return k == KindExtract || k == KindWait
}

// Mutating reports whether commands of this kind invalidate cached entries
// for their session on success.
func (k Kind) Mutating() bool {
	return k == KindNavigate || k == KindClick || k == KindFill
}

// WaitUntil is a page-lifecycle milestone for Navigate and global Wait forms.
type WaitUntil string

const (
	WaitUntilLoad             WaitUntil = "load"
	WaitUntilDOMContentLoaded WaitUntil = "dom-content-loaded"
	WaitUntilNetworkIdle      WaitUntil = "network-idle"
)

// MouseButton identifies which button a Click uses.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// ExtractKind selects what an Extract command pulls from matched elements.
type ExtractKind string

const (
	ExtractText      ExtractKind = "text"
	ExtractHTML      ExtractKind = "html"
	ExtractAttribute ExtractKind = "attribute"
	ExtractProperty  ExtractKind = "property"
)

// WaitCondition selects what a Wait command polls or awaits.
type WaitCondition string

const (
	WaitLoad             WaitCondition = "load"
	WaitDOMContentLoaded WaitCondition = "dom-content-loaded"
	WaitNetworkIdle      WaitCondition = "network-idle"
	WaitVisible          WaitCondition = "visible"
	WaitHidden           WaitCondition = "hidden"
	WaitAttached         WaitCondition = "attached"
	WaitDetached         WaitCondition = "detached"
	WaitTextEquals       WaitCondition = "text-equals"
	WaitCustomScript     WaitCondition = "custom-script"
)

// globalWaitConditions are resolved against the page's lifecycle, not an
// element; the rest poll a selector or evaluate a script.
func (c WaitCondition) IsGlobal() bool {
	switch c {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle:
		return true
	}
	return false
}

// Envelope is the common shape of every request frame before it is
// resolved into a typed Command. method-specific fields live in Raw and
// are picked apart by Decode.
type Envelope struct {
	ID        string          `json:"id"`
	Method    Kind            `json:"method"`
	SessionID string          `json:"session_id,omitempty"`
	TimeoutMS int             `json:"timeout_ms,omitempty"`
	APIKey    string          `json:"api_key,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Command is the discriminated command value produced by Decode.
type Command struct {
	ID        string
	Kind      Kind
	SessionID string
	Timeout   int // milliseconds; 0 means "use server default"

	Navigate *NavigateParams
	Click    *ClickParams
	Fill     *FillParams
	Extract  *ExtractParams
	Wait     *WaitParams
}

// NavigateParams are the fields of a Navigate command.
type NavigateParams struct {
	URL       string    `json:"url"`
	WaitUntil WaitUntil `json:"wait_until,omitempty"`
	Referer   string    `json:"referer,omitempty"`
}

// ClickParams are the fields of a Click command.
type ClickParams struct {
	Selector string      `json:"selector"`
	Button   MouseButton `json:"button,omitempty"`
	Count    int         `json:"count,omitempty"`
	Force    bool        `json:"force,omitempty"`
	HasPos   bool        `json:"has_position,omitempty"`
	PosX     float64     `json:"pos_x,omitempty"`
	PosY     float64     `json:"pos_y,omitempty"`
}

// FillParams are the fields of a Fill command.
type FillParams struct {
	Selector      string `json:"selector"`
	Text          string `json:"text"`
	ClearFirst    bool   `json:"clear_first,omitempty"`
	TypeDelayMS   int    `json:"type_delay_ms,omitempty"`
	PressEnter    bool   `json:"press_enter,omitempty"`
	ValidateAfter bool   `json:"validate_after,omitempty"`
}

// ExtractParams are the fields of an Extract command.
type ExtractParams struct {
	Selector       string      `json:"selector"`
	Kind           ExtractKind `json:"kind"`
	AttributeName  string      `json:"attribute_name,omitempty"`
	PropertyName   string      `json:"property_name,omitempty"`
	Multiple       bool        `json:"multiple,omitempty"`
	TrimWhitespace bool        `json:"trim_whitespace,omitempty"`
}

// WaitParams are the fields of a Wait command.
type WaitParams struct {
	Condition    WaitCondition `json:"condition"`
	Selector     string        `json:"selector,omitempty"`
	ExpectedText string        `json:"expected_text,omitempty"`
	Script       string        `json:"script,omitempty"`
	PollMS       int           `json:"poll_ms,omitempty"`
}
