package protocol

import "time"

// StateDiff summarizes observable page changes after a mutating command.
// When Changed reports true, the session's cache entries are invalidated.
type StateDiff struct {
	URLChanged      bool   `json:"url_changed"`
	TitleChanged    bool   `json:"title_changed"`
	ElementSetHash  string `json:"element_set_hash,omitempty"`
	ElementsChanged bool   `json:"elements_changed"`
}

// Changed reports whether any observable signal differs.
func (d StateDiff) Changed() bool {
	return d.URLChanged || d.TitleChanged || d.ElementsChanged
}

// ErrorBlock is the failure payload shape.
type ErrorBlock struct {
	Error     string         `json:"error"`
	ErrorCode string         `json:"error_code"`
	ErrorType string         `json:"error_type"`
	Details   map[string]any `json:"details,omitempty"`
}

// NavigateResult is the success payload for a Navigate command.
type NavigateResult struct {
	FinalURL   string `json:"final_url"`
	Title      string `json:"title"`
	Redirected bool   `json:"redirected"`
	Diff       StateDiff `json:"diff"`
}

// ClickResult is the success payload for a Click command.
type ClickResult struct {
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Diff StateDiff `json:"diff"`
}

// FillResult is the success payload for a Fill command.
type FillResult struct {
	PreviousValue string    `json:"previous_value"`
	CurrentValue  string    `json:"current_value"`
	ValueMatches  bool      `json:"value_matches"`
	Diff          StateDiff `json:"diff"`
}

// ExtractMatch describes one matched element's metadata alongside extracted data.
type ExtractMatch struct {
	Data string  `json:"data"`
	Tag  string  `json:"tag"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// ExtractResult is the success payload for an Extract command.
type ExtractResult struct {
	Matches   []ExtractMatch `json:"matches"`
	FromCache bool           `json:"from_cache"`
}

// WaitResult is the success payload for a Wait command.
type WaitResult struct {
	ConditionMet bool  `json:"condition_met"`
	WaitTimeMS   int64 `json:"wait_time_ms"`
}

// Reply is the common reply frame shape. Exactly one of Result or Error
// is populated, selected by Success.
type Reply struct {
	ID              string      `json:"id"`
	Success         bool        `json:"success"`
	Timestamp       float64     `json:"timestamp"`
	ExecutionTimeMS int64       `json:"execution_time_ms"`
	Result          any         `json:"result,omitempty"`
	Error           *ErrorBlock `json:"error,omitempty"`
}

// NewSuccess builds a success reply frame.
func NewSuccess(id string, execTime time.Duration, result any) Reply {
	return Reply{
		ID:              id,
		Success:         true,
		Timestamp:       float64(time.Now().UnixNano()) / 1e9,
		ExecutionTimeMS: execTime.Milliseconds(),
		Result:          result,
	}
}

// NewFailure builds a failure reply frame.
func NewFailure(id string, execTime time.Duration, block ErrorBlock) Reply {
	return Reply{
		ID:              id,
		Success:         false,
		Timestamp:       float64(time.Now().UnixNano()) / 1e9,
		ExecutionTimeMS: execTime.Milliseconds(),
		Error:           &block,
	}
}
