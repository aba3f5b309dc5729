package executor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/browsergate/gateway/internal/gatewayerr"
	"github.com/browsergate/gateway/internal/protocol"
	"github.com/browsergate/gateway/internal/session"
)

const defaultPollInterval = 100 * time.Millisecond

// Wait handles the global page-lifecycle conditions (load,
// dom-content-loaded, network-idle) with a single page snapshot: the
// condition counts as met if the snapshot succeeds, and neither the
// document's ready state nor network activity is checked. Element, text
// and script conditions are polled until met or until the timeout
// elapses. It always reports elapsed time and whether the condition was
// met;
// timing out on a poll is not itself an error — Wait degrades to
// ConditionMet=false rather than surfacing a timeout failure, since a
// false wait result is informative to the caller.
func Wait(ctx context.Context, s *session.Session, p protocol.WaitParams, timeout time.Duration) (protocol.WaitResult, error) {
	start := time.Now()

	poll := defaultPollInterval
	if p.PollMS > 0 {
		poll = time.Duration(p.PollMS) * time.Millisecond
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p.Condition.IsGlobal() {
		_, err := s.Page.Snapshot(timeout)
		elapsed := time.Since(start)
		if err != nil {
			return protocol.WaitResult{ConditionMet: false, WaitTimeMS: elapsed.Milliseconds()}, gatewayerr.NewTimeout("wait", err)
		}
		return protocol.WaitResult{ConditionMet: true, WaitTimeMS: elapsed.Milliseconds()}, nil
	}

	met, err := pollCondition(deadline, s, p, poll)
	elapsed := time.Since(start)
	if err != nil {
		s.MarkUnhealthy()
		return protocol.WaitResult{ConditionMet: false, WaitTimeMS: elapsed.Milliseconds()}, gatewayerr.NewInternal(err)
	}
	return protocol.WaitResult{ConditionMet: met, WaitTimeMS: elapsed.Milliseconds()}, nil
}

func pollCondition(ctx context.Context, s *session.Session, p protocol.WaitParams, poll time.Duration) (bool, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	check := func() (bool, error) {
		switch p.Condition {
		case protocol.WaitVisible:
			_, visible, err := s.Page.Presence(p.Selector, poll)
			return visible, err
		case protocol.WaitHidden:
			attached, visible, err := s.Page.Presence(p.Selector, poll)
			return !attached || !visible, err
		case protocol.WaitAttached:
			attached, _, err := s.Page.Presence(p.Selector, poll)
			return attached, err
		case protocol.WaitDetached:
			attached, _, err := s.Page.Presence(p.Selector, poll)
			return !attached, err
		case protocol.WaitTextEquals:
			found, equal, err := s.Page.TextEquals(p.Selector, p.ExpectedText, poll)
			return found && equal, err
		case protocol.WaitCustomScript:
			raw, err := s.Page.Eval(p.Script, poll)
			if err != nil {
				return false, nil // treat a transient eval error as "not yet true"
			}
			return truthy(raw), nil
		default:
			return false, nil
		}
	}

	if ok, err := check(); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
			ok, err := check()
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
}

func truthy(jsonResult string) bool {
	var parsed struct {
		Result json.RawMessage `json:"result"`
	}
	if json.Unmarshal([]byte(jsonResult), &parsed) != nil {
		return false
	}
	s := strings.TrimSpace(string(parsed.Result))
	switch s {
	case "", "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}
