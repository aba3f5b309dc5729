package executor

import (
	"context"
	"time"

	"github.com/browsergate/gateway/internal/engine"
	"github.com/browsergate/gateway/internal/gatewayerr"
	"github.com/browsergate/gateway/internal/protocol"
	"github.com/browsergate/gateway/internal/session"
)

// Fill locates selector, rejects non-input-like targets, enters text
// (clearing prior content first if requested), optionally presses Enter,
// and optionally validates the final value. A validate-after mismatch is
// reported in the result, not treated as a command failure.
func Fill(ctx context.Context, s *session.Session, p protocol.FillParams, timeout time.Duration) (protocol.FillResult, error) {
	before, _ := s.Page.Snapshot(timeout)

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runDeadlined(deadline, func() (*protocol.FillResult, error) {
		el, found, err := s.Page.Find(p.Selector, timeout)
		if err != nil {
			return nil, gatewayerr.NewInternal(err)
		}
		if !found {
			return nil, gatewayerr.NewElementNotFound(p.Selector)
		}
		if !el.Editable {
			return nil, gatewayerr.NewElementNotInteractable(p.Selector, "not an input-like element")
		}

		var fillRes engine.FillResult
		if p.TypeDelayMS > 0 {
			fillRes, err = s.Page.TypeText(p.Selector, p.Text, p.ClearFirst, time.Duration(p.TypeDelayMS)*time.Millisecond, timeout)
		} else {
			fillRes, err = s.Page.Fill(p.Selector, p.Text, p.ClearFirst, timeout)
		}
		if err != nil {
			if engine.IsElementGone(err) {
				return nil, gatewayerr.NewElementNotFound(p.Selector)
			}
			return nil, gatewayerr.NewInternal(err)
		}

		matches := true
		if p.ValidateAfter {
			matches = fillRes.Current == p.Text || (!p.ClearFirst && fillRes.Current == fillRes.Previous+p.Text)
		}

		after, err := s.Page.Snapshot(timeout)
		if err != nil {
			return nil, gatewayerr.NewInternal(err)
		}

		if p.PressEnter {
			if err := s.Page.PressEnter(p.Selector, timeout); err != nil && !engine.IsElementGone(err) {
				return nil, gatewayerr.NewInternal(err)
			}
		}

		return &protocol.FillResult{
			PreviousValue: fillRes.Previous,
			CurrentValue:  fillRes.Current,
			ValueMatches:  matches,
			Diff:          diff(before, after),
		}, nil
	})
	if err != nil {
		if err == context.DeadlineExceeded {
			s.MarkUnhealthy()
			return protocol.FillResult{}, gatewayerr.NewTimeout("fill", err)
		}
		return protocol.FillResult{}, err
	}
	return *result, nil
}
