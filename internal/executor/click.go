package executor

import (
	"context"
	"time"

	"github.com/browsergate/gateway/internal/gatewayerr"
	"github.com/browsergate/gateway/internal/protocol"
	"github.com/browsergate/gateway/internal/session"
)

// Click locates selector, checks actionability unless force is set, and
// performs the click at the element's center or a given fractional offset
// within its bounding box.
func Click(ctx context.Context, s *session.Session, p protocol.ClickParams, timeout time.Duration) (protocol.ClickResult, error) {
	before, _ := s.Page.Snapshot(timeout)

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runDeadlined(deadline, func() (*protocol.ClickResult, error) {
		el, found, err := s.Page.Find(p.Selector, timeout)
		if err != nil {
			return nil, gatewayerr.NewInternal(err)
		}
		if !found {
			return nil, gatewayerr.NewElementNotFound(p.Selector)
		}

		_, visible, err := s.Page.Presence(p.Selector, timeout)
		if err != nil {
			return nil, gatewayerr.NewInternal(err)
		}
		if !visible && !p.Force {
			return nil, gatewayerr.NewElementNotVisible(p.Selector, "not visible")
		}

		x, y := el.Box.Center()
		if p.HasPos {
			x = el.Box.X + p.PosX*el.Box.Width
			y = el.Box.Y + p.PosY*el.Box.Height
		}

		button := string(p.Button)
		if button == "" {
			button = "left"
		}
		count := p.Count
		if count < 1 {
			count = 1
		}

		if err := s.Page.ClickAt(x, y, button, count, timeout); err != nil {
			return nil, gatewayerr.NewInternal(err)
		}

		after, err := s.Page.Snapshot(timeout)
		if err != nil {
			return nil, gatewayerr.NewInternal(err)
		}

		return &protocol.ClickResult{X: x, Y: y, Diff: diff(before, after)}, nil
	})
	if err != nil {
		if err == context.DeadlineExceeded {
			s.MarkUnhealthy()
			return protocol.ClickResult{}, gatewayerr.NewTimeout("click", err)
		}
		return protocol.ClickResult{}, err
	}
	return *result, nil
}
