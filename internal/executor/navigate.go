package executor

import (
	"context"
	"time"

	"github.com/browsergate/gateway/internal/gatewayerr"
	"github.com/browsergate/gateway/internal/protocol"
	"github.com/browsergate/gateway/internal/session"
)

func waitUntilToEngine(w protocol.WaitUntil) string {
	switch w {
	case protocol.WaitUntilDOMContentLoaded:
		return "interactive"
	case protocol.WaitUntilNetworkIdle, protocol.WaitUntilLoad, "":
		return "complete"
	default:
		return "complete"
	}
}

// Navigate issues a navigation on s's page and reports the final URL,
// title, and whether a redirect occurred.
func Navigate(ctx context.Context, s *session.Session, p protocol.NavigateParams, timeout time.Duration) (protocol.NavigateResult, error) {
	before, _ := s.Page.Snapshot(timeout)

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runDeadlined(deadline, func() (*protocol.NavigateResult, error) {
		nav, err := s.Page.Navigate(p.URL, waitUntilToEngine(p.WaitUntil), timeout)
		if err != nil {
			return nil, gatewayerr.NewNavigationFailed(p.URL, err)
		}
		after, err := s.Page.Snapshot(timeout)
		if err != nil {
			return nil, gatewayerr.NewNavigationFailed(p.URL, err)
		}
		d := diff(before, after)
		return &protocol.NavigateResult{
			FinalURL:   nav.URL,
			Title:      after.Title,
			Redirected: nav.URL != p.URL,
			Diff:       d,
		}, nil
	})
	if err != nil {
		if err == context.DeadlineExceeded {
			s.MarkUnhealthy()
			return protocol.NavigateResult{}, gatewayerr.NewTimeout("navigate", err)
		}
		return protocol.NavigateResult{}, err
	}
	return *result, nil
}
