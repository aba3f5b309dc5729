package executor

import (
	"context"
	"time"

	"github.com/browsergate/gateway/internal/gatewayerr"
	"github.com/browsergate/gateway/internal/protocol"
	"github.com/browsergate/gateway/internal/session"
)

// Extract pulls text/html/attribute/property data from one or all
// selector matches (per Multiple). It is read-only and cache-eligible;
// FromCache is set by the caller after a cache hit, not by this function.
func Extract(ctx context.Context, s *session.Session, p protocol.ExtractParams, timeout time.Duration) (protocol.ExtractResult, error) {
	if p.Kind == protocol.ExtractAttribute && p.AttributeName == "" {
		return protocol.ExtractResult{}, gatewayerr.NewInvalidCommand("attribute_name required for kind=attribute")
	}
	if p.Kind == protocol.ExtractProperty && p.PropertyName == "" {
		return protocol.ExtractResult{}, gatewayerr.NewInvalidCommand("property_name required for kind=property")
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runDeadlined(deadline, func() (*protocol.ExtractResult, error) {
		matches, err := s.Page.Extract(p.Selector, string(p.Kind), p.AttributeName, p.PropertyName, p.TrimWhitespace, timeout)
		if err != nil {
			return nil, gatewayerr.NewExtractionFailed(p.Selector, err)
		}
		if len(matches) == 0 {
			return nil, gatewayerr.NewElementNotFound(p.Selector)
		}
		if !p.Multiple {
			matches = matches[:1]
		}

		out := make([]protocol.ExtractMatch, len(matches))
		for i, m := range matches {
			out[i] = protocol.ExtractMatch{
				Data: m.Data, Tag: m.Tag,
				X: m.Box.X, Y: m.Box.Y, W: m.Box.Width, H: m.Box.Height,
			}
		}
		return &protocol.ExtractResult{Matches: out}, nil
	})
	if err != nil {
		if err == context.DeadlineExceeded {
			s.MarkUnhealthy()
			return protocol.ExtractResult{}, gatewayerr.NewTimeout("extract", err)
		}
		return protocol.ExtractResult{}, err
	}
	return *result, nil
}
