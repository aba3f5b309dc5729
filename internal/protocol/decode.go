package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/browsergate/gateway/internal/gatewayerr"
)

// DecodeEnvelope unmarshals one wire frame into an Envelope, capturing the
// raw bytes for method-specific decoding.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, gatewayerr.NewInvalidCommand("malformed JSON: " + err.Error())
	}
	env.Raw = frame
	if env.ID == "" {
		return Envelope{}, gatewayerr.NewInvalidCommand("missing id")
	}
	return env, nil
}

// Decode resolves an Envelope into a typed, validated Command. Unknown
// methods and schema failures both fail fast with InvalidCommand.
func Decode(env Envelope) (Command, error) {
	cmd := Command{
		ID:        env.ID,
		Kind:      env.Method,
		SessionID: env.SessionID,
		Timeout:   env.TimeoutMS,
	}

	switch env.Method {
	case KindNavigate:
		var p NavigateParams
		if err := json.Unmarshal(env.Raw, &p); err != nil {
			return Command{}, gatewayerr.NewInvalidCommand("navigate: " + err.Error())
		}
		if err := validateNavigate(&p); err != nil {
			return Command{}, err
		}
		cmd.Navigate = &p

	case KindClick:
		var p ClickParams
		if err := json.Unmarshal(env.Raw, &p); err != nil {
			return Command{}, gatewayerr.NewInvalidCommand("click: " + err.Error())
		}
		if err := validateClick(&p); err != nil {
			return Command{}, err
		}
		cmd.Click = &p

	case KindFill:
		var p FillParams
		if err := json.Unmarshal(env.Raw, &p); err != nil {
			return Command{}, gatewayerr.NewInvalidCommand("fill: " + err.Error())
		}
		if err := validateFill(&p); err != nil {
			return Command{}, err
		}
		cmd.Fill = &p

	case KindExtract:
		var p ExtractParams
		if err := json.Unmarshal(env.Raw, &p); err != nil {
			return Command{}, gatewayerr.NewInvalidCommand("extract: " + err.Error())
		}
		if err := validateExtract(&p); err != nil {
			return Command{}, err
		}
		cmd.Extract = &p

	case KindWait:
		var p WaitParams
		if err := json.Unmarshal(env.Raw, &p); err != nil {
			return Command{}, gatewayerr.NewInvalidCommand("wait: " + err.Error())
		}
		if err := validateWait(&p); err != nil {
			return Command{}, err
		}
		cmd.Wait = &p

	default:
		return Command{}, gatewayerr.NewInvalidCommand(fmt.Sprintf("unknown method %q", env.Method))
	}

	return cmd, nil
}

func validateNavigate(p *NavigateParams) error {
	if p.URL == "" {
		return gatewayerr.NewInvalidCommand("navigate: url is required")
	}
	switch p.WaitUntil {
	case "", WaitUntilLoad, WaitUntilDOMContentLoaded, WaitUntilNetworkIdle:
	default:
		return gatewayerr.NewInvalidCommand("navigate: invalid wait_until")
	}
	if p.WaitUntil == "" {
		p.WaitUntil = WaitUntilLoad
	}
	return nil
}

func validateClick(p *ClickParams) error {
	if p.Selector == "" {
		return gatewayerr.NewInvalidCommand("click: selector is required")
	}
	switch p.Button {
	case "", ButtonLeft, ButtonRight, ButtonMiddle:
	default:
		return gatewayerr.NewInvalidCommand("click: invalid button")
	}
	if p.Button == "" {
		p.Button = ButtonLeft
	}
	if p.Count <= 0 {
		p.Count = 1
	}
	return nil
}

func validateFill(p *FillParams) error {
	if p.Selector == "" {
		return gatewayerr.NewInvalidCommand("fill: selector is required")
	}
	if p.TypeDelayMS < 0 {
		return gatewayerr.NewInvalidCommand("fill: type_delay_ms must be >= 0")
	}
	return nil
}

func validateExtract(p *ExtractParams) error {
	if p.Selector == "" {
		return gatewayerr.NewInvalidCommand("extract: selector is required")
	}
	switch p.Kind {
	case ExtractText, ExtractHTML:
	case ExtractAttribute:
		if p.AttributeName == "" {
			return gatewayerr.NewInvalidCommand("extract: attribute_name required for kind=attribute")
		}
	case ExtractProperty:
		if p.PropertyName == "" {
			return gatewayerr.NewInvalidCommand("extract: property_name required for kind=property")
		}
	default:
		return gatewayerr.NewInvalidCommand("extract: invalid kind")
	}
	return nil
}

func validateWait(p *WaitParams) error {
	switch p.Condition {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle:
	case WaitVisible, WaitHidden, WaitAttached, WaitDetached:
		if p.Selector == "" {
			return gatewayerr.NewInvalidCommand("wait: selector required for element conditions")
		}
	case WaitTextEquals:
		if p.Selector == "" {
			return gatewayerr.NewInvalidCommand("wait: selector required for text-equals")
		}
	case WaitCustomScript:
		if p.Script == "" {
			return gatewayerr.NewInvalidCommand("wait: script required for custom-script")
		}
	default:
		return gatewayerr.NewInvalidCommand("wait: invalid condition")
	}
	if p.PollMS <= 0 {
		p.PollMS = 100
	}
	return nil
}
