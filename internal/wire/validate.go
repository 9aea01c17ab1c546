package wire

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// validCommandsByType enumerates the commands each envelope type may carry.
// Anything outside this table is rejected rather than passed through.
var validCommandsByType = map[EnvelopeType]map[Command]bool{
	TypeRequest: {
		CommandInitialize: true,
		CommandFormat:     true,
		CommandPing:       true,
		CommandShutdown:   true,
	},
	TypeResponse: {
		CommandInitialize: true,
		CommandFormat:     true,
		CommandPing:       true,
		CommandShutdown:   true,
	},
	TypeNotification: {
		CommandLog:   true,
		CommandError: true,
	},
}

// Probe holds an envelope's routing fields read without a full decode.
type Probe struct {
	Version   int
	Type      EnvelopeType
	Command   Command
	RequestID string
}

// ProbeRaw extracts routing fields from a raw envelope with gjson, letting a
// dispatcher reject or route a frame before paying for json.Unmarshal.
func ProbeRaw(raw []byte) Probe {
	return Probe{
		Version:   int(gjson.GetBytes(raw, "version").Int()),
		Type:      EnvelopeType(gjson.GetBytes(raw, "type").String()),
		Command:   Command(gjson.GetBytes(raw, "command").String()),
		RequestID: gjson.GetBytes(raw, "requestId").String(),
	}
}

// Validate checks a decoded envelope against the closed protocol schema: a
// known EnvelopeType, a Command valid for that type, a requestId present on
// requests/responses and absent on notifications, and the expected
// protocol Version. Unknown commands and variants are rejected here rather
// than passed through.
func Validate(env *Envelope) *ProtocolError {
	if env.Version != Version {
		return &ProtocolError{Code: ErrInvalidMessage, Message: fmt.Sprintf("unsupported protocol version %d", env.Version)}
	}

	commands, ok := validCommandsByType[env.Type]
	if !ok {
		return &ProtocolError{Code: ErrInvalidMessage, Message: fmt.Sprintf("unknown envelope type %q", env.Type)}
	}
	if !commands[env.Command] {
		return &ProtocolError{Code: ErrUnknownCommand, Message: fmt.Sprintf("command %q is not valid for envelope type %q", env.Command, env.Type)}
	}

	switch env.Type {
	case TypeRequest, TypeResponse:
		if env.RequestID == "" {
			return &ProtocolError{Code: ErrInvalidMessage, Message: "requestId is required for " + string(env.Type) + " envelopes"}
		}
	case TypeNotification:
		if env.RequestID != "" {
			return &ProtocolError{Code: ErrInvalidMessage, Message: "notifications must not carry a requestId"}
		}
	}

	return nil
}

// ValidateFormatRequest checks field-level invariants spec.md §3/§5 place on
// a format request beyond the generic envelope schema.
func ValidateFormatRequest(req *FormatRequest) *ProtocolError {
	if req.Content == "" && req.Range == nil {
		// An empty document is valid; nothing further to check here.
		return nil
	}
	if req.Range != nil {
		if req.Range.Start < 0 || req.Range.End < req.Range.Start || req.Range.End > len(req.Content) {
			return &ProtocolError{Code: ErrInvalidRange, Message: "range is out of bounds for the supplied content"}
		}
	}
	if req.Options.PrintWidth < 0 || req.Options.TabWidth < 0 {
		return &ProtocolError{Code: ErrInvalidMessage, Message: "printWidth and tabWidth must be non-negative"}
	}
	return nil
}
