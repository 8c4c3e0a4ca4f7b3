package agent

import (
	"errors"
	"fmt"
)

// DecodeErrorKind classifies why a raw decision reply failed to decode.
type DecodeErrorKind string

const (
	DecodeMalformedJSON      DecodeErrorKind = "malformed_json"
	DecodeUnknownActionType  DecodeErrorKind = "unknown_action_type"
	DecodeMissingField       DecodeErrorKind = "missing_field"
	DecodeUnknownTool        DecodeErrorKind = "unknown_tool"
	DecodeUnknownDelegate    DecodeErrorKind = "unknown_delegate"
	DecodeArgumentValidation DecodeErrorKind = "argument_validation"
)

// DecodeError reports a protocol violation in the decision output.
// Decode errors never retry; they route straight to the fallback path.
type DecodeError struct {
	Kind   DecodeErrorKind
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Kind, e.Detail)
}

// ErrIterationLimit marks a loop that ran out of tool iterations.
var ErrIterationLimit = errors.New("tool iteration limit exceeded")
