package wire

import "fmt"

// DecodeError reports a read past the end of the available buffer, or a
// malformed length prefix, identifying the field and offset involved.
type DecodeError struct {
	Field  string
	Offset int
	Want   int
	Have   int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode %s at offset %d: need %d bytes, have %d", e.Field, e.Offset, e.Want, e.Have)
}

// EncodeError reports an envelope that cannot be rendered to wire form.
type EncodeError struct {
	Tier   Tier
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("wire: encode %s: %s", e.Tier, e.Reason)
}
