package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Addressing tiers share one leading-byte discriminator space.
type Tier uint8

const (
	TierCompact Tier = iota
	TierExtended
	TierTLV
	TierSchema
)

func (t Tier) String() string {
	switch t {
	case TierCompact:
		return "compact"
	case TierExtended:
		return "extended"
	case TierTLV:
		return "tlv"
	case TierSchema:
		return "schema"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Reserved discriminator bytes. A compact domain must never use one of
// these, or tier dispatch becomes ambiguous.
const (
	DiscExtended byte = 0x00
	DiscTLV      byte = 0xFE
	DiscSchema   byte = 0xFF
)

// Header sizes per tier, payload excluded.
const (
	CompactHeaderLen  = 2
	ExtendedHeaderLen = 1 + SelectorLen
	TLVHeaderLen      = 1 + 1 + 2
	SchemaHeaderLen   = 1 + SchemaHashLen
)

const (
	SelectorLen   = 8
	SchemaHashLen = 32
)

// Reserved reports whether b may not be assigned as a compact domain.
func Reserved(b byte) bool {
	return b == DiscExtended || b == DiscTLV || b == DiscSchema
}

// Envelope is one instruction in decoded form. Which header fields are
// meaningful depends on Tier.
type Envelope struct {
	Tier Tier

	// Compact tier.
	Domain uint8
	Opcode uint8

	// Extended tier.
	Selector [SelectorLen]byte

	// TLV tier.
	ExtType uint8

	// Schema tier.
	SchemaHash [SchemaHashLen]byte

	Payload []byte
}

// NameSelector derives the extended-tier selector for "namespace:name".
func NameSelector(namespace, name string) [SelectorLen]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var sel [SelectorLen]byte
	copy(sel[:], sum[:SelectorLen])
	return sel
}

// DocumentHash derives the schema-tier hash for an out-of-band schema document.
func DocumentHash(doc []byte) [SchemaHashLen]byte {
	return sha256.Sum256(doc)
}

// Encode renders env to its wire form. It is pure: the returned buffer
// shares no memory with env.Payload.
func Encode(env Envelope) ([]byte, error) {
	switch env.Tier {
	case TierCompact:
		if Reserved(env.Domain) {
			return nil, &EncodeError{Tier: env.Tier, Reason: fmt.Sprintf("domain 0x%02X is a reserved discriminator", env.Domain)}
		}
		buf := make([]byte, CompactHeaderLen+len(env.Payload))
		buf[0] = env.Domain
		buf[1] = env.Opcode
		copy(buf[CompactHeaderLen:], env.Payload)
		return buf, nil

	case TierExtended:
		buf := make([]byte, ExtendedHeaderLen+len(env.Payload))
		buf[0] = DiscExtended
		copy(buf[1:], env.Selector[:])
		copy(buf[ExtendedHeaderLen:], env.Payload)
		return buf, nil

	case TierTLV:
		if len(env.Payload) > int(^uint16(0)) {
			return nil, &EncodeError{Tier: env.Tier, Reason: "payload exceeds u16 length prefix"}
		}
		buf := make([]byte, TLVHeaderLen+len(env.Payload))
		buf[0] = DiscTLV
		buf[1] = env.ExtType
		binary.LittleEndian.PutUint16(buf[2:4], uint16(len(env.Payload)))
		copy(buf[TLVHeaderLen:], env.Payload)
		return buf, nil

	case TierSchema:
		buf := make([]byte, SchemaHeaderLen+len(env.Payload))
		buf[0] = DiscSchema
		copy(buf[1:], env.SchemaHash[:])
		copy(buf[SchemaHeaderLen:], env.Payload)
		return buf, nil

	default:
		return nil, &EncodeError{Tier: env.Tier, Reason: "unknown tier"}
	}
}

// Decode parses buf back into an Envelope. Tier dispatch is a total
// function of buf[0]: 0x00 extended, 0xFE tlv, 0xFF schema, anything
// else compact.
func Decode(buf []byte) (Envelope, error) {
	if len(buf) == 0 {
		return Envelope{}, &DecodeError{Field: "discriminator", Offset: 0, Want: 1, Have: 0}
	}

	switch buf[0] {
	case DiscExtended:
		if len(buf) < ExtendedHeaderLen {
			return Envelope{}, &DecodeError{Field: "selector", Offset: 1, Want: SelectorLen, Have: len(buf) - 1}
		}
		env := Envelope{Tier: TierExtended}
		copy(env.Selector[:], buf[1:ExtendedHeaderLen])
		env.Payload = clone(buf[ExtendedHeaderLen:])
		return env, nil

	case DiscTLV:
		if len(buf) < TLVHeaderLen {
			return Envelope{}, &DecodeError{Field: "tlv_header", Offset: 1, Want: TLVHeaderLen - 1, Have: len(buf) - 1}
		}
		length := int(binary.LittleEndian.Uint16(buf[2:4]))
		if len(buf)-TLVHeaderLen < length {
			return Envelope{}, &DecodeError{Field: "tlv_value", Offset: TLVHeaderLen, Want: length, Have: len(buf) - TLVHeaderLen}
		}
		// Bytes past the declared length are malformed, not padding;
		// accepting them would drop input silently.
		if extra := len(buf) - TLVHeaderLen - length; extra > 0 {
			return Envelope{}, &DecodeError{Field: "tlv_trailing", Offset: TLVHeaderLen + length, Want: 0, Have: extra}
		}
		env := Envelope{Tier: TierTLV, ExtType: buf[1]}
		env.Payload = clone(buf[TLVHeaderLen:])
		return env, nil

	case DiscSchema:
		if len(buf) < SchemaHeaderLen {
			return Envelope{}, &DecodeError{Field: "schema_hash", Offset: 1, Want: SchemaHashLen, Have: len(buf) - 1}
		}
		env := Envelope{Tier: TierSchema}
		copy(env.SchemaHash[:], buf[1:SchemaHeaderLen])
		env.Payload = clone(buf[SchemaHeaderLen:])
		return env, nil

	default:
		if len(buf) < CompactHeaderLen {
			return Envelope{}, &DecodeError{Field: "opcode", Offset: 1, Want: 1, Have: 0}
		}
		return Envelope{
			Tier:    TierCompact,
			Domain:  buf[0],
			Opcode:  buf[1],
			Payload: clone(buf[CompactHeaderLen:]),
		}, nil
	}
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
