package wire

import (
	"encoding/binary"
	"fmt"
)

// FieldKind selects how one payload field is laid out.
type FieldKind uint8

const (
	FieldU8 FieldKind = iota + 1
	FieldU16
	FieldU32
	FieldU64
	FieldBlob       // raw fixed-width bytes, Width required
	FieldVarBlob16  // [len u16 LE][bytes]
	FieldVarBlob32  // [len u32 LE][bytes]
)

func (k FieldKind) String() string {
	switch k {
	case FieldU8:
		return "u8"
	case FieldU16:
		return "u16"
	case FieldU32:
		return "u32"
	case FieldU64:
		return "u64"
	case FieldBlob:
		return "blob"
	case FieldVarBlob16:
		return "varblob16"
	case FieldVarBlob32:
		return "varblob32"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FieldDef declares one field in an operation payload. Fields are laid
// out in declaration order; offsets are implied.
type FieldDef struct {
	Name  string
	Kind  FieldKind
	Width int // fixed blob width; ignored for other kinds
}

// FieldValue is one decoded or to-be-encoded field value. Uint carries
// integer kinds, Bytes carries blob kinds.
type FieldValue struct {
	Name  string
	Uint  uint64
	Bytes []byte
}

// fixedWidth returns the on-wire width of a field excluding variable
// bytes, i.e. the contribution this field makes to the minimum length.
func fixedWidth(def FieldDef) int {
	switch def.Kind {
	case FieldU8:
		return 1
	case FieldU16:
		return 2
	case FieldU32:
		return 4
	case FieldU64:
		return 8
	case FieldBlob:
		return def.Width
	case FieldVarBlob16:
		return 2
	case FieldVarBlob32:
		return 4
	default:
		return 0
	}
}

// MinLayoutLen is the smallest payload the layout can produce: all fixed
// widths plus the length prefixes of variable blobs with zero bytes.
func MinLayoutLen(layout []FieldDef) int {
	total := 0
	for _, def := range layout {
		total += fixedWidth(def)
	}
	return total
}

// ValidateLayout rejects layouts the field writer cannot interpret.
func ValidateLayout(layout []FieldDef) error {
	for i, def := range layout {
		if def.Name == "" {
			return fmt.Errorf("wire: layout[%d] missing name", i)
		}
		switch def.Kind {
		case FieldU8, FieldU16, FieldU32, FieldU64, FieldVarBlob16, FieldVarBlob32:
		case FieldBlob:
			if def.Width <= 0 {
				return fmt.Errorf("wire: layout[%d] %q: blob requires positive width", i, def.Name)
			}
		default:
			return fmt.Errorf("wire: layout[%d] %q: unknown kind %d", i, def.Name, def.Kind)
		}
	}
	return nil
}

// WriteFields renders values through layout into a payload buffer.
// Values are matched to fields positionally; missing trailing values
// encode as zero. A fixed blob value shorter than its width is
// zero-padded, longer is an error.
func WriteFields(layout []FieldDef, values []FieldValue) ([]byte, error) {
	out := make([]byte, 0, MinLayoutLen(layout))
	for i, def := range layout {
		var val FieldValue
		if i < len(values) {
			val = values[i]
		}
		switch def.Kind {
		case FieldU8:
			out = append(out, uint8(val.Uint))
		case FieldU16:
			out = binary.LittleEndian.AppendUint16(out, uint16(val.Uint))
		case FieldU32:
			out = binary.LittleEndian.AppendUint32(out, uint32(val.Uint))
		case FieldU64:
			out = binary.LittleEndian.AppendUint64(out, val.Uint)
		case FieldBlob:
			if len(val.Bytes) > def.Width {
				return nil, fmt.Errorf("wire: field %q: blob %d bytes exceeds width %d", def.Name, len(val.Bytes), def.Width)
			}
			blob := make([]byte, def.Width)
			copy(blob, val.Bytes)
			out = append(out, blob...)
		case FieldVarBlob16:
			if len(val.Bytes) > int(^uint16(0)) {
				return nil, fmt.Errorf("wire: field %q: value exceeds u16 prefix", def.Name)
			}
			out = binary.LittleEndian.AppendUint16(out, uint16(len(val.Bytes)))
			out = append(out, val.Bytes...)
		case FieldVarBlob32:
			out = binary.LittleEndian.AppendUint32(out, uint32(len(val.Bytes)))
			out = append(out, val.Bytes...)
		default:
			return nil, fmt.Errorf("wire: field %q: unknown kind %d", def.Name, def.Kind)
		}
	}
	return out, nil
}

// ReadFields is the inverse of WriteFields. A read past the end of the
// buffer produces a *DecodeError naming the field and offset.
func ReadFields(layout []FieldDef, payload []byte) ([]FieldValue, error) {
	values := make([]FieldValue, 0, len(layout))
	offset := 0

	need := func(def FieldDef, n int) error {
		if len(payload)-offset < n {
			return &DecodeError{Field: def.Name, Offset: offset, Want: n, Have: len(payload) - offset}
		}
		return nil
	}

	for _, def := range layout {
		val := FieldValue{Name: def.Name}
		switch def.Kind {
		case FieldU8:
			if err := need(def, 1); err != nil {
				return nil, err
			}
			val.Uint = uint64(payload[offset])
			offset++
		case FieldU16:
			if err := need(def, 2); err != nil {
				return nil, err
			}
			val.Uint = uint64(binary.LittleEndian.Uint16(payload[offset:]))
			offset += 2
		case FieldU32:
			if err := need(def, 4); err != nil {
				return nil, err
			}
			val.Uint = uint64(binary.LittleEndian.Uint32(payload[offset:]))
			offset += 4
		case FieldU64:
			if err := need(def, 8); err != nil {
				return nil, err
			}
			val.Uint = binary.LittleEndian.Uint64(payload[offset:])
			offset += 8
		case FieldBlob:
			if err := need(def, def.Width); err != nil {
				return nil, err
			}
			val.Bytes = clone(payload[offset : offset+def.Width])
			offset += def.Width
		case FieldVarBlob16:
			if err := need(def, 2); err != nil {
				return nil, err
			}
			n := int(binary.LittleEndian.Uint16(payload[offset:]))
			offset += 2
			if err := need(def, n); err != nil {
				return nil, err
			}
			val.Bytes = clone(payload[offset : offset+n])
			offset += n
		case FieldVarBlob32:
			if err := need(def, 4); err != nil {
				return nil, err
			}
			n := int(binary.LittleEndian.Uint32(payload[offset:]))
			offset += 4
			if err := need(def, n); err != nil {
				return nil, err
			}
			val.Bytes = clone(payload[offset : offset+n])
			offset += n
		default:
			return nil, fmt.Errorf("wire: field %q: unknown kind %d", def.Name, def.Kind)
		}
		values = append(values, val)
	}
	return values, nil
}
