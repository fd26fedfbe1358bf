package gltf

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// ComponentType is the numeric type of a single accessor component.
type ComponentType int

// Size returns the component width in bytes, or 0 for unknown types.
func (c ComponentType) Size() int {
	switch c {
	case Byte, UnsignedByte:
		return 1
	case Short, UnsignedShort:
		return 2
	case UnsignedInt, Float:
		return 4
	}
	return 0
}

func (c ComponentType) String() string {
	switch c {
	case Byte:
		return "BYTE"
	case UnsignedByte:
		return "UNSIGNED_BYTE"
	case Short:
		return "SHORT"
	case UnsignedShort:
		return "UNSIGNED_SHORT"
	case UnsignedInt:
		return "UNSIGNED_INT"
	case Float:
		return "FLOAT"
	}
	return fmt.Sprintf("ComponentType(%d)", int(c))
}

var componentsPerType = map[string]int{
	Scalar: 1,
	Vec2:   2,
	Vec3:   3,
	Vec4:   4,
	Mat2:   4,
	Mat3:   9,
	Mat4:   16,
}

// Components returns the number of components of an accessor shape.
func Components(typ string) (int, error) {
	n, ok := componentsPerType[typ]
	if !ok {
		return 0, fmt.Errorf("%w: shape %q", ErrUnsupportedAccessorType, typ)
	}
	return n, nil
}

// allowedComponents is the closed table of component types each accessor
// shape may use. UNSIGNED_INT is for indices only, and matrices whose
// columns would need alignment padding are not accepted.
var allowedComponents = map[string][]ComponentType{
	Scalar: {Byte, UnsignedByte, Short, UnsignedShort, UnsignedInt, Float},
	Vec2:   {Byte, UnsignedByte, Short, UnsignedShort, Float},
	Vec3:   {Byte, UnsignedByte, Short, UnsignedShort, Float},
	Vec4:   {Byte, UnsignedByte, Short, UnsignedShort, Float},
	Mat2:   {Short, UnsignedShort, Float},
	Mat3:   {Float},
	Mat4:   {Byte, UnsignedByte, Short, UnsignedShort, Float},
}

// AccessorComponents validates a component type and shape pair and returns
// the number of components per element.
func AccessorComponents(ct ComponentType, typ string) (int, error) {
	n, err := Components(typ)
	if err != nil {
		return 0, err
	}
	if slices.Contains(allowedComponents[typ], ct) {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s with %s components", ErrUnsupportedAccessorType, typ, ct)
}

// Layout describes how an accessor's elements are laid out in a buffer view.
// A zero Stride means tightly packed.
type Layout struct {
	Offset        int
	Stride        int
	Count         int
	Components    int
	ComponentType ComponentType
	Normalized    bool
}

// ElementSize returns the packed byte size of one element.
func (l Layout) ElementSize() int {
	return l.ComponentType.Size() * l.Components
}

func (l Layout) stride() int {
	if l.Stride > 0 {
		return l.Stride
	}
	return l.ElementSize()
}

// Validate reports whether every element of the layout lies inside buf.
func (l Layout) Validate(buf []byte) error {
	_, err := l.check(buf)
	return err
}

// check validates the layout against buf and returns the effective stride.
func (l Layout) check(buf []byte) (int, error) {
	size := l.ComponentType.Size()
	if size == 0 {
		return 0, fmt.Errorf("%w: component type %d", ErrUnsupportedAccessorType, int(l.ComponentType))
	}
	if l.Components <= 0 {
		return 0, fmt.Errorf("%w: %d components", ErrUnsupportedAccessorType, l.Components)
	}
	if l.Count < 0 || l.Offset < 0 {
		return 0, fmt.Errorf("%w: negative count or offset", ErrMalformedAsset)
	}
	stride := l.stride()
	if l.Stride > 0 && l.Stride < l.ElementSize() {
		return 0, fmt.Errorf("%w: stride %d smaller than element size %d", ErrMalformedAsset, l.Stride, l.ElementSize())
	}
	if l.Count == 0 {
		return stride, nil
	}
	// Compared by division so a huge count cannot overflow.
	avail := len(buf) - l.Offset - l.ElementSize()
	if avail < 0 || l.Count-1 > avail/stride {
		return 0, fmt.Errorf("%w: %d elements from offset %d do not fit a %d-byte view",
			ErrMalformedAsset, l.Count, l.Offset, len(buf))
	}
	return stride, nil
}

// ReadFloats decodes Count elements of Components values each into a dense
// float slice. Normalized integer components are rescaled to [0,1] or [-1,1];
// all other components are converted as-is.
func ReadFloats(buf []byte, l Layout) ([]float32, error) {
	stride, err := l.check(buf)
	if err != nil {
		return nil, err
	}
	size := l.ComponentType.Size()
	decode := componentDecoder(l.ComponentType, l.Normalized)

	out := make([]float32, l.Count*l.Components)
	pos := l.Offset
	for i := 0; i < l.Count; i++ {
		for j := 0; j < l.Components; j++ {
			out[i*l.Components+j] = decode(buf[pos+j*size:])
		}
		pos += stride
	}
	return out, nil
}

func componentDecoder(ct ComponentType, normalized bool) func([]byte) float32 {
	switch ct {
	case Byte:
		if normalized {
			return func(b []byte) float32 { return max(float32(int8(b[0]))/127, -1) }
		}
		return func(b []byte) float32 { return float32(int8(b[0])) }
	case UnsignedByte:
		if normalized {
			return func(b []byte) float32 { return float32(b[0]) / 255 }
		}
		return func(b []byte) float32 { return float32(b[0]) }
	case Short:
		if normalized {
			return func(b []byte) float32 {
				return max(float32(int16(binary.LittleEndian.Uint16(b)))/32767, -1)
			}
		}
		return func(b []byte) float32 { return float32(int16(binary.LittleEndian.Uint16(b))) }
	case UnsignedShort:
		if normalized {
			return func(b []byte) float32 { return float32(binary.LittleEndian.Uint16(b)) / 65535 }
		}
		return func(b []byte) float32 { return float32(binary.LittleEndian.Uint16(b)) }
	case UnsignedInt:
		return func(b []byte) float32 { return float32(binary.LittleEndian.Uint32(b)) }
	default:
		return func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
	}
}

// ReadIndices decodes an index accessor. Only unsigned 1, 2 and 4 byte
// components are accepted and values are never rescaled.
func ReadIndices(buf []byte, l Layout) ([]uint32, error) {
	switch l.ComponentType {
	case UnsignedByte, UnsignedShort, UnsignedInt:
	default:
		return nil, fmt.Errorf("%w: index component type %s", ErrUnsupportedAccessorType, l.ComponentType)
	}
	l.Components = 1
	stride, err := l.check(buf)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, l.Count)
	pos := l.Offset
	for i := range out {
		switch l.ComponentType {
		case UnsignedByte:
			out[i] = uint32(buf[pos])
		case UnsignedShort:
			out[i] = uint32(binary.LittleEndian.Uint16(buf[pos:]))
		default:
			out[i] = binary.LittleEndian.Uint32(buf[pos:])
		}
		pos += stride
	}
	return out, nil
}

// SequentialIndices returns 0..n-1, used for non-indexed primitives.
func SequentialIndices(n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(i)
	}
	return out
}
