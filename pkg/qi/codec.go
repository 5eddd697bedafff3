package qi

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"reflect"

	"github.com/pkg/errors"
)

// Encoder serializes values in the NAOqi wire format.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded data.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *Encoder) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteFloat32(v float32) {
	e.WriteUint32(math.Float32bits(v))
}

func (e *Encoder) WriteFloat64(v float64) {
	e.WriteUint64(math.Float64bits(v))
}

func (e *Encoder) WriteString(s string) {
	e.WriteUint32(uint32(len(s)))
	e.buf.WriteString(s)
}

func (e *Encoder) WriteRaw(b []byte) {
	e.WriteUint32(uint32(len(b)))
	e.buf.Write(b)
}

// Encode writes v according to the signature sig.
func (e *Encoder) Encode(sig string, v any) error {
	s, err := ParseSignature(sig)
	if err != nil {
		return err
	}
	return e.encode(s, v)
}

// EncodeDynamic writes the signature of v followed by v itself.
func (e *Encoder) EncodeDynamic(v any) error {
	sig, err := SignatureOf(v)
	if err != nil {
		return err
	}
	e.WriteString(sig)
	return e.Encode(sig, v)
}

func (e *Encoder) encode(sig *Signature, v any) error {
	switch sig.Kind {
	case 'v':
		return nil

	case 'b':
		b, ok := v.(bool)
		if !ok {
			return typeError(sig, v)
		}
		e.WriteBool(b)

	case 'c', 'C', 'w', 'W', 'i', 'I', 'l', 'L':
		n, ok := toInt64(v)
		if !ok {
			return typeError(sig, v)
		}
		switch sig.Kind {
		case 'c', 'C':
			e.buf.WriteByte(byte(n))
		case 'w', 'W':
			e.WriteUint16(uint16(n))
		case 'i', 'I':
			e.WriteUint32(uint32(n))
		default:
			e.WriteUint64(uint64(n))
		}

	case 'f', 'd':
		f, ok := toFloat64(v)
		if !ok {
			return typeError(sig, v)
		}
		if sig.Kind == 'f' {
			e.WriteFloat32(float32(f))
		} else {
			e.WriteFloat64(f)
		}

	case 's':
		s, ok := v.(string)
		if !ok {
			return typeError(sig, v)
		}
		e.WriteString(s)

	case 'r':
		b, ok := v.([]byte)
		if !ok {
			return typeError(sig, v)
		}
		e.WriteRaw(b)

	case 'm':
		return e.EncodeDynamic(v)

	case '[':
		if v == nil {
			e.WriteUint32(0)
			return nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return typeError(sig, v)
		}
		e.WriteUint32(uint32(rv.Len()))
		for i := 0; i < rv.Len(); i++ {
			if err := e.encode(sig.Elems[0], rv.Index(i).Interface()); err != nil {
				return err
			}
		}

	case '{':
		if v == nil {
			e.WriteUint32(0)
			return nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map {
			return typeError(sig, v)
		}
		e.WriteUint32(uint32(rv.Len()))
		iter := rv.MapRange()
		for iter.Next() {
			if err := e.encode(sig.Elems[0], iter.Key().Interface()); err != nil {
				return err
			}
			if err := e.encode(sig.Elems[1], iter.Value().Interface()); err != nil {
				return err
			}
		}

	case '(':
		fields, ok := v.([]any)
		if !ok || len(fields) != len(sig.Elems) {
			return typeError(sig, v)
		}
		for i, f := range fields {
			if err := e.encode(sig.Elems[i], f); err != nil {
				return err
			}
		}

	default:
		return errors.Errorf("qi: cannot encode type %q", sig.Kind)
	}
	return nil
}

// Decoder reads values in the NAOqi wire format.
type Decoder struct {
	r *bytes.Reader
}

// NewDecoder returns a decoder reading from b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{r: bytes.NewReader(b)}
}

// Len returns the number of unread bytes.
func (d *Decoder) Len() int {
	return d.r.Len()
}

func (d *Decoder) read(n int) ([]byte, error) {
	if n > d.r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *Decoder) ReadUint8() (uint8, error) {
	return d.r.ReadByte()
}

func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) ReadRaw() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	return d.read(int(n))
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadRaw()
	return string(b), err
}

// Decode reads a value described by sig.
func (d *Decoder) Decode(sig string) (any, error) {
	s, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	return d.decode(s)
}

// DecodeDynamic reads a signature followed by a value of that type.
func (d *Decoder) DecodeDynamic() (any, error) {
	sig, err := d.ReadString()
	if err != nil {
		return nil, errors.Wrap(err, "qi: read dynamic signature")
	}
	return d.Decode(sig)
}

func (d *Decoder) decode(sig *Signature) (any, error) {
	switch sig.Kind {
	case 'v':
		return nil, nil
	case 'b':
		b, err := d.ReadUint8()
		return b != 0, err
	case 'c':
		b, err := d.ReadUint8()
		return int8(b), err
	case 'C':
		return d.ReadUint8()
	case 'w':
		n, err := d.ReadUint16()
		return int16(n), err
	case 'W':
		return d.ReadUint16()
	case 'i':
		n, err := d.ReadUint32()
		return int32(n), err
	case 'I':
		return d.ReadUint32()
	case 'l':
		n, err := d.ReadUint64()
		return int64(n), err
	case 'L':
		return d.ReadUint64()
	case 'f':
		n, err := d.ReadUint32()
		return math.Float32frombits(n), err
	case 'd':
		n, err := d.ReadUint64()
		return math.Float64frombits(n), err
	case 's':
		return d.ReadString()
	case 'r':
		return d.ReadRaw()
	case 'm':
		return d.DecodeDynamic()

	case '[':
		n, err := d.ReadUint32()
		if err != nil {
			return nil, err
		}
		if n > 0 && zeroWidth(sig.Elems[0]) {
			return nil, errors.Errorf("qi: list of %d zero-width elements", n)
		}
		out := make([]any, 0, min(int(n), d.r.Len()))
		for i := uint32(0); i < n; i++ {
			v, err := d.decode(sig.Elems[0])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case '{':
		n, err := d.ReadUint32()
		if err != nil {
			return nil, err
		}
		if n > 0 && zeroWidth(sig.Elems[0]) && zeroWidth(sig.Elems[1]) {
			return nil, errors.Errorf("qi: map of %d zero-width entries", n)
		}
		out := make(map[any]any, min(int(n), d.r.Len()))
		for i := uint32(0); i < n; i++ {
			k, err := d.decode(sig.Elems[0])
			if err != nil {
				return nil, err
			}
			if k != nil && !reflect.TypeOf(k).Comparable() {
				return nil, errors.Errorf("qi: map key of type %T is not comparable", k)
			}
			v, err := d.decode(sig.Elems[1])
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case '(':
		out := make([]any, len(sig.Elems))
		for i, f := range sig.Elems {
			v, err := d.decode(f)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	return nil, errors.Errorf("qi: cannot decode type %q", sig.Kind)
}

func typeError(sig *Signature, v any) error {
	return errors.Errorf("qi: cannot encode %T as %q", v, sig.String())
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	i, ok := toInt64(v)
	return float64(i), ok
}

// zeroWidth reports whether values of sig occupy no bytes on the wire.
func zeroWidth(sig *Signature) bool {
	switch sig.Kind {
	case 'v':
		return true
	case '(':
		for _, e := range sig.Elems {
			if !zeroWidth(e) {
				return false
			}
		}
		return true
	}
	return false
}
