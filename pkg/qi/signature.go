package qi

import (
	"strings"

	"github.com/pkg/errors"
)

const simpleKinds = "vbcCwWiIlLfdsrmoX"

// Signature is a parsed type signature such as "(s[f]m)".
type Signature struct {
	Kind byte
	// Elems holds the element of a list, the key and value of a map, or the
	// fields of a tuple.
	Elems []*Signature
	// Annotation is the text between '<' and '>' following a container,
	// usually the struct name and field names.
	Annotation string
}

// ParseSignature parses a single complete type signature.
func ParseSignature(s string) (*Signature, error) {
	p := sigParser{s: s}
	sig, err := p.parse()
	if err != nil {
		return nil, err
	}
	if p.pos != len(s) {
		return nil, errors.Errorf("qi: trailing characters in signature %q", s)
	}
	return sig, nil
}

// String returns the signature without annotations.
func (s *Signature) String() string {
	var sb strings.Builder
	s.write(&sb)
	return sb.String()
}

func (s *Signature) write(sb *strings.Builder) {
	switch s.Kind {
	case '[':
		sb.WriteByte('[')
		s.Elems[0].write(sb)
		sb.WriteByte(']')
	case '{':
		sb.WriteByte('{')
		s.Elems[0].write(sb)
		s.Elems[1].write(sb)
		sb.WriteByte('}')
	case '(':
		sb.WriteByte('(')
		for _, e := range s.Elems {
			e.write(sb)
		}
		sb.WriteByte(')')
	default:
		sb.WriteByte(s.Kind)
	}
}

type sigParser struct {
	s   string
	pos int
}

func (p *sigParser) parse() (*Signature, error) {
	if p.pos >= len(p.s) {
		return nil, errors.Errorf("qi: truncated signature %q", p.s)
	}
	c := p.s[p.pos]
	p.pos++

	switch c {
	case '[':
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		sig := &Signature{Kind: '[', Elems: []*Signature{elem}}
		return sig, p.annotation(sig)

	case '{':
		key, err := p.parse()
		if err != nil {
			return nil, err
		}
		val, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect('}'); err != nil {
			return nil, err
		}
		sig := &Signature{Kind: '{', Elems: []*Signature{key, val}}
		return sig, p.annotation(sig)

	case '(':
		sig := &Signature{Kind: '('}
		for {
			if p.pos >= len(p.s) {
				return nil, errors.Errorf("qi: unterminated tuple in signature %q", p.s)
			}
			if p.s[p.pos] == ')' {
				p.pos++
				break
			}
			field, err := p.parse()
			if err != nil {
				return nil, err
			}
			sig.Elems = append(sig.Elems, field)
		}
		return sig, p.annotation(sig)

	default:
		if strings.IndexByte(simpleKinds, c) < 0 {
			return nil, errors.Errorf("qi: unknown type %q in signature %q", c, p.s)
		}
		return &Signature{Kind: c}, nil
	}
}

func (p *sigParser) expect(c byte) error {
	if p.pos >= len(p.s) || p.s[p.pos] != c {
		return errors.Errorf("qi: expected %q at offset %d in signature %q", c, p.pos, p.s)
	}
	p.pos++
	return nil
}

// annotation consumes an optional "<...>" suffix, which may nest.
func (p *sigParser) annotation(sig *Signature) error {
	if p.pos >= len(p.s) || p.s[p.pos] != '<' {
		return nil
	}
	depth := 0
	for i := p.pos; i < len(p.s); i++ {
		switch p.s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				sig.Annotation = p.s[p.pos+1 : i]
				p.pos = i + 1
				return nil
			}
		}
	}
	return errors.Errorf("qi: unterminated annotation in signature %q", p.s)
}

// SignatureOf returns the signature used to send v as a dynamic value.
func SignatureOf(v any) (string, error) {
	switch v.(type) {
	case nil:
		return "v", nil
	case bool:
		return "b", nil
	case int8:
		return "c", nil
	case uint8:
		return "C", nil
	case int16:
		return "w", nil
	case uint16:
		return "W", nil
	case int, int32:
		return "i", nil
	case uint32:
		return "I", nil
	case int64:
		return "l", nil
	case uint64:
		return "L", nil
	case float32, float64:
		// NAOqi values carry single precision floats.
		return "f", nil
	case string:
		return "s", nil
	case []byte:
		return "r", nil
	case []string:
		return "[s]", nil
	case []float64, []float32:
		return "[f]", nil
	case []int:
		return "[i]", nil
	case []any:
		return "[m]", nil
	case map[string]any:
		return "{sm}", nil
	case map[string]string:
		return "{ss}", nil
	default:
		return "", errors.Errorf("qi: no signature for %T", v)
	}
}
