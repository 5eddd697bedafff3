package qi

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoSuchMethod is returned when an object has no method with the
// requested name.
var ErrNoSuchMethod = errors.New("qi: no such method")

// MetaMethodParameter documents one parameter of a method.
type MetaMethodParameter struct {
	Name        string
	Description string
}

// MetaMethod describes a callable method of a remote object.
type MetaMethod struct {
	UID                 uint32
	ReturnSignature     string
	Name                string
	ParametersSignature string
	Description         string
	Parameters          []MetaMethodParameter
	ReturnDescription   string
}

// Arity returns the number of parameters the method takes.
func (m MetaMethod) Arity() int {
	sig, err := ParseSignature(m.ParametersSignature)
	if err != nil || sig.Kind != '(' {
		return -1
	}
	return len(sig.Elems)
}

// MetaSignal describes a signal or property of a remote object.
type MetaSignal struct {
	UID       uint32
	Name      string
	Signature string
}

// MetaObject describes the interface of a remote object.
type MetaObject struct {
	Methods     map[uint32]MetaMethod
	Signals     map[uint32]MetaSignal
	Properties  map[uint32]MetaSignal
	Description string
}

// FindMethod returns the overload of name that takes nargs arguments. When
// several do, the one with the lowest UID wins.
func (mo *MetaObject) FindMethod(name string, nargs int) (MetaMethod, error) {
	uids := make([]uint32, 0, len(mo.Methods))
	for uid := range mo.Methods {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	var candidates []string
	for _, uid := range uids {
		m := mo.Methods[uid]
		if m.Name != name {
			continue
		}
		if m.Arity() == nargs {
			return m, nil
		}
		candidates = append(candidates, m.Name+m.ParametersSignature)
	}
	if len(candidates) == 0 {
		return MetaMethod{}, errors.Wrapf(ErrNoSuchMethod, "%s", name)
	}
	sort.Strings(candidates)
	return MetaMethod{}, errors.Errorf("qi: no overload of %s takes %d arguments (have %s)",
		name, nargs, strings.Join(candidates, ", "))
}

// MethodNames returns the sorted, de-duplicated method names.
func (mo *MetaObject) MethodNames() []string {
	seen := make(map[string]bool, len(mo.Methods))
	names := make([]string, 0, len(mo.Methods))
	for _, m := range mo.Methods {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// metaReader reads fixed-layout records, keeping the first error.
type metaReader struct {
	d   *Decoder
	err error
}

func (r *metaReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = r.d.ReadUint32()
	return v
}

func (r *metaReader) str() string {
	if r.err != nil {
		return ""
	}
	var s string
	s, r.err = r.d.ReadString()
	return s
}

func (r *metaReader) signals() map[uint32]MetaSignal {
	n := r.u32()
	out := make(map[uint32]MetaSignal)
	for i := uint32(0); i < n && r.err == nil; i++ {
		r.u32() // map key, repeats the uid
		s := MetaSignal{UID: r.u32(), Name: r.str(), Signature: r.str()}
		out[s.UID] = s
	}
	return out
}

func readMetaObject(d *Decoder) (*MetaObject, error) {
	r := &metaReader{d: d}
	mo := &MetaObject{Methods: make(map[uint32]MetaMethod)}

	n := r.u32()
	for i := uint32(0); i < n && r.err == nil; i++ {
		r.u32()
		m := MetaMethod{
			UID:                 r.u32(),
			ReturnSignature:     r.str(),
			Name:                r.str(),
			ParametersSignature: r.str(),
			Description:         r.str(),
		}
		np := r.u32()
		for j := uint32(0); j < np && r.err == nil; j++ {
			m.Parameters = append(m.Parameters, MetaMethodParameter{Name: r.str(), Description: r.str()})
		}
		m.ReturnDescription = r.str()
		mo.Methods[m.UID] = m
	}

	mo.Signals = r.signals()
	mo.Properties = r.signals()
	mo.Description = r.str()

	if r.err != nil {
		return nil, errors.Wrap(r.err, "qi: decode metaobject")
	}
	return mo, nil
}
