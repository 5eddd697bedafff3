package qi

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by Future.Wait when the timeout expires first.
var ErrTimeout = errors.New("qi: timed out waiting for reply")

// Object is a remote object whose methods can be called by name.
type Object struct {
	session *Session
	name    string
	service uint32
	object  uint32
	meta    *MetaObject
}

// Name returns the service name the object was resolved from.
func (o *Object) Name() string {
	return o.name
}

// MetaObject returns the object's interface description.
func (o *Object) MetaObject() *MetaObject {
	return o.meta
}

func (o *Object) prepare(method string, args []any) (MetaMethod, []byte, error) {
	m, err := o.meta.FindMethod(method, len(args))
	if err != nil {
		return MetaMethod{}, nil, errors.Wrap(err, o.name)
	}

	e := NewEncoder()
	if err := e.Encode(m.ParametersSignature, args); err != nil {
		return MetaMethod{}, nil, errors.Wrapf(err, "%s.%s arguments", o.name, method)
	}
	return m, e.Bytes(), nil
}

func (o *Object) address(m MetaMethod) Address {
	return Address{Service: o.service, Object: o.object, Action: m.UID}
}

// Call invokes method and blocks until it returns.
func (o *Object) Call(ctx context.Context, method string, args ...any) (any, error) {
	m, payload, err := o.prepare(method, args)
	if err != nil {
		return nil, err
	}

	msg, err := o.session.call(ctx, o.address(m), payload)
	if err != nil {
		return nil, errors.Wrapf(err, "%s.%s", o.name, method)
	}
	return decodeReply(msg, o.name+"."+method, m.ReturnSignature)
}

// Post invokes method without waiting for it to return. The returned future
// resolves when the remote call completes.
func (o *Object) Post(ctx context.Context, method string, args ...any) (*Future, error) {
	m, payload, err := o.prepare(method, args)
	if err != nil {
		return nil, err
	}

	addr := o.address(m)
	id, ch, err := o.session.start(addr, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "%s.%s", o.name, method)
	}

	f := &Future{
		session: o.session,
		method:  o.name + "." + method,
		addr:    addr,
		id:      id,
		done:    make(chan struct{}),
	}
	go f.resolve(ch, m.ReturnSignature)
	return f, nil
}

// Future is the pending result of a posted call.
type Future struct {
	session *Session
	method  string
	addr    Address
	id      uint32

	done  chan struct{}
	value any
	err   error
}

// ID returns the message id of the call.
func (f *Future) ID() uint32 {
	return f.id
}

func (f *Future) resolve(ch chan *Message, retSig string) {
	defer close(f.done)
	msg, ok := <-ch
	if !ok {
		f.err = f.session.Err()
		return
	}
	f.value, f.err = decodeReply(msg, f.method, retSig)
}

// Done is closed once the call has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the call completes. A zero timeout waits forever.
// Giving up on the wait does not cancel the remote call.
func (f *Future) Wait(ctx context.Context, timeout time.Duration) (any, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-expired:
		return nil, errors.Wrap(ErrTimeout, f.method)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel asks the remote end to abandon the call.
func (f *Future) Cancel() {
	select {
	case <-f.done:
	default:
		f.session.cancel(f.addr, f.id)
	}
}
