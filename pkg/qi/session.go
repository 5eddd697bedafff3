package qi

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Well-known addresses.
const (
	serverService      = 0
	serverObject       = 0
	actionAuthenticate = 8

	directoryService = 1
	mainObject       = 1

	actionMetaObject = 2

	actionService  = 100
	actionServices = 101
)

// Authentication states reported by the server.
const (
	authStateError    = 1
	authStateContinue = 2
	authStateDone     = 3

	authStateKey = "__qi_auth_state"
)

var (
	// ErrSessionClosed is returned by calls on a closed session.
	ErrSessionClosed = errors.New("qi: session closed")
	// ErrCanceled is returned when the remote end canceled a call.
	ErrCanceled = errors.New("qi: call canceled")
	// ErrAuthRejected is returned when the robot refuses the credentials.
	ErrAuthRejected = errors.New("qi: authentication rejected")
)

// CallError is an error reported by the remote end of a call.
type CallError struct {
	Method  string
	Message string
}

func (e *CallError) Error() string {
	if e.Method == "" {
		return "qi: remote error: " + e.Message
	}
	return fmt.Sprintf("qi: %s: %s", e.Method, e.Message)
}

// Options configure a session.
type Options struct {
	User  string
	Token string
	// DialTimeout bounds connection setup when the context has no deadline.
	DialTimeout time.Duration
	Logger      logrus.FieldLogger
}

// Session is a connection to a NAOqi service directory.
type Session struct {
	conn net.Conn
	log  logrus.FieldLogger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]chan *Message
	closing bool
	err     error
	done    chan struct{}
}

// Dial connects to the robot at addr (host:port) and authenticates.
func Dial(ctx context.Context, addr string, opts Options) (*Session, error) {
	if _, ok := ctx.Deadline(); !ok && opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	return Connect(ctx, conn, opts)
}

// Connect runs the session handshake over an established connection.
func Connect(ctx context.Context, conn net.Conn, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Session{
		conn:    conn,
		log:     log.WithField("remote", conn.RemoteAddr().String()),
		pending: make(map[uint32]chan *Message),
		done:    make(chan struct{}),
	}
	go s.readLoop()

	if err := s.authenticate(ctx, opts); err != nil {
		s.Close()
		return nil, err
	}

	s.log.Debug("Session established")
	return s, nil
}

// Close closes the connection and fails all pending calls.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	err := s.conn.Close()
	<-s.done
	return err
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the session shut down, if it has.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) readLoop() {
	defer close(s.done)

	for {
		msg, err := ReadMessage(s.conn)
		if err != nil {
			s.shutdown(err)
			return
		}

		switch msg.Type {
		case TypeReply, TypeError, TypeCanceled:
			s.mu.Lock()
			ch, ok := s.pending[msg.ID]
			delete(s.pending, msg.ID)
			s.mu.Unlock()
			if !ok {
				s.log.Debugf("Dropping %s for unknown call %d", msg.Type, msg.ID)
				continue
			}
			ch <- msg
		case TypeCapability, TypeEvent:
			s.log.Debugf("Ignoring %s message from %d.%d", msg.Type, msg.Service, msg.Object)
		default:
			s.log.Warnf("Unexpected %s message %d", msg.Type, msg.ID)
		}
	}
}

func (s *Session) shutdown(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		s.err = ErrSessionClosed
	} else {
		s.err = errors.Wrap(cause, "qi: connection lost")
		s.log.Warnf("Session ended: %v", cause)
		// Close is a no-op from here on, so release the socket now.
		s.conn.Close()
	}
	s.closing = true
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// start sends a call and returns its id and the channel its reply arrives on.
func (s *Session) start(addr Address, payload []byte) (uint32, chan *Message, error) {
	s.mu.Lock()
	if s.closing {
		err := s.err
		s.mu.Unlock()
		if err == nil {
			err = ErrSessionClosed
		}
		return 0, nil, err
	}
	s.nextID++
	id := s.nextID
	ch := make(chan *Message, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	msg := &Message{ID: id, Type: TypeCall, Address: addr, Payload: payload}
	if err := s.write(msg); err != nil {
		s.forget(id)
		return 0, nil, errors.Wrap(err, "qi: send call")
	}
	return id, ch, nil
}

func (s *Session) write(msg *Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := msg.WriteTo(s.conn)
	return err
}

func (s *Session) forget(id uint32) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// cancel asks the remote end to abandon call id.
func (s *Session) cancel(addr Address, id uint32) {
	e := NewEncoder()
	e.WriteUint32(id)
	msg := &Message{Type: TypeCancel, Address: addr, Payload: e.Bytes()}

	s.mu.Lock()
	s.nextID++
	msg.ID = s.nextID
	s.mu.Unlock()

	if err := s.write(msg); err != nil {
		s.log.Debugf("Could not cancel call %d: %v", id, err)
	}
}

// wait blocks until the reply for id arrives or ctx is done.
func (s *Session) wait(ctx context.Context, addr Address, id uint32, ch chan *Message) (*Message, error) {
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, s.Err()
		}
		return msg, nil
	case <-ctx.Done():
		s.forget(id)
		s.cancel(addr, id)
		return nil, ctx.Err()
	}
}

func (s *Session) call(ctx context.Context, addr Address, payload []byte) (*Message, error) {
	id, ch, err := s.start(addr, payload)
	if err != nil {
		return nil, err
	}
	return s.wait(ctx, addr, id, ch)
}

// decodeReply turns a reply message into a value of the given signature.
func decodeReply(msg *Message, method, retSig string) (any, error) {
	d := NewDecoder(msg.Payload)
	switch msg.Type {
	case TypeError:
		v, err := d.DecodeDynamic()
		if err != nil {
			return nil, &CallError{Method: method, Message: "undecodable error"}
		}
		return nil, &CallError{Method: method, Message: fmt.Sprint(v)}
	case TypeCanceled:
		return nil, errors.Wrap(ErrCanceled, method)
	}

	if msg.Flags&FlagDynamicPayload != 0 {
		return d.DecodeDynamic()
	}
	if retSig == "" {
		return nil, nil
	}
	return d.Decode(retSig)
}

func (s *Session) authenticate(ctx context.Context, opts Options) error {
	caps := map[string]any{
		"ClientServerSocket":    true,
		"MessageFlags":          true,
		"MetaObjectCache":       false,
		"RemoteCancelableCalls": true,
	}
	if opts.User != "" {
		caps["auth_user"] = opts.User
	}
	if opts.Token != "" {
		caps["auth_token"] = opts.Token
	}

	e := NewEncoder()
	if err := e.Encode("{sm}", caps); err != nil {
		return err
	}

	addr := Address{Service: serverService, Object: serverObject, Action: actionAuthenticate}
	msg, err := s.call(ctx, addr, e.Bytes())
	if err != nil {
		return errors.Wrap(err, "qi: authenticate")
	}

	reply, err := decodeReply(msg, "authenticate", "{sm}")
	if err != nil {
		var ce *CallError
		if errors.As(err, &ce) {
			// Robots without authentication reject the call outright.
			s.log.Debugf("Authentication not supported: %v", ce.Message)
			return nil
		}
		return err
	}

	fields, _ := reply.(map[any]any)
	state, ok := fields[authStateKey]
	if !ok {
		return nil
	}
	n, _ := toInt64(state)
	switch n {
	case authStateDone:
		return nil
	case authStateError:
		return ErrAuthRejected
	case authStateContinue:
		return errors.New("qi: multi-step authentication is not supported")
	default:
		return errors.Errorf("qi: unknown authentication state %v", state)
	}
}

// ServiceInfo describes a service registered in the service directory.
type ServiceInfo struct {
	Name      string
	ServiceID uint32
	MachineID string
	ProcessID uint32
	Endpoints []string
	SessionID string
}

const serviceInfoSignature = "(sIsI[s]s)<ServiceInfo,name,serviceId,machineId,processId,endpoints,sessionId>"

func serviceInfoFrom(v any) (ServiceInfo, error) {
	fields, ok := v.([]any)
	if !ok || len(fields) < 6 {
		return ServiceInfo{}, errors.Errorf("qi: malformed service info %v", v)
	}

	var info ServiceInfo
	info.Name, _ = fields[0].(string)
	info.ServiceID, _ = fields[1].(uint32)
	info.MachineID, _ = fields[2].(string)
	info.ProcessID, _ = fields[3].(uint32)
	if eps, ok := fields[4].([]any); ok {
		for _, ep := range eps {
			if s, ok := ep.(string); ok {
				info.Endpoints = append(info.Endpoints, s)
			}
		}
	}
	info.SessionID, _ = fields[5].(string)
	return info, nil
}

// ServiceInfo looks up a single service by name.
func (s *Session) ServiceInfo(ctx context.Context, name string) (ServiceInfo, error) {
	e := NewEncoder()
	e.WriteString(name)

	addr := Address{Service: directoryService, Object: mainObject, Action: actionService}
	msg, err := s.call(ctx, addr, e.Bytes())
	if err != nil {
		return ServiceInfo{}, err
	}
	v, err := decodeReply(msg, "service", serviceInfoSignature)
	if err != nil {
		return ServiceInfo{}, errors.Wrapf(err, "look up service %s", name)
	}
	return serviceInfoFrom(v)
}

// Services lists every service registered in the service directory.
func (s *Session) Services(ctx context.Context) ([]ServiceInfo, error) {
	addr := Address{Service: directoryService, Object: mainObject, Action: actionServices}
	msg, err := s.call(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	v, err := decodeReply(msg, "services", "["+serviceInfoSignature+"]")
	if err != nil {
		return nil, errors.Wrap(err, "list services")
	}

	list, ok := v.([]any)
	if !ok {
		return nil, errors.Errorf("qi: malformed service list %T", v)
	}
	infos := make([]ServiceInfo, 0, len(list))
	for _, item := range list {
		info, err := serviceInfoFrom(item)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Service resolves a service by name and fetches the interface of its main
// object. The object is reached through this session's connection.
func (s *Session) Service(ctx context.Context, name string) (*Object, error) {
	info, err := s.ServiceInfo(ctx, name)
	if err != nil {
		return nil, err
	}

	e := NewEncoder()
	e.WriteUint32(mainObject)
	addr := Address{Service: info.ServiceID, Object: mainObject, Action: actionMetaObject}
	msg, err := s.call(ctx, addr, e.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "fetch metaobject of %s", name)
	}
	if msg.Type != TypeReply {
		_, err := decodeReply(msg, "metaObject", "")
		return nil, errors.Wrapf(err, "fetch metaobject of %s", name)
	}

	d := NewDecoder(msg.Payload)
	if msg.Flags&FlagDynamicPayload != 0 {
		if _, err := d.ReadString(); err != nil {
			return nil, errors.Wrap(err, "qi: read metaobject signature")
		}
	}
	meta, err := readMetaObject(d)
	if err != nil {
		return nil, err
	}

	s.log.Debugf("Resolved %s as service %d with %d methods", name, info.ServiceID, len(meta.Methods))

	return &Object{
		session: s,
		name:    name,
		service: info.ServiceID,
		object:  mainObject,
		meta:    meta,
	}, nil
}
