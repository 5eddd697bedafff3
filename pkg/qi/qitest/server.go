// Package qitest provides an in-process NAOqi service directory for tests.
package qitest

import (
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/gwillem/naohello/pkg/qi"
)

// Method declares a method of a fake service.
type Method struct {
	Name    string
	Params  string // tuple signature, e.g. "(sf)"
	Returns string // defaults to "v"
}

// Call is a method invocation received by the server.
type Call struct {
	Service string
	Method  string
	Args    []any
}

// Handler answers a call. A returned error is sent as an error reply.
type Handler func(c Call) (any, error)

type service struct {
	name    string
	id      uint32
	methods []qi.MetaMethod
	handler Handler
}

// Server is a fake robot that serves registered services.
type Server struct {
	ln net.Listener

	mu         sync.Mutex
	rejectAuth bool
	nextID     uint32
	services   map[string]*service
	byID       map[uint32]*service
	calls      []Call
	conns      []net.Conn
}

// NewServer starts a server listening on a local TCP port. It is closed
// when the test finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("qitest: listen: %v", err)
	}
	s := &Server{
		ln:       ln,
		nextID:   10,
		services: make(map[string]*service),
		byID:     make(map[uint32]*service),
	}
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Pipe serves one in-memory connection and returns the client end.
func (s *Server) Pipe() net.Conn {
	client, server := net.Pipe()
	s.track(server)
	go s.serve(server)
	return client
}

// AddService registers a service. Method action ids are assigned from 100.
func (s *Server) AddService(name string, h Handler, methods ...Method) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	svc := &service{name: name, id: s.nextID, handler: h}
	for i, m := range methods {
		ret := m.Returns
		if ret == "" {
			ret = "v"
		}
		params := m.Params
		if params == "" {
			params = "()"
		}
		svc.methods = append(svc.methods, qi.MetaMethod{
			UID:                 uint32(100 + i),
			Name:                m.Name,
			ParametersSignature: params,
			ReturnSignature:     ret,
		})
	}
	s.services[name] = svc
	s.byID[svc.id] = svc
}

// RejectAuth makes later authentication handshakes fail.
func (s *Server) RejectAuth() {
	s.mu.Lock()
	s.rejectAuth = true
	s.mu.Unlock()
}

// Calls returns the method calls received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Close stops listening and drops all connections.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) accept() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.track(c)
		go s.serve(c)
	}
}

type conn struct {
	net.Conn
	mu sync.Mutex
}

func (c *conn) send(m *qi.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m.WriteTo(c.Conn)
}

func (s *Server) serve(nc net.Conn) {
	c := &conn{Conn: nc}
	defer c.Close()

	for {
		m, err := qi.ReadMessage(c)
		if err != nil {
			return
		}
		if m.Type != qi.TypeCall {
			continue
		}
		s.dispatch(c, m)
	}
}

func reply(to *qi.Message, payload []byte) *qi.Message {
	return &qi.Message{ID: to.ID, Type: qi.TypeReply, Address: to.Address, Payload: payload}
}

func errorReply(to *qi.Message, err error) *qi.Message {
	e := qi.NewEncoder()
	e.EncodeDynamic(err.Error())
	return &qi.Message{ID: to.ID, Type: qi.TypeError, Address: to.Address, Payload: e.Bytes()}
}

const serviceInfoSignature = "(sIsI[s]s)"

func (s *Server) info(svc *service) []any {
	return []any{svc.name, svc.id, "qitest", uint32(1), []string{"tcp://" + s.Addr()}, "qitest"}
}

func (s *Server) dispatch(c *conn, m *qi.Message) {
	e := qi.NewEncoder()

	switch {
	case m.Service == 0 && m.Action == 8:
		state := uint32(3)
		s.mu.Lock()
		if s.rejectAuth {
			state = 1
		}
		s.mu.Unlock()
		e.Encode("{sm}", map[string]any{"__qi_auth_state": state})
		c.send(reply(m, e.Bytes()))
		return

	case m.Service == 1 && m.Action == 100:
		name, _ := qi.NewDecoder(m.Payload).ReadString()
		s.mu.Lock()
		svc, ok := s.services[name]
		s.mu.Unlock()
		if !ok {
			c.send(errorReply(m, errors.Errorf("Cannot find service '%s' in index", name)))
			return
		}
		e.Encode(serviceInfoSignature, s.info(svc))
		c.send(reply(m, e.Bytes()))
		return

	case m.Service == 1 && m.Action == 101:
		s.mu.Lock()
		list := make([]any, 0, len(s.services))
		for _, svc := range s.services {
			list = append(list, s.info(svc))
		}
		s.mu.Unlock()
		e.Encode("["+serviceInfoSignature+"]", list)
		c.send(reply(m, e.Bytes()))
		return
	}

	s.mu.Lock()
	svc, ok := s.byID[m.Service]
	s.mu.Unlock()
	if !ok {
		c.send(errorReply(m, errors.Errorf("no service %d", m.Service)))
		return
	}

	if m.Action == 2 {
		writeMetaObject(e, svc.methods)
		c.send(reply(m, e.Bytes()))
		return
	}

	for _, mm := range svc.methods {
		if mm.UID != m.Action {
			continue
		}
		args, err := qi.NewDecoder(m.Payload).Decode(mm.ParametersSignature)
		if err != nil {
			c.send(errorReply(m, err))
			return
		}
		call := Call{Service: svc.name, Method: mm.Name, Args: args.([]any)}
		s.mu.Lock()
		s.calls = append(s.calls, call)
		s.mu.Unlock()

		// Handlers may block, so the connection keeps reading meanwhile.
		go s.answer(c, m, svc, mm, call)
		return
	}
	c.send(errorReply(m, errors.Errorf("no action %d on %s", m.Action, svc.name)))
}

func (s *Server) answer(c *conn, m *qi.Message, svc *service, mm qi.MetaMethod, call Call) {
	var v any
	var err error
	if svc.handler != nil {
		v, err = svc.handler(call)
	}
	if err != nil {
		c.send(errorReply(m, err))
		return
	}

	e := qi.NewEncoder()
	if err := e.Encode(mm.ReturnSignature, v); err != nil {
		c.send(errorReply(m, err))
		return
	}
	c.send(reply(m, e.Bytes()))
}

func writeMetaObject(e *qi.Encoder, methods []qi.MetaMethod) {
	e.WriteUint32(uint32(len(methods)))
	for _, m := range methods {
		e.WriteUint32(m.UID)
		e.WriteUint32(m.UID)
		e.WriteString(m.ReturnSignature)
		e.WriteString(m.Name)
		e.WriteString(m.ParametersSignature)
		e.WriteString(m.Description)
		e.WriteUint32(uint32(len(m.Parameters)))
		for _, p := range m.Parameters {
			e.WriteString(p.Name)
			e.WriteString(p.Description)
		}
		e.WriteString(m.ReturnDescription)
	}
	e.WriteUint32(0) // signals
	e.WriteUint32(0) // properties
	e.WriteString("")
}
