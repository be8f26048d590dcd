/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fennec-im/fennec/event"
	"github.com/fennec-im/fennec/log"
	"github.com/fennec-im/fennec/scheduler"
	"github.com/fennec-im/fennec/session"
	"github.com/fennec-im/fennec/streamerror"
	"github.com/fennec-im/fennec/transport"
	"github.com/fennec-im/fennec/util/runqueue"
	"github.com/fennec-im/fennec/xmpp"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

// Stream event names.
const (
	// ConnectedEvent is posted right after the transport connection
	// is established.
	ConnectedEvent = "connected"

	// DisconnectedEvent is posted once the stream has been torn down.
	DisconnectedEvent = "disconnected"

	// SessionStartEvent is posted when the stream session has been
	// negotiated and the outbound queue gate opens.
	SessionStartEvent = "session_start"

	// SessionEndEvent is posted right before DisconnectedEvent if a
	// session had been started.
	SessionEndEvent = "session_end"

	// StreamStartEvent is posted when the peer stream header is
	// received. The event payload is the header element.
	StreamStartEvent = "stream_start"

	// SocketErrorEvent is posted when a transport read or write fails.
	// The event payload is the causing error.
	SocketErrorEvent = "socket_error"

	// ConnectFailedEvent is posted when the candidate queue and the
	// maximum attempt count are both exhausted.
	ConnectFailedEvent = "connect_failed"

	// KilledEvent is posted synchronously by Abort as the terminal
	// stream event.
	KilledEvent = "killed"

	// CertExpiredEvent is posted when the peer certificate expires
	// mid-session and a subscriber is present. The event payload is
	// the raw DER certificate.
	CertExpiredEvent = "ssl_expired_cert"
)

// Scheduler entry names.
const (
	keepAliveSchedule      = "whitespace keepalive"
	certExpirySchedule     = "certificate expiration"
	sessionTimeoutSchedule = "session timeout check"
	reconnectSchedule      = "reconnect"
)

// State represents the stream connection state.
type State uint32

const (
	// Disconnected represents a disconnected stream state.
	Disconnected State = iota

	// Connecting represents a connecting stream state.
	Connecting

	// Connected represents a connected stream state.
	Connected
)

var errAlreadyRegistered = errors.New("stream: handler already registered")

const pollInterval = 100 * time.Millisecond

// Stream represents an initiating entity XMPP stream.
// All stanza processing runs serialized on an internal run queue, so
// protocol critical reactions such as a STARTTLS restart always happen
// before the next element is read off the wire.
type Stream struct {
	cfg          *Config
	factory      *xmpp.Factory
	runQueue     *runqueue.RunQueue
	bus          *event.Bus
	sched        *scheduler.Scheduler
	resolver     Resolver
	dialer       *dialer
	certVerifier CertVerifier

	id      string
	idCount uint64

	state          uint32
	secured        uint32
	sessionStarted uint32
	stopped        uint32
	streamOpened   uint32

	mu   sync.RWMutex
	tr   transport.Transport
	sess *session.Session

	startedMu sync.Mutex
	startedCh chan struct{}

	stopCh   chan struct{}
	pumpDone chan struct{}

	handlersMu sync.RWMutex
	handlers   []*Handler

	filtersMu      sync.RWMutex
	inFilters      []Filter
	outFilters     []Filter
	outSyncFilters []Filter

	// queueLock guards outbound serialization and enqueueing, so that
	// synchronous outbound filters observe a consistent queue snapshot.
	queueLock sync.Mutex

	// sendLock guards transport writes. It is the sole serialization
	// point for outgoing bytes.
	sendLock sync.Mutex

	sendQueue  chan string
	failedMu   sync.Mutex
	failedSend string

	candMu     sync.Mutex
	candidates []Address
	attempts   int

	backoffMu    sync.Mutex
	backoffDelay time.Duration

	hooksMu     sync.RWMutex
	unhandledFn func(elem xmpp.XElement)
	exceptionFn func(err error)
}

// New returns a new stream associated to a given configuration.
func New(cfg *Config) *Stream {
	cfg.applyDefaults()

	s := &Stream{
		cfg:       cfg,
		factory:   xmpp.NewFactory(),
		id:        uuid.New(),
		startedCh: make(chan struct{}),
		stopCh:    make(chan struct{}),
		pumpDone:  make(chan struct{}),
		sendQueue: make(chan string, sendQueueSize),
	}
	s.runQueue = runqueue.New("stream:" + cfg.Domain)
	s.bus = event.NewBus(s.runQueue.Run, s.handleException)
	s.sched = scheduler.New(s.runQueue.Run)
	s.resolver = cfg.Resolver
	if s.resolver == nil {
		s.resolver = NewResolver()
	}
	s.certVerifier = cfg.CertVerifier
	if s.certVerifier == nil {
		s.certVerifier = notAfterVerifier{}
	}
	s.dialer = newDialer(cfg)

	for _, rt := range xmpp.TLSRootTypes() {
		s.factory.Register(rt)
	}
	s.bus.Subscribe(ConnectedEvent, s.scheduleSessionTimeoutCheck, false, false)
	s.bus.Subscribe(SessionStartEvent, s.startKeepAlive, false, false)
	s.bus.Subscribe(SessionStartEvent, s.scheduleCertExpiration, false, false)
	s.bus.Subscribe(DisconnectedEvent, s.removeSchedules, false, false)

	_ = s.RegisterHandler(&Handler{
		Name:     "STARTTLS features",
		Match:    func(elem xmpp.XElement) bool { return elem.Name() == "stream:features" || elem.Name() == "features" },
		Handle:   s.handleFeatures,
		InStream: true,
	})
	_ = s.RegisterHandler(&Handler{
		Name:     "STARTTLS proceed",
		Match:    MatchNamespaceName(xmpp.TLSNamespace, "proceed"),
		Handle:   s.handleProceed,
		InStream: true,
	})
	_ = s.RegisterHandler(&Handler{
		Name:     "STARTTLS failure",
		Match:    MatchNamespaceName(xmpp.TLSNamespace, "failure"),
		Handle:   s.handleTLSFailure,
		InStream: true,
	})
	go s.pump()
	return s
}

// ID returns the stream unique identifier.
func (s *Stream) ID() string {
	return s.id
}

// NewID returns a stream scoped stanza identifier.
func (s *Stream) NewID() string {
	return fmt.Sprintf("%s-%X", s.id, atomic.AddUint64(&s.idCount, 1))
}

// Factory returns the stream stanza factory.
func (s *Stream) Factory() *xmpp.Factory {
	return s.factory
}

// State returns current stream connection state.
func (s *Stream) State() State {
	return State(atomic.LoadUint32(&s.state))
}

// IsSecured returns whether or not the stream transport has been secured.
func (s *Stream) IsSecured() bool {
	return atomic.LoadUint32(&s.secured) == 1
}

// IsSessionStarted returns whether or not the stream session has been
// signaled as started.
func (s *Stream) IsSessionStarted() bool {
	return atomic.LoadUint32(&s.sessionStarted) == 1
}

// Subscribe registers an event handler under a given event name.
func (s *Stream) Subscribe(name string, handler event.Handler, dedicated, once bool) *event.Subscription {
	return s.bus.Subscribe(name, handler, dedicated, once)
}

// Unsubscribe removes a previously registered event subscription.
func (s *Stream) Unsubscribe(sub *event.Subscription) {
	s.bus.Unsubscribe(sub)
}

// Publish posts an event to the stream bus.
func (s *Stream) Publish(name string, payload interface{}, direct bool) {
	s.bus.Publish(name, payload, direct)
}

// SetUnhandledFunc sets the callback invoked for inbound stanzas no
// registered handler matched.
func (s *Stream) SetUnhandledFunc(fn func(elem xmpp.XElement)) {
	s.hooksMu.Lock()
	s.unhandledFn = fn
	s.hooksMu.Unlock()
}

// SetExceptionFunc sets the stream-wide hook receiving handler and
// subscriber panics not consumed by the originating payload.
func (s *Stream) SetExceptionFunc(fn func(err error)) {
	s.hooksMu.Lock()
	s.exceptionFn = fn
	s.hooksMu.Unlock()
}

// Schedule registers a named timer on the stream scheduler. A previous
// entry registered under the same name is replaced.
func (s *Stream) Schedule(name string, delay time.Duration, cb func(), repeat bool) {
	s.sched.Schedule(name, delay, cb, repeat)
}

// CancelSchedule cancels a previously registered timer.
func (s *Stream) CancelSchedule(name string) {
	s.sched.Cancel(name)
}

// Connect resolves address candidates and starts connecting in the
// background. It fails if the stream is not disconnected, or has been
// definitely killed by Abort.
func (s *Stream) Connect() error {
	if s.isStopped() {
		return errors.New("stream: stream was killed")
	}
	if !atomic.CompareAndSwapUint32(&s.state, uint32(Disconnected), uint32(Connecting)) {
		return errors.New("stream: already connected")
	}
	go s.connect()
	return nil
}

// ConnectWith binds an already established transport to the stream,
// skipping candidate resolution and dialing. This is how websocket
// connections, whose establishment is protocol specific, enter the
// stream lifecycle.
func (s *Stream) ConnectWith(tr transport.Transport) error {
	if s.isStopped() {
		return errors.New("stream: stream was killed")
	}
	if !atomic.CompareAndSwapUint32(&s.state, uint32(Disconnected), uint32(Connecting)) {
		return errors.New("stream: already connected")
	}
	go s.bindTransport(tr)
	return nil
}

// StartSession signals that the stream session has been established,
// opening the outbound queue gate and cancelling the session timeout
// check.
func (s *Stream) StartSession() {
	if !atomic.CompareAndSwapUint32(&s.sessionStarted, 0, 1) {
		return
	}
	s.sched.Cancel(sessionTimeoutSchedule)
	s.startedMu.Lock()
	close(s.startedCh)
	s.startedMu.Unlock()
	s.bus.Publish(SessionStartEvent, nil, false)
}

// Send routes a stanza through the outbound filter chain and to the
// transport. Before session establishment writes happen immediately
// and synchronously. After session establishment stanzas enter a FIFO
// queue drained by the stream pump. There is no failure return: write
// errors surface through the socket_error event.
func (s *Stream) Send(elem xmpp.XElement) {
	filtered := applyFilters(s.filtersSnapshot(FilterOut), elem)
	if filtered == nil {
		return
	}
	if !s.IsSessionStarted() {
		if data := s.serialize(filtered); len(data) > 0 {
			s.writeImmediately(data)
		}
		return
	}
	data := s.serialize(filtered)
	if len(data) == 0 {
		return
	}
	s.sendQueue <- data
}

// SendRaw writes a raw string directly to the transport, bypassing
// filters and the outbound queue.
func (s *Stream) SendRaw(str string) {
	s.writeImmediately(str)
}

// SendWithResponse sends a stanza and blocks until a stanza matching m
// is received, or until timeout elapses. A zero timeout applies the
// configured response timeout. It returns nil on expiry.
func (s *Stream) SendWithResponse(elem xmpp.XElement, m Matcher, timeout time.Duration) xmpp.XElement {
	if timeout == 0 {
		timeout = s.cfg.ResponseTimeout
	}
	respCh := make(chan xmpp.XElement, 1)
	h := &Handler{
		Name:  "waiter_" + s.NewID(),
		Match: m,
		Once:  true,
		Handle: func(resp xmpp.XElement) {
			respCh <- resp
		},
	}
	_ = s.RegisterHandler(h)
	s.Send(elem)
	select {
	case resp := <-respCh:
		return resp
	case <-time.After(timeout):
		s.RemoveHandler(h.Name)
		return nil
	}
}

// Disconnect terminates the stream. When wait is set the send queue is
// drained before closing. When sendClose is set the stream footer is
// written before dropping the connection; suppress it when the channel
// is already known to be broken.
func (s *Stream) Disconnect(reconnect, wait, sendClose bool) {
	s.runQueue.Run(func() {
		s.disconnect(reconnect, wait, sendClose)
	})
}

// Abort performs a hard, non-reconnecting stream teardown: it signals
// shutdown, waits for in-flight work to quiesce, closes the transport
// ignoring errors and posts the terminal killed event synchronously.
// The stream cannot be reconnected afterwards.
func (s *Stream) Abort() {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return
	}
	atomic.StoreUint32(&s.sessionStarted, 0)
	close(s.stopCh)
	s.sched.Stop()

	rqDone := make(chan struct{})
	s.runQueue.Stop(func() { close(rqDone) })
	select {
	case <-rqDone:
	case <-time.After(5 * time.Second):
		log.Warnf("stream %s: timed out waiting for dispatch queue termination", s.id)
	}
	select {
	case <-s.pumpDone:
	case <-time.After(5 * time.Second):
		log.Warnf("stream %s: timed out waiting for send pump termination", s.id)
	}
	if !s.bus.WaitDedicated(5 * time.Second) {
		log.Warnf("stream %s: timed out waiting for dedicated event handlers", s.id)
	}
	s.mu.Lock()
	if s.tr != nil {
		_ = s.tr.Close()
		s.tr = nil
	}
	s.sess = nil
	s.mu.Unlock()
	atomic.StoreUint32(&s.state, uint32(Disconnected))
	s.bus.Publish(KilledEvent, nil, true)
}

func (s *Stream) connect() {
	for {
		if s.isStopped() {
			atomic.StoreUint32(&s.state, uint32(Disconnected))
			return
		}
		cands := s.takeCandidates()
		for _, addr := range cands {
			if s.isStopped() {
				atomic.StoreUint32(&s.state, uint32(Disconnected))
				return
			}
			conn, err := s.dialer.Dial(addr)
			if err != nil {
				s.candMu.Lock()
				s.attempts++
				s.candMu.Unlock()
				log.Warnf("stream %s: failed connecting to %s: %v", s.id, addr, err)
				continue
			}
			s.bindTransport(transport.NewSocketTransport(conn, s.cfg.KeepAlive))
			return
		}
		s.candMu.Lock()
		attempts := s.attempts
		s.candMu.Unlock()
		if max := s.cfg.Reconnect.MaxAttempts; max > 0 && attempts >= max {
			atomic.StoreUint32(&s.state, uint32(Disconnected))
			log.Errorf("stream %s: giving up after %d connection attempts", s.id, attempts)
			s.bus.Publish(ConnectFailedEvent, nil, true)
			return
		}
		if !s.waitBackoff() {
			atomic.StoreUint32(&s.state, uint32(Disconnected))
			return
		}
	}
}

func (s *Stream) takeCandidates() []Address {
	s.candMu.Lock()
	defer s.candMu.Unlock()
	if len(s.candidates) == 0 {
		domain := s.cfg.Host
		if len(domain) == 0 {
			domain = s.cfg.Domain
		}
		cands, err := s.resolver.Resolve(domain, s.cfg.Port, s.cfg.DNSService, s.cfg.PreferIPv6)
		if err != nil || len(cands) == 0 {
			cands = []Address{{Host: domain, Port: s.cfg.Port}}
		}
		s.candidates = cands
	}
	cands := s.candidates
	s.candidates = nil
	return cands
}

func (s *Stream) bindTransport(tr transport.Transport) {
	if s.cfg.UseTLS {
		tr.StartTLS(s.cfg.TLS, true)
		atomic.StoreUint32(&s.secured, 1)
	}
	s.mu.Lock()
	s.tr = tr
	s.mu.Unlock()
	s.restartSession()
	atomic.StoreUint32(&s.state, uint32(Connected))

	if err := s.session().Open(); err != nil {
		s.runQueue.Run(func() { s.handleSessionError(err) })
		return
	}
	s.bus.Publish(ConnectedEvent, nil, false)
	go s.doRead()
}

func (s *Stream) restartSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	atomic.StoreUint32(&s.streamOpened, 0)
	// each restart gets its own identifier, so the sessions on both
	// sides of a STARTTLS upgrade stay apart in logs
	s.sess = session.New(session.NewSessionID(), &session.Config{
		Transport:     s.tr,
		Factory:       s.factory,
		MaxStanzaSize: s.cfg.MaxStanzaSize,
		RemoteDomain:  s.cfg.Domain,
		Namespace:     s.cfg.Namespace,
		Lang:          s.cfg.Lang,
	})
}

func (s *Stream) session() *session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess
}

func (s *Stream) transport() transport.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tr
}

// doRead performs a single blocking read off the session framer and
// posts the result to the run queue. Processing each element before
// reading the next one is what keeps a STARTTLS restart race free.
func (s *Stream) doRead() {
	sess := s.session()
	if sess == nil {
		return
	}
	elem, sErr := sess.Receive()
	if sErr == nil {
		s.runQueue.Run(func() { s.readElement(sess, elem) })
	} else {
		s.runQueue.Run(func() {
			if s.session() != sess || s.State() == Disconnected {
				return // stale read loop
			}
			s.handleSessionError(sErr)
		})
	}
}

func (s *Stream) readElement(sess *session.Session, elem xmpp.XElement) {
	if s.session() == sess && elem != nil {
		s.handleElement(elem)
	}
	if s.State() != Disconnected && !s.isStopped() {
		go s.doRead()
	}
}

func (s *Stream) handleElement(elem xmpp.XElement) {
	if atomic.CompareAndSwapUint32(&s.streamOpened, 0, 1) {
		// stream header received: proof of forward progress
		s.resetBackoff()
		s.bus.Publish(StreamStartEvent, elem, false)
		return
	}
	s.processStanza(elem)
}

func (s *Stream) processStanza(elem xmpp.XElement) {
	stanza := applyFilters(s.filtersSnapshot(FilterIn), elem)
	if stanza == nil {
		return
	}
	var matched []*Handler
	for _, h := range s.handlersSnapshot() {
		if !h.Match(stanza) {
			continue
		}
		if h.Once {
			if !h.markFired() {
				continue
			}
			s.removeHandler(h)
		}
		matched = append(matched, h)
	}
	if len(matched) == 0 {
		s.hooksMu.RLock()
		unhandledFn := s.unhandledFn
		s.hooksMu.RUnlock()
		if unhandledFn != nil {
			unhandledFn(stanza)
		}
		return
	}
	multi := len(matched) > 1
	for _, h := range matched {
		if !h.InStream {
			continue
		}
		s.runHandler(h, s.handlerStanza(stanza, multi))
	}
	for _, h := range matched {
		if h.InStream {
			continue
		}
		h, st := h, s.handlerStanza(stanza, multi)
		s.runQueue.Run(func() { s.runHandler(h, st) })
	}
}

// handlerStanza hands each of multiple matched handlers its own copy,
// so that one handler mutating the stanza can't corrupt its siblings.
func (s *Stream) handlerStanza(stanza xmpp.XElement, multi bool) xmpp.XElement {
	if multi {
		return stanza.Copy()
	}
	return stanza
}

func (s *Stream) runHandler(h *Handler, stanza xmpp.XElement) {
	defer func() {
		if r := recover(); r != nil {
			hErr := &streamerror.HandlerError{Handler: h.Name, Err: errors.Errorf("%v", r)}
			if eh, ok := stanza.(event.ErrorHandler); ok {
				eh.HandleError(hErr)
				return
			}
			s.handleException(hErr)
		}
	}()
	h.Handle(stanza)
}

func (s *Stream) handleException(err error) {
	s.hooksMu.RLock()
	exceptionFn := s.exceptionFn
	s.hooksMu.RUnlock()
	if exceptionFn != nil {
		exceptionFn(err)
		return
	}
	log.Errorf("stream %s: %v", s.id, err)
}

func (s *Stream) handleFeatures(elem xmpp.XElement) {
	if s.cfg.STARTTLS == STARTTLSDisabled || s.IsSecured() {
		return
	}
	if elem.Elements().ChildNamespace("starttls", xmpp.TLSNamespace) == nil {
		if s.cfg.STARTTLS == STARTTLSRequired {
			log.Errorf("stream %s: peer does not offer STARTTLS", s.id)
			s.disconnect(false, false, true)
		}
		return
	}
	// negotiation traffic goes straight through the session, bypassing
	// the outbound filter chain
	if sess := s.session(); sess != nil {
		s.sendLock.Lock()
		err := sess.Send(xmpp.NewStartTLS())
		s.sendLock.Unlock()
		if err != nil {
			s.handleSessionError(&streamerror.TransportError{Op: "write", Err: err})
		}
	}
}

// handleProceed performs the in-place transport upgrade: the TLS layer
// wraps the live connection and the framer state is discarded, since
// the protocol mandates a stream restart. Candidate state is preserved.
func (s *Stream) handleProceed(_ xmpp.XElement) {
	tr := s.transport()
	if tr == nil {
		return
	}
	tr.StartTLS(s.cfg.TLS, true)
	atomic.StoreUint32(&s.secured, 1)
	s.restartSession()
	if err := s.session().Open(); err != nil {
		s.handleSessionError(err)
	}
}

func (s *Stream) handleTLSFailure(_ xmpp.XElement) {
	log.Errorf("stream %s: peer rejected STARTTLS negotiation", s.id)
	s.disconnect(false, false, true)
}

func (s *Stream) handleSessionError(err error) {
	switch err.(type) {
	case nil:
		return
	case *streamerror.TransportError:
		s.bus.Publish(SocketErrorEvent, err, true)
		s.disconnect(true, false, false)
	case *streamerror.FramingError:
		log.Warnf("stream %s: %v", s.id, err)
		s.disconnect(true, false, true)
	default:
		switch err {
		case xmpp.ErrStreamClosedByPeer:
			s.disconnect(true, false, true)
		case xmpp.ErrTooLargeStanza:
			log.Warnf("stream %s: %v", s.id, err)
			s.disconnect(true, false, true)
		default:
			log.Errorf("stream %s: %v", s.id, err)
			s.disconnect(true, false, false)
		}
	}
}

func (s *Stream) disconnect(reconnect, wait, sendClose bool) {
	if s.State() == Disconnected {
		return
	}
	if wait {
		s.drainSendQueue()
	}
	hadSession := atomic.CompareAndSwapUint32(&s.sessionStarted, 1, 0)
	s.startedMu.Lock()
	s.startedCh = make(chan struct{})
	s.startedMu.Unlock()
	s.sched.Cancel(sessionTimeoutSchedule)

	if sendClose {
		if sess := s.session(); sess != nil {
			s.sendLock.Lock()
			_ = sess.Close()
			s.sendLock.Unlock()
		}
	}
	s.mu.Lock()
	if s.tr != nil {
		_ = s.tr.Close()
		s.tr = nil
	}
	s.sess = nil
	s.mu.Unlock()
	atomic.StoreUint32(&s.secured, 0)
	atomic.StoreUint32(&s.state, uint32(Disconnected))

	if hadSession {
		s.bus.Publish(SessionEndEvent, nil, false)
	}
	s.bus.Publish(DisconnectedEvent, nil, false)

	if reconnect && s.cfg.Reconnect.Enabled && !s.isStopped() {
		delay := s.nextBackoffDelay()
		log.Debugf("stream %s: reconnecting in %v...", s.id, delay)
		s.sched.Schedule(reconnectSchedule, delay, func() {
			if err := s.Connect(); err != nil {
				log.Warnf("stream %s: %v", s.id, err)
			}
		}, false)
	}
}

func (s *Stream) drainSendQueue() {
	for {
		select {
		case data := <-s.sendQueue:
			if err := s.writeOut(data); err != nil {
				log.Warnf("stream %s: %v", s.id, err)
				return
			}
		default:
			return
		}
	}
}

// nextBackoffDelay doubles the reconnection delay with jitter, capped
// at the configured ceiling. The sequence of returned delays is
// non-decreasing until resetBackoff is called.
func (s *Stream) nextBackoffDelay() time.Duration {
	s.backoffMu.Lock()
	defer s.backoffMu.Unlock()
	if s.backoffDelay == 0 {
		s.backoffDelay = defaultReconnectFloor
		return s.backoffDelay
	}
	s.backoffDelay *= 2
	if s.backoffDelay >= s.cfg.Reconnect.MaxDelay {
		s.backoffDelay = s.cfg.Reconnect.MaxDelay
		return s.backoffDelay
	}
	delay := s.backoffDelay + time.Duration(rand.Int63n(int64(s.backoffDelay/2)+1))
	if delay > s.cfg.Reconnect.MaxDelay {
		delay = s.cfg.Reconnect.MaxDelay
	}
	return delay
}

func (s *Stream) resetBackoff() {
	s.backoffMu.Lock()
	s.backoffDelay = 0
	s.backoffMu.Unlock()
	s.candMu.Lock()
	s.attempts = 0
	s.candMu.Unlock()
}

func (s *Stream) waitBackoff() bool {
	select {
	case <-time.After(s.nextBackoffDelay()):
		return true
	case <-s.stopCh:
		return false
	}
}

func (s *Stream) scheduleSessionTimeoutCheck(_ interface{}) {
	s.sched.Schedule(sessionTimeoutSchedule, s.cfg.SessionTimeout, func() {
		if s.IsSessionStarted() {
			return
		}
		log.Warnf("stream %s: %v", s.id, streamerror.ErrSessionTimeout)
		s.disconnect(true, false, true)
	}, false)
}

func (s *Stream) startKeepAlive(_ interface{}) {
	if !s.cfg.KeepAliveSend.Enabled {
		return
	}
	s.sched.Schedule(keepAliveSchedule, s.cfg.KeepAliveSend.Interval, func() {
		s.SendRaw(" ")
	}, true)
}

func (s *Stream) scheduleCertExpiration(_ interface{}) {
	tr := s.transport()
	if tr == nil {
		return
	}
	certs := tr.PeerCertificates()
	if len(certs) == 0 {
		if s.IsSecured() {
			log.Warnf("stream %s: secured transport presented no peer certificate", s.id)
		}
		return
	}
	cert := certs[0]
	ttl := s.certVerifier.TTL(cert)
	if ttl <= 0 {
		s.certExpired(cert.Raw)
		return
	}
	log.Infof("stream %s: time until certificate expiration: %v", s.id, ttl)
	s.sched.Schedule(certExpirySchedule, ttl, func() {
		s.certExpired(cert.Raw)
	}, false)
}

func (s *Stream) certExpired(rawCert []byte) {
	if s.bus.Subscribed(CertExpiredEvent) {
		s.bus.Publish(CertExpiredEvent, rawCert, false)
		return
	}
	log.Warnf("stream %s: %v: restarting", s.id, streamerror.ErrCertificateExpired)
	s.disconnect(true, false, true)
}

func (s *Stream) removeSchedules(_ interface{}) {
	s.sched.Cancel(keepAliveSchedule)
	s.sched.Cancel(certExpirySchedule)
	s.sched.Cancel(sessionTimeoutSchedule)
}

// serialize runs the synchronous outbound filter chain and encodes the
// stanza to its wire representation under the queue lock.
func (s *Stream) serialize(elem xmpp.XElement) string {
	s.queueLock.Lock()
	defer s.queueLock.Unlock()
	filtered := applyFilters(s.filtersSnapshot(FilterOutSync), elem)
	if filtered == nil {
		return ""
	}
	buf := bytes.NewBuffer(nil)
	filtered.ToXML(buf, true)
	return buf.String()
}

func (s *Stream) writeImmediately(data string) {
	if err := s.writeOut(data); err != nil {
		s.bus.Publish(SocketErrorEvent, err, true)
		s.Disconnect(true, false, false)
	}
}

func (s *Stream) isStopped() bool {
	return atomic.LoadUint32(&s.stopped) == 1
}
