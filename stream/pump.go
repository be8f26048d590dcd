/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"net"
	"time"

	"github.com/fennec-im/fennec/log"
	"github.com/fennec-im/fennec/streamerror"
)

const sendQueueSize = 512

// pump is the stream's single logical writer. It gates on session
// establishment before dequeuing new work, but a retained failed item
// is drained ahead of the session gate so data that was mid-flight at
// disconnect time is the first thing re-sent after reconnecting. The
// retained item itself waits on a bound transport, never the session.
func (s *Stream) pump() {
	defer close(s.pumpDone)
	for {
		data := s.takeFailedSend()
		if len(data) > 0 {
			// a retained item is only retried once reconnection has
			// bound a transport to write it to
			if !s.waitTransport() {
				s.setFailedSend(data)
				return
			}
		} else {
			if !s.waitSessionStarted() {
				return
			}
			select {
			case data = <-s.sendQueue:
			case <-s.stopCh:
				return
			case <-time.After(pollInterval):
				continue
			}
		}
		if err := s.writeOut(data); err != nil {
			if _, ok := err.(*streamerror.SecureChannelError); !ok {
				s.setFailedSend(data)
			}
			log.Warnf("stream %s: %v", s.id, err)
			s.bus.Publish(SocketErrorEvent, err, true)
			s.Disconnect(true, false, false)
		}
	}
}

func (s *Stream) waitSessionStarted() bool {
	for {
		if s.isStopped() {
			return false
		}
		if s.IsSessionStarted() || s.hasFailedSend() {
			return true
		}
		s.startedMu.Lock()
		startedCh := s.startedCh
		s.startedMu.Unlock()
		select {
		case <-startedCh:
		case <-s.stopCh:
			return false
		case <-time.After(pollInterval):
		}
	}
}

func (s *Stream) waitTransport() bool {
	for {
		if s.isStopped() {
			return false
		}
		if s.transport() != nil {
			return true
		}
		select {
		case <-s.stopCh:
			return false
		case <-time.After(pollInterval):
		}
	}
}

// writeOut writes a serialized stanza to the transport under the send
// lock, retrying transient secure channel errors up to the configured
// bound. It performs no error escalation of its own.
func (s *Stream) writeOut(data string) error {
	s.sendLock.Lock()
	defer s.sendLock.Unlock()

	tr := s.transport()
	if tr == nil {
		return &streamerror.TransportError{Op: "write", Err: net.ErrClosed}
	}
	var retries int
	sent := 0
	for sent < len(data) {
		n, err := tr.WriteString(data[sent:])
		sent += n
		if err == nil {
			continue
		}
		if !isTransientWriteError(err) {
			return &streamerror.TransportError{Op: "write", Err: err}
		}
		if retries >= s.cfg.SecureRetryMax {
			return &streamerror.SecureChannelError{Err: err}
		}
		retries++
		time.Sleep(s.cfg.SecureRetryDelay)
	}
	for {
		err := tr.Flush()
		if err == nil {
			return nil
		}
		if !isTransientWriteError(err) {
			return &streamerror.TransportError{Op: "flush", Err: err}
		}
		if retries >= s.cfg.SecureRetryMax {
			return &streamerror.SecureChannelError{Err: err}
		}
		retries++
		time.Sleep(s.cfg.SecureRetryDelay)
	}
}

func isTransientWriteError(err error) bool {
	if netErr, ok := err.(net.Error); ok {
		return netErr.Timeout() || netErr.Temporary()
	}
	return false
}

func (s *Stream) setFailedSend(data string) {
	s.failedMu.Lock()
	s.failedSend = data
	s.failedMu.Unlock()
}

func (s *Stream) hasFailedSend() bool {
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	return s.failedSend != ""
}

func (s *Stream) takeFailedSend() string {
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	data := s.failedSend
	s.failedSend = ""
	return data
}
