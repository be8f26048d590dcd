/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/fennec-im/fennec/log"
	"github.com/fennec-im/fennec/streamerror"
)

// Handler processes a published event payload.
type Handler func(payload interface{})

// ErrorHandler may be implemented by event payloads to capture failures
// raised by their own subscribers. When a payload doesn't implement it,
// failures are routed to the bus exception hook instead.
type ErrorHandler interface {
	HandleError(err error)
}

// Subscription represents a registered event subscriber.
type Subscription struct {
	name      string
	handler   Handler
	dedicated bool
	once      bool
}

// Bus dispatches named custom events to registered subscribers.
//
// Subscribers for a same event name form an ordered sequence in
// registration order. A failing subscriber never aborts dispatching
// to the remaining subscribers.
type Bus struct {
	runFn       func(func())
	exceptionFn func(error)

	mu   sync.RWMutex
	subs map[string][]*Subscription

	thMu    sync.Mutex
	thCond  *sync.Cond
	thCount int
}

// NewBus returns an initialized event bus.
//
// Queued (non-direct) dispatch jobs are pushed through runFn. Subscriber
// failures with no payload error hook are routed to exceptionFn.
func NewBus(runFn func(func()), exceptionFn func(error)) *Bus {
	if runFn == nil {
		runFn = func(fn func()) { fn() }
	}
	if exceptionFn == nil {
		exceptionFn = func(err error) { log.Error(err) }
	}
	b := &Bus{
		runFn:       runFn,
		exceptionFn: exceptionFn,
		subs:        make(map[string][]*Subscription),
	}
	b.thCond = sync.NewCond(&b.thMu)
	return b
}

// Subscribe registers a handler for a named event.
//
// Handlers marked dedicated run on their own goroutine, off the bus
// dispatch path. Handlers marked once are removed immediately upon being
// matched for dispatch, before the deferred execution actually runs.
func (b *Bus) Subscribe(name string, handler Handler, dedicated, once bool) *Subscription {
	sub := &Subscription{
		name:      name,
		handler:   handler,
		dedicated: dedicated,
		once:      once,
	}
	b.mu.Lock()
	b.subs[name] = append(b.subs[name], sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a previously registered subscription.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	b.remove(sub)
	b.mu.Unlock()
}

// Subscribed returns whether or not an event name has any subscriber.
func (b *Bus) Subscribed(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name]) > 0
}

// Publish triggers a named event.
//
// In direct mode every current subscriber is invoked synchronously, in
// registration order, on the caller's goroutine. Otherwise one dispatch
// job per subscriber is queued onto the bus async dispatch path, except
// for dedicated subscribers, which always run on their own goroutine.
func (b *Bus) Publish(name string, payload interface{}, direct bool) {
	log.Debugf("event triggered: %s", name)

	b.mu.Lock()
	subs := append([]*Subscription(nil), b.subs[name]...)
	for _, sub := range subs {
		if sub.once {
			// once subscribers are removed at dispatch time, not upon completion
			b.remove(sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		switch {
		case direct:
			b.invoke(sub, payload)
		case sub.dedicated:
			b.spawn(sub, payload)
		default:
			s := sub
			b.runFn(func() { b.invoke(s, payload) })
		}
	}
}

// WaitDedicated blocks until every dedicated subscriber goroutine has
// finished or until timeout elapses, returning false in the latter case.
func (b *Bus) WaitDedicated(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.thMu.Lock()
		for b.thCount > 0 {
			b.thCond.Wait()
		}
		b.thMu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (b *Bus) remove(sub *Subscription) {
	subs := b.subs[sub.name]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.name] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) spawn(sub *Subscription, payload interface{}) {
	b.thMu.Lock()
	b.thCount++
	b.thMu.Unlock()

	go func() {
		defer func() {
			b.thMu.Lock()
			b.thCount--
			if b.thCount == 0 {
				b.thCond.Broadcast()
			}
			b.thMu.Unlock()
		}()
		b.invoke(sub, payload)
	}()
}

func (b *Bus) invoke(sub *Subscription, payload interface{}) {
	defer func() {
		if err := recover(); err != nil {
			hErr := &streamerror.HandlerError{Handler: sub.name, Err: fmt.Errorf("%v", err)}
			if eh, ok := payload.(ErrorHandler); ok {
				eh.HandleError(hErr)
				return
			}
			b.exceptionFn(hErr)
		}
	}()
	sub.handler(payload)
}
