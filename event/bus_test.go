/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fennec-im/fennec/streamerror"
	"github.com/stretchr/testify/require"
)

func TestBus_DirectDispatchOrder(t *testing.T) {
	b := NewBus(nil, nil)
	var order []int
	b.Subscribe("ev", func(_ interface{}) { order = append(order, 1) }, false, false)
	b.Subscribe("ev", func(_ interface{}) { order = append(order, 2) }, false, false)
	b.Subscribe("ev", func(_ interface{}) { order = append(order, 3) }, false, false)

	b.Publish("ev", nil, true)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_QueuedDispatch(t *testing.T) {
	jobs := make(chan func(), 8)
	b := NewBus(func(fn func()) { jobs <- fn }, nil)

	var fired uint32
	b.Subscribe("ev", func(_ interface{}) { atomic.AddUint32(&fired, 1) }, false, false)
	b.Publish("ev", nil, false)

	require.Equal(t, uint32(0), atomic.LoadUint32(&fired))
	(<-jobs)()
	require.Equal(t, uint32(1), atomic.LoadUint32(&fired))
}

func TestBus_OnceRemovedAtDispatchTime(t *testing.T) {
	b := NewBus(nil, nil)
	var fired uint32
	b.Subscribe("ev", func(_ interface{}) {
		atomic.AddUint32(&fired, 1)
		require.False(t, b.Subscribed("ev"))
	}, false, true)

	b.Publish("ev", nil, true)
	b.Publish("ev", nil, true)
	require.Equal(t, uint32(1), atomic.LoadUint32(&fired))
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus(nil, nil)
	var fired uint32
	sub := b.Subscribe("ev", func(_ interface{}) { atomic.AddUint32(&fired, 1) }, false, false)
	require.True(t, b.Subscribed("ev"))

	b.Unsubscribe(sub)
	require.False(t, b.Subscribed("ev"))

	b.Publish("ev", nil, true)
	require.Equal(t, uint32(0), atomic.LoadUint32(&fired))
}

func TestBus_PanicIsolation(t *testing.T) {
	var captured error
	b := NewBus(nil, func(err error) { captured = err })

	var siblingFired bool
	b.Subscribe("ev", func(_ interface{}) { panic("boom") }, false, false)
	b.Subscribe("ev", func(_ interface{}) { siblingFired = true }, false, false)

	b.Publish("ev", nil, true)

	require.True(t, siblingFired)
	require.NotNil(t, captured)
	_, ok := captured.(*streamerror.HandlerError)
	require.True(t, ok)
}

type erroringPayload struct {
	mu   sync.Mutex
	errs []error
}

func (p *erroringPayload) HandleError(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

func TestBus_PayloadErrorHook(t *testing.T) {
	var hookFired bool
	b := NewBus(nil, func(err error) { hookFired = true })

	payload := &erroringPayload{}
	b.Subscribe("ev", func(_ interface{}) { panic("boom") }, false, false)
	b.Publish("ev", payload, true)

	require.Len(t, payload.errs, 1)
	require.False(t, hookFired)
}

func TestBus_DedicatedWait(t *testing.T) {
	b := NewBus(nil, nil)
	release := make(chan struct{})
	var fired uint32
	b.Subscribe("ev", func(_ interface{}) {
		<-release
		atomic.StoreUint32(&fired, 1)
	}, true, false)

	b.Publish("ev", nil, false)

	require.False(t, b.WaitDedicated(10*time.Millisecond))
	close(release)
	require.True(t, b.WaitDedicated(time.Second))
	require.Equal(t, uint32(1), atomic.LoadUint32(&fired))
}
