package applet

import "sync"

// DataBroker is the messaging boundary between the host and one applet
// invocation. The host pushes argument storages in before the lifecycle
// starts; the applet pushes its single return storage out and raises the
// state-changed signal when it completes.
//
// Queues are FIFO and safe for concurrent use. The signal channel is
// buffered and coalescing: raising it twice before the host observes it
// is indistinguishable from raising it once.
type DataBroker struct {
	mu         sync.Mutex
	toApplet   [][]byte
	fromApplet [][]byte

	stateChanged chan struct{}
}

// NewDataBroker creates an empty broker.
func NewDataBroker() *DataBroker {
	return &DataBroker{
		stateChanged: make(chan struct{}, 1),
	}
}

// PushNormalDataToApplet queues a storage for the applet to consume.
func (b *DataBroker) PushNormalDataToApplet(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toApplet = append(b.toApplet, data)
}

// PopNormalDataToApplet dequeues the next storage pushed by the host.
func (b *DataBroker) PopNormalDataToApplet() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.toApplet) == 0 {
		return nil, false
	}
	data := b.toApplet[0]
	b.toApplet = b.toApplet[1:]
	return data, true
}

// PushNormalDataFromApplet queues a storage for the host to consume.
func (b *DataBroker) PushNormalDataFromApplet(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fromApplet = append(b.fromApplet, data)
}

// PopNormalDataFromApplet dequeues the next storage pushed by the applet.
func (b *DataBroker) PopNormalDataFromApplet() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.fromApplet) == 0 {
		return nil, false
	}
	data := b.fromApplet[0]
	b.fromApplet = b.fromApplet[1:]
	return data, true
}

// SignalStateChanged notifies the host scheduler that the applet's state
// advanced. Non-blocking.
func (b *DataBroker) SignalStateChanged() {
	select {
	case b.stateChanged <- struct{}{}:
	default:
	}
}

// StateChanged returns the channel the host scheduler waits on.
func (b *DataBroker) StateChanged() <-chan struct{} {
	return b.stateChanged
}
