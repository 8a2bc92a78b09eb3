package presenter

import (
	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/benmeehan/signal-agent/internal/store"
)

// Fanout forwards store events to several observers in order.
type Fanout []store.Observer

// OnStoreEvent implements store.Observer.
func (f Fanout) OnStoreEvent(event models.StoreEvent) {
	for _, o := range f {
		if o != nil {
			o.OnStoreEvent(event)
		}
	}
}
