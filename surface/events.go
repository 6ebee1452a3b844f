package surface

import (
	"context"

	"github.com/gammazero/channelqueue"

	"github.com/tessera-archive/go-tessera/geometry"
)

// TileLoaded notifies subscribers that a tile fetch reached a terminal
// state. Count is the number of placed items; Err is set when the fetch
// failed and the tile will render empty.
type TileLoaded struct {
	Tile  geometry.TileCoord
	Key   string
	Count int
	Err   error
}

// OnTileLoaded creates a channel that receives tile load notifications and
// adds it to the set of subscriber channels. Calling the returned cancel
// function removes and closes the channel so readers can stop waiting.
func (s *Surface) OnTileLoaded() (<-chan TileLoaded, context.CancelFunc) {
	// Queue-buffered so distributeEvents never blocks on a slow reader.
	cq := channelqueue.New[TileLoaded](-1)
	ch := cq.In()

	select {
	case s.addEventChan <- ch:
	case <-s.closing:
		close(ch)
		return cq.Out(), func() {}
	}

	cncl := func() {
		if ch == nil {
			return
		}
		select {
		case s.rmEventChan <- ch:
		case <-s.closing:
		}
		ch = nil
	}
	return cq.Out(), cncl
}

// publish delivers one event to the distribution goroutine. Events are
// dropped after Close.
func (s *Surface) publish(ev TileLoaded) {
	select {
	case s.inEvents <- ev:
	case <-s.closing:
	}
}

// distributeEvents copies each TileLoaded to every subscriber channel.
func (s *Surface) distributeEvents() {
	var outEventsChans []chan<- TileLoaded

	for {
		select {
		case event := <-s.inEvents:
			for _, ch := range outEventsChans {
				ch <- event
			}
		case ch := <-s.addEventChan:
			outEventsChans = append(outEventsChans, ch)
		case ch := <-s.rmEventChan:
			for i, ca := range outEventsChans {
				if ca == ch {
					outEventsChans[i] = outEventsChans[len(outEventsChans)-1]
					outEventsChans[len(outEventsChans)-1] = nil
					outEventsChans = outEventsChans[:len(outEventsChans)-1]
					close(ch)
					break
				}
			}
		case <-s.closing:
			for _, ch := range outEventsChans {
				close(ch)
			}
			return
		}
	}
}
