// internal/events/tee.go
package events

// Tee fans every event out to multiple publishers, typically the in-process
// Hub plus a RedisPublisher for other instances. Probe succeeds if any
// underlying publisher can still reach the identity.
type Tee struct {
	pubs []Publisher
}

// NewTee combines publishers into one.
func NewTee(pubs ...Publisher) *Tee {
	return &Tee{pubs: pubs}
}

func (t *Tee) Broadcast(roomID string, ev Event) {
	for _, p := range t.pubs {
		p.Broadcast(roomID, ev)
	}
}

func (t *Tee) Unicast(identity string, ev Event) {
	for _, p := range t.pubs {
		p.Unicast(identity, ev)
	}
}

func (t *Tee) Probe(identity string) error {
	err := error(ErrSubscriberGone)
	for _, p := range t.pubs {
		perr := p.Probe(identity)
		if perr == nil {
			return nil
		}
		err = perr
	}
	return err
}
