package tablegateway

import (
	"strings"
	"sync"

	"holdem-server/internal/game/viewmodel"
)

// Event is one broadcast about a table. State is already sanitized for the
// topic's audience.
type Event struct {
	Type    string               `json:"type"`
	TableID string               `json:"table_id"`
	Seq     uint64               `json:"seq"`
	State   *viewmodel.TableView `json:"state,omitempty"`
	Data    any                  `json:"data,omitempty"`
}

// Publisher delivers events to whoever listens on a topic. Delivery is best
// effort; the coordinator logs failures and carries on.
type Publisher interface {
	Publish(topic string, ev Event) error
}

func PublicTopic(tableID string) string {
	return "table." + tableID
}

func PlayerTopic(tableID, playerID string) string {
	return "table." + tableID + ".player." + playerID
}

// TopicPublisher keeps an EventBuffer per topic in process.
type TopicPublisher struct {
	mu      sync.Mutex
	size    int
	buffers map[string]*EventBuffer
}

func NewTopicPublisher(bufferSize int) *TopicPublisher {
	return &TopicPublisher{size: bufferSize, buffers: map[string]*EventBuffer{}}
}

func (p *TopicPublisher) Publish(topic string, ev Event) error {
	p.Buffer(topic).Append(ev.Type, topic, ev)
	return nil
}

// Buffer returns the topic's buffer, creating it on first use so subscribers
// may attach before anything is published.
func (p *TopicPublisher) Buffer(topic string) *EventBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf, ok := p.buffers[topic]
	if !ok {
		buf = NewEventBuffer(p.size)
		p.buffers[topic] = buf
	}
	return buf
}

// CloseTable closes every buffer belonging to tableID.
func (p *TopicPublisher) CloseTable(tableID string) {
	prefix := PublicTopic(tableID)
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, buf := range p.buffers {
		if topic == prefix || strings.HasPrefix(topic, prefix+".") {
			buf.Close()
			delete(p.buffers, topic)
		}
	}
}

// Sequencer hands out per-table increasing numbers for ordering broadcasts.
// It is in-memory only; numbering restarts with the process.
type Sequencer struct {
	mu   sync.Mutex
	last map[string]uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{last: map[string]uint64{}}
}

func (s *Sequencer) Next(tableID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[tableID]++
	return s.last[tableID]
}

func (s *Sequencer) Current(tableID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[tableID]
}
