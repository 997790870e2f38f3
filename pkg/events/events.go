// Package events is an optional pub/sub notifier announcing rule
// registry reloads and rule scanner completions to out-of-process
// tooling (the review TUI, an external dashboard). Nothing in the
// save pipeline blocks on it: a failed send is logged and otherwise
// ignored by savepipeline.PersistScanProposal. The nodemeta-scan
// command exits when -events-addr is set and the Publisher cannot be
// bound.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register all transports (tcp, inproc, ipc, ws) the way the
	// teacher's nng_transport.go does.
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/graphforge/nodemeta/pkg/logging"
)

// Topic names one of the closed set of events this package emits.
type Topic string

const (
	// TopicRegistryReloaded is published by
	// savepipeline.PersistScanProposal after a successful save of the
	// user rule layer (layer "user"); loading extension modules
	// publishes nothing.
	TopicRegistryReloaded Topic = "registry.reloaded"
	// TopicScannerProposal carries a scan's DiffReport tally when a
	// caller publishes it through PublishScannerProposal; the Rule
	// Scanner does not publish it itself.
	TopicScannerProposal Topic = "scanner.proposal"
)

const topicSeparator = 0x00

// RegistryReloadedPayload is the JSON body of a TopicRegistryReloaded
// event.
type RegistryReloadedPayload struct {
	Layer      string `json:"layer"`
	ClassCount int    `json:"class_count"`
}

// ScannerProposalPayload is the JSON body of a TopicScannerProposal
// event, mirroring scanner.DiffReport.
type ScannerProposalPayload struct {
	ClassesScanned   int  `json:"classes_scanned"`
	ClassesProposed  int  `json:"classes_proposed"`
	FieldsProposed   int  `json:"fields_proposed"`
	BaselineCacheHit bool `json:"baseline_cache_hit"`
}

// Publisher binds a PUB socket and broadcasts topic-tagged JSON
// events to any connected Subscriber.
type Publisher struct {
	sock   mangos.Socket
	logger logging.Logger
}

// NewPublisher binds a PUB socket at addr (e.g. "tcp://*:9093" or
// "inproc://nodemeta-events"). A nil logger discards log output.
func NewPublisher(addr string, logger logging.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("events: create pub socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("events: listen %s: %w", addr, err)
	}
	return &Publisher{sock: sock, logger: logger}, nil
}

// Publish marshals payload and sends it tagged with topic. Send
// deadlines are not set: PUB sockets drop rather than block when no
// subscriber is connected, which is the behavior an optional notifier
// wants.
func (p *Publisher) Publish(topic Topic, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal %s payload: %w", topic, err)
	}
	msg := make([]byte, 0, len(topic)+1+len(body))
	msg = append(msg, []byte(topic)...)
	msg = append(msg, topicSeparator)
	msg = append(msg, body...)

	if err := p.sock.Send(msg); err != nil {
		p.logger.Warn("events: publish failed", logging.String("topic", string(topic)), logging.Error(err))
		return fmt.Errorf("events: send %s: %w", topic, err)
	}
	return nil
}

// PublishRegistryReloaded is a typed convenience wrapper for
// TopicRegistryReloaded.
func (p *Publisher) PublishRegistryReloaded(layer string, classCount int) error {
	return p.Publish(TopicRegistryReloaded, RegistryReloadedPayload{Layer: layer, ClassCount: classCount})
}

// PublishScannerProposal is a typed convenience wrapper for
// TopicScannerProposal.
func (p *Publisher) PublishScannerProposal(payload ScannerProposalPayload) error {
	return p.Publish(TopicScannerProposal, payload)
}

// Close releases the underlying socket.
func (p *Publisher) Close() error {
	return p.sock.Close()
}

// Subscriber dials a Publisher's address and receives events for a
// fixed set of topics.
type Subscriber struct {
	sock mangos.Socket
}

// NewSubscriber dials addr and subscribes to topics. Subscribing to
// zero topics means receiving nothing, since mangos SUB sockets start
// with an empty subscription set.
func NewSubscriber(addr string, topics ...Topic) (*Subscriber, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("events: create sub socket: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("events: dial %s: %w", addr, err)
	}
	for _, t := range topics {
		prefix := append([]byte(t), topicSeparator)
		if err := sock.SetOption(mangos.OptionSubscribe, prefix); err != nil {
			sock.Close()
			return nil, fmt.Errorf("events: subscribe %s: %w", t, err)
		}
	}
	return &Subscriber{sock: sock}, nil
}

// SetRecvDeadline bounds how long Next blocks.
func (s *Subscriber) SetRecvDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionRecvDeadline, d)
}

// Next blocks for the next event matching this subscriber's topics.
func (s *Subscriber) Next() (Topic, json.RawMessage, error) {
	raw, err := s.sock.Recv()
	if err != nil {
		return "", nil, fmt.Errorf("events: receive: %w", err)
	}
	idx := bytes.IndexByte(raw, topicSeparator)
	if idx < 0 {
		return "", nil, fmt.Errorf("events: malformed message, no topic separator")
	}
	return Topic(raw[:idx]), json.RawMessage(raw[idx+1:]), nil
}

// Close releases the underlying socket.
func (s *Subscriber) Close() error {
	return s.sock.Close()
}
