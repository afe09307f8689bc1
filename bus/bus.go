// Package bus is the controller's internal publish/subscribe fabric. The
// scheduler's main loop is the single writer of pack state (spec.md §5);
// every other task — the display feed, the charger status line, an
// operator console — only ever observes it, so nothing downstream may hold
// a lock across a read. bus gives that observation a concrete shape: a
// topic-trie pub/sub with retained (latest-value-wins) delivery and a
// per-subscription bounded queue that drops the oldest pending message
// rather than blocking the publisher when the queue is full. A
// subscription opened with queue length 1 and fed only retained publishes
// is exactly the "single-slot overwriteable mailbox" spec.md §6 specifies
// for the display feed.
package bus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
)

const defaultQueueLen = 3

// Token is one path segment of a Topic; comparable values only (string and
// the fixed-width integer kinds are the intended use, anything else is
// rejected by T at construction time so a bad token fails fast instead of
// panicking deep inside the trie).
type Token any

// Topic is a path into the subscription trie, e.g. T("pack", "summary").
type Topic []Token

// T builds a Topic, panicking immediately if any token is not comparable
// (and therefore unusable as a map key inside the trie).
func T(tokens ...Token) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, int, int32, int64, uint, uint32, uint64, uintptr:
			// fine
		default:
			_ = map[Token]struct{}{tok: {}} // forces a panic on non-comparable tokens
		}
	}
	return Topic(tokens)
}

// Message is one published event. ReplyTo/ID support the request/reply
// helpers on Connection; most BMS publishers only ever use Topic/Payload.
type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
	ID       uint32
}

func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Subscription is a live subscription to a Topic pattern (which may contain
// wildcards). Channel() delivers messages; Unsubscribe tears it down.
type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Message
}

func ensureChild(n *node, t Token) *node {
	if n.children == nil {
		n.children = make(map[Token]*node)
	}
	if n.children[t] == nil {
		n.children[t] = &node{}
	}
	return n.children[t]
}

// Options configures a Bus. The zero value is not valid; use NewBus for
// the common case of default wildcards with a fixed queue length.
type Options struct {
	QueueLen       int
	SingleWildcard Token
	MultiWildcard  Token
}

// Bus owns the subscription trie and retained-message store.
type Bus struct {
	mu    sync.Mutex
	root  *node
	qLen  int
	sWild Token
	mWild Token
	idCtr atomic.Uint32
}

// NewBus returns a Bus with the standard "+"/"#" wildcard tokens and the
// given per-subscription queue length (values <= 0 fall back to 3).
func NewBus(queueLen int) *Bus {
	return NewBusWithOptions(Options{QueueLen: queueLen, SingleWildcard: "+", MultiWildcard: "#"})
}

func NewBusWithOptions(o Options) *Bus {
	if o.QueueLen <= 0 {
		o.QueueLen = defaultQueueLen
	}
	if o.SingleWildcard == nil {
		o.SingleWildcard = "+"
	}
	if o.MultiWildcard == nil {
		o.MultiWildcard = "#"
	}
	return &Bus{
		root:  &node{},
		qLen:  o.QueueLen,
		sWild: o.SingleWildcard,
		mWild: o.MultiWildcard,
	}
}

func (b *Bus) nextID() uint32 { return b.idCtr.Add(1) }

func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained, ID: b.nextID()}
}

func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	n := b.root
	for _, t := range topic {
		n = ensureChild(n, t)
	}
	n.subs = append(n.subs, sub)

	var retained []*Message
	b.collectRetainedLocked(b.root, topic, 0, &retained)
	b.mu.Unlock()

	for _, rm := range retained {
		b.tryDeliver(sub, rm)
	}
}

// Publish delivers msg to every matching subscriber. A Retained message
// with a nil Payload clears any previously retained message at that exact
// topic (a tombstone), matching MQTT's retained-message convention.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	var subs []*Subscription
	b.collectSubscribersLocked(b.root, msg.Topic, 0, &subs)

	if msg.Retained {
		if msg.Payload == nil {
			b.retainDeleteLocked(msg.Topic)
		} else {
			b.retainSetLocked(msg)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.tryDeliver(sub, msg)
	}
}

func trySend(ch chan *Message, m *Message) bool {
	select {
	case ch <- m:
		return true
	default:
		return false
	}
}

func drainOne(ch chan *Message) {
	select {
	case <-ch:
	default:
	}
}

// tryDeliver is latest-value-wins: a full queue drops its oldest entry
// rather than blocking the publisher (the main scheduler loop) or dropping
// the newest reading.
func (b *Bus) tryDeliver(sub *Subscription, msg *Message) {
	defer func() { _ = recover() }() // the channel may already be closed
	if trySend(sub.ch, msg) {
		return
	}
	drainOne(sub.ch)
	_ = trySend(sub.ch, msg)
}

func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, t := range topic {
		if n.children == nil {
			return
		}
		child := n.children[t]
		if child == nil {
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	b.pruneEmptyLocked(stack, topic)
}

func (b *Bus) pruneEmptyLocked(stack []*node, path []Token) {
	for i := len(path) - 1; i >= 0; i-- {
		parent := stack[i]
		key := path[i]
		child := parent.children[key]
		if child != nil && len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

func (b *Bus) collectSubscribersLocked(n *node, topic Topic, depth int, out *[]*Subscription) {
	if n == nil {
		return
	}
	if depth == len(topic) {
		*out = append(*out, n.subs...)
		if n.children != nil {
			if mw := n.children[b.mWild]; mw != nil {
				*out = append(*out, mw.subs...)
			}
		}
		return
	}
	tok := topic[depth]
	if n.children != nil {
		if child := n.children[tok]; child != nil {
			b.collectSubscribersLocked(child, topic, depth+1, out)
		}
		if sw := n.children[b.sWild]; sw != nil {
			b.collectSubscribersLocked(sw, topic, depth+1, out)
		}
		if mw := n.children[b.mWild]; mw != nil {
			*out = append(*out, mw.subs...)
		}
	}
}

func (b *Bus) retainSetLocked(msg *Message) {
	n := b.root
	for _, t := range msg.Topic {
		n = ensureChild(n, t)
	}
	n.retained = msg
}

func (b *Bus) retainDeleteLocked(topic Topic) {
	n := b.root
	var stack []*node
	for _, t := range topic {
		if n.children == nil {
			return
		}
		child := n.children[t]
		if child == nil {
			return
		}
		stack = append(stack, n)
		n = child
	}
	n.retained = nil
	b.pruneEmptyLocked(stack, topic)
}

func (b *Bus) collectRetainedLocked(n *node, pattern Topic, depth int, out *[]*Message) {
	if n == nil {
		return
	}
	if depth == len(pattern) {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	ptok := pattern[depth]
	switch ptok {
	case b.mWild:
		b.collectAllRetainedLocked(n, out)
	case b.sWild:
		for _, child := range n.children {
			b.collectRetainedLocked(child, pattern, depth+1, out)
		}
	default:
		if child := n.children[ptok]; child != nil {
			b.collectRetainedLocked(child, pattern, depth+1, out)
		}
	}
}

func (b *Bus) collectAllRetainedLocked(n *node, out *[]*Message) {
	if n == nil {
		return
	}
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, child := range n.children {
		b.collectAllRetainedLocked(child, out)
	}
}

// Connection is a named handle onto a Bus that tracks its own
// subscriptions so Disconnect can tear them all down at once.
type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan *Message, c.bus.qLen), bus: c.bus, conn: c}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	c.subs = removeSub(c.subs, sub)
	c.mu.Unlock()
	close(sub.ch)
}

func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
		close(sub.ch)
	}
}

func removeSub(list []*Subscription, target *Subscription) []*Subscription {
	for i, s := range list {
		if s == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Request publishes msg with a freshly generated ReplyTo topic and returns
// a subscription to it; RequestWait builds on it to wait for one reply.
func (c *Connection) Request(msg *Message) *Subscription {
	if len(msg.ReplyTo) == 0 {
		msg.ReplyTo = T(genID())
	}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)

	select {
	case m := <-sub.ch:
		if m == nil {
			return nil, errors.New("subscription closed")
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connection) Reply(to *Message, payload any, retained bool) {
	if len(to.ReplyTo) == 0 {
		return
	}
	c.Publish(&Message{Topic: to.ReplyTo, Payload: payload, Retained: retained, ID: c.bus.nextID()})
}
