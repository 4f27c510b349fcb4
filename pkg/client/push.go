package client

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"chatcache/pkg/logger"
	"chatcache/pkg/models"
)

// PushKind discriminates server-push payloads.
type PushKind string

const (
	PushFeedItems  PushKind = "feed_items"
	PushMessage    PushKind = "message"
	PushUser       PushKind = "user"
	PushDiscussion PushKind = "discussion"
)

// ErrQueueFull is returned by TryEnqueue when the push queue is at
// capacity; the transport may drop the push, the data arrives on the next
// fetch anyway.
var ErrQueueFull = errors.New("push queue full")

// push is one queued server push. Payload may be backed by a pooled
// buffer; the worker calls done after processing. released makes done
// idempotent and resets on every pool round-trip, so the struct stays
// safely copyable.
type push struct {
	Kind    PushKind
	Payload []byte
	Seq     uint64

	buf      *bytebufferpool.ByteBuffer
	released uint32
	q        *PushQueue
}

func (p *push) done() {
	if !atomic.CompareAndSwapUint32(&p.released, 0, 1) {
		return
	}
	if p.buf != nil {
		if cap(p.buf.B) <= p.q.maxPooled {
			bytebufferpool.Put(p.buf)
		}
		p.buf = nil
	}
	p.Payload = nil
	pushPool.Put(p)
}

var pushPool = sync.Pool{New: func() any { return &push{} }}

// PushQueue is a bounded in-memory queue between the push transport and
// the store. Safe for concurrent producers; one worker drains it.
type PushQueue struct {
	ch        chan *push
	capacity  int
	maxPooled int
	seq       uint64
	dropped   uint64
}

// NewPushQueue creates a bounded queue. Non-positive arguments fall back
// to defaults (4096 items, 256 KiB pooled buffer cap).
func NewPushQueue(capacity, maxPooledBufferBytes int) *PushQueue {
	if capacity <= 0 {
		capacity = 4096
	}
	if maxPooledBufferBytes <= 0 {
		maxPooledBufferBytes = 256 * 1024
	}
	return &PushQueue{
		ch:        make(chan *push, capacity),
		capacity:  capacity,
		maxPooled: maxPooledBufferBytes,
	}
}

// TryEnqueue copies payload into a pooled buffer and enqueues it without
// blocking. Returns ErrQueueFull when saturated.
func (q *PushQueue) TryEnqueue(kind PushKind, payload []byte) error {
	p := pushPool.Get().(*push)
	p.Kind = kind
	p.Payload = nil
	p.Seq = atomic.AddUint64(&q.seq, 1)
	p.buf = nil
	atomic.StoreUint32(&p.released, 0)
	p.q = q

	if len(payload) > 0 {
		bb := bytebufferpool.Get()
		bb.B = append(bb.B[:0], payload...)
		p.buf = bb
		p.Payload = bb.B[:len(payload)]
	}

	select {
	case q.ch <- p:
		return nil
	default:
		p.done()
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Len returns the current queue depth.
func (q *PushQueue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *PushQueue) Cap() int { return q.capacity }

// Dropped returns how many pushes were rejected on a full queue.
func (q *PushQueue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }

// RunPushWorker drains the push queue into the store until stop closes.
// Feed-item pushes destined for the active feed are staged, never applied
// directly: live updates must not disturb an in-progress read session.
// Entity pushes (message/user/discussion) merge through normal
// transactions.
func (c *Client) RunPushWorker(stop <-chan struct{}) {
	for {
		select {
		case p, ok := <-c.Pushes.ch:
			if !ok {
				return
			}
			c.handlePush(p)
			p.done()
		case <-stop:
			return
		}
	}
}

func (c *Client) handlePush(p *push) {
	switch p.Kind {
	case PushFeedItems:
		var items []models.FeedItem
		if err := json.Unmarshal(p.Payload, &items); err != nil {
			logger.Warn("push_decode_failed", "kind", p.Kind, "error", err)
			return
		}
		c.store.StageFeedItems(items)
	case PushMessage:
		var m models.Message
		if err := json.Unmarshal(p.Payload, &m); err != nil {
			logger.Warn("push_decode_failed", "kind", p.Kind, "error", err)
			return
		}
		c.store.AddMessage(m)
	case PushUser:
		var u models.User
		if err := json.Unmarshal(p.Payload, &u); err != nil {
			logger.Warn("push_decode_failed", "kind", p.Kind, "error", err)
			return
		}
		c.store.AddUser(u)
	case PushDiscussion:
		var d models.Discussion
		if err := json.Unmarshal(p.Payload, &d); err != nil {
			logger.Warn("push_decode_failed", "kind", p.Kind, "error", err)
			return
		}
		c.store.AddDiscussion(d)
	default:
		logger.Warn("push_unknown_kind", "kind", p.Kind)
	}
}

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
