package transport

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/smithy-go"

	"github.com/drblury/queueflow/internal/runtime/ids"
)

const defaultVisibilityTimeout = 30 * time.Second

// Operations accepted by Memory.FailNext.
const (
	MemorySend    = "send"
	MemoryReceive = "receive"
	MemoryDelete  = "delete"
)

var now = time.Now

// Memory is an in-process Transport with SQS-like visibility semantics. It is
// meant for tests and local development.
type Memory struct {
	mu      sync.Mutex
	queues  map[string]*memoryQueue
	strict  bool
	faults  map[string][]error
	sent    []SendInput
	deletes int
	// notify is closed and replaced whenever a message becomes available.
	notify chan struct{}
}

type memoryQueue struct {
	messages []*memoryMessage
}

type memoryMessage struct {
	msg       Message
	visibleAt time.Time
	receipts  int
}

// MemoryOption configures a Memory transport.
type MemoryOption func(*Memory)

// WithStrictQueues makes calls against queues that were not created with
// CreateQueue fail with a queue-does-not-exist error.
func WithStrictQueues() MemoryOption {
	return func(m *Memory) { m.strict = true }
}

// NewMemory returns an empty in-memory transport.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		queues: make(map[string]*memoryQueue),
		faults: make(map[string][]error),
		notify: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateQueue registers a queue URL.
func (m *Memory) CreateQueue(queueURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[queueURL]; !ok {
		m.queues[queueURL] = &memoryQueue{}
	}
}

// FailNext makes the next call of op return err. Calls queue up in order.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], err)
}

// Sent returns every SendInput accepted so far, in order.
func (m *Memory) Sent() []SendInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendInput, len(m.sent))
	for i, in := range m.sent {
		in.Attributes = in.Attributes.Clone()
		out[i] = in
	}
	return out
}

// SentTo returns the SendInputs addressed to queueURL.
func (m *Memory) SentTo(queueURL string) []SendInput {
	var out []SendInput
	for _, in := range m.Sent() {
		if in.QueueURL == queueURL {
			out = append(out, in)
		}
	}
	return out
}

// Depth returns how many undeleted messages queueURL holds, in flight or not.
func (m *Memory) Depth(queueURL string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queueURL]
	if !ok {
		return 0
	}
	return len(q.messages)
}

// Deletes returns how many messages were deleted.
func (m *Memory) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

// QueueURLs returns the known queue URLs, sorted.
func (m *Memory) QueueURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make([]string, 0, len(m.queues))
	for u := range m.queues {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

func (m *Memory) Send(ctx context.Context, in SendInput) (SendOutput, error) {
	if err := ctx.Err(); err != nil {
		return SendOutput{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFault(MemorySend); err != nil {
		return SendOutput{}, err
	}
	q, err := m.queue(in.QueueURL)
	if err != nil {
		return SendOutput{}, err
	}

	in.Attributes = in.Attributes.Clone()
	m.sent = append(m.sent, in)

	id := ids.NewMessageID()
	q.messages = append(q.messages, &memoryMessage{
		msg: Message{
			ID:         id,
			Body:       in.Body,
			Attributes: in.Attributes.Clone(),
		},
		visibleAt: now().Add(time.Duration(in.DelaySeconds) * time.Second),
	})
	m.broadcast()
	return SendOutput{MessageID: id}, nil
}

func (m *Memory) Receive(ctx context.Context, in ReceiveInput) ([]Message, error) {
	var deadline <-chan time.Time
	if in.WaitTime > 0 {
		timer := time.NewTimer(in.WaitTime)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		m.mu.Lock()
		if err := m.takeFault(MemoryReceive); err != nil {
			m.mu.Unlock()
			return nil, err
		}
		q, err := m.queue(in.QueueURL)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		batch := m.take(q, in)
		wake := m.notify
		m.mu.Unlock()

		if len(batch) > 0 || deadline == nil {
			return batch, nil
		}

		// Delayed or in-flight messages become visible without a send, so
		// poll at a coarse interval besides waiting on new sends.
		tick := time.NewTimer(50 * time.Millisecond)
		select {
		case <-ctx.Done():
			tick.Stop()
			return nil, ctx.Err()
		case <-deadline:
			tick.Stop()
			return nil, nil
		case <-wake:
		case <-tick.C:
		}
		tick.Stop()
	}
}

func (m *Memory) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFault(MemoryDelete); err != nil {
		return err
	}
	q, err := m.queue(queueURL)
	if err != nil {
		return err
	}
	for i, mm := range q.messages {
		if mm.msg.ReceiptHandle == receiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			m.deletes++
			return nil
		}
	}
	return &smithy.GenericAPIError{
		Code:    "ReceiptHandleIsInvalid",
		Message: fmt.Sprintf("receipt handle %q is not valid for %s", receiptHandle, queueURL),
	}
}

func (m *Memory) take(q *memoryQueue, in ReceiveInput) []Message {
	limit := int(clampBatch(in.MaxMessages))
	visibility := in.VisibilityTimeout
	if visibility <= 0 {
		visibility = defaultVisibilityTimeout
	}

	current := now()
	var batch []Message
	for _, mm := range q.messages {
		if len(batch) == limit {
			break
		}
		if mm.visibleAt.After(current) {
			continue
		}
		mm.receipts++
		mm.visibleAt = current.Add(visibility)
		mm.msg.ReceiptHandle = mm.msg.ID + "-" + strconv.Itoa(mm.receipts)
		mm.msg.ReceiveCount = mm.receipts

		out := mm.msg
		out.Attributes = mm.msg.Attributes.Clone()
		batch = append(batch, out)
	}
	return batch
}

func (m *Memory) queue(queueURL string) (*memoryQueue, error) {
	q, ok := m.queues[queueURL]
	if ok {
		return q, nil
	}
	if m.strict {
		return nil, &smithy.GenericAPIError{
			Code:    "AWS.SimpleQueueService.NonExistentQueue",
			Message: "the specified queue does not exist: " + queueURL,
		}
	}
	q = &memoryQueue{}
	m.queues[queueURL] = q
	return q, nil
}

func (m *Memory) takeFault(op string) error {
	pending := m.faults[op]
	if len(pending) == 0 {
		return nil
	}
	err := pending[0]
	m.faults[op] = pending[1:]
	return err
}

func (m *Memory) broadcast() {
	close(m.notify)
	m.notify = make(chan struct{})
}

var _ Transport = (*Memory)(nil)
var _ Transport = (*SQS)(nil)

// Messages returns copies of the undeleted messages in queueURL, in flight
// or not, oldest first.
func (m *Memory) Messages(queueURL string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queueURL]
	if !ok {
		return nil
	}
	out := make([]Message, 0, len(q.messages))
	for _, mm := range q.messages {
		msg := mm.msg
		msg.Attributes = mm.msg.Attributes.Clone()
		out = append(out, msg)
	}
	return out
}
