package engine

import (
	"context"
	"sync"
)

// eventQueue 无界FIFO，多生产者单消费者
//
// push 永不阻塞：消费者在处理K线时提交订单，执行器回调会再次 push。
type eventQueue struct {
	mu     sync.Mutex
	items  []queueItem
	notify chan struct{}
	closed bool
}

type queueItem struct {
	fn  func(ctx context.Context)
	bar bool // K线处理，停止后不再执行
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

// push 压入订单事件，队列关闭后返回 false
func (q *eventQueue) push(fn func(ctx context.Context)) bool {
	return q.add(queueItem{fn: fn})
}

// pushBar 压入K线处理
func (q *eventQueue) pushBar(fn func(ctx context.Context)) bool {
	return q.add(queueItem{fn: fn, bar: true})
}

func (q *eventQueue) add(item queueItem) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.wake()
	return true
}

// pop 阻塞直到有事件；队列关闭且为空或 ctx 结束时返回 false
func (q *eventQueue) pop(ctx context.Context) (func(ctx context.Context), bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = queueItem{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item.fn, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.notify:
		}
	}
}

// close 拒绝新事件，已入队的仍可取出
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// drain 关闭并取出剩余的订单事件，未处理的K线被丢弃
func (q *eventQueue) drain() []func(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true

	var events []func(ctx context.Context)
	for _, item := range q.items {
		if !item.bar {
			events = append(events, item.fn)
		}
	}
	q.items = nil
	return events
}

func (q *eventQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
