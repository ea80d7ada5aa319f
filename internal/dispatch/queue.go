package dispatch

import (
	"sync"
	"time"

	"github.com/ghetolay/WowBot/internal/logger"
)

const (
	laneBuffer      = 256
	laneIdleTimeout = time.Minute
)

// Queue serializes work per key. Work for the same key runs in enqueue
// order on a dedicated goroutine; different keys run concurrently.
type Queue struct {
	mu    sync.Mutex
	lanes map[string]*lane
	idle  time.Duration
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{lanes: make(map[string]*lane), idle: laneIdleTimeout}
}

type lane struct {
	key    string
	events chan func()
}

// Enqueue schedules fn on the lane for key.
//
// Enqueue never blocks; when a lane is saturated the work is dropped.
func (q *Queue) Enqueue(key string, fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.lanes[key]
	if !ok {
		l = &lane{key: key, events: make(chan func(), laneBuffer)}
		q.lanes[key] = l
		go q.loop(l)
	}

	select {
	case l.events <- fn:
	default:
		logger.Warnf("[queue] lane %s full; dropping event", key)
	}
}

// Lanes returns the number of live lanes.
func (q *Queue) Lanes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

func (q *Queue) loop(l *lane) {
	timer := time.NewTimer(q.idle)
	defer timer.Stop()
	for {
		select {
		case fn := <-l.events:
			run(l.key, fn)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(q.idle)
		case <-timer.C:
			// Enqueue sends under q.mu, so an empty channel here cannot
			// race with a pending send.
			q.mu.Lock()
			if len(l.events) == 0 {
				delete(q.lanes, l.key)
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			timer.Reset(q.idle)
		}
	}
}

func run(key string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[queue] lane %s: panic: %v", key, r)
		}
	}()
	fn()
}
