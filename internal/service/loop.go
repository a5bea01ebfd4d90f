package service

import "sync"

// eventLoop runs posted closures one at a time on a single goroutine.
// The queue is unbounded so posting never blocks, even from a closure.
type eventLoop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	signal  chan struct{}
	done    chan struct{}
}

func newEventLoop() *eventLoop {
	l := &eventLoop{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// post enqueues fn. It reports false once the loop has stopped.
func (l *eventLoop) post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// call runs fn on the loop and waits for it. It reports false if the loop
// stopped before fn ran.
func (l *eventLoop) call(fn func()) bool {
	ran := make(chan struct{})
	if !l.post(func() {
		fn()
		close(ran)
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// stop drops pending closures and waits for the running one to return.
func (l *eventLoop) stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *eventLoop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			return
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			<-l.signal
			continue
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}
