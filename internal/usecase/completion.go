package usecase

import (
	"sync"
	"time"

	"gazecue/internal/ports"
)

// completionNotifier tells the host that a completed session is ready for
// review, after a short settle delay.
type completionNotifier struct {
	events  ports.EventSink
	delay   time.Duration
	pending *sync.WaitGroup
}

func newCompletionNotifier(events ports.EventSink, delay time.Duration, pending *sync.WaitGroup) completionNotifier {
	return completionNotifier{events: events, delay: delay, pending: pending}
}

func (n completionNotifier) Notify(studentID string) {
	n.pending.Add(1)
	time.AfterFunc(n.delay, func() {
		defer n.pending.Done()
		n.events.SessionComplete(studentID)
	})
}
