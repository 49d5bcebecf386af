package session

import (
	"context"
	"sync"

	"onboard/pkg/platform/audit"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func newRecordingAuditor() *recordingAuditor {
	return &recordingAuditor{}
}

func (a *recordingAuditor) Emit(_ context.Context, event audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.events))
	for i, e := range a.events {
		out[i] = e.Action
	}
	return out
}
