package controller

import (
	"strings"
	"sync"
)

// transcriptAccumulator collects partial and final transcript fragments for
// one gesture cycle. It is reset on every start press.
type transcriptAccumulator struct {
	mu          sync.Mutex
	finals      []string
	lastPartial string
}

func (a *transcriptAccumulator) AddPartial(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	a.mu.Lock()
	a.lastPartial = trimmed
	a.mu.Unlock()
}

func (a *transcriptAccumulator) AddFinal(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	a.mu.Lock()
	a.finals = append(a.finals, trimmed)
	a.lastPartial = ""
	a.mu.Unlock()
}

// Text returns the usable transcript so far: the joined finals, or the last
// partial when no final ever arrived. Empty means no usable transcript.
func (a *transcriptAccumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	if joined == "" {
		return a.lastPartial
	}
	if a.lastPartial != "" {
		return joined + " " + a.lastPartial
	}
	return joined
}

func (a *transcriptAccumulator) Reset() {
	a.mu.Lock()
	a.finals = nil
	a.lastPartial = ""
	a.mu.Unlock()
}
