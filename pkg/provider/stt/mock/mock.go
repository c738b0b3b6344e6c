// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed scripted transcripts to consumers and to verify which
// requests were made.
//
// Example:
//
//	p := &mock.Provider{
//	    Results: []mock.Result{{Transcript: stt.Transcript{Text: "a burger"}}},
//	}
//	t, _ := p.Transcribe(ctx, stt.Request{Clip: clip})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/ordervox/pkg/provider/stt"
)

// Result is one scripted Transcribe outcome.
type Result struct {
	Transcript stt.Transcript
	Err        error
}

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is consumed front to back, one per call. Once empty, Default is
	// returned.
	Results []Result

	// Default is returned after Results is exhausted.
	Default Result

	// Block makes every call wait until its context is done.
	Block bool

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	if p.Block {
		p.mu.Unlock()
		<-ctx.Done()
		return stt.Transcript{}, ctx.Err()
	}
	r := p.Default
	if len(p.Results) > 0 {
		r = p.Results[0]
		p.Results = p.Results[1:]
	}
	p.mu.Unlock()
	return r.Transcript, r.Err
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
