package internal

import (
	"context"
	"sync"
)

// testUI is a no-op UIManager for tests.
type testUI struct{}

func (testUI) NewProgressBar(total int, description string) ProgressBar { return testBar{} }
func (testUI) Verbose(format string, args ...interface{})               {}
func (testUI) Printf(format string, args ...interface{})                {}
func (testUI) Println(args ...interface{})                              {}

type testBar struct{}

func (testBar) Set(current int)              {}
func (testBar) Add(delta int)                {}
func (testBar) Describe(description string)  {}
func (testBar) Finish()                      {}

// fakeProvider scripts a backend's responses per call.
type fakeProvider struct {
	name string
	fn   func(call int, audioPath string) (ProviderResult, error)

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Transcribe(ctx context.Context, audioPath, language string) (ProviderResult, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	return p.fn(call, audioPath)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
