package progress

import (
	"sync"

	"github.com/cxxls/clangd-indexcore/internal/lspclient"
)

// tokenKey normalizes a $/progress token (clangd uses both strings and
// integers) into a comparable map key.
func tokenKey(token interface{}) interface{} {
	switch v := token.(type) {
	case float64:
		return v
	default:
		return v
	}
}

// LSPSource correlates window/workDoneProgress/create with the $/progress
// notifications that follow, and turns the progress reports of every
// created token into Overall* events on out. Report titles are not
// inspected.
type LSPSource struct {
	out chan<- Event

	mu     sync.Mutex
	tokens map[interface{}]bool // tokens created and not yet ended
}

// NewLSPSource registers its handlers on client and forwards translated
// events onto out. out is never closed by LSPSource.
func NewLSPSource(client *lspclient.Client, out chan<- Event) *LSPSource {
	s := &LSPSource{out: out, tokens: make(map[interface{}]bool)}
	client.RegisterWorkDoneProgressCreate(s.onCreate)
	client.RegisterProgressHandler(s.onProgress)
	return s
}

func (s *LSPSource) onCreate(token interface{}) {
	// Every created token is tracked as indexing progress until its
	// "end" report arrives.
	s.mu.Lock()
	s.tokens[tokenKey(token)] = true
	s.mu.Unlock()
}

func (s *LSPSource) onProgress(p lspclient.ProgressParams) {
	key := tokenKey(p.Token)

	s.mu.Lock()
	known := s.tokens[key]
	s.mu.Unlock()
	if !known {
		return
	}

	switch p.Value.Kind {
	case "begin":
		s.out <- Event{Kind: OverallIndexingStarted}
		if p.Value.Percentage != nil {
			s.out <- Event{Kind: OverallProgress, Percent: float32(*p.Value.Percentage) / 100, Message: p.Value.Message}
		}
	case "report":
		pct := float32(0)
		if p.Value.Percentage != nil {
			pct = float32(*p.Value.Percentage) / 100
		}
		s.out <- Event{Kind: OverallProgress, Percent: pct, Message: p.Value.Message}
	case "end":
		s.out <- Event{Kind: OverallCompleted}
		s.mu.Lock()
		delete(s.tokens, key)
		s.mu.Unlock()
	}
}
