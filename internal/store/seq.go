package store

import "sync"

// seqGenerator hands out increasing ids per named sequence.
type seqGenerator struct {
	mu    sync.Mutex
	perID map[string]int64
}

func newSeqGenerator() *seqGenerator {
	return &seqGenerator{perID: make(map[string]int64)}
}

func (g *seqGenerator) next(name string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.perID[name]++
	return g.perID[name]
}

// advance makes sure the next id of name is greater than id.
func (g *seqGenerator) advance(name string, id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id > g.perID[name] {
		g.perID[name] = id
	}
}
