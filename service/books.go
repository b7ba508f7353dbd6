package service

// Books routes by symbol. Engines are registered once at startup and the
// set never changes while the process runs, so lookups are lock-free.
type Books struct {
	engines map[string]*Engine
}

func NewBooks() *Books {
	return &Books{engines: make(map[string]*Engine)}
}

func (b *Books) Add(e *Engine) {
	b.engines[e.Symbol()] = e
}

func (b *Books) Get(symbol string) (*Engine, bool) {
	e, ok := b.engines[symbol]
	return e, ok
}

func (b *Books) Each(fn func(*Engine)) {
	for _, e := range b.engines {
		fn(e)
	}
}
