package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Projections guarda leituras derivadas do ledger (catálogo, estatísticas,
// portfólios). Toda mutação confirmada chama Invalidate, que avança a
// geração: entradas de gerações anteriores nunca mais são lidas e saem
// da memória pelo TTL ou por pressão de custo.
type Projections struct {
	c   *ristretto.Cache
	ttl time.Duration
	gen atomic.Uint64
}

func New(maxCost int64, ttl time.Duration) (*Projections, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao criar cache: %w", err)
	}
	return &Projections{c: c, ttl: ttl}, nil
}

func key(gen uint64, k Key) string {
	return fmt.Sprintf("%d/%s", gen, k)
}

// Generation deve ser lida antes de consultar o banco; a projeção
// calculada é gravada com SetAt nessa geração. Se uma mutação terminar no
// meio da consulta, o valor fica numa geração já descartada.
func (p *Projections) Generation() uint64 { return p.gen.Load() }

func (p *Projections) Get(k Key) (any, bool) { return p.c.Get(key(p.gen.Load(), k)) }

func (p *Projections) SetAt(gen uint64, k Key, val any) {
	p.c.SetWithTTL(key(gen, k), val, 1, p.ttl)
}

// Invalidate descarta logicamente todas as projeções.
func (p *Projections) Invalidate() { p.gen.Add(1) }

// Wait bloqueia até que as escritas pendentes sejam aplicadas.
func (p *Projections) Wait() { p.c.Wait() }

func (p *Projections) Close() { p.c.Close() }

// Lookup lê uma projeção tipada.
func Lookup[T any](p *Projections, k Key) (T, bool) {
	var zero T
	if p == nil {
		return zero, false
	}
	v, ok := p.Get(k)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Store grava uma projeção calculada na geração gen; um cache nil é ignorado.
func Store[T any](p *Projections, gen uint64, k Key, v T) {
	if p == nil {
		return
	}
	p.SetAt(gen, k, v)
}

// Generation tolera um cache nil.
func Generation(p *Projections) uint64 {
	if p == nil {
		return 0
	}
	return p.Generation()
}
