package infra

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatekeeper/middleware/ratelimit/domain"
)

// pendingRequest é uma requisição estacionada na fila, à espera do dreno.
// done tem buffer 1: quem sinaliza nunca bloqueia.
type pendingRequest struct {
	ex     domain.Exchange
	done   chan domain.Outcome
	bucket *leakyBucket
	elem   *list.Element // nil depois de sair da fila
}

type leakyBucket struct {
	mu    sync.Mutex
	queue *list.List
	task  *Task
	// scheduled indica que task está (ou está prestes a voltar) no Scheduler.
	scheduled   bool
	nextRelease time.Time
	lastSeen    time.Time
	evicted     bool
}

// LeakyBucket enfileira as requisições por identidade e as libera em ritmo constante
// (outFlowPerSec), suavizando rajadas. Fila cheia = rejeição imediata.
//
// O dreno não tem uma goroutine por identidade: cada bucket tem uma Task no Scheduler
// compartilhado, presente na fila só enquanto há requisições esperando.
type LeakyBucket struct {
	rule     domain.Rule
	cfg      domain.LeakyBucketConfig
	interval time.Duration
	handler  domain.RejectionHandler
	sched    *Scheduler
	buckets  *Store[*leakyBucket]
	opts     options
}

func NewLeakyBucket(h domain.RejectionHandler, rule domain.Rule, sched *Scheduler, opts ...Option) (*LeakyBucket, error) {
	cfg := rule.Config.LeakyBucket
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.ID, err)
	}
	if h == nil {
		return nil, fmt.Errorf("%w: rejection handler is required", domain.ErrInvalidConfig)
	}
	if sched == nil {
		return nil, fmt.Errorf("%w: leaky bucket requires a drain scheduler", domain.ErrInvalidConfig)
	}
	l := &LeakyBucket{
		rule:     rule,
		cfg:      cfg,
		interval: cfg.Interval(),
		handler:  h,
		sched:    sched,
		buckets:  NewStore[*leakyBucket](),
		opts:     buildOptions(opts),
	}
	return l, nil
}

func (l *LeakyBucket) Name() string      { return domain.AlgorithmLeakyBucket }
func (l *LeakyBucket) Rule() domain.Rule { return l.rule }

// Admit enfileira a requisição e suspende o chamador até o dreno liberá-la (Admitted).
// Com a fila cheia, aciona o RejectionHandler e devolve Rejected na hora.
// Se ctx encerrar antes da liberação, a entrada sai da fila e o resultado é Cancelled.
func (l *LeakyBucket) Admit(ctx context.Context, ex domain.Exchange) domain.Outcome {
	key := domain.CompositeKey(ex, l.rule.LimitBy)
	p := &pendingRequest{ex: ex, done: make(chan domain.Outcome, 1)}

	if !l.enqueue(key, p) {
		l.opts.logger.Debug("bucket full, dropping request",
			slog.String("rule", l.rule.ID),
			slog.String("key", key),
			slog.String("path", ex.Path()))
		l.handler.Handle(ex)
		return domain.Rejected
	}

	select {
	case out := <-p.done:
		return out
	case <-ctx.Done():
		if l.withdraw(p) {
			return domain.Cancelled
		}
		// o dreno chegou primeiro
		return <-p.done
	}
}

func (l *LeakyBucket) bucket(key string, now time.Time) *leakyBucket {
	b, _ := l.buckets.GetOrCreate(key, func() *leakyBucket {
		b := &leakyBucket{queue: list.New(), lastSeen: now}
		b.task = NewTask(func(due, now time.Time) (time.Time, bool) {
			return l.drain(b, due, now)
		})
		return b
	})
	return b
}

func (l *LeakyBucket) enqueue(key string, p *pendingRequest) bool {
	for {
		now := l.opts.now()
		b := l.bucket(key, now)

		b.mu.Lock()
		if b.evicted {
			b.mu.Unlock()
			continue
		}
		b.lastSeen = now
		if b.queue.Len() >= l.cfg.Capacity {
			b.mu.Unlock()
			return false
		}
		p.bucket = b
		p.elem = b.queue.PushBack(p)
		if !b.scheduled {
			b.scheduled = true
			due := now
			if b.nextRelease.After(due) {
				due = b.nextRelease
			}
			l.sched.Schedule(b.task, due)
		}
		b.mu.Unlock()
		return true
	}
}

// drain é a Task do bucket: libera no máximo uma requisição por execução, em ordem FIFO.
func (l *LeakyBucket) drain(b *leakyBucket, due, now time.Time) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	front := b.queue.Front()
	if front == nil {
		b.scheduled = false
		return time.Time{}, false
	}
	p := b.queue.Remove(front).(*pendingRequest)
	p.elem = nil
	p.done <- domain.Admitted

	next := due.Add(l.interval)
	if next.Before(now) {
		// atrasado mais de um intervalo: reancora em vez de recuperar ticks perdidos em rajada
		next = now.Add(l.interval)
	}
	b.nextRelease = next

	if b.queue.Len() == 0 {
		b.scheduled = false
		return time.Time{}, false
	}
	return next, true
}

// withdraw tira da fila uma entrada cujo chamador desistiu.
func (l *LeakyBucket) withdraw(p *pendingRequest) bool {
	b := p.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.elem == nil {
		return false
	}
	b.queue.Remove(p.elem)
	p.elem = nil
	return true
}

// Pending devolve quantas requisições aguardam na fila da chave composta.
func (l *LeakyBucket) Pending(key string) int {
	b, ok := l.buckets.Get(key)
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Len()
}

// Sweep remove buckets ociosos com fila vazia e sem dreno agendado.
func (l *LeakyBucket) Sweep(now time.Time) int {
	if l.opts.idleTTL <= 0 {
		return 0
	}
	return l.buckets.Sweep(func(_ string, b *leakyBucket) bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.scheduled || b.queue.Len() > 0 || now.Sub(b.lastSeen) < l.opts.idleTTL {
			return false
		}
		b.evicted = true
		return true
	})
}

func (l *LeakyBucket) Stats() StoreStats { return l.buckets.Stats() }
