package infra

import (
	"container/heap"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task é um trabalho periódico do Scheduler.
//
// run recebe o instante em que a tarefa estava prevista e o instante real de execução.
// Devolve o próximo instante e se a tarefa deve voltar para a fila.
type Task struct {
	run   func(due, now time.Time) (next time.Time, again bool)
	due   time.Time
	index int // posição no heap; -1 fora dele
}

func NewTask(run func(due, now time.Time) (time.Time, bool)) *Task {
	return &Task{run: run, index: -1}
}

// Scheduler executa todas as tarefas em uma única goroutine, na ordem do próximo
// vencimento (min-heap). Uma tarefa nunca roda em paralelo com ela mesma.
//
// As funções das tarefas devem ser rápidas e não bloquear: elas atrasam todas as outras.
type Scheduler struct {
	mu    sync.Mutex
	tasks taskHeap
	wake  chan struct{}

	logger  *slog.Logger
	running atomic.Bool
	fired   atomic.Int64
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		wake:   make(chan struct{}, 1),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule coloca a tarefa na fila para at. Se ela já estiver na fila, só move o vencimento.
func (s *Scheduler) Schedule(t *Task, at time.Time) {
	s.mu.Lock()
	t.due = at
	if t.index >= 0 {
		heap.Fix(&s.tasks, t.index)
	} else {
		heap.Push(&s.tasks, t)
	}
	first := s.tasks[0] == t
	s.mu.Unlock()

	if first {
		s.notify()
	}
}

// Cancel tira a tarefa da fila. Devolve false se ela não estava lá.
func (s *Scheduler) Cancel(t *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&s.tasks, t.index)
	return true
}

// Len devolve quantas tarefas aguardam vencimento.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Fired devolve quantas execuções de tarefa já aconteceram.
func (s *Scheduler) Fired() int64 { return s.fired.Load() }

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run processa a fila até ctx encerrar. É bloqueante; use em uma goroutine (ou errgroup).
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scheduler already running")
	}
	defer s.running.Store(false)

	s.logger.InfoContext(ctx, "drain scheduler started")
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		t, wait := s.next(time.Now())
		if t != nil {
			s.fire(t)
			continue
		}
		if wait > 0 {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(context.Background(), "drain scheduler stopped", slog.Int("pending_tasks", s.Len()))
			return nil
		case <-s.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// next tira da fila a tarefa vencida, ou devolve quanto esperar (0 = fila vazia).
func (s *Scheduler) next(now time.Time) (*Task, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return nil, 0
	}
	top := s.tasks[0]
	if top.due.After(now) {
		return nil, top.due.Sub(now)
	}
	heap.Pop(&s.tasks)
	return top, 0
}

func (s *Scheduler) fire(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("drain task panicked", slog.Any("panic", r))
		}
	}()
	next, again := t.run(t.due, time.Now())
	s.fired.Add(1)
	if again {
		s.Schedule(t, next)
	}
}

type taskHeap []*Task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
