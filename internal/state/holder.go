package state

import (
	"context"
	"sync"
)

// LoadFunc загружает значение; должна уважать отмену ctx.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Holder держит текущее состояние одного логического запроса.
// Reload отменяет незавершенную загрузку; результат отмененной загрузки отбрасывается.
type Holder[T any] struct {
	load     LoadFunc[T]
	onChange func(State[T])

	mu      sync.Mutex
	current State[T]
	gen     uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewHolder создает holder. onChange вызывается последовательно при каждой смене состояния
// и не должен обращаться к самому holder.
func NewHolder[T any](load LoadFunc[T], onChange func(State[T])) *Holder[T] {
	return &Holder[T]{
		load:     load,
		onChange: onChange,
		current:  Idle[T](),
	}
}

// Current возвращает последнее состояние
func (h *Holder[T]) Current() State[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Reload запускает новую загрузку, отменяя предыдущую.
func (h *Holder[T]) Reload(parent context.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.cancel != nil {
		h.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	h.gen++
	gen := h.gen
	h.cancel = cancel
	h.setLocked(Loading[T]())
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		defer cancel()

		data, err := h.load(ctx)

		h.mu.Lock()
		defer h.mu.Unlock()
		if gen != h.gen || h.closed {
			return
		}
		if err != nil {
			h.setLocked(Failure[T](err))
			return
		}
		h.setLocked(Success(data))
	}()
}

// Close отменяет текущую загрузку и ждет завершения горутин. Повторный вызов безопасен.
func (h *Holder[T]) Close() {
	h.mu.Lock()
	h.closed = true
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Holder[T]) setLocked(s State[T]) {
	h.current = s
	if h.onChange != nil {
		h.onChange(s)
	}
}
