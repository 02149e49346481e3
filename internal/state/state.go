// Package state описывает результат асинхронной загрузки: idle, loading, success или error.
package state

import (
	"encoding/json"
	"fmt"
)

// Kind вариант состояния
type Kind string

const (
	KindIdle    Kind = "idle"
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// State результат загрузки значения типа T. Нулевое значение равно Idle.
type State[T any] struct {
	kind Kind
	data T
	err  error
}

// Idle начальное состояние до первой загрузки
func Idle[T any]() State[T] { return State[T]{kind: KindIdle} }

// Loading загрузка выполняется
func Loading[T any]() State[T] { return State[T]{kind: KindLoading} }

// Success загрузка завершилась значением
func Success[T any](data T) State[T] { return State[T]{kind: KindSuccess, data: data} }

// Failure загрузка завершилась ошибкой
func Failure[T any](err error) State[T] {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	return State[T]{kind: KindError, err: err}
}

// Kind возвращает вариант состояния
func (s State[T]) Kind() Kind {
	if s.kind == "" {
		return KindIdle
	}
	return s.kind
}

// Data возвращает значение, если состояние Success
func (s State[T]) Data() (T, bool) {
	return s.data, s.Kind() == KindSuccess
}

// Err возвращает ошибку, если состояние Error
func (s State[T]) Err() error {
	if s.Kind() != KindError {
		return nil
	}
	return s.err
}

// Match вызывает ровно один обработчик по варианту состояния. Все четыре обязательны.
func Match[T, R any](s State[T], onIdle func() R, onLoading func() R, onSuccess func(T) R, onError func(error) R) R {
	switch s.Kind() {
	case KindLoading:
		return onLoading()
	case KindSuccess:
		return onSuccess(s.data)
	case KindError:
		return onError(s.err)
	default:
		return onIdle()
	}
}

type wireState[T any] struct {
	State Kind   `json:"state"`
	Data  *T     `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// MarshalJSON кодирует состояние как {"state": ..., "data"|"error": ...}
func (s State[T]) MarshalJSON() ([]byte, error) {
	w := wireState[T]{State: s.Kind()}
	switch s.Kind() {
	case KindSuccess:
		data := s.data
		w.Data = &data
	case KindError:
		w.Error = s.err.Error()
	}
	return json.Marshal(w)
}
