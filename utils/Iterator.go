package utils

// Iterator walks a lazily produced sequence of values.
type Iterator[T any] interface {
	HasNext() bool
	Next() (T, error)
}
