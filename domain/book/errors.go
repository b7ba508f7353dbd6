package book

import "errors"

var (
	ErrInvalidPriceGranularity = errors.New("book: price is not a multiple of tick size")
	ErrPriceOutOfRange         = errors.New("book: price outside instrument bounds")
	ErrInvalidQuantity         = errors.New("book: quantity must be positive")
	ErrDuplicateOrderID        = errors.New("book: duplicate order id")
	ErrOrderNotFound           = errors.New("book: order not found")

	// ErrBookPoisoned means an internal invariant check failed. The book
	// refuses all further mutation until state is rebuilt from the log.
	ErrBookPoisoned = errors.New("book: invariant violation, mutation halted")
)

var errDesync = errors.New("book: ladder and index desynchronized")
