package book

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

type OrderType uint8

const (
	Limit OrderType = iota
	Market
	IOC
	FOK
	PostOnly
)

// Order is the read-only view of a resting order. Seq is the insertion
// sequence used for FIFO tie-breaking within a price level.
type Order struct {
	ID    uint64
	Owner uint64
	Price int64
	Qty   int64
	Seq   uint64
	Side  Side
	Type  OrderType
}

// Incoming is a decoded order handed in by the upstream codec. The book
// re-checks only domain invariants: tick granularity, price bounds,
// quantity, duplicate id.
//
// Protect optionally bounds a Market order: a ceiling for buys, a floor
// for sells. Zero means unbounded.
type Incoming struct {
	ID      uint64
	Owner   uint64
	Side    Side
	Type    OrderType
	Price   int64
	Qty     int64
	Protect int64
}

// Fill is one execution. The resting side is the maker, the incoming
// side the taker; both owners are exposed so self-match policy can be
// applied by the caller.
type Fill struct {
	TakerID    uint64
	TakerOwner uint64
	MakerID    uint64
	MakerOwner uint64
	Price      int64
	Qty        int64
	TakerSide  Side
	Seq        uint64
}
