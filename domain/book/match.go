package book

type Outcome uint8

const (
	// Filled: the incoming order fully executed.
	Filled Outcome = iota
	// Rested: a remainder (or the whole order) now rests on the book.
	Rested
	// Killed: the unmatched remainder was discarded (Market/IOC), or the
	// order was refused whole (FOK short of full fill, PostOnly crossing).
	Killed
)

func (o Outcome) String() string {
	switch o {
	case Filled:
		return "filled"
	case Rested:
		return "rested"
	default:
		return "killed"
	}
}

// Plan is the complete effect of one incoming order, computed against a
// read-only view of the book. Nothing mutates until the caller has logged
// Events durably, so a failed append leaves the book untouched.
//
// Events holds exactly one maker event per fill, in fill order, followed
// by at most one Created event for a resting remainder.
type Plan struct {
	Taker   Incoming
	Outcome Outcome
	Reason  string
	Fills   []Fill
	Events  []Event
	Rested  int64
}

// PlanPlace validates an incoming order and computes its match plan.
func (b *Book) PlanPlace(in Incoming) (*Plan, error) {
	if b.poisoned {
		return nil, ErrBookPoisoned
	}
	if in.Qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if in.Type == Market {
		if in.Protect != 0 {
			if err := b.checkPrice(in.Protect); err != nil {
				return nil, err
			}
		}
	} else {
		if err := b.checkPrice(in.Price); err != nil {
			return nil, err
		}
	}
	if _, dup := b.index[in.ID]; dup {
		return nil, ErrDuplicateOrderID
	}

	plan := &Plan{Taker: in}

	if in.Type == PostOnly {
		if b.wouldCross(in.Side, in.Price) {
			plan.Outcome = Killed
			plan.Reason = "post-only would cross"
			return plan, nil
		}
	} else {
		limit, bounded := in.Price, true
		if in.Type == Market {
			limit, bounded = in.Protect, in.Protect != 0
		}
		b.planMatch(plan, limit, bounded)
	}

	var matched int64
	for _, f := range plan.Fills {
		matched += f.Qty
	}
	remaining := in.Qty - matched

	if in.Type == FOK && remaining > 0 {
		plan.Fills = nil
		plan.Events = nil
		plan.Outcome = Killed
		plan.Reason = "fill-or-kill short of full fill"
		return plan, nil
	}

	switch {
	case remaining == 0:
		plan.Outcome = Filled
	case in.Type == Limit || in.Type == PostOnly:
		plan.Events = append(plan.Events, Event{
			Kind: EventCreated,
			Order: Order{
				ID:    in.ID,
				Owner: in.Owner,
				Price: in.Price,
				Qty:   remaining,
				Side:  in.Side,
				Type:  in.Type,
			},
		})
		plan.Rested = remaining
		plan.Outcome = Rested
	default:
		plan.Outcome = Killed
		plan.Reason = "remainder discarded"
	}
	return plan, nil
}

// planMatch walks the opposite ladder best-to-worst and each level's
// chain head-to-tail, recording fills and the maker events they imply.
// The walk never revisits an order, so no scratch state is needed to
// keep it read-only.
func (b *Book) planMatch(plan *Plan, limit int64, bounded bool) {
	in := plan.Taker
	remaining := in.Qty

	b.side(in.Side.Opposite()).walk(func(lvl *priceLevel) bool {
		if bounded && !priceEligible(in.Side, limit, lvl.price) {
			return false
		}
		for s := lvl.head; s != nilSlot && remaining > 0; s = b.arena.at(s).next {
			rec := b.arena.at(s)
			fill := min(remaining, rec.qty)
			remaining -= fill
			plan.Fills = append(plan.Fills, Fill{
				TakerID:    in.ID,
				TakerOwner: in.Owner,
				MakerID:    rec.id,
				MakerOwner: rec.owner,
				Price:      lvl.price,
				Qty:        fill,
				TakerSide:  in.Side,
			})
			if fill == rec.qty {
				plan.Events = append(plan.Events, Event{Kind: EventDeleted, ID: rec.id})
			} else {
				plan.Events = append(plan.Events, Event{Kind: EventUpdated, ID: rec.id, Remaining: rec.qty - fill})
			}
		}
		return remaining > 0
	})
}

// priceEligible reports whether a taker bounded at limit may trade at price.
func priceEligible(taker Side, limit, price int64) bool {
	if taker == Bid {
		return price <= limit
	}
	return price >= limit
}

func (b *Book) wouldCross(side Side, price int64) bool {
	best, ok := b.side(side.Opposite()).bestPrice()
	return ok && priceEligible(side, price, best)
}
