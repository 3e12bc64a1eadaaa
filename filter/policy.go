package filter

import (
	"fmt"
	"strings"
)

// Tag is attached once to every simulated object before it enters the
// simulation and never changes afterwards.
type Tag struct {
	Category Category
	Interest Mask
}

func (t Tag) String() string {
	return t.Category.String() + "/" + t.Interest.String()
}

// Datum is the filter data stamped on each shape of a tagged object.
type Datum struct {
	Tag
	Trigger bool
}

type Outcome uint8

const (
	Ignore Outcome = iota
	Collide
	CollideAndNotify
)

func (o Outcome) String() string {
	switch o {
	case Ignore:
		return "ignore"
	case Collide:
		return "collide"
	case CollideAndNotify:
		return "collide+notify"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Decision is what the engine does with a candidate pair. Solid is false for
// trigger pairs, which overlap without contact response.
type Decision struct {
	Outcome Outcome
	Solid   bool
}

// Notify reports whether the pair must raise a notification.
func (d Decision) Notify() bool {
	return d.Outcome == CollideAndNotify
}

// Policy classifies a broad-phase candidate pair. Implementations must be
// pure: the result depends only on the two data.
type Policy interface {
	Classify(a, b Datum) Decision
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(a, b Datum) Decision

func (f PolicyFunc) Classify(a, b Datum) Decision { return f(a, b) }

var (
	// InterestPolicy notifies when either side is interested in the other.
	InterestPolicy Policy = PolicyFunc(Classify)
	// MutualPolicy notifies only when both sides are interested in each other.
	MutualPolicy Policy = PolicyFunc(ClassifyMutual)
)

// Classify applies the pair rules in priority order: triggers always notify
// without contact response; everything else collides, and is upgraded to
// notify when either tag's interest covers the other's category. Neither
// built-in policy returns Ignore; custom policies may, and the engine then
// drops the pair until it separates.
func Classify(a, b Datum) Decision {
	if a.Trigger || b.Trigger {
		return Decision{Outcome: CollideAndNotify}
	}
	d := Decision{Outcome: Collide, Solid: true}
	if a.Interest.Has(b.Category) || b.Interest.Has(a.Category) {
		d.Outcome = CollideAndNotify
	}
	return d
}

// ClassifyMutual is Classify with the interest test requiring both sides.
func ClassifyMutual(a, b Datum) Decision {
	d := Classify(a, b)
	if !d.Solid || d.Outcome != CollideAndNotify {
		return d
	}
	if !a.Interest.Has(b.Category) || !b.Interest.Has(a.Category) {
		d.Outcome = Collide
	}
	return d
}

// ParsePolicy resolves the configured policy name.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any", "either":
		return InterestPolicy, nil
	case "mutual", "both":
		return MutualPolicy, nil
	default:
		return nil, fmt.Errorf("filter: unknown policy %q", name)
	}
}
