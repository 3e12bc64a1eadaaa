package filter

import "testing"

func datum(c Category, interest ...Category) Datum {
	return Datum{Tag: Tag{Category: c, Interest: MaskOf(interest...)}}
}

func trigger(d Datum) Datum {
	d.Trigger = true
	return d
}

func TestClassifyRules(t *testing.T) {
	box := datum(CategoryBox, CategoryBox, CategoryFloor)
	floor := datum(CategoryFloor, CategoryBox)
	char := datum(CategoryCharacter, CategoryBox)
	idle := datum(CategoryCharacter)
	deaf := datum(CategoryBox)
	zone := trigger(datum(CategoryZone))

	cases := []struct {
		name string
		a, b Datum
		want Decision
	}{
		{"box_floor", box, floor, Decision{CollideAndNotify, true}},
		{"floor_box", floor, box, Decision{CollideAndNotify, true}},
		{"box_box", box, box, Decision{CollideAndNotify, true}},
		{"one_sided_interest", char, box, Decision{CollideAndNotify, true}},
		{"no_interest", idle, deaf, Decision{Collide, true}},
		{"uninterested_box", idle, box, Decision{Collide, true}},
		{"trigger_a", zone, deaf, Decision{CollideAndNotify, false}},
		{"trigger_b", idle, zone, Decision{CollideAndNotify, false}},
		{"trigger_beats_interest", trigger(box), floor, Decision{CollideAndNotify, false}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.a, c.b); got != c.want {
				t.Fatalf("Classify = %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestClassifySymmetricWithoutTriggers(t *testing.T) {
	var tags []Datum
	for _, c := range Categories {
		for m := Mask(0); m < Mask(1)<<len(Categories); m++ {
			tags = append(tags, Datum{Tag: Tag{Category: c, Interest: m}})
		}
	}
	for _, a := range tags {
		for _, b := range tags {
			ab, ba := Classify(a, b), Classify(b, a)
			if ab != ba {
				t.Fatalf("asymmetric: %v vs %v -> %+v / %+v", a.Tag, b.Tag, ab, ba)
			}
			if !a.Interest.Has(b.Category) && !b.Interest.Has(a.Category) && ab.Outcome != Collide {
				t.Fatalf("no shared interest must collide silently: %v vs %v -> %v", a.Tag, b.Tag, ab.Outcome)
			}
			if ab.Outcome == Ignore {
				t.Fatalf("built-in policy must never ignore")
			}
		}
	}
}

func TestClassifyMutual(t *testing.T) {
	box := datum(CategoryBox, CategoryBox, CategoryFloor)
	floor := datum(CategoryFloor, CategoryBox)
	quietFloor := datum(CategoryFloor)

	if got := ClassifyMutual(box, floor); got.Outcome != CollideAndNotify {
		t.Fatalf("mutual interest should notify, got %v", got.Outcome)
	}
	if got := ClassifyMutual(box, quietFloor); got.Outcome != Collide {
		t.Fatalf("one-sided interest should only collide, got %v", got.Outcome)
	}
	if got := ClassifyMutual(trigger(quietFloor), box); got.Outcome != CollideAndNotify || got.Solid {
		t.Fatalf("trigger precedence must survive the mutual rule, got %+v", got)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, name := range []string{"", "any", "either"} {
		p, err := ParsePolicy(name)
		if err != nil || p == nil {
			t.Fatalf("ParsePolicy(%q): %v", name, err)
		}
	}
	p, err := ParsePolicy("mutual")
	if err != nil {
		t.Fatalf("ParsePolicy(mutual): %v", err)
	}
	if got := p.Classify(datum(CategoryBox, CategoryFloor), datum(CategoryFloor)); got.Outcome != Collide {
		t.Fatalf("mutual policy should not notify one-sided pairs, got %v", got.Outcome)
	}
	if _, err := ParsePolicy("and"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
