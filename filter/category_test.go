package filter

import (
	"errors"
	"math/bits"
	"testing"
)

func TestCategoriesAreDistinctBits(t *testing.T) {
	var seen Mask
	for _, c := range Categories {
		if bits.OnesCount32(uint32(c)) != 1 {
			t.Fatalf("category %s is not a single bit: %#x", c, uint32(c))
		}
		if seen.Has(c) {
			t.Fatalf("category %s reuses a bit", c)
		}
		seen |= Mask(c)
		if !c.Valid() {
			t.Fatalf("category %s should be valid", c)
		}
	}
	if Category(0).Valid() || Category(3).Valid() || Category(1<<20).Valid() {
		t.Fatalf("zero, multi-bit and unregistered values must be invalid")
	}
}

func TestParseCategory(t *testing.T) {
	cases := []struct {
		in   string
		want Category
		err  bool
	}{
		{"floor", CategoryFloor, false},
		{" Box ", CategoryBox, false},
		{"CHARACTER", CategoryCharacter, false},
		{"zone", CategoryZone, false},
		{"wall", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := ParseCategory(c.in)
			if c.err {
				if !errors.Is(err, ErrUnknownCategory) {
					t.Fatalf("expected ErrUnknownCategory, got %v", err)
				}
				return
			}
			if err != nil || got != c.want {
				t.Fatalf("ParseCategory(%q) = %v, %v; want %v", c.in, got, err, c.want)
			}
		})
	}
}

func TestMask(t *testing.T) {
	m, err := ParseMask([]string{"box", "floor"})
	if err != nil {
		t.Fatalf("parse mask: %v", err)
	}
	if m != MaskOf(CategoryBox, CategoryFloor) {
		t.Fatalf("unexpected mask %v", m)
	}
	if !m.Has(CategoryBox) || !m.Has(CategoryFloor) || m.Has(CategoryCharacter) {
		t.Fatalf("membership wrong for %v", m)
	}
	if got := m.String(); got != "floor|box" {
		t.Fatalf("expected floor|box, got %q", got)
	}
	if got := Mask(0).String(); got != "none" {
		t.Fatalf("expected none, got %q", got)
	}
	if _, err := ParseMask([]string{"box", "nope"}); err == nil {
		t.Fatalf("expected error for unknown name")
	}
}
