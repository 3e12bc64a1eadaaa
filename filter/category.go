// Package filter holds the collision categories, per-object tags and the pair
// policy that decides whether two objects collide and whether the contact is
// reported.
package filter

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Category identifies an object's role. Each value is a single bit so any
// subset fits in a Mask.
type Category uint32

const (
	CategoryFloor Category = 1 << iota
	CategoryBox
	CategoryCharacter
	CategoryZone
)

// Categories lists the closed set in bit order.
var Categories = []Category{CategoryFloor, CategoryBox, CategoryCharacter, CategoryZone}

var ErrUnknownCategory = errors.New("filter: unknown category")

var categoryNames = map[Category]string{
	CategoryFloor:     "floor",
	CategoryBox:       "box",
	CategoryCharacter: "character",
	CategoryZone:      "zone",
}

// Valid reports whether c is exactly one registered bit.
func (c Category) Valid() bool {
	if bits.OnesCount32(uint32(c)) != 1 {
		return false
	}
	_, ok := categoryNames[c]
	return ok
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	if c == 0 {
		return "unresolved"
	}
	return fmt.Sprintf("category(%#x)", uint32(c))
}

// ParseCategory resolves a category name, case-insensitively.
func ParseCategory(name string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for c, n := range categoryNames {
		if n == key {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Mask is a bitwise union of categories.
type Mask uint32

func MaskOf(cats ...Category) Mask {
	var m Mask
	for _, c := range cats {
		m |= Mask(c)
	}
	return m
}

// Has reports whether c is part of the mask.
func (m Mask) Has(c Category) bool {
	return m&Mask(c) != 0
}

// Categories expands the mask in bit order.
func (m Mask) Categories() []Category {
	var out []Category
	for _, c := range Categories {
		if m.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (m Mask) String() string {
	cats := m.Categories()
	if len(cats) == 0 {
		return "none"
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	return strings.Join(names, "|")
}

// ParseMask builds a mask from category names.
func ParseMask(names []string) (Mask, error) {
	var m Mask
	for _, n := range names {
		c, err := ParseCategory(n)
		if err != nil {
			return 0, err
		}
		m |= Mask(c)
	}
	return m, nil
}
