package component

import "github.com/milk9111/contactsim/filter"

// ActorTag is the write-once category tag of a simulated object. The physics
// world adds it while tagging and nothing replaces it afterwards.
type ActorTag struct {
	filter.Tag
}

var ActorTagComponent = NewComponent[ActorTag]()

// Name is a human readable label used in logs.
type Name struct {
	Value string
}

var NameComponent = NewComponent[Name]()
