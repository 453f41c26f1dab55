package session

import (
	"maps"
	"slices"
)

/*
Field names one of the three metadata columns a Record tracks.
*/
type Field string

const (
	FieldCreationTime        Field = "creationTime"
	FieldMaxInactiveInterval Field = "maxInactiveInterval"
	FieldLastAccessedTime    Field = "lastAccessedTime"
)

/*
Fields lists the metadata fields in the order they are flushed.
*/
func Fields() []Field {
	return []Field{FieldCreationTime, FieldMaxInactiveInterval, FieldLastAccessedTime}
}

/*
FieldChange is a pending write of a single metadata column.
*/
type FieldChange struct {
	Field Field
	Value int64
}

/*
AttributeChange is a pending write of a single attribute. Removed marks a
deletion, in which case Value is nil.
*/
type AttributeChange struct {
	Name    string
	Value   any
	Removed bool
}

/*
Delta is a copy of everything a Record has not persisted yet.
*/
type Delta struct {
	SessionID  string
	Metadata   []FieldChange
	Attributes []AttributeChange
}

/*
Empty reports whether there is nothing to write.
*/
func (delta Delta) Empty() bool {
	return len(delta.Metadata) == 0 && len(delta.Attributes) == 0
}

// metadataDelta holds at most one pending value per known field; nil means
// the field is clean.
type metadataDelta struct {
	creationTime        *int64
	maxInactiveInterval *int64
	lastAccessedTime    *int64
}

func (delta *metadataDelta) stamp(field Field, value int64) {
	switch field {
	case FieldCreationTime:
		delta.creationTime = &value
	case FieldMaxInactiveInterval:
		delta.maxInactiveInterval = &value
	case FieldLastAccessedTime:
		delta.lastAccessedTime = &value
	}
}

func (delta *metadataDelta) pending(field Field) *int64 {
	switch field {
	case FieldCreationTime:
		return delta.creationTime
	case FieldMaxInactiveInterval:
		return delta.maxInactiveInterval
	case FieldLastAccessedTime:
		return delta.lastAccessedTime
	}

	return nil
}

func (delta *metadataDelta) changes() []FieldChange {
	var changes []FieldChange

	for _, field := range Fields() {
		if value := delta.pending(field); value != nil {
			changes = append(changes, FieldChange{Field: field, Value: *value})
		}
	}

	return changes
}

type attributeOp int

const (
	attributeSet attributeOp = iota + 1
	attributeRemove
)

// attributeChange is the pending state of one attribute name. Names missing
// from the delta map are untouched, so removal never collapses into absence.
type attributeChange struct {
	op    attributeOp
	value any
}

func attributeChanges(pending map[string]attributeChange) []AttributeChange {
	changes := make([]AttributeChange, 0, len(pending))

	for _, name := range slices.Sorted(maps.Keys(pending)) {
		change := pending[name]
		changes = append(changes, AttributeChange{
			Name:    name,
			Value:   change.value,
			Removed: change.op == attributeRemove,
		})
	}

	return changes
}
