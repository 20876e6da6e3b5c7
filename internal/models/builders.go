package models

import "time"

// NewNote returns an unsaved note object with a fresh id.
func NewNote(title, gist string) Object {
	return Object{ID: NewID(), Kind: KindNote, Title: title, Gist: gist}
}

// NewLink returns an unsaved link object between two existing objects.
func NewLink(sourceID, targetID, verb, verbInverse string, kind LinkKind) Object {
	return Object{
		ID:          NewID(),
		Kind:        KindLink,
		SourceID:    sourceID,
		TargetID:    targetID,
		Verb:        verb,
		VerbInverse: verbInverse,
		LinkKind:    kind,
	}
}

// NewSnapshot returns an unsaved temporal snapshot for the given base
// identity, covering [from, until). A nil until leaves the interval open.
func NewSnapshot(parentID string, from time.Time, until *time.Time, era string) Object {
	return Object{
		ID:   NewID(),
		Kind: KindSnapshot,
		TimeState: &TimeState{
			ParentIdentityID: parentID,
			EffectiveFrom:    from,
			ValidUntil:       until,
			Era:              era,
		},
	}
}
