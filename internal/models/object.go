// Package models defines the domain types for Wyrd.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the object union.
type Kind string

// Object kinds.
const (
	KindNote        Kind = "note"
	KindLink        Kind = "link"
	KindReifiedLink Kind = "reified_link"
	KindSnapshot    Kind = "snapshot"
)

// LinkKind classifies a link edge.
type LinkKind string

// Link kinds.
const (
	LinkHierarchical LinkKind = "hierarchical"
	LinkSemantic     LinkKind = "semantic"
)

// TimeState marks an object as a time-bounded alternate state of a base
// identity. EffectiveFrom is inclusive, ValidUntil (when present) exclusive.
type TimeState struct {
	ParentIdentityID string     `json:"parent_identity_id"`
	EffectiveFrom    time.Time  `json:"effective_from"`
	ValidUntil       *time.Time `json:"valid_until,omitempty"`
	Era              string     `json:"era,omitempty"`
}

// Object is the tagged union stored in a registry. Every variant shares the
// envelope (ID, CreatedAt, LastModified, LinkIDs); the remaining fields are
// capabilities that a variant may or may not carry. A note gains the
// container capability by carrying ChildrenIDs and the temporal capability by
// carrying TimeState; a link promoted via reification carries both the link
// fields and the note content fields.
type Object struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
	// LinkIDs is a derived back-reference cache, never authoritative.
	LinkIDs []string `json:"link_ids,omitempty"`

	// Note content.
	Title    string   `json:"title,omitempty"`
	Gist     string   `json:"gist,omitempty"`
	Prose    string   `json:"prose_content,omitempty"`
	Category string   `json:"category,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	// Container capability. Derived from hierarchical links sourced here.
	ChildrenIDs []string `json:"children_ids,omitempty"`

	// Temporal capability.
	TimeState *TimeState `json:"time_state,omitempty"`

	// Link fields.
	SourceID    string   `json:"source_id,omitempty"`
	TargetID    string   `json:"target_id,omitempty"`
	Verb        string   `json:"verb,omitempty"`
	VerbInverse string   `json:"verb_inverse,omitempty"`
	LinkKind    LinkKind `json:"link_kind,omitempty"`
}

// NewID returns a fresh opaque object id. Ids are never reused.
func NewID() string {
	return uuid.NewString()
}

// IsLink reports whether the object is a link edge (plain or reified).
func (o *Object) IsLink() bool {
	return o.Kind == KindLink || o.Kind == KindReifiedLink
}

// IsSnapshot reports whether the object is a temporal snapshot of some base
// identity rather than a base identity itself.
func (o *Object) IsSnapshot() bool {
	return o.Kind == KindSnapshot || (o.TimeState != nil && o.TimeState.ParentIdentityID != "")
}

// IsIdentity reports whether the object is a base identity: an addressable
// node (note or reified link) that is not itself a snapshot. Reified links
// count as identities; plain links do not.
func (o *Object) IsIdentity() bool {
	return o.Kind != KindLink && !o.IsSnapshot()
}

// IsContainer reports whether the object currently declares children.
func (o *Object) IsContainer() bool {
	return len(o.ChildrenIDs) > 0
}

// DisplayTitle returns the title, falling back to the link verb for
// unreified links so every object has a printable name.
func (o *Object) DisplayTitle() string {
	if o.Title != "" {
		return o.Title
	}
	if o.IsLink() {
		return o.Verb
	}
	return o.ID
}

// Clone returns a deep copy of the object.
func (o *Object) Clone() Object {
	out := *o
	out.LinkIDs = cloneStrings(o.LinkIDs)
	out.Aliases = cloneStrings(o.Aliases)
	out.Tags = cloneStrings(o.Tags)
	out.ChildrenIDs = cloneStrings(o.ChildrenIDs)
	if o.TimeState != nil {
		ts := *o.TimeState
		if o.TimeState.ValidUntil != nil {
			u := *o.TimeState.ValidUntil
			ts.ValidUntil = &u
		}
		out.TimeState = &ts
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
