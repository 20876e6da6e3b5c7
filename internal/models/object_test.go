package models

import (
	"testing"
	"time"
)

func TestClassification(t *testing.T) {
	note := NewNote("Keep", "")
	link := NewLink("a", "b", "guards", "", LinkSemantic)
	snap := NewSnapshot("base", time.Now(), nil, "era")

	reified := link
	reified.Kind = KindReifiedLink
	reified.Title = "The Guarding"

	cases := []struct {
		name                       string
		obj                        Object
		isLink, isSnap, isIdentity bool
	}{
		{"note", note, false, false, true},
		{"plain link", link, true, false, false},
		{"reified link", reified, true, false, true},
		{"snapshot", snap, false, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.obj.IsLink(); got != tc.isLink {
				t.Errorf("IsLink = %v, want %v", got, tc.isLink)
			}
			if got := tc.obj.IsSnapshot(); got != tc.isSnap {
				t.Errorf("IsSnapshot = %v, want %v", got, tc.isSnap)
			}
			if got := tc.obj.IsIdentity(); got != tc.isIdentity {
				t.Errorf("IsIdentity = %v, want %v", got, tc.isIdentity)
			}
		})
	}
}

func TestSnapshotOfReifiedLinkIsSnapshot(t *testing.T) {
	// A legacy document may tag a snapshot of a reified link with the link
	// kind; the TimeState parent still marks it as a snapshot.
	obj := Object{
		ID:        NewID(),
		Kind:      KindReifiedLink,
		TimeState: &TimeState{ParentIdentityID: "some-link"},
	}
	if !obj.IsSnapshot() {
		t.Error("TimeState with a parent should mark the object as snapshot")
	}
	if obj.IsIdentity() {
		t.Error("snapshot must not count as identity")
	}
}

func TestDisplayTitle(t *testing.T) {
	note := NewNote("Named", "")
	if note.DisplayTitle() != "Named" {
		t.Errorf("note = %q", note.DisplayTitle())
	}
	link := NewLink("a", "b", "guards", "", LinkSemantic)
	if link.DisplayTitle() != "guards" {
		t.Errorf("link = %q", link.DisplayTitle())
	}
	anon := Object{ID: "x", Kind: KindNote}
	if anon.DisplayTitle() != "x" {
		t.Errorf("anon = %q", anon.DisplayTitle())
	}
}

func TestCloneIsDeep(t *testing.T) {
	until := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := NewSnapshot("base", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), &until, "era")
	orig.Tags = []string{"one"}
	orig.ChildrenIDs = []string{"c1"}

	c := orig.Clone()
	c.Tags[0] = "mutated"
	c.ChildrenIDs[0] = "mutated"
	*c.TimeState.ValidUntil = c.TimeState.ValidUntil.AddDate(10, 0, 0)

	if orig.Tags[0] != "one" || orig.ChildrenIDs[0] != "c1" {
		t.Error("Clone shares slices")
	}
	if !orig.TimeState.ValidUntil.Equal(until) {
		t.Error("Clone shares TimeState")
	}
}
