// Package cascade computes deletion blast radii: the transitive closure of
// objects that must disappear together with a deleted object, under one of
// four enumerated profiles.
package cascade

import (
	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
)

// Profile selects a blast-radius rule set. Profiles are enumerated, not
// freely combinable.
type Profile string

const (
	// StructuralOrphan removes only the object and links directly touching
	// it; children survive unparented.
	StructuralOrphan Profile = "structural_orphan"
	// StructuralCascade removes the full hierarchical-descendant closure
	// plus every link touching a removed node.
	StructuralCascade Profile = "structural_cascade"
	// TemporalCausal removes the temporal-snapshot closure plus touching
	// non-hierarchical links; hierarchical links are protected.
	TemporalCausal Profile = "temporal_causal"
	// Holistic is the union of StructuralCascade and TemporalCausal.
	Holistic Profile = "holistic"
)

// Valid reports whether p names a known profile.
func (p Profile) Valid() bool {
	switch p {
	case StructuralOrphan, StructuralCascade, TemporalCausal, Holistic:
		return true
	}
	return false
}

func (p Profile) followsChildren() bool {
	return p == StructuralCascade || p == Holistic
}

func (p Profile) followsSnapshots() bool {
	return p == TemporalCausal || p == Holistic
}

func (p Profile) takesLink(kind models.LinkKind) bool {
	if p == TemporalCausal {
		return kind != models.LinkHierarchical
	}
	return true
}

// Candidates returns the set of ids to remove when deleting id under the
// given profile. It is a pure computation: the caller applies the set
// atomically via registry.DeleteSet. An id absent from the registry yields
// an empty set.
//
// The worklist only grows the result set and the object count is finite, so
// termination is guaranteed even on accidentally cyclic hierarchies.
func Candidates(id string, reg *registry.Registry, profile Profile) map[string]struct{} {
	result := make(map[string]struct{})
	if !reg.Has(id) || !profile.Valid() {
		return result
	}

	result[id] = struct{}{}
	worklist := []string{id}
	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]

		if profile.followsChildren() {
			for _, child := range reg.ChildrenOf(cur) {
				if _, seen := result[child.ID]; !seen {
					result[child.ID] = struct{}{}
					worklist = append(worklist, child.ID)
				}
			}
		}
		if profile.followsSnapshots() {
			// Snapshots can themselves parent further snapshots (a snapshot
			// of a reified link), so the closure recurses through them.
			for _, snap := range reg.SnapshotsOf(cur) {
				if _, seen := result[snap.ID]; !seen {
					result[snap.ID] = struct{}{}
					worklist = append(worklist, snap.ID)
				}
			}
		}
	}

	// Sweep links whose endpoints fall inside the delete set, filtered by
	// the profile's link-kind rule. Links can themselves be deleted nodes
	// (reified links), so sweep until no new link joins the set.
	for {
		added := false
		for node := range result {
			for _, l := range reg.LinksTouching(node) {
				if _, seen := result[l.ID]; seen {
					continue
				}
				if !profile.takesLink(l.LinkKind) {
					continue
				}
				result[l.ID] = struct{}{}
				added = true
				if profile.followsSnapshots() {
					// Swept-in links can parent snapshots which parent
					// further snapshots, so walk that chain to fixpoint.
					snapWork := []string{l.ID}
					for len(snapWork) > 0 {
						cur := snapWork[0]
						snapWork = snapWork[1:]
						for _, snap := range reg.SnapshotsOf(cur) {
							if _, seen := result[snap.ID]; !seen {
								result[snap.ID] = struct{}{}
								snapWork = append(snapWork, snap.ID)
							}
						}
					}
				}
			}
		}
		if !added {
			break
		}
	}
	return result
}
