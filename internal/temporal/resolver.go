// Package temporal materializes a registry at a point in time: base
// identities keep their stable ids while their content is swapped for the
// snapshot valid at the target instant.
package temporal

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
)

// Latest is the unbounded-future instant used when a caller wants the most
// recent state without naming a target.
func Latest() time.Time {
	return time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
}

// Annotation reports an irregularity observed while resolving. Overlapping
// snapshot intervals are not validated at write time; they are detected
// opportunistically here and reported, never failed on.
type Annotation struct {
	IdentityID  string   `json:"identity_id"`
	SnapshotIDs []string `json:"snapshot_ids"`
	Reason      string   `json:"reason"`
}

// Resolution is the outcome of resolving a single identity.
type Resolution struct {
	Object     models.Object
	Sliced     bool   // a snapshot's content replaced the base content
	SnapshotID string
	Era        string
	BaseTitle  string
	BaseGist   string
}

// Resolve returns a materialized registry for the given instant.
//
// Base identities created after the instant are omitted, snapshots never
// appear in the output, and every surviving identity keeps its base id so
// links and consumers stay referentially intact. Links are kept only when
// both endpoints survive; a plain link additionally honors its own
// CreatedAt, so a relationship recorded after the instant is absent even
// when both endpoints exist. The input registry is never mutated.
func Resolve(reg *registry.Registry, instant time.Time) (*registry.Registry, []Annotation) {
	out := registry.New()
	var notes []Annotation
	var resolved []models.Object
	var links []models.Object
	survivors := make(map[string]struct{})

	for _, id := range reg.IDs() {
		obj := reg.Get(id)
		switch {
		case obj.IsSnapshot():
			continue
		case obj.Kind == models.KindLink:
			if !obj.CreatedAt.After(instant) {
				links = append(links, *obj)
			}
			continue
		}
		if obj.CreatedAt.After(instant) {
			continue // identity does not yet exist at this instant
		}
		res, ann := resolveIdentity(reg, obj, instant)
		if ann != nil {
			notes = append(notes, *ann)
		}
		resolved = append(resolved, res.Object)
		survivors[obj.ID] = struct{}{}
	}

	// Reified links are identities with endpoints; if an endpoint vanished
	// they vanish too, which can strand further links, so drop to fixpoint.
	for {
		dropped := false
		kept := resolved[:0]
		for _, obj := range resolved {
			if obj.IsLink() && !endpointsSurvive(&obj, survivors) {
				delete(survivors, obj.ID)
				dropped = true
				continue
			}
			kept = append(kept, obj)
		}
		resolved = kept
		if !dropped {
			break
		}
	}

	batch := resolved
	for _, l := range links {
		if endpointsSurvive(&l, survivors) {
			batch = append(batch, l)
		}
	}
	// Materialize rather than upsert: the output objects keep the
	// envelopes of their sources, so resolving twice yields identical
	// registries.
	out.Materialize(batch)
	return out, notes
}

func endpointsSurvive(l *models.Object, survivors map[string]struct{}) bool {
	_, srcOK := survivors[l.SourceID]
	_, dstOK := survivors[l.TargetID]
	return srcOK && dstOK
}

// ResolveOne resolves a single identity at the given instant. The second
// return value is false when id is absent, a snapshot, a plain link, or an
// identity that does not yet exist at the instant.
func ResolveOne(reg *registry.Registry, id string, instant time.Time) (Resolution, bool) {
	obj := reg.Get(id)
	if obj == nil || obj.IsSnapshot() || obj.Kind == models.KindLink {
		return Resolution{}, false
	}
	if obj.CreatedAt.After(instant) {
		return Resolution{}, false
	}
	res, _ := resolveIdentity(reg, obj, instant)
	return res, true
}

// resolveIdentity picks the qualifying snapshot for base at instant. When
// several qualify (overlapping intervals), the latest EffectiveFrom wins and
// equal starts break toward the lexically larger snapshot id; the overlap is
// reported as an annotation.
func resolveIdentity(reg *registry.Registry, base *models.Object, instant time.Time) (Resolution, *Annotation) {
	snaps := reg.SnapshotsOf(base.ID)
	var qualifying []models.Object
	for _, s := range snaps {
		ts := s.TimeState
		if ts.EffectiveFrom.After(instant) {
			continue
		}
		if ts.ValidUntil != nil && !ts.ValidUntil.After(instant) {
			continue
		}
		qualifying = append(qualifying, s)
	}

	res := Resolution{Object: base.Clone(), BaseTitle: base.Title, BaseGist: base.Gist}
	if len(qualifying) == 0 {
		return res, nil
	}

	sort.Slice(qualifying, func(i, j int) bool {
		a, b := qualifying[i].TimeState.EffectiveFrom, qualifying[j].TimeState.EffectiveFrom
		if !a.Equal(b) {
			return a.After(b)
		}
		return qualifying[i].ID > qualifying[j].ID
	})
	pick := qualifying[0]

	var ann *Annotation
	if len(qualifying) > 1 {
		ids := make([]string, len(qualifying))
		for i, q := range qualifying {
			ids[i] = q.ID
		}
		ann = &Annotation{
			IdentityID:  base.ID,
			SnapshotIDs: ids,
			Reason:      fmt.Sprintf("%d snapshot intervals overlap at %s", len(qualifying), instant.Format(time.RFC3339)),
		}
	}

	// Content swap: the output object keeps the base id and envelope. A
	// snapshot whose content matches the base verbatim is not a slice,
	// so consumers only annotate genuine differences.
	same := res.Object.Title == pick.Title && res.Object.Gist == pick.Gist &&
		res.Object.Prose == pick.Prose && res.Object.Category == pick.Category &&
		slices.Equal(res.Object.Tags, pick.Tags)
	res.Object.Title = pick.Title
	res.Object.Gist = pick.Gist
	res.Object.Prose = pick.Prose
	res.Object.Category = pick.Category
	res.Object.Tags = pick.Tags
	res.Sliced = !same
	res.SnapshotID = pick.ID
	res.Era = pick.TimeState.Era
	return res, ann
}
