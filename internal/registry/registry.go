// Package registry implements the authoritative in-memory object map that
// every engine service operates on.
package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/aldercy/wyrd/internal/apperr"
	"github.com/aldercy/wyrd/internal/models"
)

// Registry owns a set of objects keyed by id. It is the single shared
// mutable resource of the engine; callers serialize writers above it
// (single logical writer model). Read-side transforms work on a Clone.
//
// The ChildrenIDs and LinkIDs fields of stored objects are derived caches
// reconciled after every structural mutation; the authoritative structure is
// the set of link objects themselves.
type Registry struct {
	objects map[string]*models.Object
	order   []string // insertion order, drives deterministic iteration
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{objects: make(map[string]*models.Object)}
}

// FromMap builds a registry from an imported snapshot document. Iteration
// order is normalized to creation time (ties broken by id) so that two
// imports of the same document behave identically.
func FromMap(objs map[string]models.Object) *Registry {
	r := New()
	ids := make([]string, 0, len(objs))
	for id := range objs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := objs[ids[i]], objs[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		src := objs[id]
		obj := src.Clone()
		if obj.ID == "" {
			obj.ID = id
		}
		r.objects[obj.ID] = &obj
		r.order = append(r.order, obj.ID)
	}
	r.reconcile()
	return r
}

// Len returns the number of stored objects.
func (r *Registry) Len() int {
	return len(r.objects)
}

// Has reports whether id is present.
func (r *Registry) Has(id string) bool {
	_, ok := r.objects[id]
	return ok
}

// IDs returns all object ids in registry iteration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns a deep copy of the object, or nil when absent. Absence is not
// an error: authors routinely hold stale ids while editing.
func (r *Registry) Get(id string) *models.Object {
	obj, ok := r.objects[id]
	if !ok {
		return nil
	}
	c := obj.Clone()
	return &c
}

// Upsert stores the object, performing envelope bookkeeping: a missing id is
// generated, CreatedAt is set on first insert (or preserved when already
// stored), and LastModified is refreshed. Link endpoints must resolve.
// Structural invariants beyond endpoint existence (cycle freedom) are the
// caller's responsibility via the integrity package.
func (r *Registry) Upsert(obj models.Object) (models.Object, error) {
	if err := r.checkEndpoints(&obj, nil); err != nil {
		return models.Object{}, err
	}
	stored := r.place(obj, time.Now())
	r.reconcile()
	return stored.Clone(), nil
}

// UpsertBatch applies all objects or none of them. Endpoint resolution may
// reference other members of the same batch, so ingestion can emit a note
// and its links in one unit.
func (r *Registry) UpsertBatch(objs []models.Object) error {
	pending := make(map[string]struct{}, len(objs))
	for i := range objs {
		if objs[i].ID != "" {
			pending[objs[i].ID] = struct{}{}
		}
	}
	for i := range objs {
		if err := r.checkEndpoints(&objs[i], pending); err != nil {
			return fmt.Errorf("registry: batch member %d: %w", i, err)
		}
	}
	now := time.Now()
	for i := range objs {
		r.place(objs[i], now)
	}
	r.reconcile()
	return nil
}

// DeleteSet removes every id in the set, then reconciles the derived caches
// of all survivors so no container keeps a dangling child reference. Ids
// absent from the registry are ignored.
func (r *Registry) DeleteSet(ids map[string]struct{}) {
	if len(ids) == 0 {
		return
	}
	for id := range ids {
		delete(r.objects, id)
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if _, gone := ids[id]; !gone {
			kept = append(kept, id)
		}
	}
	r.order = kept
	r.reconcile()
}

// ChildrenOf returns the hierarchical children of id in link insertion
// order: the targets of hierarchical links sourced at id.
func (r *Registry) ChildrenOf(id string) []models.Object {
	var out []models.Object
	for _, lid := range r.order {
		l := r.objects[lid]
		if l.IsLink() && l.LinkKind == models.LinkHierarchical && l.SourceID == id {
			if child, ok := r.objects[l.TargetID]; ok {
				out = append(out, child.Clone())
			}
		}
	}
	return out
}

// LinksTouching returns every link with id as either endpoint.
func (r *Registry) LinksTouching(id string) []models.Object {
	var out []models.Object
	for _, lid := range r.order {
		l := r.objects[lid]
		if l.IsLink() && (l.SourceID == id || l.TargetID == id) {
			out = append(out, l.Clone())
		}
	}
	return out
}

// SnapshotsOf returns every temporal snapshot whose parent identity is id.
func (r *Registry) SnapshotsOf(id string) []models.Object {
	var out []models.Object
	for _, sid := range r.order {
		s := r.objects[sid]
		if s.IsSnapshot() && s.TimeState != nil && s.TimeState.ParentIdentityID == id {
			out = append(out, s.Clone())
		}
	}
	return out
}

// ParentsOf returns the hierarchical parents of id: sources of hierarchical
// links targeting id. Cycle detection walks this relation, never the
// ChildrenIDs cache.
func (r *Registry) ParentsOf(id string) []string {
	var out []string
	for _, lid := range r.order {
		l := r.objects[lid]
		if l.IsLink() && l.LinkKind == models.LinkHierarchical && l.TargetID == id {
			out = append(out, l.SourceID)
		}
	}
	return out
}

// Clone returns an independent deep copy for read-side transforms.
func (r *Registry) Clone() *Registry {
	out := New()
	out.order = make([]string, len(r.order))
	copy(out.order, r.order)
	for id, obj := range r.objects {
		c := obj.Clone()
		out.objects[id] = &c
	}
	return out
}

// Materialize inserts already-committed objects verbatim, keeping their
// envelopes untouched. Read-side transforms use it to build derived
// registries whose objects carry the CreatedAt and LastModified of their
// sources, so deriving twice yields identical output.
func (r *Registry) Materialize(objs []models.Object) {
	for i := range objs {
		c := objs[i].Clone()
		if _, known := r.objects[c.ID]; !known {
			r.order = append(r.order, c.ID)
		}
		r.objects[c.ID] = &c
	}
	r.reconcile()
}

// Export returns the registry as a self-contained snapshot map, the unit
// exchanged with the persistence collaborator and the import boundary.
func (r *Registry) Export() map[string]models.Object {
	out := make(map[string]models.Object, len(r.objects))
	for id, obj := range r.objects {
		out[id] = obj.Clone()
	}
	return out
}

// place stores obj without reconciling. Returns the stored pointer.
func (r *Registry) place(obj models.Object, now time.Time) *models.Object {
	if obj.ID == "" {
		obj.ID = models.NewID()
	}
	existing, known := r.objects[obj.ID]
	if known {
		obj.CreatedAt = existing.CreatedAt
	} else if obj.CreatedAt.IsZero() {
		obj.CreatedAt = now
	}
	obj.LastModified = now
	c := obj.Clone()
	r.objects[c.ID] = &c
	if !known {
		r.order = append(r.order, c.ID)
	}
	return &c
}

// checkEndpoints enforces invariant: link endpoints resolve to existing
// objects (or to members of the pending batch).
func (r *Registry) checkEndpoints(obj *models.Object, pending map[string]struct{}) error {
	if !obj.IsLink() {
		return nil
	}
	for _, end := range []string{obj.SourceID, obj.TargetID} {
		if end == "" {
			return fmt.Errorf("registry: link %s missing endpoint: %w", obj.ID, apperr.ErrNotFound)
		}
		if _, ok := r.objects[end]; ok {
			continue
		}
		if pending != nil {
			if _, ok := pending[end]; ok {
				continue
			}
		}
		return fmt.Errorf("registry: link endpoint %s: %w", end, apperr.ErrNotFound)
	}
	return nil
}

// reconcile rebuilds the derived ChildrenIDs and LinkIDs caches from the
// authoritative link set. It is the single routine that keeps the
// materialized views in lockstep with the edges.
func (r *Registry) reconcile() {
	for _, obj := range r.objects {
		obj.LinkIDs = nil
		obj.ChildrenIDs = nil
	}
	for _, lid := range r.order {
		l := r.objects[lid]
		if !l.IsLink() {
			continue
		}
		if src, ok := r.objects[l.SourceID]; ok {
			src.LinkIDs = appendUnique(src.LinkIDs, l.ID)
			if l.LinkKind == models.LinkHierarchical {
				src.ChildrenIDs = appendUnique(src.ChildrenIDs, l.TargetID)
			}
		}
		if dst, ok := r.objects[l.TargetID]; ok && l.TargetID != l.SourceID {
			dst.LinkIDs = appendUnique(dst.LinkIDs, l.ID)
		}
	}
}

func appendUnique(s []string, v string) []string {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}
