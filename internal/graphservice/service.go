// Package graphservice coordinates registry mutations behind the engine's
// guard services and persists committed snapshots.
package graphservice

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aldercy/wyrd/internal/apperr"
	"github.com/aldercy/wyrd/internal/assembler"
	"github.com/aldercy/wyrd/internal/cascade"
	"github.com/aldercy/wyrd/internal/checksum"
	"github.com/aldercy/wyrd/internal/generator"
	"github.com/aldercy/wyrd/internal/integrity"
	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
	"github.com/aldercy/wyrd/internal/temporal"
)

// EventCallback is called after each committed mutation.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind, id string)

// Store is the slice of the persistence provider the service needs.
type Store interface {
	Save(snapshot map[string]models.Object) error
}

// Service is the single logical writer over a registry. All mutations are
// serialized by one mutex at this boundary; the engine packages below it
// are pure functions over a registry snapshot.
type Service struct {
	mu      sync.Mutex
	reg     *registry.Registry
	store   Store
	checker *integrity.Checker
	gen     generator.Generator
	onEvent EventCallback
}

// NewService creates a service over the given registry. store, gen, and cb
// may be nil (no persistence, no generation, no events).
func NewService(reg *registry.Registry, store Store, checker *integrity.Checker, gen generator.Generator, cb EventCallback) *Service {
	if checker == nil {
		checker = integrity.NewChecker()
	}
	return &Service{reg: reg, store: store, checker: checker, gen: gen, onEvent: cb}
}

// CreateResult pairs a committed object with the advisory link analysis
// attached at creation time.
type CreateResult struct {
	Object   models.Object       `json:"object"`
	Analysis *integrity.Analysis `json:"analysis,omitempty"`
}

// Create commits a new object. A hierarchical link that would create a
// cycle is rejected with ErrCycleRejected, the only hard failure in the
// mutation path; semantic links get an advisory analysis but are committed
// regardless.
func (s *Service) Create(_ context.Context, obj models.Object) (*CreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.ID != "" && s.reg.Has(obj.ID) {
		return nil, apperr.ErrAlreadyExists
	}

	var analysis *integrity.Analysis
	if obj.IsLink() {
		if obj.LinkKind == models.LinkHierarchical {
			if integrity.DetectCycle(obj.SourceID, obj.TargetID, s.reg) {
				return nil, fmt.Errorf("link %s -> %s: %w", obj.SourceID, obj.TargetID, apperr.ErrCycleRejected)
			}
		}
		a := s.checker.Analyze(obj.SourceID, obj.TargetID, obj.Verb, obj.LinkKind, s.reg)
		analysis = &a
	}

	stored, err := s.reg.Upsert(obj)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	s.emit("created", stored.ID)
	return &CreateResult{Object: stored, Analysis: analysis}, nil
}

// Patch is a partial content update; nil fields are left untouched.
type Patch struct {
	Title    *string   `json:"title,omitempty"`
	Gist     *string   `json:"gist,omitempty"`
	Prose    *string   `json:"prose_content,omitempty"`
	Category *string   `json:"category,omitempty"`
	Aliases  *[]string `json:"aliases,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Verb     *string   `json:"verb,omitempty"`
	Inverse  *string   `json:"verb_inverse,omitempty"`
}

// Update applies a partial update. ifMatch, when non-empty, must equal the
// current payload checksum or the update is rejected with ErrConflict.
func (s *Service) Update(_ context.Context, id string, patch Patch, ifMatch string) (*models.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.reg.Get(id)
	if obj == nil {
		return nil, apperr.ErrNotFound
	}
	if ifMatch != "" && ifMatch != checksum.SumJSON(obj) {
		return nil, apperr.ErrConflict
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&obj.Title, patch.Title)
	apply(&obj.Gist, patch.Gist)
	apply(&obj.Prose, patch.Prose)
	apply(&obj.Category, patch.Category)
	apply(&obj.Verb, patch.Verb)
	apply(&obj.VerbInverse, patch.Inverse)
	if patch.Aliases != nil {
		obj.Aliases = *patch.Aliases
	}
	if patch.Tags != nil {
		obj.Tags = *patch.Tags
	}

	stored, err := s.reg.Upsert(*obj)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	s.emit("updated", stored.ID)
	return &stored, nil
}

// Get returns the object or ErrNotFound.
func (s *Service) Get(_ context.Context, id string) (*models.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.reg.Get(id)
	if obj == nil {
		return nil, apperr.ErrNotFound
	}
	return obj, nil
}

// Checksum returns the payload checksum used for optimistic concurrency.
func (s *Service) Checksum(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.reg.Get(id)
	if obj == nil {
		return "", apperr.ErrNotFound
	}
	return checksum.SumJSON(obj), nil
}

// AnalyzeLink runs the advisory checker against a proposed link without
// committing anything.
func (s *Service) AnalyzeLink(_ context.Context, sourceID, targetID, verb string, kind models.LinkKind) integrity.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checker.Analyze(sourceID, targetID, verb, kind, s.reg)
}

// PreviewDelete computes the blast radius without mutating anything, for
// confirmation dialogs.
func (s *Service) PreviewDelete(_ context.Context, id string, profile cascade.Profile) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reg.Has(id) {
		return nil, apperr.ErrNotFound
	}
	return sortedIDs(cascade.Candidates(id, s.reg, profile)), nil
}

// Delete removes the object and its computed closure atomically, then
// reconciles every surviving container. Returns the removed ids.
func (s *Service) Delete(_ context.Context, id string, profile cascade.Profile) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.reg.Has(id) {
		return nil, apperr.ErrNotFound
	}
	candidates := cascade.Candidates(id, s.reg, profile)
	s.reg.DeleteSet(candidates)
	if err := s.persist(); err != nil {
		return nil, err
	}
	removed := sortedIDs(candidates)
	for _, rid := range removed {
		s.emit("deleted", rid)
	}
	return removed, nil
}

// Reparent moves childID under newParentID. With asReference the old
// hierarchical link survives, declaring a second structural membership;
// otherwise the link from oldParentID (when given) is removed. The move is
// guarded by cycle detection.
func (s *Service) Reparent(_ context.Context, childID, newParentID, oldParentID string, asReference bool) (*models.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.reg.Has(childID) || !s.reg.Has(newParentID) {
		return nil, apperr.ErrNotFound
	}
	if integrity.DetectCycle(newParentID, childID, s.reg) {
		return nil, fmt.Errorf("reparent %s under %s: %w", childID, newParentID, apperr.ErrCycleRejected)
	}

	if !asReference && oldParentID != "" {
		drop := make(map[string]struct{})
		for _, l := range s.reg.LinksTouching(childID) {
			if l.LinkKind == models.LinkHierarchical && l.SourceID == oldParentID && l.TargetID == childID {
				drop[l.ID] = struct{}{}
			}
		}
		s.reg.DeleteSet(drop)
	}

	link := models.NewLink(newParentID, childID, "contains", "is part of", models.LinkHierarchical)
	stored, err := s.reg.Upsert(link)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	s.emit("updated", childID)
	return &stored, nil
}

// ReifyContent is the note content attached to a link during reification.
type ReifyContent struct {
	Title    string `json:"title"`
	Gist     string `json:"gist,omitempty"`
	Prose    string `json:"prose_content,omitempty"`
	Category string `json:"category,omitempty"`
}

// Reify promotes a plain link into a reified link carrying note content,
// making the relationship itself discussable and containable.
func (s *Service) Reify(_ context.Context, linkID string, content ReifyContent) (*models.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.reg.Get(linkID)
	if obj == nil {
		return nil, apperr.ErrNotFound
	}
	if obj.Kind != models.KindLink {
		return nil, fmt.Errorf("reify %s: object is %s, not a plain link: %w", linkID, obj.Kind, apperr.ErrConflict)
	}

	obj.Kind = models.KindReifiedLink
	obj.Title = content.Title
	obj.Gist = content.Gist
	obj.Prose = content.Prose
	obj.Category = content.Category

	stored, err := s.reg.Upsert(*obj)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	s.emit("updated", stored.ID)
	return &stored, nil
}

// Ingest commits a batch of objects atomically: either every member is
// applied or none. New hierarchical edges are cycle-checked against the
// pre-batch registry plus the already-admitted members.
func (s *Service) Ingest(_ context.Context, batch []models.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Assign ids up front so the probe and the real apply agree.
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = models.NewID()
		}
	}

	// Probe on a clone so a mid-batch rejection leaves nothing behind. The
	// batch is applied first and then each new hierarchical edge checked:
	// an edge parent -> child closes a cycle exactly when child is already
	// a transitive ancestor of parent through the other edges.
	probe := s.reg.Clone()
	if err := probe.UpsertBatch(batch); err != nil {
		return err
	}
	for i := range batch {
		obj := batch[i]
		if obj.IsLink() && obj.LinkKind == models.LinkHierarchical {
			if integrity.DetectCycle(obj.SourceID, obj.TargetID, probe) {
				return fmt.Errorf("ingest member %d (%s -> %s): %w", i, obj.SourceID, obj.TargetID, apperr.ErrCycleRejected)
			}
		}
	}

	if err := s.reg.UpsertBatch(batch); err != nil {
		return err
	}
	if err := s.persist(); err != nil {
		return err
	}
	for i := range batch {
		s.emit("created", batch[i].ID)
	}
	return nil
}

// Snapshot exports the live registry as a self-contained document.
func (s *Service) Snapshot(_ context.Context) map[string]models.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Export()
}

// Replace swaps the whole registry for an imported snapshot (the upload
// boundary) and persists it.
func (s *Service) Replace(_ context.Context, snapshot map[string]models.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg = registry.FromMap(snapshot)
	if err := s.persist(); err != nil {
		return err
	}
	s.emit("updated", "")
	return nil
}

// Graph returns all current objects in iteration order, for graph views.
func (s *Service) Graph(_ context.Context) []models.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Object, 0, s.reg.Len())
	for _, id := range s.reg.IDs() {
		out = append(out, *s.reg.Get(id))
	}
	return out
}

// ResolveAt materializes the registry at the given instant. A pure read:
// the authoritative registry is never touched.
func (s *Service) ResolveAt(_ context.Context, instant time.Time) ([]models.Object, []temporal.Annotation) {
	s.mu.Lock()
	snap := s.reg.Clone()
	s.mu.Unlock()

	resolved, notes := temporal.Resolve(snap, instant)
	out := make([]models.Object, 0, resolved.Len())
	for _, id := range resolved.IDs() {
		out = append(out, *resolved.Get(id))
	}
	return out, notes
}

// AssembleContext builds a bounded prompt context from pinned mentions.
func (s *Service) AssembleContext(_ context.Context, mentions []assembler.Mention, budget int) assembler.Result {
	s.mu.Lock()
	snap := s.reg.Clone()
	s.mu.Unlock()
	return assembler.Assemble(snap, mentions, budget)
}

// Compose assembles context and hands the rendered prompt to the external
// generator. Returns the generated text plus the assembly result.
func (s *Service) Compose(ctx context.Context, mentions []assembler.Mention, budget int, systemInstruction string) (string, assembler.Result, error) {
	res := s.AssembleContext(ctx, mentions, budget)
	if s.gen == nil {
		return "", res, fmt.Errorf("graphservice: no generator configured")
	}
	text, err := s.gen.Generate(ctx, res.Text, systemInstruction)
	if err != nil {
		return "", res, err
	}
	return text, res, nil
}

func (s *Service) persist() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(s.reg.Export()); err != nil {
		return fmt.Errorf("graphservice: persist: %w", err)
	}
	return nil
}

func (s *Service) emit(kind, id string) {
	if s.onEvent != nil {
		s.onEvent(kind, id)
	}
}

func sortedIDs(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
