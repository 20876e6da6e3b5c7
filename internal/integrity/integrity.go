// Package integrity guards structural mutations: hierarchy cycle detection
// and advisory link-redundancy analysis.
package integrity

import (
	"fmt"
	"strings"

	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
)

// Status classifies a proposed link. Only Approved carries no annotation;
// every other status is advisory and never blocks a write.
type Status string

const (
	StatusApproved               Status = "approved"
	StatusDuplicate              Status = "duplicate"
	StatusContradicts            Status = "contradicts"
	StatusRedundantWithHierarchy Status = "redundant_with_hierarchy"
)

// Analysis is the advisory verdict for a proposed link.
type Analysis struct {
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// DetectCycle reports whether adding the hierarchical edge parent -> child
// would make child its own transitive ancestor. It walks ascendants of
// parentID over existing hierarchical links with a visited set, so it
// terminates even if the stored graph already holds an accidental cycle.
func DetectCycle(parentID, childID string, reg *registry.Registry) bool {
	if parentID == childID {
		return true
	}
	visited := map[string]struct{}{parentID: {}}
	worklist := []string{parentID}
	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]
		for _, anc := range reg.ParentsOf(cur) {
			if anc == childID {
				return true
			}
			if _, seen := visited[anc]; seen {
				continue
			}
			visited[anc] = struct{}{}
			worklist = append(worklist, anc)
		}
	}
	return false
}

// Checker performs advisory link analysis. Contradiction detection is a
// declared rule table: ingestion (or the author) registers antonymic verb
// pairs, nothing is inferred from language.
type Checker struct {
	antonyms map[string]map[string]struct{}
}

// NewChecker returns a checker with an empty contradiction rule set.
func NewChecker() *Checker {
	return &Checker{antonyms: make(map[string]map[string]struct{})}
}

// DeclareContradiction registers verb and opposite as mutually contradictory
// in both directions. Verbs are compared case-insensitively.
func (c *Checker) DeclareContradiction(verb, opposite string) {
	c.add(strings.ToLower(verb), strings.ToLower(opposite))
	c.add(strings.ToLower(opposite), strings.ToLower(verb))
}

func (c *Checker) add(verb, opposite string) {
	set, ok := c.antonyms[verb]
	if !ok {
		set = make(map[string]struct{})
		c.antonyms[verb] = set
	}
	set[opposite] = struct{}{}
}

// Analyze inspects existing links between the pair (in either direction)
// before a new link sourceID -> targetID with the given verb is committed.
// The verdict is advisory: callers may commit regardless, the author has
// final say.
func (c *Checker) Analyze(sourceID, targetID, verb string, kind models.LinkKind, reg *registry.Registry) Analysis {
	lowVerb := strings.ToLower(verb)
	for _, l := range reg.LinksTouching(sourceID) {
		samePair := l.SourceID == sourceID && l.TargetID == targetID
		reversed := l.SourceID == targetID && l.TargetID == sourceID
		if !samePair && !reversed {
			continue
		}
		if samePair && strings.EqualFold(l.Verb, verb) && l.LinkKind == kind {
			return Analysis{
				Status: StatusDuplicate,
				Reason: fmt.Sprintf("an identical %q link between this pair already exists", l.Verb),
			}
		}
		if set, ok := c.antonyms[lowVerb]; ok {
			if _, clash := set[strings.ToLower(l.Verb)]; clash {
				return Analysis{
					Status:     StatusContradicts,
					Reason:     fmt.Sprintf("existing link %q contradicts proposed %q", l.Verb, verb),
					Suggestion: "remove or reword one of the two links",
				}
			}
		}
		if kind == models.LinkSemantic && samePair && l.LinkKind == models.LinkHierarchical {
			return Analysis{
				Status:     StatusRedundantWithHierarchy,
				Reason:     "a hierarchical link already encodes this containment",
				Suggestion: "rely on the existing hierarchy instead of a semantic duplicate",
			}
		}
	}
	return Analysis{Status: StatusApproved}
}
