// Package assembler builds bounded-size prompt context from author-pinned
// mentions, with an auditable trace of every ranking and filling decision.
package assembler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
	"github.com/aldercy/wyrd/internal/temporal"
)

// Mention is an author-chosen pin with an importance score (0-10, 10
// highest). Children are nested pins rendered with their relation to the
// parent; TargetInstant requests point-in-time retrieval for this mention
// alone.
type Mention struct {
	ID            string     `json:"id"`
	Score         int        `json:"score"`
	TargetInstant *time.Time `json:"target_instant,omitempty"`
	Children      []Mention  `json:"children,omitempty"`
}

// Metrics summarizes an assembly run.
type Metrics struct {
	ApproxTokens   int     `json:"approx_tokens"`
	SelectedCount  int     `json:"selected_count"`
	CandidateCount int     `json:"candidate_count"`
	Utilization    float64 `json:"utilization"`
}

// Result is the assembled context plus its audit trail.
type Result struct {
	Text    string       `json:"text"`
	Metrics Metrics      `json:"metrics"`
	Trace   []TraceEntry `json:"trace"`
}

// item is a selected entry awaiting formatting.
type item struct {
	res      temporal.Resolution
	score    int
	relation string // verb toward the pinned parent, for nested children
	filler   bool
}

// Assemble ranks the pinned mentions, fills the remaining budget from the
// unpinned candidate pool, and renders the selection as blank-line separated
// blocks. Mentions naming absent ids are skipped silently; a budget of zero
// or less yields an empty result.
func Assemble(reg *registry.Registry, mentions []Mention, budget int) Result {
	trace := newTrace()
	if budget <= 0 {
		trace.add("resolve", "budget exhausted before assembly", "skipped", nil)
		return Result{Trace: trace.entries}
	}

	// Stage 1: resolve pins (and nested children) against the registry.
	start := time.Now()
	var pinned []item
	var skipped []string
	for _, m := range mentions {
		it, ok := resolveMention(reg, m, "")
		if !ok {
			skipped = append(skipped, m.ID)
		} else {
			pinned = append(pinned, it)
		}
		for _, child := range m.Children {
			cit, ok := resolveMention(reg, child, m.ID)
			if !ok {
				skipped = append(skipped, child.ID)
				continue
			}
			pinned = append(pinned, cit)
		}
	}
	trace.addTimed("resolve",
		fmt.Sprintf("resolved %d pinned mentions, skipped %d stale ids", len(pinned), len(skipped)),
		"ok", map[string]any{"skipped": skipped}, time.Since(start))

	// Stage 2: collect the unpinned candidate pool.
	start = time.Now()
	pinnedIDs := make(map[string]struct{}, len(pinned))
	for _, it := range pinned {
		pinnedIDs[it.res.Object.ID] = struct{}{}
	}
	var pool []models.Object
	for _, id := range reg.IDs() {
		obj := reg.Get(id)
		if !obj.IsIdentity() {
			continue
		}
		if _, isPinned := pinnedIDs[obj.ID]; isPinned {
			continue
		}
		pool = append(pool, *obj)
	}
	trace.addTimed("candidates",
		fmt.Sprintf("%d unpinned notes available as fill candidates", len(pool)),
		"ok", nil, time.Since(start))

	// Stage 3: rank pins by score (stable on ties, insertion order), then
	// pad to budget from the pool in registry iteration order at score 0.
	start = time.Now()
	sort.SliceStable(pinned, func(i, j int) bool {
		return pinned[i].score > pinned[j].score
	})
	selected := pinned
	if len(selected) > budget {
		selected = selected[:budget]
	}
	fillerCount := 0
	for _, obj := range pool {
		if len(selected) >= budget {
			break
		}
		selected = append(selected, item{
			res:    temporal.Resolution{Object: obj, BaseTitle: obj.Title, BaseGist: obj.Gist},
			filler: true,
		})
		fillerCount++
	}
	trace.addTimed("rank",
		fmt.Sprintf("selected %d items (%d pinned, %d filler) within budget %d",
			len(selected), len(selected)-fillerCount, fillerCount, budget),
		"ok", nil, time.Since(start))

	// Stage 4: format.
	start = time.Now()
	blocks := make([]string, len(selected))
	for i, it := range selected {
		blocks[i] = formatBlock(it)
	}
	text := strings.Join(blocks, "\n\n")
	trace.addTimed("format", fmt.Sprintf("rendered %d blocks", len(blocks)), "ok", nil, time.Since(start))

	// Stage 5: metrics.
	metrics := Metrics{
		ApproxTokens:   len(text) / 4,
		SelectedCount:  len(selected),
		CandidateCount: len(pool),
	}
	if denom := len(pinned) + len(pool); denom > 0 {
		metrics.Utilization = float64(len(selected)) / float64(denom)
	}
	trace.add("metrics",
		fmt.Sprintf("~%d tokens, utilization %.2f", metrics.ApproxTokens, metrics.Utilization),
		"ok", metrics)

	return Result{Text: text, Metrics: metrics, Trace: trace.entries}
}

// resolveMention fetches a mention's object, applying per-mention temporal
// resolution when a target instant is given. parentID, when set, is used to
// derive the child's relation label from the linking verb.
func resolveMention(reg *registry.Registry, m Mention, parentID string) (item, bool) {
	instant := temporal.Latest()
	if m.TargetInstant != nil {
		instant = *m.TargetInstant
	}
	res, ok := temporal.ResolveOne(reg, m.ID, instant)
	if !ok {
		return item{}, false
	}
	it := item{res: res, score: clampScore(m.Score)}
	if parentID != "" {
		it.relation = relationTo(reg, parentID, m.ID)
	}
	return it, true
}

// relationTo returns the verb of a link from parent to child (or the
// inverse verb of a link the other way), empty when the pair is unlinked.
func relationTo(reg *registry.Registry, parentID, childID string) string {
	for _, l := range reg.LinksTouching(parentID) {
		if l.SourceID == parentID && l.TargetID == childID {
			return l.Verb
		}
		if l.SourceID == childID && l.TargetID == parentID && l.VerbInverse != "" {
			return l.VerbInverse
		}
	}
	return ""
}

// formatBlock renders one selected item. Time-sliced mentions render as a
// multi-line block keeping the base identity visible next to the snapshot
// state instead of silently substituting it.
func formatBlock(it item) string {
	title := it.res.Object.DisplayTitle()
	head := fmt.Sprintf("[IMP: %02d] %s", it.score, title)
	if it.relation != "" {
		head = fmt.Sprintf("[IMP: %02d] %s (%s)", it.score, title, it.relation)
	}
	if !it.res.Sliced {
		if gist := it.res.Object.Gist; gist != "" {
			return head + ": " + gist
		}
		return head
	}
	base := fmt.Sprintf("[IMP: %02d] %s", it.score, it.res.BaseTitle)
	if it.relation != "" {
		base = fmt.Sprintf("[IMP: %02d] %s (%s)", it.score, it.res.BaseTitle, it.relation)
	}
	if it.res.BaseGist != "" {
		base += ": " + it.res.BaseGist
	}
	era := it.res.Era
	if era == "" {
		era = "snapshot"
	}
	slice := fmt.Sprintf("  as of %s: %s", era, it.res.Object.Title)
	if it.res.Object.Gist != "" {
		slice += ": " + it.res.Object.Gist
	}
	return base + "\n" + slice
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
