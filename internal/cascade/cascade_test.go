package cascade

import (
	"testing"
	"time"

	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
	"github.com/aldercy/wyrd/internal/testutil"
)

// fixture builds a small world:
//
//	kingdom contains city, city contains district
//	kingdom -(semantic)-> rival
//	snapshot of city (founding era)
//
// and returns the registry plus the created ids.
type fixture struct {
	reg      *registry.Registry
	kingdom  string
	city     string
	district string
	rival    string
	kc       string // kingdom contains city
	cd       string // city contains district
	kr       string // kingdom -> rival semantic
	snap     string // snapshot of city
}

func build(t *testing.T) fixture {
	t.Helper()
	reg := registry.New()
	kingdom := testutil.Note(t, reg, "Kingdom")
	city := testutil.Note(t, reg, "City")
	district := testutil.Note(t, reg, "District")
	rival := testutil.Note(t, reg, "Rival")
	kc := testutil.Contains(t, reg, kingdom.ID, city.ID)
	cd := testutil.Contains(t, reg, city.ID, district.ID)
	kr := testutil.Link(t, reg, kingdom.ID, rival.ID, "rivals", models.LinkSemantic)
	snap := testutil.Snapshot(t, reg, city.ID, testutil.Day(2020, time.January, 1), time.Time{}, "founding era", "Old City")
	return fixture{
		reg:      reg,
		kingdom:  kingdom.ID,
		city:     city.ID,
		district: district.ID,
		rival:    rival.ID,
		kc:       kc.ID,
		cd:       cd.ID,
		kr:       kr.ID,
		snap:     snap.ID,
	}
}

func has(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}

func TestStructuralOrphanUnparentsChildren(t *testing.T) {
	f := build(t)

	got := Candidates(f.city, f.reg, StructuralOrphan)
	for _, id := range []string{f.city, f.kc, f.cd} {
		if !has(got, id) {
			t.Errorf("orphan delete of city missing %s", id)
		}
	}
	// The child itself survives unparented, and snapshots are a temporal
	// concern only.
	if has(got, f.district) {
		t.Error("orphan delete took the child")
	}
	if has(got, f.snap) {
		t.Error("orphan delete took a snapshot")
	}
	if has(got, f.kingdom) || has(got, f.rival) {
		t.Error("orphan delete reached unrelated nodes")
	}
}

func TestStructuralCascadeTakesDescendants(t *testing.T) {
	f := build(t)

	got := Candidates(f.kingdom, f.reg, StructuralCascade)
	for _, id := range []string{f.kingdom, f.city, f.district, f.kc, f.cd, f.kr} {
		if !has(got, id) {
			t.Errorf("cascade delete missing %s", id)
		}
	}
	if has(got, f.rival) {
		t.Error("cascade took the semantic neighbor itself")
	}
	if has(got, f.snap) {
		t.Error("cascade took a snapshot; that is the holistic profile's job")
	}
}

func TestTemporalCausalProtectsHierarchy(t *testing.T) {
	f := build(t)

	got := Candidates(f.city, f.reg, TemporalCausal)
	if !has(got, f.city) || !has(got, f.snap) {
		t.Fatalf("temporal delete missing node or snapshot: %v", got)
	}
	// Hierarchical links survive a temporal deletion.
	if has(got, f.kc) || has(got, f.cd) {
		t.Error("temporal delete took hierarchical links")
	}
	if has(got, f.district) {
		t.Error("temporal delete followed hierarchy")
	}
}

func TestHolisticIsUnionOfProfiles(t *testing.T) {
	f := build(t)

	holistic := Candidates(f.kingdom, f.reg, Holistic)
	cascade := Candidates(f.kingdom, f.reg, StructuralCascade)
	temporal := Candidates(f.kingdom, f.reg, TemporalCausal)
	orphan := Candidates(f.kingdom, f.reg, StructuralOrphan)

	for id := range cascade {
		if !has(holistic, id) {
			t.Errorf("holistic missing cascade member %s", id)
		}
	}
	for id := range temporal {
		if !has(holistic, id) {
			t.Errorf("holistic missing temporal member %s", id)
		}
	}
	// Profiles nest: orphan is contained in cascade.
	for id := range orphan {
		if !has(cascade, id) {
			t.Errorf("cascade missing orphan member %s", id)
		}
	}
	// Only holistic reaches a descendant's snapshot from the root.
	if !has(holistic, f.snap) {
		t.Error("holistic missed the descendant snapshot")
	}
}

func TestReifiedLinkSweepReachesItsOwnLinks(t *testing.T) {
	reg := registry.New()
	a := testutil.Note(t, reg, "A")
	b := testutil.Note(t, reg, "B")
	note := testutil.Note(t, reg, "Commentary")

	link, err := reg.Upsert(models.NewLink(a.ID, b.ID, "betrays", "", models.LinkSemantic))
	if err != nil {
		t.Fatal(err)
	}
	// Promote and attach a link to the link itself.
	link.Kind = models.KindReifiedLink
	link.Title = "The Betrayal"
	if _, err := reg.Upsert(link); err != nil {
		t.Fatal(err)
	}
	meta := testutil.Link(t, reg, note.ID, link.ID, "describes", models.LinkSemantic)

	got := Candidates(a.ID, reg, StructuralOrphan)
	if !has(got, link.ID) {
		t.Fatal("sweep missed the reified link")
	}
	// The fixpoint takes the second-order link touching the deleted link.
	if !has(got, meta.ID) {
		t.Error("sweep missed the link onto the reified link")
	}
	if has(got, note.ID) || has(got, b.ID) {
		t.Error("sweep overreached into surviving identities")
	}
}

func TestSweepRecursesThroughLinkSnapshots(t *testing.T) {
	reg := registry.New()
	empress := testutil.Note(t, reg, "Empress")
	usurper := testutil.Note(t, reg, "Usurper")
	pact := testutil.Link(t, reg, empress.ID, usurper.ID, "allies with", models.LinkSemantic)
	first := testutil.Snapshot(t, reg, pact.ID, testutil.Day(2019, time.March, 1), time.Time{}, "first pact", "Uneasy Truce")
	second := testutil.Snapshot(t, reg, first.ID, testutil.Day(2021, time.March, 1), time.Time{}, "revision", "Broken Truce")

	got := Candidates(empress.ID, reg, TemporalCausal)
	if !has(got, pact.ID) {
		t.Fatal("sweep missed the link touching the deleted identity")
	}
	if !has(got, first.ID) {
		t.Fatal("sweep missed the swept link's snapshot")
	}
	// Snapshots of a swept link can parent snapshots of their own; the
	// closure follows that chain.
	if !has(got, second.ID) {
		t.Error("closure stopped one level into the snapshot chain")
	}
	if has(got, usurper.ID) {
		t.Error("sweep overreached into the surviving endpoint")
	}
}

func TestCandidatesAbsentOrInvalid(t *testing.T) {
	f := build(t)

	if got := Candidates("ghost", f.reg, StructuralOrphan); len(got) != 0 {
		t.Errorf("absent id yielded %v", got)
	}
	if got := Candidates(f.city, f.reg, Profile("vengeful")); len(got) != 0 {
		t.Errorf("unknown profile yielded %v", got)
	}
	if Profile("vengeful").Valid() {
		t.Error("unknown profile reported valid")
	}
}
