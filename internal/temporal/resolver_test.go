package temporal

import (
	"reflect"
	"testing"
	"time"

	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
	"github.com/aldercy/wyrd/internal/testutil"
)

func TestResolvePicksIntervalForInstant(t *testing.T) {
	reg := registry.New()
	city := testutil.NoteAt(t, reg, "Ashford", testutil.Day(2018, time.January, 1))
	// Two adjacent intervals: [2020, 2022) and [2022, open).
	testutil.Snapshot(t, reg, city.ID,
		testutil.Day(2020, time.January, 1), testutil.Day(2022, time.January, 1),
		"republic era", "Ashford Republic")
	testutil.Snapshot(t, reg, city.ID,
		testutil.Day(2022, time.January, 1), time.Time{},
		"imperial era", "Ashford Imperial")

	cases := []struct {
		name    string
		instant time.Time
		title   string
		sliced  bool
	}{
		{"before any snapshot", testutil.Day(2019, time.June, 1), "Ashford", false},
		{"inside first interval", testutil.Day(2021, time.June, 1), "Ashford Republic", true},
		{"at exclusive boundary", testutil.Day(2022, time.January, 1), "Ashford Imperial", true},
		{"open interval", testutil.Day(2025, time.June, 1), "Ashford Imperial", true},
		{"latest", Latest(), "Ashford Imperial", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := ResolveOne(reg, city.ID, tc.instant)
			if !ok {
				t.Fatal("identity did not resolve")
			}
			if res.Object.Title != tc.title {
				t.Errorf("title = %q, want %q", res.Object.Title, tc.title)
			}
			if res.Sliced != tc.sliced {
				t.Errorf("sliced = %v, want %v", res.Sliced, tc.sliced)
			}
			// The base id never changes under slicing.
			if res.Object.ID != city.ID {
				t.Errorf("id changed to %s", res.Object.ID)
			}
		})
	}
}

func TestResolveKeepsBaseContentAside(t *testing.T) {
	reg := registry.New()
	city := testutil.Note(t, reg, "Ashford")
	testutil.Snapshot(t, reg, city.ID, testutil.Day(2020, time.January, 1), time.Time{}, "late era", "Ruins of Ashford")

	res, ok := ResolveOne(reg, city.ID, Latest())
	if !ok || !res.Sliced {
		t.Fatalf("expected sliced resolution, got ok=%v sliced=%v", ok, res.Sliced)
	}
	if res.BaseTitle != "Ashford" {
		t.Errorf("BaseTitle = %q", res.BaseTitle)
	}
	if res.Era != "late era" {
		t.Errorf("Era = %q", res.Era)
	}
	if res.SnapshotID == "" {
		t.Error("SnapshotID empty")
	}
}

func TestResolveOverlapDeterministicWinnerAndAnnotation(t *testing.T) {
	reg := registry.New()
	city := testutil.Note(t, reg, "Ashford")
	from := testutil.Day(2020, time.January, 1)
	a := testutil.Snapshot(t, reg, city.ID, from, time.Time{}, "era a", "Variant A")
	b := testutil.Snapshot(t, reg, city.ID, from, time.Time{}, "era b", "Variant B")

	winner := a
	if b.ID > a.ID {
		winner = b
	}

	out, notes := Resolve(reg, Latest())
	got := out.Get(city.ID)
	if got == nil {
		t.Fatal("identity missing from resolved registry")
	}
	if got.Title != winner.Title {
		t.Errorf("title = %q, want deterministic winner %q", got.Title, winner.Title)
	}
	if len(notes) != 1 {
		t.Fatalf("annotations = %d, want 1", len(notes))
	}
	if notes[0].IdentityID != city.ID || len(notes[0].SnapshotIDs) != 2 {
		t.Errorf("annotation = %+v", notes[0])
	}

	// Same input, same output, every time.
	for i := 0; i < 5; i++ {
		again, _ := Resolve(reg, Latest())
		if again.Get(city.ID).Title != got.Title {
			t.Fatal("overlap resolution is not deterministic")
		}
	}
}

func TestResolveLaterStartWinsOverlap(t *testing.T) {
	reg := registry.New()
	city := testutil.NoteAt(t, reg, "Ashford", testutil.Day(2018, time.January, 1))
	// [2020, open) overlapped by [2023, open): the later start wins.
	testutil.Snapshot(t, reg, city.ID, testutil.Day(2020, time.January, 1), time.Time{}, "old", "Old State")
	testutil.Snapshot(t, reg, city.ID, testutil.Day(2023, time.January, 1), time.Time{}, "new", "New State")

	res, _ := ResolveOne(reg, city.ID, testutil.Day(2024, time.June, 1))
	if res.Object.Title != "New State" {
		t.Errorf("title = %q, want New State", res.Object.Title)
	}
}

func TestResolveTwiceYieldsIdenticalOutput(t *testing.T) {
	reg := registry.New()
	city := testutil.NoteAt(t, reg, "Ashford", testutil.Day(2018, time.January, 1))
	keep := testutil.NoteAt(t, reg, "Keep", testutil.Day(2018, time.February, 1))
	testutil.Link(t, reg, city.ID, keep.ID, "guards", models.LinkSemantic)
	testutil.Snapshot(t, reg, city.ID, testutil.Day(2020, time.January, 1), time.Time{}, "late era", "Ruins of Ashford")

	first, _ := Resolve(reg, Latest())
	second, _ := Resolve(reg, Latest())
	if !reflect.DeepEqual(first.Export(), second.Export()) {
		t.Fatal("resolving the same registry twice produced different output")
	}

	// Resolved objects carry the envelopes of their sources, not fresh
	// timestamps.
	src := reg.Get(city.ID)
	got := first.Get(city.ID)
	if !got.CreatedAt.Equal(src.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, src.CreatedAt)
	}
	if !got.LastModified.Equal(src.LastModified) {
		t.Errorf("LastModified = %v, want %v", got.LastModified, src.LastModified)
	}
}

func TestResolveIdenticalContentIsNotASlice(t *testing.T) {
	reg := registry.New()
	city := testutil.NoteAt(t, reg, "Ashford", testutil.Day(2018, time.January, 1))
	// The snapshot restates the base content word for word.
	testutil.Snapshot(t, reg, city.ID, testutil.Day(2020, time.January, 1), time.Time{}, "same era", "Ashford")

	res, ok := ResolveOne(reg, city.ID, Latest())
	if !ok {
		t.Fatal("identity did not resolve")
	}
	if res.Sliced {
		t.Error("identical snapshot content reported as a slice")
	}
	if res.Object.Title != "Ashford" {
		t.Errorf("title = %q", res.Object.Title)
	}
}

func TestResolveOmitsUnbornObjects(t *testing.T) {
	reg := registry.New()
	old := models.NewNote("Elder", "")
	old.CreatedAt = testutil.Day(2019, time.January, 1)
	late := models.NewNote("Newcomer", "")
	late.CreatedAt = testutil.Day(2024, time.January, 1)
	link := models.NewLink(old.ID, late.ID, "mentors", "", models.LinkSemantic)
	link.CreatedAt = testutil.Day(2024, time.February, 1)
	if err := reg.UpsertBatch([]models.Object{old, late, link}); err != nil {
		t.Fatal(err)
	}

	out, _ := Resolve(reg, testutil.Day(2020, time.June, 1))
	if out.Get(old.ID) == nil {
		t.Error("existing identity omitted")
	}
	if out.Get(late.ID) != nil {
		t.Error("unborn identity survived")
	}
	if out.Get(link.ID) != nil {
		t.Error("unborn link survived")
	}
}

func TestResolveNeverEmitsSnapshots(t *testing.T) {
	reg := registry.New()
	city := testutil.Note(t, reg, "Ashford")
	snap := testutil.Snapshot(t, reg, city.ID, testutil.Day(2020, time.January, 1), time.Time{}, "era", "State")

	out, _ := Resolve(reg, Latest())
	if out.Get(snap.ID) != nil {
		t.Error("snapshot leaked into resolved registry")
	}
	if out.Len() != 1 {
		t.Errorf("Len = %d, want 1", out.Len())
	}
}

func TestResolveDropsLinksWithDeadEndpoints(t *testing.T) {
	reg := registry.New()
	old := models.NewNote("Elder", "")
	old.CreatedAt = testutil.Day(2019, time.January, 1)
	late := models.NewNote("Newcomer", "")
	late.CreatedAt = testutil.Day(2024, time.January, 1)
	// Link created before one of its endpoints exists at the instant.
	link := models.NewLink(old.ID, late.ID, "mentors", "", models.LinkSemantic)
	link.CreatedAt = testutil.Day(2019, time.June, 1)
	if err := reg.UpsertBatch([]models.Object{old, late, link}); err != nil {
		t.Fatal(err)
	}

	out, _ := Resolve(reg, testutil.Day(2020, time.June, 1))
	if out.Get(link.ID) != nil {
		t.Error("link with a dead endpoint survived")
	}
}

func TestResolveOneRejectsNonIdentities(t *testing.T) {
	reg := registry.New()
	a := testutil.Note(t, reg, "A")
	b := testutil.Note(t, reg, "B")
	link := testutil.Link(t, reg, a.ID, b.ID, "knows", models.LinkSemantic)
	snap := testutil.Snapshot(t, reg, a.ID, testutil.Day(2020, time.January, 1), time.Time{}, "era", "State")

	if _, ok := ResolveOne(reg, link.ID, Latest()); ok {
		t.Error("plain link resolved as identity")
	}
	if _, ok := ResolveOne(reg, snap.ID, Latest()); ok {
		t.Error("snapshot resolved as identity")
	}
	if _, ok := ResolveOne(reg, "ghost", Latest()); ok {
		t.Error("absent id resolved")
	}
}
