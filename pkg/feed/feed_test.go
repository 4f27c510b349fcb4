package feed

import (
	"reflect"
	"testing"
	"time"

	"chatcache/pkg/models"
)

func item(id string, ts int64) models.FeedItem {
	return models.FeedItem{ID: id, Kind: models.FeedItemDiscussion, DiscussionID: id, LastActivityTS: ts}
}

func TestSortsByActivityDescending(t *testing.T) {
	items := []models.FeedItem{item("d1", 5), item("d2", 10)}
	got := ToSortedFeedItems("me", models.MainFeedQuery{}, items, nil, nil)

	if len(got) != 2 || got[0].ID != "d2" || got[1].ID != "d1" {
		t.Fatalf("order = %v", ids(got))
	}
}

func TestDeterministicForSameInput(t *testing.T) {
	items := []models.FeedItem{item("d3", 7), item("d1", 7), item("d2", 9)}
	q := models.MainFeedQuery{Scope: models.ScopeAll}

	a := ToSortedFeedItems("me", q, items, nil, nil)
	b := ToSortedFeedItems("me", q, items, nil, nil)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same input produced different output:\n%v\n%v", a, b)
	}
	// equal timestamps break ties by id
	if got := ids(a); !reflect.DeepEqual(got, []string{"d2", "d1", "d3"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestHiddenFilter(t *testing.T) {
	items := []models.FeedItem{item("d1", 5), item("d2", 10)}
	discussions := map[string]models.Discussion{
		"d1": {ID: "d1", CreatedBy: "x", ArchivedUIDs: map[string]bool{"me": true}},
		"d2": {ID: "d2", CreatedBy: "x"},
	}

	visible := ToSortedFeedItems("me", models.MainFeedQuery{}, items, discussions, nil)
	if got := ids(visible); !reflect.DeepEqual(got, []string{"d2"}) {
		t.Fatalf("visible = %v", got)
	}
	hidden := ToSortedFeedItems("me", models.MainFeedQuery{Hidden: true}, items, discussions, nil)
	if got := ids(hidden); !reflect.DeepEqual(got, []string{"d1"}) {
		t.Fatalf("hidden = %v", got)
	}
}

func TestArchivedIsPerViewer(t *testing.T) {
	items := []models.FeedItem{item("d1", 5)}
	discussions := map[string]models.Discussion{
		"d1": {ID: "d1", CreatedBy: "x", ArchivedUIDs: map[string]bool{"other": true}},
	}
	got := ToSortedFeedItems("me", models.MainFeedQuery{}, items, discussions, nil)
	if len(got) != 1 {
		t.Fatalf("discussion archived by someone else was hidden from me")
	}
}

func TestGroupScope(t *testing.T) {
	items := []models.FeedItem{item("d1", 5), item("d2", 10), item("d3", 15)}
	discussions := map[string]models.Discussion{
		"d1": {ID: "d1", CreatedBy: "x", GroupID: "g1"},
		"d2": {ID: "d2", CreatedBy: "x", GroupID: "g2"},
		// d3 unknown: fails group scope
	}
	q := models.MainFeedQuery{Scope: models.ScopeGroup, GroupID: "g1"}
	got := ToSortedFeedItems("me", q, items, discussions, nil)
	if got := ids(got); !reflect.DeepEqual(got, []string{"d1"}) {
		t.Fatalf("group scope = %v", got)
	}
}

func TestContactScope(t *testing.T) {
	items := []models.FeedItem{item("from-c1", 5), item("from-c2", 10), item("dm-with-c2", 15)}
	discussions := map[string]models.Discussion{
		"from-c1":    {ID: "from-c1", CreatedBy: "c1"},
		"from-c2":    {ID: "from-c2", CreatedBy: "c2"},
		"dm-with-c2": {ID: "dm-with-c2", CreatedBy: "me"},
	}
	q := models.MainFeedQuery{Scope: models.ScopeContact, ContactID: "c1"}
	got := ToSortedFeedItems("me", q, items, discussions, nil)
	if got := ids(got); !reflect.DeepEqual(got, []string{"from-c1"}) {
		t.Fatalf("contact scope = %v", got)
	}
}

func TestContactScopeExcludesViewerCreated(t *testing.T) {
	// a viewer-created DM must not leak into every contact's scope
	items := []models.FeedItem{item("dm-with-c2", 15)}
	discussions := map[string]models.Discussion{
		"dm-with-c2": {ID: "dm-with-c2", CreatedBy: "me"},
	}
	q := models.MainFeedQuery{Scope: models.ScopeContact, ContactID: "c1"}
	if got := ToSortedFeedItems("me", q, items, discussions, nil); len(got) != 0 {
		t.Fatalf("viewer-created discussion leaked into contact scope: %v", ids(got))
	}
}

func TestLocationScope(t *testing.T) {
	items := []models.FeedItem{item("d1", 5), item("d2", 10)}
	discussions := map[string]models.Discussion{
		"d1": {ID: "d1", CreatedBy: "x", LocationID: "loc1"},
		"d2": {ID: "d2", CreatedBy: "x", LocationID: "loc2"},
	}
	q := models.MainFeedQuery{Scope: models.ScopeLocation, LocationID: "loc2"}
	got := ToSortedFeedItems("me", q, items, discussions, nil)
	if got := ids(got); !reflect.DeepEqual(got, []string{"d2"}) {
		t.Fatalf("location scope = %v", got)
	}
}

func TestSeenAgainstReadMarkers(t *testing.T) {
	items := []models.FeedItem{item("d1", 5), item("d2", 10)}
	markers := map[string]int64{"d1": 5, "d2": 9}

	got := ToSortedFeedItems("me", models.MainFeedQuery{}, items, nil, markers)
	for _, p := range got {
		switch p.ID {
		case "d1":
			if !p.IsSeen {
				t.Fatalf("d1 should be seen (marker == activity)")
			}
		case "d2":
			if p.IsSeen {
				t.Fatalf("d2 should be unseen (marker behind activity)")
			}
		}
	}
}

func TestActiveFeedComposition(t *testing.T) {
	responses := []models.DiscussionResponse{
		{ID: "d1", LastActivityTS: 5},
		{ID: "d2", LastActivityTS: 10},
	}
	got := ToSortedActiveFeedItems("me", models.MainFeedQuery{}, responses, nil, nil)
	if got := ids(got); !reflect.DeepEqual(got, []string{"d2", "d1"}) {
		t.Fatalf("active order = %v", got)
	}
	if got[0].Kind != models.FeedItemDiscussion {
		t.Fatalf("active kind = %q", got[0].Kind)
	}
}

func TestStickyUnseenOverlay(t *testing.T) {
	items := []models.FeedItem{item("d1", 10)}
	ov := NewUnseenOverlay()

	first := ToSortedFeedItems("me", models.MainFeedQuery{}, items, nil, nil)
	ov.Observe(first)
	if first[0].IsSeen {
		t.Fatalf("expected unseen on first render")
	}

	// a read-marker update would flip the flag; the overlay pins it
	second := ToSortedFeedItems("me", models.MainFeedQuery{}, items, nil, map[string]int64{"d1": 10})
	if !second[0].IsSeen {
		t.Fatalf("expected raw recompute to be seen")
	}
	pinned := ov.Apply(second)
	if pinned[0].IsSeen {
		t.Fatalf("overlay did not pin item unseen")
	}
	// Apply copies; the input stays untouched
	if !second[0].IsSeen {
		t.Fatalf("Apply mutated its input")
	}
	if ov.Len() != 1 {
		t.Fatalf("overlay len = %d", ov.Len())
	}
}

func TestFullFeedDaySeparators(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC).UnixNano()
	day2 := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC).UnixNano()

	items := []Payload{
		{ID: "a", LastActivityTS: day2, IsSeen: true},
		{ID: "b", LastActivityTS: day1, IsSeen: true},
	}
	rows := ToFullFeed(items)

	kinds := rowKinds(rows)
	want := []RowKind{RowDaySeparator, RowItem, RowDaySeparator, RowItem}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("rows = %v, want %v", kinds, want)
	}
	if rows[0].DayTS != time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).UnixNano() {
		t.Fatalf("day separator ts = %d", rows[0].DayTS)
	}
}

func TestFullFeedNewSeparator(t *testing.T) {
	ts := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC).UnixNano()
	items := []Payload{
		{ID: "a", LastActivityTS: ts + 3, IsSeen: false},
		{ID: "b", LastActivityTS: ts + 2, IsSeen: false},
		{ID: "c", LastActivityTS: ts + 1, IsSeen: true},
		{ID: "d", LastActivityTS: ts, IsSeen: true},
	}
	rows := ToFullFeed(items)

	kinds := rowKinds(rows)
	want := []RowKind{RowDaySeparator, RowItem, RowItem, RowNewSeparator, RowItem, RowItem}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("rows = %v, want %v", kinds, want)
	}
}

func TestFullFeedEmpty(t *testing.T) {
	if rows := ToFullFeed(nil); rows != nil {
		t.Fatalf("rows for empty input = %v", rows)
	}
}

func ids(ps []Payload) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func rowKinds(rows []Row) []RowKind {
	out := make([]RowKind, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Kind)
	}
	return out
}
