package listing

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/eventroom/internal/event"
)

var (
	jazz = ev("jazz", "Jazz Night", "Lagos", event.CategoryMusic, "2025-08-01")
	tech = ev("tech", "Tech Talk", "Abuja", event.CategoryTech, "2025-07-01")
)

func TestReduce_AllByDate(t *testing.T) {
	got := Reduce([]event.Event{jazz, tech}, Query{Category: "All", Search: "", Sort: SortDate})
	assert.Equal(t, []string{"tech", "jazz"}, ids(got))
}

func TestReduce_CategoryMusic(t *testing.T) {
	got := Reduce([]event.Event{jazz, tech}, Query{Category: "Music", Sort: SortDate})
	assert.Equal(t, []string{"jazz"}, ids(got))
}

func TestReduce_CategoryIsCaseSensitive(t *testing.T) {
	got := Reduce([]event.Event{jazz, tech}, Query{Category: "music", Sort: SortDate})
	assert.Empty(t, got)
}

func TestReduce_Empty(t *testing.T) {
	got := Reduce(nil, DefaultQuery())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReduce_Search(t *testing.T) {
	events := []event.Event{jazz, tech, ev("run", "Run Club", "lagos island", event.CategorySports, "2025-09-01")}

	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{"title case-insensitive", "JAZZ", []string{"jazz"}},
		{"location substring", "lagos", []string{"jazz", "run"}},
		{"blank is no filter", "   ", []string{"tech", "jazz", "run"}},
		{"no match", "opera", []string{}},
		{"untrimmed needle", "talk ", []string{}},
		{"inner space", "k t", []string{}},
		{"title with space", "h t", []string{"tech"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(events, Query{Category: "All", Search: tt.search, Sort: SortDate})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestReduce_SearchNormalizesAccents(t *testing.T) {
	decomposed := ev("cafe", "Cafe\u0301 Meetup", "Kano", event.CategorySocial, "2025-01-01")
	got := Reduce([]event.Event{decomposed}, Query{Search: "CAF\u00c9"})
	assert.Equal(t, []string{"cafe"}, ids(got))
}

func TestReduce_SortTitleAndLocation(t *testing.T) {
	events := []event.Event{
		ev("b", "beta", "Zaria", event.CategoryTech, "2025-01-01"),
		ev("a", "Alpha", "kano", event.CategoryTech, "2025-03-01"),
		ev("c", "Ábaco", "Abuja", event.CategoryTech, "2025-02-01"),
	}

	byTitle := Reduce(events, Query{Sort: SortTitle})
	assert.Equal(t, []string{"c", "a", "b"}, ids(byTitle), "accented and lowercase titles collate, not byte-compare")

	byLocation := Reduce(events, Query{Sort: SortLocation})
	assert.Equal(t, []string{"c", "a", "b"}, ids(byLocation))
}

func TestReduce_TitleTiesFallBackToDate(t *testing.T) {
	events := []event.Event{
		ev("late", "Same", "x", event.CategoryTech, "2025-05-01"),
		ev("early", "Same", "y", event.CategoryTech, "2025-01-01"),
	}
	assert.Equal(t, []string{"early", "late"}, ids(Reduce(events, Query{Sort: SortTitle})))
}

func TestReduce_UnknownSortKeyUsesDate(t *testing.T) {
	got := Reduce([]event.Event{jazz, tech}, Query{Sort: "popularity"})
	assert.Equal(t, []string{"tech", "jazz"}, ids(got))
}

func TestParseSortKey(t *testing.T) {
	for _, k := range SortKeys {
		got, err := ParseSortKey(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseSortKey("popularity")
	assert.True(t, event.IsCode(err, event.ErrCodeInvalidInput))
	_, err = ParseSortKey("Date")
	assert.Error(t, err, "keys are case-sensitive")
}

func TestReduce_DegenerateRecords(t *testing.T) {
	events := []event.Event{
		jazz,
		{ID: "nodate", Title: "Mystery", Location: "Lagos"},
		{ID: "baddate", Title: "Mystery 2", Location: "Lagos", Date: "soon"},
		{ID: "bare"},
		tech,
	}

	byDate := Reduce(events, DefaultQuery())
	assert.Equal(t, []string{"nodate", "baddate", "bare", "tech", "jazz"}, ids(byDate),
		"invalid dates sort first, keeping input order")

	byTitle := Reduce(events, Query{Sort: SortTitle})
	assert.Equal(t, "bare", byTitle[0].ID, "missing title sorts as empty string")

	searched := Reduce(events, Query{Search: "lagos"})
	assert.Equal(t, []string{"nodate", "baddate", "jazz"}, ids(searched))
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	events := []event.Event{jazz, tech}
	_ = Reduce(events, Query{Sort: SortTitle})
	assert.Equal(t, []string{"jazz", "tech"}, ids(events))
}

func TestReduce_Idempotent(t *testing.T) {
	r := rand.New(seeded(1))
	queries := []Query{
		DefaultQuery(),
		{Category: "Music", Sort: SortTitle},
		{Category: "All", Search: "a", Sort: SortLocation},
		{Category: "Tech", Search: "lagos", Sort: SortDate},
	}

	for i := 0; i < 50; i++ {
		events := randomEvents(r, r.IntN(40))
		for _, q := range queries {
			once := Reduce(events, q)
			twice := Reduce(once, q)
			require.Equal(t, ids(once), ids(twice), "query %+v", q)
		}
	}
}

func TestReduce_Deterministic(t *testing.T) {
	events := randomEvents(rand.New(seeded(2)), 60)
	q := Query{Category: "All", Sort: SortTitle}
	assert.Equal(t, ids(Reduce(events, q)), ids(Reduce(events, q)))
}

func TestReduce_TitleOrderProperty(t *testing.T) {
	r := rand.New(seeded(3))
	col := collate.New(language.Und)

	for i := 0; i < 30; i++ {
		got := Reduce(randomEvents(r, 30), Query{Sort: SortTitle})
		for j := 1; j < len(got); j++ {
			assert.LessOrEqual(t, col.CompareString(got[j-1].Title, got[j].Title), 0)
		}
	}
}

func TestEngine_Locale(t *testing.T) {
	events := []event.Event{
		ev("o", "öl", "x", event.CategoryTech, "2025-01-01"),
		ev("z", "zebra", "x", event.CategoryTech, "2025-01-01"),
	}

	german := NewEngine(language.German).Reduce(events, Query{Sort: SortTitle})
	assert.Equal(t, []string{"o", "z"}, ids(german))

	swedish := NewEngine(language.Swedish).Reduce(events, Query{Sort: SortTitle})
	assert.Equal(t, []string{"z", "o"}, ids(swedish), "ö sorts after z in Swedish")
}

func TestCompareDates(t *testing.T) {
	valid := event.Event{Date: "2025-01-01"}
	invalid := event.Event{Date: "nope"}

	assert.Equal(t, -1, CompareDates(invalid, valid))
	assert.Equal(t, 1, CompareDates(valid, invalid))
	assert.Equal(t, 0, CompareDates(invalid, event.Event{}))
	assert.True(t, slices.IsSortedFunc([]event.Event{invalid, valid}, CompareDates))
}
