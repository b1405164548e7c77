package tagfilter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/ticket-rules/internal/domain"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		tags  []string
		query Query
		want  bool
	}{
		{"all present", []string{"a", "b", "c"}, Query{Mode: ModeAll, Tags: []string{"a", "b"}}, true},
		{"all missing one", []string{"a"}, Query{Mode: ModeAll, Tags: []string{"a", "b"}}, false},
		{"any one present", []string{"a"}, Query{Mode: ModeAny, Tags: []string{"a", "b"}}, true},
		{"any none present", []string{"c"}, Query{Mode: ModeAny, Tags: []string{"a", "b"}}, false},
		{"empty query", []string{"c"}, Query{Mode: ModeAll}, true},
		{"empty query no tags", nil, Query{Mode: ModeAny}, true},
		{"no tags", nil, Query{Mode: ModeAny, Tags: []string{"a"}}, false},
		{"case sensitive", []string{"Network"}, Query{Mode: ModeAny, Tags: []string{"network"}}, false},
		{"zero mode behaves as any", []string{"b"}, Query{Tags: []string{"a", "b"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.tags, tc.query))
		})
	}
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{"": ModeAny, "ANY": ModeAny, "or": ModeAny, "all": ModeAll, " And ": ModeAll} {
		got, err := ParseMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseMode("xor")
	assert.Error(t, err)
}

func TestFilterOrdersByCreation(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	tickets := []domain.Ticket{
		{ID: "c", Tags: []string{"vpn"}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "b", Tags: []string{"vpn", "laptop"}, CreatedAt: base},
		{ID: "a", Tags: []string{"vpn"}, CreatedAt: base},
		{ID: "d", Tags: []string{"printer"}, CreatedAt: base.Add(time.Hour)},
	}

	got := Filter(tickets, Query{Mode: ModeAny, Tags: []string{"vpn"}})
	ids := make([]string, len(got))
	for i := range got {
		ids[i] = got[i].ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	assert.Len(t, Filter(tickets, Query{}), 4)
	assert.Len(t, Filter(tickets, Query{Mode: ModeAll, Tags: []string{"vpn", "laptop"}}), 1)
	assert.Equal(t, "c", tickets[0].ID)
}
