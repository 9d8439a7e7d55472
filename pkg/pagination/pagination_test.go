package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		page    int
		perPage int
		offset  int
	}{
		{name: "defaults", query: "", page: 1, perPage: 20, offset: 0},
		{name: "custom", query: "?page=3&per_page=50", page: 3, perPage: 50, offset: 100},
		{name: "negative page", query: "?page=-1", page: 1, perPage: 20, offset: 0},
		{name: "zero page", query: "?page=0", page: 1, perPage: 20, offset: 0},
		{name: "page not a number", query: "?page=abc", page: 1, perPage: 20, offset: 0},
		{name: "per page over cap", query: "?per_page=200", page: 1, perPage: 20, offset: 0},
		{name: "per page at cap", query: "?page=2&per_page=100", page: 2, perPage: 100, offset: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest(http.MethodGet, "/api/v1/orders"+tt.query, nil))
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestSlice_MiddlePage(t *testing.T) {
	all := []int{1, 2, 3, 4, 5, 6, 7}

	res := Slice(all, Params{Page: 2, PerPage: 3, Offset: 3})
	assert.Equal(t, []int{4, 5, 6}, res.Items)
	assert.Equal(t, 7, res.TotalCount)
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNext)
	assert.True(t, res.HasPrev)
}

func TestSlice_LastPartialPage(t *testing.T) {
	res := Slice([]string{"a", "b", "c"}, Params{Page: 2, PerPage: 2, Offset: 2})
	assert.Equal(t, []string{"c"}, res.Items)
	assert.False(t, res.HasNext)
}

func TestSlice_PastTheEnd(t *testing.T) {
	res := Slice([]string{"a"}, Params{Page: 5, PerPage: 20, Offset: 80})
	require.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, 1, res.TotalPages)
}

func TestSlice_Empty(t *testing.T) {
	res := Slice[int](nil, DefaultParams())
	require.NotNil(t, res.Items)
	assert.Equal(t, 0, res.TotalPages)
	assert.False(t, res.HasNext)
	assert.False(t, res.HasPrev)
}

func TestSlice_DoesNotAliasInput(t *testing.T) {
	all := []int{1, 2, 3}
	res := Slice(all, DefaultParams())
	res.Items[0] = 99
	assert.Equal(t, 1, all[0])
}

func TestSlice_ZeroParamsUseDefaults(t *testing.T) {
	res := Slice([]int{1, 2}, Params{})
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PerPage)
	assert.Len(t, res.Items, 2)
}
