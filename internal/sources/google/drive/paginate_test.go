package drive

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type numberItem struct {
	N int `json:"n"`
}

// pagedFetcher serves fixed pages for a single endpoint.
type pagedFetcher struct {
	pages []Object
	err   error
	errAt int
	calls []url.Values
}

func (p *pagedFetcher) Fetch(_ context.Context, _ string, params url.Values) (Object, error) {
	p.calls = append(p.calls, cloneValues(params))

	if p.err != nil && len(p.calls) == p.errAt {
		return nil, p.err
	}

	return pageAt(p.pages, params, "items")
}

func items(ns ...int) []any {
	out := make([]any, 0, len(ns))
	for _, n := range ns {
		out = append(out, map[string]int{"n": n})
	}

	return out
}

func collect[T any](t *testing.T, seq iter.Seq2[T, error]) ([]T, error) {
	t.Helper()

	var out []T

	for v, err := range seq {
		if err != nil {
			return out, err
		}

		out = append(out, v)
	}

	return out, nil
}

func TestPaginate_ConcatenatesPagesInOrder(t *testing.T) {
	f := &pagedFetcher{pages: listPages("items", 2, items(1, 2, 3, 4, 5)...)}
	params := url.Values{"pageSize": {"2"}}

	got, err := collect(t, Paginate[numberItem](context.Background(), f, "https://x/items", params, "items"))
	require.NoError(t, err)

	assert.Equal(t, []numberItem{{1}, {2}, {3}, {4}, {5}}, got)
	require.Len(t, f.calls, 3)

	// Each continuation token is sent exactly once, on the following request.
	assert.Empty(t, f.calls[0].Get("pageToken"))
	assert.Equal(t, "page-1", f.calls[1].Get("pageToken"))
	assert.Equal(t, "page-2", f.calls[2].Get("pageToken"))

	for _, call := range f.calls {
		assert.Equal(t, "2", call.Get("pageSize"))
	}

	// The caller's params are not modified.
	assert.Empty(t, params.Get("pageToken"))
}

func TestPaginate_EmptyAndMissingField(t *testing.T) {
	tests := []struct {
		name string
		page Object
	}{
		{name: "empty array", page: mustObject(map[string]any{"items": []any{}})},
		{name: "missing field", page: mustObject(map[string]any{"kind": "drive#list"})},
		{name: "null token", page: mustObject(map[string]any{"items": []any{}, "nextPageToken": nil})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &pagedFetcher{pages: []Object{tt.page}}

			got, err := collect(t, Paginate[numberItem](context.Background(), f, "https://x/items", nil, "items"))
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Len(t, f.calls, 1)
		})
	}
}

func TestPaginate_FetchErrorEndsSequence(t *testing.T) {
	boom := errors.New("boom")
	f := &pagedFetcher{pages: listPages("items", 1, items(1, 2, 3)...), err: boom, errAt: 2}

	var (
		got    []numberItem
		errs   []error
		rounds int
	)

	for v, err := range Paginate[numberItem](context.Background(), f, "https://x/items", nil, "items") {
		rounds++

		if err != nil {
			errs = append(errs, err)

			continue
		}

		got = append(got, v)
	}

	assert.Equal(t, []numberItem{{1}}, got)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	assert.Equal(t, 2, rounds)
	assert.Len(t, f.calls, 2)
}

func TestPaginate_DecodeError(t *testing.T) {
	f := &pagedFetcher{pages: []Object{mustObject(map[string]any{"items": []any{"not-an-object"}})}}

	_, err := collect(t, Paginate[numberItem](context.Background(), f, "https://x/items", nil, "items"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode items item")
}

func TestPaginate_BreakStopsFetching(t *testing.T) {
	f := &pagedFetcher{pages: listPages("items", 2, items(1, 2, 3, 4)...)}

	for v, err := range Paginate[numberItem](context.Background(), f, "https://x/items", nil, "items") {
		require.NoError(t, err)
		assert.Equal(t, 1, v.N)

		break
	}

	assert.Len(t, f.calls, 1)
}

func TestFileListParams(t *testing.T) {
	shared := fileListParams(fileScope{DriveID: "d1"})
	assert.Equal(t, "drive", shared.Get("corpora"))
	assert.Equal(t, "true", shared.Get("includeItemsFromAllDrives"))
	assert.Equal(t, "true", shared.Get("supportsAllDrives"))
	assert.Equal(t, "d1", shared.Get("driveId"))
	assert.Equal(t, "100", shared.Get("pageSize"))
	assert.Equal(t, "mimeType != 'application/vnd.google-apps.folder'", shared.Get("q"))
	assert.Contains(t, shared.Get("fields"), "nextPageToken")
	assert.Contains(t, shared.Get("fields"), "md5Checksum")

	user := fileListParams(fileScope{})
	assert.Equal(t, "user", user.Get("corpora"))
	assert.Equal(t, "false", user.Get("includeItemsFromAllDrives"))
	assert.Equal(t, "true", user.Get("supportsAllDrives"))
	assert.False(t, user.Has("driveId"))
	assert.Equal(t, shared.Get("q"), user.Get("q"))

	assert.Equal(t, "drive d1", fileScope{DriveID: "d1"}.String())
	assert.Equal(t, "MY DRIVE", fileScope{}.String())
}
