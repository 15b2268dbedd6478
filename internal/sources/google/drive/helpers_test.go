package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const testBaseURL = "https://drive.test/drive/v3"

var testEndpoints = NewEndpoints(testBaseURL)

type fetchCall struct {
	endpoint string
	params   url.Values
}

// fakeAPI is an in-memory Drive API. Pages are selected by pageToken
// "page-N"; a missing token selects page 0.
type fakeAPI struct {
	mu sync.Mutex

	drivePages []Object
	// filePages is keyed by driveId; "" is the user corpus.
	filePages map[string][]Object
	listErrs  map[string]error
	nodes     map[string]Object
	nodeErrs  map[string]error

	calls      []fetchCall
	missingQ   bool
	idleClosed bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		filePages: make(map[string][]Object),
		listErrs:  make(map[string]error),
		nodes:     make(map[string]Object),
		nodeErrs:  make(map[string]error),
	}
}

func (f *fakeAPI) Fetch(_ context.Context, endpoint string, params url.Values) (Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, fetchCall{endpoint: endpoint, params: cloneValues(params)})

	switch {
	case endpoint == testEndpoints.Drives:
		return pageAt(f.drivePages, params, "drives")
	case endpoint == testEndpoints.Files:
		if params.Get("q") != folderExclusionQuery {
			f.missingQ = true
		}

		driveID := params.Get("driveId")
		if err := f.listErrs[driveID]; err != nil {
			return nil, err
		}

		return pageAt(f.filePages[driveID], params, "files")
	case strings.HasPrefix(endpoint, testEndpoints.Files+"/"):
		id, err := url.PathUnescape(strings.TrimPrefix(endpoint, testEndpoints.Files+"/"))
		if err != nil {
			return nil, err
		}

		if err := f.nodeErrs[id]; err != nil {
			return nil, err
		}

		rec, ok := f.nodes[id]
		if !ok {
			return nil, fmt.Errorf("node %s not found", id)
		}

		return rec, nil
	default:
		return nil, fmt.Errorf("unexpected endpoint %s", endpoint)
	}
}

func (f *fakeAPI) CloseIdleConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.idleClosed = true
}

// fileListCalls returns the driveId of every files.list call ("" = user corpus).
func (f *fakeAPI) fileListCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string

	for _, c := range f.calls {
		if c.endpoint == testEndpoints.Files {
			out = append(out, c.params.Get("driveId"))
		}
	}

	return out
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func pageAt(pages []Object, params url.Values, field string) (Object, error) {
	idx := 0

	if token := params.Get("pageToken"); token != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(token, "page-"))
		if err != nil {
			return nil, fmt.Errorf("bad page token %q", token)
		}

		idx = n
	}

	if len(pages) == 0 && idx == 0 {
		return mustObject(map[string]any{field: []any{}}), nil
	}

	if idx >= len(pages) {
		return nil, errors.New("page out of range")
	}

	return pages[idx], nil
}

// listPages splits items into pages of size n, chaining "page-N" tokens.
func listPages(field string, n int, items ...any) []Object {
	var pages []Object

	for start := 0; start < len(items) || start == 0; start += n {
		end := min(start+n, len(items))

		page := map[string]any{field: items[start:end]}
		if end < len(items) {
			page["nextPageToken"] = "page-" + strconv.Itoa(len(pages)+1)
		}

		pages = append(pages, mustObject(page))

		if end >= len(items) {
			break
		}
	}

	return pages
}

func mustObject(v any) Object {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		panic(err)
	}

	return obj
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}

	return out
}

func file(id, name, mimeType string, parents ...string) map[string]any {
	rec := map[string]any{
		"id":       id,
		"name":     name,
		"mimeType": mimeType,
		"trashed":  false,
	}

	if len(parents) > 0 {
		rec["parents"] = parents
	}

	return rec
}

func node(id, name string, parents ...string) Object {
	rec := map[string]any{
		"id":       id,
		"name":     name,
		"mimeType": MimeTypeFolder,
	}

	if len(parents) > 0 {
		rec["parents"] = parents
	}

	return mustObject(rec)
}

func ptr[T any](v T) *T {
	return &v
}
