package drive

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultMaxDepth bounds the number of parent lookups per file.
	DefaultMaxDepth = 20

	rootFallbackName = "My Drive"
)

// PathResolver rebuilds a file's logical path by walking parent links upward,
// one files.get per hop. The API only answers "who are my parents", so each
// ancestor costs a request.
type PathResolver struct {
	fetcher  Fetcher
	filesURL string
	maxDepth int
	logger   *zap.Logger
}

// NewPathResolver creates a resolver. maxDepth <= 0 uses DefaultMaxDepth.
func NewPathResolver(f Fetcher, filesURL string, maxDepth int, logger *zap.Logger) *PathResolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &PathResolver{
		fetcher:  f,
		filesURL: filesURL,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Resolve returns the slash-joined path of rec. It never fails: a lookup error
// stops the ascent and the prefix resolved so far is used.
func (r *PathResolver) Resolve(ctx context.Context, rec FileRecord) string {
	name := rec.DisplayName("")
	parts := []string{name}

	if len(rec.Parents) == 0 {
		r.logger.Debug("No parents found for file", zap.String("name", name), zap.String("id", rec.ID))

		return name
	}

	current := rec.Parents[0]

	for depth := 0; current != "" && depth < r.maxDepth; depth++ {
		node, err := r.node(ctx, current)
		if err != nil {
			r.logger.Error("Error retrieving parent folder",
				zap.String("folder_id", current),
				zap.String("file_id", rec.ID),
				zap.Error(err))

			break
		}

		if node.ID == rootFolderID || len(node.Parents) == 0 {
			rootName := node.Name
			if rootName == "" {
				rootName = rootFallbackName
			}

			parts = append(parts, rootName)

			break
		}

		parts = append(parts, node.Name)
		current = node.Parents[0]
	}

	// parts were collected leaf first.
	slices.Reverse(parts)

	path := strings.Join(parts, "/")
	r.logger.Debug("Resolved file path", zap.String("id", rec.ID), zap.String("path", path))

	return path
}

func (r *PathResolver) node(ctx context.Context, id string) (nodeRecord, error) {
	params := url.Values{
		"fields":            {nodeFields},
		"supportsAllDrives": {"true"},
	}

	obj, err := r.fetcher.Fetch(ctx, r.filesURL+"/"+url.PathEscape(id), params)
	if err != nil {
		return nodeRecord{}, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nodeRecord{}, err
	}

	var node nodeRecord
	if err := json.Unmarshal(raw, &node); err != nil {
		return nodeRecord{}, err
	}

	return node, nil
}
