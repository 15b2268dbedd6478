package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"net/url"
)

const (
	pageSize = "100"

	// folderExclusionQuery keeps folders out of every file listing.
	folderExclusionQuery = "mimeType != '" + MimeTypeFolder + "'"

	fileListFields = "nextPageToken, files(id, name, mimeType, description, starred, trashed, " +
		"explicitlyTrashed, parents, owners, shared, webViewLink, iconLink, createdTime, " +
		"modifiedTime, size, md5Checksum, webContentLink)"

	nodeFields = "id,name,parents,mimeType"

	rootFolderID = "root"
)

// Paginate lists endpoint page by page, yielding each element of the top-level
// array field decoded as T, in server order. The continuation token of each
// page is sent as pageToken on the next request; the sequence ends when a page
// carries no token. A failed fetch or decode is yielded once and ends the sequence.
func Paginate[T any](ctx context.Context, f Fetcher, endpoint string, params url.Values, field string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		// Private copy: the caller's params are reused across listings.
		query := maps.Clone(params)
		if query == nil {
			query = url.Values{}
		}

		for {
			obj, err := f.Fetch(ctx, endpoint, query)
			if err != nil {
				yield(zero, err)

				return
			}

			var items []json.RawMessage
			if raw, ok := obj[field]; ok {
				if err := json.Unmarshal(raw, &items); err != nil {
					yield(zero, fmt.Errorf("failed to decode %q from %s: %w", field, endpoint, err))

					return
				}
			}

			for _, raw := range items {
				var item T
				if err := json.Unmarshal(raw, &item); err != nil {
					yield(zero, fmt.Errorf("failed to decode %s item: %w", field, err))

					return
				}

				if !yield(item, nil) {
					return
				}
			}

			next, err := nextPageToken(obj)
			if err != nil {
				yield(zero, err)

				return
			}

			if next == "" {
				return
			}

			query.Set("pageToken", next)
		}
	}
}

func nextPageToken(obj Object) (string, error) {
	raw, ok := obj["nextPageToken"]
	if !ok {
		return "", nil
	}

	var token *string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", fmt.Errorf("failed to decode nextPageToken: %w", err)
	}

	if token == nil {
		return "", nil
	}

	return *token, nil
}

// driveListParams are the fixed parameters of drives.list.
func driveListParams() url.Values {
	return url.Values{"pageSize": {pageSize}}
}

// fileScope selects which corpus a file listing covers.
type fileScope struct {
	// DriveID is empty for the user's own corpus.
	DriveID string
}

func (s fileScope) String() string {
	if s.DriveID == "" {
		return "MY DRIVE"
	}

	return "drive " + s.DriveID
}

// fileListParams are the parameters of files.list for scope.
func fileListParams(scope fileScope) url.Values {
	params := url.Values{
		"pageSize":          {pageSize},
		"supportsAllDrives": {"true"},
		"q":                 {folderExclusionQuery},
		"fields":            {fileListFields},
	}

	if scope.DriveID != "" {
		params.Set("corpora", "drive")
		params.Set("includeItemsFromAllDrives", "true")
		params.Set("driveId", scope.DriveID)
	} else {
		params.Set("corpora", "user")
		params.Set("includeItemsFromAllDrives", "false")
	}

	return params
}
