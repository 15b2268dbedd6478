package drive

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"driveindex/pkg/models"
)

const untitledName = "Untitled"

// IsGoogleNative reports whether mimeType is a Google Workspace type that has
// no stored bytes and must be exported.
func IsGoogleNative(mimeType string) bool {
	return strings.HasPrefix(mimeType, googleNativePrefix)
}

// FetchReferenceFor decides how rec's bytes are retrieved. Google-native files
// are exported to ExportMimeType; other files are downloaded directly unless
// trashed. A trashed non-native file has no reference (zero value).
func FetchReferenceFor(rec FileRecord, filesURL string) models.FetchReference {
	fileURL := filesURL + "/" + url.PathEscape(rec.ID)

	switch {
	case IsGoogleNative(rec.MimeType):
		return models.FetchReference{
			URL:  fileURL + "/export?mimeType=" + ExportMimeType,
			Mode: models.FetchModeExport,
		}
	case !rec.Trashed:
		return models.FetchReference{
			URL:  fileURL + "?alt=media",
			Mode: models.FetchModeDirect,
		}
	default:
		return models.FetchReference{}
	}
}

// BuildResource maps a file record to a Resource. It returns nil, nil when the
// record has no fetch reference and must not be emitted.
func BuildResource(rec FileRecord, filesURL string) (*models.Resource, error) {
	fetch := FetchReferenceFor(rec, filesURL)
	if fetch.IsZero() {
		return nil, nil
	}

	size, err := parseSize(rec.Size)
	if err != nil {
		return nil, err
	}

	created, err := parseTimestamp("createdTime", rec.CreatedTime)
	if err != nil {
		return nil, err
	}

	modified, err := parseTimestamp("modifiedTime", rec.ModifiedTime)
	if err != nil {
		return nil, err
	}

	parents := rec.Parents
	if parents == nil {
		parents = []string{}
	}

	owners := make([]models.Owner, 0, len(rec.Owners))
	for _, o := range rec.Owners {
		owners = append(owners, models.Owner{
			DisplayName:  o.DisplayName,
			EmailAddress: o.EmailAddress,
			PermissionID: o.PermissionID,
			Me:           o.Me,
		})
	}

	return &models.Resource{
		EntityID:          rec.ID,
		Breadcrumbs:       []models.Breadcrumb{},
		FileID:            rec.ID,
		Name:              rec.DisplayName(untitledName),
		MimeType:          rec.MimeType,
		Description:       rec.Description,
		Starred:           rec.Starred,
		Trashed:           rec.Trashed,
		ExplicitlyTrashed: rec.ExplicitlyTrashed,
		Shared:            rec.Shared,
		Parents:           parents,
		Owners:            owners,
		WebViewLink:       rec.WebViewLink,
		IconLink:          rec.IconLink,
		CreatedTime:       created,
		ModifiedTime:      modified,
		Size:              size,
		MD5Checksum:       rec.MD5Checksum,
		Fetch:             fetch,
	}, nil
}

// BuildContainer maps a shared drive record to a Container.
func BuildContainer(rec DriveRecord) (*models.Container, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("drive record has no id")
	}

	created, err := parseTimestamp("createdTime", rec.CreatedTime)
	if err != nil {
		return nil, fmt.Errorf("drive %s: %w", rec.ID, err)
	}

	return &models.Container{
		EntityID:    rec.ID,
		Breadcrumbs: []models.Breadcrumb{},
		DriveID:     rec.ID,
		Name:        rec.Name,
		Kind:        rec.Kind,
		ColorRGB:    rec.ColorRGB,
		CreatedTime: created,
		Hidden:      rec.Hidden,
		OrgUnitID:   rec.OrgUnitID,
	}, nil
}

func parseSize(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid size %q: %w", raw, err)
	}

	if n < 0 {
		return nil, fmt.Errorf("invalid size %q: negative", raw)
	}

	return &n, nil
}

func parseTimestamp(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}

	return &t, nil
}
