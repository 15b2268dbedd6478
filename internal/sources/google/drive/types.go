package drive

import "encoding/json"

// DriveRecord is a shared drive as returned by drives.list.
type DriveRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	ColorRGB    string `json:"colorRgb"`
	CreatedTime string `json:"createdTime"`
	Hidden      bool   `json:"hidden"`
	OrgUnitID   string `json:"orgUnitId"`
}

// FileRecord is a file as returned by files.list with the listing projection.
// Name is a pointer so a missing name can be told apart from an empty one.
type FileRecord struct {
	ID                string        `json:"id"`
	Name              *string       `json:"name"`
	MimeType          string        `json:"mimeType"`
	Description       string        `json:"description"`
	Starred           bool          `json:"starred"`
	Trashed           bool          `json:"trashed"`
	ExplicitlyTrashed bool          `json:"explicitlyTrashed"`
	Parents           []string      `json:"parents"`
	Owners            []OwnerRecord `json:"owners"`
	Shared            bool          `json:"shared"`
	WebViewLink       string        `json:"webViewLink"`
	IconLink          string        `json:"iconLink"`
	CreatedTime       string        `json:"createdTime"`
	ModifiedTime      string        `json:"modifiedTime"`
	// Size is a decimal string in the API; empty when not reported.
	Size           string `json:"size"`
	MD5Checksum    string `json:"md5Checksum"`
	WebContentLink string `json:"webContentLink"`
}

// DisplayName returns the record name, or fallback when the API omitted it.
func (f FileRecord) DisplayName(fallback string) string {
	if f.Name == nil {
		return fallback
	}

	return *f.Name
}

// OwnerRecord is a file owner as returned inside a file record.
type OwnerRecord struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	PermissionID string `json:"permissionId"`
	Me           bool   `json:"me"`
}

// nodeRecord is the minimal metadata fetched while ascending the parent chain.
type nodeRecord struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Parents  []string `json:"parents"`
	MimeType string   `json:"mimeType"`
}

// Object is a decoded top-level JSON object from the Drive API.
type Object map[string]json.RawMessage

// Google Workspace MIME types.
const (
	MimeTypeFolder       = "application/vnd.google-apps.folder"
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"

	googleNativePrefix = "application/vnd.google-apps."
)

// ExportMimeType is the single output format requested for Google-native documents.
const ExportMimeType = "application/pdf"
