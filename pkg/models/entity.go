package models

import (
	"time"
)

// EntityType tags the variant carried by an Entity.
type EntityType string

const (
	EntityTypeContainer EntityType = "container"
	EntityTypeResource  EntityType = "resource"
)

// Entity is a single member of an enumeration stream: either a Container or a Resource.
type Entity interface {
	GetEntityID() string
	GetEntityType() EntityType
	GetBreadcrumbs() []Breadcrumb
}

// Breadcrumb is one ancestor reference. Drive enumeration leaves the list empty.
type Breadcrumb struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

// Container represents a shared drive.
type Container struct {
	EntityID    string       `json:"entity_id"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`

	DriveID     string     `json:"drive_id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind,omitempty"`
	ColorRGB    string     `json:"color_rgb,omitempty"`
	CreatedTime *time.Time `json:"created_time,omitempty"`
	Hidden      bool       `json:"hidden"`
	OrgUnitID   string     `json:"org_unit_id,omitempty"`
}

func (c *Container) GetEntityID() string          { return c.EntityID }
func (c *Container) GetEntityType() EntityType    { return EntityTypeContainer }
func (c *Container) GetBreadcrumbs() []Breadcrumb { return c.Breadcrumbs }

// FetchMode says how a resource's bytes are retrieved.
type FetchMode string

const (
	// FetchModeExport converts a Google-native document into a portable format.
	FetchModeExport FetchMode = "export"
	// FetchModeDirect downloads the stored bytes as-is.
	FetchModeDirect FetchMode = "direct"
)

// FetchReference is a resolved download URL plus the mode it was built for.
type FetchReference struct {
	URL  string    `json:"url"`
	Mode FetchMode `json:"mode"`
}

// IsZero reports whether the reference is absent.
func (f FetchReference) IsZero() bool {
	return f.URL == ""
}

// Owner is a file owner as reported by the Drive API.
type Owner struct {
	DisplayName  string `json:"display_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	PermissionID string `json:"permission_id,omitempty"`
	Me           bool   `json:"me,omitempty"`
}

// Resource represents a single file with a fetchable byte stream.
type Resource struct {
	EntityID    string       `json:"entity_id"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`

	FileID            string     `json:"file_id"`
	Name              string     `json:"name"`
	MimeType          string     `json:"mime_type"`
	Description       string     `json:"description,omitempty"`
	Starred           bool       `json:"starred"`
	Trashed           bool       `json:"trashed"`
	ExplicitlyTrashed bool       `json:"explicitly_trashed"`
	Shared            bool       `json:"shared"`
	Parents           []string   `json:"parents"`
	Owners            []Owner    `json:"owners"`
	WebViewLink       string     `json:"web_view_link,omitempty"`
	IconLink          string     `json:"icon_link,omitempty"`
	CreatedTime       *time.Time `json:"created_time,omitempty"`
	ModifiedTime      *time.Time `json:"modified_time,omitempty"`
	// Size is nil when the API reports no size (e.g. Google-native documents).
	Size        *int64 `json:"size,omitempty"`
	MD5Checksum string `json:"md5_checksum,omitempty"`

	Fetch FetchReference `json:"fetch"`
}

func (r *Resource) GetEntityID() string          { return r.EntityID }
func (r *Resource) GetEntityType() EntityType    { return EntityTypeResource }
func (r *Resource) GetBreadcrumbs() []Breadcrumb { return r.Breadcrumbs }

var (
	_ Entity = (*Container)(nil)
	_ Entity = (*Resource)(nil)
)
