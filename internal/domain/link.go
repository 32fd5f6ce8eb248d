package domain

import "time"

// LinkType classifies an outbound link by destination.
type LinkType string

const (
	LinkTypeInternal LinkType = "internal"
	LinkTypeExternal LinkType = "external"
	LinkTypeAsset    LinkType = "asset"
)

// LinkRecord represents one outbound or asset link discovered on a page,
// with its resolved HTTP status. Immutable after creation. A nil StatusCode
// means the check could not reach the destination at all.
type LinkRecord struct {
	ID             string    `db:"id" json:"id"`
	AuditID        string    `db:"audit_id" json:"audit_id"`
	SourcePageID   string    `db:"source_page_id" json:"source_page_id"`
	DestinationURL string    `db:"destination_url" json:"destination_url"`
	LinkText       *string   `db:"link_text" json:"link_text,omitempty"`
	LinkType       LinkType  `db:"link_type" json:"link_type"`
	StatusCode     *int      `db:"status_code" json:"status_code,omitempty"`
	IsBroken       bool      `db:"is_broken" json:"is_broken"`
	CheckedAt      time.Time `db:"checked_at" json:"checked_at"`
}
