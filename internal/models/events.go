package models

const (
	EventsTable      = "events"
	GuestsTable      = "guests"
	WishesTable      = "wishes"
	WishRepliesTable = "wish_replies"
	WishLikesTable   = "wish_likes"
	RSVPFieldsTable  = "rsvp_fields"
)

type Event struct {
	ID            string `json:"id"`
	CustomID      string `json:"custom_id,omitempty"`
	HostID        string `json:"host_id"`
	Name          string `json:"name"`
	WishesEnabled bool   `json:"wishes_enabled"`
	AllowRSVPEdit bool   `json:"allow_rsvp_edit"`
}

// RSVPField is a host-configured form field collected at submission time.
type RSVPField struct {
	ID           string   `json:"id"`
	EventID      string   `json:"event_id"`
	FieldName    string   `json:"field_name"`
	Label        string   `json:"label"`
	FieldType    string   `json:"field_type"`
	Required     bool     `json:"required"`
	Options      []string `json:"options"`
	DisplayOrder int      `json:"display_order"`
}
