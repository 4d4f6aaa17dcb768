package download

// Track is a native catalog track, fully specified and directly
// downloadable. ID is opaque and unique within the catalog namespace.
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	AlbumID     string `json:"album_id,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	MediaURL    string `json:"media_url"`
	CoverURL    string `json:"cover_url,omitempty"`
}

// Target is a download target: either a native track or a foreign
// reference carrying the same display fields but requiring resolution
// before it can be downloaded. Immutable once constructed.
type Target struct {
	Track
	Foreign bool   `json:"foreign,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Native reports whether the target can be downloaded without conversion.
func (t Target) Native() bool {
	return !t.Foreign
}
