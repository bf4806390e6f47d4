package thoughts

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/aupadhyay/thoughts/internal/action"
	"github.com/aupadhyay/thoughts/internal/storage"
)

// Metadata is the capture-time context attached to a thought.
type Metadata struct {
	URL    string  `json:"url,omitempty"`
	App    *App    `json:"app,omitempty"`
	Track  *Track  `json:"track,omitempty"`
	Images []Image `json:"images,omitempty"`
}

// App is the application that had focus when the thought was captured.
type App struct {
	Name     string `json:"name"`
	BundleID string `json:"bundleId"`
}

// Track is the media that was playing.
type Track struct {
	Artist string `json:"artist"`
	Track  string `json:"track"`
}

// Image is a pasted image carried inline as a data URI.
type Image struct {
	MimeType string `json:"mimeType"`
	DataURI  string `json:"dataUri"`
}

// Thought is the wire representation of a stored thought.
type Thought struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Metadata  *Metadata `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	metadataSchema = action.Object(
		action.OptionalProp("url", action.String()),
		action.OptionalProp("app", action.Object(
			action.Prop("name", action.String()),
			action.Prop("bundleId", action.String()),
		)),
		action.OptionalProp("track", action.Object(
			action.Prop("artist", action.String()),
			action.Prop("track", action.String()),
		)),
		action.OptionalProp("images", action.Array(action.Object(
			action.Prop("mimeType", action.String().Rule("startswith=image/")),
			action.Prop("dataUri", action.String().Rule("datauri")),
		))),
	).Describe("Context captured alongside the thought")

	thoughtSchema = action.Object(
		action.Prop("id", action.String()),
		action.Prop("content", action.String()),
		action.Prop("metadata", metadataSchema.OrNull()),
		action.Prop("createdAt", action.String().DateTime()),
	)
)

// fromRecord converts a stored row. Metadata that no longer decodes is
// reported as null rather than failing the whole listing.
func fromRecord(r storage.Thought) Thought {
	t := Thought{
		ID:        strconv.FormatInt(r.ID, 10),
		Content:   r.Content,
		CreatedAt: r.Timestamp.UTC(),
	}
	if r.Metadata != nil {
		var m Metadata
		if err := json.Unmarshal([]byte(*r.Metadata), &m); err == nil {
			t.Metadata = &m
		}
	}
	return t
}

// encodeMetadata serializes metadata for storage. A nil value stays NULL.
func encodeMetadata(m *Metadata) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
