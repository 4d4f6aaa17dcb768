// Package tag embeds track metadata and cover art into downloaded files.
package tag

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"

	"github.com/tpepels/tidal-ui-sub001/internal/download"
)

// Embedder writes ID3v2 frames into MP3 files. Formats that do not carry
// ID3 tags (FLAC, M4A) pass through untouched; their metadata lives in
// the storage sidecar instead.
type Embedder struct{}

// NewEmbedder creates an Embedder.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// Embed writes the track's metadata and cover art to the file at path.
// progress is reported in [0,1] and always reaches 1 on success.
func (e *Embedder) Embed(path string, track download.Track, cover []byte, progress func(float64)) error {
	report := func(p float64) {
		if progress != nil {
			progress(p)
		}
	}
	report(0)

	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		report(1)
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open tags in %s: %w", path, err)
	}
	defer tag.Close()

	tag.SetTitle(track.Title)
	tag.SetArtist(track.Artist)
	tag.SetAlbum(track.Album)
	if track.Artist != "" {
		tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, track.Artist)
	}
	report(0.4)

	if len(cover) > 0 {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    coverMimeType(cover),
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     cover,
		})
	}
	report(0.7)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tags to %s: %w", path, err)
	}

	report(1)
	return nil
}

// coverMimeType sniffs the cover image format from its magic bytes.
func coverMimeType(data []byte) string {
	if bytes.HasPrefix(data, []byte("\x89PNG")) {
		return "image/png"
	}
	return "image/jpeg"
}
