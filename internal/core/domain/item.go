package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type FileType string

const (
	FileTypeVideo    FileType = "Video"
	FileTypeAudio    FileType = "Audio"
	FileTypeImage    FileType = "Image"
	FileTypeDocument FileType = "Document"
	FileTypeUnknown  FileType = "Unknown"
)

// Item is one media file moving through the ingestion pipeline, together
// with its extracted text and, once classified, its analysis fields.
//
// A stored item with no classification fields is resumable: a later run
// must re-submit it for classification without re-running extraction.
// Once the classification fields are present the item is terminal and the
// pipeline only ever reads it again for duplicate detection.
type Item struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	Platform         string    `json:"platform"`
	FileType         FileType  `json:"file_type"`
	RawText          string    `json:"raw_text"`
	ContentHash      string    `json:"content_hash"`
	Title            string    `json:"title,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	Category         string    `json:"category,omitempty"`
	Tags             string    `json:"tags,omitempty"`
	Types            string    `json:"types,omitempty"`
	RefinedText      string    `json:"refined_text,omitempty"`
	FilePath         string    `json:"file_path"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Classified reports whether the item has been through analysis. An item
// record that exists but is not classified is in the resumable state.
func (i *Item) Classified() bool {
	return i.Title != "" || i.Category != "" || i.RefinedText != ""
}

var extensionFileTypes = map[string]FileType{
	".mp4":  FileTypeVideo,
	".mov":  FileTypeVideo,
	".webm": FileTypeVideo,
	".mp3":  FileTypeAudio,
	".m4a":  FileTypeAudio,
	".wav":  FileTypeAudio,
	".jpg":  FileTypeImage,
	".jpeg": FileTypeImage,
	".png":  FileTypeImage,
	".heic": FileTypeImage,
	".pdf":  FileTypeDocument,
	".xlsx": FileTypeDocument,
	".txt":  FileTypeDocument,
}

// FileTypeForPath maps a filename extension to the coarse file type used
// as a classification input. Unsupported extensions yield FileTypeUnknown
// and are not ingested.
func FileTypeForPath(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionFileTypes[ext]; ok {
		return t
	}
	return FileTypeUnknown
}
