package catalog

import (
	"context"
	"time"
)

// Season is a named, ordered collection of video files.
type Season struct {
	ID        int64
	Key       string
	Title     string
	CreatedAt time.Time
	// Files is populated by GetSeason in ascending sequence order.
	Files []File
	// FileCount is populated by ListSeasons.
	FileCount int
}

// File is one deliverable item of a season. FileRef is the platform's opaque
// file identifier; the bytes themselves are never stored.
type File struct {
	ID        int64
	SeasonID  int64
	FileRef   string
	Caption   string
	Sequence  int
	CreatedAt time.Time
}

// Channel is an entry in the forced-subscription allow-list.
type Channel struct {
	ID        int64
	ChannelID string
	Name      string
	CreatedAt time.Time
}

// Store is the persistence contract shared by every backend.
type Store interface {
	CreateSeason(ctx context.Context, name string) (Season, error)
	GetSeason(ctx context.Context, key string) (Season, error)
	AppendFile(ctx context.Context, key, fileRef, caption string) (File, error)
	ListSeasons(ctx context.Context) ([]Season, error)
	DeleteSeason(ctx context.Context, key string) error
	// UpdateFileCaption replaces the caption of the file at the zero-based
	// index. It reports false when the season or index does not exist.
	UpdateFileCaption(ctx context.Context, key string, index int, caption string) (bool, error)

	AddChannel(ctx context.Context, channelID, name string) (Channel, error)
	RemoveChannel(ctx context.Context, channelID string) error
	ListChannels(ctx context.Context) ([]Channel, error)

	Close() error
}
