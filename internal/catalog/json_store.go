package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"seasonbot/internal/services"
)

const lockRetryDelay = 20 * time.Millisecond

// JSONStore keeps the whole catalog in one JSON document. Each operation
// takes an exclusive file lock, reads the document, applies the change and
// atomically replaces the file, so the CLI and a running bot can share it.
type JSONStore struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
	now  func() time.Time
}

type jsonDocument struct {
	LastID   int64         `json:"last_id"`
	Channels []jsonChannel `json:"channels"`
	Seasons  []jsonSeason  `json:"seasons"`
}

type jsonSeason struct {
	ID        int64      `json:"id"`
	Key       string     `json:"key"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	Files     []jsonFile `json:"files"`
}

type jsonFile struct {
	ID        int64     `json:"id"`
	FileID    string    `json:"file_id"`
	Caption   string    `json:"caption"`
	Number    int       `json:"number"`
	CreatedAt time.Time `json:"created_at"`
}

type jsonChannel struct {
	ID        int64     `json:"row_id"`
	ChannelID string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenJSON prepares a JSON-backed store at path. The file is created on the
// first write.
func OpenJSON(path string) (*JSONStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("json store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	store := &JSONStore{path: path, lock: flock.New(path + ".lock"), now: time.Now}
	// Fail fast on a corrupt document rather than on the first command.
	if err := store.view(context.Background(), func(*jsonDocument) error { return nil }); err != nil {
		return nil, err
	}
	return store, nil
}

// Close releases the lock file handle.
func (s *JSONStore) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Close()
}

// view runs fn against a snapshot of the document under a shared lock.
func (s *JSONStore) view(ctx context.Context, fn func(*jsonDocument) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return services.Wrap(services.ErrTransient, "catalog", "lock json store", s.path, err)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

// update runs fn under an exclusive lock and persists the document when fn
// succeeds. A failing fn leaves the file untouched.
func (s *JSONStore) update(ctx context.Context, fn func(*jsonDocument) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return services.Wrap(services.ErrTransient, "catalog", "lock json store", s.path, err)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *JSONStore) load() (*jsonDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &jsonDocument{}, nil
		}
		return nil, services.Wrap(services.ErrTransient, "catalog", "read json store", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &jsonDocument{}, nil
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "parse json store", s.path, err)
	}
	return doc, nil
}

func (s *JSONStore) save(doc *jsonDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "encode json store", "", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "write json store", s.path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "catalog", "write json store", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "catalog", "sync json store", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "catalog", "write json store", s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "catalog", "replace json store", s.path, err)
	}
	return nil
}

// decodeDocument reads the current layout and the older flat layout where
// each season sat at the top level under its key:
//
//	{"channels": [{"id": "@x", "name": "X"}], "season_A": {"title": "A", "files": [...]}}
func decodeDocument(data []byte) (*jsonDocument, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	doc := &jsonDocument{}
	if _, ok := raw["seasons"]; ok {
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	if chans, ok := raw["channels"]; ok {
		if err := json.Unmarshal(chans, &doc.Channels); err != nil {
			return nil, fmt.Errorf("legacy channels: %w", err)
		}
		for i := range doc.Channels {
			doc.LastID++
			doc.Channels[i].ID = doc.LastID
			if doc.Channels[i].Name == "" {
				doc.Channels[i].Name = doc.Channels[i].ChannelID
			}
		}
	}
	keys, err := topLevelKeys(data)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		var legacy struct {
			Title string     `json:"title"`
			Files []jsonFile `json:"files"`
		}
		if err := json.Unmarshal(raw[key], &legacy); err != nil {
			return nil, fmt.Errorf("legacy season %s: %w", key, err)
		}
		doc.LastID++
		season := jsonSeason{ID: doc.LastID, Key: key, Title: legacy.Title, Files: legacy.Files}
		if season.Title == "" {
			season.Title = strings.ReplaceAll(strings.TrimPrefix(key, KeyPrefix), "_", " ")
		}
		for i := range season.Files {
			doc.LastID++
			season.Files[i].ID = doc.LastID
			if season.Files[i].Number == 0 {
				season.Files[i].Number = i + 1
			}
		}
		doc.Seasons = append(doc.Seasons, season)
	}
	return doc, nil
}

// topLevelKeys lists the object's keys in file order. Seasons in the flat
// layout were written in creation order, which a map would lose.
func topLevelKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (d *jsonDocument) nextID() int64 {
	d.LastID++
	return d.LastID
}

func (d *jsonDocument) season(key string) (int, bool) {
	for i := range d.Seasons {
		if d.Seasons[i].Key == key {
			return i, true
		}
	}
	return -1, false
}

func (js jsonSeason) toSeason(withFiles bool) Season {
	season := Season{ID: js.ID, Key: js.Key, Title: js.Title, CreatedAt: js.CreatedAt, FileCount: len(js.Files)}
	if withFiles {
		files := append([]jsonFile(nil), js.Files...)
		sort.SliceStable(files, func(i, j int) bool { return files[i].Number < files[j].Number })
		for _, f := range files {
			season.Files = append(season.Files, f.toFile(js.ID))
		}
	}
	return season
}

func (f jsonFile) toFile(seasonID int64) File {
	return File{ID: f.ID, SeasonID: seasonID, FileRef: f.FileID, Caption: f.Caption, Sequence: f.Number, CreatedAt: f.CreatedAt}
}

func (c jsonChannel) toChannel() Channel {
	return Channel{ID: c.ID, ChannelID: c.ChannelID, Name: c.Name, CreatedAt: c.CreatedAt}
}

// CreateSeason persists a new, empty season derived from name.
func (s *JSONStore) CreateSeason(ctx context.Context, name string) (Season, error) {
	key, title, err := Normalize(name)
	if err != nil {
		return Season{}, err
	}
	var created jsonSeason
	err = s.update(ctx, func(doc *jsonDocument) error {
		if _, exists := doc.season(key); exists {
			return services.Wrap(services.ErrAlreadyExists, "catalog", "create season", key, nil)
		}
		created = jsonSeason{ID: doc.nextID(), Key: key, Title: title, CreatedAt: s.now().UTC(), Files: []jsonFile{}}
		doc.Seasons = append(doc.Seasons, created)
		return nil
	})
	if err != nil {
		return Season{}, err
	}
	return created.toSeason(false), nil
}

// GetSeason loads a season and its files ordered by sequence.
func (s *JSONStore) GetSeason(ctx context.Context, key string) (Season, error) {
	var season Season
	err := s.view(ctx, func(doc *jsonDocument) error {
		idx, ok := doc.season(key)
		if !ok {
			return services.Wrap(services.ErrNotFound, "catalog", "get season", key, nil)
		}
		season = doc.Seasons[idx].toSeason(true)
		return nil
	})
	return season, err
}

// AppendFile adds a file at the next sequence number of the season.
func (s *JSONStore) AppendFile(ctx context.Context, key, fileRef, caption string) (File, error) {
	if strings.TrimSpace(fileRef) == "" {
		return File{}, services.Wrap(services.ErrValidation, "catalog", "append file", "file reference is required", nil)
	}
	var file File
	err := s.update(ctx, func(doc *jsonDocument) error {
		idx, ok := doc.season(key)
		if !ok {
			return services.Wrap(services.ErrNotFound, "catalog", "append file", key, nil)
		}
		season := &doc.Seasons[idx]
		maxSeq := 0
		for _, f := range season.Files {
			if f.Number > maxSeq {
				maxSeq = f.Number
			}
		}
		entry := jsonFile{ID: doc.nextID(), FileID: fileRef, Caption: caption, Number: maxSeq + 1, CreatedAt: s.now().UTC()}
		season.Files = append(season.Files, entry)
		file = entry.toFile(season.ID)
		return nil
	})
	return file, err
}

// ListSeasons returns every season in insertion order with its file count.
func (s *JSONStore) ListSeasons(ctx context.Context) ([]Season, error) {
	var seasons []Season
	err := s.view(ctx, func(doc *jsonDocument) error {
		for _, js := range doc.Seasons {
			seasons = append(seasons, js.toSeason(false))
		}
		return nil
	})
	return seasons, err
}

// DeleteSeason removes the season and all of its files.
func (s *JSONStore) DeleteSeason(ctx context.Context, key string) error {
	return s.update(ctx, func(doc *jsonDocument) error {
		idx, ok := doc.season(key)
		if !ok {
			return services.Wrap(services.ErrNotFound, "catalog", "delete season", key, nil)
		}
		doc.Seasons = append(doc.Seasons[:idx], doc.Seasons[idx+1:]...)
		return nil
	})
}

// errNoChange aborts an update without rewriting the file.
var errNoChange = errors.New("no change")

// UpdateFileCaption rewrites the caption of the file at index (zero-based).
func (s *JSONStore) UpdateFileCaption(ctx context.Context, key string, index int, caption string) (bool, error) {
	err := s.update(ctx, func(doc *jsonDocument) error {
		idx, ok := doc.season(key)
		if !ok {
			return errNoChange
		}
		files := doc.Seasons[idx].Files
		sort.SliceStable(files, func(i, j int) bool { return files[i].Number < files[j].Number })
		if index < 0 || index >= len(files) {
			return errNoChange
		}
		files[index].Caption = caption
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddChannel appends a channel to the allow-list. Name defaults to the id.
func (s *JSONStore) AddChannel(ctx context.Context, channelID, name string) (Channel, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return Channel{}, services.Wrap(services.ErrValidation, "catalog", "add channel", "channel id is required", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = channelID
	}
	var added jsonChannel
	err := s.update(ctx, func(doc *jsonDocument) error {
		for _, ch := range doc.Channels {
			if ch.ChannelID == channelID {
				return services.Wrap(services.ErrAlreadyExists, "catalog", "add channel", channelID, nil)
			}
		}
		added = jsonChannel{ID: doc.nextID(), ChannelID: channelID, Name: name, CreatedAt: s.now().UTC()}
		doc.Channels = append(doc.Channels, added)
		return nil
	})
	if err != nil {
		return Channel{}, err
	}
	return added.toChannel(), nil
}

// RemoveChannel drops a channel from the allow-list.
func (s *JSONStore) RemoveChannel(ctx context.Context, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	return s.update(ctx, func(doc *jsonDocument) error {
		for i, ch := range doc.Channels {
			if ch.ChannelID == channelID {
				doc.Channels = append(doc.Channels[:i], doc.Channels[i+1:]...)
				return nil
			}
		}
		return services.Wrap(services.ErrNotFound, "catalog", "remove channel", channelID, nil)
	})
}

// ListChannels returns the allow-list in insertion order.
func (s *JSONStore) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	err := s.view(ctx, func(doc *jsonDocument) error {
		for _, ch := range doc.Channels {
			channels = append(channels, ch.toChannel())
		}
		return nil
	})
	return channels, err
}
