package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"seasonbot/internal/keylock"
	"seasonbot/internal/services"
)

// appendConflictRetries bounds how often AppendFile recomputes the next
// sequence number after losing a race to another process.
const appendConflictRetries = 3

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	locks   *keylock.Map
	now     func() time.Time
}

// SQLOptions tunes the connection pool.
type SQLOptions struct {
	MaxOpenConns int
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	pragmas := url.Values{}
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", "busy_timeout(5000)")
	dsn := "file:" + path + "?" + pragmas.Encode()
	// A single connection keeps SQLite writers from tripping over each other.
	return OpenSQL(ctx, "sqlite", dsn, SQLOptions{MaxOpenConns: 1})
}

// OpenSQL connects to the backend named by kind (sqlite, postgres, mysql)
// and ensures the schema exists.
func OpenSQL(ctx context.Context, kind, dsn string, opts SQLOptions) (*SQLStore, error) {
	d, err := lookupDialect(kind)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.name, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.name, err)
	}

	store := &SQLStore{db: db, dialect: d, locks: keylock.New(), now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *SQLStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// withTx runs fn inside a transaction, retrying the whole unit while SQLite
// reports contention.
func (s *SQLStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (s *SQLStore) insert(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if s.dialect.returning {
		var id int64
		if err := tx.QueryRowContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := tx.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateSeason persists a new, empty season derived from name.
func (s *SQLStore) CreateSeason(ctx context.Context, name string) (Season, error) {
	key, title, err := Normalize(name)
	if err != nil {
		return Season{}, err
	}
	season := Season{Key: key, Title: title, CreatedAt: s.now().UTC()}
	created := season.CreatedAt.Format(time.RFC3339Nano)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx, "INSERT INTO seasons (season_key, title, created_at) VALUES (?, ?, ?)", key, title, created)
		if err != nil {
			return err
		}
		season.ID = id
		return nil
	})
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return Season{}, services.Wrap(services.ErrAlreadyExists, "catalog", "create season", key, nil)
		}
		return Season{}, services.Wrap(services.ErrTransient, "catalog", "create season", key, err)
	}
	return season, nil
}

// GetSeason loads a season and its files ordered by sequence.
func (s *SQLStore) GetSeason(ctx context.Context, key string) (Season, error) {
	var (
		season  Season
		created string
	)
	row := s.db.QueryRowContext(ctx, s.q("SELECT id, season_key, title, created_at FROM seasons WHERE season_key = ?"), key)
	if err := row.Scan(&season.ID, &season.Key, &season.Title, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Season{}, services.Wrap(services.ErrNotFound, "catalog", "get season", key, nil)
		}
		return Season{}, services.Wrap(services.ErrTransient, "catalog", "get season", key, err)
	}
	season.CreatedAt = parseTime(created)

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, season_id, file_ref, caption, number, created_at
        FROM video_files WHERE season_id = ? ORDER BY number`), season.ID)
	if err != nil {
		return Season{}, services.Wrap(services.ErrTransient, "catalog", "list files", key, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			f  File
			ts string
		)
		if err := rows.Scan(&f.ID, &f.SeasonID, &f.FileRef, &f.Caption, &f.Sequence, &ts); err != nil {
			return Season{}, services.Wrap(services.ErrTransient, "catalog", "scan file", key, err)
		}
		f.CreatedAt = parseTime(ts)
		season.Files = append(season.Files, f)
	}
	if err := rows.Err(); err != nil {
		return Season{}, services.Wrap(services.ErrTransient, "catalog", "list files", key, err)
	}
	season.FileCount = len(season.Files)
	return season, nil
}

// AppendFile adds a file at the next sequence number of the season.
func (s *SQLStore) AppendFile(ctx context.Context, key, fileRef, caption string) (File, error) {
	if strings.TrimSpace(fileRef) == "" {
		return File{}, services.Wrap(services.ErrValidation, "catalog", "append file", "file reference is required", nil)
	}
	unlock := s.locks.Lock(key)
	defer unlock()

	var file File
	var err error
	for attempt := 0; attempt < appendConflictRetries; attempt++ {
		file, err = s.appendOnce(ctx, key, fileRef, caption)
		if err == nil || !s.dialect.isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return File{}, err
		}
		return File{}, services.Wrap(services.ErrTransient, "catalog", "append file", key, err)
	}
	return file, nil
}

func (s *SQLStore) appendOnce(ctx context.Context, key, fileRef, caption string) (File, error) {
	file := File{FileRef: fileRef, Caption: caption, CreatedAt: s.now().UTC()}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, s.q("SELECT id FROM seasons WHERE season_key = ?"), key).Scan(&file.SeasonID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "catalog", "append file", key, nil)
			}
			return err
		}
		var maxSeq int
		if err := tx.QueryRowContext(ctx, s.q("SELECT COALESCE(MAX(number), 0) FROM video_files WHERE season_id = ?"), file.SeasonID).Scan(&maxSeq); err != nil {
			return err
		}
		file.Sequence = maxSeq + 1
		id, err := s.insert(ctx, tx,
			"INSERT INTO video_files (season_id, file_ref, caption, number, created_at) VALUES (?, ?, ?, ?, ?)",
			file.SeasonID, fileRef, caption, file.Sequence, file.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		file.ID = id
		return nil
	})
	return file, err
}

// ListSeasons returns every season in insertion order with its file count.
func (s *SQLStore) ListSeasons(ctx context.Context) ([]Season, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.season_key, s.title, s.created_at, COUNT(f.id)
        FROM seasons s LEFT JOIN video_files f ON f.season_id = s.id
        GROUP BY s.id, s.season_key, s.title, s.created_at
        ORDER BY s.id`)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "list seasons", "", err)
	}
	defer rows.Close()

	var seasons []Season
	for rows.Next() {
		var (
			season Season
			ts     string
		)
		if err := rows.Scan(&season.ID, &season.Key, &season.Title, &ts, &season.FileCount); err != nil {
			return nil, services.Wrap(services.ErrTransient, "catalog", "scan season", "", err)
		}
		season.CreatedAt = parseTime(ts)
		seasons = append(seasons, season)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "list seasons", "", err)
	}
	return seasons, nil
}

// DeleteSeason removes the season and all of its files in one transaction.
func (s *SQLStore) DeleteSeason(ctx context.Context, key string) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRowContext(ctx, s.q("SELECT id FROM seasons WHERE season_key = ?"), key).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "catalog", "delete season", key, nil)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q("DELETE FROM video_files WHERE season_id = ?"), id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q("DELETE FROM seasons WHERE id = ?"), id)
		return err
	})
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return services.Wrap(services.ErrTransient, "catalog", "delete season", key, err)
	}
	return err
}

// UpdateFileCaption rewrites the caption of the file at index (zero-based).
func (s *SQLStore) UpdateFileCaption(ctx context.Context, key string, index int, caption string) (bool, error) {
	if index < 0 {
		return false, nil
	}
	unlock := s.locks.Lock(key)
	defer unlock()

	var updated bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var fileID int64
		// Offset into the ordered list rather than number = index+1 so the
		// index always matches what GetSeason returned.
		row := tx.QueryRowContext(ctx, s.q(`SELECT f.id FROM video_files f
            JOIN seasons s ON s.id = f.season_id
            WHERE s.season_key = ? ORDER BY f.number LIMIT 1 OFFSET ?`), key, index)
		if err := row.Scan(&fileID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				updated = false
				return nil
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q("UPDATE video_files SET caption = ? WHERE id = ?"), caption, fileID); err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "catalog", "update caption", key, err)
	}
	return updated, nil
}

// AddChannel appends a channel to the allow-list. Name defaults to the id.
func (s *SQLStore) AddChannel(ctx context.Context, channelID, name string) (Channel, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return Channel{}, services.Wrap(services.ErrValidation, "catalog", "add channel", "channel id is required", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = channelID
	}
	ch := Channel{ChannelID: channelID, Name: name, CreatedAt: s.now().UTC()}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx, "INSERT INTO channels (channel_id, name, created_at) VALUES (?, ?, ?)",
			channelID, name, ch.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		ch.ID = id
		return nil
	})
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return Channel{}, services.Wrap(services.ErrAlreadyExists, "catalog", "add channel", channelID, nil)
		}
		return Channel{}, services.Wrap(services.ErrTransient, "catalog", "add channel", channelID, err)
	}
	return ch, nil
}

// RemoveChannel drops a channel from the allow-list.
func (s *SQLStore) RemoveChannel(ctx context.Context, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, s.q("DELETE FROM channels WHERE channel_id = ?"), channelID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "remove channel", channelID, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "catalog", "remove channel", channelID, nil)
	}
	return nil
}

// ListChannels returns the allow-list in insertion order.
func (s *SQLStore) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, channel_id, name, created_at FROM channels ORDER BY id")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "list channels", "", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var (
			ch Channel
			ts string
		)
		if err := rows.Scan(&ch.ID, &ch.ChannelID, &ch.Name, &ts); err != nil {
			return nil, services.Wrap(services.ErrTransient, "catalog", "scan channel", "", err)
		}
		ch.CreatedAt = parseTime(ts)
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "list channels", "", err)
	}
	return channels, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
