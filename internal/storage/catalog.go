package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Catalog ведёт журнал снапшотов в SQLite: когда и что сохранялось,
// каким хранилищем и какого размера. Сами данные снапшотов живут
// в SnapshotStore; каталог — это дешёвый индекс для истории и аудита.
type Catalog struct {
	db *sql.DB
}

// CatalogEntry — запись журнала снапшотов.
type CatalogEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Tick      uint64    `json:"tick"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Entities  int       `json:"entities"`
	Layers    int       `json:"layers"`
	Store     string    `json:"store"`      // badger | file
	SizeBytes int64     `json:"size_bytes"` // Размер сжатых данных
}

// OpenCatalog открывает (или создаёт) SQLite-каталог снапшотов.
func OpenCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь каталога")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию каталога: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL заметно быстрее для append-нагрузки журнала.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("ошибка применения прагмы: %w", err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS snapshots (
		id         TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		tick       INTEGER NOT NULL,
		width      INTEGER NOT NULL,
		height     INTEGER NOT NULL,
		entities   INTEGER NOT NULL,
		layers     INTEGER NOT NULL,
		store      TEXT NOT NULL,
		size_bytes INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания схемы каталога: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshots_tick ON snapshots(tick);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания индекса: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Record фиксирует сохранённый снапшот в журнале.
func (c *Catalog) Record(ctx context.Context, entry CatalogEntry) error {
	query := `INSERT INTO snapshots (id, created_at, tick, width, height, entities, layers, store, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			tick       = excluded.tick,
			size_bytes = excluded.size_bytes`

	_, err := c.db.ExecContext(ctx, query,
		entry.ID,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.Tick,
		entry.Width,
		entry.Height,
		entry.Entities,
		entry.Layers,
		entry.Store,
		entry.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи в каталог: %w", err)
	}
	return nil
}

// History возвращает последние limit записей журнала, новые первыми.
func (c *Catalog) History(ctx context.Context, limit int) ([]CatalogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, created_at, tick, width, height, entities, layers, store, size_bytes
		 FROM snapshots ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории: %w", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var entry CatalogEntry
		var createdAt string
		if err := rows.Scan(&entry.ID, &createdAt, &entry.Tick, &entry.Width, &entry.Height,
			&entry.Entities, &entry.Layers, &entry.Store, &entry.SizeBytes); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки каталога: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора времени %q: %w", createdAt, err)
		}
		entry.CreatedAt = ts
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get возвращает запись журнала по идентификатору снапшота.
func (c *Catalog) Get(ctx context.Context, id string) (*CatalogEntry, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, created_at, tick, width, height, entities, layers, store, size_bytes
		 FROM snapshots WHERE id = ?`, id)

	var entry CatalogEntry
	var createdAt string
	err := row.Scan(&entry.ID, &createdAt, &entry.Tick, &entry.Width, &entry.Height,
		&entry.Entities, &entry.Layers, &entry.Store, &entry.SizeBytes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записи каталога: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора времени %q: %w", createdAt, err)
	}
	entry.CreatedAt = ts
	return &entry, nil
}

// Remove удаляет запись журнала по идентификатору снапшота.
func (c *Catalog) Remove(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("ошибка удаления записи каталога: %w", err)
	}
	return nil
}

// Close закрывает базу каталога.
func (c *Catalog) Close() error {
	return c.db.Close()
}
