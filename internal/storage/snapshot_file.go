package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// FileSnapshotStore хранит снапшоты мира в файловой системе.
// Каждый снапшот — zstd-сжатый JSON в файле <id>.wsnap плюс
// несжатый сайдкар <id>.meta.json для дешёвого перечисления.
// Файл latest содержит идентификатор последнего снапшота.
type FileSnapshotStore struct {
	basePath string
	mu       sync.RWMutex

	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

const (
	snapshotExt = ".wsnap"
	metaExt     = ".meta.json"
	latestFile  = "latest"
)

// NewFileSnapshotStore создаёт файловое хранилище снапшотов
func NewFileSnapshotStore(basePath string) (*FileSnapshotStore, error) {
	// Создаём директорию если её нет
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}

	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd-компрессор: %w", err)
	}

	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd-декомпрессор: %w", err)
	}

	return &FileSnapshotStore{
		basePath:     basePath,
		compressor:   compressor,
		decompressor: decompressor,
	}, nil
}

// Save сохраняет снапшот в файл и обновляет указатель latest.
func (fs *FileSnapshotStore) Save(snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("невалидный снапшот: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации снапшота %s: %w", snap.Meta.ID, err)
	}

	metaData, err := json.Marshal(snap.Meta)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных %s: %w", snap.Meta.ID, err)
	}

	compressed := fs.compressor.EncodeAll(data, nil)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.WriteFile(fs.snapshotFilename(snap.Meta.ID), compressed, 0644); err != nil {
		return fmt.Errorf("ошибка записи файла снапшота: %w", err)
	}
	if err := os.WriteFile(fs.metaFilename(snap.Meta.ID), metaData, 0644); err != nil {
		return fmt.Errorf("ошибка записи метаданных: %w", err)
	}
	if err := os.WriteFile(filepath.Join(fs.basePath, latestFile), []byte(snap.Meta.ID), 0644); err != nil {
		return fmt.Errorf("ошибка записи указателя latest: %w", err)
	}

	return nil
}

// Load загружает снапшот по идентификатору.
func (fs *FileSnapshotStore) Load(id string) (*Snapshot, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	compressed, err := os.ReadFile(fs.snapshotFilename(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("снапшот %s: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла снапшота: %w", err)
	}

	data, err := fs.decompressor.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки снапшота %s: %w", id, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("ошибка десериализации снапшота %s: %w", id, err)
	}

	return &snap, nil
}

// LoadLatest загружает последний сохранённый снапшот.
func (fs *FileSnapshotStore) LoadLatest() (*Snapshot, error) {
	fs.mu.RLock()
	idData, err := os.ReadFile(filepath.Join(fs.basePath, latestFile))
	fs.mu.RUnlock()

	if os.IsNotExist(err) {
		return nil, nil // снапшотов ещё нет
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения указателя latest: %w", err)
	}

	return fs.Load(strings.TrimSpace(string(idData)))
}

// List возвращает метаданные всех снапшотов, новые первыми.
func (fs *FileSnapshotStore) List() ([]SnapshotMeta, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", fs.basePath, err)
	}

	var metas []SnapshotMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.basePath, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения %s: %w", entry.Name(), err)
		}
		var meta SnapshotMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("ошибка десериализации %s: %w", entry.Name(), err)
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Delete удаляет снапшот по идентификатору.
func (fs *FileSnapshotStore) Delete(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.snapshotFilename(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла снапшота: %w", err)
	}
	if err := os.Remove(fs.metaFilename(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления метаданных: %w", err)
	}

	// Если удалили последний снапшот, убираем указатель
	latestPath := filepath.Join(fs.basePath, latestFile)
	if idData, err := os.ReadFile(latestPath); err == nil {
		if strings.TrimSpace(string(idData)) == id {
			_ = os.Remove(latestPath)
		}
	}

	return nil
}

// Close освобождает ресурсы хранилища.
func (fs *FileSnapshotStore) Close() error {
	fs.compressor.Close()
	fs.decompressor.Close()
	return nil
}

func (fs *FileSnapshotStore) snapshotFilename(id string) string {
	return filepath.Join(fs.basePath, id+snapshotExt)
}

func (fs *FileSnapshotStore) metaFilename(id string) string {
	return filepath.Join(fs.basePath, id+metaExt)
}
