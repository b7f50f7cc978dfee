package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// WorldStorage хранит снапшоты мира в BadgerDB.
// Раскладка ключей:
//
//	snapshot:<id>:meta     — JSON SnapshotMeta
//	snapshot:<id>:grid     — zstd-сжатый буфер сетки
//	snapshot:<id>:entities — JSON списка сущностей
//	snapshot:<id>:layers   — JSON членства слоёв
//	snapshot:latest        — идентификатор последнего снапшота
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

const latestKey = "snapshot:latest"

// NewWorldStorage создает новое хранилище мира
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd-компрессор: %w", err)
	}

	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd-декомпрессор: %w", err)
	}

	return &WorldStorage{
		db:           db,
		dbPath:       dbPath,
		isReady:      true,
		compressor:   compressor,
		decompressor: decompressor,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

// Save сохраняет снапшот и обновляет указатель snapshot:latest.
func (ws *WorldStorage) Save(snap *Snapshot) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	if err := snap.Validate(); err != nil {
		return fmt.Errorf("невалидный снапшот: %w", err)
	}

	metaData, err := json.Marshal(snap.Meta)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	entData, err := json.Marshal(snap.Entities)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сущностей: %w", err)
	}

	layerData, err := json.Marshal(snap.Layers)
	if err != nil {
		return fmt.Errorf("ошибка сериализации слоёв: %w", err)
	}

	gridData := ws.compressor.EncodeAll(snap.Grid, nil)

	err = ws.db.Update(func(txn *badger.Txn) error {
		prefix := "snapshot:" + snap.Meta.ID
		if err := txn.Set([]byte(prefix+":meta"), metaData); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefix+":grid"), gridData); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefix+":entities"), entData); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefix+":layers"), layerData); err != nil {
			return err
		}
		return txn.Set([]byte(latestKey), []byte(snap.Meta.ID))
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	return nil
}

// Load загружает снапшот по идентификатору.
func (ws *WorldStorage) Load(id string) (*Snapshot, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	snap := &Snapshot{}
	prefix := "snapshot:" + id

	err := ws.db.View(func(txn *badger.Txn) error {
		if err := readJSON(txn, prefix+":meta", &snap.Meta); err != nil {
			return err
		}
		if err := readJSON(txn, prefix+":entities", &snap.Entities); err != nil {
			return err
		}
		if err := readJSON(txn, prefix+":layers", &snap.Layers); err != nil {
			return err
		}

		item, err := txn.Get([]byte(prefix + ":grid"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			grid, err := ws.decompressor.DecodeAll(val, nil)
			if err != nil {
				return fmt.Errorf("ошибка распаковки сетки: %w", err)
			}
			snap.Grid = grid
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("снапшот %s: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return snap, nil
}

// LoadLatest загружает последний сохранённый снапшот.
func (ws *WorldStorage) LoadLatest() (*Snapshot, error) {
	ws.mutex.RLock()
	if !ws.isReady {
		ws.mutex.RUnlock()
		return nil, fmt.Errorf("хранилище не готово")
	}

	var id string
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	ws.mutex.RUnlock()

	if err == badger.ErrKeyNotFound {
		return nil, nil // снапшотов ещё нет
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения указателя latest: %w", err)
	}

	return ws.Load(id)
}

// List возвращает метаданные всех снапшотов, новые первыми.
func (ws *WorldStorage) List() ([]SnapshotMeta, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var metas []SnapshotMeta
	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("snapshot:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, ":meta") {
				continue
			}
			var meta SnapshotMeta
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				return fmt.Errorf("ошибка десериализации %s: %w", key, err)
			}
			metas = append(metas, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления снапшотов: %w", err)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Delete удаляет снапшот по идентификатору.
func (ws *WorldStorage) Delete(id string) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	prefix := "snapshot:" + id
	err := ws.db.Update(func(txn *badger.Txn) error {
		for _, suffix := range []string{":meta", ":grid", ":entities", ":layers"} {
			if err := txn.Delete([]byte(prefix + suffix)); err != nil {
				return err
			}
		}

		// Если удаляем последний снапшот, убираем и указатель
		item, err := txn.Get([]byte(latestKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var latest string
		if err := item.Value(func(val []byte) error {
			latest = string(val)
			return nil
		}); err != nil {
			return err
		}
		if latest == id {
			return txn.Delete([]byte(latestKey))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления снапшота %s: %w", id, err)
	}

	return nil
}

// readJSON читает значение ключа и десериализует его в out.
func readJSON(txn *badger.Txn, key string, out interface{}) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}
