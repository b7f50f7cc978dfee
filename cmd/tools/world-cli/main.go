package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/anthive/worldsim/internal/storage"
	"github.com/anthive/worldsim/internal/world"
	"github.com/anthive/worldsim/internal/world/tile"
)

const timeFormat = "2006-01-02 15:04:05"

func main() {
	var (
		command  = flag.String("cmd", "info", "команда: info, list, export, import, tile")
		dataDir  = flag.String("data", "./data/world", "каталог BadgerDB хранилища")
		fileDir  = flag.String("dir", "./export", "каталог файловых снапшотов (.wsnap)")
		catalog  = flag.String("catalog", "", "путь SQLite-каталога (для list)")
		snapshot = flag.String("id", "", "идентификатор снапшота (пусто — последний)")
		tileX    = flag.Int("x", 0, "координата X тайла (для tile)")
		tileY    = flag.Int("y", 0, "координата Y тайла (для tile)")
		limit    = flag.Int("limit", 20, "максимум записей (для list)")
	)
	flag.Parse()

	var err error
	switch *command {
	case "info":
		err = showInfo(*dataDir, *snapshot)
	case "list":
		err = listSnapshots(*dataDir, *catalog, *limit)
	case "export":
		err = exportSnapshot(*dataDir, *fileDir, *snapshot)
	case "import":
		err = importSnapshot(*dataDir, *fileDir, *snapshot)
	case "tile":
		err = decodeTile(*dataDir, *snapshot, *tileX, *tileY)
	default:
		fmt.Printf("❌ Неизвестная команда: %s\n", *command)
		fmt.Println("Доступные команды: info, list, export, import, tile")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// loadFrom достаёт снапшот из хранилища: по идентификатору или последний.
func loadFrom(store storage.SnapshotStore, id string) (*storage.Snapshot, error) {
	if id != "" {
		return store.Load(id)
	}
	snap, err := store.LoadLatest()
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("в хранилище нет ни одного снапшота")
	}
	return snap, nil
}

// showInfo печатает метаданные снапшота, состав слоёв и типы сущностей.
func showInfo(dataDir, id string) error {
	store, err := storage.NewWorldStorage(dataDir)
	if err != nil {
		return fmt.Errorf("открытие хранилища: %w", err)
	}
	defer store.Close()

	snap, err := loadFrom(store, id)
	if err != nil {
		return err
	}

	m := snap.Meta
	fmt.Printf("🌍 Снапшот %s\n", m.ID)
	fmt.Printf("  Создан:   %s\n", m.CreatedAt.Local().Format(timeFormat))
	fmt.Printf("  Тик:      %d\n", m.Tick)
	fmt.Printf("  Мир:      %dx%d (%d байт сетки)\n", m.Width, m.Height, len(snap.Grid))
	fmt.Printf("  Сущности: %d, слои: %d\n", m.Entities, m.Layers)

	if len(snap.Layers) > 0 {
		names := make([]string, 0, len(snap.Layers))
		for name := range snap.Layers {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("  Слои:")
		for _, name := range names {
			fmt.Printf("    %-12s %d участников\n", name, len(snap.Layers[name]))
		}
	}

	if len(snap.Entities) > 0 {
		counts := make(map[tile.EntityTypeID]int)
		for _, e := range snap.Entities {
			counts[tile.EntityTypeID(e.Type)]++
		}
		types := make([]tile.EntityTypeID, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		fmt.Println("  Типы сущностей:")
		for _, t := range types {
			fmt.Printf("    %-12s %d\n", t.String(), counts[t])
		}
	}
	return nil
}

// listSnapshots выводит содержимое хранилища; с -catalog — историю
// автосохранений с размерами из SQLite-каталога.
func listSnapshots(dataDir, catalogPath string, limit int) error {
	if catalogPath != "" {
		cat, err := storage.OpenCatalog(catalogPath)
		if err != nil {
			return fmt.Errorf("открытие каталога: %w", err)
		}
		defer cat.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		entries, err := cat.History(ctx, limit)
		if err != nil {
			return err
		}
		fmt.Printf("📚 Каталог %s: %d записей\n", catalogPath, len(entries))
		for _, e := range entries {
			fmt.Printf("  %s  tick=%-8d %4dx%-4d %5d сущн. %8d байт [%s]  %s\n",
				e.CreatedAt.Local().Format(timeFormat), e.Tick,
				e.Width, e.Height, e.Entities, e.SizeBytes, e.Store, e.ID)
		}
		return nil
	}

	store, err := storage.NewWorldStorage(dataDir)
	if err != nil {
		return fmt.Errorf("открытие хранилища: %w", err)
	}
	defer store.Close()

	metas, err := store.List()
	if err != nil {
		return err
	}
	if limit > 0 && len(metas) > limit {
		metas = metas[:limit]
	}
	fmt.Printf("📚 Хранилище %s: %d снапшотов\n", dataDir, len(metas))
	for _, m := range metas {
		fmt.Printf("  %s  tick=%-8d %4dx%-4d %5d сущн.  %s\n",
			m.CreatedAt.Local().Format(timeFormat), m.Tick, m.Width, m.Height, m.Entities, m.ID)
	}
	return nil
}

// exportSnapshot переносит снапшот из BadgerDB в файловое хранилище.
func exportSnapshot(dataDir, fileDir, id string) error {
	store, err := storage.NewWorldStorage(dataDir)
	if err != nil {
		return fmt.Errorf("открытие хранилища: %w", err)
	}
	defer store.Close()

	snap, err := loadFrom(store, id)
	if err != nil {
		return err
	}

	fileStore, err := storage.NewFileSnapshotStore(fileDir)
	if err != nil {
		return err
	}
	defer fileStore.Close()

	if err := fileStore.Save(snap); err != nil {
		return err
	}
	fmt.Printf("📤 Экспортирован %s → %s\n", snap.Meta.ID,
		filepath.Join(fileDir, snap.Meta.ID+".wsnap"))
	return nil
}

// importSnapshot переносит снапшот из файлового хранилища в BadgerDB.
// Импортированный снапшот становится последним: сервер поднимет его
// при следующем старте.
func importSnapshot(dataDir, fileDir, id string) error {
	fileStore, err := storage.NewFileSnapshotStore(fileDir)
	if err != nil {
		return err
	}
	defer fileStore.Close()

	snap, err := loadFrom(fileStore, id)
	if err != nil {
		return err
	}

	store, err := storage.NewWorldStorage(dataDir)
	if err != nil {
		return fmt.Errorf("открытие хранилища: %w", err)
	}
	defer store.Close()

	if err := store.Save(snap); err != nil {
		return err
	}
	fmt.Printf("📥 Импортирован %s (tick=%d, %d сущностей) → %s\n",
		snap.Meta.ID, snap.Meta.Tick, snap.Meta.Entities, dataDir)
	return nil
}

// decodeTile печатает сырое значение тайла и разбор по битовым полям.
func decodeTile(dataDir, id string, x, y int) error {
	store, err := storage.NewWorldStorage(dataDir)
	if err != nil {
		return fmt.Errorf("открытие хранилища: %w", err)
	}
	defer store.Close()

	snap, err := loadFrom(store, id)
	if err != nil {
		return err
	}

	grid, err := world.NewGridFromBuffer(snap.Meta.Width, snap.Meta.Height, snap.Grid)
	if err != nil {
		return fmt.Errorf("сетка снапшота: %w", err)
	}
	raw, err := grid.Raw(x, y)
	if err != nil {
		return err
	}

	fmt.Printf("🧩 Тайл (%d,%d) @ %s: raw=0x%08X\n", x, y, snap.Meta.ID, raw)
	for _, f := range tile.Fields() {
		value := f.Extract(raw)
		extra := ""
		switch f.Name {
		case tile.Terrain.Name:
			extra = " (" + tile.TerrainID(value).String() + ")"
		case tile.EntityType.Name:
			extra = " (" + tile.EntityTypeID(value).String() + ")"
		}
		fmt.Printf("  %-10s = %d%s\n", f.Name, value, extra)
	}
	return nil
}
