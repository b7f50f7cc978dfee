package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anthive/worldsim/internal/entity"
	"github.com/anthive/worldsim/internal/eventbus"
	"github.com/anthive/worldsim/internal/geom"
	"github.com/anthive/worldsim/internal/logging"
	"github.com/anthive/worldsim/internal/storage"
	"github.com/anthive/worldsim/internal/vec"
	"github.com/anthive/worldsim/internal/world"
	"github.com/anthive/worldsim/internal/world/tile"
)

// Ошибки команд симуляции.
var (
	// ErrEntityNotFound — сущность с указанным ID не зарегистрирована.
	ErrEntityNotFound = errors.New("сущность не найдена")
	// ErrUnknownField — имя поля тайла не входит в раскладку tile.Fields.
	ErrUnknownField = errors.New("неизвестное поле тайла")
	// ErrUnknownTrail — тип следа не home и не food.
	ErrUnknownTrail = errors.New("неизвестный тип следа")
	// ErrNoSnapshotStore — операция снапшота без настроенного хранилища.
	ErrNoSnapshotStore = errors.New("хранилище снапшотов не настроено")
)

// sourceName — значение поля source в публикуемых событиях.
const sourceName = "sim"

// Options задаёт периодику цикла и внешние зависимости Runner.
// Nil-зависимости допустимы: без Snapshots отключаются операции
// снапшотов и автосохранение, без Positions — дублирование позиций
// в репозиторий, без Catalog — журнал снапшотов.
type Options struct {
	TickInterval     time.Duration         // период тика, по умолчанию 100ms
	AutosaveInterval time.Duration         // период автосохранения, <= 0 — выключено
	Snapshots        storage.SnapshotStore // хранилище снапшотов
	Catalog          *storage.Catalog      // журнал снапшотов
	Positions        storage.PositionRepo  // горячий репозиторий позиций
	StoreName        string                // имя хранилища для каталога ("badger"/"file")
}

// Runner владеет миром и сериализует весь доступ к нему: тики,
// команды API и снапшоты выполняются под одним мьютексом. Сам мир
// блокировок не содержит — это контракт пакета world.
//
// Перемещения сущностей попадают в пространственные индексы только на
// тике (world.Update): команда MoveEntity меняет позицию немедленно, но
// запросы Query/Nearby видят её на старом месте до следующего тика.
type Runner struct {
	mu      sync.Mutex
	world   *world.World
	manager *entity.Manager
	opts    Options
	tick    uint64
	stats   *simMetrics
}

// NewRunner связывает мир, менеджер сущностей и хранилища в один цикл.
func NewRunner(w *world.World, mgr *entity.Manager, opts Options) *Runner {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.StoreName == "" {
		opts.StoreName = "badger"
	}
	return &Runner{
		world:   w,
		manager: mgr,
		opts:    opts,
		stats:   metrics(),
	}
}

// Run крутит цикл симуляции до отмены контекста: тики по таймеру,
// автосохранение по собственному интервалу. Перед выходом делает
// финальное сохранение, если настроено хранилище снапшотов.
// Возвращает nil при штатной остановке через контекст.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()

	var autosaveC <-chan time.Time
	if r.opts.AutosaveInterval > 0 && r.opts.Snapshots != nil {
		autosave := time.NewTicker(r.opts.AutosaveInterval)
		defer autosave.Stop()
		autosaveC = autosave.C
	}

	logging.Info("🎮 Цикл симуляции запущен (тик %v, автосохранение %v)",
		r.opts.TickInterval, r.opts.AutosaveInterval)

	for {
		select {
		case <-ctx.Done():
			if r.opts.Snapshots != nil {
				if id, err := r.Snapshot(context.Background()); err != nil {
					logging.Error("Финальное сохранение не удалось: %v", err)
				} else {
					logging.Info("Финальный снапшот %s сохранён", id)
				}
			}
			logging.Info("🎮 Цикл симуляции остановлен на тике %d", r.Tick())
			return nil
		case <-ticker.C:
			r.Step()
		case <-autosaveC:
			if _, err := r.Snapshot(ctx); err != nil {
				logging.Error("Автосохранение не удалось: %v", err)
			}
		}
	}
}

// Step выполняет один тик: инкремент счётчика и пересборка
// пространственных индексов всех слоёв. Вынесен в публичный метод,
// чтобы тесты и инструменты могли тикать мир без таймера.
func (r *Runner) Step() {
	start := time.Now()

	r.mu.Lock()
	r.tick++
	tick := r.tick
	r.world.Update()
	entities := r.world.EntityCount()
	r.mu.Unlock()

	elapsed := time.Since(start)
	r.stats.ticks.Inc()
	r.stats.tickDuration.Observe(elapsed.Seconds())
	r.stats.entities.Set(float64(entities))

	// Тики — высокочастотный поток, шина вправе их отбрасывать.
	_ = eventbus.PublishEvent(context.Background(), eventbus.EventWorldTick, sourceName, 1, eventbus.TickPayload{
		Tick:       tick,
		Entities:   entities,
		DurationMs: float64(elapsed.Microseconds()) / 1000.0,
	})
}

// Tick возвращает номер последнего выполненного тика.
func (r *Runner) Tick() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tick
}

// Do выполняет fn эксклюзивно относительно тиков и остальных команд.
// Внутри fn мир и менеджер можно свободно читать и изменять; наружу
// ссылки на сущности выносить нельзя.
func (r *Runner) Do(fn func(w *world.World, m *entity.Manager) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.world, r.manager)
}

// View — читающий вариант Do. Мьютекс общий, разделения на
// читателей и писателей нет.
func (r *Runner) View(fn func(w *world.World, m *entity.Manager)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.world, r.manager)
}

// EntityView — копия состояния сущности, безопасная вне мьютекса Runner.
type EntityView struct {
	ID    uint64  `json:"id"`
	Type  uint32  `json:"type"`
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Layer string  `json:"layer"`
}

// TileView — расшифрованное состояние одного тайла.
type TileView struct {
	X      int               `json:"x"`
	Y      int               `json:"y"`
	Raw    uint32            `json:"raw"`
	Fields map[string]uint32 `json:"fields"`
}

// Stats — срез состояния симуляции для API и инструментов.
type Stats struct {
	Tick  uint64           `json:"tick"`
	World world.WorldStats `json:"world"`
}

// SpawnEntity создаёт сущность, вставляет её в мир и публикует
// событие entity.spawned. Пустой слой означает world.DefaultLayer.
func (r *Runner) SpawnEntity(ctx context.Context, entityType tile.EntityTypeID, pos vec.Vec2Float, layer string) (EntityView, error) {
	if layer == "" {
		layer = world.DefaultLayer
	}

	r.mu.Lock()
	e := r.manager.Spawn(entityType, pos, layer)
	r.world.Insert(e, layer)
	view := viewOf(e)
	r.mu.Unlock()

	r.savePosition(ctx, e.ID, pos, layer)
	r.stats.commands.WithLabelValues("spawn", resultOK).Inc()
	_ = eventbus.PublishEvent(ctx, eventbus.EventEntitySpawned, sourceName, 5, entityPayload(view))
	return view, nil
}

// DespawnEntity убирает сущность из мира и менеджера.
func (r *Runner) DespawnEntity(ctx context.Context, id uint64) error {
	r.mu.Lock()
	e, ok := r.manager.Get(id)
	if !ok {
		r.mu.Unlock()
		r.stats.commands.WithLabelValues("despawn", resultError).Inc()
		return fmt.Errorf("удаление сущности %d: %w", id, ErrEntityNotFound)
	}
	r.world.Remove(e, e.Layer)
	r.manager.Despawn(id)
	view := viewOf(e)
	r.mu.Unlock()

	if r.opts.Positions != nil {
		if err := r.opts.Positions.Delete(ctx, id); err != nil {
			logging.Warn("Репозиторий позиций: не удалось удалить %d: %v", id, err)
		}
	}
	r.stats.commands.WithLabelValues("despawn", resultOK).Inc()
	_ = eventbus.PublishEvent(ctx, eventbus.EventEntityDespawned, sourceName, 5, entityPayload(view))
	return nil
}

// MoveEntity телепортирует сущность в новую позицию. Пространственные
// индексы узнают о перемещении на следующем тике.
func (r *Runner) MoveEntity(ctx context.Context, id uint64, pos vec.Vec2Float) error {
	r.mu.Lock()
	e, ok := r.manager.Get(id)
	if !ok {
		r.mu.Unlock()
		r.stats.commands.WithLabelValues("move", resultError).Inc()
		return fmt.Errorf("перемещение сущности %d: %w", id, ErrEntityNotFound)
	}
	e.SetPosition(pos)
	view := viewOf(e)
	r.mu.Unlock()

	r.savePosition(ctx, id, pos, view.Layer)
	r.stats.commands.WithLabelValues("move", resultOK).Inc()
	_ = eventbus.PublishEvent(ctx, eventbus.EventEntityMoved, sourceName, 5, entityPayload(view))
	return nil
}

// GetEntity возвращает копию состояния сущности.
func (r *Runner) GetEntity(id uint64) (EntityView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.manager.Get(id)
	if !ok {
		return EntityView{}, fmt.Errorf("сущность %d: %w", id, ErrEntityNotFound)
	}
	return viewOf(e), nil
}

// Entities возвращает копии всех сущностей, отсортированные по ID.
func (r *Runner) Entities() []EntityView {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.manager.All()
	views := make([]EntityView, 0, len(all))
	for _, e := range all {
		views = append(views, viewOf(e))
	}
	return views
}

// QueryArea возвращает сущности слоя, проиндексированные в прямоугольной
// области. Слой world.AllLayers объединяет все слои; сущность из
// нескольких слоёв встретится по разу на слой.
func (r *Runner) QueryArea(rng geom.Rect, layer string) []EntityView {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := r.world.Query(rng, layer)
	views := make([]EntityView, 0, len(found))
	for _, e := range found {
		views = append(views, viewOfWorld(e))
	}
	return views
}

// NearbyEntity возвращает сущности слоя в квадратной окрестности сущности
// радиуса radius. Сама сущность попадает в результат, если
// проиндексирована в слое.
func (r *Runner) NearbyEntity(id uint64, radius float64, layer string) ([]EntityView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.manager.Get(id)
	if !ok {
		return nil, fmt.Errorf("сущность %d: %w", id, ErrEntityNotFound)
	}
	found := r.world.Nearby(e, radius, layer)
	views := make([]EntityView, 0, len(found))
	for _, f := range found {
		views = append(views, viewOfWorld(f))
	}
	return views, nil
}

// TileInfo читает тайл и раскладывает его по всем полям.
func (r *Runner) TileInfo(x, y int) (TileView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := r.world.Grid().Raw(x, y)
	if err != nil {
		return TileView{}, err
	}
	view := TileView{X: x, Y: y, Raw: raw, Fields: make(map[string]uint32, 5)}
	for _, f := range tile.Fields() {
		view.Fields[f.Name] = f.Extract(raw)
	}
	return view, nil
}

// SetTile строго записывает именованное поле тайла (Grid.SetChecked).
// Неизвестное имя — ErrUnknownField; значение шире поля —
// world.ErrValueOverflow; координаты вне сетки — world.ErrOutOfBounds.
func (r *Runner) SetTile(ctx context.Context, x, y int, fieldName string, value uint32) (uint32, error) {
	f, ok := tile.ByName(fieldName)
	if !ok {
		r.stats.commands.WithLabelValues("set_tile", resultError).Inc()
		return 0, fmt.Errorf("%w: %s", ErrUnknownField, fieldName)
	}

	r.mu.Lock()
	grid := r.world.Grid()
	if err := grid.SetChecked(x, y, f, value); err != nil {
		r.mu.Unlock()
		r.stats.commands.WithLabelValues("set_tile", resultError).Inc()
		return 0, err
	}
	raw, _ := grid.Raw(x, y)
	r.mu.Unlock()

	r.stats.commands.WithLabelValues("set_tile", resultOK).Inc()
	_ = eventbus.PublishEvent(ctx, eventbus.EventTileUpdated, sourceName, 3, eventbus.TilePayload{
		X: x, Y: y, Field: f.Name, Value: value, Raw: raw,
	})
	return raw, nil
}

// SetTileRaw записывает сырое 32-битное значение тайла целиком.
func (r *Runner) SetTileRaw(ctx context.Context, x, y int, raw uint32) error {
	r.mu.Lock()
	err := r.world.Grid().SetRaw(x, y, raw)
	r.mu.Unlock()
	if err != nil {
		r.stats.commands.WithLabelValues("set_tile", resultError).Inc()
		return err
	}

	r.stats.commands.WithLabelValues("set_tile", resultOK).Inc()
	_ = eventbus.PublishEvent(ctx, eventbus.EventTileUpdated, sourceName, 3, eventbus.TilePayload{
		X: x, Y: y, Raw: raw,
	})
	return nil
}

// PaintTrail усиливает след на тайле на delta с насыщением на
// tile.TrailMax. Тип следа — "home" или "food". Возвращает новую
// интенсивность.
func (r *Runner) PaintTrail(ctx context.Context, x, y int, kind string, delta uint32) (uint32, error) {
	var f tile.Field
	switch kind {
	case "home":
		f = tile.HomeTrail
	case "food":
		f = tile.FoodTrail
	default:
		r.stats.commands.WithLabelValues("paint_trail", resultError).Inc()
		return 0, fmt.Errorf("%w: %s", ErrUnknownTrail, kind)
	}

	r.mu.Lock()
	grid := r.world.Grid()
	cur, err := grid.Get(x, y, f)
	if err != nil {
		r.mu.Unlock()
		r.stats.commands.WithLabelValues("paint_trail", resultError).Inc()
		return 0, err
	}
	next := cur + delta
	if next > tile.TrailMax {
		next = tile.TrailMax
	}
	_ = grid.Set(x, y, f, next) // границы и диапазон уже проверены
	raw, _ := grid.Raw(x, y)
	r.mu.Unlock()

	r.stats.commands.WithLabelValues("paint_trail", resultOK).Inc()
	_ = eventbus.PublishEvent(ctx, eventbus.EventTrailPainted, sourceName, 3, eventbus.TilePayload{
		X: x, Y: y, Field: f.Name, Value: next, Raw: raw,
	})
	return next, nil
}

// Stats собирает срез состояния симуляции.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Tick:  r.tick,
		World: r.world.Stats(),
	}
}

// Snapshot сохраняет полное состояние мира в хранилище снапшотов и
// регистрирует его в каталоге. Возвращает идентификатор снапшота.
func (r *Runner) Snapshot(ctx context.Context) (string, error) {
	if r.opts.Snapshots == nil {
		return "", ErrNoSnapshotStore
	}

	r.mu.Lock()
	snap := r.buildSnapshotLocked()
	r.mu.Unlock()

	if err := r.opts.Snapshots.Save(snap); err != nil {
		r.stats.snapshots.WithLabelValues(resultError).Inc()
		return "", fmt.Errorf("сохранение снапшота: %w", err)
	}

	if r.opts.Catalog != nil {
		entry := storage.CatalogEntry{
			ID:        snap.Meta.ID,
			CreatedAt: snap.Meta.CreatedAt,
			Tick:      snap.Meta.Tick,
			Width:     snap.Meta.Width,
			Height:    snap.Meta.Height,
			Entities:  snap.Meta.Entities,
			Layers:    snap.Meta.Layers,
			Store:     r.opts.StoreName,
			SizeBytes: int64(len(snap.Grid)),
		}
		if err := r.opts.Catalog.Record(ctx, entry); err != nil {
			logging.Warn("Каталог снапшотов недоступен: %v", err)
		}
	}

	r.stats.snapshots.WithLabelValues(resultOK).Inc()
	_ = eventbus.PublishEvent(ctx, eventbus.EventWorldSnapshot, sourceName, 5, eventbus.SnapshotPayload{
		SnapshotID: snap.Meta.ID,
		Tick:       snap.Meta.Tick,
	})
	logging.Info("Снапшот %s сохранён (тик %d, сущностей: %d)",
		snap.Meta.ID, snap.Meta.Tick, snap.Meta.Entities)
	return snap.Meta.ID, nil
}

// Snapshots возвращает метаданные сохранённых снапшотов, новые первыми.
func (r *Runner) Snapshots() ([]storage.SnapshotMeta, error) {
	if r.opts.Snapshots == nil {
		return nil, ErrNoSnapshotStore
	}
	return r.opts.Snapshots.List()
}

// DeleteSnapshot удаляет снапшот из хранилища и каталога.
func (r *Runner) DeleteSnapshot(ctx context.Context, id string) error {
	if r.opts.Snapshots == nil {
		return ErrNoSnapshotStore
	}
	if err := r.opts.Snapshots.Delete(id); err != nil {
		return fmt.Errorf("удаление снапшота %s: %w", id, err)
	}
	if r.opts.Catalog != nil {
		if err := r.opts.Catalog.Remove(ctx, id); err != nil {
			logging.Warn("Каталог снапшотов: не удалось удалить запись %s: %v", id, err)
		}
	}
	return nil
}

// RestoreSnapshot замещает мир и менеджер состоянием из снапшота.
func (r *Runner) RestoreSnapshot(ctx context.Context, id string) error {
	if r.opts.Snapshots == nil {
		return ErrNoSnapshotStore
	}
	snap, err := r.opts.Snapshots.Load(id)
	if err != nil {
		return fmt.Errorf("загрузка снапшота %s: %w", id, err)
	}
	return r.restore(ctx, snap)
}

// RestoreLatest восстанавливает последний снапшот, если он есть.
// Возвращает false без ошибки, когда хранилище пусто или не настроено.
func (r *Runner) RestoreLatest(ctx context.Context) (bool, error) {
	if r.opts.Snapshots == nil {
		return false, nil
	}
	snap, err := r.opts.Snapshots.LoadLatest()
	if err != nil {
		return false, fmt.Errorf("загрузка последнего снапшота: %w", err)
	}
	if snap == nil {
		return false, nil
	}
	if err := r.restore(ctx, snap); err != nil {
		return false, err
	}
	return true, nil
}

// buildSnapshotLocked собирает снапшот текущего состояния.
// Сущности пишутся в порядке первого вхождения в общий список мира;
// дубликаты общего списка схлопываются, членство слоёв при этом
// сохраняется полностью.
func (r *Runner) buildSnapshotLocked() *storage.Snapshot {
	grid := r.world.Grid()
	gridCopy := make([]byte, len(grid.Buffer()))
	copy(gridCopy, grid.Buffer())

	seen := make(map[uint64]bool, r.world.EntityCount())
	records := make([]storage.EntityRecord, 0, r.world.EntityCount())
	for _, e := range r.world.Entities() {
		id := e.GetID()
		if seen[id] {
			continue
		}
		seen[id] = true
		records = append(records, recordOf(e))
	}

	layers := make(map[string][]uint64, r.world.LayerCount())
	for _, name := range r.world.Layers() {
		layers[name] = r.world.Layer(name).MemberIDs()
	}

	return &storage.Snapshot{
		Meta: storage.SnapshotMeta{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Tick:      r.tick,
			Width:     grid.Width(),
			Height:    grid.Height(),
			Entities:  len(records),
			Layers:    len(layers),
		},
		Grid:     gridCopy,
		Entities: records,
		Layers:   layers,
	}
}

// restore валидирует снапшот и атомарно подменяет мир, менеджер и тик.
func (r *Runner) restore(ctx context.Context, snap *storage.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("повреждённый снапшот %s: %w", snap.Meta.ID, err)
	}
	seen := make(map[uint64]bool, len(snap.Entities))
	for _, rec := range snap.Entities {
		if seen[rec.ID] {
			return fmt.Errorf("снапшот %s содержит дубликат сущности %d", snap.Meta.ID, rec.ID)
		}
		seen[rec.ID] = true
	}

	grid, err := world.NewGridFromBuffer(snap.Meta.Width, snap.Meta.Height, snap.Grid)
	if err != nil {
		return fmt.Errorf("восстановление сетки: %w", err)
	}

	r.mu.Lock()
	r.manager.Reset()
	byID := make(map[uint64]*entity.Entity, len(snap.Entities))
	global := make([]world.Entity, 0, len(snap.Entities))
	for _, rec := range snap.Entities {
		e, err := r.manager.SpawnWithID(rec.ID, tile.EntityTypeID(rec.Type), vec.Vec2Float{X: rec.X, Y: rec.Y}, rec.Layer)
		if err != nil {
			r.mu.Unlock()
			return fmt.Errorf("восстановление сущности %d: %w", rec.ID, err)
		}
		if len(rec.Payload) > 0 {
			e.Payload = rec.Payload
		}
		byID[rec.ID] = e
		global = append(global, e)
	}

	layerMembers := make(map[string][]world.Entity, len(snap.Layers))
	for name, ids := range snap.Layers {
		members := make([]world.Entity, 0, len(ids))
		for _, id := range ids {
			members = append(members, byID[id])
		}
		layerMembers[name] = members
	}

	restored := world.NewWorldFromGrid(grid)
	restored.Restore(global, layerMembers)
	r.world = restored
	r.tick = snap.Meta.Tick
	r.mu.Unlock()

	if r.opts.Positions != nil && len(snap.Entities) > 0 {
		batch := make(map[uint64]storage.EntityPos, len(snap.Entities))
		for _, rec := range snap.Entities {
			layer := rec.Layer
			if layer == "" {
				layer = world.DefaultLayer
			}
			batch[rec.ID] = storage.EntityPos{X: rec.X, Y: rec.Y, Layer: layer}
		}
		if err := r.opts.Positions.BatchSave(ctx, batch); err != nil {
			logging.Warn("Репозиторий позиций не обновлён после восстановления: %v", err)
		}
	}

	logging.Info("✅ Мир восстановлен из снапшота %s (тик %d, сущностей: %d)",
		snap.Meta.ID, snap.Meta.Tick, len(snap.Entities))
	return nil
}

// savePosition дублирует позицию в репозиторий. Ошибка не фатальна:
// репозиторий позиций — вторичный индекс, мир остаётся источником истины.
func (r *Runner) savePosition(ctx context.Context, id uint64, pos vec.Vec2Float, layer string) {
	if r.opts.Positions == nil {
		return
	}
	err := r.opts.Positions.Save(ctx, id, storage.EntityPos{X: pos.X, Y: pos.Y, Layer: layer})
	if err != nil {
		logging.Warn("Репозиторий позиций: не удалось сохранить %d: %v", id, err)
	}
}

// viewOf снимает копию управляемой сущности под мьютексом Runner.
func viewOf(e *entity.Entity) EntityView {
	return EntityView{
		ID:    e.ID,
		Type:  uint32(e.Type),
		Name:  e.Type.String(),
		X:     e.Position.X,
		Y:     e.Position.Y,
		Layer: e.Layer,
	}
}

// viewOfWorld снимает копию сущности, известной только как world.Entity.
// Для сущностей менеджера заполняются тип и слой.
func viewOfWorld(e world.Entity) EntityView {
	if ent, ok := e.(*entity.Entity); ok {
		return viewOf(ent)
	}
	pos := e.GetPosition()
	return EntityView{ID: e.GetID(), X: pos.X, Y: pos.Y}
}

// recordOf сериализует сущность для снапшота.
func recordOf(e world.Entity) storage.EntityRecord {
	pos := e.GetPosition()
	rec := storage.EntityRecord{ID: e.GetID(), X: pos.X, Y: pos.Y}
	if ent, ok := e.(*entity.Entity); ok {
		rec.Type = uint32(ent.Type)
		rec.Layer = ent.Layer
		if len(ent.Payload) > 0 {
			payload := make(map[string]interface{}, len(ent.Payload))
			for k, v := range ent.Payload {
				payload[k] = v
			}
			rec.Payload = payload
		}
	}
	if rec.Layer == "" {
		rec.Layer = world.DefaultLayer
	}
	return rec
}

// entityPayload переводит EntityView в полезную нагрузку события.
func entityPayload(v EntityView) eventbus.EntityPayload {
	return eventbus.EntityPayload{
		ID:    v.ID,
		Type:  v.Type,
		X:     v.X,
		Y:     v.Y,
		Layer: v.Layer,
	}
}
