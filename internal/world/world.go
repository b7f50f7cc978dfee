package world

import (
	"fmt"
	"sort"

	"github.com/anthive/worldsim/internal/geom"
)

// Константы слоёв мира.
const (
	// DefaultLayer — слой, используемый при пустом имени слоя.
	DefaultLayer = "DEFAULT"
	// AllLayers — сигнальное имя: запрос по всем слоям сразу.
	AllLayers = "ALL"
	// LayerCapacity — ёмкость листа квадродерева каждого слоя.
	LayerCapacity = 4
)

// World — мир симуляции: сетка тайлов, общий список сущностей и именованные
// слои с пространственными индексами.
//
// Мир однопоточен по контракту: внутри нет никаких блокировок, весь доступ
// сериализует владелец (в сервере это sim.Runner). Сущностями мир не
// владеет — хранит только ссылки, создание и уничтожение остаются за
// вызывающей стороной.
type World struct {
	grid     *Grid
	entities []Entity
	layers   map[string]*Layer
	boundary geom.Rect
}

// WorldStats — срез состояния мира для API и метрик.
type WorldStats struct {
	Width    int                   `json:"width"`
	Height   int                   `json:"height"`
	Entities int                   `json:"entities"`
	Layers   map[string]LayerStats `json:"layers"`
}

// LayerStats — состояние одного слоя.
type LayerStats struct {
	Members int `json:"members"`
	Indexed int `json:"indexed"`
	Depth   int `json:"depth"`
}

// NewWorld создаёт мир указанного размера с нулевой сеткой и без слоёв.
// Граница мира и всех слоёв — прямоугольник с центром (width/2, height/2)
// и полуразмерами (width/2, height/2), то есть охват [0, width] x [0, height].
func NewWorld(width, height int) (*World, error) {
	grid, err := NewGrid(width, height)
	if err != nil {
		return nil, fmt.Errorf("создание мира: %w", err)
	}
	w := float64(width)
	h := float64(height)
	return &World{
		grid:     grid,
		layers:   make(map[string]*Layer),
		boundary: geom.NewRect(w/2, h/2, w/2, h/2),
	}, nil
}

// NewWorldFromGrid создаёт мир поверх готовой сетки (восстановление
// из снапшота).
func NewWorldFromGrid(grid *Grid) *World {
	w := float64(grid.Width())
	h := float64(grid.Height())
	return &World{
		grid:     grid,
		layers:   make(map[string]*Layer),
		boundary: geom.NewRect(w/2, h/2, w/2, h/2),
	}
}

// Grid возвращает сетку тайлов мира. Чтение и запись тайлов идут напрямую
// через неё.
func (w *World) Grid() *Grid { return w.grid }

// Bounds возвращает границу мира.
func (w *World) Bounds() geom.Rect { return w.boundary }

// Insert добавляет сущность в мир: в конец общего списка и в указанный
// слой. Пустое имя слоя означает DefaultLayer. Слой создаётся лениво при
// первом обращении — с границей мира и ёмкостью LayerCapacity.
//
// Повторная вставка той же сущности добавляет дубликат в общий список;
// членство в слое при этом не дублируется.
func (w *World) Insert(e Entity, layer string) {
	if layer == "" {
		layer = DefaultLayer
	}
	w.entities = append(w.entities, e)
	w.layerFor(layer).add(e)
}

// Remove убирает первое вхождение сущности (по идентичности) из общего
// списка и, если указанный слой существует, исключает её из его членства
// и квадродерева. Возвращает удалённую сущность либо nil, если слоя нет.
//
// Членство сущности в ДРУГИХ слоях не затрагивается — там она продолжает
// находиться запросами. Отсутствие сущности в слое или промах дерева по
// устаревшей позиции не прерывают удаление и не считаются ошибкой.
func (w *World) Remove(e Entity, layer string) Entity {
	if layer == "" {
		layer = DefaultLayer
	}

	id := e.GetID()
	for i, cur := range w.entities {
		if cur.GetID() == id {
			w.entities = append(w.entities[:i], w.entities[i+1:]...)
			break
		}
	}

	l, ok := w.layers[layer]
	if !ok {
		return nil
	}
	l.remove(id)
	return e
}

// Restore заполняет мир содержимым снапшота: общий список сущностей в
// заданном порядке и членство слоёв в порядке их списков. Вызывается на
// свежесозданном мире; существующие сущности и слои при этом не очищаются.
// Сущность, состоящая в нескольких слоях, передаётся в global один раз.
func (w *World) Restore(global []Entity, layers map[string][]Entity) {
	w.entities = append(w.entities, global...)
	for name, members := range layers {
		l := w.layerFor(name)
		for _, e := range members {
			l.add(e)
		}
	}
}

// Update пересобирает квадродеревья всех слоёв из их членства.
// Это ЕДИНСТВЕННЫЙ механизм синхронизации индексов с позициями:
// переместившиеся сущности находятся по новым координатам только после
// Update. Вызывается владельцем мира раз в тик.
func (w *World) Update() {
	for _, l := range w.layers {
		l.rebuild()
	}
}

// Query возвращает сущности слоя, чьи индексированные позиции лежат в
// области (границы включительные). Имя AllLayers объединяет результаты
// всех слоёв; сущность, состоящая в нескольких слоях, встретится в
// объединении по разу на слой — дедупликации нет. Запрос к несуществующему
// слою возвращает пустой результат, это не ошибка.
func (w *World) Query(rng geom.Rect, layer string) []Entity {
	if layer == "" {
		layer = DefaultLayer
	}

	var out []Entity
	if layer == AllLayers {
		for _, name := range w.Layers() {
			out = w.layers[name].query(rng, out)
		}
		return out
	}

	l, ok := w.layers[layer]
	if !ok {
		return nil
	}
	return l.query(rng, out)
}

// Nearby возвращает сущности слоя в квадратной окрестности сущности:
// прямоугольник с центром в её текущей позиции и полуразмерами radius.
// Сама сущность попадает в результат, если проиндексирована в слое.
func (w *World) Nearby(e Entity, radius float64, layer string) []Entity {
	pos := e.GetPosition()
	return w.Query(geom.NewRect(pos.X, pos.Y, radius, radius), layer)
}

// Layers возвращает отсортированные имена существующих слоёв.
func (w *World) Layers() []string {
	names := make([]string, 0, len(w.layers))
	for name := range w.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Layer возвращает слой по имени или nil.
func (w *World) Layer(name string) *Layer { return w.layers[name] }

// EntityCount возвращает длину общего списка сущностей.
func (w *World) EntityCount() int { return len(w.entities) }

// LayerCount возвращает число созданных слоёв.
func (w *World) LayerCount() int { return len(w.layers) }

// Entities возвращает общий список сущностей в порядке вставки.
// Слайс принадлежит миру, вызывающий не должен его изменять.
func (w *World) Entities() []Entity { return w.entities }

// Stats собирает срез состояния мира.
func (w *World) Stats() WorldStats {
	st := WorldStats{
		Width:    w.grid.Width(),
		Height:   w.grid.Height(),
		Entities: len(w.entities),
		Layers:   make(map[string]LayerStats, len(w.layers)),
	}
	for name, l := range w.layers {
		st.Layers[name] = LayerStats{
			Members: l.Len(),
			Indexed: l.tree.Len(),
			Depth:   l.Depth(),
		}
	}
	return st
}

// layerFor возвращает слой по имени, лениво создавая его.
func (w *World) layerFor(name string) *Layer {
	l, ok := w.layers[name]
	if !ok {
		l = newLayer(name, w.boundary, LayerCapacity)
		w.layers[name] = l
	}
	return l
}
