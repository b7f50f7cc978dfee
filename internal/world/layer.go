package world

import (
	"github.com/anthive/worldsim/internal/geom"
)

// Layer — именованный слой мира: множество сущностей плюс собственное
// квадродерево по их позициям. Членство ведётся по ID сущности, порядок
// добавления сохраняется — от него зависит форма дерева после пересборки.
//
// Дерево синхронизируется с позициями только в rebuild: между пересборками
// оно может отставать от переместившихся сущностей, это контракт слоя.
type Layer struct {
	name    string
	members map[uint64]Entity
	order   []uint64
	tree    *Quadtree
}

// newLayer создаёт пустой слой с квадродеревом по границе мира.
func newLayer(name string, boundary geom.Rect, capacity int) *Layer {
	return &Layer{
		name:    name,
		members: make(map[uint64]Entity),
		tree:    NewQuadtree(boundary, capacity),
	}
}

// Name возвращает имя слоя.
func (l *Layer) Name() string { return l.name }

// Len возвращает число сущностей в слое.
func (l *Layer) Len() int { return len(l.members) }

// Depth возвращает глубину квадродерева слоя (диагностика).
func (l *Layer) Depth() int { return l.tree.Depth() }

// MemberIDs возвращает копию списка ID сущностей слоя в порядке добавления.
// Этот порядок сериализуется в снапшот: от него зависит форма дерева
// после восстановления.
func (l *Layer) MemberIDs() []uint64 {
	ids := make([]uint64, len(l.order))
	copy(ids, l.order)
	return ids
}

// add включает сущность в слой и сразу индексирует её.
// Сущность с уже известным ID лишь обновляет запись членства,
// дерево догонит её при следующей пересборке.
func (l *Layer) add(e Entity) {
	id := e.GetID()
	if _, exists := l.members[id]; exists {
		l.members[id] = e
		return
	}
	l.members[id] = e
	l.order = append(l.order, id)
	l.tree.Insert(e)
}

// remove исключает сущность из слоя и возвращает её.
// Возвращает nil, если сущности с таким ID в слое нет.
// Удаление из дерева идёт по текущей позиции и может промахнуться,
// если сущность сместилась — запись исчезнет из индекса при пересборке.
func (l *Layer) remove(id uint64) Entity {
	e, ok := l.members[id]
	if !ok {
		return nil
	}
	delete(l.members, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.tree.Remove(e)
	return e
}

// rebuild пересобирает квадродерево слоя из членства в порядке
// добавления. Сущности, ушедшие за границу мира, в индекс не попадают,
// членства это не лишает.
func (l *Layer) rebuild() {
	l.tree.Clear()
	for _, id := range l.order {
		l.tree.Insert(l.members[id])
	}
}

// query собирает в out сущности слоя, чьи индексированные позиции лежат
// в области.
func (l *Layer) query(rng geom.Rect, out []Entity) []Entity {
	return l.tree.Query(rng, out)
}
