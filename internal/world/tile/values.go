package tile

// TerrainID представляет тип местности тайла (2 бита, значения 0..3)
type TerrainID uint32

// Константы типов местности
const (
	TerrainEmpty TerrainID = iota // 0 — пустая клетка
	TerrainSand                   // 1 — песок
	TerrainRock                   // 2 — камень
	TerrainWater                  // 3 — вода
)

// EntityTypeID представляет тип сущности на тайле (4 бита, значения 0..15)
type EntityTypeID uint32

// Константы типов сущностей
const (
	EntityNone     EntityTypeID = iota // 0 — тайл свободен
	EntityAnt                          // 1 — муравей
	EntityFood                         // 2 — еда
	EntityObstacle                     // 3 — препятствие
	EntityNest                         // 4 — гнездо
)

// TrailMax — максимальная интенсивность следа (3 бита).
const TrailMax uint32 = 7

var terrainNames = map[TerrainID]string{
	TerrainEmpty: "empty",
	TerrainSand:  "sand",
	TerrainRock:  "rock",
	TerrainWater: "water",
}

var entityTypeNames = map[EntityTypeID]string{
	EntityNone:     "none",
	EntityAnt:      "ant",
	EntityFood:     "food",
	EntityObstacle: "obstacle",
	EntityNest:     "nest",
}

// String возвращает имя типа местности
func (t TerrainID) String() string {
	if name, ok := terrainNames[t]; ok {
		return name
	}
	return "unknown"
}

// String возвращает имя типа сущности
func (e EntityTypeID) String() string {
	if name, ok := entityTypeNames[e]; ok {
		return name
	}
	return "unknown"
}

// EntityTypeByName — обратный поиск типа сущности по имени.
func EntityTypeByName(name string) (EntityTypeID, bool) {
	for id, n := range entityTypeNames {
		if n == name {
			return id, true
		}
	}
	return EntityNone, false
}
