package tile

import "fmt"

// Field описывает именованное битовое поле внутри 32-битного тайла.
// Схема упаковки фиксирована и является контрактом формата данных:
// изменение ширины или смещения поля делает несовместимыми все
// сохранённые снапшоты мира.
type Field struct {
	Name   string // имя поля для логов и API
	Width  uint32 // ширина поля в битах
	Offset uint32 // смещение поля от младшего бита
}

// Раскладка битов тайла (младшие биты справа):
//
//	биты  0..3  — entityType (тип сущности на тайле)
//	биты  4..15 — entityId   (идентификатор сущности)
//	биты 16..17 — terrain    (тип местности)
//	биты 18..20 — homeTrail  (интенсивность домашнего следа, 0..7)
//	биты 21..23 — foodTrail  (интенсивность пищевого следа, 0..7)
//	биты 24..31 — зарезервированы, всегда нули
var (
	EntityType = Field{Name: "entityType", Width: 4, Offset: 0}
	EntityID   = Field{Name: "entityId", Width: 12, Offset: 4}
	Terrain    = Field{Name: "terrain", Width: 2, Offset: 16}
	HomeTrail  = Field{Name: "homeTrail", Width: 3, Offset: 18}
	FoodTrail  = Field{Name: "foodTrail", Width: 3, Offset: 21}
)

// Fields возвращает все поля тайла в порядке раскладки.
func Fields() []Field {
	return []Field{EntityType, EntityID, Terrain, HomeTrail, FoodTrail}
}

// ByName ищет поле по имени. Второй результат false, если поле неизвестно.
func ByName(name string) (Field, bool) {
	for _, f := range Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Mask возвращает битовую маску поля внутри 32-битного тайла.
func (f Field) Mask() uint32 {
	return ((uint32(1) << f.Width) - 1) << f.Offset
}

// Max возвращает максимальное значение, помещающееся в поле.
func (f Field) Max() uint32 {
	return (uint32(1) << f.Width) - 1
}

// Extract выделяет значение поля из сырого значения тайла.
func (f Field) Extract(raw uint32) uint32 {
	return (raw & f.Mask()) >> f.Offset
}

// Pack записывает значение поля в сырое значение тайла: биты поля
// очищаются, затем в них через OR помещается значение.
//
// ВНИМАНИЕ: значение НЕ проверяется на переполнение. Значение шире поля
// молча затирает биты соседнего старшего поля — это намеренно сохранённое
// поведение горячего пути; строгий вариант см. Grid.SetChecked.
func (f Field) Pack(raw, value uint32) uint32 {
	return (raw &^ f.Mask()) | (value << f.Offset)
}

// String возвращает описание поля.
func (f Field) String() string {
	return fmt.Sprintf("%s[%d бит @ %d]", f.Name, f.Width, f.Offset)
}
