package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anthive/worldsim/internal/geom"
	"github.com/anthive/worldsim/internal/sim"
	"github.com/anthive/worldsim/internal/vec"
	"github.com/anthive/worldsim/internal/world"
	"github.com/anthive/worldsim/internal/world/tile"
)

// SpawnEntityRequest — запрос на создание сущности.
type SpawnEntityRequest struct {
	Type  string  `json:"type" binding:"required"` // ant, food, obstacle, nest
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Layer string  `json:"layer"` // пустой = DEFAULT
}

// MoveEntityRequest — запрос на перемещение сущности.
type MoveEntityRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SetTileRequest — запрос на изменение тайла: либо одно поле со строгой
// проверкой диапазона, либо сырое 32-битное значение целиком.
type SetTileRequest struct {
	Field string  `json:"field,omitempty"`
	Value uint32  `json:"value,omitempty"`
	Raw   *uint32 `json:"raw,omitempty"`
}

// PaintTrailRequest — запрос на изменение интенсивности следа.
type PaintTrailRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Kind  string `json:"kind" binding:"required"` // home или food
	Delta int    `json:"delta"`
}

// handleWorldInfo возвращает размеры мира, номер тика, слои и раскладку
// битовых полей тайла.
func (rs *RestServer) handleWorldInfo(c *gin.Context) {
	stats := rs.runner.Stats()

	fields := make([]map[string]interface{}, 0, len(tile.Fields()))
	for _, f := range tile.Fields() {
		fields = append(fields, map[string]interface{}{
			"name":   f.Name,
			"width":  f.Width,
			"offset": f.Offset,
			"max":    f.Max(),
		})
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Параметры мира",
		Data: map[string]interface{}{
			"width":       stats.World.Width,
			"height":      stats.World.Height,
			"tick":        stats.Tick,
			"entities":    stats.World.Entities,
			"layers":      stats.World.Layers,
			"tile_fields": fields,
		},
	})
}

// handleGetTile возвращает тайл: сырое значение и распакованные поля.
func (rs *RestServer) handleGetTile(c *gin.Context) {
	x, y, ok := rs.tileCoords(c)
	if !ok {
		return
	}

	info, err := rs.runner.TileInfo(x, y)
	if errors.Is(err, world.ErrOutOfBounds) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Координаты вне границ мира",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения тайла",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Тайл получен",
		Data:    info,
	})
}

// handleSetTile изменяет тайл. Поле проверяется строго: значение шире
// поля — 422, а не молчаливое переполнение в соседние биты.
func (rs *RestServer) handleSetTile(c *gin.Context) {
	x, y, ok := rs.tileCoords(c)
	if !ok {
		return
	}

	var req SetTileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	var raw uint32
	var err error

	switch {
	case req.Raw != nil:
		raw = *req.Raw
		err = rs.runner.SetTileRaw(c.Request.Context(), x, y, raw)
	case req.Field != "":
		raw, err = rs.runner.SetTile(c.Request.Context(), x, y, req.Field, req.Value)
	default:
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Укажите field+value или raw",
		})
		return
	}

	switch {
	case errors.Is(err, world.ErrOutOfBounds):
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Координаты вне границ мира",
		})
		return
	case errors.Is(err, sim.ErrUnknownField):
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неизвестное поле тайла: " + req.Field,
		})
		return
	case errors.Is(err, world.ErrValueOverflow):
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{
			Success: false,
			Message: "Значение не помещается в поле " + req.Field,
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка изменения тайла",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Тайл изменён",
		Data: map[string]interface{}{
			"x":   x,
			"y":   y,
			"raw": raw,
		},
	})
}

// handleQuery возвращает сущности слоя в прямоугольнике
// (центр + полуразмеры, границы включительно).
func (rs *RestServer) handleQuery(c *gin.Context) {
	cx, err1 := strconv.ParseFloat(c.DefaultQuery("cx", "0"), 64)
	cy, err2 := strconv.ParseFloat(c.DefaultQuery("cy", "0"), 64)
	hw, err3 := strconv.ParseFloat(c.Query("hw"), 64)
	hh, err4 := strconv.ParseFloat(c.Query("hh"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Параметры cx, cy, hw, hh должны быть числами",
		})
		return
	}

	layer := c.Query("layer")
	views := rs.runner.QueryArea(geom.NewRect(cx, cy, hw, hh), layer)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Запрос выполнен",
		Data: map[string]interface{}{
			"count":    len(views),
			"entities": views,
		},
	})
}

// handleListEntities возвращает все сущности мира.
func (rs *RestServer) handleListEntities(c *gin.Context) {
	views := rs.runner.Entities()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список сущностей",
		Data: map[string]interface{}{
			"count":    len(views),
			"entities": views,
		},
	})
}

// handleGetEntity возвращает одну сущность по ID.
func (rs *RestServer) handleGetEntity(c *gin.Context) {
	id, ok := rs.entityID(c)
	if !ok {
		return
	}

	view, err := rs.runner.GetEntity(id)
	if errors.Is(err, sim.ErrEntityNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Сущность не найдена",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения сущности",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сущность получена",
		Data:    view,
	})
}

// handleNearby возвращает сущностей в квадратной окрестности сущности.
func (rs *RestServer) handleNearby(c *gin.Context) {
	id, ok := rs.entityID(c)
	if !ok {
		return
	}

	radius, err := strconv.ParseFloat(c.Query("radius"), 64)
	if err != nil || radius < 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Параметр radius должен быть неотрицательным числом",
		})
		return
	}

	views, err := rs.runner.NearbyEntity(id, radius, c.Query("layer"))
	if errors.Is(err, sim.ErrEntityNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Сущность не найдена",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка поиска соседей",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Соседи найдены",
		Data: map[string]interface{}{
			"count":    len(views),
			"entities": views,
		},
	})
}

// handleSpawnEntity создаёт сущность в мире.
func (rs *RestServer) handleSpawnEntity(c *gin.Context) {
	var req SpawnEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	typeID, ok := tile.EntityTypeByName(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неизвестный тип сущности: " + req.Type,
		})
		return
	}

	view, err := rs.runner.SpawnEntity(c.Request.Context(), typeID, vec.Vec2Float{X: req.X, Y: req.Y}, req.Layer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка создания сущности",
		})
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Сущность создана",
		Data:    view,
	})
}

// handleDespawnEntity удаляет сущность из мира.
func (rs *RestServer) handleDespawnEntity(c *gin.Context) {
	id, ok := rs.entityID(c)
	if !ok {
		return
	}

	err := rs.runner.DespawnEntity(c.Request.Context(), id)
	if errors.Is(err, sim.ErrEntityNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Сущность не найдена",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка удаления сущности",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сущность удалена",
	})
}

// handleMoveEntity перемещает сущность. Новая позиция попадёт в
// пространственный индекс на ближайшем тике.
func (rs *RestServer) handleMoveEntity(c *gin.Context) {
	id, ok := rs.entityID(c)
	if !ok {
		return
	}

	var req MoveEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	err := rs.runner.MoveEntity(c.Request.Context(), id, vec.Vec2Float{X: req.X, Y: req.Y})
	if errors.Is(err, sim.ErrEntityNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Сущность не найдена",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка перемещения сущности",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сущность перемещена",
	})
}

// handlePaintTrail изменяет интенсивность следа на тайле.
func (rs *RestServer) handlePaintTrail(c *gin.Context) {
	var req PaintTrailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	value, err := rs.runner.PaintTrail(c.Request.Context(), req.X, req.Y, req.Kind, uint32(req.Delta))
	switch {
	case errors.Is(err, sim.ErrUnknownTrail):
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неизвестный тип следа: " + req.Kind,
		})
		return
	case errors.Is(err, world.ErrOutOfBounds):
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Координаты вне границ мира",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка изменения следа",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "След изменён",
		Data: map[string]interface{}{
			"x":     req.X,
			"y":     req.Y,
			"kind":  req.Kind,
			"value": value,
		},
	})
}

// tileCoords разбирает координаты тайла из пути.
func (rs *RestServer) tileCoords(c *gin.Context) (int, int, bool) {
	x, errX := strconv.Atoi(c.Param("x"))
	y, errY := strconv.Atoi(c.Param("y"))
	if errX != nil || errY != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Координаты должны быть целыми числами",
		})
		return 0, 0, false
	}
	return x, y, true
}

// entityID разбирает ID сущности из пути.
func (rs *RestServer) entityID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "ID сущности должен быть числом",
		})
		return 0, false
	}
	return id, true
}
