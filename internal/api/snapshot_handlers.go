package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anthive/worldsim/internal/sim"
	"github.com/anthive/worldsim/internal/storage"
)

// handleCreateSnapshot сохраняет текущее состояние мира.
func (rs *RestServer) handleCreateSnapshot(c *gin.Context) {
	id, err := rs.runner.Snapshot(c.Request.Context())
	if errors.Is(err, sim.ErrNoSnapshotStore) {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Хранилище снапшотов не настроено",
		})
		return
	}
	if err != nil {
		rs.logger.Error("❌ Ошибка создания снапшота: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка создания снапшота",
		})
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Снапшот создан",
		Data: map[string]interface{}{
			"snapshot_id": id,
		},
	})
}

// handleListSnapshots возвращает метаданные всех снапшотов, новые первыми.
func (rs *RestServer) handleListSnapshots(c *gin.Context) {
	metas, err := rs.runner.Snapshots()
	if errors.Is(err, sim.ErrNoSnapshotStore) {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Хранилище снапшотов не настроено",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка перечисления снапшотов",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список снапшотов",
		Data: map[string]interface{}{
			"count":     len(metas),
			"snapshots": metas,
		},
	})
}

// handleRestoreSnapshot замещает текущий мир состоянием из снапшота.
func (rs *RestServer) handleRestoreSnapshot(c *gin.Context) {
	id := c.Param("id")

	err := rs.runner.RestoreSnapshot(c.Request.Context(), id)
	switch {
	case errors.Is(err, sim.ErrNoSnapshotStore):
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Хранилище снапшотов не настроено",
		})
		return
	case errors.Is(err, storage.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Снапшот не найден: " + id,
		})
		return
	case err != nil:
		rs.logger.Error("❌ Ошибка восстановления снапшота %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка восстановления снапшота",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Мир восстановлен из снапшота " + id,
	})
}

// handleDeleteSnapshot удаляет снапшот из хранилища и каталога.
func (rs *RestServer) handleDeleteSnapshot(c *gin.Context) {
	id := c.Param("id")

	err := rs.runner.DeleteSnapshot(c.Request.Context(), id)
	switch {
	case errors.Is(err, sim.ErrNoSnapshotStore):
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Хранилище снапшотов не настроено",
		})
		return
	case errors.Is(err, storage.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Снапшот не найден: " + id,
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка удаления снапшота",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Снапшот удалён: " + id,
	})
}
