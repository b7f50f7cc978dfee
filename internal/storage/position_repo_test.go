package storage

import (
	"context"
	"testing"
	"time"
)

// TestMemoryPositionRepo тестирует in-memory репозиторий позиций
func TestMemoryPositionRepo(t *testing.T) {
	repo := NewMemoryPositionRepo()
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		entityID := uint64(123)
		expectedPos := EntityPos{X: 10, Y: 20, Layer: "ants"}

		// Сохраняем позицию
		err := repo.Save(ctx, entityID, expectedPos)
		if err != nil {
			t.Fatalf("Ошибка сохранения позиции: %v", err)
		}

		// Загружаем позицию
		actualPos, found, err := repo.Load(ctx, entityID)
		if err != nil {
			t.Fatalf("Ошибка загрузки позиции: %v", err)
		}

		if !found {
			t.Fatal("Позиция не найдена")
		}

		if actualPos != expectedPos {
			t.Errorf("Неверная позиция: ожидалась %+v, получена %+v", expectedPos, actualPos)
		}
	})

	t.Run("Load Non-Existent Entity", func(t *testing.T) {
		entityID := uint64(999)

		pos, found, err := repo.Load(ctx, entityID)
		if err != nil {
			t.Fatalf("Ошибка при загрузке несуществующей сущности: %v", err)
		}

		if found {
			t.Error("Позиция найдена для несуществующей сущности")
		}

		if pos != (EntityPos{}) {
			t.Errorf("Ожидалась пустая позиция, получена: %+v", pos)
		}
	})

	t.Run("Update Position", func(t *testing.T) {
		entityID := uint64(456)
		firstPos := EntityPos{X: 1, Y: 2, Layer: "DEFAULT"}
		secondPos := EntityPos{X: 3, Y: 4, Layer: "food"}

		// Сохраняем первую позицию
		err := repo.Save(ctx, entityID, firstPos)
		if err != nil {
			t.Fatalf("Ошибка сохранения первой позиции: %v", err)
		}

		// Обновляем позицию
		err = repo.Save(ctx, entityID, secondPos)
		if err != nil {
			t.Fatalf("Ошибка обновления позиции: %v", err)
		}

		// Проверяем, что позиция обновлена
		actualPos, found, err := repo.Load(ctx, entityID)
		if err != nil {
			t.Fatalf("Ошибка загрузки обновленной позиции: %v", err)
		}

		if !found {
			t.Fatal("Обновленная позиция не найдена")
		}

		if actualPos != secondPos {
			t.Errorf("Неверная обновленная позиция: ожидалась %+v, получена %+v", secondPos, actualPos)
		}
	})

	t.Run("Delete Position", func(t *testing.T) {
		entityID := uint64(789)
		pos := EntityPos{X: 5, Y: 6, Layer: "DEFAULT"}

		// Сохраняем позицию
		err := repo.Save(ctx, entityID, pos)
		if err != nil {
			t.Fatalf("Ошибка сохранения позиции: %v", err)
		}

		// Удаляем позицию
		err = repo.Delete(ctx, entityID)
		if err != nil {
			t.Fatalf("Ошибка удаления позиции: %v", err)
		}

		// Проверяем, что позиция удалена
		_, found, err := repo.Load(ctx, entityID)
		if err != nil {
			t.Fatalf("Ошибка загрузки после удаления: %v", err)
		}

		if found {
			t.Error("Позиция найдена после удаления")
		}
	})

	t.Run("BatchSave", func(t *testing.T) {
		positions := map[uint64]EntityPos{
			100: {X: 10, Y: 11, Layer: "DEFAULT"},
			200: {X: 20, Y: 21, Layer: "ants"},
			300: {X: 30, Y: 31, Layer: "food"},
		}

		// Пакетное сохранение
		err := repo.BatchSave(ctx, positions)
		if err != nil {
			t.Fatalf("Ошибка пакетного сохранения: %v", err)
		}

		// Проверяем каждую позицию
		for entityID, expectedPos := range positions {
			actualPos, found, err := repo.Load(ctx, entityID)
			if err != nil {
				t.Fatalf("Ошибка загрузки позиции для сущности %d: %v", entityID, err)
			}

			if !found {
				t.Errorf("Позиция не найдена для сущности %d", entityID)
				continue
			}

			if actualPos != expectedPos {
				t.Errorf("Неверная позиция для сущности %d: ожидалась %+v, получена %+v",
					entityID, expectedPos, actualPos)
			}
		}
	})

	t.Run("Validation", func(t *testing.T) {
		// Тест недействительного entityID
		err := repo.Save(ctx, 0, EntityPos{X: 1, Y: 1, Layer: "DEFAULT"})
		if err == nil {
			t.Error("Ожидалась ошибка для недействительного entityID")
		}

		// Тест пустого имени слоя
		err = repo.Save(ctx, 123, EntityPos{X: 1, Y: 1})
		if err == nil {
			t.Error("Ожидалась ошибка для пустого имени слоя")
		}
	})

	t.Run("Context Cancellation", func(t *testing.T) {
		// Создаем отмененный контекст
		canceledCtx, cancel := context.WithCancel(context.Background())
		cancel()

		entityID := uint64(555)
		pos := EntityPos{X: 1, Y: 1, Layer: "DEFAULT"}

		// Операция должна вернуть ошибку отмены контекста
		err := repo.Save(canceledCtx, entityID, pos)
		if err != context.Canceled {
			t.Errorf("Ожидалась ошибка отмены контекста, получена: %v", err)
		}
	})
}

// TestMemoryPositionRepoUtilityMethods тестирует вспомогательные методы
func TestMemoryPositionRepoUtilityMethods(t *testing.T) {
	repo := NewMemoryPositionRepo()
	ctx := context.Background()

	// Начальное состояние
	if repo.Count() != 0 {
		t.Errorf("Ожидалось 0 позиций, получено: %d", repo.Count())
	}

	positions := map[uint64]EntityPos{
		1: {X: 1, Y: 1, Layer: "DEFAULT"},
		2: {X: 2, Y: 2, Layer: "DEFAULT"},
		3: {X: 3, Y: 3, Layer: "ants"},
	}

	// Добавляем позиции
	for entityID, pos := range positions {
		err := repo.Save(ctx, entityID, pos)
		if err != nil {
			t.Fatalf("Ошибка сохранения позиции для сущности %d: %v", entityID, err)
		}
	}

	// Проверяем количество
	if repo.Count() != len(positions) {
		t.Errorf("Ожидалось %d позиций, получено: %d", len(positions), repo.Count())
	}

	// Проверяем GetAllPositions
	allPositions := repo.GetAllPositions()
	if len(allPositions) != len(positions) {
		t.Errorf("Ожидалось %d позиций в GetAllPositions, получено: %d",
			len(positions), len(allPositions))
	}

	for entityID, expectedPos := range positions {
		if actualPos, exists := allPositions[entityID]; !exists {
			t.Errorf("Позиция для сущности %d не найдена в GetAllPositions", entityID)
		} else if actualPos != expectedPos {
			t.Errorf("Неверная позиция для сущности %d: ожидалась %+v, получена %+v",
				entityID, expectedPos, actualPos)
		}
	}

	// Тестируем Clear
	repo.Clear()
	if repo.Count() != 0 {
		t.Errorf("После Clear ожидалось 0 позиций, получено: %d", repo.Count())
	}

	if len(repo.GetAllPositions()) != 0 {
		t.Error("После Clear GetAllPositions должна возвращать пустую карту")
	}
}

// TestConcurrentAccess тестирует concurrent доступ к репозиторию
func TestConcurrentAccess(t *testing.T) {
	repo := NewMemoryPositionRepo()
	ctx := context.Background()

	const numGoroutines = 10
	const numOperations = 100

	// Канал для синхронизации
	done := make(chan bool, numGoroutines)

	// Запускаем несколько горутин для параллельных операций
	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer func() { done <- true }()

			for j := 0; j < numOperations; j++ {
				entityID := uint64(goroutineID*numOperations + j + 1) // +1 чтобы избежать entityID = 0
				pos := EntityPos{X: float64(goroutineID), Y: float64(j), Layer: "DEFAULT"}

				// Сохраняем
				err := repo.Save(ctx, entityID, pos)
				if err != nil {
					t.Errorf("Ошибка сохранения в горутине %d: %v", goroutineID, err)
					return
				}

				// Загружаем
				loadedPos, found, err := repo.Load(ctx, entityID)
				if err != nil {
					t.Errorf("Ошибка загрузки в горутине %d: %v", goroutineID, err)
					return
				}

				if !found {
					t.Errorf("Позиция не найдена в горутине %d для сущности %d",
						goroutineID, entityID)
					return
				}

				if loadedPos != pos {
					t.Errorf("Неверная позиция в горутине %d: ожидалась %+v, получена %+v",
						goroutineID, pos, loadedPos)
					return
				}
			}
		}(i)
	}

	// Ждем завершения всех горутин
	for i := 0; i < numGoroutines; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Тест превысил таймаут")
		}
	}

	// Проверяем финальное состояние
	expectedCount := numGoroutines * numOperations
	actualCount := repo.Count()
	if actualCount != expectedCount {
		t.Errorf("Ожидалось %d позиций после concurrent теста, получено: %d",
			expectedCount, actualCount)
	}
}
