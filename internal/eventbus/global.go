package eventbus

import "context"

// Глобальная шина процесса. Компонентам, которым неудобно протаскивать
// EventBus через все конструкторы (цикл симуляции, обработчики API),
// достаточно вызвать Publish.
var globalBus EventBus

// Init устанавливает глобальную шину. Вызывается один раз на старте,
// после того как выбрана реализация (память или JetStream).
func Init(bus EventBus) { globalBus = bus }

// Publish отправляет событие в глобальную шину. До Init публикации тихо
// отбрасываются: это позволяет наполнять мир (генерация рельефа, загрузка
// снапшота) до подключения подписчиков, не забивая шину тысячами событий.
func Publish(ctx context.Context, ev *Envelope) error {
	if globalBus == nil {
		return nil
	}
	return globalBus.Publish(ctx, ev)
}
