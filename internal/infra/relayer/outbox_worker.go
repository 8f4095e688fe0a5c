package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	sharedEvents "github.com/davicafu/deliverylab/shared/events"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	"go.uber.org/zap"
)

// Worker publica los eventos pendientes del outbox, del más antiguo al más reciente.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventPublisher
	eventRegistry map[string]sharedEvents.EventMetadata
	interval      time.Duration
	batchSize     int
	log           *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventPublisher,
	registry map[string]sharedEvents.EventMetadata,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		interval:      interval,
		batchSize:     batchSize,
		log:           log,
	}
}

// Start ejecuta el bucle de polling hasta que ctx se cancele.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica un lote y devuelve cuántos eventos salieron. Se detiene en el
// primer fallo de publicación para no adelantar eventos posteriores del mismo pedido.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	events, err := w.repo.FetchPendingOutbox(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return 0
	}
	if len(events) > 0 {
		w.log.Debug(fmt.Sprintf("📬 %d eventos encontrados para procesar", len(events)))
	}

	published := 0
	for _, evt := range events {
		ok, retry := w.publishAndMark(ctx, evt)
		if ok {
			published++
		}
		if retry {
			break
		}
	}
	return published
}

// publishAndMark devuelve ok si el evento salió y retry si hay que reintentarlo más tarde.
func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) (ok bool, retry bool) {
	metadata, known := w.eventRegistry[evt.EventType]
	if !known {
		// Nunca podrá publicarse: se retira del outbox para no bloquear a los siguientes.
		w.log.Error("Tipo de evento desconocido en registro, se descarta",
			zap.String("event_id", evt.ID.String()),
			zap.String("event_type", evt.EventType))
		w.discard(ctx, evt)
		return false, false
	}

	eventPayload := reflect.New(metadata.Type).Interface()
	payloadBytes, err := json.Marshal(evt.Payload)
	if err == nil {
		err = json.Unmarshal(payloadBytes, eventPayload)
	}
	if err != nil {
		w.log.Error("Error al decodificar payload del evento, se descarta",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err))
		w.discard(ctx, evt)
		return false, false
	}

	if !w.publisher.Publish(ctx, metadata.Topic, eventPayload) {
		w.log.Warn("⚠️ No se pudo publicar evento, se reintentará",
			zap.String("event_id", evt.ID.String()),
			zap.String("topic", metadata.Topic))
		return false, true
	}

	if err := w.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
		// Se volverá a publicar: los consumidores son idempotentes.
		w.log.Warn("⚠️ No se pudo marcar evento como procesado",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err))
		return true, true
	}
	w.log.Info("✅ Evento publicado y marcado",
		zap.String("event_id", evt.ID.String()),
		zap.String("topic", metadata.Topic))
	return true, false
}

func (w *Worker) discard(ctx context.Context, evt sharedDomain.OutboxEvent) {
	if err := w.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
		w.log.Warn("⚠️ No se pudo retirar evento", zap.String("event_id", evt.ID.String()), zap.Error(err))
	}
}
