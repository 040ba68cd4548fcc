package pipeline

import (
	"context"
	"errors"

	"github.com/localroute/localroute/internal/boundaries/in"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// ResultFunc receives the outcome of an event-triggered refresh.
type ResultFunc func(result *domain.RunResult, err error)

// RefreshHandler runs a refresh on sites.changed and manual.reload events.
type RefreshHandler struct {
	orchestrator in.Orchestrator
	onResult     ResultFunc
}

// NewRefreshHandler creates a handler. onResult may be nil.
func NewRefreshHandler(orchestrator in.Orchestrator, onResult ResultFunc) *RefreshHandler {
	return &RefreshHandler{
		orchestrator: orchestrator,
		onResult:     onResult,
	}
}

// CanHandle returns whether this handler can handle the given event type.
func (h *RefreshHandler) CanHandle(eventType domain.EventType) bool {
	return eventType == domain.EventSitesChanged || eventType == domain.EventManualReload
}

// Handle processes an event.
func (h *RefreshHandler) Handle(ctx context.Context, event domain.Event) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldHandler: "RefreshHandler",
		logging.FieldEvent:   string(event.Type),
		"event_id":           event.ID,
	})
	log := logging.FromCtx(ctx)

	switch p := event.Data.(type) {
	case domain.SitesChangedPayload:
		log.Info().Str(logging.FieldPath, p.Path).Str("op", p.Op).Msg("site list changed, refreshing")
	case domain.ReloadPayload:
		log.Info().Str("source", p.Source).Msg("reload requested, refreshing")
	default:
		log.Info().Msg("refreshing")
	}

	result, err := h.orchestrator.Refresh(ctx)
	if errors.Is(err, domain.ErrRefreshQueued) {
		log.Debug().Msg("refresh already running, request coalesced")
		return nil
	}

	if h.onResult != nil {
		h.onResult(result, err)
	}
	return err
}
