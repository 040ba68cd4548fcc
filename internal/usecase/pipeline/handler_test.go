package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	inmocks "github.com/localroute/localroute/internal/boundaries/in/mocks"
	"github.com/localroute/localroute/internal/domain"
)

func TestRefreshHandler_CanHandle(t *testing.T) {
	h := NewRefreshHandler(inmocks.NewMockOrchestrator(t), nil)

	assert.True(t, h.CanHandle(domain.EventSitesChanged))
	assert.True(t, h.CanHandle(domain.EventManualReload))
	assert.False(t, h.CanHandle(domain.EventType("other")))
}

func TestRefreshHandler_Handle(t *testing.T) {
	t.Run("reports result", func(t *testing.T) {
		orch := inmocks.NewMockOrchestrator(t)
		want := &domain.RunResult{RunID: "run-1"}
		orch.On("Refresh", mock.Anything).Return(want, nil)

		var got *domain.RunResult
		h := NewRefreshHandler(orch, func(r *domain.RunResult, err error) {
			got = r
			assert.NoError(t, err)
		})

		err := h.Handle(context.Background(), domain.Event{
			Type: domain.EventSitesChanged,
			Data: domain.SitesChangedPayload{Path: "/srv/sites.conf", Op: "WRITE"},
		})
		assert.NoError(t, err)
		assert.Same(t, want, got)
	})

	t.Run("queued refresh is not an error", func(t *testing.T) {
		orch := inmocks.NewMockOrchestrator(t)
		orch.On("Refresh", mock.Anything).Return(nil, domain.ErrRefreshQueued)

		called := false
		h := NewRefreshHandler(orch, func(*domain.RunResult, error) { called = true })

		err := h.Handle(context.Background(), domain.Event{
			Type: domain.EventManualReload,
			Data: domain.ReloadPayload{Source: "signal"},
		})
		assert.NoError(t, err)
		assert.False(t, called)
	})

	t.Run("fatal refresh is returned", func(t *testing.T) {
		orch := inmocks.NewMockOrchestrator(t)
		fatal := &domain.StageError{Stage: domain.StageRestartServices, Kind: domain.KindLifecycle, Err: errors.New("x")}
		orch.On("Refresh", mock.Anything).Return(&domain.RunResult{}, fatal)

		h := NewRefreshHandler(orch, nil)
		err := h.Handle(context.Background(), domain.Event{Type: domain.EventManualReload})
		assert.ErrorIs(t, err, fatal)
	})
}
