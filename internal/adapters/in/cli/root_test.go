package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/localroute/localroute/internal/domain"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Setup(ctx context.Context) (*domain.RunResult, error) {
	args := m.Called(ctx)
	return runResult(args.Get(0)), args.Error(1)
}

func (m *mockRunner) Refresh(ctx context.Context) (*domain.RunResult, error) {
	args := m.Called(ctx)
	return runResult(args.Get(0)), args.Error(1)
}

func (m *mockRunner) Clean(ctx context.Context, restoreDNS bool) (*domain.RunResult, error) {
	args := m.Called(ctx, restoreDNS)
	return runResult(args.Get(0)), args.Error(1)
}

func (m *mockRunner) Watch(ctx context.Context, onResult func(*domain.RunResult, error)) error {
	args := m.Called(ctx, onResult)
	return args.Error(0)
}

func (m *mockRunner) Close() error {
	return m.Called().Error(0)
}

func runResult(v any) *domain.RunResult {
	if v == nil {
		return nil
	}
	return v.(*domain.RunResult)
}

// withRunner installs r as the application for the duration of the test.
func withRunner(t *testing.T, r *mockRunner) *rootOptions {
	t.Helper()
	var captured rootOptions
	orig := appFactory
	appFactory = func(_ *cobra.Command, opts *rootOptions) (runner, error) {
		captured = *opts
		return r, nil
	}
	t.Cleanup(func() {
		appFactory = orig
		r.AssertExpectations(t)
	})
	return &captured
}

func withWatcher(t *testing.T, running bool, sendErr error) *int {
	t.Helper()
	sent := 0
	orig := reloadSignaler
	reloadSignaler.running = func() bool { return running }
	reloadSignaler.send = func() error {
		sent++
		return sendErr
	}
	t.Cleanup(func() { reloadSignaler = orig })
	return &sent
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func okResult() *domain.RunResult {
	return &domain.RunResult{
		RunID: "run-1",
		Stages: []domain.StageOutcome{
			{Stage: domain.StageValidate, Status: domain.StatusOK},
		},
	}
}

func TestRootCmd_DefaultRunsSetup(t *testing.T) {
	r := &mockRunner{}
	r.On("Setup", mock.Anything).Return(okResult(), nil)
	r.On("Close").Return(nil)
	opts := withRunner(t, r)

	out, err := execute(t, "--config", "/tmp/localroute.yaml", "--sites", "sites.yaml")

	require.NoError(t, err)
	assert.Contains(t, out, "localroute setup")
	assert.Contains(t, out, "setup completed")
	assert.Equal(t, "/tmp/localroute.yaml", opts.configPath)
	assert.Equal(t, "sites.yaml", opts.sitesPath)
}

func TestSetupCmd_FatalErrorIsReported(t *testing.T) {
	stageErr := &domain.StageError{
		Stage:  domain.StageValidate,
		Kind:   domain.KindValidation,
		Entity: "app.local",
		Err:    domain.ErrSiteUpstreamInvalid,
	}
	result := &domain.RunResult{
		RunID: "run-2",
		Stages: []domain.StageOutcome{
			{Stage: domain.StageValidate, Status: domain.StatusFailed, Err: stageErr},
		},
	}

	r := &mockRunner{}
	r.On("Setup", mock.Anything).Return(result, stageErr)
	r.On("Close").Return(nil)
	withRunner(t, r)

	out, err := execute(t, "setup")

	require.Error(t, err)
	var reported *reportedError
	assert.True(t, errors.As(err, &reported))
	assert.ErrorIs(t, err, domain.ErrSiteUpstreamInvalid)
	assert.Contains(t, out, "validate (validation) failed for app.local")
}

func TestSetupCmd_WatchAfterSetup(t *testing.T) {
	r := &mockRunner{}
	r.On("Setup", mock.Anything).Return(okResult(), nil)
	r.On("Watch", mock.Anything, mock.Anything).Return(nil)
	r.On("Close").Return(nil)
	withRunner(t, r)

	_, err := execute(t, "setup", "--watch")
	require.NoError(t, err)
}

func TestSetupCmd_NoWatchWhenSetupFails(t *testing.T) {
	r := &mockRunner{}
	r.On("Setup", mock.Anything).Return(nil, errors.New("docker unavailable"))
	r.On("Close").Return(nil)
	withRunner(t, r)

	_, err := execute(t, "--watch")
	require.Error(t, err)
	r.AssertNotCalled(t, "Watch", mock.Anything, mock.Anything)
}

func TestRootCmd_CleanFlag(t *testing.T) {
	r := &mockRunner{}
	r.On("Clean", mock.Anything, true).Return(&domain.RunResult{RunID: "run-3"}, nil)
	r.On("Close").Return(nil)
	withRunner(t, r)

	out, err := execute(t, "--clean", "--restore-dns")
	require.NoError(t, err)
	assert.Contains(t, out, "clean completed")
}

func TestCleanCmd_KeepsResolverByDefault(t *testing.T) {
	r := &mockRunner{}
	r.On("Clean", mock.Anything, false).Return(&domain.RunResult{RunID: "run-4"}, nil)
	r.On("Close").Return(nil)
	withRunner(t, r)

	_, err := execute(t, "clean")
	require.NoError(t, err)
}

func TestRefreshCmd(t *testing.T) {
	t.Run("signals running watcher", func(t *testing.T) {
		sent := withWatcher(t, true, nil)
		orig := appFactory
		appFactory = func(*cobra.Command, *rootOptions) (runner, error) {
			t.Fatal("app must not be built when a watcher takes the reload")
			return nil, nil
		}
		t.Cleanup(func() { appFactory = orig })

		out, err := execute(t, "refresh")
		require.NoError(t, err)
		assert.Equal(t, 1, *sent)
		assert.Contains(t, out, "reload signal sent")
	})

	t.Run("refreshes in process without watcher", func(t *testing.T) {
		sent := withWatcher(t, false, nil)
		r := &mockRunner{}
		r.On("Refresh", mock.Anything).Return(okResult(), nil)
		r.On("Close").Return(nil)
		withRunner(t, r)

		out, err := execute(t, "reload")
		require.NoError(t, err)
		assert.Equal(t, 0, *sent)
		assert.Contains(t, out, "refresh completed")
	})

	t.Run("falls back when signal fails", func(t *testing.T) {
		withWatcher(t, true, errors.New("process already finished"))
		r := &mockRunner{}
		r.On("Refresh", mock.Anything).Return(okResult(), nil)
		r.On("Close").Return(nil)
		withRunner(t, r)

		out, err := execute(t, "refresh")
		require.NoError(t, err)
		assert.Contains(t, out, "could not signal watcher")
	})

	t.Run("keeps watching with watch flag", func(t *testing.T) {
		withWatcher(t, false, nil)
		r := &mockRunner{}
		r.On("Refresh", mock.Anything).Return(okResult(), nil)
		r.On("Watch", mock.Anything, mock.Anything).Return(nil)
		r.On("Close").Return(nil)
		withRunner(t, r)

		_, err := execute(t, "refresh", "--watch")
		require.NoError(t, err)
		r.AssertCalled(t, "Watch", mock.Anything, mock.Anything)
	})

	t.Run("does not start a second watcher", func(t *testing.T) {
		sent := withWatcher(t, true, nil)
		orig := appFactory
		appFactory = func(*cobra.Command, *rootOptions) (runner, error) {
			t.Fatal("app must not be built when a watcher takes the reload")
			return nil, nil
		}
		t.Cleanup(func() { appFactory = orig })

		_, err := execute(t, "refresh", "-w")
		require.NoError(t, err)
		assert.Equal(t, 1, *sent)
	})
}

func TestVersionCmd(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "localroute 1.2.3")
	assert.Contains(t, out, "Commit: abc123")
	assert.Contains(t, out, "Build Date: 2026-01-01")
}
