package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shelfscan/shelfscan/internal/api"
	"github.com/shelfscan/shelfscan/internal/backgroundcut"
	"github.com/shelfscan/shelfscan/internal/config"
	"github.com/shelfscan/shelfscan/internal/pipeline"
	"github.com/shelfscan/shelfscan/internal/providers"
	"github.com/shelfscan/shelfscan/internal/session"
	"github.com/shelfscan/shelfscan/internal/storage"
)

var errNotSignedIn = errors.New("not signed in: run `shelfscan login` first")

// app holds what the subcommands share for one invocation. Storage and the
// session are opened on first use so `--help` never touches the disk.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store   storage.Store
	session *session.Store
	client  *api.Client
}

func (a *app) Session(ctx context.Context) (*session.Store, error) {
	if a.session != nil {
		return a.session, nil
	}
	st, err := storage.Open(ctx, storage.Options{
		Backend:    a.cfg.Storage.Backend,
		Path:       a.cfg.Storage.Path,
		Passphrase: a.cfg.StoragePassphrase(),
	})
	if err != nil {
		// The session still works for this run; it just won't be remembered.
		a.logger.Warn("Session storage unavailable, keeping the session in memory",
			"backend", a.cfg.Storage.Backend, "path", a.cfg.Storage.Path, "err", err)
		st = storage.NewMemory()
	}
	s := session.New(st, session.WithLogger(a.logger))
	if err := s.Initialize(ctx); err != nil {
		st.Close()
		return nil, err
	}
	a.store, a.session = st, s
	return s, nil
}

// SignedIn returns the session only when someone is signed in.
func (a *app) SignedIn(ctx context.Context) (*session.Store, error) {
	s, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	if !s.Snapshot().Authenticated() {
		return nil, errNotSignedIn
	}
	return s, nil
}

func (a *app) Client() *api.Client {
	if a.client == nil {
		a.client = api.NewClient(a.cfg.APIBaseURL, a.cfg.RequestTimeout, a.cfg.RemovalTimeout).WithLogger(a.logger)
	}
	return a.client
}

func (a *app) Remover() providers.Remover {
	switch a.cfg.Remover.Provider {
	case providers.BackgroundCut:
		return backgroundcut.New(a.cfg.Remover.BackgroundCutURL, a.cfg.Remover.BackgroundCutKey, a.cfg.RemovalTimeout).
			WithLogger(a.logger)
	default:
		return a.Client()
	}
}

func (a *app) Pipeline(s *session.Store) *pipeline.Pipeline {
	return pipeline.New(a.Remover(), a.Client(), s, s,
		pipeline.WithMaxBatchSize(a.cfg.MaxBatchSize),
		pipeline.WithLogger(a.logger))
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store, a.session = nil, nil
	return err
}

// warnPersist logs a session save failure; the command itself still succeeded.
func (a *app) warnPersist(err error) error {
	var pe *session.PersistError
	if errors.As(err, &pe) {
		a.logger.Warn("Session change not saved; it will be lost when shelfscan exits", "op", pe.Op, "err", pe.Err)
		return nil
	}
	return err
}
