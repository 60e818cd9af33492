package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"collabsauce/api/internal/auth"
	"collabsauce/api/internal/authpw"
	"collabsauce/api/internal/config"
	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/metrics"
	"collabsauce/api/internal/objectstore"
	"collabsauce/api/internal/permissions"
	"collabsauce/api/internal/store"
)

// Session is the authenticated caller of a request.
type Session struct {
	User        store.User
	Memberships []store.Membership
	Actor       permissions.Actor
}

func (s Session) UserID() *int64 {
	id := s.User.ID
	return &id
}

type Deps struct {
	Store   store.Store
	Queue   jobs.Queue
	Objects objectstore.Store
	Metrics *metrics.Metrics
}

type Service struct {
	cfg       config.Config
	store     store.Store
	queue     jobs.Queue
	objects   objectstore.Store
	resolver  *permissions.Resolver
	passwords *authpw.Service
	metrics   *metrics.Metrics

	projectKeys *cache.Cache

	newBackOff func() backoff.BackOff
	maxTries   uint
}

func New(cfg config.Config, deps Deps) (*Service, error) {
	var skip []permissions.EntityType
	for _, raw := range cfg.SkipSideload {
		t, err := permissions.ParseEntityType(raw)
		if err != nil {
			return nil, fmt.Errorf("PERMISSIONS_SKIP_SIDELOAD: %w", err)
		}
		skip = append(skip, t)
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		cfg:         cfg,
		store:       deps.Store,
		queue:       deps.Queue,
		objects:     deps.Objects,
		resolver:    permissions.NewResolver(permissions.WithSkipSideload(skip...)),
		passwords:   authpw.NewService(deps.Store),
		metrics:     m,
		projectKeys: cache.New(5*time.Minute, 10*time.Minute),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
		maxTries: 8,
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SessionFromToken validates an access token and loads the caller's
// memberships.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.sessionFor(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	return sess, err
}

func (s *Service) sessionFor(ctx context.Context, userID int64) (Session, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	memberships, err := s.store.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("list memberships: %w", err)
	}
	actor := permissions.Actor{
		UserID:    user.ID,
		Superuser: user.IsSuperuser,
		Orgs:      make(map[int64]bool, len(memberships)),
	}
	for _, m := range memberships {
		actor.Orgs[m.OrganizationID] = actor.Orgs[m.OrganizationID] || m.Role == store.RoleAdmin
	}
	return Session{User: user, Memberships: memberships, Actor: actor}, nil
}

// withinTx runs fn as one unit of work. A unit that loses a race with a
// concurrent writer is retried from the start with backoff. The jobs fn
// returns are enqueued only after the commit succeeds.
func (s *Service) withinTx(ctx context.Context, fn func(tx store.Tx) ([]jobs.Job, error)) error {
	logger := zerolog.Ctx(ctx)
	pending, err := backoff.Retry(ctx, func() ([]jobs.Job, error) {
		var out []jobs.Job
		err := s.store.InTx(ctx, func(tx store.Tx) error {
			var err error
			out, err = fn(tx)
			return err
		})
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, store.ErrConcurrentUpdate):
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.metrics.ConcurrencyRetries.Inc()
			logger.Debug().Err(err).Dur("retry_in", next).Msg("unit of work conflicted, retrying")
		}),
	)
	if err != nil {
		return err
	}
	s.enqueue(ctx, pending)
	return nil
}

// enqueue hands committed follow-up work to the queue. The mutation already
// succeeded, so a failure here is logged rather than returned.
func (s *Service) enqueue(ctx context.Context, pending []jobs.Job) {
	if len(pending) == 0 {
		return
	}
	if err := s.queue.Enqueue(ctx, pending...); err != nil {
		ids := make([]string, 0, len(pending))
		for _, j := range pending {
			ids = append(ids, string(j.Kind)+":"+j.ID)
		}
		zerolog.Ctx(ctx).Error().Err(err).Strs("jobs", ids).Msg("enqueue follow-up jobs")
		return
	}
	for _, j := range pending {
		s.metrics.JobsEnqueued.WithLabelValues(string(j.Kind)).Inc()
	}
}

// requireVisible hides records the actor may not read behind NotFound, so
// absent and invisible records look the same.
func requireVisible[T any](s *Service, sess Session, t permissions.EntityType, item T, scope func(T) permissions.Scope) error {
	if !s.resolver.Allows(sess.Actor, permissions.Read, t, permissions.Direct, scope(item)) {
		return notFoundError()
	}
	return nil
}

func (s *Service) allows(sess Session, action permissions.Action, t permissions.EntityType, scope permissions.Scope) bool {
	return s.resolver.Allows(sess.Actor, action, t, permissions.Direct, scope)
}

// lookup maps store.ErrNotFound onto the API's NotFound error.
func lookup[T any](item T, err error) (T, error) {
	if errors.Is(err, store.ErrNotFound) {
		return item, notFoundError()
	}
	return item, err
}
