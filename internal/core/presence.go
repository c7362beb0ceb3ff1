package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/metrics"
)

// Directory persists the online flag of a user. Implementations must ignore a
// write whose timestamp is not newer than the one already stored.
type Directory interface {
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error
}

// Publisher mirrors canonical messages and presence transitions to an
// external bus. Implementations must not block.
type Publisher interface {
	PublishMessage(msg *Message)
	PublishPresence(change PresenceChange)
}

// PresenceConfig bounds directory writes.
type PresenceConfig struct {
	WriteTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func (c PresenceConfig) withDefaults() PresenceConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	return c
}

// PresenceTask tracks the durable directory write of one transition.
type PresenceTask struct {
	Change PresenceChange
	done   chan struct{}
	err    error
}

func newPresenceTask(change PresenceChange) *PresenceTask {
	return &PresenceTask{Change: change, done: make(chan struct{})}
}

func (t *PresenceTask) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed once the write succeeded or gave up.
func (t *PresenceTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the write finishes and returns its error.
func (t *PresenceTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Presence turns per-user connection count transitions into online/offline
// broadcasts and directory writes. The registry's counter is the source of
// truth; a failed write never changes it.
type Presence struct {
	registry  *Registry
	directory Directory
	publisher Publisher
	metrics   *metrics.Metrics
	cfg       PresenceConfig
	log       *zerolog.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// NewPresence builds an aggregator on top of the registry. directory may be nil.
func NewPresence(reg *Registry, directory Directory, cfg PresenceConfig, logger *zerolog.Logger) *Presence {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Presence{
		registry:  reg,
		directory: directory,
		cfg:       cfg.withDefaults(),
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Connected records a newly identified connection of userID. It returns the
// directory write task when the user went online, nil otherwise.
func (p *Presence) Connected(userID string) *PresenceTask {
	return p.transition(userID, 1)
}

// Disconnected records a closed connection of userID. It returns the
// directory write task when the user went offline, nil otherwise.
func (p *Presence) Disconnected(userID string) *PresenceTask {
	return p.transition(userID, -1)
}

// Wait blocks until all outstanding directory writes have finished.
func (p *Presence) Wait() {
	p.wg.Wait()
}

func (p *Presence) transition(userID string, delta int) *PresenceTask {
	var change *PresenceChange
	p.registry.adjust(userID, delta, func(prev, next PresenceState) PresenceState {
		if prev.Online() == next.Online() {
			return next
		}
		at := p.now()
		if !at.After(prev.LastTransition) {
			at = prev.LastTransition.Add(time.Nanosecond)
		}
		next.LastTransition = at
		change = &PresenceChange{UserID: userID, Online: next.Online(), At: at}

		// Fan-out happens under the user's key so broadcasts keep transition order.
		ev := &Event{Kind: EventPresenceChanged, Presence: change}
		p.registry.Each(func(s *Session) {
			if !s.Client.deliver(ev) {
				p.metrics.SlowConsumer()
			}
		})
		if p.publisher != nil {
			p.publisher.PublishPresence(*change)
		}
		return next
	})
	if change == nil {
		return nil
	}

	p.metrics.PresenceTransition(change.Online)
	p.log.Info().Str("user_id", userID).Bool("online", change.Online).Msg("presence changed")
	return p.persist(*change)
}

func (p *Presence) persist(change PresenceChange) *PresenceTask {
	task := newPresenceTask(change)
	if p.directory == nil {
		task.finish(nil)
		return task
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		task.finish(p.write(change))
	}()
	return task
}

func (p *Presence) write(change PresenceChange) error {
	attempt := 0
	op := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		defer cancel()

		err := p.directory.SetOnline(ctx, change.UserID, change.Online, change.At)
		if err != nil {
			p.log.Warn().Err(err).
				Str("user_id", change.UserID).
				Bool("online", change.Online).
				Int("attempt", attempt).
				Msg("presence write failed")
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.cfg.RetryBackoff
	eb.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithMaxRetries(eb, uint64(p.cfg.MaxRetries))); err != nil {
		p.metrics.PresenceWriteFailed()
		p.log.Error().Err(err).
			Str("user_id", change.UserID).
			Bool("online", change.Online).
			Msg("giving up on presence write")
		return fmt.Errorf("%w: user %s: %w", ErrPresenceWrite, change.UserID, err)
	}
	return nil
}
