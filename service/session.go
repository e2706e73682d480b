package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arithmax-research/TurboBook/domain/analyzer"
	"github.com/arithmax-research/TurboBook/feed"
)

var ErrDuplicateSymbol = errors.New("service: symbol already in session")

type binding struct {
	svc  *BookService
	feed feed.Feed
}

// Session owns one BookService per symbol and the feeds producing into
// them. Close disconnects every feed, waiting for each loop, before the
// books are released.
type Session struct {
	ID      uuid.UUID
	log     zerolog.Logger
	stagger time.Duration

	mu      sync.RWMutex
	books   map[string]*binding
	order   []string
	started bool
}

func NewSession(log zerolog.Logger, stagger time.Duration) *Session {
	id := uuid.New()
	return &Session{
		ID:      id,
		log:     log.With().Str("session", id.String()).Logger(),
		stagger: stagger,
		books:   make(map[string]*binding),
	}
}

// Add registers svc and attaches f to it. f may be nil for a book that is
// only written through the APIs.
func (s *Session) Add(svc *BookService, f feed.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sym := svc.Symbol()
	if _, ok := s.books[sym]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, sym)
	}
	if f != nil {
		f.Attach(svc)
	}
	s.books[sym] = &binding{svc: svc, feed: f}
	s.order = append(s.order, sym)
	return nil
}

// Start connects every feed in insertion order, pausing stagger between
// connects. A symbol whose feed fails to connect keeps its book; the
// failures are returned joined.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	bindings := make([]*binding, 0, len(s.order))
	for _, sym := range s.order {
		bindings = append(bindings, s.books[sym])
	}
	s.mu.Unlock()

	var errs []error
	for i, b := range bindings {
		if b.feed == nil {
			continue
		}
		if i > 0 && s.stagger > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(append(errs, ctx.Err())...)
			case <-time.After(s.stagger):
			}
		}
		sym := b.svc.Symbol()
		if err := b.feed.Connect(ctx, sym); err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Str("feed", b.feed.Name()).Msg("feed connect failed")
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
			continue
		}
		s.log.Info().Str("symbol", sym).Str("feed", b.feed.Name()).Msg("feed started")
	}
	return errors.Join(errs...)
}

// Close stops every connected feed. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	var errs []error
	for _, sym := range s.order {
		b := s.books[sym]
		if b.feed == nil {
			continue
		}
		if err := b.feed.Disconnect(); err != nil && !errors.Is(err, feed.ErrNotConnected) {
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
		}
	}
	s.log.Info().Int("books", len(s.order)).Msg("session closed")
	return errors.Join(errs...)
}

func (s *Session) Book(symbol string) (*BookService, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[symbol]
	if !ok {
		return nil, false
	}
	return b.svc, true
}

// Books returns every book ordered by symbol.
func (s *Session) Books() []*BookService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*BookService, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b.svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// FeedStatus reports whether each symbol's feed is connected.
func (s *Session) FeedStatus() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.books))
	for sym, b := range s.books {
		out[sym] = b.feed != nil && b.feed.IsConnected()
	}
	return out
}

// Reports computes a report for every book, ordered by symbol.
func (s *Session) Reports() []analyzer.Report {
	books := s.Books()
	out := make([]analyzer.Report, 0, len(books))
	for _, b := range books {
		out = append(out, b.Report())
	}
	return out
}
