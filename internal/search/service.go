package search

import (
	"context"

	"go.uber.org/zap"
)

// Service tries the primary index first and falls back to PG FTS.
type Service struct {
	primary  Index
	fallback Searcher
	loader   func(ctx context.Context) ([]ContactRecord, error)
	logger   *zap.Logger
}

// NewService builds the facade. primary may be nil when Meilisearch is not
// configured.
func NewService(primary Index, pgfts *PgFTS, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{primary: primary, logger: logger.Named("search")}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts.LoadContacts
	}
	return s
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.logger.Warn("primary search failed, falling back to pgfts", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: "none"}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("pgfts search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "pgfts"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "pgfts"}
}

// IndexContact pushes a contact to the index without blocking the caller.
func (s *Service) IndexContact(c ContactRecord) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.primary.IndexContact(c); err != nil {
			s.logger.Warn("index contact", zap.String("contact_id", c.ID), zap.Error(err))
		}
	}()
}

func (s *Service) DeleteContact(id string) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.primary.DeleteContact(id); err != nil {
			s.logger.Warn("delete contact from index", zap.String("contact_id", id), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG loads every contact from Postgres into the primary index.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.primary == nil || !s.primary.Healthy() || s.loader == nil {
		return
	}
	contacts, err := s.loader(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", zap.Error(err))
		return
	}
	if err := s.primary.IndexContacts(contacts); err != nil {
		s.logger.Error("reindex contacts", zap.Error(err))
		return
	}
	s.logger.Info("reindexed contacts", zap.Int("count", len(contacts)))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
