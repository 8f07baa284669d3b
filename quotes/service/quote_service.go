package service

import (
	"fmt"

	"jamu-quote-bot/backend/pkg/cache"
	"jamu-quote-bot/backend/pkg/metrics"
	"jamu-quote-bot/backend/quotes/models"
	"jamu-quote-bot/backend/quotes/repository"
)

// QuoteService validates and normalizes quotes before they reach the store
// and keeps hot lookups cached per guild.
type QuoteService struct {
	repo  repository.QuoteStore
	cache *cache.Cache
}

func NewQuoteService(repo repository.QuoteStore, c *cache.Cache) *QuoteService {
	return &QuoteService{repo: repo, cache: c}
}

func (s *QuoteService) AddQuote(req *models.CreateQuoteRequest) (*models.Quote, error) {
	quote := &models.Quote{
		Content:   req.Content,
		Author:    req.Author,
		AddedBy:   req.AddedBy,
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
	}

	id, err := s.repo.Insert(quote)
	if err != nil {
		metrics.StoreOps.WithLabelValues("insert", "error").Inc()
		return nil, err
	}
	metrics.StoreOps.WithLabelValues("insert", "ok").Inc()

	quote.ID = id
	s.invalidateGuild(req.GuildID)
	return quote, nil
}

func (s *QuoteService) GetQuote(id uint, guildID int64) (*models.Quote, error) {
	key := fmt.Sprintf("quote:%d:%d", guildID, id)
	if s.cache != nil {
		if cached, found := s.cache.Get(key); found {
			metrics.StoreOps.WithLabelValues("get", "cached").Inc()
			return cached.(*models.Quote), nil
		}
	}

	quote, err := s.repo.Get(id, guildID)
	if err != nil {
		metrics.StoreOps.WithLabelValues("get", "error").Inc()
		return nil, err
	}
	metrics.StoreOps.WithLabelValues("get", "ok").Inc()

	if s.cache != nil {
		s.cache.Set(key, quote)
	}
	return quote, nil
}

func (s *QuoteService) ListQuotes(guildID int64, authorFilter string, page, pageSize int) ([]models.Quote, error) {
	return s.repo.List(guildID, authorFilter, page, pageSize)
}

func (s *QuoteService) SearchQuotes(guildID int64, term string) ([]models.Quote, error) {
	return s.repo.Search(guildID, term)
}

// RandomQuote is intentionally uncached: a cached value would defeat uniform
// selection.
func (s *QuoteService) RandomQuote(guildID int64, authorFilter string) (*models.Quote, error) {
	quote, err := s.repo.Random(guildID, authorFilter)
	if err != nil {
		metrics.StoreOps.WithLabelValues("random", "error").Inc()
		return nil, err
	}
	metrics.StoreOps.WithLabelValues("random", "ok").Inc()
	return quote, nil
}

func (s *QuoteService) DeleteQuote(id uint, guildID int64) (bool, error) {
	deleted, err := s.repo.Delete(id, guildID)
	if err != nil {
		metrics.StoreOps.WithLabelValues("delete", "error").Inc()
		return false, err
	}
	metrics.StoreOps.WithLabelValues("delete", "ok").Inc()

	if deleted {
		s.invalidateGuild(guildID)
		if s.cache != nil {
			s.cache.Delete(fmt.Sprintf("quote:%d:%d", guildID, id))
		}
	}
	return deleted, nil
}

func (s *QuoteService) CountQuotes(guildID int64) (int64, error) {
	return s.repo.Count(guildID)
}

// ExportQuotes returns every quote of a guild as interchange rows, paging
// through the store in id order.
func (s *QuoteService) ExportQuotes(guildID int64) ([]models.InterchangeRow, error) {
	const pageSize = 500

	rows := []models.InterchangeRow{}
	for page := 1; ; page++ {
		quotes, err := s.repo.List(guildID, "", page, pageSize)
		if err != nil {
			return nil, err
		}
		for i := range quotes {
			rows = append(rows, quotes[i].ToInterchangeRow())
		}
		if len(quotes) < pageSize {
			break
		}
	}
	return rows, nil
}

func (s *QuoteService) invalidateGuild(guildID int64) {
	if s.cache == nil {
		return
	}
	// Guild content changed; dropping everything is cheaper than tracking
	// per-guild key sets.
	s.cache.Flush()
}
