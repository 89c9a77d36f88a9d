package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"souq_back_end/internal/models"
)

// ErrSearchUnavailable means callers should fall back to filtering the
// catalog themselves.
var ErrSearchUnavailable = errors.New("search unavailable")

type searchDoc struct {
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	ShortDescription string    `json:"short_description"`
	LongDescription  string    `json:"long_description"`
	Price            float64   `json:"price"`
	CreatedAt        time.Time `json:"created_at"`
}

// SearchIndex mirrors the catalog into Elasticsearch. Every call goes
// through a circuit breaker so a sick cluster fails fast.
type SearchIndex struct {
	es     *elasticsearch.Client
	index  string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewSearchIndex(es *elasticsearch.Client, index string, logger *zap.Logger) *SearchIndex {
	settings := gobreaker.Settings{
		Name:        "Elasticsearch",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &SearchIndex{
		es:     es,
		index:  index,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

func executeWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return *new(T), err
	}
	return res.(T), nil
}

func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("elasticsearch %s: %s", res.Status(), strings.TrimSpace(string(body)))
}

// IndexProduct upserts one product document.
func (si *SearchIndex) IndexProduct(ctx context.Context, p models.Product) error {
	doc := searchDoc{
		Name:             p.Name,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		LongDescription:  p.LongDescription,
		Price:            p.Price.InexactFloat64(),
		CreatedAt:        p.CreatedAt,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	_, err = executeWithBreaker(si.cb, func() (struct{}, error) {
		req := esapi.IndexRequest{
			Index:      si.index,
			DocumentID: p.ID.String(),
			Body:       bytes.NewReader(data),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, si.es)
		if err != nil {
			return struct{}{}, err
		}
		defer res.Body.Close()
		if res.IsError() {
			return struct{}{}, responseError(res)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("index product %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProduct removes a product document. Missing documents are fine.
func (si *SearchIndex) DeleteProduct(ctx context.Context, productID string) error {
	_, err := executeWithBreaker(si.cb, func() (struct{}, error) {
		req := esapi.DeleteRequest{Index: si.index, DocumentID: productID, Refresh: "true"}
		res, err := req.Do(ctx, si.es)
		if err != nil {
			return struct{}{}, err
		}
		defer res.Body.Close()
		if res.IsError() && res.StatusCode != 404 {
			return struct{}{}, responseError(res)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", productID, err)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching product ids, best match first.
func (si *SearchIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	var buf bytes.Buffer
	body := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"name^3", "short_description^2", "description", "long_description"},
				"fuzziness": "AUTO",
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	ids, err := executeWithBreaker(si.cb, func() ([]string, error) {
		req := esapi.SearchRequest{Index: []string{si.index}, Body: &buf}
		res, err := req.Do(ctx, si.es)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		if res.IsError() {
			return nil, responseError(res)
		}

		var r searchResponse
		if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		ids := make([]string, 0, len(r.Hits.Hits))
		for _, h := range r.Hits.Hits {
			ids = append(ids, h.ID)
		}
		return ids, nil
	})
	if err != nil {
		si.logger.Warn("elasticsearch search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	return ids, nil
}

// FilterProducts is the in-memory fallback used when the index cannot answer.
func FilterProducts(products []models.Product, query string) []models.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}

	var out []models.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.ShortDescription), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.LongDescription), q) {
			out = append(out, p)
		}
	}
	return out
}
