package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"lmsapi/pkg/domain"
)

const (
	defaultIndex  = "courses"
	maxSearchHits = 100
)

// ElasticIndex stores courses in an Elasticsearch index.
type ElasticIndex struct {
	es    *elasticsearch.Client
	index string
}

// NewElasticIndex connects to the given addresses.
func NewElasticIndex(addresses []string, index string) (*ElasticIndex, error) {
	if len(addresses) == 0 {
		return nil, errors.New("elasticsearch address required")
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch client: %w", err)
	}
	if strings.TrimSpace(index) == "" {
		index = defaultIndex
	}
	return &ElasticIndex{es: es, index: index}, nil
}

// EnsureIndex creates the index with wildcard-typed text fields when missing.
func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":           map[string]any{"type": "keyword"},
				"title":        map[string]any{"type": "wildcard"},
				"description":  map[string]any{"type": "wildcard"},
				"thumbnailUrl": map[string]any{"type": "keyword", "index": false},
				"isPublished":  map[string]any{"type": "boolean"},
				"createdAt":    map[string]any{"type": "date"},
				"updatedAt":    map[string]any{"type": "date"},
			},
		},
	}
	body, _ := json.Marshal(mapping)
	res, err = e.es.Indices.Create(e.index,
		e.es.Indices.Create.WithBody(bytes.NewReader(body)),
		e.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("create index: %s", res.String())
	}
	return nil
}

// IndexCourse upserts the course document under its id.
func (e *ElasticIndex) IndexCourse(ctx context.Context, c domain.Course) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	res, err := e.es.Index(
		e.index,
		bytes.NewReader(data),
		e.es.Index.WithDocumentID(c.ID),
		e.es.Index.WithRefresh("true"),
		e.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index course: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index course: %s", res.String())
	}
	return nil
}

// DeleteCourse removes the document; a missing document is not an error.
func (e *ElasticIndex) DeleteCourse(ctx context.Context, id string) error {
	res, err := e.es.Delete(e.index, id,
		e.es.Delete.WithRefresh("true"),
		e.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete course: %s", res.String())
	}
	return nil
}

// SearchCourses matches query anywhere in title or description, case-insensitively.
func (e *ElasticIndex) SearchCourses(ctx context.Context, query string, publishedOnly bool) ([]domain.Course, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildCourseQuery(query, publishedOnly)); err != nil {
		return nil, err
	}
	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(&buf),
		e.es.Search.WithSize(maxSearchHits),
	)
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search courses: %s", res.String())
	}
	var r struct {
		Hits struct {
			Hits []struct {
				Source domain.Course `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]domain.Course, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func buildCourseQuery(query string, publishedOnly bool) map[string]any {
	boolQuery := map[string]any{}
	if q := strings.TrimSpace(query); q != "" {
		pattern := "*" + escapeWildcard(q) + "*"
		boolQuery["should"] = []any{
			map[string]any{"wildcard": map[string]any{"title": map[string]any{"value": pattern, "case_insensitive": true}}},
			map[string]any{"wildcard": map[string]any{"description": map[string]any{"value": pattern, "case_insensitive": true}}},
		}
		boolQuery["minimum_should_match"] = 1
	}
	if publishedOnly {
		boolQuery["filter"] = []any{
			map[string]any{"term": map[string]any{"isPublished": true}},
		}
	}
	return map[string]any{"query": map[string]any{"bool": boolQuery}}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}
