package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// elserPipeline enriches documents with sparse vectors at index time. It
// must already exist on the cluster; the reindexer only verifies it.
const elserPipeline = "elser-v2-pipeline"

// reindexBatchSize keeps ELSER inference per bulk request small enough to
// stay under the ml node's queue limits.
const reindexBatchSize = 10

// Reindexer copies every estc-* index into an estc-*-v2 twin whose
// documents carry a content_for_vector field and ELSER sparse vectors.
type Reindexer struct {
	es     *ESClient
	logger *zap.Logger
}

func NewReindexer(es *ESClient, logger *zap.Logger) *Reindexer {
	return &Reindexer{es: es, logger: logger}
}

// Run reindexes all source indices. It fails fast when the cluster or the
// ELSER pipeline is missing, then processes indices one at a time so a
// single broken index does not abort the rest.
func (r *Reindexer) Run(ctx context.Context) error {
	info, err := r.es.Info(ctx)
	if err != nil {
		return fmt.Errorf("cluster unreachable: %w", err)
	}
	r.logger.Info("connected", zap.String("version", info.Version.Number))

	if err := r.checkPipeline(ctx); err != nil {
		return err
	}

	sources, err := r.sourceIndices(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no source indices found")
	}

	for _, source := range sources {
		target := source + "-v2"
		if err := r.reindexOne(ctx, source, target); err != nil {
			r.logger.Error("reindex failed", zap.String("index", source), zap.Error(err))
			continue
		}
	}
	return nil
}

func (r *Reindexer) checkPipeline(ctx context.Context) error {
	resp, err := r.es.client.R().SetContext(ctx).Get("/_ingest/pipeline/" + elserPipeline)
	if err != nil {
		return fmt.Errorf("pipeline check failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("pipeline %s not found (status %d)", elserPipeline, resp.StatusCode())
	}
	return nil
}

// sourceIndices lists estc-* indices that are not already v2 targets.
func (r *Reindexer) sourceIndices(ctx context.Context) ([]string, error) {
	resp, err := r.es.client.R().SetContext(ctx).Get("/estc-*/_alias")
	if err != nil {
		return nil, fmt.Errorf("failed to list indices: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("failed to list indices: status %d", resp.StatusCode())
	}
	var aliases map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse index list: %w", err)
	}
	var sources []string
	for name := range aliases {
		if !strings.HasSuffix(name, "-v2") {
			sources = append(sources, name)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

func (r *Reindexer) reindexOne(ctx context.Context, source, target string) error {
	r.logger.Info("reindexing", zap.String("source", source), zap.String("target", target))

	if err := r.createTarget(ctx, source, target); err != nil {
		return err
	}

	docs, err := r.fetchAll(ctx, source)
	if err != nil {
		return err
	}

	for start := 0; start < len(docs); start += reindexBatchSize {
		end := start + reindexBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := r.bulkIndex(ctx, target, docs[start:end]); err != nil {
			r.logger.Warn("bulk batch failed", zap.String("target", target), zap.Error(err))
		}
	}

	r.logger.Info("reindexed", zap.String("target", target), zap.Int("documents", len(docs)))
	return nil
}

// createTarget recreates the v2 index with the source's mapping plus the
// vector fields. An existing target is deleted first.
func (r *Reindexer) createTarget(ctx context.Context, source, target string) error {
	head, err := r.es.client.R().SetContext(ctx).Head("/" + target)
	if err == nil && head.StatusCode() == 200 {
		if _, err := r.es.client.R().SetContext(ctx).Delete("/" + target); err != nil {
			return fmt.Errorf("failed to delete %s: %w", target, err)
		}
	}

	resp, err := r.es.client.R().SetContext(ctx).Get("/" + source + "/_mapping")
	if err != nil {
		return fmt.Errorf("failed to fetch mapping for %s: %w", source, err)
	}
	var mappings map[string]struct {
		Mappings struct {
			Properties map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(resp.Body(), &mappings); err != nil {
		return fmt.Errorf("failed to parse mapping for %s: %w", source, err)
	}

	properties := map[string]any{}
	if m, ok := mappings[source]; ok {
		for k, v := range m.Mappings.Properties {
			properties[k] = v
		}
	}
	properties["content_for_vector"] = map[string]any{"type": "text"}
	properties["ml"] = map[string]any{
		"properties": map[string]any{
			"tokens": map[string]any{"type": "sparse_vector"},
			"model_id": map[string]any{
				"type": "text",
				"fields": map[string]any{
					"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
				},
			},
		},
	}

	create, err := r.es.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"mappings": map[string]any{"properties": properties}}).
		Put("/" + target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if create.StatusCode() != 200 {
		return fmt.Errorf("failed to create %s: status %d: %s", target, create.StatusCode(), create.String())
	}
	return nil
}

type reindexDoc struct {
	id     string
	source map[string]any
}

// fetchAll pages through the source index with search_after on _doc order.
func (r *Reindexer) fetchAll(ctx context.Context, source string) ([]reindexDoc, error) {
	var docs []reindexDoc
	var searchAfter []any
	for {
		body := map[string]any{
			"query": map[string]any{"match_all": map[string]any{}},
			"size":  1000,
			"sort":  []any{map[string]any{"_doc": "asc"}},
		}
		if searchAfter != nil {
			body["search_after"] = searchAfter
		}
		resp, err := r.es.client.R().
			SetContext(ctx).
			SetBody(body).
			Post("/" + source + "/_search")
		if err != nil {
			return nil, fmt.Errorf("failed to page %s: %w", source, err)
		}
		var page struct {
			Hits struct {
				Hits []struct {
					ID     string         `json:"_id"`
					Source map[string]any `json:"_source"`
					Sort   []any          `json:"sort"`
				} `json:"hits"`
			} `json:"hits"`
		}
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return nil, fmt.Errorf("failed to parse page from %s: %w", source, err)
		}
		if len(page.Hits.Hits) == 0 {
			return docs, nil
		}
		for _, hit := range page.Hits.Hits {
			src := make(map[string]any, len(hit.Source)+1)
			for k, v := range hit.Source {
				src[k] = v
			}
			src["content_for_vector"] = contentForVector(hit.Source)
			docs = append(docs, reindexDoc{id: hit.ID, source: src})
		}
		searchAfter = page.Hits.Hits[len(page.Hits.Hits)-1].Sort
	}
}

func (r *Reindexer) bulkIndex(ctx context.Context, target string, docs []reindexDoc) error {
	var b strings.Builder
	for _, doc := range docs {
		action, _ := json.Marshal(map[string]any{
			"index": map[string]any{"_index": target, "_id": doc.id},
		})
		source, err := json.Marshal(doc.source)
		if err != nil {
			return fmt.Errorf("failed to encode document %s: %w", doc.id, err)
		}
		b.Write(action)
		b.WriteByte('\n')
		b.Write(source)
		b.WriteByte('\n')
	}

	resp, err := r.es.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-ndjson").
		SetQueryParam("pipeline", elserPipeline).
		SetBody(b.String()).
		Post("/_bulk")
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("bulk error %d: %s", resp.StatusCode(), resp.String())
	}
	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err == nil && result.Errors {
		return fmt.Errorf("bulk response reported item failures")
	}
	return nil
}

// contentForVector flattens a document into "Field Name: value" lines, the
// text ELSER embeds.
func contentForVector(source map[string]any) string {
	keys := make([]string, 0, len(source))
	for k := range source {
		if k == "content_for_vector" || k == "ml" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		v := source[k]
		if v == nil {
			continue
		}
		name := titleCase(strings.ReplaceAll(k, "_", " "))
		if list, ok := v.([]any); ok {
			parts := make([]string, len(list))
			for i, item := range list {
				parts[i] = fmt.Sprint(item)
			}
			lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(parts, ", ")))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %v", name, v))
		}
	}
	return strings.Join(lines, "\n")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
