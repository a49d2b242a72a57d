// Package search talks to Elasticsearch over its REST API and degrades to a
// bundled fallback corpus when the cluster is unreachable.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/estctiger/estctiger/config"
)

// minRRFVersion is the first Elasticsearch release where the rrf retriever
// with sparse_vector queries is available outside a trial license.
const minRRFVersion = "8.14.0"

// ESClient is a thin Elasticsearch REST client. It carries no cluster state
// beyond a cached capability probe.
type ESClient struct {
	client *resty.Client
	logger *zap.Logger

	rrfOnce sync.Once
	rrf     bool
}

func NewESClient(cfg *config.Config, logger *zap.Logger) *ESClient {
	client := resty.New()
	client.SetBaseURL(cfg.ElasticsearchURL)
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetHeader("Content-Type", "application/json")

	if cfg.ElasticsearchAPIKey != "" {
		client.SetHeader("Authorization", "ApiKey "+cfg.ElasticsearchAPIKey)
	} else if cfg.ElasticsearchUsername != "" {
		client.SetBasicAuth(cfg.ElasticsearchUsername, cfg.ElasticsearchPassword)
	}

	return &ESClient{
		client: client,
		logger: logger,
	}
}

// Ping reports whether the cluster answers at all.
func (c *ESClient) Ping(ctx context.Context) bool {
	resp, err := c.client.R().SetContext(ctx).Head("/")
	return err == nil && resp.StatusCode() == 200
}

type clusterInfo struct {
	ClusterName string `json:"cluster_name"`
	Version     struct {
		Number string `json:"number"`
	} `json:"version"`
}

// Info fetches the root endpoint, used for capability probing and health.
func (c *ESClient) Info(ctx context.Context) (*clusterInfo, error) {
	resp, err := c.client.R().SetContext(ctx).Get("/")
	if err != nil {
		return nil, fmt.Errorf("failed to reach elasticsearch: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("elasticsearch error %d: %s", resp.StatusCode(), resp.String())
	}
	var info clusterInfo
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse cluster info: %w", err)
	}
	return &info, nil
}

// SupportsRRF probes the cluster version once and caches the answer. Probe
// failures report false; the next search simply runs lexically.
func (c *ESClient) SupportsRRF(ctx context.Context) bool {
	c.rrfOnce.Do(func() {
		info, err := c.Info(ctx)
		if err != nil {
			c.logger.Warn("capability probe failed, using lexical search", zap.Error(err))
			return
		}
		c.rrf = versionAtLeast(info.Version.Number, minRRFVersion)
		c.logger.Debug("capability probe",
			zap.String("cluster", info.ClusterName),
			zap.String("version", info.Version.Number),
			zap.Bool("rrf", c.rrf))
	})
	return c.rrf
}

type esHit struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

// Search runs one query body against a single index. Missing indices are
// tolerated so a partially provisioned cluster still answers.
func (c *ESClient) Search(ctx context.Context, index string, body map[string]any) (*esSearchResponse, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("ignore_unavailable", "true").
		SetBody(body).
		Post("/" + index + "/_search")
	if err != nil {
		return nil, fmt.Errorf("search %s failed: %w", index, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("search %s error %d: %s", index, resp.StatusCode(), resp.String())
	}
	var out esSearchResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return &out, nil
}

// versionAtLeast compares dotted release numbers numerically, ignoring any
// prerelease suffix on a segment.
func versionAtLeast(version, min string) bool {
	vp := strings.Split(version, ".")
	mp := strings.Split(min, ".")
	for i := 0; i < len(mp); i++ {
		var v, m int
		if i < len(vp) {
			v = leadingInt(vp[i])
		}
		m = leadingInt(mp[i])
		if v != m {
			return v > m
		}
	}
	return true
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
