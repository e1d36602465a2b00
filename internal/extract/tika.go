// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pdiddy/docxml/internal/httputil"
	"github.com/pdiddy/docxml/pkg/types"
)

const defaultUserAgent = "docxml/0.1"

// TikaExtractor sends documents to an Apache Tika server: PUT /tika for the
// text and PUT /meta for the document properties. Busy responses are retried
// through httputil.DoWithRetry.
type TikaExtractor struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	maxRetries int
	delimiter  string
}

// NewTikaExtractor returns a TikaExtractor for the server at cfg.TikaURL.
func NewTikaExtractor(client *http.Client, cfg types.ExtractionConfig, delimiter string) (*TikaExtractor, error) {
	if cfg.TikaURL == "" {
		return nil, fmt.Errorf("tika backend requires a server URL (extraction.tika_url)")
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &TikaExtractor{
		client:     client,
		baseURL:    strings.TrimRight(cfg.TikaURL, "/"),
		apiKey:     cfg.TikaAPIKey,
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
		delimiter:  delimiter,
	}, nil
}

// Extract uploads the document twice, once for text and once for metadata.
func (t *TikaExtractor) Extract(ctx context.Context, r io.Reader, name string) (*types.ExtractionResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	text, err := t.put(ctx, "/tika", "text/plain", data)
	if err != nil {
		return nil, fmt.Errorf("tika text for %s: %w", name, err)
	}
	if strings.TrimSpace(string(text)) == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNoText)
	}

	rawMeta, err := t.put(ctx, "/meta", "application/json", data)
	if err != nil {
		return nil, fmt.Errorf("tika metadata for %s: %w", name, err)
	}
	var meta map[string]any
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, fmt.Errorf("parsing tika metadata for %s: %w", name, err)
	}

	pages := strings.Split(strings.ReplaceAll(string(text), "\r\n", "\n"), t.delimiter)
	count, _ := strconv.Atoi(metaString(meta, "xmpTPg:NPages"))
	if count == 0 {
		count = len(pages)
	}

	return &types.ExtractionResult{
		Title:        metaString(meta, "dc:title", "title"),
		Author:       metaString(meta, "dc:creator", "meta:author", "Author"),
		PageCount:    count,
		CreationDate: metaString(meta, "dcterms:created", "pdf:docinfo:created"),
		ModDate:      metaString(meta, "dcterms:modified", "pdf:docinfo:modified"),
		Text:         joinPages(pages, t.delimiter),
	}, nil
}

func (t *TikaExtractor) put(ctx context.Context, path, accept string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", t.userAgent)
	if t.apiKey != "" {
		req.Header.Set("X-Tika-API-Key", t.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, t.client, req, t.maxRetries)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// metaString returns the first non-empty value among keys. Tika reports
// repeated properties as arrays; the first element is used.
func metaString(meta map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := meta[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}
