// Package extract turns uploaded bytes into plain text. Binary formats are
// delegated to an external extraction endpoint; plain-text families are
// handled inline; images carry no extractable text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

type Result struct {
	Text     string
	Metadata map[string]string
}

type Extractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (Result, error)
}

// Service extracts inline what it can and forwards the rest to a Tika-style
// endpoint when one is configured.
type Service struct {
	remoteURL string
	http      *http.Client
}

func NewService(remoteURL string) *Service {
	return &Service{
		remoteURL: remoteURL,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *Service) ExtractText(ctx context.Context, data []byte, mimeType string) (Result, error) {
	mt := normalizeMime(mimeType)

	switch {
	case strings.HasPrefix(mt, "image/"):
		// valid terminal state with zero text
		return Result{Metadata: map[string]string{"extractor": "none", "reason": "image"}}, nil

	case strings.HasPrefix(mt, "text/"), mt == "application/json":
		if !utf8.Valid(data) {
			return Result{}, fmt.Errorf("extract: %s payload is not valid UTF-8", mt)
		}
		return Result{
			Text:     string(data),
			Metadata: map[string]string{"extractor": "inline"},
		}, nil
	}

	if s.remoteURL == "" {
		return Result{Metadata: map[string]string{"extractor": "none", "reason": "no endpoint for " + mt}}, nil
	}
	return s.extractRemote(ctx, data, mt)
}

func (s *Service) extractRemote(ctx context.Context, data []byte, mimeType string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.remoteURL, bytes.NewReader(data))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", "text/plain")

	resp, err := s.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("extract request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("extract response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("extract: status %d", resp.StatusCode)
	}
	return Result{
		Text:     string(body),
		Metadata: map[string]string{"extractor": "remote", "mime": mimeType},
	}, nil
}

func normalizeMime(mt string) string {
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
