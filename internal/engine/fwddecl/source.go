package fwddecl

import (
	"context"
	"fmt"
	"includecut/internal/core/errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Source returns the text of a checkout file.
type Source interface {
	Read(ctx context.Context, path string) (string, error)
}

// NewSource picks a local checkout for a directory root and an HTTP source
// for an http(s) root. An HTTP root may contain {revision}, replaced by rev.
func NewSource(root, revision, token string) Source {
	if strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://") {
		return &HTTPSource{
			BaseURL: strings.TrimRight(strings.ReplaceAll(root, "{revision}", revision), "/"),
			Token:   token,
			Client:  &http.Client{Timeout: 60 * time.Second},
		}
	}
	return DirSource{Root: root}
}

// DirSource reads files from a local checkout.
type DirSource struct {
	Root string
}

func (s DirSource) Read(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Newf(errors.CodeNotFound, "no source for %s under %s", path, s.Root)
		}
		return "", errors.Wrap(err, errors.CodeInternal, "read source file")
	}
	return string(data), nil
}

// HTTPSource fetches files from a raw-content host.
type HTTPSource struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (s *HTTPSource) Read(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/"+path, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", errors.AddContext(errors.Wrap(err, errors.CodeUnavailable, "fetch source file"), errors.CtxPath, path)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", errors.Newf(errors.CodeNotFound, "no source for %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.CodeUnavailable, "fetch %s: status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeUnavailable, "read source file")
	}
	return string(data), nil
}
