package dataset

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"includecut/internal/core/errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const fetchTimeout = 2 * time.Minute

// Load reads and parses the include analysis from a local path or an http(s) URL.
// Gzip-compressed input is detected by its magic bytes.
func Load(ctx context.Context, location string) (*Dataset, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New(errors.CodeValidationError, "no include analysis output given")
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = fetch(ctx, location)
	} else {
		data, err = os.ReadFile(location)
		if os.IsNotExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "include analysis output not found"), errors.CtxPath, location)
		}
	}
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeUnavailable, "could not read include analysis output"), errors.CtxPath, location)
	}

	data, err = maybeGunzip(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeParseError, "could not decompress include analysis output")
	}
	return Parse(data)
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func maybeGunzip(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
