// Package blacklist loads opt-out lists: addresses whose owners asked not to
// be probed. Entries are merged into the reserved table before planning.
package blacklist

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"ipsweep/internal/domain"
)

const maxResponseBytes = 10 << 20 // 10 MiB safety cap

var errTooLarge = errors.New("opt-out list exceeds size limit")

var (
	httpClient = &http.Client{Timeout: 30 * time.Second}
	ipRegex    = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2}|\s*-\s*\d{1,3}(?:\.\d{1,3}){3})?\b`)
)

// Load reads every source, which may be an http(s) URL or a local file path,
// and returns the ranges found. A source that cannot be read fails the load;
// skipping it would put opted-out hosts back into the sweep.
func Load(ctx context.Context, sources []string) ([]domain.AddressRange, error) {
	var ranges []domain.AddressRange

	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}

		content, err := read(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("blacklist source %s: %w", src, err)
		}

		parsed := parse(content)
		log.Info("Loaded opt-out list", "source", src, "ranges", len(parsed))
		ranges = append(ranges, parsed...)
	}

	return ranges, nil
}

func read(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetch(ctx, source)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCapped(f)
}

// readCapped returns errTooLarge rather than a truncated list.
func readCapped(r io.Reader) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(content) > maxResponseBytes {
		return nil, fmt.Errorf("%w of %d bytes", errTooLarge, maxResponseBytes)
	}
	return content, nil
}

func fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	content, err := readCapped(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return content, nil
}

// parse extracts every IPv4 address, CIDR block or dashed range from
// free-form text.
// Lines starting with # or ; are comments.
func parse(payload []byte) []domain.AddressRange {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	seen := make(map[domain.AddressRange]struct{})
	var ranges []domain.AddressRange

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' || line[0] == ';' {
			continue
		}
		for _, match := range ipRegex.FindAll(line, -1) {
			r, err := domain.ParseRange(strings.Join(strings.Fields(string(match)), ""))
			if err != nil {
				continue
			}
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			ranges = append(ranges, r)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warn("Opt-out list scanner warning", "error", err)
	}

	return ranges
}
