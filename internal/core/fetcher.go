package core

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// percentPattern matches the percentage curl prints on its progress meter.
var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// Fetcher transfers remote resources to local paths by shelling out to
// curl, adding mirror failover and progress-event emission on top of the
// Runner. Success is judged purely by the tool's exit status; the
// downloaded bytes are never inspected here.
type Fetcher struct {
	runner Runner
	events Events
}

// NewFetcher creates a Fetcher that reports progress through events.
func NewFetcher(runner Runner, events Events) *Fetcher {
	return &Fetcher{runner: runner, events: events}
}

// Fetch downloads task.PrimaryURL to task.Dest. On failure each mirror is
// tried in order with the same destination; the first success terminates
// the sequence. Exhausting the primary and every mirror returns a
// *DownloadError naming the last URL attempted.
func (f *Fetcher) Fetch(ctx context.Context, task DownloadTask) (*FetchResult, error) {
	candidates := append([]string{task.PrimaryURL}, task.Mirrors...)

	var lastErr error
	var lastURL string
	for _, url := range candidates {
		lastURL = url
		if err := f.attempt(ctx, url, task); err != nil {
			lastErr = err
			continue
		}

		size := int64(0)
		if info, err := os.Stat(task.Dest); err == nil {
			size = info.Size()
		}
		return &FetchResult{URL: url, BytesTransferred: size}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no download source configured")
	}
	return nil, &DownloadError{URL: lastURL, Err: lastErr}
}

// attempt performs one curl transfer, translating the tool's progress meter
// into percent events.
func (f *Fetcher) attempt(ctx context.Context, url string, task DownloadTask) error {
	argv := []string{"curl", "-L", "--fail", "-#", url, "-o", task.Dest}

	_, err := f.runner.RunStream(ctx, func(line string) {
		if m := percentPattern.FindStringSubmatch(line); m != nil {
			if pct, perr := strconv.ParseFloat(m[1], 64); perr == nil {
				f.events.progress(task.DisplayName, pct)
			}
		}
	}, argv...)
	return err
}
