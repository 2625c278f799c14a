package sources

import "fmt"

// FeedFetchError reports a network or parse failure for one feed. The
// aggregator records it and moves on; it is never fatal to a sync run.
type FeedFetchError struct {
	Source  string
	URL     string
	Timeout bool
	Err     error
}

func (e *FeedFetchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("fetch feed %s (%s): timed out: %v", e.Source, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch feed %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *FeedFetchError) Unwrap() error {
	return e.Err
}
