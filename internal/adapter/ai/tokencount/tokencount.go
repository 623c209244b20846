// Package tokencount estimates token usage for prompt budgeting.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	once sync.Once
	enc  *tiktoken.Tiktoken
)

// Count returns the token count of text under the cl100k_base encoding.
// Falls back to a bytes/4 estimate when the encoding cannot be loaded
// (e.g. offline without a cached BPE file).
func Count(text string) int {
	once.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func estimate(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
