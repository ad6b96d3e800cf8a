package provider

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/veritas-legal/clausecore/internal/service"
)

// TiktokenCounter implements service.Tokenizer using the same BPE
// encoding the ingest pipeline counted tokens with, so budget
// invariants hold across ingest and query time.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("provider.NewTiktokenCounter: %w", err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

var _ service.Tokenizer = (*TiktokenCounter)(nil)

func (t *TiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
