package knowledge

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter estimates how many model tokens a text occupies.
type TokenCounter interface {
	CountTokens(text string) int
}

// ApproxTokens is the fallback estimate: one token per four characters.
func ApproxTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// ApproxCounter counts with ApproxTokens only.
type ApproxCounter struct{}

func (ApproxCounter) CountTokens(text string) int { return ApproxTokens(text) }

// TiktokenCounter uses the model's BPE encoding. The encoding is loaded on
// first use; if it cannot be loaded the counter falls back to ApproxTokens
// for the rest of its life.
type TiktokenCounter struct {
	model string
	log   *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTiktokenCounter(model string, log *zap.Logger) *TiktokenCounter {
	if model == "" {
		model = defaultOpenAIModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TiktokenCounter{model: model, log: log}
}

func (c *TiktokenCounter) CountTokens(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("o200k_base")
		}
		if err != nil {
			c.log.Warn("tokenizer unavailable, using character estimate", zap.String("model", c.model), zap.Error(err))
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return ApproxTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
