package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/pavelanni/adaptest/internal/model"
)

// ErrNoChoices is returned by the built-in processors for items without choices.
var ErrNoChoices = errors.New("item has no choices")

// ItemProcessor answers one item with the ID of the chosen choice.
// It may block, for example while calling a remote model.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item model.Item) (string, error)
}

// ProcessorFunc adapts a function to ItemProcessor.
type ProcessorFunc func(ctx context.Context, item model.Item) (string, error)

func (f ProcessorFunc) ProcessItem(ctx context.Context, item model.Item) (string, error) {
	return f(ctx, item)
}

// FirstChoice always answers with the first choice.
var FirstChoice ItemProcessor = ProcessorFunc(func(_ context.Context, item model.Item) (string, error) {
	if len(item.Choices) == 0 {
		return "", fmt.Errorf("item %s: %w", item.ID, ErrNoChoices)
	}
	return item.Choices[0].ID, nil
})

// RandomChoice answers with a uniformly random choice. It is safe for
// concurrent use.
type RandomChoice struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomChoice returns a RandomChoice seeded with seed, so a sequence of
// answers can be reproduced.
func NewRandomChoice(seed uint64) *RandomChoice {
	return &RandomChoice{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomChoice) ProcessItem(_ context.Context, item model.Item) (string, error) {
	if len(item.Choices) == 0 {
		return "", fmt.Errorf("item %s: %w", item.ID, ErrNoChoices)
	}
	p.mu.Lock()
	i := p.rng.IntN(len(item.Choices))
	p.mu.Unlock()
	return item.Choices[i].ID, nil
}
