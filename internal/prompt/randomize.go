package prompt

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/dmorgan81/text2img/internal/log"
	"github.com/samber/do"
)

var ErrNoPrompts = errors.New("no prompts configured")

type Randomizer struct {
	prompts []string
	rnd     *rand.Rand
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts := do.MustInvokeNamed[[]string](i, "prompts")
	return New(prompts, time.Now().UTC().Unix()), nil
}

func New(prompts []string, seed int64) *Randomizer {
	return &Randomizer{prompts, rand.New(rand.NewSource(seed))}
}

func (r *Randomizer) Randomize(ctx context.Context) (string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("randomizer")
	if len(r.prompts) == 0 {
		return "", ErrNoPrompts
	}
	prompt := r.prompts[r.rnd.Intn(len(r.prompts))]
	log.Debug("picked random prompt", "prompt", prompt)
	return prompt, nil
}
