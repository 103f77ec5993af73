package defaultcollab

import (
	"context"
	"math/rand/v2"
	"strings"
)

// corpora maps a corpus name to a small syllable set. The default
// algorithm is a fixed corpus-keyed syllable joiner; real wyrdbound-rng
// generation (Markov/Bayesian, settings-tunable) is explicitly the
// caller's collaborator to supply (§6B).
var corpora = map[string][]string{
	"generic-fantasy": {"bel", "dor", "mir", "an", "wyn", "rha", "tor", "eth", "lys", "or"},
}

const defaultCorpus = "generic-fantasy"

// NameGenerator joins two or three corpus-keyed syllables into a name.
// Of the max_length/corpus/segmenter/algorithm settings shape from §4.5
// it reads max_length and corpus; segmenter and algorithm are accepted
// and ignored.
type NameGenerator struct {
	Rand *rand.Rand
}

func (g *NameGenerator) intn(n int) int {
	if g.Rand != nil {
		return g.Rand.IntN(n)
	}
	return rand.IntN(n)
}

// Generate produces {name, generator, corpus}. Settings defaults mirror
// §4.5: max_length=15, corpus="generic-fantasy"; segmenter and algorithm
// are not read by this fixed joiner.
func (g *NameGenerator) Generate(ctx context.Context, generator string, settings map[string]any) (map[string]any, error) {
	if generator == "" {
		generator = "wyrdbound-rng"
	}
	corpus, _ := settings["corpus"].(string)
	if corpus == "" {
		corpus = defaultCorpus
	}
	maxLength := 15
	if ml, ok := settings["max_length"].(int); ok {
		maxLength = ml
	}
	syllables := corpora[corpus]
	if len(syllables) == 0 {
		syllables = corpora[defaultCorpus]
	}

	count := 2 + g.intn(2) // 2 or 3 syllables
	var b []string
	for i := 0; i < count; i++ {
		b = append(b, syllables[g.intn(len(syllables))])
	}
	name := joinCapitalized(b)
	if len(name) > maxLength {
		name = name[:maxLength]
	}

	return map[string]any{
		"name":      name,
		"generator": generator,
		"corpus":    corpus,
	}, nil
}

func joinCapitalized(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += p
	}
	return capitalize(out)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
