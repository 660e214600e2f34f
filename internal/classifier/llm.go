package classifier

import (
	"context"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// llmUpstreamTimeout is the hard deadline for the classification
// fallback's upstream call.
const llmUpstreamTimeout = 5 * time.Second

const classificationPrompt = "Classify the complexity of the following user request. " +
	"Respond with exactly one word: SIMPLE, MEDIUM, COMPLEX, or REASONING.\n\nRequest:\n"

// Completer is the minimal upstream capability the LLM Classifier needs:
// a single non-streaming completion call against whatever model the
// caller has bound it to (the catalog's SIMPLE primary, per the
// component design). Implementations wrap a concrete provider client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMClassifier implements C5: a cached, one-shot fallback classifier
// invoked when the Rule Classifier reports an ambiguous result. Failures
// never propagate; they degrade to {MEDIUM, 0.6}.
type LLMClassifier struct {
	cache    *Cache
	upstream Completer
	logger   *logrus.Logger
}

// NewLLMClassifier constructs an LLMClassifier backed by the given cache
// and upstream completer. logger may be nil, in which case warnings are
// discarded.
func NewLLMClassifier(cache *Cache, upstream Completer, logger *logrus.Logger) *LLMClassifier {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &LLMClassifier{cache: cache, upstream: upstream, logger: logger}
}

// Classify returns a calibrated tier for userText, consulting the cache
// first and only falling back to the upstream completer on a miss.
func (lc *LLMClassifier) Classify(ctx context.Context, userText string) (tier Tier, confidence float64) {
	fp := Fingerprint(userText)

	if cached, ok := lc.cache.Lookup(fp); ok {
		return cached, 0.75
	}

	ctx, cancel := context.WithTimeout(ctx, llmUpstreamTimeout)
	defer cancel()

	raw, err := lc.upstream.Complete(ctx, classificationPrompt+userText)
	if err != nil {
		lc.logger.WithError(err).Warn("llm classifier: upstream call failed, defaulting to MEDIUM")
		return TierMedium, 0.6
	}

	tier, ok := parseTierWord(raw)
	if !ok {
		lc.logger.WithField("raw", raw).Warn("llm classifier: unparseable response, defaulting to MEDIUM")
		return TierMedium, 0.6
	}

	lc.cache.Insert(fp, tier)
	return tier, 0.75
}

// InvalidateCache clears every cached classification result, forcing
// the next ambiguous request per fingerprint back through the upstream
// completer.
func (lc *LLMClassifier) InvalidateCache() {
	lc.cache.Invalidate()
}

var tierWordPattern = regexp.MustCompile(`(?i)\b(SIMPLE|MEDIUM|COMPLEX|REASONING)\b`)

func parseTierWord(raw string) (Tier, bool) {
	match := tierWordPattern.FindString(raw)
	if match == "" {
		return TierMedium, false
	}
	switch strings.ToUpper(match) {
	case "SIMPLE":
		return TierSimple, true
	case "MEDIUM":
		return TierMedium, true
	case "COMPLEX":
		return TierComplex, true
	case "REASONING":
		return TierReasoning, true
	default:
		return TierMedium, false
	}
}
