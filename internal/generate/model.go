package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/pomoc-ai/pomoc/internal/log"
)

// systemPrompt frames every model generation. Polish, context-bound, with an
// explicit instruction to defer to a human when unsure.
const systemPrompt = `Jesteś pomocnym asystentem obsługi klienta w polskim sklepie internetowym.

Twoim zadaniem jest:
- Udzielanie pomocnych, uprzejmych odpowiedzi
- Używanie informacji z dostarczonego kontekstu
- Odpowiadanie PO POLSKU
- Być konkretnym i rzeczowym
- Jeśli nie masz pewności - zaproponuj kontakt z konsultantem

Zasady:
- Używaj tylko informacji z kontekstu
- Nie wymyślaj informacji o produktach, cenach, terminach
- Bądź profesjonalny ale przyjazny
- Odpowiedzi max 150-200 słów`

// Confidence heuristic for model answers: start from a base and subtract a
// penalty for each weak signal, clamped to [0.3, 1.0].
const (
	modelBaseConfidence = 0.85

	penaltyThinContext     = 0.15 // context absent or shorter than minContextRunes
	penaltyTruncated       = 0.10 // generation stopped for a reason other than "stop"
	penaltyUncertainPhrase = 0.20 // answer hedges or redirects to a human
	penaltyShortAnswer     = 0.10 // answer shorter than minAnswerRunes

	minContextRunes = 50
	minAnswerRunes  = 50

	minModelConfidence = 0.3
	maxModelConfidence = 1.0
)

// uncertaintyPhrases mark answers where the model signals it does not know.
var uncertaintyPhrases = []string{
	"nie jestem pewien",
	"nie mam informacji",
	"skontaktuj się",
	"nie mogę potwierdzić",
	"proponuję kontakt",
}

// DefaultModelTimeout bounds one generation round trip.
const DefaultModelTimeout = 30 * time.Second

// ModelConfig holds decoding parameters for the model-backed generator.
type ModelConfig struct {
	ModelName   string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Timeout     time.Duration
	// RequestsPerSecond and Burst shape the rate limiter in front of the
	// backend. Zero values mean 5 req/s with a burst of 10.
	RequestsPerSecond float64
	Burst             int
}

// Model generates answers through a Genkit-registered model. Requests queue
// on a shared rate limiter, first come first served.
type Model struct {
	g       *genkit.Genkit
	cfg     ModelConfig
	limiter *rate.Limiter
	logger  log.Logger
}

// NewModel creates the model-backed generator. The genkit instance must
// already have the model's plugin registered.
func NewModel(g *genkit.Genkit, cfg ModelConfig, logger log.Logger) *Model {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultModelTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return &Model{
		g:       g,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Name implements Generator.
func (m *Model) Name() string { return m.cfg.ModelName }

// Generate implements Generator. Backend failures and timeouts surface as
// ErrUnavailable so the orchestrator can substitute its safe fallback.
func (m *Model) Generate(ctx context.Context, query, kbContext string) (Result, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: waiting for rate limiter: %v", ErrUnavailable, err)
	}

	genCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	resp, err := genkit.Generate(genCtx, m.g,
		ai.WithModelName(m.cfg.ModelName),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(userMessage(query, kbContext)),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     m.cfg.Temperature,
			MaxOutputTokens: m.cfg.MaxTokens,
			TopP:            m.cfg.TopP,
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			m.logger.Warn("generation timed out", "model", m.cfg.ModelName, "timeout", m.cfg.Timeout)
			return Result{}, fmt.Errorf("%w: generation timeout after %s", ErrUnavailable, m.cfg.Timeout)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return Result{}, fmt.Errorf("%w: model returned empty answer", ErrUnavailable)
	}

	return Result{
		Answer:     answer,
		Confidence: estimateConfidence(answer, kbContext, string(resp.FinishReason)),
		Model:      m.cfg.ModelName,
	}, nil
}

// userMessage builds the prompt, inlining the knowledge-base context when
// retrieval produced one.
func userMessage(query, kbContext string) string {
	if kbContext != "" {
		return fmt.Sprintf(`Kontekst z bazy wiedzy:
%s

Pytanie klienta:
%s

Odpowiedz na pytanie klienta używając informacji z kontekstu.`, kbContext, query)
	}
	return fmt.Sprintf(`Pytanie klienta:
%s

Odpowiedz na pytanie klienta. Jeśli nie masz wystarczających informacji, zaproponuj kontakt z konsultantem.`, query)
}

// estimateConfidence scores a model answer from observable signals only; the
// model's own logits are not available through the generation API.
func estimateConfidence(answer, kbContext, finishReason string) float64 {
	confidence := modelBaseConfidence

	if len([]rune(strings.TrimSpace(kbContext))) < minContextRunes {
		confidence -= penaltyThinContext
	}
	if finishReason != string(ai.FinishReasonStop) {
		confidence -= penaltyTruncated
	}

	answerLower := strings.ToLower(answer)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(answerLower, phrase) {
			confidence -= penaltyUncertainPhrase
			break
		}
	}
	if len([]rune(answer)) < minAnswerRunes {
		confidence -= penaltyShortAnswer
	}

	return clampConfidence(confidence, minModelConfidence, maxModelConfidence)
}
