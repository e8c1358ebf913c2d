package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/english-mastery/backend/config"
	"github.com/english-mastery/backend/logger"
)

// TextCompleter sends one prompt to a language model and returns its raw reply.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ContentGenerator derives vocabulary and questions from a passage.
type ContentGenerator interface {
	Generate(ctx context.Context, text string, maxWords, maxQuestions int) (*GeneratedContent, error)
}

type GeminiCompleter struct {
	apiKey string
	model  string
}

func NewGeminiCompleter(apiKey, model string) *GeminiCompleter {
	return &GeminiCompleter{apiKey: apiKey, model: model}
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(4096)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

// GenerationClient builds the prompt, bounds the input and the call
// duration, and parses the reply leniently.
type GenerationClient struct {
	completer TextCompleter
	cfg       config.AIConfig
	log       *logger.Logger
}

// NewGenerationClient builds the Gemini-backed client. Without an API key
// the client still exists but every Generate call fails fast.
func NewGenerationClient(cfg config.AIConfig, log *logger.Logger) *GenerationClient {
	var completer TextCompleter
	if strings.TrimSpace(cfg.APIKey) != "" {
		completer = NewGeminiCompleter(cfg.APIKey, cfg.Model)
	}
	return NewGenerationClientWithCompleter(completer, cfg, log)
}

func NewGenerationClientWithCompleter(completer TextCompleter, cfg config.AIConfig, log *logger.Logger) *GenerationClient {
	return &GenerationClient{completer: completer, cfg: cfg, log: log.With("service", "GenerationClient")}
}

func (g *GenerationClient) Generate(ctx context.Context, text string, maxWords, maxQuestions int) (*GeneratedContent, error) {
	if g.completer == nil {
		g.log.Error("generation requested but no API key is configured")
		return nil, NewAppError(http.StatusServiceUnavailable, CodeGenerationNotConfigured,
			"AI service is not configured, please contact the administrator", nil)
	}

	if g.cfg.MaxInputChars > 0 && len([]rune(text)) > g.cfg.MaxInputChars {
		text = truncateRunes(text, g.cfg.MaxInputChars) + "..."
		g.log.Warn("input truncated before generation", "max_chars", g.cfg.MaxInputChars)
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	reply, err := g.completer.Complete(ctx, buildGenerationPrompt(text, maxWords, maxQuestions))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.log.Error("generation timed out", "timeout", g.cfg.Timeout)
			return nil, NewAppError(http.StatusGatewayTimeout, CodeGenerationTimeout,
				"AI service timed out, please try again later", err)
		}
		g.log.Error("generation request failed", "error", err)
		return nil, NewAppError(http.StatusBadGateway, CodeGenerationFailed,
			fmt.Sprintf("AI service error: %v", err), err)
	}

	return ParseGeneratedContent(reply, g.log)
}

func buildGenerationPrompt(text string, maxWords, maxQuestions int) string {
	return fmt.Sprintf(`You are an experienced English teacher. Analyse the English passage below and produce study material.

## Passage
%s

## Tasks

### 1. Vocabulary
Pick the %d words most worth learning from the passage (prefer business, academic and difficult words).
For each word provide:
- word: the base form
- phonetic: IPA transcription, e.g. /ˈbɪznəs/
- translation: a short translation for the learner
- definition: an English definition
- example: one sentence using the word (quoted from the passage or new)
- example_translation: translation of the example sentence
- synonyms: 2-3 synonyms
- collocations: 2-3 common collocations
- difficulty: an integer from 1 (easiest) to 5 (hardest)

### 2. Reading comprehension
Write %d multiple-choice questions about the passage. Mix main idea, detail, inference and word-in-context questions.
For each question provide:
- question_text
- options: exactly 4 options as an array
- correct_answer: index of the correct option (0=A, 1=B, 2=C, 3=D)
- explanation: why the answer is correct

## Output
Reply with JSON only, no other text, in exactly this shape:
{
  "vocabularies": [
    {
      "word": "example",
      "phonetic": "/ɪɡˈzæmpl/",
      "translation": "example, instance",
      "definition": "a thing characteristic of its kind or illustrating a general rule",
      "example": "This is a good example of modern architecture.",
      "example_translation": "This is a good example of modern architecture.",
      "synonyms": ["instance", "sample", "specimen"],
      "collocations": ["for example", "set an example", "classic example"],
      "difficulty": 2
    }
  ],
  "questions": [
    {
      "question_text": "What is the main idea of the passage?",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correct_answer": 0,
      "explanation": "The passage mainly discusses..."
    }
  ]
}`, text, maxWords, maxQuestions)
}
