package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/english-mastery/backend/config"
	"github.com/english-mastery/backend/logger"
)

// fakeCompleter returns a canned reply, or blocks until the context ends
// when block is set. onCall runs before the reply is returned.
type fakeCompleter struct {
	reply   string
	err     error
	block   bool
	onCall  func()
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.onCall != nil {
		f.onCall()
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		Timeout:       time.Second,
		MaxInputChars: 8000,
		MaxWords:      15,
		MaxQuestions:  5,
	}
}

func TestGenerateWithoutCompleter(t *testing.T) {
	g := NewGenerationClient(testAIConfig(), logger.Nop())
	_, err := g.Generate(context.Background(), "text", 15, 5)
	requireCode(t, err, CodeGenerationNotConfigured)
}

func TestGenerateParsesReply(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith(4, 2)}
	g := NewGenerationClientWithCompleter(fc, testAIConfig(), logger.Nop())

	got, err := g.Generate(context.Background(), "A short passage about learning.", 4, 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got.Vocabularies) != 4 || len(got.Questions) != 2 {
		t.Fatalf("got %d vocab, %d questions", len(got.Vocabularies), len(got.Questions))
	}
	prompt := fc.prompts[0]
	if !strings.Contains(prompt, "A short passage about learning.") {
		t.Fatal("prompt does not contain the passage")
	}
	if !strings.Contains(prompt, "Pick the 4 words") || !strings.Contains(prompt, "Write 2 multiple-choice") {
		t.Fatal("prompt does not carry the requested counts")
	}
}

func TestGenerateTruncatesLongInput(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith(1, 1)}
	cfg := testAIConfig()
	cfg.MaxInputChars = 100
	g := NewGenerationClientWithCompleter(fc, cfg, logger.Nop())

	input := strings.Repeat("a", 99) + "Z" + strings.Repeat("b", 50)
	if _, err := g.Generate(context.Background(), input, 1, 1); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(fc.prompts[0], strings.Repeat("a", 99)+"Z...") {
		t.Fatal("input was not truncated with an ellipsis")
	}
	if strings.Contains(fc.prompts[0], "Zb") {
		t.Fatal("text beyond the limit reached the prompt")
	}
}

func TestGenerateTimeout(t *testing.T) {
	cfg := testAIConfig()
	cfg.Timeout = 20 * time.Millisecond
	g := NewGenerationClientWithCompleter(&fakeCompleter{block: true}, cfg, logger.Nop())

	_, err := g.Generate(context.Background(), "text", 1, 1)
	requireCode(t, err, CodeGenerationTimeout)
}

func TestGenerateUpstreamError(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("quota exceeded")}
	g := NewGenerationClientWithCompleter(fc, testAIConfig(), logger.Nop())

	_, err := g.Generate(context.Background(), "text", 1, 1)
	requireCode(t, err, CodeGenerationFailed)
	if !strings.Contains(UserMessage(err), "quota exceeded") {
		t.Fatalf("message = %q", UserMessage(err))
	}
}
