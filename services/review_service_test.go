package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/testutil"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

// completedMaterial creates a material and waits for generation to finish.
func completedMaterial(t *testing.T, words, questions int) (*materialFixture, *ReviewService, uint) {
	t.Helper()
	f := newMaterialFixture(t, fakeExtractor{}, &fakeCompleter{reply: replyWith(words, questions)})
	item, err := f.svc.CreateFromText(context.Background(), f.user.ID, CreateTextMaterialInput{Title: "Review", Content: passage(40)})
	if err != nil {
		t.Fatalf("CreateFromText: %v", err)
	}
	f.runner.Wait()
	return f, NewReviewService(f.db, f.svc, logger.Nop()), item.ID
}

func TestUpdateVocabularyMasteredImpliesLearned(t *testing.T) {
	f, reviews, materialID := completedMaterial(t, 2, 1)
	ctx := context.Background()

	vocab, err := reviews.ListVocabulary(ctx, f.user.ID, materialID)
	if err != nil || len(vocab) != 2 {
		t.Fatalf("ListVocabulary = %d, %v", len(vocab), err)
	}
	id := vocab[0].ID

	got, err := reviews.UpdateVocabulary(ctx, f.user.ID, materialID, id, UpdateVocabularyInput{IsMastered: boolPtr(true)})
	if err != nil {
		t.Fatalf("UpdateVocabulary: %v", err)
	}
	if !got.IsMastered || !got.IsLearned {
		t.Fatalf("mastered word not learned: %+v", got)
	}

	got, err = reviews.UpdateVocabulary(ctx, f.user.ID, materialID, id, UpdateVocabularyInput{IsLearned: boolPtr(false)})
	if err != nil {
		t.Fatalf("UpdateVocabulary: %v", err)
	}
	if !got.IsLearned {
		t.Fatal("a mastered word was unlearned")
	}

	got, err = reviews.UpdateVocabulary(ctx, f.user.ID, materialID, id, UpdateVocabularyInput{IsMastered: boolPtr(false), IsLearned: boolPtr(false)})
	if err != nil {
		t.Fatalf("UpdateVocabulary: %v", err)
	}
	if got.IsMastered || got.IsLearned {
		t.Fatalf("flags not cleared: %+v", got)
	}
	if got.ReviewCount != 3 {
		t.Fatalf("review count = %d, want 3", got.ReviewCount)
	}
}

func TestUpdateVocabularyCountsEmptyUpdates(t *testing.T) {
	f, reviews, materialID := completedMaterial(t, 1, 1)
	ctx := context.Background()
	vocab, _ := reviews.ListVocabulary(ctx, f.user.ID, materialID)

	for i := 0; i < 4; i++ {
		if _, err := reviews.UpdateVocabulary(ctx, f.user.ID, materialID, vocab[0].ID, UpdateVocabularyInput{}); err != nil {
			t.Fatalf("UpdateVocabulary: %v", err)
		}
	}
	vocab, _ = reviews.ListVocabulary(ctx, f.user.ID, materialID)
	if vocab[0].ReviewCount != 4 || vocab[0].IsLearned {
		t.Fatalf("vocabulary = %+v", vocab[0])
	}
}

func TestUpdateVocabularyScopedToMaterialAndOwner(t *testing.T) {
	f, reviews, materialID := completedMaterial(t, 1, 1)
	ctx := context.Background()
	vocab, _ := reviews.ListVocabulary(ctx, f.user.ID, materialID)

	second, err := f.svc.CreateFromText(ctx, f.user.ID, CreateTextMaterialInput{Title: "Other", Content: passage(40)})
	if err != nil {
		t.Fatal(err)
	}
	f.runner.Wait()

	_, err = reviews.UpdateVocabulary(ctx, f.user.ID, second.ID, vocab[0].ID, UpdateVocabularyInput{})
	requireCode(t, err, CodeNotFound)
	if UserMessage(err) != "vocabulary not found" {
		t.Fatalf("message = %q", UserMessage(err))
	}

	stranger := testutil.CreateUser(t, f.db, "stranger@example.com")
	_, err = reviews.UpdateVocabulary(ctx, stranger.ID, materialID, vocab[0].ID, UpdateVocabularyInput{})
	requireCode(t, err, CodeNotFound)
	if _, err := reviews.ListVocabulary(ctx, stranger.ID, materialID); err == nil {
		t.Fatal("stranger listed vocabulary")
	}
}

func TestListQuestionsIncludesContent(t *testing.T) {
	f, reviews, materialID := completedMaterial(t, 1, 3)

	set, err := reviews.ListQuestions(context.Background(), f.user.ID, materialID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if set.Content != passage(40) {
		t.Fatal("question set is missing the material text")
	}
	if len(set.Questions) != 3 || set.Questions[0].UserAnswer != nil {
		t.Fatalf("questions = %+v", set.Questions)
	}
}

func TestSubmitAnswerGradesAndOverwrites(t *testing.T) {
	f, reviews, materialID := completedMaterial(t, 1, 2)
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	reviews.now = func() time.Time { return fixed }

	set, _ := reviews.ListQuestions(ctx, f.user.ID, materialID)
	q := set.Questions[1] // correct answer is 1

	res, err := reviews.SubmitAnswer(ctx, f.user.ID, materialID, SubmitAnswerInput{QuestionID: q.ID, Answer: intPtr(0)})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.IsCorrect || res.CorrectAnswer != 1 || res.Explanation != "because" {
		t.Fatalf("result = %+v", res)
	}

	res, err = reviews.SubmitAnswer(ctx, f.user.ID, materialID, SubmitAnswerInput{QuestionID: q.ID, Answer: intPtr(1)})
	if err != nil || !res.IsCorrect {
		t.Fatalf("second attempt = %+v, %v", res, err)
	}

	set, _ = reviews.ListQuestions(ctx, f.user.ID, materialID)
	stored := set.Questions[1]
	if stored.UserAnswer == nil || *stored.UserAnswer != 1 || stored.IsCorrect == nil || !*stored.IsCorrect {
		t.Fatalf("stored attempt = %+v", stored)
	}
	if stored.AnsweredAt == nil || !stored.AnsweredAt.Equal(fixed) {
		t.Fatalf("answered_at = %v", stored.AnsweredAt)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	f, reviews, materialID := completedMaterial(t, 1, 1)
	ctx := context.Background()
	set, _ := reviews.ListQuestions(ctx, f.user.ID, materialID)
	qid := set.Questions[0].ID

	for _, answer := range []int{-1, 4} {
		_, err := reviews.SubmitAnswer(ctx, f.user.ID, materialID, SubmitAnswerInput{QuestionID: qid, Answer: intPtr(answer)})
		requireCode(t, err, CodeInvalidParams)
		if UserMessage(err) != "answer must be between 0 and 3" {
			t.Fatalf("message = %q", UserMessage(err))
		}
	}

	_, err := reviews.SubmitAnswer(ctx, f.user.ID, materialID, SubmitAnswerInput{QuestionID: qid + 100, Answer: intPtr(0)})
	requireCode(t, err, CodeNotFound)

	_, err = reviews.SubmitAnswer(ctx, f.user.ID, materialID, SubmitAnswerInput{QuestionID: qid})
	requireCode(t, err, CodeInvalidParams)

	set, _ = reviews.ListQuestions(ctx, f.user.ID, materialID)
	if set.Questions[0].UserAnswer != nil {
		t.Fatal("rejected answers were recorded")
	}
}

type fakeSpeech struct {
	audio []byte
	err   error
	texts []string
}

func (s *fakeSpeech) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.texts = append(s.texts, text)
	return s.audio, s.err
}

func TestPronounceWordAndExample(t *testing.T) {
	f, reviews, materialID := completedMaterial(t, 1, 1)
	ctx := context.Background()
	speech := &fakeSpeech{audio: mp3Frames(5)}
	reviews.WithSpeech(speech, time.Second)

	vocab, err := reviews.ListVocabulary(ctx, f.user.ID, materialID)
	if err != nil || len(vocab) != 1 {
		t.Fatalf("ListVocabulary = %d, %v", len(vocab), err)
	}

	word, err := reviews.Pronounce(ctx, f.user.ID, materialID, vocab[0].ID, false)
	if err != nil {
		t.Fatalf("Pronounce word: %v", err)
	}
	if word.Text != "word0" || len(word.Data) != len(speech.audio) || word.Duration <= 0 {
		t.Fatalf("word audio = %q, %d bytes, %v", word.Text, len(word.Data), word.Duration)
	}
	example, err := reviews.Pronounce(ctx, f.user.ID, materialID, vocab[0].ID, true)
	if err != nil {
		t.Fatalf("Pronounce example: %v", err)
	}
	if example.Text != "e" {
		t.Fatalf("example text = %q", example.Text)
	}
	if len(speech.texts) != 2 {
		t.Fatalf("synthesize calls = %v", speech.texts)
	}
}

func TestPronounceErrors(t *testing.T) {
	f, reviews, materialID := completedMaterial(t, 1, 1)
	ctx := context.Background()
	vocab, err := reviews.ListVocabulary(ctx, f.user.ID, materialID)
	if err != nil || len(vocab) != 1 {
		t.Fatalf("ListVocabulary = %d, %v", len(vocab), err)
	}
	id := vocab[0].ID

	_, err = reviews.Pronounce(ctx, f.user.ID, materialID, id, false)
	requireCode(t, err, CodeSpeechNotConfigured)

	reviews.WithSpeech(&fakeSpeech{err: errors.New("quota exceeded")}, time.Second)
	_, err = reviews.Pronounce(ctx, f.user.ID, materialID, id, false)
	requireCode(t, err, CodeSpeechFailed)

	reviews.WithSpeech(&fakeSpeech{audio: []byte("garbage")}, time.Second)
	_, err = reviews.Pronounce(ctx, f.user.ID, materialID, id, false)
	requireCode(t, err, CodeSpeechFailed)

	reviews.WithSpeech(&fakeSpeech{audio: mp3Frames(2)}, time.Second)
	other := testutil.CreateUser(t, f.db, "other-speaker@example.com")
	_, err = reviews.Pronounce(ctx, other.ID, materialID, id, false)
	requireCode(t, err, CodeNotFound)
	_, err = reviews.Pronounce(ctx, f.user.ID, materialID, id+100, false)
	requireCode(t, err, CodeNotFound)
}
