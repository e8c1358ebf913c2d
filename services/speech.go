package services

import (
	"context"
	"errors"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/english-mastery/backend/config"
)

// SpeechSynthesizer turns a short English phrase into MP3 audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// GoogleSpeech synthesizes through Google Cloud Text-to-Speech.
type GoogleSpeech struct {
	client *texttospeech.Client
	cfg    config.SpeechConfig
}

func NewGoogleSpeech(ctx context.Context, cfg config.SpeechConfig) (*GoogleSpeech, error) {
	if cfg.CredentialsFile == "" {
		return nil, errors.New("speech credentials file is not set")
	}
	client, err := texttospeech.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}
	if cfg.SpeakingRate <= 0 {
		cfg.SpeakingRate = 1.0
	}
	return &GoogleSpeech{client: client, cfg: cfg}, nil
}

func (g *GoogleSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.cfg.LanguageCode,
			Name:         g.cfg.Voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  g.cfg.SpeakingRate,
		},
	}
	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.AudioContent, nil
}

func (g *GoogleSpeech) Close() error {
	return g.client.Close()
}
