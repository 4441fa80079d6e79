package synthesize

import (
	"context"
	"fmt"

	"github.com/mgpai22/revoice/internal/translate"
)

// voices a translation of the text instead of the text itself; the
// translator is built for a fixed source and target language
type TranslatingSynthesizer struct {
	inner      Synthesizer
	translator translate.Translator
	target     string
}

func NewTranslatingSynthesizer(
	inner Synthesizer,
	translator translate.Translator,
	target string,
) (*TranslatingSynthesizer, error) {
	if _, err := checkLanguage(target); err != nil {
		return nil, err
	}
	return &TranslatingSynthesizer{
		inner:      inner,
		translator: translator,
		target:     target,
	}, nil
}

func (s *TranslatingSynthesizer) Format() string {
	return s.inner.Format()
}

// lang is the spoken language of text; the audio is voiced in the target
func (s *TranslatingSynthesizer) Synthesize(
	ctx context.Context,
	text, lang, outputPath string,
) (*Speech, error) {
	if lang == s.target {
		return s.inner.Synthesize(ctx, text, lang, outputPath)
	}

	translated, err := translate.TranslateText(ctx, s.translator, text)
	if err != nil {
		return nil, fmt.Errorf("failed to translate transcript: %w", err)
	}
	if translated == "" {
		return nil, fmt.Errorf("translation was empty")
	}

	return s.inner.Synthesize(ctx, translated, s.target, outputPath)
}
