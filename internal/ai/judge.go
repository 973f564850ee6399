package ai

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/segcompare/internal/utils"
	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	systemInstruction   = "You are a document comparison expert."
	defaultMaxLogLength = 200
)

// Judge asks a language model to classify a filled section against its template section.
type Judge struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewJudge(generator Generator, logger *zap.Logger, maxLogLength int) *Judge {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Judge{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Judge returns the raw labelled answer of the model.
func (j *Judge) Judge(ctx context.Context, templateSection, filledSection string) (string, error) {
	if j == nil || j.generator == nil {
		return "", errors.New("judge has no generator")
	}

	prompt := buildPrompt(templateSection, filledSection)

	j.logger.Debug("judgment request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return "", err
	}

	j.logger.Debug("judgment response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
	)

	return raw, nil
}

func buildPrompt(templateSection, filledSection string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Template:\n{{TEMPLATE_SECTION}}\n\nFilled:\n{{FILLED_SECTION}}"
	}

	// a single pass keeps placeholders inside document text untouched
	return strings.NewReplacer(
		"{{TEMPLATE_SECTION}}", templateSection,
		"{{FILLED_SECTION}}", filledSection,
	).Replace(template)
}
