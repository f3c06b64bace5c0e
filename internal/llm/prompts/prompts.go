package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/adaptest/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	questionTagRegex = regexp.MustCompile(`(?i)</?\s*question\b[^>]*>`)
	choiceTagRegex   = regexp.MustCompile(`(?i)</?\s*choice\b[^>]*>`)
)

const maxTextRunes = 10000

// PromptVariant selects how the model is asked to answer.
type PromptVariant string

const (
	// PromptDirect asks for the answer only.
	PromptDirect PromptVariant = "direct"
	// PromptReasoning asks for a short reasoning before the answer.
	PromptReasoning PromptVariant = "reasoning"
)

var validVariants = map[PromptVariant]bool{
	PromptDirect:    true,
	PromptReasoning: true,
}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// ItemData holds template data for the item prompt.
type ItemData struct {
	Question string
	Choices  []model.Choice
	IDList   string
}

// Set is a parsed collection of prompt templates.
type Set struct {
	system map[PromptVariant]string
	item   *template.Template
}

// Parse reads templates/system_<variant>.txt and templates/item.txt from fsys.
func Parse(fsys fs.FS) (*Set, error) {
	s := &Set{system: make(map[PromptVariant]string)}
	for v := range validVariants {
		file := "templates/system_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", file, err)
		}
		s.system[v] = string(content)
	}

	content, err := fs.ReadFile(fsys, "templates/item.txt")
	if err != nil {
		return nil, fmt.Errorf("read prompt file templates/item.txt: %w", err)
	}
	s.item, err = template.New("item").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template templates/item.txt: %w", err)
	}
	return s, nil
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
	defaultErr  error
)

// Default returns the embedded templates, parsed once.
func Default() (*Set, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Parse(templateFS)
	})
	return defaultSet, defaultErr
}

// System returns the system prompt of a variant.
func (s *Set) System(variant PromptVariant) (string, error) {
	p, ok := s.system[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	return p, nil
}

// Item renders the user prompt presenting one item.
func (s *Set) Item(item model.Item) (string, error) {
	data := ItemData{
		Question: sanitize(item.Question),
		Choices:  make([]model.Choice, 0, len(item.Choices)),
	}
	ids := make([]string, 0, len(item.Choices))
	for _, c := range item.Choices {
		data.Choices = append(data.Choices, model.Choice{ID: c.ID, Text: sanitize(c.Text)})
		ids = append(ids, c.ID)
	}
	data.IDList = strings.Join(ids, ", ")

	var buf bytes.Buffer
	if err := s.item.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render item %s: %w", item.ID, err)
	}
	return buf.String(), nil
}

// sanitize strips tags that would let item text escape its delimiters.
func sanitize(text string) string {
	text = questionTagRegex.ReplaceAllString(text, "")
	text = choiceTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > maxTextRunes {
		runes := []rune(text)
		text = string(runes[:maxTextRunes]) + "\n\n[Text truncated due to length]"
	}
	return text
}
