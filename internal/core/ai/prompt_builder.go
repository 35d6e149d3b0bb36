package ai

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed prompts/*.txt
var builtinPrompts embed.FS

const (
	extractionSystemPrompt     = "extraction_system_prompt.txt"
	extractionTaskTemplate     = "extraction_task_template.txt"
	extractionStrictSuffix     = "extraction_strict_suffix.txt"
	classificationSystemPrompt = "classification_system_prompt.txt"
	classificationTaskTemplate = "classification_task_template.txt"
)

// PromptBuilder assembles prompts from text files. Files found in promptsDir
// override the built-in ones, so prompts can be tuned without a rebuild.
type PromptBuilder struct {
	promptsDir string
}

func NewPromptBuilder(promptsDir string) *PromptBuilder {
	return &PromptBuilder{
		promptsDir: promptsDir,
	}
}

// BuildExtractionPrompt returns the prompt that turns receipt text into JSON.
// strict adds the reminder used after a malformed answer.
func (pb *PromptBuilder) BuildExtractionPrompt(rawText string, strict bool) (Prompt, error) {
	system, err := pb.loadPromptFile(extractionSystemPrompt)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to load extraction system prompt: %w", err)
	}

	taskTemplate, err := pb.loadPromptFile(extractionTaskTemplate)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to load extraction task template: %w", err)
	}

	if strict {
		suffix, err := pb.loadPromptFile(extractionStrictSuffix)
		if err != nil {
			return Prompt{}, fmt.Errorf("failed to load strict suffix: %w", err)
		}
		system = system + "\n\n" + suffix
	}

	return Prompt{
		System: system,
		User:   strings.ReplaceAll(taskTemplate, "{raw_text}", rawText),
		JSON:   true,
	}, nil
}

// BuildClassificationPrompt returns the prompt that maps a product name onto the category vocabulary.
func (pb *PromptBuilder) BuildClassificationPrompt(rawName string, categories []string) (Prompt, error) {
	system, err := pb.loadPromptFile(classificationSystemPrompt)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to load classification system prompt: %w", err)
	}

	taskTemplate, err := pb.loadPromptFile(classificationTaskTemplate)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to load classification task template: %w", err)
	}

	task := strings.ReplaceAll(taskTemplate, "{categories}", strings.Join(categories, ", "))
	task = strings.ReplaceAll(task, "{raw_name}", rawName)

	return Prompt{System: system, User: task, JSON: true}, nil
}

func (pb *PromptBuilder) loadPromptFile(filename string) (string, error) {
	if pb.promptsDir != "" {
		content, err := os.ReadFile(filepath.Join(pb.promptsDir, filename))
		if err == nil {
			return strings.TrimSpace(string(content)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read prompt file %s: %w", filename, err)
		}
	}

	content, err := builtinPrompts.ReadFile("prompts/" + filename)
	if err != nil {
		return "", fmt.Errorf("failed to read built-in prompt %s: %w", filename, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// ValidatePromptFiles checks that every prompt can be loaded.
func (pb *PromptBuilder) ValidatePromptFiles() error {
	requiredFiles := []string{
		extractionSystemPrompt,
		extractionTaskTemplate,
		extractionStrictSuffix,
		classificationSystemPrompt,
		classificationTaskTemplate,
	}

	for _, file := range requiredFiles {
		if _, err := pb.loadPromptFile(file); err != nil {
			return fmt.Errorf("required prompt file missing: %s: %w", file, err)
		}
	}

	return nil
}
