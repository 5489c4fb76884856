package analyzer

import (
	"fmt"

	"github.com/bdougie/pitchside/internal/models"
)

// FallbackCaption replaces the narration of a frame that could not be described.
const FallbackCaption = "Could not generate a description for this frame."

// Prompt is the fixed system role plus the level-specific user instruction.
type Prompt struct {
	System      string
	Instruction string
}

type promptSet struct {
	system string
	levels map[models.Level]string
	task   string
}

var promptSets = map[string]promptSet{
	"en": {
		system: "You are a soccer commentator.",
		levels: map[models.Level]string{
			models.LevelNovice:        "I am new to soccer.",
			models.LevelKnowledgeable: "I know soccer well.",
		},
		task: " Describe the match situation in this image in detail." +
			" Keep scenes unrelated to play, such as players walking onto the pitch, brief.",
	},
	"ja": {
		system: "あなたはサッカー解説者です。",
		levels: map[models.Level]string{
			models.LevelNovice:        "私はサッカーの初心者です。",
			models.LevelKnowledgeable: "私はサッカーに詳しいです。",
		},
		task: " この画像から試合状況を詳細に解説してください。" +
			"選手の入場シーンなど、試合内容と関係ないところは簡潔に説明してください。",
	},
}

// PromptLanguages lists the languages with a prompt table.
func PromptLanguages() []string {
	return []string{"en", "ja"}
}

// LookupPrompt returns the prompt for language and level.
func LookupPrompt(language string, level models.Level) (Prompt, error) {
	set, ok := promptSets[language]
	if !ok {
		return Prompt{}, fmt.Errorf("no prompts for language %q", language)
	}
	prefix, ok := set.levels[level]
	if !ok {
		return Prompt{}, fmt.Errorf("no prompt for level %s", level)
	}
	return Prompt{System: set.system, Instruction: prefix + set.task}, nil
}
