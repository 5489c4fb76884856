package models

import (
	"fmt"
	"strings"
)

// Level is how familiar the viewer is with soccer. It only changes the
// phrasing of the captioning instruction.
type Level int

const (
	LevelNovice Level = iota
	LevelKnowledgeable
)

var levelNames = map[Level]string{
	LevelNovice:        "novice",
	LevelKnowledgeable: "knowledgeable",
}

// Levels lists every level in display order.
func Levels() []Level {
	return []Level{LevelNovice, LevelKnowledgeable}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Valid reports whether l is one of the two known levels.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseLevel accepts the level name (case-insensitive) or its ordinal.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if s == name || s == fmt.Sprint(int(l)) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
