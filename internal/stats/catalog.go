package stats

import "github.com/ivanreeve/poop-tracker/internal"

type StoolType struct {
	Type  int    `json:"type"`
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

var stoolTypes = []StoolType{
	{Type: 1, Label: "Hard", Emoji: "🪨"},
	{Type: 2, Label: "Lumpy", Emoji: "🥜"},
	{Type: 3, Label: "Cracked", Emoji: "🌽"},
	{Type: 4, Label: "Smooth", Emoji: "🌭"},
	{Type: 5, Label: "Soft", Emoji: "☁️"},
	{Type: 6, Label: "Mushy", Emoji: "🍦"},
	{Type: 7, Label: "Liquid", Emoji: "💧"},
}

// StoolTypes returns a copy of the Bristol scale catalog.
func StoolTypes() []StoolType {
	out := make([]StoolType, len(stoolTypes))
	copy(out, stoolTypes)
	return out
}

func LookupStoolType(t int) (StoolType, bool) {
	if !internal.ValidStoolType(t) {
		return StoolType{}, false
	}
	return stoolTypes[t-1], true
}
