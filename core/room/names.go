package room

import (
	"math/rand"

	"github.com/forPelevin/gomoji"
)

// Fallback display names for users who join without one.
var (
	nameAdjectives = []string{
		"Vrolijke", "Gekke", "Swingende", "Dansende", "Deftige",
		"Brutale", "Zwevende", "Fluisterende", "Stoere", "Knetterende",
	}
	nameNouns = []string{
		"Stroopwafel", "Tulp", "Klomp", "Bitterbal", "Hagelslag",
		"Windmolen", "Drop", "Kaaskop", "Fiets", "Grachtenpand",
	}
)

// generateName builds a random Dutch display name.
func generateName() string {
	return nameAdjectives[rand.Intn(len(nameAdjectives))] + " " + nameNouns[rand.Intn(len(nameNouns))]
}

// randomEmoji picks a random presentation emoji.
func randomEmoji() string {
	all := gomoji.AllEmojis()
	return all[rand.Intn(len(all))].Character
}

// normalizeEmoji validates a client-supplied emoji and returns its
// canonical character form.
func normalizeEmoji(s string) (string, bool) {
	info, err := gomoji.GetInfo(s)
	if err != nil {
		return "", false
	}
	return info.Character, true
}
