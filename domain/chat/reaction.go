package chat

import "github.com/samber/lo"

// Palette is the fixed set of emoji a participant may react with.
var Palette = []string{"👍", "❤️", "😂", "😮", "😢", "🙏"}

func ValidEmoji(emoji string) bool {
	return lo.Contains(Palette, emoji)
}

// ToggleReaction applies r to reactions keyed by (reactor, emoji): an existing pair is
// removed, otherwise r is appended. Distinct emoji from the same reactor coexist.
// The input slice is never modified.
func ToggleReaction(reactions []Reaction, r Reaction) ([]Reaction, bool) {
	_, idx, found := lo.FindIndexOf(reactions, func(item Reaction) bool {
		return item.ReactorID == r.ReactorID && item.Emoji == r.Emoji
	})
	if found {
		out := make([]Reaction, 0, len(reactions)-1)
		out = append(out, reactions[:idx]...)
		return append(out, reactions[idx+1:]...), false
	}
	out := make([]Reaction, 0, len(reactions)+1)
	out = append(out, reactions...)
	return append(out, r), true
}

type Tally struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Tallies keeps one entry per emoji in order of first occurrence.
type Tallies []Tally

// Aggregate counts reactions per emoji.
func Aggregate(reactions []Reaction) Tallies {
	var tallies Tallies
	index := make(map[string]int)
	for _, r := range reactions {
		if i, ok := index[r.Emoji]; ok {
			tallies[i].Count++
			continue
		}
		index[r.Emoji] = len(tallies)
		tallies = append(tallies, Tally{Emoji: r.Emoji, Count: 1})
	}
	return tallies
}

func (t Tallies) Counts() map[string]int {
	return lo.SliceToMap(t, func(item Tally) (string, int) {
		return item.Emoji, item.Count
	})
}

func (t Tallies) Count(emoji string) int {
	tally, _ := lo.Find(t, func(item Tally) bool { return item.Emoji == emoji })
	return tally.Count
}

// DidReact reports whether actorID holds an emoji reaction.
func DidReact(reactions []Reaction, actorID, emoji string) bool {
	return lo.ContainsBy(reactions, func(r Reaction) bool {
		return r.ReactorID == actorID && r.Emoji == emoji
	})
}
