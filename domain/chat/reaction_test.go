package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregate_KeepsFirstOccurrenceOrder(t *testing.T) {
	req := require.New(t)
	reactions := []Reaction{
		{Emoji: "👍", ReactorID: "a"},
		{Emoji: "👍", ReactorID: "b"},
		{Emoji: "❤️", ReactorID: "a"},
	}

	tallies := Aggregate(reactions)

	req.Equal(Tallies{{Emoji: "👍", Count: 2}, {Emoji: "❤️", Count: 1}}, tallies)
	req.Equal(map[string]int{"👍": 2, "❤️": 1}, tallies.Counts())
	req.Equal(2, tallies.Count("👍"))
	req.Zero(tallies.Count("😂"))
}

func TestAggregate_Empty(t *testing.T) {
	req := require.New(t)
	req.Empty(Aggregate(nil))
	req.Empty(Aggregate(nil).Counts())
}

func TestToggleReaction(t *testing.T) {
	req := require.New(t)
	thumb := Reaction{ReactorID: "a", ReactorRole: RoleBuyer, Emoji: "👍"}
	heart := Reaction{ReactorID: "a", ReactorRole: RoleBuyer, Emoji: "❤️"}

	// Given a first reaction
	reactions, added := ToggleReaction(nil, thumb)
	req.True(added)
	req.Len(reactions, 1)

	// When the same reactor adds another emoji, both coexist
	reactions, added = ToggleReaction(reactions, heart)
	req.True(added)
	req.Len(reactions, 2)
	req.True(DidReact(reactions, "a", "👍"))
	req.True(DidReact(reactions, "a", "❤️"))

	// When the same (reactor, emoji) pair comes again, it is removed
	before := reactions
	reactions, added = ToggleReaction(reactions, thumb)
	req.False(added)
	req.Equal([]Reaction{heart}, reactions)
	req.False(DidReact(reactions, "a", "👍"))

	// And the previous slice is left untouched
	req.Len(before, 2)
	req.Equal(thumb, before[0])
}

func TestDidReact_OtherReactor(t *testing.T) {
	req := require.New(t)
	reactions := []Reaction{{ReactorID: "b", Emoji: "👍"}}
	req.False(DidReact(reactions, "a", "👍"))
	req.True(DidReact(reactions, "b", "👍"))
}
