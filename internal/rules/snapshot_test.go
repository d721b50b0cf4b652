package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(id string, priority int, char, choose string) Rule {
	return Rule{
		ID:       id,
		Priority: priority,
		Target:   Target{Char: char, Occurrence: OccurrenceAll},
		Choose:   choose,
	}
}

func TestNewSnapshot_Order(t *testing.T) {
	base := []Rule{
		rule("b2", 10, "行", "xíng"),
		rule("b1", 20, "行", "háng"),
	}
	overrides := []Rule{
		rule("o1", 100001, "行", "háng"),
	}
	snap := NewSnapshot(base, overrides)

	require.Equal(t, 3, snap.Len())
	ids := []string{snap.Rules()[0].ID, snap.Rules()[1].ID, snap.Rules()[2].ID}
	assert.Equal(t, []string{"o1", "b1", "b2"}, ids, "priority desc")
	assert.Equal(t, OriginOverride, snap.Rules()[0].Origin)
	assert.Equal(t, OriginBase, snap.Rules()[1].Origin)
	assert.Equal(t, 100001, snap.MaxPriority())
}

func TestNewSnapshot_TiesBreakByID(t *testing.T) {
	snap := NewSnapshot([]Rule{
		rule("zz", 5, "行", "háng"),
		rule("aa", 5, "行", "xíng"),
	}, nil)
	assert.Equal(t, "aa", snap.Rules()[0].ID)
	assert.Equal(t, "zz", snap.Rules()[1].ID)
}

func TestNewSnapshot_DropsInvalid(t *testing.T) {
	snap := NewSnapshot([]Rule{
		{ID: "no-target", Priority: 1, Choose: "háng"},
		rule("ok", 1, "行", "háng"),
	}, nil)
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, "ok", snap.Rules()[0].ID)
}

func TestSource_Swap(t *testing.T) {
	src := NewSource(NewSnapshot([]Rule{rule("a", 1, "行", "háng")}, nil))
	first := src.Current()
	require.Equal(t, 1, first.Len())

	src.Swap(NewSnapshot([]Rule{rule("a", 1, "行", "háng"), rule("b", 2, "得", "dé")}, nil))
	assert.Equal(t, 2, src.Current().Len())
	// The old snapshot an in-flight run froze on is untouched.
	assert.Equal(t, 1, first.Len())
}
