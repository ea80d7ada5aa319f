package roster

import (
	"testing"

	"github.com/ghetolay/WowBot/internal/wow"
	"github.com/stretchr/testify/require"
)

func TestData_MainThenOffSpec(t *testing.T) {
	d := NewData()
	require.True(t, d.AddSpec("u3", "mage_dps"))
	require.True(t, d.AddSpec("u3", "priest_heal"))
	require.False(t, d.AddSpec("u3", "priest_heal"))

	p := d.Specs("u3")
	require.Equal(t, wow.SpecID("mage_dps"), p.Main)
	require.Equal(t, []wow.SpecID{"priest_heal"}, p.Off)

	require.True(t, d.SetMainSpec("u3", "priest_heal"))
	require.Equal(t, wow.SpecID("priest_heal"), p.Main)
	require.Equal(t, []wow.SpecID{"mage_dps"}, p.Off)
	require.False(t, d.SetMainSpec("u3", "priest_heal"))
}

func TestData_RemoveMainPromotesOffSpec(t *testing.T) {
	d := NewData()
	d.AddSpec("u1", "war_prot")
	d.AddSpec("u1", "war_dps")
	d.AddSpec("u1", "pal_holy")

	require.True(t, d.RemoveSpec("u1", "war_prot"))
	p := d.Specs("u1")
	require.Equal(t, wow.SpecID("war_dps"), p.Main)
	require.Equal(t, []wow.SpecID{"pal_holy"}, p.Off)

	require.True(t, d.RemoveSpec("u1", "pal_holy"))
	require.Empty(t, p.Off)
	require.False(t, d.RemoveSpec("u1", "pal_holy"))

	require.True(t, d.RemoveSpec("u1", "war_dps"))
	require.Nil(t, d.Specs("u1"))
	require.Empty(t, d.Players())
}

func TestData_Order(t *testing.T) {
	d := NewData()
	d.AddSpec("b", "mage_dps")
	d.AddSpec("a", "mage_dps")
	d.SetMainSpec("c", "rogue_dps")
	require.Equal(t, []string{"b", "a", "c"}, d.Players())
	require.True(t, d.HasSpec("c", "rogue_dps"))
	require.False(t, d.HasSpec("zz", "rogue_dps"))
}
