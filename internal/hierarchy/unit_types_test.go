package hierarchy

import (
	"errors"
	"testing"

	"docarchive/internal/domain"
	"docarchive/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextType_WalksChainFromNoParent(t *testing.T) {
	var got []models.UnitType
	current := NoParent
	for i := 0; i < 5; i++ {
		next, err := NextType(current)
		require.NoError(t, err)
		got = append(got, next)
		current = next
	}

	assert.Equal(t, []models.UnitType{"room", "cabinet", "layer", "box", "folder"}, got)

	terminal, err := NextType(current)
	require.NoError(t, err)
	assert.Equal(t, Terminal, terminal)
}

func TestNextType_UnknownType(t *testing.T) {
	_, err := NextType("shelf")
	assert.True(t, errors.Is(err, domain.ErrInvalidUnitType))
}

func TestIsValidChild(t *testing.T) {
	cases := []struct {
		parent models.UnitType
		child  models.UnitType
		want   bool
	}{
		{NoParent, models.UnitTypeRoom, true},
		{NoParent, models.UnitTypeCabinet, false},
		{models.UnitTypeRoom, models.UnitTypeCabinet, true},
		{models.UnitTypeCabinet, models.UnitTypeLayer, true},
		{models.UnitTypeCabinet, models.UnitTypeFolder, false},
		{models.UnitTypeBox, models.UnitTypeFolder, true},
		{models.UnitTypeFolder, models.UnitTypeFolder, false},
	}
	for _, tc := range cases {
		ok, err := IsValidChild(tc.parent, tc.child)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "%s -> %s", tc.parent, tc.child)
	}

	_, err := IsValidChild(models.UnitTypeRoom, "drawer")
	assert.True(t, errors.Is(err, domain.ErrInvalidUnitType))
}

func TestCheckContainment_Messages(t *testing.T) {
	err := CheckContainment(models.UnitTypeCabinet, models.UnitTypeBox)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidHierarchy))
	assert.Equal(t, "A cabinet can only contain layer units", err.Error())

	err = CheckContainment(models.UnitTypeFolder, models.UnitTypeRoom)
	assert.Equal(t, "A folder cannot contain any units", err.Error())

	err = CheckContainment(NoParent, models.UnitTypeBox)
	assert.True(t, errors.Is(err, domain.ErrInvalidHierarchy))

	assert.NoError(t, CheckContainment(models.UnitTypeLayer, models.UnitTypeBox))
}

func TestParseUnitType(t *testing.T) {
	got, err := ParseUnitType("  Cabinet ")
	require.NoError(t, err)
	assert.Equal(t, models.UnitTypeCabinet, got)

	_, err = ParseUnitType("terminal")
	assert.True(t, errors.Is(err, domain.ErrInvalidUnitType))
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "R001", UnitName(models.UnitTypeRoom, 1))
	assert.Equal(t, "C014", UnitName(models.UnitTypeCabinet, 14))
	assert.Equal(t, "F1200", UnitName(models.UnitTypeFolder, 1200))

	assert.Equal(t, 1, NextSequence(models.UnitTypeBox, nil))
	assert.Equal(t, 8, NextSequence(models.UnitTypeBox, []string{"B003", "B007", "Archive box", "B", "C010", "B0x1"}))

	n, ok := ParseSequence(models.UnitTypeLayer, "L12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	_, ok = ParseSequence(models.UnitTypeLayer, "Layer 12")
	assert.False(t, ok)
}
