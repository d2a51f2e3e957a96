// Package hierarchy holds the pure rules of the physical storage tree: the
// unit type chain, generated unit names, path materialization and forest
// assembly. Nothing here performs I/O.
package hierarchy

import (
	"strings"

	"docarchive/internal/domain"
	"docarchive/internal/models"
)

const (
	// NoParent stands in for the missing parent of a root node.
	NoParent models.UnitType = ""
	// Terminal is returned as the successor of a folder; it is not a storable type.
	Terminal models.UnitType = "terminal"
)

var chain = []models.UnitType{
	models.UnitTypeRoom,
	models.UnitTypeCabinet,
	models.UnitTypeLayer,
	models.UnitTypeBox,
	models.UnitTypeFolder,
}

var initials = map[models.UnitType]string{
	models.UnitTypeRoom:    "R",
	models.UnitTypeCabinet: "C",
	models.UnitTypeLayer:   "L",
	models.UnitTypeBox:     "B",
	models.UnitTypeFolder:  "F",
}

// Chain returns the unit types in containment order, room first.
func Chain() []models.UnitType {
	out := make([]models.UnitType, len(chain))
	copy(out, chain)
	return out
}

func indexOf(t models.UnitType) int {
	for i, c := range chain {
		if c == t {
			return i
		}
	}
	return -1
}

// ParseUnitType normalizes and validates a raw unit type.
func ParseUnitType(raw string) (models.UnitType, error) {
	t := models.UnitType(strings.ToLower(strings.TrimSpace(raw)))
	if indexOf(t) < 0 {
		return "", domain.New(domain.CodeInvalidUnitType, "invalid unit type %q", raw)
	}
	return t, nil
}

// NextType returns the only unit type allowed directly under t. NoParent
// yields room and folder yields Terminal.
func NextType(t models.UnitType) (models.UnitType, error) {
	if t == NoParent {
		return chain[0], nil
	}
	i := indexOf(t)
	if i < 0 {
		return "", domain.New(domain.CodeInvalidUnitType, "invalid unit type %q", string(t))
	}
	if i == len(chain)-1 {
		return Terminal, nil
	}
	return chain[i+1], nil
}

// IsValidChild reports whether child may be placed directly under parent.
func IsValidChild(parent, child models.UnitType) (bool, error) {
	if indexOf(child) < 0 {
		return false, domain.New(domain.CodeInvalidUnitType, "invalid unit type %q", string(child))
	}
	next, err := NextType(parent)
	if err != nil {
		return false, err
	}
	return next == child, nil
}

// CheckContainment returns InvalidHierarchy when child cannot live under parent.
func CheckContainment(parent, child models.UnitType) error {
	ok, err := IsValidChild(parent, child)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if parent == NoParent {
		return domain.New(domain.CodeInvalidHierarchy, "A top-level unit must be a %s", chain[0])
	}
	next, _ := NextType(parent)
	if next == Terminal {
		return domain.InvalidHierarchy(string(parent), "")
	}
	return domain.InvalidHierarchy(string(parent), string(next))
}

// Initial is the single-letter prefix of generated unit names.
func Initial(t models.UnitType) string {
	return initials[t]
}
