package steps

import (
	"onboard/internal/onboarding/models"
)

// CanNavigateTo reports whether the step at index of the visible list may be
// opened directly: it is done, it is the first step, or its left sibling is done.
func CanNavigateTo(index int, status models.StepStatusMap, visible []Definition) bool {
	if index < 0 || index >= len(visible) {
		return false
	}
	if index == 0 {
		return true
	}
	if status.IsDone(visible[index].Key) {
		return true
	}
	return status.IsDone(visible[index-1].Key)
}

// IndexOf returns the position of key in the visible list, or -1.
func IndexOf(key models.StepKey, visible []Definition) int {
	for i, d := range visible {
		if d.Key == key {
			return i
		}
	}
	return -1
}

// ResolveActiveIndexAfterFilterChange keeps the active step when it is still
// visible. Otherwise it moves to the next catalog step after previousKey that is
// visible, clamped to the last visible step.
func (c *Catalog) ResolveActiveIndexAfterFilterChange(previousKey models.StepKey, visible []Definition) int {
	if len(visible) == 0 {
		return 0
	}
	if i := IndexOf(previousKey, visible); i >= 0 {
		return i
	}
	pos := -1
	for i, d := range c.defs {
		if d.Key == previousKey {
			pos = i
			break
		}
	}
	if pos >= 0 {
		for _, d := range c.defs[pos+1:] {
			if i := IndexOf(d.Key, visible); i >= 0 {
				return i
			}
		}
	}
	return len(visible) - 1
}

// ClampIndex bounds index to the visible list.
func ClampIndex(index int, visible []Definition) int {
	switch {
	case len(visible) == 0 || index < 0:
		return 0
	case index >= len(visible):
		return len(visible) - 1
	default:
		return index
	}
}

// Keys lists the keys of a step list, for responses and logs.
func Keys(defs []Definition) []models.StepKey {
	out := make([]models.StepKey, len(defs))
	for i, d := range defs {
		out[i] = d.Key
	}
	return out
}
