package routing

import "github.com/optiroute/backend/internal/models"

// Service windows in seconds since midnight, [start, end).
var timeWindows = map[models.TimeSlot][2]int{
	models.SlotMorning:   {28800, 43200}, // 08:00-12:00
	models.SlotAfternoon: {50400, 64800}, // 14:00-18:00
	models.SlotAny:       {28800, 64800}, // 08:00-18:00
}

// WindowFor returns the service window for a time slot. Unknown slots get
// the full-day window.
func WindowFor(slot models.TimeSlot) [2]int {
	if w, ok := timeWindows[slot]; ok {
		return w
	}
	return timeWindows[models.SlotAny]
}
