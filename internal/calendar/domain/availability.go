package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/quotedesk/quotedesk/internal/organization/domain"
)

// ownerKey stands in for events without an employee so owner bookings count
// as one occupied staff member.
const ownerKey = "__owner__"

// OccupiedDates returns the dates (YYYY-MM-DD, in loc) on which every staff
// member already has an all-day booked or blocked event. Timed events only
// occupy their start slot and never block a whole date. staffCount is the
// occupancy threshold and is expected to be at least 1. Requested events never
// block a date; they are wishes, not commitments.
func OccupiedDates(events []*Event, staffCount int, loc *time.Location) []string {
	if staffCount < 1 {
		staffCount = 1
	}
	if loc == nil {
		loc = time.UTC
	}

	busy := map[string]map[string]bool{}
	for _, event := range events {
		if event.Type != TypeBooked && event.Type != TypeBlocked {
			continue
		}
		if !event.AllDay {
			continue
		}
		key := ownerKey
		if event.EmployeeID != nil {
			key = event.EmployeeID.String()
		}
		date := event.StartTime.In(loc).Format("2006-01-02")
		if busy[date] == nil {
			busy[date] = map[string]bool{}
		}
		busy[date][key] = true
	}

	dates := make([]string, 0, len(busy))
	for date, staff := range busy {
		if len(staff) >= staffCount {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates
}

// BookedTimes returns the HH:MM start times already taken on one date, again
// only counting a slot as taken once every staff member is busy at that time.
// All-day events belong to OccupiedDates and are skipped here.
func BookedTimes(events []*Event, staffCount int, date string, loc *time.Location) []string {
	if staffCount < 1 {
		staffCount = 1
	}
	if loc == nil {
		loc = time.UTC
	}

	busy := map[string]map[string]bool{}
	for _, event := range events {
		if event.Type != TypeBooked && event.Type != TypeBlocked {
			continue
		}
		if event.AllDay {
			continue
		}
		start := event.StartTime.In(loc)
		if start.Format("2006-01-02") != date {
			continue
		}
		key := ownerKey
		if event.EmployeeID != nil {
			key = event.EmployeeID.String()
		}
		slot := start.Format("15:04")
		if busy[slot] == nil {
			busy[slot] = map[string]bool{}
		}
		busy[slot][key] = true
	}

	times := make([]string, 0, len(busy))
	for slot, staff := range busy {
		if len(staff) >= staffCount {
			times = append(times, slot)
		}
	}
	sort.Strings(times)
	return times
}

// DaySlots expands an organization's opening hours for the weekday of date
// into bookable start times, one per slotMinutes, covering [open, close).
func DaySlots(schedule domain.WeekSchedule, date time.Time, slotMinutes int) []string {
	if slotMinutes <= 0 {
		slotMinutes = 60
	}

	day := weekdayName(date.Weekday())
	hours, ok := schedule[day]
	if !ok || !hours.Enabled {
		return nil
	}

	open, okOpen := parseClock(hours.Open)
	closeAt, okClose := parseClock(hours.Close)
	if !okOpen || !okClose || open >= closeAt {
		return nil
	}

	var slots []string
	for minute := open; minute < closeAt; minute += slotMinutes {
		slots = append(slots, formatClock(minute))
	}
	return slots
}

func weekdayName(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

func parseClock(v string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
