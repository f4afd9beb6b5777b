package models

// Activity is a named extracurricular offering with a capacity and roster.
// Participant emails are stored lowercase; insertion order is signup order.
type Activity struct {
	Name            string   `json:"-"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// SpotsLeft returns the number of open slots, never negative.
func (a *Activity) SpotsLeft() int {
	left := a.MaxParticipants - len(a.Participants)
	if left < 0 {
		return 0
	}
	return left
}

// Availability summarizes the slot usage of a single activity.
type Availability struct {
	ActivityName   string `json:"activity_name"`
	TotalSlots     int    `json:"total_slots"`
	TakenSlots     int    `json:"taken_slots"`
	AvailableSlots int    `json:"available_slots"`
}
