package store

import "github.com/mergington/mhs/internal/models"

// SeedActivities returns the fixed set of extracurricular activities the
// school offers. Both backends load this list once; activities are never
// added or removed at runtime.
func SeedActivities() []*models.Activity {
	return []*models.Activity{
		{
			Name:            "Chess Club",
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 12,
			Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
		},
		{
			Name:            "Programming Class",
			Description:     "Learn programming fundamentals and build software projects",
			Schedule:        "Tuesdays and Thursdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"emma@mergington.edu", "sophia@mergington.edu"},
		},
		{
			Name:            "Gym Class",
			Description:     "Physical education and sports activities",
			Schedule:        "Mondays, Wednesdays, Fridays, 2:00 PM - 3:00 PM",
			MaxParticipants: 30,
			Participants:    []string{"john@mergington.edu", "olivia@mergington.edu"},
		},
		{
			Name:            "Basketball Team",
			Description:     "Competitive basketball training and games",
			Schedule:        "Tuesdays and Thursdays, 4:00 PM - 6:00 PM",
			MaxParticipants: 15,
		},
		{
			Name:            "Swimming Club",
			Description:     "Swimming training and water sports",
			Schedule:        "Mondays and Wednesdays, 3:30 PM - 5:00 PM",
			MaxParticipants: 20,
		},
		{
			Name:            "Art Studio",
			Description:     "Express creativity through painting and drawing",
			Schedule:        "Wednesdays, 3:30 PM - 5:00 PM",
			MaxParticipants: 15,
		},
		{
			Name:            "Drama Club",
			Description:     "Theater arts and performance training",
			Schedule:        "Tuesdays, 4:00 PM - 6:00 PM",
			MaxParticipants: 25,
		},
		{
			Name:            "Debate Team",
			Description:     "Learn public speaking and argumentation skills",
			Schedule:        "Thursdays, 3:30 PM - 5:00 PM",
			MaxParticipants: 16,
		},
		{
			Name:            "Science Club",
			Description:     "Hands-on experiments and scientific exploration",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 20,
		},
	}
}
