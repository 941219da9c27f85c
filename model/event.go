package model

// Category groups catalogue events on the listing page
type Category string

const (
	CategoryTechnical   Category = "Technical"
	CategoryCompetition Category = "Competition"
	CategoryResearch    Category = "Research"
	CategoryCreative    Category = "Creative"
)

type Event struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Venue       string   `json:"venue"`
	Category    Category `json:"category"`
}

// Events is the fixed symposium programme. Registrations may only name one of these.
var Events = []Event{
	{
		ID:          1,
		Name:        "AI & Machine Learning Workshop",
		Description: "Hands-on training on AI model building and deployment.",
		Date:        "March 12, 2026",
		Time:        "10:00 AM",
		Venue:       "Seminar Hall A",
		Category:    CategoryTechnical,
	},
	{
		ID:          2,
		Name:        "24-Hour National Hackathon",
		Description: "Build innovative solutions to real-world problems.",
		Date:        "March 13, 2026",
		Time:        "9:00 AM",
		Venue:       "Main Auditorium",
		Category:    CategoryCompetition,
	},
	{
		ID:          3,
		Name:        "Paper Presentation",
		Description: "Present your research ideas and win exciting prizes.",
		Date:        "March 12, 2026",
		Time:        "2:00 PM",
		Venue:       "Conference Room",
		Category:    CategoryResearch,
	},
	{
		ID:          4,
		Name:        "Robotics Challenge",
		Description: "Compete with autonomous robots in a thrilling arena.",
		Date:        "March 13, 2026",
		Time:        "11:00 AM",
		Venue:       "Tech Lab",
		Category:    CategoryTechnical,
	},
	{
		ID:          5,
		Name:        "UI/UX Design Contest",
		Description: "Design innovative and user-friendly interfaces.",
		Date:        "March 12, 2026",
		Time:        "1:00 PM",
		Venue:       "Design Studio",
		Category:    CategoryCreative,
	},
}

var Departments = []string{
	"Computer Science & Engineering",
	"Electronics & Communication",
	"Mechanical Engineering",
	"Civil Engineering",
	"Information Technology",
	"Electrical Engineering",
	"Other",
}

var Years = []string{"1st Year", "2nd Year", "3rd Year", "4th Year"}

var TeamSizes = []string{"1", "2", "3", "4", "5"}

// EventNames returns the catalogue names in listing order
func EventNames() []string {
	names := make([]string, 0, len(Events))
	for _, e := range Events {
		names = append(names, e.Name)
	}
	return names
}

// FindEvent looks up a catalogue entry by its exact name
func FindEvent(name string) (Event, bool) {
	for _, e := range Events {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}

func IsEvent(name string) bool {
	_, ok := FindEvent(name)
	return ok
}

func IsDepartment(name string) bool { return contains(Departments, name) }

func IsYear(name string) bool { return contains(Years, name) }

func IsTeamSize(size string) bool { return contains(TeamSizes, size) }

func contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
