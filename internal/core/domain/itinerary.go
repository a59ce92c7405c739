package domain

// TimeOfDay buckets an activity into a part of the day.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
)

// Localness score bounds for a single activity.
const (
	MinActivityLocalness = 1
	MaxActivityLocalness = 6
)

// GeneratedItinerary is the merged, user-facing itinerary.
type GeneratedItinerary struct {
	ID            string      `json:"id,omitempty"`
	Title         string      `json:"title"`
	Subtitle      string      `json:"subtitle"`
	City          string      `json:"city"`
	Days          int         `json:"days"`
	DailyPlans    []DailyPlan `json:"dailyPlans"`
	Highlights    []string    `json:"highlights"`
	EstimatedCost string      `json:"estimatedCost"`
	LocalScore    float64     `json:"localScore"`
}

// DailyPlan is one day of an itinerary.
type DailyPlan struct {
	Day          int        `json:"day"`
	Theme        string     `json:"theme"`
	Activities   []Activity `json:"activities"`
	LocalTip     string     `json:"localTip,omitempty"`
	TransportTip string     `json:"transportTip,omitempty"`
}

// Activity is a single stop in a day plan. Lat and Lng are filled by an external
// geocoder, never by the orchestrator.
type Activity struct {
	Time           string    `json:"time"`
	TimeOfDay      TimeOfDay `json:"timeOfDay"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	LocalnessScore int       `json:"localnessScore"`
	Duration       string    `json:"duration"`
	Cost           string    `json:"cost"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	Lat            *float64  `json:"lat,omitempty"`
	Lng            *float64  `json:"lng,omitempty"`
}

// Clone returns a deep copy of the itinerary.
func (it *GeneratedItinerary) Clone() *GeneratedItinerary {
	if it == nil {
		return nil
	}
	out := *it
	out.Highlights = append([]string(nil), it.Highlights...)
	out.DailyPlans = make([]DailyPlan, len(it.DailyPlans))
	for i, p := range it.DailyPlans {
		p.Activities = append([]Activity(nil), p.Activities...)
		for j := range p.Activities {
			p.Activities[j].Lat = cloneFloat(p.Activities[j].Lat)
			p.Activities[j].Lng = cloneFloat(p.Activities[j].Lng)
		}
		out.DailyPlans[i] = p
	}
	return &out
}

// ComputeLocalScore averages the localness score of every activity.
// Returns 0 when the itinerary has no activities.
func (it *GeneratedItinerary) ComputeLocalScore() float64 {
	var sum, n int
	for _, p := range it.DailyPlans {
		for _, a := range p.Activities {
			sum += a.LocalnessScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
