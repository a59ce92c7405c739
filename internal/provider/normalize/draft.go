package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

type rawActivity struct {
	Time           flexString `json:"time"`
	TimeOfDay      flexString `json:"timeOfDay"`
	Name           flexString `json:"name"`
	Address        flexString `json:"address"`
	Description    flexString `json:"description"`
	Category       flexString `json:"category"`
	LocalnessScore flexFloat  `json:"localnessScore"`
	Duration       flexString `json:"duration"`
	Cost           flexString `json:"cost"`
}

type rawDay struct {
	Day          flexFloat     `json:"day"`
	Theme        flexString    `json:"theme"`
	Activities   []rawActivity `json:"activities"`
	LocalTip     flexString    `json:"localTip"`
	TransportTip flexString    `json:"transportTip"`
}

type rawDraft struct {
	Title         flexString  `json:"title"`
	Subtitle      flexString  `json:"subtitle"`
	City          flexString  `json:"city"`
	Highlights    flexStrings `json:"highlights"`
	EstimatedCost flexString  `json:"estimatedCost"`
	LocalScore    flexFloat   `json:"localScore"`
	DailyPlans    []rawDay    `json:"dailyPlans"`
	// Some models use these names for the day list.
	DailyPlansSnake []rawDay `json:"daily_plans"`
	Itinerary       []rawDay `json:"itinerary"`
}

func (r *rawDraft) days() []rawDay {
	switch {
	case len(r.DailyPlans) > 0:
		return r.DailyPlans
	case len(r.DailyPlansSnake) > 0:
		return r.DailyPlansSnake
	default:
		return r.Itinerary
	}
}

// Draft decodes a drafting response into an itinerary for req.
//
// Extra days are dropped. Fewer days than requested, or a day with no
// activities, is ErrInvalidPayload. Coordinates are never taken from the model.
func Draft(text string, req *domain.GenerationRequest) (*domain.GeneratedItinerary, error) {
	var raw rawDraft
	if err := decode(text, &raw); err != nil {
		return nil, err
	}

	days := raw.days()
	if len(days) < req.Days {
		return nil, fmt.Errorf("%w: got %d days, want %d", ErrInvalidPayload, len(days), req.Days)
	}
	days = days[:req.Days]

	it := &domain.GeneratedItinerary{
		Title:         string(raw.Title),
		Subtitle:      string(raw.Subtitle),
		City:          string(raw.City),
		Days:          req.Days,
		Highlights:    []string(raw.Highlights),
		EstimatedCost: string(raw.EstimatedCost),
		DailyPlans:    make([]domain.DailyPlan, 0, len(days)),
	}
	if it.City == "" {
		it.City = req.City
	}
	if it.Title == "" {
		it.Title = fmt.Sprintf("%d days in %s", req.Days, req.City)
	}
	if it.Highlights == nil {
		it.Highlights = []string{}
	}

	for i, d := range days {
		plan := domain.DailyPlan{
			Day:          i + 1,
			Theme:        string(d.Theme),
			LocalTip:     string(d.LocalTip),
			TransportTip: string(d.TransportTip),
		}
		for _, a := range d.Activities {
			if a.Name == "" {
				continue
			}
			plan.Activities = append(plan.Activities, activity(a, req.LocalnessLevel))
		}
		if len(plan.Activities) == 0 {
			return nil, fmt.Errorf("%w: day %d has no activities", ErrInvalidPayload, i+1)
		}
		it.DailyPlans = append(it.DailyPlans, plan)
	}

	if raw.LocalScore > 0 {
		it.LocalScore = clamp(float64(raw.LocalScore), domain.MinActivityLocalness, domain.MaxActivityLocalness)
	} else {
		it.LocalScore = it.ComputeLocalScore()
	}
	return it, nil
}

func activity(a rawActivity, defaultLocalness int) domain.Activity {
	score := int(a.LocalnessScore)
	if score == 0 {
		score = defaultLocalness
	}
	score = int(clamp(float64(score), domain.MinActivityLocalness, domain.MaxActivityLocalness))

	return domain.Activity{
		Time:           string(a.Time),
		TimeOfDay:      timeOfDay(string(a.TimeOfDay), string(a.Time)),
		Name:           string(a.Name),
		Address:        string(a.Address),
		Description:    string(a.Description),
		Category:       strings.ToLower(string(a.Category)),
		LocalnessScore: score,
		Duration:       string(a.Duration),
		Cost:           string(a.Cost),
	}
}

// timeOfDay maps the model's label, or failing that the clock time, to a bucket.
func timeOfDay(label, clock string) domain.TimeOfDay {
	switch domain.TimeOfDay(strings.ToLower(strings.TrimSpace(label))) {
	case domain.Morning:
		return domain.Morning
	case domain.Afternoon:
		return domain.Afternoon
	case domain.Evening, "night":
		return domain.Evening
	}
	hour, ok := parseHour(clock)
	switch {
	case !ok:
		return domain.Afternoon
	case hour < 12:
		return domain.Morning
	case hour < 17:
		return domain.Afternoon
	default:
		return domain.Evening
	}
}

func parseHour(clock string) (int, bool) {
	clock = strings.ToUpper(strings.TrimSpace(clock))
	pm := strings.HasSuffix(clock, "PM")
	clock = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(clock, "PM"), "AM"))
	h, _, _ := strings.Cut(clock, ":")
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	if pm && hour < 12 {
		hour += 12
	}
	return hour, true
}
