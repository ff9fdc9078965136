package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
)

const (
	minutesPerProficiencyPoint = 100
	maxProficiency             = 10
)

// KnowledgeArea is the time spent on sessions carrying one tag.
type KnowledgeArea struct {
	Tag          string  `json:"tag"`
	MinutesSpent int     `json:"minutesSpent"`
	Proficiency  float64 `json:"proficiency"`
}

// Insights describes study habits over a window.
type Insights struct {
	BestStudyHour        int             `json:"bestStudyTime"`
	MostProductiveDay    string          `json:"mostProductiveDay"`
	AverageSessionLength float64         `json:"averageSessionLength"`
	KnowledgeAreas       []KnowledgeArea `json:"knowledgeAreas"`
	TopicMinutes         map[string]int  `json:"topicMinutes"`
	SessionCount         int             `json:"sessionCount"`
}

// ComputeInsights summarises the windowed sessions. Hours and weekdays are
// taken from the local start time; ties go to the earliest hour and to the
// earliest weekday counting from Sunday.
func ComputeInsights(sessions []session.Session, windowDays int, now time.Time, loc *time.Location) Insights {
	loc = location(loc)
	window := Window(sessions, windowDays, now)

	out := Insights{
		KnowledgeAreas: []KnowledgeArea{},
		TopicMinutes:   map[string]int{},
		SessionCount:   len(window),
	}
	if len(window) == 0 {
		return out
	}

	var hours [24]int
	var weekdays [7]int
	tagMinutes := map[string]int{}
	total := 0
	for _, s := range window {
		minutes := session.DurationMinutes(&s, now)
		start := s.StartTime.In(loc)
		hours[start.Hour()] += minutes
		weekdays[start.Weekday()] += minutes
		out.TopicMinutes[s.ActivityType] += minutes
		for _, tag := range Tags(&s) {
			tagMinutes[tag] += minutes
		}
		total += minutes
	}

	out.BestStudyHour = argmax(hours[:])
	out.MostProductiveDay = time.Weekday(argmax(weekdays[:])).String()
	out.AverageSessionLength = float64(total) / float64(len(window))

	for tag, minutes := range tagMinutes {
		out.KnowledgeAreas = append(out.KnowledgeAreas, KnowledgeArea{
			Tag:          tag,
			MinutesSpent: minutes,
			Proficiency:  math.Min(float64(minutes)/minutesPerProficiencyPoint, maxProficiency),
		})
	}
	sort.Slice(out.KnowledgeAreas, func(i, j int) bool {
		return out.KnowledgeAreas[i].Tag < out.KnowledgeAreas[j].Tag
	})
	return out
}

// argmax returns the first index holding the largest value.
func argmax(values []int) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
