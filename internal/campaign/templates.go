// internal/campaign/templates.go

package campaign

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/calmoraapp/calmora-backend/internal/profile"
)

// Renderer fills {placeholder} tokens in template text. Substitution
// order: explicit values, then profile fields, then category-specific
// dynamic content. Explicit values win on shared keys; unresolved
// placeholders are left verbatim.
type Renderer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRenderer creates a renderer drawing quotes and tips from rng.
// Tests pass a seeded source for reproducible output.
func NewRenderer(rng *rand.Rand) *Renderer {
	return &Renderer{rng: rng}
}

// Render produces the final notification text for a template
func (r *Renderer) Render(tpl *Template, explicit map[string]string, prof *profile.Profile) RenderedContent {
	title := tpl.Title
	body := tpl.Body

	for key, value := range explicit {
		token := "{" + key + "}"
		title = strings.ReplaceAll(title, token, value)
		body = strings.ReplaceAll(body, token, value)
	}

	if prof != nil {
		title = r.applyProfile(title, prof)
		body = r.applyProfile(body, prof)
	}

	switch tpl.Category {
	case CategoryMotivation:
		quote := r.pick(motivationalQuotes)
		title = strings.ReplaceAll(title, "{motivationalQuote}", quote)
		body = strings.ReplaceAll(body, "{motivationalQuote}", quote)
	case CategoryEducational:
		tip := r.pick(dailyTips)
		title = strings.ReplaceAll(title, "{tip}", tip)
		body = strings.ReplaceAll(body, "{tip}", tip)
	}

	return RenderedContent{
		Title:    title,
		Body:     body,
		Subtitle: tpl.Subtitle,
	}
}

func (r *Renderer) applyProfile(text string, prof *profile.Profile) string {
	if prof.Name != "" {
		text = strings.ReplaceAll(text, "{userName}", prof.Name)
	}
	text = strings.ReplaceAll(text, "{preferredTime}", prof.PreferredReminderTime)
	text = strings.ReplaceAll(text, "{duration}", fmt.Sprintf("%d", prof.PreferredSessionMinutes))
	return text
}

func (r *Renderer) pick(list []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return list[r.rng.Intn(len(list))]
}

// Quote and tip pools for the dynamic placeholders
var motivationalQuotes = []string{
	"Peace comes from within. Do not seek it without.",
	"The quieter you become, the more you can hear.",
	"Every breath is a chance to begin again.",
	"You don't have to control your thoughts. You just have to stop letting them control you.",
	"Small steps every day add up to big changes.",
	"Calm mind brings inner strength and self-confidence.",
}

var dailyTips = []string{
	"Try the 4-7-8 breath: inhale for 4, hold for 7, exhale for 8.",
	"A two-minute body scan before bed improves sleep quality.",
	"Name three things you can hear right now to anchor yourself.",
	"Unclench your jaw and drop your shoulders. Notice the difference.",
	"Pair your practice with an existing habit, like your morning coffee.",
	"Walking meditation counts. Ten mindful steps is a session.",
}

// defaultTemplates seeds the catalog on first run. The catalog is
// replaced wholesale when persisted templates exist.
var defaultTemplates = []*Template{
	{
		ID:       "welcome_day1",
		Category: CategoryWelcome,
		Priority: PriorityHigh,
		Title:    "Welcome to Calmora, {userName}! 🌿",
		Body:     "Your journey to a calmer mind starts today. Your first session is ready whenever you are.",
		PersonalizationFields: []string{"userName"},
		Tags:  []string{"onboarding", "welcome"},
		Sound: "gentle_chime",
	},
	{
		ID:       "welcome_day3",
		Category: CategoryWelcome,
		Priority: PriorityMedium,
		Title:    "How are the first days going? 🌱",
		Body:     "Three days in, {userName}. Even a short session today keeps the momentum going.",
		PersonalizationFields: []string{"userName"},
		Tags: []string{"onboarding", "checkin"},
	},
	{
		ID:       "daily_reminder",
		Category: CategoryReminder,
		Priority: PriorityMedium,
		Title:    "Time to breathe ⏰",
		Body:     "Your {duration}-minute session is waiting. A few quiet minutes can reset your whole day.",
		PersonalizationFields: []string{"duration", "preferredTime"},
		Tags:  []string{"daily", "habit"},
		Sound: "soft_bell",
	},
	{
		ID:       "streak_achievement",
		Category: CategoryAchievement,
		Priority: PriorityHigh,
		Title:    "{streakCount}-day streak! 🔥",
		Body:     "Consistency is paying off, {userName}. Keep the chain going with today's session.",
		PersonalizationFields: []string{"streakCount", "userName"},
		Tags:  []string{"streak", "milestone"},
		Sound: "celebration",
	},
	{
		ID:       "session_milestone",
		Category: CategoryAchievement,
		Priority: PriorityMedium,
		Title:    "{sessionCount} sessions completed 🎉",
		Body:     "That's real progress, {userName}. Take a moment to notice how far you've come.",
		PersonalizationFields: []string{"sessionCount", "userName"},
		Tags: []string{"milestone"},
	},
	{
		ID:       "morning_motivation",
		Category: CategoryMotivation,
		Priority: PriorityLow,
		Title:    "A thought for your morning ☀️",
		Body:     "{motivationalQuote}",
		Tags:     []string{"morning", "quote"},
	},
	{
		ID:       "mindfulness_tip",
		Category: CategoryEducational,
		Priority: PriorityLow,
		Title:    "Today's mindfulness tip 💡",
		Body:     "{tip}",
		Tags:     []string{"tip", "learning"},
	},
	{
		ID:       "community_update",
		Category: CategorySocial,
		Priority: PriorityLow,
		Title:    "Your community kept practicing 🌍",
		Body:     "Thousands of members completed a session today. You're part of something calm.",
		Tags:     []string{"community"},
	},
	{
		ID:       "system_update",
		Category: CategorySystem,
		Priority: PriorityLow,
		Title:    "Calmora has new content",
		Body:     "Fresh sessions and soundscapes landed in your library.",
		Tags:     []string{"release"},
	},
}
