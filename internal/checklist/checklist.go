package checklist

import (
	"fmt"
	"math"
	"sync"
)

type Category string

const (
	CategoryTechnical   Category = "technical"
	CategoryClinical    Category = "clinical"
	CategorySafety      Category = "safety"
	CategoryPreparation Category = "preparation"
)

type Item struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Checked     bool     `json:"checked"`
	Category    Category `json:"category"`
}

type Stats struct {
	Total              int `json:"total"`
	Completed          int `json:"completed"`
	RequiredTotal      int `json:"requiredTotal"`
	RequiredCompleted  int `json:"requiredCompleted"`
	Percentage         int `json:"percentage"`
	RequiredPercentage int `json:"requiredPercentage"`
}

// List is one pre-session readiness checklist. Instances are created fresh
// per preparation view and never persisted.
type List struct {
	mu    sync.Mutex
	items []Item
}

func New(items []Item) *List {
	copied := make([]Item, len(items))
	copy(copied, items)
	return &List{items: copied}
}

// Default returns the standard pre-session checklist.
func Default() *List {
	return New([]Item{
		{ID: "camera-test", Label: "Camera Test", Description: "Verify camera is working and positioned correctly", Required: true, Category: CategoryTechnical},
		{ID: "microphone-test", Label: "Microphone Test", Description: "Test audio input and output quality", Required: true, Category: CategoryTechnical},
		{ID: "internet-connection", Label: "Internet Connection", Description: "Ensure stable internet connection (minimum 5 Mbps)", Required: true, Category: CategoryTechnical},
		{ID: "backup-device", Label: "Backup Device Ready", Description: "Secondary device available if needed", Required: false, Category: CategoryTechnical},
		{ID: "client-file-review", Label: "Client File Review", Description: "Review previous session notes and treatment plan", Required: true, Category: CategoryClinical},
		{ID: "session-plan", Label: "Session Plan Prepared", Description: "Agenda and goals for today's session ready", Required: true, Category: CategoryClinical},
		{ID: "assessment-tools", Label: "Assessment Tools", Description: "Required forms and assessment materials accessible", Required: false, Category: CategoryClinical},
		{ID: "homework-review", Label: "Homework Review", Description: "Previous session homework and assignments reviewed", Required: true, Category: CategoryClinical},
		{ID: "private-space", Label: "Private Space Secured", Description: "Ensure confidential environment with no interruptions", Required: true, Category: CategorySafety},
		{ID: "emergency-contacts", Label: "Emergency Contacts Available", Description: "Crisis support numbers and local emergency services ready", Required: true, Category: CategorySafety},
		{ID: "risk-assessment", Label: "Risk Assessment Current", Description: "Latest risk assessment reviewed and up to date", Required: true, Category: CategorySafety},
		{ID: "materials-ready", Label: "Session Materials", Description: "Worksheets, resources, and handouts prepared", Required: false, Category: CategoryPreparation},
		{ID: "time-buffer", Label: "Time Buffer", Description: "5-10 minutes buffer before and after session", Required: true, Category: CategoryPreparation},
		{ID: "notification-silence", Label: "Notifications Silenced", Description: "Phone and computer notifications turned off", Required: true, Category: CategoryPreparation},
	})
}

// Toggle flips the checked flag of exactly one item.
func (l *List) Toggle(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Checked = !l.items[i].Checked
			return nil
		}
	}
	return fmt.Errorf("unknown checklist item %q", id)
}

func (l *List) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]Item, len(l.items))
	copy(items, l.items)
	return items
}

// Stats is recomputed on every call rather than cached, so the aggregate
// can never drift from item state.
func (l *List) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Total: len(l.items)}
	for _, item := range l.items {
		if item.Checked {
			stats.Completed++
		}
		if item.Required {
			stats.RequiredTotal++
			if item.Checked {
				stats.RequiredCompleted++
			}
		}
	}
	stats.Percentage = roundedPercent(stats.Completed, stats.Total)
	stats.RequiredPercentage = roundedPercent(stats.RequiredCompleted, stats.RequiredTotal)
	return stats
}

// CanProceed reports whether every required item is checked. Optional
// items never block.
func (l *List) CanProceed() bool {
	stats := l.Stats()
	return stats.RequiredCompleted == stats.RequiredTotal
}

func roundedPercent(completed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
