// Package templates stores reusable agent configurations: tenant-owned
// templates plus global presets every tenant can read but nobody edits.
package templates

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("templates: not found")
	ErrConflict        = errors.New("templates: conflict")
	ErrInvalidArgument = errors.New("templates: invalid argument")
)

const (
	DefaultCategory = "custom"
	DefaultIcon     = "🤖"
	DefaultVoice    = "emma"
	DefaultLanguage = "fr-FR"
)

type Template struct {
	ID uuid.UUID `json:"id"`
	// TenantID is uuid.Nil for presets.
	TenantID     uuid.UUID `json:"-"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category"`
	Icon         string    `json:"icon"`
	IsPreset     bool      `json:"is_preset"`
	Greeting     string    `json:"greeting"`
	SystemPrompt string    `json:"system_prompt"`
	Voice        string    `json:"voice"`
	Language     string    `json:"language"`
	UsageCount   int       `json:"usage_count"`
	CreatedBy    uuid.UUID `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NewTemplate struct {
	Name         string
	Description  string
	Category     string
	Icon         string
	Greeting     string
	SystemPrompt string
	Voice        string
	Language     string
}

// Patch carries a partial update; nil fields are left alone.
type Patch struct {
	Name         *string
	Description  *string
	Category     *string
	Icon         *string
	Greeting     *string
	SystemPrompt *string
	Voice        *string
	Language     *string
}

func (p Patch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Category == nil && p.Icon == nil &&
		p.Greeting == nil && p.SystemPrompt == nil && p.Voice == nil && p.Language == nil
}

// Filter narrows a tenant listing.
type Filter struct {
	Category       string
	IncludePresets bool
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

var categories = []Category{
	{ID: "beauty", Name: "Beauty & wellness", Icon: "💅"},
	{ID: "health", Name: "Health", Icon: "🏥"},
	{ID: "food", Name: "Food & drink", Icon: "🍽️"},
	{ID: "services", Name: "Services", Icon: "🔧"},
	{ID: "retail", Name: "Retail", Icon: "🛍️"},
	{ID: "custom", Name: "Custom", Icon: DefaultIcon},
}

func knownCategory(id string) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// SeedResult reports a preset seeding run.
type SeedResult struct {
	Created      int `json:"created"`
	TotalPresets int `json:"total_presets"`
}
