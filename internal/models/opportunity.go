package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is a volunteering engagement posted by an organization.
type Opportunity struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	Category    string    `json:"category,omitempty"`
	Location    string    `json:"location,omitempty"`
	Skills      []string  `json:"skills,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OpportunityFilter narrows an opportunity listing. Empty fields match everything.
type OpportunityFilter struct {
	Query     string
	Category  string
	Location  string
	Skill     string
	CreatedBy *uuid.UUID
}
