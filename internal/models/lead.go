// ABOUTME: Lead is a candidate account tracked through the outreach funnel
// ABOUTME: Holds profile context used for prompting plus scoring counters
package models

import (
	"errors"
	"strings"
	"time"
)

// Niche values produced by niche detection
const (
	NicheBusiness      = "business"
	NicheEcommerce     = "ecommerce"
	NicheServices      = "services"
	NichePersonalBrand = "personal_brand"
)

// Niches lists the recognised niches
var Niches = []string{NicheBusiness, NicheEcommerce, NicheServices, NichePersonalBrand}

// Lead represents a candidate contact
type Lead struct {
	ID                    int64      `json:"id"`
	Handle                string     `json:"handle"`
	Bio                   string     `json:"bio"`
	LastPostExcerpt       string     `json:"last_post_excerpt"`
	Niche                 string     `json:"niche"`
	Status                LeadStatus `json:"status"`
	ConfidenceScore       int        `json:"confidence_score"`
	ConsecutiveRejections int        `json:"consecutive_rejections"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NewLead is the input for creating a lead on first contact attempt
type NewLead struct {
	Handle          string
	Bio             string
	LastPostExcerpt string
	Niche           string
}

// NormalizeHandle strips whitespace and a leading @, and lowercases the handle
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// Validate checks the new lead has a usable handle and a known niche
func (n *NewLead) Validate() error {
	if NormalizeHandle(n.Handle) == "" {
		return errors.New("handle cannot be empty")
	}
	if n.Niche != "" && !IsNiche(n.Niche) {
		return errors.New("unknown niche: " + n.Niche)
	}
	return nil
}

// IsNiche reports whether s is a recognised niche
func IsNiche(s string) bool {
	for _, n := range Niches {
		if n == s {
			return true
		}
	}
	return false
}
