package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a user's editable identity and skills record.
type Profile struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Department          string    `json:"department"`
	Year                *int      `json:"year"`
	Bio                 string    `json:"bio"`
	Domain              string    `json:"domain"`
	GithubURL           string    `json:"github_url"`
	LinkedinURL         string    `json:"linkedin_url"`
	LeetcodeURL         string    `json:"leetcode_url"`
	CodeforcesURL       string    `json:"codeforces_url"`
	PortfolioURL        string    `json:"portfolio_url"`
	ResumeURL           string    `json:"resume_url"`
	Skills              []string  `json:"skills"`
	Interests           []string  `json:"interests"`
	Achievements        []string  `json:"achievements"`
	Availability        bool      `json:"availability"`
	ProfilePhoto        string    `json:"profile_photo"`
	ProfilePhotoVisible bool      `json:"profile_photo_visible"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PublicView returns the profile as seen by another user: the photo is dropped when hidden.
func (p Profile) PublicView() Profile {
	if !p.ProfilePhotoVisible {
		p.ProfilePhoto = ""
	}
	return p
}

// Summary is the compact projection used in lists.
func (p Profile) Summary() ProfileSummary {
	s := ProfileSummary{
		UserID:     p.UserID,
		Name:       p.Name,
		Department: p.Department,
		Domain:     p.Domain,
	}
	if p.ProfilePhotoVisible {
		s.ProfilePhoto = p.ProfilePhoto
	}
	return s
}

// ProfileSummary is the other party shown next to connections, messages, posts and members.
type ProfileSummary struct {
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Department   string    `json:"department,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
}

// ProfileUpdate is the payload of PUT /profiles/me.
type ProfileUpdate struct {
	Name          string   `json:"name" validate:"required,max=100"`
	Department    string   `json:"department" validate:"max=100"`
	Year          *int     `json:"year" validate:"omitempty,min=1,max=10"`
	Bio           string   `json:"bio" validate:"max=2000"`
	Domain        string   `json:"domain" validate:"max=100"`
	GithubURL     string   `json:"github_url" validate:"omitempty,url,max=300"`
	LinkedinURL   string   `json:"linkedin_url" validate:"omitempty,url,max=300"`
	LeetcodeURL   string   `json:"leetcode_url" validate:"omitempty,url,max=300"`
	CodeforcesURL string   `json:"codeforces_url" validate:"omitempty,url,max=300"`
	PortfolioURL  string   `json:"portfolio_url" validate:"omitempty,url,max=300"`
	ResumeURL     string   `json:"resume_url" validate:"omitempty,url,max=300"`
	Skills        []string `json:"skills" validate:"max=50,dive,max=50"`
	Interests     []string `json:"interests" validate:"max=50,dive,max=50"`
	Achievements  []string `json:"achievements" validate:"max=50,dive,max=200"`
	Availability  *bool    `json:"availability"`
}

// Normalize trims scalar fields and cleans the tag lists.
func (u *ProfileUpdate) Normalize() {
	for _, s := range []*string{
		&u.Name, &u.Department, &u.Bio, &u.Domain,
		&u.GithubURL, &u.LinkedinURL, &u.LeetcodeURL,
		&u.CodeforcesURL, &u.PortfolioURL, &u.ResumeURL,
	} {
		*s = trimSpace(*s)
	}
	u.Skills = NormalizeTags(u.Skills)
	u.Interests = NormalizeTags(u.Interests)
	u.Achievements = NormalizeTags(u.Achievements)
}
