package domain

import "github.com/google/uuid"

type Lecture struct {
	Title         string `json:"title"`
	DurationMin   int    `json:"duration_min"`
	LectureURL    string `json:"lecture_url"`
	IsPreviewFree bool   `json:"is_preview_free"`
}

type Chapter struct {
	Title    string    `json:"title"`
	Lectures []Lecture `json:"lectures"`
}

type Course struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	PriceCents       int64     `json:"price_cents"`
	DiscountPct      int       `json:"discount_pct"`
	Published        bool      `json:"published"`
	EducatorID       string    `json:"educator_id"`
	Chapters         []Chapter `json:"chapters,omitempty"`
	EnrolledLearners []string  `json:"enrolled_learners,omitempty"`
}

// RedactLockedLectures blanks the URL of every lecture that is not free to
// preview, so unpaid callers never see playable links.
func (c *Course) RedactLockedLectures() {
	for ci := range c.Chapters {
		for li := range c.Chapters[ci].Lectures {
			if !c.Chapters[ci].Lectures[li].IsPreviewFree {
				c.Chapters[ci].Lectures[li].LectureURL = ""
			}
		}
	}
}

// Learner id is the opaque stable string supplied by the auth collaborator.
type Learner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
