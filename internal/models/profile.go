package models

// CandidateProfile is the structured record returned by the AI step.
// DetailsFlat is intentionally absent: it is derived at render time.
type CandidateProfile struct {
	Personal   Personal     `json:"personal"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Languages  []string     `json:"languages"`
	Skills     []string     `json:"skills"`
}

type Personal struct {
	Name        string `json:"name"`
	BirthDate   string `json:"birth_date"`
	Nationality string `json:"nationality"`
	Gender      string `json:"gender"`
}

type Experience struct {
	Title   string   `json:"title"`
	Company string   `json:"company"`
	Period  string   `json:"period"`
	Details []string `json:"details"`
}

type Education struct {
	School         string `json:"school"`
	Specialization string `json:"specialization"`
	Period         string `json:"period"`
	Location       string `json:"location"`
}

const (
	GenderMale   = "Mann ♂"
	GenderFemale = "Frau ♀"
)

// Clone returns a deep copy so stored profiles cannot be changed through shared slices.
func (p *CandidateProfile) Clone() *CandidateProfile {
	if p == nil {
		return nil
	}

	out := &CandidateProfile{
		Personal:  p.Personal,
		Languages: append([]string(nil), p.Languages...),
		Skills:    append([]string(nil), p.Skills...),
		Education: append([]Education(nil), p.Education...),
	}
	if p.Experience != nil {
		out.Experience = make([]Experience, len(p.Experience))
		for i, job := range p.Experience {
			job.Details = append([]string(nil), job.Details...)
			out.Experience[i] = job
		}
	}
	return out
}
