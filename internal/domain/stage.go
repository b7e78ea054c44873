package domain

// Stage is one step of the three-step generation pipeline. The stages form
// a strict dependency chain: classifier < experience < reviewer.
type Stage string

const (
	StageClassifier Stage = "classifier"
	StageExperience Stage = "experience"
	StageReviewer   Stage = "reviewer"
)

// Valid reports whether s is a known stage name.
func (s Stage) Valid() bool {
	switch s {
	case StageClassifier, StageExperience, StageReviewer:
		return true
	}
	return false
}

// StageResult is the closed set of outputs a stage can produce. Exactly one
// concrete type corresponds to each stage, so dependency checks are
// exhaustive instead of relying on ad hoc field presence.
type StageResult interface {
	stageResult()
}

// ClassifierResult names the best-fit role among the caller's template
// labels plus the keywords and insights that guide the later stages.
type ClassifierResult struct {
	RoleType string   `json:"roleType"`
	Keywords []string `json:"keywords"`
	Insights []string `json:"insights"`
}

func (ClassifierResult) stageResult() {}

// Complete reports whether the result can satisfy a downstream dependency.
func (c ClassifierResult) Complete() bool {
	return c.RoleType != ""
}

// ExperienceResult carries the rewritten work-experience text.
type ExperienceResult struct {
	WorkExperience string `json:"workExperience"`
}

func (ExperienceResult) stageResult() {}

// Complete reports whether the result can satisfy a downstream dependency.
func (e ExperienceResult) Complete() bool {
	return e.WorkExperience != ""
}

// ReviewResult is the finalized output: cleaned personal information plus
// the resume content to render.
type ReviewResult struct {
	PersonalInfo   map[string]any `json:"personalInfo"`
	WorkExperience string         `json:"workExperience"`
}

func (ReviewResult) stageResult() {}

// JobDescription is the posting the resume is tailored against.
type JobDescription struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Template is one of the candidate's experience templates, labeled with the
// role it targets.
type Template struct {
	TargetRole string   `json:"targetRole"`
	Title      string   `json:"title"`
	Content    []string `json:"content"`
}

// StageData carries prior completed stage outputs back from the caller. The
// server keeps no state between stages; the caller re-supplies these on
// every request.
type StageData struct {
	Classifier *ClassifierResult `json:"classifier,omitempty"`
	Experience *ExperienceResult `json:"experience,omitempty"`
}

// GenerateRequest is the body of POST /generate/stream.
type GenerateRequest struct {
	JD           JobDescription `json:"jd"`
	PersonalInfo map[string]any `json:"personalInfo"`
	Templates    []Template     `json:"templates"`
	Stage        Stage          `json:"stage"`
	StageData    StageData      `json:"stageData"`
	DeviceID     string         `json:"device_id,omitempty"`
}

// RoleLabels returns the distinct targetRole labels in request order.
func (r GenerateRequest) RoleLabels() []string {
	seen := make(map[string]struct{}, len(r.Templates))
	var labels []string
	for _, tpl := range r.Templates {
		if tpl.TargetRole == "" {
			continue
		}
		if _, ok := seen[tpl.TargetRole]; ok {
			continue
		}
		seen[tpl.TargetRole] = struct{}{}
		labels = append(labels, tpl.TargetRole)
	}
	return labels
}

// TemplateForRole returns the template whose label matches role.
func (r GenerateRequest) TemplateForRole(role string) (Template, bool) {
	for _, tpl := range r.Templates {
		if tpl.TargetRole == role {
			return tpl, true
		}
	}
	return Template{}, false
}
