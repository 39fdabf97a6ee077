package types

// GrantAnalysis is the structured extraction of a grant call (analysis stage).
type GrantAnalysis struct {
	GrantTitle           string                `json:"grantTitle"`
	GrantingOrganization string                `json:"grantingOrganization"`
	ProgramName          string                `json:"programName,omitempty"`
	Deadline             string                `json:"deadline,omitempty"`
	Summary              string                `json:"summary"`
	Objectives           []string              `json:"objectives"`
	Requirements         []Requirement         `json:"requirements"`
	EvaluationCriteria   []EvaluationCriterion `json:"evaluationCriteria"`
	Budget               Budget                `json:"budget"`
	Timeline             []TimelinePhase       `json:"timeline"`
	TargetBeneficiaries  []string              `json:"targetBeneficiaries"`
	GeographicScope      string                `json:"geographicScope,omitempty"`
	EligibleCountries    []string              `json:"eligibleCountries"`
	KeyThemes            []string              `json:"keyThemes"`
	AdditionalNotes      []string              `json:"additionalNotes"`
}

type Requirement struct {
	Category    RequirementCategory `json:"category"`
	Description string              `json:"description"`
	Mandatory   bool                `json:"mandatory"`
	Evidence    string              `json:"evidence,omitempty"`
}

type EvaluationCriterion struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Weight        float64  `json:"weight"`
	MaxScore      float64  `json:"maxScore"`
	KeyIndicators []string `json:"keyIndicators"`
}

type Budget struct {
	TotalAmount         string           `json:"totalAmount,omitempty"`
	Categories          []BudgetCategory `json:"categories"`
	CoFundingRequired   bool             `json:"coFundingRequired"`
	CoFundingPercentage *float64         `json:"coFundingPercentage,omitempty"`
}

type BudgetCategory struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	MinAmount   *float64 `json:"minAmount,omitempty"`
	MaxAmount   *float64 `json:"maxAmount,omitempty"`
	Rules       []string `json:"rules"`
}

type TimelinePhase struct {
	Phase        string   `json:"phase"`
	Duration     string   `json:"duration"`
	Deliverables []string `json:"deliverables"`
}

// OrganizationProfile is the applicant's static self-description (external input).
type OrganizationProfile struct {
	Name                string               `json:"name"`
	Type                OrgType              `json:"type"`
	Country             string               `json:"country"`
	Description         string               `json:"description"`
	TeamInfo            TeamInfo             `json:"teamInfo"`
	Resources           Resources            `json:"resources"`
	TrackRecord         TrackRecord          `json:"trackRecord"`
	Partnerships        []Partnership        `json:"partnerships"`
	SupportingDocuments []SupportingDocument `json:"supportingDocuments"`
}

type TeamMember struct {
	Name             string   `json:"name"`
	Role             string   `json:"role"`
	Expertise        []string `json:"expertise"`
	Experience       string   `json:"experience"`
	RelevantProjects []string `json:"relevantProjects"`
}

type TeamInfo struct {
	CoreTeam        []TeamMember `json:"coreTeam"`
	Advisors        []TeamMember `json:"advisors"`
	ExternalExperts []TeamMember `json:"externalExperts"`
	TotalSize       int          `json:"totalSize"`
	KeyCompetencies []string     `json:"keyCompetencies"`
}

type Resources struct {
	Technical struct {
		Infrastructure     []string `json:"infrastructure"`
		Equipment          []string `json:"equipment"`
		Software           []string `json:"software"`
		ComputingResources []string `json:"computingResources"`
	} `json:"technical"`
	Financial struct {
		AnnualBudget     string   `json:"annualBudget,omitempty"`
		FundingSources   []string `json:"fundingSources"`
		AvailableFunding string   `json:"availableFunding,omitempty"`
	} `json:"financial"`
	Facilities   []string `json:"facilities"`
	Partnerships []string `json:"partnerships"`
}

type ProjectReference struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Year        string `json:"year,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Relevance   string `json:"relevance"`
}

type SuccessMetric struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

type TrackRecord struct {
	PreviousProjects []ProjectReference `json:"previousProjects"`
	Publications     []string           `json:"publications"`
	Awards           []string           `json:"awards"`
	Patents          []string           `json:"patents"`
	SuccessMetrics   []SuccessMetric    `json:"successMetrics"`
}

type Partnership struct {
	OrganizationName string      `json:"organizationName"`
	Type             PartnerType `json:"type"`
	Description      string      `json:"description"`
	Relevance        string      `json:"relevance"`
}

type SupportingDocument struct {
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
	Content     string `json:"content,omitempty"`
}

// FeasibilityEvaluation is the fit assessment of an organization against a grant.
type FeasibilityEvaluation struct {
	OverallChance            float64          `json:"overallChance"` // 0-100
	Recommendation           Recommendation   `json:"recommendation"`
	ExecutiveSummary         string           `json:"executiveSummary"`
	MatchScore               MatchScore       `json:"matchScore"`
	Strengths                []Strength       `json:"strengths"`
	Weaknesses               []Weakness       `json:"weaknesses"`
	Gaps                     []Gap            `json:"gaps"`
	Risks                    []Risk           `json:"risks"`
	RequiredActions          []RequiredAction `json:"requiredActions"`
	StrategicRecommendations []string         `json:"strategicRecommendations"`
}

type MatchScore struct {
	Overall   float64         `json:"overall"`
	Breakdown []CategoryScore `json:"breakdown"`
}

type CategoryScore struct {
	Category    string  `json:"category"`
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"maxScore"`
	Explanation string  `json:"explanation"`
}

type Strength struct {
	Area        string `json:"area"`
	Description string `json:"description"`
	Impact      Level  `json:"impact"`
}

type Weakness struct {
	Area        string   `json:"area"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Mitigation  string   `json:"mitigation,omitempty"`
}

type Gap struct {
	Type           GapType  `json:"type"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
}

type Risk struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Probability Level  `json:"probability"`
	Impact      Level  `json:"impact"`
	Mitigation  string `json:"mitigation"`
}

type RequiredAction struct {
	Priority Priority `json:"priority"`
	Action   string   `json:"action"`
	Timeline string   `json:"timeline"`
}

// ScientificProposal is one draft of the application's scientific content.
type ScientificProposal struct {
	Abstract        string   `json:"abstract"`
	Introduction    string   `json:"introduction"`
	StateOfTheArt   string   `json:"stateOfTheArt"`
	Methodology     string   `json:"methodology"`
	WorkPlan        string   `json:"workPlan"`
	ExpectedResults string   `json:"expectedResults"`
	Impact          string   `json:"impact"`
	Bibliography    []string `json:"bibliography"`
}

// ReviewReport is the critique of one proposal draft.
type ReviewReport struct {
	OverallScore          float64               `json:"overallScore"`
	MaxScore              float64               `json:"maxScore"`
	ReadyToSubmit         bool                  `json:"readyToSubmit"`
	ExecutiveSummary      string                `json:"executiveSummary"`
	SectionScores         []SectionScore        `json:"sectionScores"`
	Strengths             []string              `json:"strengths"`
	Weaknesses            []ReviewIssue         `json:"weaknesses"`
	MissingElements       []string              `json:"missingElements"`
	ImprovementPriorities []ImprovementPriority `json:"improvementPriorities"`
	DetailedFeedback      []SectionFeedback     `json:"detailedFeedback"`
}

type SectionScore struct {
	Section  string  `json:"section"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"maxScore"`
	Feedback string  `json:"feedback"`
}

type ReviewIssue struct {
	Section    string   `json:"section"`
	Issue      string   `json:"issue"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion"`
}

type ImprovementPriority struct {
	Priority       Priority `json:"priority"`
	Area           string   `json:"area"`
	Recommendation string   `json:"recommendation"`
}

type SectionFeedback struct {
	Section  string   `json:"section"`
	Comments []string `json:"comments"`
}

// ApplicationPackage is the final submission bundle.
type ApplicationPackage struct {
	PackageID            string              `json:"packageId"`
	GrantTitle           string              `json:"grantTitle"`
	CreatedAt            string              `json:"createdAt"`
	DocumentChecklist    []ChecklistItem     `json:"documentChecklist"`
	GeneratedDocuments   []GeneratedDocument `json:"generatedDocuments"`
	ManualDocuments      []ManualDocument    `json:"manualDocuments"`
	SubmissionGuidelines []string            `json:"submissionGuidelines"`
	QualityChecks        []QualityCheck      `json:"qualityChecks"`
	NextSteps            []string            `json:"nextSteps"`
}

type ChecklistItem struct {
	Item        string          `json:"item"`
	Status      ChecklistStatus `json:"status"`
	Responsible string          `json:"responsible,omitempty"`
	Deadline    string          `json:"deadline,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

type GeneratedDocument struct {
	Type     DocumentType   `json:"type"`
	Filename string         `json:"filename"`
	Content  string         `json:"content"`
	Format   DocumentFormat `json:"format"`
	Status   DocumentStatus `json:"status"`
}

type ManualDocument struct {
	Type         string `json:"type"`
	Description  string `json:"description"`
	Required     bool   `json:"required"`
	Instructions string `json:"instructions"`
}

type QualityCheck struct {
	Check  string      `json:"check"`
	Status CheckStatus `json:"status"`
	Notes  string      `json:"notes,omitempty"`
}
