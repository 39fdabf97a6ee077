package types

// RequirementCategory: "eligibility" | "technical" | "administrative" | "financial" | "other"
type RequirementCategory string

const (
	ReqEligibility    RequirementCategory = "eligibility"
	ReqTechnical      RequirementCategory = "technical"
	ReqAdministrative RequirementCategory = "administrative"
	ReqFinancial      RequirementCategory = "financial"
	ReqOther          RequirementCategory = "other"
)

// OrgType: "university" | "research_institute" | "company" | "ngo" | "other"
type OrgType string

const (
	OrgUniversity        OrgType = "university"
	OrgResearchInstitute OrgType = "research_institute"
	OrgCompany           OrgType = "company"
	OrgNGO               OrgType = "ngo"
	OrgOther             OrgType = "other"
)

// Valid reports whether t is a known organization type.
func (t OrgType) Valid() bool {
	switch t {
	case OrgUniversity, OrgResearchInstitute, OrgCompany, OrgNGO, OrgOther:
		return true
	}
	return false
}

// PartnerType: "academic" | "industry" | "government" | "ngo" | "other"
type PartnerType string

// Level: "high" | "medium" | "low"
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Severity: "critical" | "major" | "minor"
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// Rank orders severities for sorting; higher is worse. Unknown values rank last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// Priority: "critical" | "high" | "medium" | "low"
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities for sorting; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// GapType: "team" | "resources" | "experience" | "technical" | "administrative"
type GapType string

// Recommendation: "highly_recommended" | "recommended" | "proceed_with_caution" | "not_recommended"
type Recommendation string

const (
	RecHighlyRecommended  Recommendation = "highly_recommended"
	RecRecommended        Recommendation = "recommended"
	RecProceedWithCaution Recommendation = "proceed_with_caution"
	RecNotRecommended     Recommendation = "not_recommended"
)

// Label renders r for humans.
func (r Recommendation) Label() string {
	switch r {
	case RecHighlyRecommended:
		return "highly recommended"
	case RecRecommended:
		return "recommended"
	case RecProceedWithCaution:
		return "proceed with caution"
	case RecNotRecommended:
		return "not recommended"
	default:
		return string(r)
	}
}

// DocumentType: the nine documents the package stage generates.
type DocumentType string

const (
	DocCoverLetter         DocumentType = "cover_letter"
	DocProjectSummary      DocumentType = "project_summary"
	DocBudgetJustification DocumentType = "budget_justification"
	DocTeamCV              DocumentType = "team_cv"
	DocWorkPlan            DocumentType = "work_plan"
	DocRiskAssessment      DocumentType = "risk_assessment"
	DocImpactStatement     DocumentType = "impact_statement"
	DocEthicsStatement     DocumentType = "ethics_statement"
	DocDataManagementPlan  DocumentType = "data_management_plan"
)

// Valid reports whether d is one of the nine document kinds.
func (d DocumentType) Valid() bool {
	switch d {
	case DocCoverLetter, DocProjectSummary, DocBudgetJustification, DocTeamCV, DocWorkPlan,
		DocRiskAssessment, DocImpactStatement, DocEthicsStatement, DocDataManagementPlan:
		return true
	}
	return false
}

// DocumentFormat: "markdown" | "pdf" | "docx"
type DocumentFormat string

const (
	FormatMarkdown DocumentFormat = "markdown"
	FormatPDF      DocumentFormat = "pdf"
	FormatDOCX     DocumentFormat = "docx"
)

// Ext returns the file extension for f; unknown formats are treated as markdown.
func (f DocumentFormat) Ext() string {
	switch f {
	case FormatPDF:
		return ".pdf"
	case FormatDOCX:
		return ".docx"
	case FormatMarkdown:
		return ".md"
	default:
		return ".md"
	}
}

// DocumentStatus: "generated" | "needs_review" | "approved"
type DocumentStatus string

const (
	DocGenerated   DocumentStatus = "generated"
	DocNeedsReview DocumentStatus = "needs_review"
	DocApproved    DocumentStatus = "approved"
)

// ChecklistStatus: "complete" | "in_progress" | "not_started"
type ChecklistStatus string

const (
	ChecklistComplete   ChecklistStatus = "complete"
	ChecklistInProgress ChecklistStatus = "in_progress"
	ChecklistNotStarted ChecklistStatus = "not_started"
)

// Mark is the checklist glyph for s.
func (s ChecklistStatus) Mark() string {
	switch s {
	case ChecklistComplete:
		return "✓"
	case ChecklistInProgress:
		return "⧗"
	case ChecklistNotStarted:
		return "☐"
	default:
		return "☐"
	}
}

// CheckStatus: "passed" | "failed" | "not_checked"
type CheckStatus string

const (
	CheckPassed     CheckStatus = "passed"
	CheckFailed     CheckStatus = "failed"
	CheckNotChecked CheckStatus = "not_checked"
)

// Mark is the quality-check glyph for s.
func (s CheckStatus) Mark() string {
	switch s {
	case CheckPassed:
		return "✓"
	case CheckFailed:
		return "✗"
	case CheckNotChecked:
		return "☐"
	default:
		return "☐"
	}
}
