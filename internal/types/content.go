// Package types provides type definitions for structured data used throughout the guideline-extractor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// ContentType is the discriminator carried by every extracted content item
type ContentType string

// Known content types. The set is closed.
const (
	ContentClinicalPathway    ContentType = "clinical_pathway"
	ContentReferenceTable     ContentType = "reference_table"
	ContentDrugMonograph      ContentType = "drug_monograph"
	ContentWarningSigns       ContentType = "warning_signs"
	ContentDiagnosticCriteria ContentType = "diagnostic_criteria"
	ContentPatientEducation   ContentType = "patient_education"
	ContentGeneric            ContentType = "generic"
)

// AllContentTypes returns every known content type in a fixed order
func AllContentTypes() []ContentType {
	return []ContentType{
		ContentClinicalPathway,
		ContentReferenceTable,
		ContentDrugMonograph,
		ContentWarningSigns,
		ContentDiagnosticCriteria,
		ContentPatientEducation,
		ContentGeneric,
	}
}

// Valid reports whether ct is one of the known content types
func (ct ContentType) Valid() bool {
	for _, known := range AllContentTypes() {
		if ct == known {
			return true
		}
	}
	return false
}

// ContentRecord is a validated content item. Only the variants in this package implement it.
type ContentRecord interface {
	Type() ContentType
	isContentRecord()
}

// ClinicalCriteria lists the conditions that place a patient on a pathway
type ClinicalCriteria struct {
	Conditions        []string `json:"conditions"`
	EmergencyTriggers []string `json:"emergency_triggers"`
}

// Protocol holds the actions prescribed by a pathway
type Protocol struct {
	Assess []string `json:"assess"`
	Treat  []string `json:"treat"`
	Advise []string `json:"advise"`
}

// LogicConnection links a pathway to another section or page
type LogicConnection struct {
	Trigger string `json:"trigger"`
	Target  string `json:"target"`
	Type    string `json:"type"`
}

// DecisionRule is a single if/then step of a pathway
type DecisionRule struct {
	If   string `json:"if"`
	Then string `json:"then"`
}

// ExitPoint is a condition under which a patient leaves the pathway
type ExitPoint struct {
	Condition   string `json:"condition"`
	Disposition string `json:"disposition"`
}

// ClinicalPathway represents flowchart or protocol content
type ClinicalPathway struct {
	ContentType      ContentType       `json:"content_type"`
	PathwayType      string            `json:"pathway_type"`
	Topic            string            `json:"topic"`
	SpecificScenario string            `json:"specific_scenario"`
	VisualStructure  string            `json:"visual_structure"`
	Urgency          string            `json:"urgency"`
	PrescriberLevel  string            `json:"prescriber_level"`
	ClinicalCriteria ClinicalCriteria  `json:"clinical_criteria"`
	Protocol         Protocol          `json:"protocol"`
	LogicConnections []LogicConnection `json:"logic_connections"`
	DecisionLogic    []DecisionRule    `json:"decision_logic,omitempty"`
	ExitPoints       []ExitPoint       `json:"exit_points,omitempty"`
	CrossReferences  []string          `json:"cross_references"`
	Disposition      string            `json:"disposition"`
}

// RowLogic maps a numeric range of a variable to an interpretation
type RowLogic struct {
	Variable       string   `json:"variable"`
	Min            *float64 `json:"min,omitempty"`
	Max            *float64 `json:"max,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	Interpretation string   `json:"interpretation,omitempty"`
}

// TableRow is a single row of a reference table
type TableRow struct {
	Key      string            `json:"key"`
	Values   map[string]string `json:"values"`
	RowLogic *RowLogic         `json:"row_logic,omitempty"`
}

// ReferenceTable represents lookup or classification tables
type ReferenceTable struct {
	ContentType     ContentType       `json:"content_type"`
	Topic           string            `json:"topic"`
	TableName       string            `json:"table_name"`
	TablePurpose    string            `json:"table_purpose"`
	Columns         []string          `json:"columns"`
	Rows            []TableRow        `json:"rows"`
	Units           map[string]string `json:"units"`
	Notes           []string          `json:"notes"`
	SourceReference string            `json:"source_reference"`
}

// StructuredDose is the machine-readable form of a dose string
type StructuredDose struct {
	Amount  float64  `json:"amount"`
	Unit    string   `json:"unit"`
	PerKg   bool     `json:"per_kg,omitempty"`
	MaxDose *float64 `json:"max_dose,omitempty"`
}

// DosingRegimen describes dosing for one route and indication
type DosingRegimen struct {
	Route              string          `json:"route"`
	Dose               string          `json:"dose"`
	Frequency          string          `json:"frequency"`
	Duration           string          `json:"duration"`
	SpecialPopulations string          `json:"special_populations"`
	StructuredDose     *StructuredDose `json:"structured_dose,omitempty"`
}

// DrugMonograph represents drug reference content
type DrugMonograph struct {
	ContentType       ContentType     `json:"content_type"`
	Topic             string          `json:"topic"`
	DrugName          string          `json:"drug_name"`
	BrandNames        []string        `json:"brand_names"`
	DrugClass         string          `json:"drug_class"`
	Indications       []string        `json:"indications"`
	Contraindications []string        `json:"contraindications"`
	Dosing            []DosingRegimen `json:"dosing"`
	AdverseEffects    []string        `json:"adverse_effects"`
	DrugInteractions  []string        `json:"drug_interactions"`
	Monitoring        []string        `json:"monitoring"`
	PregnancyCategory string          `json:"pregnancy_category"`
	Notes             []string        `json:"notes"`
}

// WarningSigns represents red flags that require immediate attention
type WarningSigns struct {
	ContentType         ContentType `json:"content_type"`
	Topic               string      `json:"topic"`
	ConditionContext    string      `json:"condition_context"`
	Urgency             string      `json:"urgency"`
	SignsSymptoms       []string    `json:"signs_symptoms"`
	ImmediateActions    []string    `json:"immediate_actions"`
	ReferralRequired    bool        `json:"referral_required"`
	ReferralDestination string      `json:"referral_destination"`
	Timeframe           string      `json:"timeframe"`
	CrossReferences     []string    `json:"cross_references"`
}

// ClinicalFeatures groups features by diagnostic weight
type ClinicalFeatures struct {
	Required   []string `json:"required"`
	Suggestive []string `json:"suggestive"`
	Excluding  []string `json:"excluding"`
}

// DiagnosticCriteria represents case definitions
type DiagnosticCriteria struct {
	ContentType            ContentType      `json:"content_type"`
	Topic                  string           `json:"topic"`
	ConditionName          string           `json:"condition_name"`
	DefinitionSummary      string           `json:"definition_summary"`
	InclusionCriteria      []string         `json:"inclusion_criteria"`
	ExclusionCriteria      []string         `json:"exclusion_criteria"`
	ClinicalFeatures       ClinicalFeatures `json:"clinical_features"`
	DifferentialDiagnoses  []string         `json:"differential_diagnoses"`
	DiagnosticTests        []string         `json:"diagnostic_tests"`
	SeverityClassification []string         `json:"severity_classification"`
	CrossReferences        []string         `json:"cross_references"`
}

// RedFlag is a structured "call the doctor if" trigger
type RedFlag struct {
	Symptom   string `json:"symptom"`
	Action    string `json:"action"`
	Timeframe string `json:"timeframe"`
}

// PatientEducation represents patient and caregiver guidance
type PatientEducation struct {
	ContentType     ContentType `json:"content_type"`
	Topic           string      `json:"topic"`
	TargetAudience  string      `json:"target_audience"`
	EducationType   string      `json:"education_type"`
	KeyMessages     []string    `json:"key_messages"`
	Instructions    []string    `json:"instructions"`
	RedFlags        []RedFlag   `json:"red_flags"`
	WhenToSeekCare  []string    `json:"when_to_seek_care"`
	ThingsToAvoid   []string    `json:"things_to_avoid"`
	FollowUp        string      `json:"follow_up"`
	CrossReferences []string    `json:"cross_references"`
}

// GenericContent is the fallback for unstructured content
type GenericContent struct {
	ContentType ContentType `json:"content_type"`
	Topic       string      `json:"topic"`
	SectionType string      `json:"section_type"`
	Summary     string      `json:"summary"`
	KeyPoints   []string    `json:"key_points"`
	RawText     string      `json:"raw_text"`
}

func (*ClinicalPathway) Type() ContentType    { return ContentClinicalPathway }
func (*ReferenceTable) Type() ContentType     { return ContentReferenceTable }
func (*DrugMonograph) Type() ContentType      { return ContentDrugMonograph }
func (*WarningSigns) Type() ContentType       { return ContentWarningSigns }
func (*DiagnosticCriteria) Type() ContentType { return ContentDiagnosticCriteria }
func (*PatientEducation) Type() ContentType   { return ContentPatientEducation }
func (*GenericContent) Type() ContentType     { return ContentGeneric }

func (*ClinicalPathway) isContentRecord()    {}
func (*ReferenceTable) isContentRecord()     {}
func (*DrugMonograph) isContentRecord()      {}
func (*WarningSigns) isContentRecord()       {}
func (*DiagnosticCriteria) isContentRecord() {}
func (*PatientEducation) isContentRecord()   {}
func (*GenericContent) isContentRecord()     {}

// NewContentRecord returns an empty record for ct with field defaults applied.
// The second return value is false for unknown content types.
func NewContentRecord(ct ContentType) (ContentRecord, bool) {
	switch ct {
	case ContentClinicalPathway:
		return &ClinicalPathway{}, true
	case ContentReferenceTable:
		return &ReferenceTable{}, true
	case ContentDrugMonograph:
		return &DrugMonograph{}, true
	case ContentWarningSigns:
		return &WarningSigns{ReferralRequired: true}, true
	case ContentDiagnosticCriteria:
		return &DiagnosticCriteria{}, true
	case ContentPatientEducation:
		return &PatientEducation{}, true
	case ContentGeneric:
		return &GenericContent{}, true
	default:
		return nil, false
	}
}
