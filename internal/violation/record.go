package violation

// Record is the flat serialization shared by every downstream reporting
// adapter. The mapping from Violation is total: every field is written
// explicitly, no optional lookups.
type Record struct {
	ID          string  `json:"id"`
	RuleID      string  `json:"rule_id"`
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	FilePath    string  `json:"file_path"`
	LineNumber  int     `json:"line_number"`
	Column      int     `json:"column"`
	Weight      float64 `json:"weight"`
}

// ToRecord flattens the violation for report adapters.
func (v *Violation) ToRecord() Record {
	ruleID := v.Kind.String()
	if len(v.SafetyRules) > 0 {
		ruleID = v.SafetyRules[0].String()
	}
	return Record{
		ID:          v.ID,
		RuleID:      ruleID,
		Type:        v.Kind.String(),
		Severity:    v.Severity.String(),
		Description: v.Description,
		FilePath:    v.FilePath,
		LineNumber:  v.Line,
		Column:      v.Column,
		Weight:      v.Weight,
	}
}

// SARIFLevel maps a severity onto the SARIF 2.1.0 result level.
func (s Severity) SARIFLevel() string {
	switch s {
	case Critical, High:
		return "error"
	case Medium:
		return "warning"
	default:
		return "note"
	}
}
