package reporter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

const (
	sarifRulePrefix          = "pghealth/"
	sarifFingerprintKey      = "pghealth/findingHash"
	sarifFallbackLocationURI = "README.md"
	sarifSchemaURI           = "https://docs.oasis-open.org/sarif/sarif/v2.1.0/cs01/schemas/sarif-schema-2.1.0.json"
)

var semanticVersionPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool               `json:"tool"`
	Results           []sarifResult           `json:"results"`
	AutomationDetails *sarifAutomationDetails `json:"automationDetails,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifAutomationDetails struct {
	ID string `json:"id"`
}

type sarifDriver struct {
	Name            string       `json:"name"`
	Version         string       `json:"version,omitempty"`
	InformationURI  string       `json:"informationUri,omitempty"`
	ShortDesc       sarifMessage `json:"shortDescription"`
	FullDesc        sarifMessage `json:"fullDescription"`
	Rules           []sarifRule  `json:"rules"`
	DownloadURI     string       `json:"downloadUri,omitempty"`
	SemanticVersion string       `json:"semanticVersion,omitempty"`
}

type sarifRule struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ShortDesc     sarifMessage `json:"shortDescription"`
	FullDesc      sarifMessage `json:"fullDescription"`
	DefaultConfig sarifConfig  `json:"defaultConfiguration"`
	Help          sarifMessage `json:"help,omitempty"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           *int              `json:"ruleIndex,omitempty"`
	Level               string            `json:"level,omitempty"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation  `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

type sarifLogicalLocation struct {
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// WriteSARIF writes SARIF 2.1.0 output to report.sarif, or to out when no directory is set.
// Only warning and critical findings become results.
func WriteSARIF(report *models.Report, opts Options, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	rules, results := buildSARIFRulesAndResults(report)
	output := sarifLog{
		Version: "2.1.0",
		Schema:  sarifSchemaURI,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:            "pghealth",
						Version:         version,
						SemanticVersion: normalizeSemanticVersion(version),
						InformationURI:  "https://github.com/ppiankov/pghealth",
						DownloadURI:     "https://github.com/ppiankov/pghealth/releases/latest",
						ShortDesc:       sarifMessage{Text: "PostgreSQL health inspector"},
						FullDesc: sarifMessage{
							Text: "Runs health checks against PostgreSQL statistics views and reports warning and critical findings.",
						},
						Rules: rules,
					},
				},
				Results: results,
				AutomationDetails: &sarifAutomationDetails{
					ID: "pghealth/check",
				},
			},
		},
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	data = append(data, '\n')
	return emit(data, opts, "report.sarif", out)
}

func buildSARIFRulesAndResults(report *models.Report) ([]sarifRule, []sarifResult) {
	rules := make([]sarifRule, 0)
	results := make([]sarifResult, 0)
	ruleIndex := map[string]int{}

	for _, f := range report.Findings {
		if !f.Severity.IsIssue() {
			continue
		}
		ruleID := sarifRulePrefix + f.Name
		idx, ok := ruleIndex[ruleID]
		if !ok {
			idx = len(rules)
			ruleIndex[ruleID] = idx
			rules = append(rules, sarifRule{
				ID:            ruleID,
				Name:          f.Name,
				ShortDesc:     sarifMessage{Text: f.Description},
				FullDesc:      sarifMessage{Text: f.Description},
				DefaultConfig: sarifConfig{Level: "warning"},
				Help:          sarifMessage{Text: f.Suggestion},
			})
		}

		level := mapSeverityToSARIFLevel(f.Severity)
		results = append(results, sarifResult{
			RuleID:    ruleID,
			RuleIndex: ruleIndexPtr(idx),
			Level:     level,
			Message:   sarifMessage{Text: f.Message},
			Locations: databaseLocation(report.Database, f.Name),
			PartialFingerprints: map[string]string{
				sarifFingerprintKey: hashFinding(report.Database, f.Name, f.Severity.String()),
			},
			Properties: findingProperties(f),
		})
	}

	return rules, results
}

func findingProperties(f models.Finding) map[string]any {
	props := map[string]any{
		"severity": f.Severity.String(),
	}
	keys := make([]string, 0, len(f.Details))
	for k := range f.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		props[k] = f.Details[k]
	}
	if f.Suggestion != "" {
		props["suggestion"] = f.Suggestion
	}
	return props
}

func databaseLocation(database, check string) []sarifLocation {
	db := strings.TrimSpace(database)
	if db == "" {
		db = "unknown_database"
	}

	return []sarifLocation{
		{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: sarifFallbackLocationURI},
				Region: &sarifRegion{
					StartLine: 1,
				},
			},
			LogicalLocations: []sarifLogicalLocation{
				{
					Name:               check,
					FullyQualifiedName: db + "." + check,
					Kind:               "check",
				},
			},
		},
	}
}

func mapSeverityToSARIFLevel(s severity.Severity) string {
	switch s {
	case severity.Critical:
		return "error"
	case severity.Warning:
		return "warning"
	default:
		return "note"
	}
}

func normalizeSemanticVersion(version string) string {
	normalized := strings.TrimSpace(strings.TrimPrefix(version, "v"))
	if semanticVersionPattern.MatchString(normalized) {
		return normalized
	}
	return ""
}

func hashFinding(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func ruleIndexPtr(index int) *int {
	value := index
	return &value
}
