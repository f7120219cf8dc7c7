package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Alias1177/Cardeon/models"
)

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

var (
	resultFields = []string{"riskCategory", "probability", "shapExplanations", "summary"}
	entryFields  = []string{"feature", "impact", "description"}
)

// extractJSON returns the JSON document in content, unwrapping a markdown
// code fence when the text is not JSON on its own.
func extractJSON(content string) []byte {
	content = strings.TrimSpace(content)
	if json.Valid([]byte(content)) {
		return []byte(content)
	}
	if matches := jsonBlockRegex.FindStringSubmatch(content); len(matches) >= 2 {
		return []byte(strings.TrimSpace(matches[1]))
	}
	return []byte(content)
}

// ParseResult strictly decodes raw service output into a PredictionResult.
// Every field and every explanation key must be present with the right type
// and the decoded result must satisfy PredictionResult.Validate.
func ParseResult(raw string) (*models.PredictionResult, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(extractJSON(raw), &top); err != nil {
		return nil, &ContractViolation{Reason: "response is not a JSON object", Err: err}
	}

	for _, name := range resultFields {
		if v, ok := top[name]; !ok || isNull(v) {
			return nil, &ContractViolation{Reason: fmt.Sprintf("missing field %q", name)}
		}
	}

	var (
		category string
		result   models.PredictionResult
		entries  []map[string]json.RawMessage
	)
	if err := json.Unmarshal(top["riskCategory"], &category); err != nil {
		return nil, &ContractViolation{Reason: "riskCategory must be a string", Err: err}
	}
	result.RiskCategory = models.RiskCategory(category)

	if err := json.Unmarshal(top["probability"], &result.Probability); err != nil {
		return nil, &ContractViolation{Reason: "probability must be a number", Err: err}
	}
	if err := json.Unmarshal(top["summary"], &result.Summary); err != nil {
		return nil, &ContractViolation{Reason: "summary must be a string", Err: err}
	}
	if err := json.Unmarshal(top["shapExplanations"], &entries); err != nil {
		return nil, &ContractViolation{Reason: "shapExplanations must be an array of objects", Err: err}
	}

	result.ShapExplanations = make([]models.FeatureContribution, 0, len(entries))
	for i, entry := range entries {
		fc, err := parseEntry(entry)
		if err != nil {
			return nil, &ContractViolation{Reason: fmt.Sprintf("shapExplanations[%d]", i), Err: err}
		}
		result.ShapExplanations = append(result.ShapExplanations, fc)
	}

	if err := result.Validate(); err != nil {
		return nil, &ContractViolation{Reason: "result out of range", Err: err}
	}

	result.Provenance = models.ProvenanceModel
	return &result, nil
}

func parseEntry(entry map[string]json.RawMessage) (models.FeatureContribution, error) {
	var fc models.FeatureContribution
	for _, name := range entryFields {
		if v, ok := entry[name]; !ok || isNull(v) {
			return fc, fmt.Errorf("missing key %q", name)
		}
	}
	if err := json.Unmarshal(entry["feature"], &fc.Feature); err != nil {
		return fc, fmt.Errorf("feature must be a string: %w", err)
	}
	if err := json.Unmarshal(entry["impact"], &fc.Impact); err != nil {
		return fc, fmt.Errorf("impact must be a number: %w", err)
	}
	if err := json.Unmarshal(entry["description"], &fc.Description); err != nil {
		return fc, fmt.Errorf("description must be a string: %w", err)
	}
	return fc, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
