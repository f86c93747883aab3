package loudness

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"musicforge/internal/services"
)

// Measurement is the loudnorm analysis of one source, consumed by exactly one
// corrective pass.
type Measurement struct {
	InputI       float64 `json:"input_i"`
	InputTP      float64 `json:"input_tp"`
	InputLRA     float64 `json:"input_lra"`
	InputThresh  float64 `json:"input_thresh"`
	TargetOffset float64 `json:"target_offset"`
}

var requiredFields = []string{"input_i", "input_tp", "input_lra", "input_thresh", "target_offset"}

// Parse extracts the report from captured stderr: the text between the first
// '{' and the last '}' must be a flat JSON object carrying every required
// field as a number or a numeric string.
func Parse(stderr string) (*Measurement, error) {
	start := strings.Index(stderr, "{")
	end := strings.LastIndex(stderr, "}")
	if start == -1 || end <= start {
		return nil, services.Wrap(services.ErrMeasurementParse, "loudness", "parse", "no JSON report in engine output", nil)
	}

	var blob map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stderr[start:end+1]), &blob); err != nil {
		return nil, services.Wrap(services.ErrMeasurementParse, "loudness", "parse", "malformed JSON report", err)
	}

	values := make(map[string]float64, len(requiredFields))
	for _, key := range requiredFields {
		raw, ok := blob[key]
		if !ok {
			return nil, services.Wrap(services.ErrMeasurementParse, "loudness", "parse", fmt.Sprintf("missing field %q", key), nil)
		}
		value, err := number(raw)
		if err != nil {
			return nil, services.Wrap(services.ErrMeasurementParse, "loudness", "parse", fmt.Sprintf("field %q", key), err)
		}
		values[key] = value
	}
	return &Measurement{
		InputI:       values["input_i"],
		InputTP:      values["input_tp"],
		InputLRA:     values["input_lra"],
		InputThresh:  values["input_thresh"],
		TargetOffset: values["target_offset"],
	}, nil
}

func number(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}
