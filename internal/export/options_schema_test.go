package export

import "testing"

func TestValidateOptionsAccepts(t *testing.T) {
	cases := []map[string]any{
		nil,
		{},
		{"table": "revenue"},
		{"limit_rows": 50},
		{"limit_rows": float64(50)}, // JSON-decoded number
		{"include_summaries": false},
		{"chart_kind": "bar"},
		{"chart_kind": "line"},
		{"precision": 0},
		{"table": "revenue", "limit_rows": 10, "precision": 4},
	}
	for _, options := range cases {
		if err := ValidateOptions(options); err != nil {
			t.Errorf("options %v should validate: %v", options, err)
		}
	}
}

func TestValidateOptionsRejects(t *testing.T) {
	cases := []map[string]any{
		{"unknown_key": true},
		{"table": ""},
		{"table": 7},
		{"limit_rows": 0},
		{"limit_rows": -3},
		{"limit_rows": 2.5}, // not an integer
		{"include_summaries": "yes"},
		{"chart_kind": "scatter"},
		{"precision": -1},
		{"precision": 11},
	}
	for _, options := range cases {
		if err := ValidateOptions(options); err == nil {
			t.Errorf("options %v should be rejected", options)
		}
	}
}
