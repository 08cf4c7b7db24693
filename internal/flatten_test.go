package internal

import "testing"

// TestFlattenNestedAndArray tests that a nested map with an array is flattened correctly.
func TestFlattenNestedAndArray(t *testing.T) {
	input := map[string]interface{}{
		"workflow_run": map[string]interface{}{
			"conclusion": "failure",
			"pull_requests": []interface{}{
				map[string]interface{}{"number": 1.0},
				map[string]interface{}{"number": 2.0},
			},
		},
	}

	flat := Flatten(input)
	if flat["workflow_run.conclusion"] != "failure" {
		t.Fatalf("expected workflow_run.conclusion to be failure")
	}
	if _, ok := flat["workflow_run.pull_requests[]"]; !ok {
		t.Fatalf("expected workflow_run.pull_requests[] to exist")
	}
	if flat["workflow_run.pull_requests[0].number"] != 1.0 {
		t.Fatalf("expected pull_requests[0].number to be 1")
	}
	if flat["workflow_run.pull_requests[1].number"] != 2.0 {
		t.Fatalf("expected pull_requests[1].number to be 2")
	}
}

// TestFlattenScalarTopLevel tests that scalar top-level values pass through.
func TestFlattenScalarTopLevel(t *testing.T) {
	flat := Flatten(map[string]interface{}{"action": "opened"})
	if flat["action"] != "opened" {
		t.Fatalf("expected action to be opened, got %v", flat["action"])
	}
}
