package engine

// Result is the structured outcome of executing one rule.
//
// A skipped rule (condition false) is a success with Data["skipped"] = true.
// A failed rule carries its messages in Errors; Success is false.
type Result struct {
	RuleID   string         `json:"ruleId"`
	RuleName string         `json:"ruleName"`
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
}

// Skipped reports whether the rule's condition gated execution off.
func (r Result) Skipped() bool {
	skipped, _ := r.Data["skipped"].(bool)
	return skipped
}

func skippedResult(id, name string) Result {
	return Result{
		RuleID:   id,
		RuleName: name,
		Success:  true,
		Data:     map[string]any{"skipped": true},
	}
}

func failedResult(id, name string, msgs ...string) Result {
	return Result{
		RuleID:   id,
		RuleName: name,
		Success:  false,
		Errors:   msgs,
	}
}
