// ABOUTME: ExtractTaskRefs scans a template string for `tasks.<id>.output.*` references
// ABOUTME: used to infer implicit step dependencies when building the execution graph

package template

// ExtractTaskRefs returns the distinct task ids referenced via
// `tasks.<id>.output...` placeholders in s. Malformed placeholders are
// silently skipped here; graph construction re-parses and surfaces any
// real error once it knows the full set of valid task ids.
func ExtractTaskRefs(s string) []string {
	var ids []string
	seen := make(map[string]bool)

	for _, match := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		p, err := ParsePath(match[1])
		if err != nil || p.Root != RootTasks {
			continue
		}
		if !seen[p.TaskID] {
			seen[p.TaskID] = true
			ids = append(ids, p.TaskID)
		}
	}
	return ids
}

// ExtractAllTaskRefs unions ExtractTaskRefs over every string in a slice,
// used to scan both a step's input map values and its control-flow
// expressions (condition.if, switch.on) in one pass.
func ExtractAllTaskRefs(strs []string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range strs {
		for _, id := range ExtractTaskRefs(s) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
