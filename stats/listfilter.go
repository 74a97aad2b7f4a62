package stats

type ListFilter struct {
	Department *string

	// MinRuleScore filters by the rule score stored during import
	MinRuleScore *int
}

func (filter ListFilter) SetDepartment(v string) ListFilter {
	filter.Department = &v
	return filter
}

func (filter ListFilter) SetMinRuleScore(v int) ListFilter {
	filter.MinRuleScore = &v
	return filter
}
