package config

// GrantedTags evaluates the ruleset against a fetched permission list,
// returning every granted tag in the ruleset's configured order — the fixed
// vector order tag sets are indexed against, not the fetch order or any
// hash-map order.
func (r Ruleset) GrantedTags(fetched []Permission) []string {
	var tags []string
	for _, entry := range r {
		if anyGroupSatisfied(entry.Groups, fetched) {
			tags = append(tags, entry.Tag)
		}
	}
	return tags
}

func anyGroupSatisfied(groups []ConjunctiveGroup, fetched []Permission) bool {
	for _, group := range groups {
		if allPresent(group, fetched) {
			return true
		}
	}
	return false
}

func allPresent(group ConjunctiveGroup, fetched []Permission) bool {
	for _, need := range group {
		if !contains(fetched, need) {
			return false
		}
	}
	return true
}

func contains(fetched []Permission, need Permission) bool {
	for _, p := range fetched {
		if p == need {
			return true
		}
	}
	return false
}
