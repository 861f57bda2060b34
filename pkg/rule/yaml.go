package rule

// yamlPullRule is the intermediate struct for parsing one entry of a
// rules file's pull_rules list.
type yamlPullRule struct {
	Src   string `yaml:"src"`
	Regex string `yaml:"regex,omitempty"`
	Dst   string `yaml:"dst,omitempty"`
}

// yamlRulesFile is the top-level structure of a rules file: a single
// pull_rules key holding a flat list of rule entries.
type yamlRulesFile struct {
	PullRules []yamlPullRule `yaml:"pull_rules"`
}

func convertYAMLPullRule(yr yamlPullRule) PullRule {
	return PullRule{
		Src:   yr.Src,
		Regex: yr.Regex,
		Dst:   yr.Dst,
	}
}
