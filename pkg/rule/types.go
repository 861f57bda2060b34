package rule

// PullRule is a declarative binding between a source tag, an optional
// extraction regex, and an optional destination tag, as read from a
// rules file.
type PullRule struct {
	Src   string
	Regex string
	Dst   string
}

// RulesConfig is the parsed contents of a rules file.
type RulesConfig struct {
	PullRules []PullRule
}
