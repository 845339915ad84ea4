package model

// Article is a knowledge-base entry the AI can point a confused discussion to.
type Article struct {
	Key     string   `json:"key" yaml:"key"`
	Title   string   `json:"title" yaml:"title"`
	URL     string   `json:"url" yaml:"url"`
	Summary string   `json:"summary" yaml:"summary"`
	Topics  []string `json:"topics" yaml:"topics"`
}
