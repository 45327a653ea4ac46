// internal/domain/models/topics.go
package models

import "strings"

// TopicOther is the sentinel topic that resolves to a caller-supplied custom topic.
const TopicOther = "Other"

// Topics is the fixed list offered when creating or searching groups.
var Topics = []string{
	"HTML/CSS", "JavaScript", "Python", "React", "Django", "Node.js", "Rust",
	"Digital Marketing", "Web3", "Cryptocurrency", "Cybersecurity", "NFTs", "SQL",
	"Artificial Intelligence", "Web Design", "Programming Fundamentals", TopicOther,
}

// MatchTopic returns the canonical topic equal to q ignoring case, if any.
func MatchTopic(q string) (string, bool) {
	q = strings.TrimSpace(q)
	for _, t := range Topics {
		if strings.EqualFold(t, q) {
			return t, true
		}
	}
	return "", false
}

// ResolveTopic returns the topic to store: the custom topic when "Other" is picked.
func ResolveTopic(topic, custom string) string {
	if topic == TopicOther {
		return strings.TrimSpace(custom)
	}
	return strings.TrimSpace(topic)
}

// Commitment keys accepted from clients.
const (
	CommitmentPartTime = "part-time"
	CommitmentFullTime = "full-time"
)

// CommitmentLabels maps commitment keys to the label persisted on group records.
var CommitmentLabels = map[string]string{
	CommitmentPartTime: "Part-time (6 hours/day, 6 days/week)",
	CommitmentFullTime: "Full-time (12 hours/day, 6 days/week)",
}

// CommitmentLabel returns the stored label for a commitment key, or "" if unknown.
func CommitmentLabel(key string) string {
	return CommitmentLabels[strings.ToLower(strings.TrimSpace(key))]
}

// NormalizeCommitment accepts either a commitment key or a stored label and
// returns the stored label.
func NormalizeCommitment(v string) (string, bool) {
	if l := CommitmentLabel(v); l != "" {
		return l, true
	}
	v = strings.TrimSpace(v)
	for _, l := range CommitmentLabels {
		if l == v {
			return l, true
		}
	}
	return "", false
}
