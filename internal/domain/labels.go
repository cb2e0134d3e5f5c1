package domain

const (
	// DefaultRoleLabel is the role given to a newly observed entity.
	DefaultRoleLabel = "玩家"
	// DefaultUnknownLabel stands in for timestamps missing from hand-edited records.
	DefaultUnknownLabel = "未知"
	// DefaultEmptySentinel is the producer's literal for an empty online list.
	DefaultEmptySentinel = "当前没有在线玩家"
)

// Labels are the locale dependent strings used when records are created or repaired.
type Labels struct {
	Role    string
	Tags    []string
	Unknown string
}

// DefaultLabels returns the labels the status producer and the member page expect.
func DefaultLabels() Labels {
	return Labels{
		Role:    DefaultRoleLabel,
		Tags:    []string{DefaultRoleLabel},
		Unknown: DefaultUnknownLabel,
	}
}

// DefaultTags returns a fresh copy of the default tags.
func (l Labels) DefaultTags() []string {
	return append(make([]string, 0, len(l.Tags)), l.Tags...)
}
