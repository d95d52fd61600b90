package enums

// TaskCode identifies the kind of work an outbox task represents.
type TaskCode string

const (
	TaskFetchComments      TaskCode = "FETCH_COMMENTS"
	TaskFetchMessages      TaskCode = "FETCH_MESSAGES"
	TaskReplyMention       TaskCode = "REPLY_MENTION"
	TaskReplyMentionIgnore TaskCode = "REPLY_MENTION_IGNORED"
)

// MentionType tags the origin shape of a mention.
type MentionType string

const (
	MentionTypeComment MentionType = "COMMENT"
	MentionTypeMessage MentionType = "MESSAGE"
	MentionTypeReply   MentionType = "REPLY"
)

// MentionState tracks the triage lifecycle of a mention. An empty state
// means the mention is untouched.
type MentionState string

const (
	MentionStateAssignment    MentionState = "ASSIGNMENT"
	MentionStateReplyAttempt  MentionState = "REPLY_ATTEMPT"
	MentionStateReplied       MentionState = "REPLIED"
	MentionStateProviderError MentionState = "PROVIDER_ERROR"
)

// AuditEvent names an audit trail entry.
type AuditEvent string

const (
	AuditAssignment   AuditEvent = "ASSIGNMENT"
	AuditReplyAttempt AuditEvent = "REPLY_ATTEMPT"
)
