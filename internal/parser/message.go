package parser

// Message is the normalized form of one raw mail message. It is created
// once by Parse and never mutated afterwards.
type Message struct {
	Sender  string
	Subject string
	// Date is the raw Date header as supplied by the transport. It is
	// deliberately not reparsed; reports and the database store it verbatim.
	Date            string
	Body            string
	AttachmentNames []string
}

// HasAttachments reports whether the message carried at least one named
// attachment part.
func (m *Message) HasAttachments() bool {
	return len(m.AttachmentNames) > 0
}
