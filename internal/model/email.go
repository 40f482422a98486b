package model

// Attachment is a file carried by an EmailJob.
type Attachment struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// EmailJob is a send-email request placed on the delivery queue. Jobs are
// never mutated once queued; the attempt counter lives in the queue.
type EmailJob struct {
	ID          string         `json:"id"`
	To          []string       `json:"to"`
	Subject     string         `json:"subject"`
	Template    string         `json:"template"`
	Context     map[string]any `json:"context,omitempty"`
	Cc          []string       `json:"cc,omitempty"`
	Bcc         []string       `json:"bcc,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// Template names shipped with the mail package.
const (
	TemplateValidateCode    = "validate.code"
	TemplateRegisterSuccess = "register.success"
)
