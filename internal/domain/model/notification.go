package model

// Notification is a message handed to the notification gateway.
type Notification struct {
	To             string
	Subject        string
	HTMLBody       string
	AttachmentPath string
}
