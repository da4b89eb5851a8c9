package graph

import (
	"context"
	"time"
)

// Message is the outbound email in the shape the Graph sendMail API expects.
type Message struct {
	Subject      string      `json:"subject"`
	Body         Body        `json:"body"`
	ToRecipients []Recipient `json:"toRecipients"`
	ReplyTo      []Recipient `json:"replyTo,omitempty"`
}

// Body carries the email content and its content type ("HTML" or "Text").
type Body struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Recipient wraps a single email address the way Graph nests it.
type Recipient struct {
	EmailAddress Address `json:"emailAddress"`
}

// Address is the innermost address object of a Recipient.
type Address struct {
	Address string `json:"address"`
}

// NewRecipient builds a Recipient for a bare address string.
func NewRecipient(addr string) Recipient {
	return Recipient{EmailAddress: Address{Address: addr}}
}

// sendMailRequest is the top level Graph sendMail payload.
type sendMailRequest struct {
	Message         Message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

// tokenResponse is the relevant portion of the identity platform's token
// endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// RawResponse mirrors the low level provider response callers inspect for
// diagnostics.
type RawResponse struct {
	Code      int
	Body      string
	Timestamp time.Time
}

// Provider is the contract exposed by the mail provider implementation.
type Provider interface {
	Send(ctx context.Context, msg *Message) (*RawResponse, error)
}
