package model

import (
	"encoding/json"
	"time"
)

// AnonymousUsername is the username carried by the anonymous sentinel claims.
const AnonymousUsername = "anonymous"

// AuthClaims is the decoded identity and expiry of an access token. Exp is in unix seconds.
type AuthClaims struct {
	Username string `json:"username"`
	Exp      int64  `json:"exp"`
}

// Anonymous returns the sentinel claims for "no authenticated user".
func Anonymous() AuthClaims {
	return AuthClaims{Username: AnonymousUsername, Exp: 0}
}

type ReadingStatus string

const (
	StatusQueued   ReadingStatus = "queued"
	StatusStarted  ReadingStatus = "started"
	StatusFinished ReadingStatus = "finished"
)

type Reading struct {
	ID          int64         `json:"id,omitempty"`
	Status      ReadingStatus `json:"status,omitempty"`
	Link        string        `json:"link"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Favicon     string        `json:"favicon,omitempty"`
	Started     Timestamp     `json:"started,omitempty"`
	Finished    Timestamp     `json:"finished,omitempty"`
	Archived    Timestamp     `json:"archived,omitempty"`
	Created     Timestamp     `json:"created,omitempty"`
	Modified    Timestamp     `json:"modified,omitempty"`
}

// DeriveStatus computes the reading status from its started and finished timestamps.
func (r *Reading) DeriveStatus() ReadingStatus {
	switch {
	case !r.Finished.IsZero():
		return StatusFinished
	case !r.Started.IsZero():
		return StatusStarted
	default:
		return StatusQueued
	}
}

type Page struct {
	Readings      []*Reading `json:"readings"`
	PrevPageToken string     `json:"prev_page_token"`
	NextPageToken string     `json:"next_page_token"`
}

func (p *Page) PageTokens() (prev, next string) {
	return p.PrevPageToken, p.NextPageToken
}

type PageQuery struct {
	PageSize  uint32 `url:"page_size,omitempty" form:"page_size" json:"page_size,omitempty"`
	PageToken string `url:"page_token,omitempty" form:"page_token" json:"page_token,omitempty"`
}

// Reply is the generic success/error envelope returned by the API.
type Reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type StatusReply struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginReply struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

const (
	EventReadingCreated = "reading-created"
	EventReadingUpdated = "reading-updated"
)

// Update is a frame on the live updates socket. Body holds the Reading of an
// update event.
type Update struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

type Alert struct {
	ID       int64
	Message  string
	Severity Severity
	Header   string
	Created  time.Time
}

type User struct {
	ID       int64     `json:"id"`
	FullName string    `json:"full_name,omitempty"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Password string    `json:"password"`
	Created  time.Time `json:"created"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// Timestamp marshals the zero time as JSON null.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return t.Time.MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" || string(data) == `""` {
		t.Time = time.Time{}
		return nil
	}
	return json.Unmarshal(data, &t.Time)
}
