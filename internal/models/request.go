package models

import "time"

// UserType identifies who is asking for access.
type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeGuest   UserType = "guest"
	UserTypeGroup   UserType = "group"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeStudent, UserTypeGuest, UserTypeGroup:
		return true
	}
	return false
}

// RequestStatus tracks the single pending -> resolved transition.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsDecision reports whether s is a valid reviewer decision.
func (s RequestStatus) IsDecision() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// Requester holds contact details supplied with a request. Only Email is mandatory.
type Requester struct {
	Email      string `bson:"email" json:"email"`
	Name       string `bson:"name,omitempty" json:"name,omitempty"`
	Program    string `bson:"program,omitempty" json:"program,omitempty"`
	Department string `bson:"department,omitempty" json:"department,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	School     string `bson:"school,omitempty" json:"school,omitempty"`
	GroupID    string `bson:"group_id,omitempty" json:"group_id,omitempty"`
	LeaderName string `bson:"leader_name,omitempty" json:"leader_name,omitempty"`
}

// Request is the authoritative access request record kept in the document store.
type Request struct {
	ID                string        `bson:"_id" json:"id"`
	DocumentID        string        `bson:"document_id" json:"document_id"`
	UserType          UserType      `bson:"userType" json:"userType"`
	Requester         Requester     `bson:"requester" json:"requester"`
	ChaptersRequested []string      `bson:"chaptersRequested" json:"chaptersRequested"`
	Purpose           string        `bson:"purpose" json:"purpose"`
	Status            RequestStatus `bson:"status" json:"status"`
	DeanRemarks       string        `bson:"deanRemarks,omitempty" json:"deanRemarks,omitempty"`
	ApprovedChapters  []string      `bson:"approvedChapters,omitempty" json:"approvedChapters,omitempty"`
	ObjectKey         string        `bson:"objectKey,omitempty" json:"objectKey,omitempty"`
	ReviewedBy        string        `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	CreatedAt         time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// RequestDraft is a validated submission that has not been stored yet.
type RequestDraft struct {
	DocumentID        string
	UserType          UserType
	Requester         Requester
	ChaptersRequested []string
	Purpose           string
}

// RequestResolution carries the fields written by the pending -> resolved transition.
type RequestResolution struct {
	Status           RequestStatus
	DeanRemarks      string
	ApprovedChapters []string
	ObjectKey        string
	ReviewedBy       string
	UpdatedAt        time.Time
}

// RequestFilter constrains reviewer listing queries.
type RequestFilter struct {
	Status     RequestStatus
	DocumentID string
	Email      string
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
