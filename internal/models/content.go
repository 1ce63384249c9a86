package models

import (
	"time"
)

type ContactSubject string

const (
	SubjectGeneralInquiry ContactSubject = "general-inquiry"
	SubjectAppointment    ContactSubject = "appointment"
	SubjectBilling        ContactSubject = "billing"
	SubjectMedicalRecords ContactSubject = "medical-records"
	SubjectFeedback       ContactSubject = "feedback"
	SubjectOther          ContactSubject = "other"
)

type ContactStatus string

const (
	ContactNew        ContactStatus = "new"
	ContactInProgress ContactStatus = "in-progress"
	ContactResolved   ContactStatus = "resolved"
	ContactClosed     ContactStatus = "closed"
)

type ContactPriority string

const (
	PriorityLow    ContactPriority = "low"
	PriorityMedium ContactPriority = "medium"
	PriorityHigh   ContactPriority = "high"
	PriorityUrgent ContactPriority = "urgent"
)

type Contact struct {
	ID          string          `json:"id"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone,omitempty"`
	Subject     ContactSubject  `json:"subject"`
	Message     string          `json:"message"`
	Status      ContactStatus   `json:"status"`
	Priority    ContactPriority `json:"priority"`
	AssignedTo  *string         `json:"assignedTo,omitempty"`
	Response    string          `json:"response,omitempty"`
	RespondedAt *time.Time      `json:"respondedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ContactUpdate holds the admin-editable fields; nil means unchanged.
type ContactUpdate struct {
	Status     *ContactStatus
	Priority   *ContactPriority
	AssignedTo *string
	Response   *string
}

type Review struct {
	ID          string    `json:"id"`
	PatientName string    `json:"patientName"`
	Email       string    `json:"email"`
	Rating      *int      `json:"rating,omitempty"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"createdAt"`
}
