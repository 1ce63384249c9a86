package models

import (
	"time"
)

const DateLayout = "2006-01-02"

type Department string

const (
	DeptPaediatric       Department = "paediatric"
	DeptOrthopedic       Department = "orthopedic"
	DeptObstetrics       Department = "obstetrics"
	DeptConsultants      Department = "consultants"
	DeptGeneralSurgery   Department = "general-surgery"
	DeptInternalMedicine Department = "internal-medicine"
	DeptEmergency        Department = "emergency"
)

var Departments = []Department{
	DeptPaediatric, DeptOrthopedic, DeptObstetrics, DeptConsultants,
	DeptGeneralSurgery, DeptInternalMedicine, DeptEmergency,
}

func (d Department) Valid() bool {
	for _, v := range Departments {
		if v == d {
			return true
		}
	}
	return false
}

// TimeSlots is the fixed booking grid, in display order.
var TimeSlots = []string{"09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00"}

func ValidTimeSlot(label string) bool {
	for _, s := range TimeSlots {
		if s == label {
			return true
		}
	}
	return false
}

type Gender string

const (
	GenderMale           Gender = "male"
	GenderFemale         Gender = "female"
	GenderOther          Gender = "other"
	GenderPreferNotToSay Gender = "prefer-not-to-say"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

var AppointmentStatuses = []AppointmentStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active statuses occupy their slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal reports whether s admits no further status change.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether s -> next is an allowed edge.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

type Appointment struct {
	ID          string            `json:"id"`
	FirstName   string            `json:"firstName"`
	LastName    string            `json:"lastName"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`
	Gender      Gender            `json:"gender"`
	DateOfBirth *time.Time        `json:"dateOfBirth,omitempty"`
	Address     string            `json:"address,omitempty"`
	Insurance   string            `json:"insurance,omitempty"`
	Doctor      string            `json:"doctor,omitempty"`
	Department  Department        `json:"department"`
	Date        time.Time         `json:"appointmentDate"`
	Time        string            `json:"appointmentTime"`
	Reason      string            `json:"reason"`
	Status      AppointmentStatus `json:"status"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func (a *Appointment) PatientName() string {
	return a.FirstName + " " + a.LastName
}

// AppointmentDraft is a validated booking request that has not been stored yet.
type AppointmentDraft struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Gender      Gender
	DateOfBirth *time.Time
	Address     string
	Insurance   string
	Doctor      string
	Department  Department
	Date        time.Time
	Time        string
	Reason      string
}

type AppointmentFilter struct {
	Status     AppointmentStatus
	Department Department
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     string
	SortBy     string
	SortDesc   bool
}

// AppointmentUpdate carries an optional status change and optional notes.
type AppointmentUpdate struct {
	Status *AppointmentStatus
	Notes  *string
}

type BookingReceipt struct {
	AppointmentID string     `json:"appointmentId"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	Department    Department `json:"department"`
}

type PeakHour struct {
	Time  string `json:"time"`
	Count int    `json:"count"`
}

type DashboardStats struct {
	TotalAppointments   int           `json:"totalAppointments"`
	PendingAppointments int           `json:"pendingAppointments"`
	TodayAppointments   int           `json:"todayAppointments"`
	RecentAppointments  []Appointment `json:"recentAppointments"`
	PeakHours           []PeakHour    `json:"peakHours"`
}
