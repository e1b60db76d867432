package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleCustomer          Role = "customer"
	RoleInspectionManager Role = "inspection_manager"
	RoleAdmin             Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleInspectionManager, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `json:"name"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `gorm:"type:varchar(20);check:role IN ('customer','inspection_manager','admin')" json:"role"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DeviceType string

const (
	DeviceTypeFireExtinguisher DeviceType = "Fire Extinguisher"
	DeviceTypeAED              DeviceType = "AED"
)

func (t DeviceType) Valid() bool {
	return t == DeviceTypeFireExtinguisher || t == DeviceTypeAED
}

type DeviceStatus string

const (
	DeviceStatusApproved            DeviceStatus = "Approved"
	DeviceStatusRejected            DeviceStatus = "Rejected"
	DeviceStatusMaintenanceNeeded   DeviceStatus = "Maintenance Needed"
	DeviceStatusInspectionScheduled DeviceStatus = "Inspection Scheduled"
)

type Device struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	SerialNumber     string     `gorm:"uniqueIndex" json:"serialNumber"`
	Type             DeviceType `gorm:"type:varchar(20);check:type IN ('Fire Extinguisher','AED')" json:"type"`
	Location         string     `json:"location"`
	InstallationDate time.Time  `json:"installationDate"`
	CustomerID       uint       `gorm:"index" json:"customer"`
	Customer         *User      `gorm:"foreignKey:CustomerID" json:"customerInfo,omitempty"`

	// QRPayload holds the compact encoding handed to a QR renderer.
	// Regenerated whenever SerialNumber or LastInspectionID changes.
	QRPayload string `json:"qrCode"`

	Status             DeviceStatus `gorm:"type:varchar(30);default:'Approved'" json:"status"`
	LastInspectionDate *time.Time   `json:"lastInspectionDate,omitempty"`
	NextInspectionDate *time.Time   `json:"nextInspectionDate,omitempty"`
	LastInspectionID   *uint        `json:"lastInspectionId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type InspectionStatus string

const (
	InspectionStatusScheduled  InspectionStatus = "Scheduled"
	InspectionStatusInProgress InspectionStatus = "In Progress"
	InspectionStatusCompleted  InspectionStatus = "Completed"
	// Cancelled is a declared terminal state; no operation drives an
	// inspection into it yet.
	InspectionStatusCancelled InspectionStatus = "Cancelled"
)

type InspectionResult string

const (
	InspectionResultApproved          InspectionResult = "Approved"
	InspectionResultRejected          InspectionResult = "Rejected"
	InspectionResultMaintenanceNeeded InspectionResult = "Maintenance Needed"
)

func (r InspectionResult) Valid() bool {
	switch r {
	case InspectionResultApproved, InspectionResultRejected, InspectionResultMaintenanceNeeded:
		return true
	}
	return false
}

type ChecklistItem struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

// Checklist is stored as a JSON text column.
type Checklist []ChecklistItem

func (c Checklist) Value() (driver.Value, error) {
	if c == nil {
		c = Checklist{}
	}
	return json.Marshal(c)
}

func (c *Checklist) Scan(value interface{}) error {
	if value == nil {
		*c = Checklist{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	}
	return fmt.Errorf("unsupported checklist column type %T", value)
}

type AttachmentKind string

const (
	AttachmentKindPhoto     AttachmentKind = "photo"
	AttachmentKindDocument  AttachmentKind = "document"
	AttachmentKindSignature AttachmentKind = "signature"
)

type Attachment struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	InspectionID uint           `gorm:"index" json:"-"`
	Kind         AttachmentKind `gorm:"type:varchar(10);check:kind IN ('photo','document','signature')" json:"-"`
	Filename     string         `json:"filename"`
	ContentType  string         `json:"contentType"`
	Size         int64          `json:"size"`
	OriginalName string         `json:"originalName,omitempty"`
}

type Inspection struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	DeviceID    uint    `gorm:"index" json:"device"`
	Device      *Device `gorm:"foreignKey:DeviceID" json:"deviceInfo,omitempty"`
	InspectorID uint    `gorm:"index" json:"inspector"`
	Inspector   *User   `gorm:"foreignKey:InspectorID" json:"inspectorInfo,omitempty"`

	ScheduledDate time.Time  `json:"scheduledDate"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`

	Status InspectionStatus `gorm:"type:varchar(20);default:'Scheduled';check:status IN ('Scheduled','In Progress','Completed','Cancelled')" json:"status"`
	Result InspectionResult `gorm:"type:varchar(20)" json:"result,omitempty"`

	Comments  string    `json:"comments"`
	Checklist Checklist `gorm:"type:text" json:"checklist"`

	Attachments []Attachment `gorm:"foreignKey:InspectionID" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Photos filters the loaded attachments down to photo entries.
func (i *Inspection) Photos() []Attachment {
	return i.attachmentsOfKind(AttachmentKindPhoto)
}

// Documents filters the loaded attachments down to document entries.
func (i *Inspection) Documents() []Attachment {
	return i.attachmentsOfKind(AttachmentKindDocument)
}

func (i *Inspection) attachmentsOfKind(kind AttachmentKind) []Attachment {
	found := []Attachment{}
	for _, a := range i.Attachments {
		if a.Kind == kind {
			found = append(found, a)
		}
	}
	return found
}

type NotificationType string

const (
	NotificationTypeInspectionAssigned  NotificationType = "inspection_assigned"
	NotificationTypeInspectionCompleted NotificationType = "inspection_completed"
	NotificationTypeDeviceStatusChange  NotificationType = "device_status_change"
)

type Notification struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	RecipientID  uint             `gorm:"index" json:"recipient"`
	Message      string           `json:"message"`
	Type         NotificationType `gorm:"type:varchar(30);check:type IN ('inspection_assigned','inspection_completed','device_status_change')" json:"type"`
	InspectionID *uint            `json:"relatedInspection,omitempty"`
	DeviceID     *uint            `json:"relatedDevice,omitempty"`
	Read         bool             `gorm:"default:false" json:"read"`
	CreatedAt    time.Time        `json:"createdAt"`
}
