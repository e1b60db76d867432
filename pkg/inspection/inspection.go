package inspection

import (
	"io"
	"time"

	"gorm.io/gorm"
	"liyu1981.xyz/safety-inspection-service/pkg/db"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

// Actor is the resolved identity of a request, produced by the auth
// gate before any core operation runs.
type Actor struct {
	ID   uint
	Role models.Role
}

type IUser interface {
	Register(name, email, password string, role models.Role) (*models.User, error)
	Authenticate(email, password string) (*models.User, error)
	GetUser(id uint) (*models.User, error)
	ListUsers() ([]models.User, error)
	ListManagers() ([]models.User, error)
	UpdateUser(id uint, name, email string) (*models.User, error)
	UpdateUserRole(id uint, role models.Role) (*models.User, error)
	DeleteUser(id uint) error
}

type DevicePatch struct {
	SerialNumber       *string
	Location           *string
	InstallationDate   *time.Time
	NextInspectionDate *time.Time
}

type IDevice interface {
	RegisterDevice(customerID uint, serialNumber string, deviceType models.DeviceType, location string, installationDate time.Time) (*models.Device, error)
	GetDevice(deviceID uint, requester Actor) (*models.Device, error)
	ListCustomerDevices(customerID uint) ([]models.Device, error)
	ListAllDevices() ([]models.Device, error)
	UpdateDevice(deviceID, customerID uint, patch DevicePatch) (*models.Device, error)
	DeleteDevice(deviceID, customerID uint) error
}

// UploadFile is an uploaded blob handed to Complete before it is
// persisted by the attachment store.
type UploadFile struct {
	OriginalName string
	ContentType  string
	Open         func() (io.ReadCloser, error)
}

type CompleteInput struct {
	Result       models.InspectionResult
	Comments     string
	ChecklistRaw string
	Photos       []UploadFile
	Documents    []UploadFile
}

type ManagerAnalytics struct {
	Completed int64 `json:"completed"`
	Assigned  int64 `json:"assigned"`
}

type ILifecycle interface {
	Assign(deviceID, inspectorID uint, scheduledDate time.Time) (*models.Inspection, error)
	Start(inspectionID, byUserID uint) (*models.Inspection, error)
	Complete(inspectionID, byUserID uint, input *CompleteInput) (*models.Inspection, error)
	Reassign(inspectionID, newInspectorID uint) (*models.Inspection, error)

	AssignedTo(inspectorID uint, activeOnly bool) ([]models.Inspection, error)
	Detail(inspectionID uint) (*models.Inspection, error)
	ListAll() ([]models.Inspection, error)
	ManagerAnalytics(inspectorID uint) (*ManagerAnalytics, error)
	LatestForDevice(deviceID uint) ([]models.Inspection, error)
	CompletedForCustomer(customerID uint) ([]models.Inspection, error)
}

type INotification interface {
	// Notify appends a notification through tx so it commits or rolls
	// back with the enclosing lifecycle transaction.
	Notify(tx *gorm.DB, n *models.Notification) error
	ListUnread(recipientID uint, limit int) ([]models.Notification, error)
	MarkRead(notificationID, recipientID uint) (*models.Notification, error)
	ClearAll(recipientID uint) error
}

type UserStats struct {
	TotalUsers     int64 `json:"totalUsers"`
	CustomerCount  int64 `json:"customerCount"`
	InspectorCount int64 `json:"inspectorCount"`
}

type DeviceStats struct {
	TotalDevices int64    `json:"totalDevices"`
	DeviceTypes  []string `json:"deviceTypes"`
}

type InspectionStats struct {
	TotalInspections     int64 `json:"totalInspections"`
	CompletedInspections int64 `json:"completedInspections"`
	PendingInspections   int64 `json:"pendingInspections"`
}

type DashboardStats struct {
	Users       UserStats       `json:"users"`
	Devices     DeviceStats     `json:"devices"`
	Inspections InspectionStats `json:"inspections"`
}

type RecentInspection struct {
	ID                 uint                    `json:"id"`
	Result             models.InspectionResult `json:"result"`
	CompletedDate      *time.Time              `json:"completedDate"`
	DeviceSerialNumber string                  `json:"deviceSerialNumber"`
	InspectorName      string                  `json:"inspectorName"`
}

type CustomerAnalytics struct {
	TotalDevices         int64 `json:"totalDevices"`
	TotalInspections     int64 `json:"totalInspections"`
	CompletedInspections int64 `json:"completedInspections"`
	PendingInspections   int64 `json:"pendingInspections"`
}

type IDashboard interface {
	Stats() (*DashboardStats, error)
	RecentCompleted() ([]RecentInspection, error)
	CustomerAnalytics(customerID uint) (*CustomerAnalytics, error)
}

type Core struct {
	Db    db.DB
	Store AttachmentStore

	User         IUser
	Device       IDevice
	Lifecycle    ILifecycle
	Notification INotification
	Dashboard    IDashboard
}

type ServiceOpts struct {
	User         IUser
	Device       IDevice
	Lifecycle    ILifecycle
	Notification INotification
	Dashboard    IDashboard
}

func (c *Core) WithServices(opts ServiceOpts) *Core {
	if opts.User != nil {
		c.User = opts.User
	}
	if opts.Device != nil {
		c.Device = opts.Device
	}
	if opts.Lifecycle != nil {
		c.Lifecycle = opts.Lifecycle
	}
	if opts.Notification != nil {
		c.Notification = opts.Notification
	}
	if opts.Dashboard != nil {
		c.Dashboard = opts.Dashboard
	}
	return c
}
