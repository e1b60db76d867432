package inspection

import (
	"bytes"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

func TestAssignInspection(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	scheduled := time.Now().Add(24 * time.Hour)
	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, scheduled)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusScheduled, insp.Status)
	assert.Equal(t, device.ID, insp.DeviceID)
	assert.Equal(t, manager.ID, insp.InspectorID)

	// the device flips to scheduled in the same transaction
	reloaded, err := core.Device.GetDevice(device.ID, Actor{ID: customer.ID, Role: models.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusInspectionScheduled, reloaded.Status)

	// and the inspector is notified
	notifications, err := core.Notification.ListUnread(manager.ID, 20)
	require.NoError(t, err)
	require.NotEmpty(t, notifications)
	assert.Equal(t, models.NotificationTypeInspectionAssigned, notifications[0].Type)
	assert.Contains(t, notifications[0].Message, device.SerialNumber)
}

func TestAssignInspection_EdgeCases(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	device := newTestDevice(t, core, customer.ID)

	// a customer cannot be the inspector
	_, err := core.Lifecycle.Assign(device.ID, customer.ID, time.Now())
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
	assert.Equal(t, "Invalid manager selected", MessageOf(err))

	manager := newTestUser(t, core, models.RoleInspectionManager)
	_, err = core.Lifecycle.Assign(9999999, manager.ID, time.Now())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStartInspection(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	other := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, time.Now())
	require.NoError(t, err)

	// only the assigned inspector may start
	_, err = core.Lifecycle.Start(insp.ID, other.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	started, err := core.Lifecycle.Start(insp.ID, manager.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusInProgress, started.Status)

	// starting twice refuses
	_, err = core.Lifecycle.Start(insp.ID, manager.ID)
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Equal(t, "Inspection cannot be started", MessageOf(err))
}

func TestCompleteInspection(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, time.Now())
	require.NoError(t, err)
	_, err = core.Lifecycle.Start(insp.ID, manager.ID)
	require.NoError(t, err)

	completed, err := core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{
		Result:       models.InspectionResultApproved,
		Comments:     "all good",
		ChecklistRaw: `[{"id":1,"name":"pressure gauge","checked":true}]`,
		Photos:       []UploadFile{textUpload("front.jpg", "front view")},
		Documents:    []UploadFile{textUpload("report.pdf", "report body")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusCompleted, completed.Status)
	assert.Equal(t, models.InspectionResultApproved, completed.Result)
	require.NotNil(t, completed.CompletedDate)
	require.Len(t, completed.Checklist, 1)
	assert.Equal(t, "pressure gauge", completed.Checklist[0].Name)
	assert.Len(t, completed.Photos(), 1)
	assert.Len(t, completed.Documents(), 1)

	// the stored blob is readable back through the store
	r, err := core.Store.Open(completed.Photos()[0].Filename)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "front view", string(content))

	// device mutated in the same transaction
	reloaded, err := core.Device.GetDevice(device.ID, Actor{ID: customer.ID, Role: models.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusApproved, reloaded.Status)
	require.NotNil(t, reloaded.LastInspectionID)
	assert.Equal(t, insp.ID, *reloaded.LastInspectionID)
	assert.NotNil(t, reloaded.LastInspectionDate)
	payload := decodeQRPayload(t, reloaded.QRPayload)
	assert.Equal(t, float64(insp.ID), payload["lastInspectionId"])

	// owner notified with the result
	notifications, err := core.Notification.ListUnread(customer.ID, 20)
	require.NoError(t, err)
	require.NotEmpty(t, notifications)
	assert.Equal(t, models.NotificationTypeInspectionCompleted, notifications[0].Type)
	assert.Contains(t, notifications[0].Message, "Result: Approved")

	// completing again refuses: the first committer won
	_, err = core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{
		Result: models.InspectionResultRejected,
	})
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Equal(t, "Inspection cannot be completed", MessageOf(err))

	// the losing attempt left no trace on the inspection
	detail, err := core.Lifecycle.Detail(insp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionResultApproved, detail.Result)
}

func TestCompleteInspection_EdgeCases(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	other := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, time.Now())
	require.NoError(t, err)

	// not started yet
	_, err = core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{Result: models.InspectionResultApproved})
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = core.Lifecycle.Start(insp.ID, manager.ID)
	require.NoError(t, err)

	// wrong inspector
	_, err = core.Lifecycle.Complete(insp.ID, other.ID, &CompleteInput{Result: models.InspectionResultApproved})
	assert.Equal(t, KindForbidden, KindOf(err))

	// unknown result value
	_, err = core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{Result: models.InspectionResult("Shrug")})
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	// attachment caps
	photos := make([]UploadFile, MaxPhotoCount+1)
	for i := range photos {
		photos[i] = textUpload(fmt.Sprintf("p%d.jpg", i), "x")
	}
	_, err = core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{
		Result: models.InspectionResultApproved,
		Photos: photos,
	})
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
	assert.Contains(t, MessageOf(err), "Too many photos")

	// after all those refusals the inspection is still completable
	completed, err := core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{Result: models.InspectionResultApproved})
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusCompleted, completed.Status)
}

func TestCompleteInspection_MalformedChecklist(t *testing.T) {
	var buf bytes.Buffer
	common.SetTestCaptureLogger(&buf, zapcore.WarnLevel)

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, time.Now())
	require.NoError(t, err)
	_, err = core.Lifecycle.Start(insp.ID, manager.ID)
	require.NoError(t, err)

	// malformed checklist degrades to empty instead of failing
	completed, err := core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{
		Result:       models.InspectionResultMaintenanceNeeded,
		ChecklistRaw: "{not json",
	})
	require.NoError(t, err)
	assert.Empty(t, completed.Checklist)

	logOutput := buf.String()
	logs := ParseLogs(&buf)
	assert.NotEmpty(t, logs)
	assert.Contains(t, logOutput, "Failed to parse checklist")
}

func TestCompleteInspection_FailedResultMutatesDevice(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, time.Now())
	require.NoError(t, err)
	_, err = core.Lifecycle.Start(insp.ID, manager.ID)
	require.NoError(t, err)

	_, err = core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{
		Result: models.InspectionResultMaintenanceNeeded,
	})
	require.NoError(t, err)

	reloaded, err := core.Device.GetDevice(device.ID, Actor{ID: customer.ID, Role: models.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusMaintenanceNeeded, reloaded.Status)
}

func TestReassignInspection(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	successor := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, time.Now())
	require.NoError(t, err)

	// handing it to a customer is refused
	_, err = core.Lifecycle.Reassign(insp.ID, customer.ID)
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
	assert.Equal(t, "Invalid inspector", MessageOf(err))

	reassigned, err := core.Lifecycle.Reassign(insp.ID, successor.ID)
	require.NoError(t, err)
	assert.Equal(t, successor.ID, reassigned.InspectorID)

	notifications, err := core.Notification.ListUnread(successor.ID, 20)
	require.NoError(t, err)
	require.NotEmpty(t, notifications)
	assert.Equal(t, models.NotificationTypeInspectionAssigned, notifications[0].Type)

	// once the new inspector starts, no further reassignment
	_, err = core.Lifecycle.Start(insp.ID, successor.ID)
	require.NoError(t, err)
	_, err = core.Lifecycle.Reassign(insp.ID, manager.ID)
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Equal(t, "Inspection cannot be reassigned", MessageOf(err))
}

func TestLifecycleQueries(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	deviceA := newTestDevice(t, core, customer.ID)
	deviceB := newTestDevice(t, core, customer.ID)

	first, err := core.Lifecycle.Assign(deviceA.ID, manager.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	second, err := core.Lifecycle.Assign(deviceB.ID, manager.ID, time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	_, err = core.Lifecycle.Start(first.ID, manager.ID)
	require.NoError(t, err)
	_, err = core.Lifecycle.Complete(first.ID, manager.ID, &CompleteInput{Result: models.InspectionResultApproved})
	require.NoError(t, err)

	active, err := core.Lifecycle.AssignedTo(manager.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	require.NotNil(t, active[0].Device)

	all, err := core.Lifecycle.AssignedTo(manager.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	analytics, err := core.Lifecycle.ManagerAnalytics(manager.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), analytics.Completed)
	assert.Equal(t, int64(1), analytics.Assigned)

	latest, err := core.Lifecycle.LatestForDevice(deviceA.ID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, first.ID, latest[0].ID)

	completed, err := core.Lifecycle.CompletedForCustomer(customer.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)
	require.NotNil(t, completed[0].Device)

	detail, err := core.Lifecycle.Detail(first.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Device)
	require.NotNil(t, detail.Inspector)
	assert.Equal(t, manager.ID, detail.Inspector.ID)
}

func TestParseChecklist(t *testing.T) {
	common.SetTestLoggerNop()

	assert.Empty(t, parseChecklist(""))
	assert.Empty(t, parseChecklist("definitely not json"))

	parsed := parseChecklist(`[{"id":2,"name":"battery","checked":false}]`)
	require.Len(t, parsed, 1)
	assert.Equal(t, "battery", parsed[0].Name)
	assert.False(t, parsed[0].Checked)
}
