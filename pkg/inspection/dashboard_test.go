package inspection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

// the test database is shared between tests, so dashboard assertions
// work on deltas rather than absolute counts
func TestDashboardStats(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)

	before, err := core.Dashboard.Stats()
	require.NoError(t, err)

	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, time.Now())
	require.NoError(t, err)
	_, err = core.Lifecycle.Start(insp.ID, manager.ID)
	require.NoError(t, err)
	_, err = core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{Result: models.InspectionResultApproved})
	require.NoError(t, err)

	after, err := core.Dashboard.Stats()
	require.NoError(t, err)

	assert.Equal(t, before.Users.TotalUsers+2, after.Users.TotalUsers)
	assert.Equal(t, before.Users.CustomerCount+1, after.Users.CustomerCount)
	assert.Equal(t, before.Users.InspectorCount+1, after.Users.InspectorCount)
	assert.Equal(t, before.Devices.TotalDevices+1, after.Devices.TotalDevices)
	assert.Contains(t, after.Devices.DeviceTypes, string(models.DeviceTypeFireExtinguisher))
	assert.Equal(t, before.Inspections.TotalInspections+1, after.Inspections.TotalInspections)
	assert.Equal(t, before.Inspections.CompletedInspections+1, after.Inspections.CompletedInspections)
	assert.Equal(t,
		after.Inspections.TotalInspections-after.Inspections.CompletedInspections,
		after.Inspections.PendingInspections)
}

func TestRecentCompleted(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	device := newTestDevice(t, core, customer.ID)

	insp, err := core.Lifecycle.Assign(device.ID, manager.ID, time.Now())
	require.NoError(t, err)
	_, err = core.Lifecycle.Start(insp.ID, manager.ID)
	require.NoError(t, err)
	_, err = core.Lifecycle.Complete(insp.ID, manager.ID, &CompleteInput{Result: models.InspectionResultRejected})
	require.NoError(t, err)

	recent, err := core.Dashboard.RecentCompleted()
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.LessOrEqual(t, len(recent), 10)

	// the fresh completion sorts first
	assert.Equal(t, insp.ID, recent[0].ID)
	assert.Equal(t, models.InspectionResultRejected, recent[0].Result)
	assert.Equal(t, device.SerialNumber, recent[0].DeviceSerialNumber)
	assert.Equal(t, manager.Name, recent[0].InspectorName)
}

func TestCustomerAnalytics_Empty(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)

	// a fresh account reads zeroed analytics, not an error
	analytics, err := core.Dashboard.CustomerAnalytics(customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), analytics.TotalDevices)
	assert.Equal(t, int64(0), analytics.TotalInspections)
	assert.Equal(t, int64(0), analytics.PendingInspections)
}

func TestCustomerAnalytics(t *testing.T) {
	common.SetTestLoggerNop()

	core := GetTestCoreWithMemorySqliteDialector(t)
	customer := newTestUser(t, core, models.RoleCustomer)
	manager := newTestUser(t, core, models.RoleInspectionManager)
	deviceA := newTestDevice(t, core, customer.ID)
	deviceB := newTestDevice(t, core, customer.ID)

	first, err := core.Lifecycle.Assign(deviceA.ID, manager.ID, time.Now())
	require.NoError(t, err)
	_, err = core.Lifecycle.Assign(deviceB.ID, manager.ID, time.Now())
	require.NoError(t, err)

	_, err = core.Lifecycle.Start(first.ID, manager.ID)
	require.NoError(t, err)
	_, err = core.Lifecycle.Complete(first.ID, manager.ID, &CompleteInput{Result: models.InspectionResultApproved})
	require.NoError(t, err)

	analytics, err := core.Dashboard.CustomerAnalytics(customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), analytics.TotalDevices)
	assert.Equal(t, int64(2), analytics.TotalInspections)
	assert.Equal(t, int64(1), analytics.CompletedInspections)
	assert.Equal(t, int64(1), analytics.PendingInspections)
}
