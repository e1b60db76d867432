package inspection

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/safety-inspection-service/pkg/db"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
	_ "liyu1981.xyz/safety-inspection-service/pkg/testing"
)

func GetTestCoreWithMemorySqliteDialector(t *testing.T) *Core {
	dialector := db.UseMemorySqliteDialector()
	dbInstance := db.GetInstance(dialector) // ensure migrations

	store, err := NewDiskAttachmentStore(t.TempDir())
	require.NoError(t, err)

	core := &Core{
		Db:    *dbInstance,
		Store: store,
	}
	core.WithServices(ServiceOpts{
		User:         core.GetIUser(),
		Device:       core.GetIDevice(),
		Lifecycle:    core.GetILifecycle(),
		Notification: core.GetINotification(),
		Dashboard:    core.GetIDashboard(),
	})
	return core
}

// the singleton test database is shared, so every fixture gets unique
// emails and serial numbers
func newTestUser(t *testing.T, core *Core, role models.Role) *models.User {
	user, err := core.User.Register("test "+string(role), uuid.NewString()+"@example.com", "test-password", role)
	require.NoError(t, err)
	return user
}

func newTestDevice(t *testing.T, core *Core, customerID uint) *models.Device {
	device, err := core.Device.RegisterDevice(
		customerID, uuid.NewString(), models.DeviceTypeFireExtinguisher, "basement", time.Now())
	require.NoError(t, err)
	return device
}

func textUpload(name, content string) UploadFile {
	return UploadFile{
		OriginalName: name,
		ContentType:  "text/plain",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}
