package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyInspectDBType string = "INSPECT_DB_TYPE"
	EnvKeyInspectDbPath string = "INSPECT_DB_PATH"

	EnvKeyInspectHttpHostPort string = "INSPECT_HTTP_HOST_PORT"

	EnvKeyInspectJwtSecret string = "INSPECT_JWT_SECRET"
	EnvKeyInspectUploadDir string = "INSPECT_UPLOAD_DIR"

	EnvKeyInspectDefaultRate  string = "INSPECT_DEFAULT_RATE"
	EnvKeyInspectDefaultBurst string = "INSPECT_DEFAULT_BURST"

	LoggerNameInspectionCore string = "inspection_core"
	LoggerNameRestfulServer  string = "restful_server"
	LoggerNameAuth           string = "auth"

	LoggerFieldCategory string = "category"

	LoggerCategoryUser         string = "user"
	LoggerCategoryDevice       string = "device"
	LoggerCategoryLifecycle    string = "lifecycle"
	LoggerCategoryNotification string = "notification"
	LoggerCategoryDashboard    string = "dashboard"
	LoggerCategoryAttachment   string = "attachment"
)
