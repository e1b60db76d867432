package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"liyu1981.xyz/safety-inspection-service/pkg/auth"
	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/db"
	inspectHttp "liyu1981.xyz/safety-inspection-service/pkg/http"
	"liyu1981.xyz/safety-inspection-service/pkg/inspection"
)

func main() {
	var err error

	err = godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file, copy .env.example to .env first if in development")
	}

	var dbInstance *db.DB
	inspectDbType := os.Getenv(common.EnvKeyInspectDBType)
	switch inspectDbType {
	case "file":
		dbInstance = db.GetInstance(db.UseSqliteDialector())
	case "memory":
		dbInstance = db.GetInstance(db.UseMemorySqliteDialector())
	default:
		log.Fatal("Unknown INSPECT_DB_TYPE: " + inspectDbType)
	}

	jwtSecret := strings.TrimSpace(os.Getenv(common.EnvKeyInspectJwtSecret))
	if jwtSecret == "" {
		log.Fatal("INSPECT_JWT_SECRET not set in .env")
	}

	uploadDir := strings.TrimSpace(os.Getenv(common.EnvKeyInspectUploadDir))
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	store, err := inspection.NewDiskAttachmentStore(uploadDir)
	if err != nil {
		log.Fatalf("failed to init attachment store: %v", err)
	}

	httpHostPort := strings.TrimSpace(os.Getenv(common.EnvKeyInspectHttpHostPort))

	var defaultRate float64
	var defaultBurst int64

	if defaultRate, err = strconv.ParseFloat(os.Getenv(common.EnvKeyInspectDefaultRate), 64); err != nil {
		log.Fatal("Invalid INSPECT_DEFAULT_RATE, or not set in .env, should be a float64 value")
	}

	if defaultBurst, err = strconv.ParseInt(os.Getenv(common.EnvKeyInspectDefaultBurst), 10, 64); err != nil {
		log.Fatal("Invalid INSPECT_DEFAULT_BURST, or not set in .env, should be an int value")
	}

	logger := common.GetLogger()

	core := inspection.Core{
		Db:    *dbInstance,
		Store: store,
	}
	core.WithServices(inspection.ServiceOpts{
		User:         core.GetIUser(),
		Device:       core.GetIDevice(),
		Lifecycle:    core.GetILifecycle(),
		Notification: core.GetINotification(),
		Dashboard:    core.GetIDashboard(),
	})

	if httpHostPort == "" {
		// fallback to default http port
		httpHostPort = ":1080"
	}

	logger.Info("Starting HTTP server on port " + httpHostPort)
	rs := &inspectHttp.RestfulServer{
		Server:           gin.Default(),
		Core:             &core,
		Auth:             auth.NewService(jwtSecret),
		RateLimiterStore: inspection.NewRateLimiterStore(rate.Limit(defaultRate), int(defaultBurst)),
	}
	rs.Setup()

	logger.Info("http server created with:",
		zap.String("default_limiter",
			fmt.Sprintf("{\"default_rate\": %v, \"default_burst\": %v}", defaultRate, defaultBurst)))

	logger.Info("Starting HTTP server on: " + httpHostPort)
	if err := rs.Server.Run(httpHostPort); err != nil {
		log.Fatalf("http server failed to serve: %v", err)
	}
}
