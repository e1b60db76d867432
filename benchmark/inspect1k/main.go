package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var maxCustomers int = 100
var devicesPerCustomer int = 10
var maxManagers int = 20
var httpHostPort string = "127.0.0.1:1080"

var rnd *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))

type session struct {
	Token  string
	UserID uint
}

func main() {
	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", httpHostPort))
	if err != nil {
		log.Fatal("Failed to connect to HTTP server:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatal("HTTP server not available")
	}

	fmt.Printf("http server verified\n")

	admin := register("admin")
	managers := make([]session, maxManagers)
	for i := 0; i < maxManagers; i++ {
		managers[i] = register("inspection_manager")
	}
	customers := make([]session, maxCustomers)
	for i := 0; i < maxCustomers; i++ {
		customers[i] = register("customer")
	}
	fmt.Printf("registered 1 admin, %v managers, %v customers\n", maxManagers, maxCustomers)

	var startTime time.Time
	var usedTime time.Duration

	totalDevices := maxCustomers * devicesPerCustomer
	deviceIDs := make([]uint, totalDevices)

	startTime = time.Now()
	wg := sync.WaitGroup{}
	for i := 0; i < maxCustomers; i++ {
		i := i
		wg.Add(1)
		go func() {
			for j := 0; j < devicesPerCustomer; j++ {
				deviceIDs[i*devicesPerCustomer+j] = registerDevice(customers[i])
			}
			fmt.Printf("\rregistered devices for customer %v", i)
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\rregistered %v devices: used time=%v seconds, throughput=%v action/second\n",
		totalDevices, usedTime.Seconds(), float64(totalDevices)/usedTime.Seconds(),
	)

	inspectionIDs := make([]uint, totalDevices)
	inspectionManager := make([]session, totalDevices)

	startTime = time.Now()
	wg = sync.WaitGroup{}
	for i := 0; i < totalDevices; i++ {
		i := i
		wg.Add(1)
		go func() {
			manager := managers[rnd.Intn(maxManagers)]
			inspectionIDs[i] = assignInspection(admin, deviceIDs[i], manager.UserID)
			inspectionManager[i] = manager
			fmt.Printf("\rassigned inspection for device %v", deviceIDs[i])
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\rassigned %v inspections: used time=%v seconds, throughput=%v action/second\n",
		totalDevices, usedTime.Seconds(), float64(totalDevices)/usedTime.Seconds(),
	)

	startTime = time.Now()
	wg = sync.WaitGroup{}
	for i := 0; i < totalDevices; i++ {
		i := i
		wg.Add(1)
		go func() {
			manager := inspectionManager[i]
			startInspection(manager, inspectionIDs[i])
			completeInspection(manager, inspectionIDs[i])
			fmt.Printf("\rcompleted inspection %v", inspectionIDs[i])
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\n\rran %v inspections start+complete: used time=%v seconds, throughput=%v action/second\n",
		totalDevices, usedTime.Seconds(), float64(totalDevices*2)/usedTime.Seconds(),
	)
}

func postJSON(path, token string, payload any) map[string]any {
	jsonData, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s%s", httpHostPort, path), bytes.NewBuffer(jsonData))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		panic(fmt.Sprintf("POST %s: status %v", path, resp.StatusCode))
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	return body
}

func postForm(path, token string, form url.Values) {
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s%s", httpHostPort, path), strings.NewReader(form.Encode()))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		panic(fmt.Sprintf("POST %s: status %v", path, resp.StatusCode))
	}
}

func register(role string) session {
	body := postJSON("/api/auth/register", "", map[string]string{
		"name":     fmt.Sprintf("bench %s %s", role, uuid.NewString()[:8]),
		"email":    uuid.NewString() + "@bench.local",
		"password": "benchmark-pass",
		"role":     role,
	})
	user := body["user"].(map[string]any)
	return session{
		Token:  body["token"].(string),
		UserID: uint(user["id"].(float64)),
	}
}

func registerDevice(customer session) uint {
	deviceType := "Fire Extinguisher"
	if rnd.Int31n(100000)%2 == 0 {
		deviceType = "AED"
	}
	body := postJSON("/api/devices", customer.Token, map[string]string{
		"serialNumber":     uuid.NewString(),
		"type":             deviceType,
		"location":         fmt.Sprintf("floor %v", rnd.Intn(20)),
		"installationDate": time.Now().Format(time.RFC3339),
	})
	return uint(body["id"].(float64))
}

func assignInspection(admin session, deviceID, managerID uint) uint {
	body := postJSON("/api/inspections/assign", admin.Token, map[string]any{
		"deviceId":      deviceID,
		"managerId":     managerID,
		"scheduledDate": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	insp := body["inspection"].(map[string]any)
	return uint(insp["id"].(float64))
}

func startInspection(manager session, inspectionID uint) {
	postJSON(fmt.Sprintf("/api/manager/start-inspection/%v", inspectionID), manager.Token, map[string]any{})
}

func completeInspection(manager session, inspectionID uint) {
	result := "Approved"
	if rnd.Int31n(100000)%10 == 0 {
		result = "Maintenance Needed"
	}
	form := url.Values{}
	form.Set("result", result)
	form.Set("comments", "benchmark run")
	form.Set("checklist", `[{"id":1,"name":"pressure gauge","checked":true}]`)
	postForm(fmt.Sprintf("/api/manager/complete-inspection/%v", inspectionID), manager.Token, form)
}
