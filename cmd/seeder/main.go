package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-compliance/internal/dateutil"
	"github.com/ukydev/fleet-compliance/internal/models"
)

// The seeder registers a demo user and posts randomized compliance documents
// at the API, spreading validity windows over the past year so the dashboard
// shows a mix of active, expiring and expired records.

var documentTypes = []models.DocumentType{
	models.DocumentInsurance,
	models.DocumentPUC,
	models.DocumentNOC,
	models.DocumentCgPermit,
	models.DocumentTemporaryPermit,
}

var providers = []string{
	"United India Insurance",
	"National Insurance",
	"RTO Raipur",
	"RTO Bilaspur",
	"Transport Department",
}

type seedDocument struct {
	Type          models.DocumentType `json:"document_type"`
	VehicleNumber string              `json:"vehicle_number"`
	Provider      string              `json:"provider"`
	ReferenceNo   string              `json:"reference_no"`
	ValidFrom     string              `json:"valid_from,omitempty"`
	TotalFee      float64             `json:"total_fee"`
	Paid          float64             `json:"paid"`
	FeeBreakup    []models.FeeItem    `json:"fee_breakup,omitempty"`
	Notes         string              `json:"notes,omitempty"`
}

func randomVehicleNumber(rng *rand.Rand) string {
	letters := "ABCDEFGHJKLMNPRSTUVWXYZ"
	return fmt.Sprintf("CG%02d%c%c%04d",
		rng.Intn(30)+1,
		letters[rng.Intn(len(letters))],
		letters[rng.Intn(len(letters))],
		rng.Intn(10000))
}

func randomDocument(rng *rand.Rand, now time.Time) seedDocument {
	docType := documentTypes[rng.Intn(len(documentTypes))]
	totalFee := float64((rng.Intn(40) + 10) * 100)
	doc := seedDocument{
		Type:          docType,
		VehicleNumber: randomVehicleNumber(rng),
		Provider:      providers[rng.Intn(len(providers))],
		ReferenceNo:   fmt.Sprintf("REF%06d", rng.Intn(1000000)),
		TotalFee:      totalFee,
	}
	// Leave roughly half the records partially paid.
	if rng.Intn(2) == 1 {
		doc.Paid = float64(rng.Intn(int(totalFee) + 1))
	}
	if docType == models.DocumentNOC {
		doc.FeeBreakup = []models.FeeItem{
			{Name: "clearance fee", Amount: totalFee * 0.8},
			{Name: "service charge", Amount: totalFee * 0.2},
		}
		return doc
	}
	// Spread windows back up to a year so some documents come out expired.
	validFrom := dateutil.Midnight(now).AddDate(0, 0, -rng.Intn(365))
	doc.ValidFrom = dateutil.Format(validFrom)
	return doc
}

func login(apiURL, username, password string) (string, error) {
	creds := map[string]string{"username": username, "password": password}
	payload, _ := json.Marshal(creds)

	register := map[string]string{
		"username": username, "password": password,
		"email": username + "@example.com", "role": "operator",
		"first_name": "Seed", "last_name": "User",
	}
	registerPayload, _ := json.Marshal(register)
	resp, err := http.Post(apiURL+"/api/auth/register", "application/json", bytes.NewBuffer(registerPayload))
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	resp, err = http.Post(apiURL+"/api/auth/login", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}
	return loginResp.Token, nil
}

func postDocument(apiURL, token string, doc seedDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, apiURL+"/api/documents", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create failed with status %d", resp.StatusCode)
	}
	return nil
}

func main() {
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	username := os.Getenv("SEED_USERNAME")
	if username == "" {
		username = "seeder"
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "seeder-password"
	}
	count := 25
	if v := os.Getenv("SEED_COUNT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			count = parsed
		}
	}

	token, err := login(apiURL, username, password)
	if err != nil {
		log.WithError(err).Fatal("Failed to log in")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()
	created := 0
	for i := 0; i < count; i++ {
		doc := randomDocument(rng, now)
		if err := postDocument(apiURL, token, doc); err != nil {
			log.WithError(err).WithField("vehicle", doc.VehicleNumber).Error("Failed to create document")
			continue
		}
		created++
	}
	log.WithFields(log.Fields{"requested": count, "created": created}).Info("Seeding complete")
}
