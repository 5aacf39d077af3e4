package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	httpmiddleware "github.com/wolfman30/medspa-booking-flow/internal/http/middleware"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run ./scripts/catalog-put <record_id> <record.json> [source]")
		fmt.Println("Example: go run ./scripts/catalog-put svc_42 botox.json catalog")
		os.Exit(1)
	}

	recordID := os.Args[1]
	raw, err := os.ReadFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error reading record: %v\n", err)
		os.Exit(1)
	}
	source := ""
	if len(os.Args) > 3 {
		source = os.Args[3]
	}

	secret := os.Getenv("CATALOG_EDITOR_SECRET")
	if secret == "" {
		fmt.Println("Error: CATALOG_EDITOR_SECRET environment variable not set")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	claims := httpmiddleware.CatalogClaims{
		Scope: httpmiddleware.CatalogWriteScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "catalog-put",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	body, err := json.Marshal(map[string]any{
		"source": source,
		"record": json.RawMessage(raw),
	})
	if err != nil {
		fmt.Printf("Error encoding request: %v\n", err)
		os.Exit(1)
	}

	url := fmt.Sprintf("%s/catalog/records/%s", apiURL, recordID)
	fmt.Printf("Storing record %s at %s...\n", recordID, url)

	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+tokenString)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		fmt.Printf("Error: status %d: %s\n", resp.StatusCode, msg)
		os.Exit(1)
	}
	fmt.Println("Record stored")
}
