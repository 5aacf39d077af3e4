package paymentchoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

const defaultCartTimeout = 10 * time.Second

// CustomTextField is a titled free-text option attached to a cart line.
type CustomTextField struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// LineItem is one product added to the cart.
type LineItem struct {
	ProductID        string            `json:"productId"`
	Quantity         int               `json:"quantity"`
	CustomTextFields []CustomTextField `json:"customTextFields,omitempty"`
}

// Cart adds products to the visitor's cart.
type Cart interface {
	AddProducts(ctx context.Context, cartID string, items []LineItem) error
}

// CartAddError is a rejected or failed cart add.
type CartAddError struct {
	StatusCode int
	Err        error
}

func (e *CartAddError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("paymentchoice: cart add failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("paymentchoice: cart add failed: %v", e.Err)
}

func (e *CartAddError) Unwrap() error { return e.Err }

// HTTPCart posts line items to the store's cart API.
type HTTPCart struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
}

// NewHTTPCart constructs a REST cart client.
func NewHTTPCart(baseURL string, timeout time.Duration, logger *logging.Logger) *HTTPCart {
	if strings.TrimSpace(baseURL) == "" {
		panic("paymentchoice: cart base URL required")
	}
	if timeout <= 0 {
		timeout = defaultCartTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPCart{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// AddProducts adds items to the cart identified by cartID.
func (c *HTTPCart) AddProducts(ctx context.Context, cartID string, items []LineItem) error {
	payload, err := json.Marshal(struct {
		CartID    string     `json:"cartId"`
		LineItems []LineItem `json:"lineItems"`
	}{CartID: cartID, LineItems: items})
	if err != nil {
		return fmt.Errorf("paymentchoice: marshal cart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cart/line-items", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("paymentchoice: build cart request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CartAddError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		msg := strings.TrimSpace(string(body))
		c.logger.Warn("cart API non-2xx response", "status", resp.StatusCode, "body", msg)
		return &CartAddError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
	}
	return nil
}
