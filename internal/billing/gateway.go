package billing

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	initiatePath   = "/gwprocess/v4/api.php"
	validationPath = "/validator/api/validationserverAPI.php"

	defaultCurrency = "BDT"
)

// GatewayError carries the reason reported by the payment gateway.
type GatewayError struct {
	Op     string
	Reason string
}

func (e *GatewayError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway: %s failed", e.Op)
	}
	return fmt.Sprintf("gateway: %s failed: %s", e.Op, e.Reason)
}

// CheckoutSession is the result of initiating a payment.
type CheckoutSession struct {
	PaymentURL string
	SessionKey string
}

// ValidationResult is the gateway's verdict on a completed payment.
type ValidationResult struct {
	Status        string
	TransactionID string
	ValidationID  string
	Amount        float64
	Currency      string
	CardType      string
	BankTranID    string
	Reason        string
}

// Settled reports whether the gateway accepted the payment.
// Both VALID and VALIDATED indicate a settled transaction.
func (v ValidationResult) Settled() bool {
	return v.Status == "VALID" || v.Status == "VALIDATED"
}

// GatewayConfig carries SSLCommerz credentials and endpoints.
type GatewayConfig struct {
	StoreID     string
	StorePasswd string
	BaseURL     string
	CallbackURL string
	Timeout     time.Duration
}

// Gateway is an SSLCommerz API client.
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
}

// NewGateway constructs a Gateway with its own HTTP client.
func NewGateway(cfg GatewayConfig) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// CheckoutParams describes one payment session to create.
type CheckoutParams struct {
	Amount        float64
	TransactionID string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	// Passthrough fields echoed back on callbacks and IPN posts.
	PlanID PlanID
	Cycle  BillingCycle
	UserID string
}

// CreateSession registers a payment with the gateway and returns the
// hosted payment page URL.
func (g *Gateway) CreateSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error) {
	form := map[string]string{
		"store_id":         g.cfg.StoreID,
		"store_passwd":     g.cfg.StorePasswd,
		"total_amount":     strconv.FormatFloat(params.Amount, 'f', 2, 64),
		"currency":         defaultCurrency,
		"tran_id":          params.TransactionID,
		"success_url":      g.cfg.CallbackURL + "/billing/payment/callback",
		"fail_url":         g.cfg.CallbackURL + "/billing/payment/callback",
		"cancel_url":       g.cfg.CallbackURL + "/billing",
		"ipn_url":          g.cfg.CallbackURL + "/billing/ipn",
		"cus_name":         params.CustomerName,
		"cus_email":        params.CustomerEmail,
		"cus_phone":        fallbackString(params.CustomerPhone, "01700000000"),
		"cus_add1":         "Dhaka",
		"cus_city":         "Dhaka",
		"cus_country":      "Bangladesh",
		"shipping_method":  "NO",
		"product_name":     "Pulse Retention Subscription",
		"product_category": "Software",
		"product_profile":  "general",
		"value_a":          string(params.PlanID),
		"value_b":          string(params.Cycle),
		"value_c":          params.UserID,
	}
	form["sign_key"] = g.signKey(form)

	body := url.Values{}
	for key, value := range form {
		body.Set(key, value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+initiatePath, strings.NewReader(body.Encode()))
	if err != nil {
		return CheckoutSession{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return CheckoutSession{}, &GatewayError{Op: "initiate", Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CheckoutSession{}, &GatewayError{Op: "initiate", Reason: resp.Status}
	}

	data, err := parseGatewayResponse(resp)
	if err != nil {
		return CheckoutSession{}, &GatewayError{Op: "initiate", Reason: err.Error()}
	}

	paymentURL := fallbackString(data["GatewayPageURL"], data["redirectGatewayURL"])
	if data["status"] != "SUCCESS" && paymentURL == "" {
		return CheckoutSession{}, &GatewayError{Op: "initiate", Reason: fallbackString(data["failedreason"], "unknown error")}
	}

	return CheckoutSession{
		PaymentURL: paymentURL,
		SessionKey: fallbackString(data["sessionkey"], params.TransactionID),
	}, nil
}

// Validate asks the gateway to confirm a payment identified by its
// validation ID.
func (g *Gateway) Validate(ctx context.Context, valID string) (ValidationResult, error) {
	query := url.Values{}
	query.Set("val_id", valID)
	query.Set("store_id", g.cfg.StoreID)
	query.Set("store_passwd", g.cfg.StorePasswd)
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+validationPath+"?"+query.Encode(), nil)
	if err != nil {
		return ValidationResult{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return ValidationResult{}, &GatewayError{Op: "validate", Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ValidationResult{}, &GatewayError{Op: "validate", Reason: resp.Status}
	}

	var payload struct {
		Status     string `json:"status"`
		TranID     string `json:"tran_id"`
		ValID      string `json:"val_id"`
		Amount     string `json:"amount"`
		Currency   string `json:"currency"`
		CardType   string `json:"card_type"`
		BankTranID string `json:"bank_tran_id"`
		Reason     string `json:"errorReason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ValidationResult{}, &GatewayError{Op: "validate", Reason: err.Error()}
	}

	amount, _ := strconv.ParseFloat(payload.Amount, 64)
	return ValidationResult{
		Status:        payload.Status,
		TransactionID: payload.TranID,
		ValidationID:  fallbackString(payload.ValID, valID),
		Amount:        amount,
		Currency:      fallbackString(payload.Currency, defaultCurrency),
		CardType:      payload.CardType,
		BankTranID:    payload.BankTranID,
		Reason:        payload.Reason,
	}, nil
}

// VerifyIPNSignature checks the verify_sign field of an IPN post.
// The signature is the MD5 of all verify_key fields sorted alphabetically
// plus the MD5 of the store password.
func (g *Gateway) VerifyIPNSignature(params map[string]string) bool {
	verifySign := params["verify_sign"]
	verifyKey := params["verify_key"]
	if verifySign == "" || verifyKey == "" {
		return false
	}

	keys := strings.Split(verifyKey, ",")
	pairs := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		pairs = append(pairs, key+"="+params[key])
	}
	passHash := md5.Sum([]byte(g.cfg.StorePasswd))
	pairs = append(pairs, "store_passwd="+hex.EncodeToString(passHash[:]))
	sort.Strings(pairs)

	sum := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:]) == strings.ToLower(verifySign)
}

// signKey hashes the request payload the way the gateway expects:
// store password followed by all fields in alphabetical order.
func (g *Gateway) signKey(form map[string]string) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		if key == "sign_key" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(g.cfg.StorePasswd)
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(form[key])
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// parseGatewayResponse decodes JSON or the legacy line-based form format.
func parseGatewayResponse(resp *http.Response) (map[string]string, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, err
		}
		data := make(map[string]string, len(decoded))
		for key, value := range decoded {
			switch v := value.(type) {
			case string:
				data[key] = v
			case float64:
				data[key] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		return data, nil
	}

	data := make(map[string]string)
	for _, line := range strings.Split(string(raw), "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		data[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return data, nil
}

func fallbackString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
