package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedPayload is returned when an authenticated body is not a JSON object.
var ErrMalformedPayload = errors.New("webhook: malformed payload")

// Source names where in the event body correlation fields are looked up.
type Source string

const (
	SourceData    Source = "data"    // {"data": {...}}
	SourcePayload Source = "payload" // {"payload": {...}}
	SourceRoot    Source = "root"    // fields on the event object itself
)

// ExtractionOrder is the fixed lookup order. The first source whose metadata
// names an owner supplies every correlation field of the event.
var ExtractionOrder = []Source{SourcePayload, SourceData, SourceRoot}

// TransactionIDFields are the accepted transaction id names, in priority order.
var TransactionIDFields = []string{"payment_id", "paymentId", "transaction_id", "transactionId", "id"}

var (
	providerPaymentIDFields = []string{"payment_id", "paymentId"}
	amountFields            = []string{"total_amount", "amount"}
)

// Envelope is an authenticated, parsed event body.
type Envelope struct {
	Type string
	root map[string]interface{}
}

// PaymentEvent holds the correlation data extracted from an Envelope.
type PaymentEvent struct {
	EventType             string
	ExternalTransactionID string
	OwnerID               string
	ProductCode           string
	CloudCode             string
	Amount                int64
	HasAmount             bool
	Currency              string
	ProviderPaymentID     string
}

// ParseEnvelope decodes body. It must only be called on verified bytes.
func ParseEnvelope(body []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root map[string]interface{}
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedPayload)
	}

	env := &Envelope{root: root}
	env.Type, _ = root["type"].(string)
	return env, nil
}

func (s Source) container(root map[string]interface{}) map[string]interface{} {
	if s == SourceRoot {
		return root
	}
	obj, _ := root[string(s)].(map[string]interface{})
	return obj
}

// Extract builds a PaymentEvent from a single source object so owner,
// product and transaction id never come from different parts of the body.
// The event is filled in even when an error is returned; the error reports
// an amount that is present but not an integer.
func (e *Envelope) Extract() (PaymentEvent, error) {
	src, c := e.primary()
	meta, _ := c["metadata"].(map[string]interface{})

	ev := PaymentEvent{
		EventType:             e.Type,
		OwnerID:               stringValue(meta["profileId"]),
		ProductCode:           stringValue(meta["product"]),
		CloudCode:             stringValue(meta["cloudCode"]),
		ExternalTransactionID: firstString(c, TransactionIDFields),
		ProviderPaymentID:     firstString(c, providerPaymentIDFields),
		Currency:              firstString(c, []string{"currency"}),
	}

	amount, ok, err := firstInt(c, amountFields)
	if err != nil {
		return ev, fmt.Errorf("%w: %s.%v", ErrMalformedPayload, src, err)
	}
	ev.Amount, ev.HasAmount = amount, ok
	return ev, nil
}

// primary returns the first source in ExtractionOrder whose metadata carries
// a profileId, or else the first source that is an object at all.
func (e *Envelope) primary() (Source, map[string]interface{}) {
	var fallback Source
	var fallbackObj map[string]interface{}
	for _, src := range ExtractionOrder {
		c := src.container(e.root)
		if c == nil {
			continue
		}
		meta, _ := c["metadata"].(map[string]interface{})
		if stringValue(meta["profileId"]) != "" {
			return src, c
		}
		if fallbackObj == nil {
			fallback, fallbackObj = src, c
		}
	}
	return fallback, fallbackObj
}

func firstString(c map[string]interface{}, fields []string) string {
	for _, f := range fields {
		if v := stringValue(c[f]); v != "" {
			return v
		}
	}
	return ""
}

// firstInt returns the first listed field holding a value. A value that is
// present but not an integer is an error rather than a miss.
func firstInt(c map[string]interface{}, fields []string) (int64, bool, error) {
	for _, f := range fields {
		v, present := c[f]
		if !present || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		n, ok := intValue(v)
		if !ok {
			return 0, false, fmt.Errorf("%s: not an integer amount", f)
		}
		return n, true, nil
	}
	return 0, false, nil
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func intValue(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
