package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Submission outcomes returned by the gateway sidecar.
const (
	SubmissionAccepted = "accepted"
	SubmissionRejected = "rejected"
)

// SubmissionPayload is sent to the fiscal gateway sidecar, which owns the
// authority wire protocol (signing, envelopes, transport).
type SubmissionPayload struct {
	DocumentID     string  `json:"document_id"`
	DocumentType   string  `json:"document_type"`
	Series         string  `json:"series"`
	Number         int64   `json:"number"`
	IssuerTaxID    string  `json:"issuer_tax_id"`
	BuyerDocType   string  `json:"buyer_doc_type"`
	BuyerDocNumber string  `json:"buyer_doc_number,omitempty"`
	BuyerName      string  `json:"buyer_name,omitempty"`
	Currency       string  `json:"currency"`
	TaxableAmount  float64 `json:"taxable_amount"`
	ExemptAmount   float64 `json:"exempt_amount"`
	TaxAmount      float64 `json:"tax_amount"`
	TotalAmount    float64 `json:"total_amount"`
	// CorrectsSeries/CorrectsNumber identify the corrected document for credit notes
	CorrectsSeries string `json:"corrects_series,omitempty"`
	CorrectsNumber int64  `json:"corrects_number,omitempty"`
}

// SubmissionResponse is the gateway's verdict for one document.
type SubmissionResponse struct {
	Status       string `json:"status"` // "accepted" | "rejected"
	AuthorityRef string `json:"authority_ref"`
	Reason       string `json:"reason,omitempty"`
}

// FiscalGateway is an HTTP client for the fiscal authority sidecar. A
// transport error means "unreachable" — the caller schedules a retry; it is
// never treated as a rejection.
type FiscalGateway struct {
	baseURL    string
	httpClient *http.Client
}

func NewFiscalGateway(baseURL string) *FiscalGateway {
	return &FiscalGateway{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit posts one document to the gateway and returns the authority verdict.
func (g *FiscalGateway) Submit(ctx context.Context, payload SubmissionPayload) (*SubmissionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fiscal gateway: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/documents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fiscal gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fiscal gateway: unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fiscal gateway: returned %d", resp.StatusCode)
	}

	var result SubmissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("fiscal gateway: decode response: %w", err)
	}
	return &result, nil
}
