package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ReservationBalance is what the reservation service reports for one booking:
// the outstanding amount and the buyer identity on file.
type ReservationBalance struct {
	ReservationRef string  `json:"reservation_ref"`
	Outstanding    float64 `json:"outstanding"`
	Currency       string  `json:"currency"`
	BuyerDocType   string  `json:"buyer_doc_type"`
	BuyerDocNumber string  `json:"buyer_doc_number"`
	BuyerName      string  `json:"buyer_name"`
	BuyerAddress   string  `json:"buyer_address"`
}

// ReservationClient talks to the reservation/room collaborator. The cash core
// only ever reads balances and, after a cancelling credit note, requests a
// room release — all other reservation concerns live outside this service.
type ReservationClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewReservationClient(baseURL string) *ReservationClient {
	return &ReservationClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// LookupBalance fetches the outstanding balance and buyer identity for a reservation.
func (c *ReservationClient) LookupBalance(ctx context.Context, reservationRef string) (*ReservationBalance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/reservations/"+reservationRef+"/balance", nil)
	if err != nil {
		return nil, fmt.Errorf("reservation: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reservation: unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reservation: returned %d", resp.StatusCode)
	}

	var result ReservationBalance
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("reservation: decode response: %w", err)
	}
	return &result, nil
}

// ReleaseRoom asks the reservation service to release/cancel the booking.
// Best-effort: issuance of the credit note never depends on this call.
func (c *ReservationClient) ReleaseRoom(ctx context.Context, reservationRef, reason string) error {
	body, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/reservations/"+reservationRef+"/release", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reservation: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reservation: unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("reservation: returned %d", resp.StatusCode)
	}
	return nil
}
