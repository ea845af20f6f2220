package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/marketplace-wallet/internal/adapters/bridge"
	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

const (
	statusPending  = "pending"
	statusApproved = "approved"
	statusRejected = "rejected"
	statusExpired  = "expired"
)

// Relay opens pairing requests on a relay server and waits for a remote wallet to
// approve them. The URI is handed to Present so the user can scan or paste it.
type Relay struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	PollInterval   time.Duration
	// Timeout bounds the wait for approval when ctx carries no deadline.
	Timeout time.Duration
	Present func(uri string)
	Logger  *slog.Logger
}

var _ ports.PairingModal = (*Relay)(nil)

type metadataPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Icons       []string `json:"icons,omitempty"`
}

type createPairingRequest struct {
	Topic     string             `json:"topic"`
	ProjectID string             `json:"projectId"`
	Metadata  metadataPayload    `json:"metadata"`
	Network   domain.NetworkName `json:"network"`
	GenesisID string             `json:"genesisId"`
}

type createPairingResponse struct {
	URI string `json:"uri"`
}

type pairingStatusResponse struct {
	Status  string `json:"status"`
	Account string `json:"account"`
	Session string `json:"session"`
}

func (r *Relay) Open(ctx context.Context, req ports.PairingRequest) (ports.PairingResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.PairingResult{}, err
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		return ports.PairingResult{}, fmt.Errorf("%w: pairing project id is not configured", domain.ErrWalletNotInstalled)
	}

	client, err := r.client()
	if err != nil {
		return ports.PairingResult{}, err
	}

	topic := uuid.NewString()
	request := createPairingRequest{
		Topic:     topic,
		ProjectID: req.ProjectID,
		Metadata: metadataPayload{
			Name:        req.Metadata.Name,
			Description: req.Metadata.Description,
			URL:         req.Metadata.URL,
		},
		Network:   req.Network.Name,
		GenesisID: req.Network.ID,
	}
	if req.Metadata.IconURL != "" {
		request.Metadata.Icons = []string{req.Metadata.IconURL}
	}

	var created createPairingResponse
	if err := client.Do(ctx, http.MethodPost, "pairings", request, &created); err != nil {
		return ports.PairingResult{}, fmt.Errorf("create pairing: %w", err)
	}
	if created.URI == "" {
		return ports.PairingResult{}, errors.New("create pairing: relay returned no uri")
	}

	r.logger().Debug("pairing opened", "topic", topic)
	if r.Present != nil {
		r.Present(created.URI)
	}

	status, err := r.waitForApproval(ctx, client, topic)
	if err != nil {
		return ports.PairingResult{}, err
	}

	handle, err := bridge.NewHandle(client, status.Session)
	if err != nil {
		return ports.PairingResult{}, fmt.Errorf("pairing approved: %w", err)
	}
	return ports.PairingResult{Handle: handle, Account: status.Account}, nil
}

func (r *Relay) waitForApproval(ctx context.Context, client bridge.Client, topic string) (pairingStatusResponse, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	path := "pairings/" + url.PathEscape(topic)
	for {
		var status pairingStatusResponse
		if err := client.Do(ctx, http.MethodGet, path, nil, &status); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return pairingStatusResponse{}, ctxErr
			}
			return pairingStatusResponse{}, fmt.Errorf("poll pairing: %w", err)
		}

		switch status.Status {
		case statusApproved:
			return status, nil
		case statusRejected:
			return pairingStatusResponse{}, fmt.Errorf("%w: pairing was declined", domain.ErrUserRejected)
		case statusExpired:
			return pairingStatusResponse{}, fmt.Errorf("%w: pairing expired", domain.ErrHandshakeTimeout)
		case statusPending, "":
		default:
			return pairingStatusResponse{}, fmt.Errorf("poll pairing: unknown status %q", status.Status)
		}

		if time.Now().Add(interval).After(deadline) {
			return pairingStatusResponse{}, fmt.Errorf("%w: no approval from the remote wallet", domain.ErrHandshakeTimeout)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return pairingStatusResponse{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Relay) client() (bridge.Client, error) {
	base := strings.TrimSpace(r.BaseURL)
	if base == "" {
		return bridge.Client{}, fmt.Errorf("%w: pairing relay url is not configured", domain.ErrWalletNotInstalled)
	}
	return bridge.Client{
		BaseURL:        strings.TrimSuffix(base, "/") + "/v1",
		HTTPClient:     r.HTTPClient,
		RequestTimeout: r.RequestTimeout,
	}, nil
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
