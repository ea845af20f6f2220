package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

type genesisResponse struct {
	GenesisID string `json:"genesisId"`
}

type certificateRequest struct {
	Certificate domain.Certificate `json:"certificate"`
}

type certificateResponse struct {
	Certificate domain.Certificate `json:"certificate"`
	Signature   string             `json:"signature"`
}

type txOptionsPayload struct {
	Signer    string `json:"signer,omitempty"`
	Gas       uint64 `json:"gas,omitempty"`
	Comment   string `json:"comment,omitempty"`
	DependsOn string `json:"dependsOn,omitempty"`
	Delegator string `json:"delegator,omitempty"`
}

type transactionRequest struct {
	Clauses []domain.Clause  `json:"clauses"`
	Options txOptionsPayload `json:"options"`
}

type transactionResponse struct {
	TxID   string `json:"txid"`
	Signer string `json:"signer"`
}

type accountResponse struct {
	Account string `json:"account"`
}

// Handle is a signing handle backed by a bridge session.
type Handle struct {
	client  Client
	session string
}

var _ domain.SigningHandle = (*Handle)(nil)

func NewHandle(client Client, session string) (*Handle, error) {
	if session == "" {
		return nil, errors.New("bridge session id is required")
	}
	return &Handle{client: client, session: session}, nil
}

func (h *Handle) Session() string {
	return h.session
}

func (h *Handle) path(suffix string) string {
	return "sessions/" + url.PathEscape(h.session) + "/" + suffix
}

func (h *Handle) GenesisID(ctx context.Context) (string, error) {
	var payload genesisResponse
	if err := h.client.Do(ctx, http.MethodGet, h.path("genesis"), nil, &payload); err != nil {
		return "", err
	}
	if payload.GenesisID == "" {
		return "", errors.New("bridge returned no genesis id")
	}
	return payload.GenesisID, nil
}

func (h *Handle) SignCertificate(ctx context.Context, cert domain.Certificate) (domain.SignedCertificate, error) {
	var payload certificateResponse
	if err := h.client.Do(ctx, http.MethodPost, h.path("certificate"), certificateRequest{Certificate: cert}, &payload); err != nil {
		return domain.SignedCertificate{}, err
	}
	if payload.Signature == "" {
		return domain.SignedCertificate{}, errors.New("bridge returned no certificate signature")
	}
	return domain.SignedCertificate{Certificate: payload.Certificate, Signature: payload.Signature}, nil
}

func (h *Handle) SignTransaction(ctx context.Context, clauses []domain.Clause, opts domain.TxOptions) (domain.TxResponse, error) {
	request := transactionRequest{
		Clauses: clauses,
		Options: txOptionsPayload{
			Signer:    opts.Signer,
			Gas:       opts.Gas,
			Comment:   opts.Comment,
			DependsOn: opts.DependsOn,
			Delegator: opts.Delegator,
		},
	}

	var payload transactionResponse
	if err := h.client.Do(ctx, http.MethodPost, h.path("transaction"), request, &payload); err != nil {
		return domain.TxResponse{}, err
	}
	return domain.TxResponse{TxID: payload.TxID, Signer: payload.Signer}, nil
}

// AuthenticatedHandle is a Handle whose wallet answers the authenticated-account call.
type AuthenticatedHandle struct {
	*Handle
}

var _ domain.AccountAuthenticator = AuthenticatedHandle{}

func (h AuthenticatedHandle) AuthenticatedAccount(ctx context.Context) (string, error) {
	var payload accountResponse
	if err := h.client.Do(ctx, http.MethodGet, h.path("account"), nil, &payload); err != nil {
		return "", err
	}
	if payload.Account == "" {
		return "", fmt.Errorf("bridge session %s has no authenticated account", h.session)
	}
	return payload.Account, nil
}

// Wrap returns h, upgraded to an AuthenticatedHandle when authenticated is set.
func Wrap(h *Handle, authenticated bool) domain.SigningHandle {
	if authenticated {
		return AuthenticatedHandle{Handle: h}
	}
	return h
}
