package thor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const maxResponseBytes = 4 << 20

// Client talks to a Thor node's REST API.
type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

var _ ports.NodeClient = Client{}

type blockResponse struct {
	ID     string `json:"id"`
	Number uint64 `json:"number"`
}

type clausePayload struct {
	To    *string `json:"to"`
	Value string  `json:"value"`
	Data  string  `json:"data"`
}

type transactionResponse struct {
	ID      string          `json:"id"`
	Origin  string          `json:"origin"`
	Clauses []clausePayload `json:"clauses"`
}

type receiptResponse struct {
	GasUsed  uint64 `json:"gasUsed"`
	Reverted bool   `json:"reverted"`
	Meta     struct {
		BlockID     string `json:"blockID"`
		BlockNumber uint64 `json:"blockNumber"`
		TxID        string `json:"txID"`
		TxOrigin    string `json:"txOrigin"`
	} `json:"meta"`
}

type explainRequest struct {
	Clauses []clausePayload `json:"clauses"`
	Caller  string          `json:"caller,omitempty"`
}

type explainResponse struct {
	Data     string `json:"data"`
	GasUsed  uint64 `json:"gasUsed"`
	Reverted bool   `json:"reverted"`
	VMError  string `json:"vmError"`
}

type rawTransactionRequest struct {
	Raw string `json:"raw"`
}

type rawTransactionResponse struct {
	ID string `json:"id"`
}

func (c Client) Block(ctx context.Context, revision string) (domain.BlockRef, error) {
	if revision == "" {
		revision = "best"
	}

	var payload *blockResponse
	if err := c.do(ctx, http.MethodGet, "blocks/"+url.PathEscape(revision), nil, nil, &payload); err != nil {
		return domain.BlockRef{}, fmt.Errorf("get block %s: %w", revision, err)
	}
	if payload == nil {
		return domain.BlockRef{}, fmt.Errorf("get block %s: block not found", revision)
	}

	return domain.BlockRef{ID: payload.ID, Number: payload.Number}, nil
}

func (c Client) Transaction(ctx context.Context, id string) (domain.TransactionDetail, error) {
	var payload *transactionResponse
	if err := c.do(ctx, http.MethodGet, "transactions/"+url.PathEscape(id), nil, nil, &payload); err != nil {
		return domain.TransactionDetail{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	if payload == nil {
		return domain.TransactionDetail{}, fmt.Errorf("get transaction %s: transaction not found", id)
	}

	clauses := make([]domain.Clause, 0, len(payload.Clauses))
	for _, clause := range payload.Clauses {
		clauses = append(clauses, fromClausePayload(clause))
	}

	return domain.TransactionDetail{ID: payload.ID, Origin: payload.Origin, Clauses: clauses}, nil
}

func (c Client) Receipt(ctx context.Context, id string) (*domain.Receipt, error) {
	var payload *receiptResponse
	if err := c.do(ctx, http.MethodGet, "transactions/"+url.PathEscape(id)+"/receipt", nil, nil, &payload); err != nil {
		return nil, fmt.Errorf("get receipt %s: %w", id, err)
	}
	if payload == nil {
		return nil, nil
	}

	txID := payload.Meta.TxID
	if txID == "" {
		txID = id
	}

	return &domain.Receipt{
		TxID:        txID,
		Origin:      payload.Meta.TxOrigin,
		Reverted:    payload.Reverted,
		GasUsed:     payload.GasUsed,
		BlockID:     payload.Meta.BlockID,
		BlockNumber: payload.Meta.BlockNumber,
	}, nil
}

func (c Client) Explain(ctx context.Context, req domain.ExplainRequest) ([]domain.ExplainOutput, error) {
	body := explainRequest{Caller: req.Caller, Clauses: make([]clausePayload, 0, len(req.Clauses))}
	for _, clause := range req.Clauses {
		body.Clauses = append(body.Clauses, toClausePayload(clause))
	}

	query := url.Values{}
	if req.Revision != "" {
		query.Set("revision", req.Revision)
	}

	var payload []explainResponse
	if err := c.do(ctx, http.MethodPost, "accounts/*", query, body, &payload); err != nil {
		return nil, fmt.Errorf("explain clauses: %w", err)
	}

	outputs := make([]domain.ExplainOutput, 0, len(payload))
	for _, output := range payload {
		outputs = append(outputs, domain.ExplainOutput{
			Data:     output.Data,
			Reverted: output.Reverted,
			VMError:  output.VMError,
			GasUsed:  output.GasUsed,
		})
	}

	return outputs, nil
}

func (c Client) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("raw transaction is empty")
	}

	var payload rawTransactionResponse
	if err := c.do(ctx, http.MethodPost, "transactions", nil, rawTransactionRequest{Raw: hexutil.Encode(raw)}, &payload); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	if payload.ID == "" {
		return "", errors.New("send transaction: node returned no transaction id")
	}

	return payload.ID, nil
}

func (c Client) do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	endpoint, err := buildAPIURL(c.BaseURL, path)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeNodeError(resp)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

// decodeNodeError reads the plain-text message Thor returns with 4xx answers.
func decodeNodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(data))
	if message == "" {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, message)
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("node url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse node url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("node url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("node url host is required")
	}

	parsed.RawQuery = ""
	return strings.TrimSuffix(parsed.String(), "/") + "/" + strings.TrimPrefix(path, "/"), nil
}

func toClausePayload(clause domain.Clause) clausePayload {
	payload := clausePayload{Value: clause.Value, Data: clause.Data}
	if payload.Value == "" {
		payload.Value = "0x0"
	}
	if payload.Data == "" {
		payload.Data = "0x"
	}
	if clause.To != "" {
		to := clause.To
		payload.To = &to
	}
	return payload
}

func fromClausePayload(payload clausePayload) domain.Clause {
	clause := domain.Clause{Value: payload.Value, Data: payload.Data}
	if payload.To != nil {
		clause.To = *payload.To
	}
	return clause
}
