package prover

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spacesprotocol/subspacer/config"
	"github.com/spacesprotocol/subspacer/engine"
	"github.com/spacesprotocol/subspacer/logging"
	"github.com/spacesprotocol/subspacer/memory"
	"github.com/spacesprotocol/subspacer/statestore"
	"github.com/spacesprotocol/subspacer/types"
)

// RemoteProver delegates proving to an external proving service over HTTP.
// The service executes the same guest program and returns a sealed receipt;
// the caller still verifies the receipt locally before trusting it.
type RemoteProver struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      *logging.Logger
}

// NewRemoteProver creates a prover that submits batches to the configured
// endpoint. The credential is read from the environment variable named by
// cfg.APIKeyEnv; an empty credential submits unauthenticated.
func NewRemoteProver(cfg config.ProverConfig, log *logging.Logger) *RemoteProver {
	return &RemoteProver{
		endpoint: cfg.Endpoint,
		apiKey:   os.Getenv(cfg.APIKeyEnv),
		client:   &http.Client{Timeout: cfg.Timeout.Duration()},
		log:      log.WithComponent("prover"),
	}
}

// Name implements Prover.
func (p *RemoteProver) Name() string { return "remote" }

// proveRequest is the wire form of a proving submission. Witnesses travel
// as the proof's own encoding so the service reconstructs batches exactly.
type proveRequest struct {
	ImageID string       `json:"image_id"`
	Batches []proveBatch `json:"batches"`
}

type proveBatch struct {
	Space         string         `json:"space"`
	InitialRoot   string         `json:"initial_root"`
	Raw           string         `json:"raw"`
	Witnesses     []proveWitness `json:"witnesses"`
	Timestamp     int64          `json:"timestamp"`
	RenewalPeriod int64          `json:"renewal_period"`
}

type proveWitness struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Exists  bool   `json:"exists"`
	Root    string `json:"root"`
	Version int64  `json:"version"`
	Proof   string `json:"proof"`
}

type proveResponse struct {
	Receipt string `json:"receipt"`
	Error   string `json:"error,omitempty"`
}

// Prove implements Prover.
func (p *RemoteProver) Prove(ctx context.Context, batches []*engine.Batch) (*Receipt, error) {
	start := time.Now()

	// Witness-heavy batch sets encode to sizable payloads; reuse buffers.
	buf := memory.GetBuffer(requestSizeHint(batches))
	defer memory.PutBuffer(buf)
	if err := json.NewEncoder(buf).Encode(encodeRequest(batches)); err != nil {
		return nil, fmt.Errorf("encoding proving request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("building proving request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting to %s: %v: %w", p.endpoint, err, types.ErrProvingFailed)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<24))
	if err != nil {
		return nil, fmt.Errorf("reading proving response: %v: %w", err, types.ErrProvingFailed)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("proving service returned %d: %w", resp.StatusCode, types.ErrProvingFailed)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("proving service rejected batch set (%d): %s: %w",
			resp.StatusCode, serviceError(payload), types.ErrBatchRejected)
	}

	var out proveResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding proving response: %v: %w", err, types.ErrProvingFailed)
	}
	raw, err := base64.StdEncoding.DecodeString(out.Receipt)
	if err != nil {
		return nil, fmt.Errorf("decoding receipt: %v: %w", err, types.ErrProvingFailed)
	}
	receipt, err := DecodeReceipt(raw)
	if err != nil {
		return nil, err
	}

	p.log.Debug("proved batch set",
		logging.Backend(p.Name()),
		"batches", len(batches),
		logging.Took(time.Since(start)))
	return receipt, nil
}

// requestSizeHint estimates the encoded request size so the buffer pool
// can hand out an appropriately sized buffer. Base64 expands by 4/3; the
// rest is JSON framing.
func requestSizeHint(batches []*engine.Batch) int {
	n := 256
	for _, b := range batches {
		n += 256 + len(b.Raw)*4/3
		for _, w := range b.Witnesses {
			if w == nil {
				continue
			}
			n += 128 + (len(w.Value)+len(w.ProofBytes))*4/3
		}
	}
	return n
}

func encodeRequest(batches []*engine.Batch) proveRequest {
	req := proveRequest{
		ImageID: ImageID().String(),
		Batches: make([]proveBatch, 0, len(batches)),
	}
	for _, b := range batches {
		pb := proveBatch{
			Space:         b.Space.String(),
			InitialRoot:   b.InitialRoot.String(),
			Raw:           base64.StdEncoding.EncodeToString(b.Raw),
			Witnesses:     make([]proveWitness, 0, len(b.Witnesses)),
			Timestamp:     b.Timestamp,
			RenewalPeriod: b.RenewalPeriod,
		}
		for _, w := range b.Witnesses {
			pb.Witnesses = append(pb.Witnesses, encodeWitness(w))
		}
		req.Batches = append(req.Batches, pb)
	}
	return req
}

func encodeWitness(w *statestore.Proof) proveWitness {
	if w == nil {
		return proveWitness{}
	}
	return proveWitness{
		Key:     base64.StdEncoding.EncodeToString(w.Key),
		Value:   base64.StdEncoding.EncodeToString(w.Value),
		Exists:  w.Exists,
		Root:    base64.StdEncoding.EncodeToString(w.RootHash),
		Version: w.Version,
		Proof:   base64.StdEncoding.EncodeToString(w.ProofBytes),
	}
}

func serviceError(payload []byte) string {
	var out proveResponse
	if err := json.Unmarshal(payload, &out); err == nil && out.Error != "" {
		return out.Error
	}
	return "no detail"
}
