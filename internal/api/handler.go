// Package api is the HTTP boundary of the pass service. It validates
// request bodies, translates pipeline errors into status codes, and sets the
// transport headers for the binary archive.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	commonerrors "walletpass/internal/common/errors"
	"walletpass/internal/common/logger"
	"walletpass/internal/pass"
	"walletpass/internal/registry"
)

const passContentType = "application/vnd.apple.pkpass"

// requestSchema rejects structurally bad bodies before the pipeline sees
// them. Field-level semantics (serial safety, non-blank values) stay with
// pass.ValidateRequest; this only guards shape and types.
const requestSchema = `{
  "type": "object",
  "properties": {
    "serialNumber":       {"type": "string", "minLength": 1, "maxLength": 64},
    "amount":             {"type": "string"},
    "category":           {"type": "string"},
    "withdrawalRate":     {"type": "string"},
    "successProbability": {"type": "string"},
    "explanation":        {"type": "string"},
    "barcodeMessage":     {"type": "string"}
  },
  "required": ["serialNumber", "amount", "category", "withdrawalRate", "successProbability", "explanation", "barcodeMessage"],
  "additionalProperties": false
}`

const maxRequestBody = 64 * 1024

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Handler serves pass generation over HTTP.
type Handler struct {
	gen    *pass.Generator
	store  *registry.Store
	schema *gojsonschema.Schema
	log    logger.Logger
}

// NewHandler builds a Handler. store may be nil when the issuance registry
// is disabled.
func NewHandler(gen *pass.Generator, store *registry.Store, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return &Handler{
		gen:    gen,
		store:  store,
		schema: schema,
		log:    log.WithFields(map[string]interface{}{"component": "api"}),
	}, nil
}

// NewRouter wires the service routes.
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/passes", h.GeneratePass)
	mux.HandleFunc("/healthz", h.Health)
	return mux
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// GeneratePass handles POST /v1/passes.
func (h *Handler) GeneratePass(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "unreadable request body"})
		return
	}
	if len(body) > maxRequestBody {
		writeError(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}

	if resp, ok := h.validateBody(body); !ok {
		writeError(w, http.StatusBadRequest, resp)
		return
	}

	var req pass.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	result, err := h.gen.Generate(r.Context(), &req)
	if err != nil {
		h.writePipelineError(w, &req, err)
		return
	}

	h.recordIssuance(r.Context(), result)

	w.Header().Set("Content-Type", passContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pkpass", result.SerialNumber))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(result.Archive)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Archive)
}

func (h *Handler) validateBody(body []byte) (errorResponse, bool) {
	validation, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errorResponse{Error: "malformed JSON body"}, false
	}
	if !validation.Valid() {
		var details []string
		for _, desc := range validation.Errors() {
			details = append(details, desc.String())
		}
		return errorResponse{
			Error:   "invalid pass request",
			Code:    string(commonerrors.ErrCodeRequestInvalid),
			Details: strings.Join(details, "; "),
		}, false
	}
	return errorResponse{}, true
}

// writePipelineError translates the error taxonomy for callers. Request
// validation surfaces with its details; every server-side kind gets a
// generic message with the specifics logged here only.
func (h *Handler) writePipelineError(w http.ResponseWriter, req *pass.Request, err error) {
	stdErr := commonerrors.AsStandard(err)
	status := commonerrors.HTTPStatus(stdErr.Code)

	if status == http.StatusBadRequest {
		writeError(w, status, errorResponse{
			Error:   "invalid pass request",
			Code:    string(stdErr.Code),
			Details: stdErr.Details,
		})
		return
	}

	h.log.Error("pass generation failed", map[string]interface{}{
		"serial":    req.SerialNumber,
		"errorCode": string(stdErr.Code),
		"category":  commonerrors.GetErrorCategory(stdErr.Code),
		"details":   stdErr.Details,
	})
	writeError(w, status, errorResponse{Error: "pass generation failed"})
}

func (h *Handler) recordIssuance(ctx context.Context, result *pass.Result) {
	if h.store == nil {
		return
	}
	err := h.store.RecordIssuance(ctx, registry.IssuanceRecord{
		SerialNumber: result.SerialNumber,
		ManifestSHA1: result.ManifestSHA1,
		ArchiveBytes: len(result.Archive),
	})
	if err != nil {
		// The pass is already signed and complete; the audit log must not
		// fail the request.
		h.log.Warn("issuance registry write failed", map[string]interface{}{
			"serial": result.SerialNumber,
			"error":  err.Error(),
		})
	}
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
