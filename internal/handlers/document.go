package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ukydev/fleet-compliance/internal/compliance"
	"github.com/ukydev/fleet-compliance/internal/dateutil"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/metrics"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/models"
)

const defaultPageSize = 20

// DocumentHandler handles compliance document requests
type DocumentHandler struct {
	collection db.DocumentCollection
	metrics    *metrics.Metrics
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(collection db.DocumentCollection, m *metrics.Metrics) *DocumentHandler {
	return &DocumentHandler{
		collection: collection,
		metrics:    m,
	}
}

// documentResponse is a document with its derived status attached. Status is
// never stored; it is computed against the request's as-of snapshot.
type documentResponse struct {
	models.Document
	Status       models.Status       `json:"status"`
	RenewalState models.RenewalState `json:"renewal_state"`
}

type createDocumentRequest struct {
	Type          models.DocumentType `json:"document_type"`
	VehicleNumber string              `json:"vehicle_number"`
	Provider      string              `json:"provider"`
	ReferenceNo   string              `json:"reference_no"`
	ValidFrom     string              `json:"valid_from"`
	TotalFee      float64             `json:"total_fee"`
	Paid          float64             `json:"paid"`
	FeeBreakup    []models.FeeItem    `json:"fee_breakup"`
	Notes         string              `json:"notes"`
}

type updateDocumentRequest struct {
	VehicleNumber *string  `json:"vehicle_number"`
	Provider      *string  `json:"provider"`
	ReferenceNo   *string  `json:"reference_no"`
	ValidFrom     *string  `json:"valid_from"`
	TotalFee      *float64 `json:"total_fee"`
	Paid          *float64 `json:"paid"`
	Notes         *string  `json:"notes"`
}

type renewDocumentRequest struct {
	ValidFrom   string  `json:"valid_from"`
	TotalFee    float64 `json:"total_fee"`
	Paid        float64 `json:"paid"`
	Provider    string  `json:"provider"`
	ReferenceNo string  `json:"reference_no"`
	Notes       string  `json:"notes"`
}

// HandleDocuments serves the collection endpoints: list and create.
func (h *DocumentHandler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listDocuments(w, r)
	case http.MethodPost:
		h.createDocument(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleDocument serves the item endpoints: get, update, delete, and the
// pay/renew transitions, plus the stats aggregate.
func (h *DocumentHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/"), "/")
	if rest == "stats" {
		h.getStatistics(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		http.Error(w, "Document ID required", http.StatusBadRequest)
		return
	}
	if len(parts) > 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "pay":
			h.markAsPaid(w, r, id)
		case "renew":
			h.renewDocument(w, r, id)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getDocument(w, r, id)
	case http.MethodPut:
		h.updateDocument(w, r, id)
	case http.MethodDelete:
		h.deleteDocument(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DocumentHandler) createDocument(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req createDocumentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !models.IsValidDocumentType(req.Type) {
		http.Error(w, "Invalid document type", http.StatusBadRequest)
		return
	}
	if req.VehicleNumber == "" {
		http.Error(w, "Vehicle number is required", http.StatusBadRequest)
		return
	}

	doc := &models.Document{
		OwnerID:       ownerID,
		Type:          req.Type,
		VehicleNumber: models.NormalizeVehicleNumber(req.VehicleNumber),
		Provider:      req.Provider,
		ReferenceNo:   req.ReferenceNo,
		Notes:         req.Notes,
	}

	rule, _ := models.RuleFor(req.Type)
	if rule.HasValidityWindow {
		validFromStr := req.ValidFrom
		if validFromStr == "" {
			validFromStr = dateutil.Format(dateutil.Today())
		}
		validFrom, err := dateutil.Parse(validFromStr)
		if err != nil {
			http.Error(w, "Invalid valid_from date, expected DD-MM-YYYY", http.StatusBadRequest)
			return
		}
		validTo, _ := compliance.ValidToFor(req.Type, validFrom)
		doc.ValidFrom = dateutil.Format(validFrom)
		doc.ValidTo = dateutil.Format(validTo)
	} else {
		doc.FeeBreakup = req.FeeBreakup
	}

	if _, err := compliance.ApplyPayment(doc, compliance.FieldTotalFee, req.TotalFee); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	exceeded, err := compliance.ApplyPayment(doc, compliance.FieldPaid, req.Paid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.collection.InsertDocument(r.Context(), doc); err != nil {
		http.Error(w, "Failed to create document", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.IncrementCreated(string(doc.Type))
	}

	resp, err := h.toResponse(doc, dateutil.Today())
	if err != nil {
		http.Error(w, "Failed to derive status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"document":           resp,
		"paid_exceeds_total": exceeded,
	})
}

func (h *DocumentHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, _ := strconv.ParseInt(query.Get("page"), 10, 64)
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.ParseInt(query.Get("limit"), 10, 64)
	if limit < 1 {
		limit = defaultPageSize
	}

	statusFilter := models.Status(query.Get("status"))

	q := db.DocumentQuery{
		OwnerID:       ownerID,
		Type:          models.DocumentType(query.Get("type")),
		VehicleNumber: query.Get("vehicle"),
	}
	// Status is derived, not stored, so the full owner-scoped set is
	// classified first and paginated after. That also keeps count meaning
	// "total matching documents" whether or not a status filter is present.
	docs, err := h.collection.FindDocuments(r.Context(), q)
	if err != nil {
		http.Error(w, "Failed to fetch documents", http.StatusInternalServerError)
		return
	}

	// One as-of snapshot for the whole listing, so every badge in the
	// response agrees with every other.
	asOf := dateutil.Today()

	responses := make([]documentResponse, 0, len(docs))
	for i := range docs {
		resp, err := h.toResponse(&docs[i], asOf)
		if err != nil {
			http.Error(w, "Failed to derive status", http.StatusInternalServerError)
			return
		}
		if statusFilter != "" && resp.Status != statusFilter {
			continue
		}
		responses = append(responses, resp)
	}

	total := len(responses)
	start := int((page - 1) * limit)
	if start > len(responses) {
		start = len(responses)
	}
	end := start + int(limit)
	if end > len(responses) {
		end = len(responses)
	}
	responses = responses[start:end]

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"documents": responses,
		"page":      page,
		"limit":     limit,
		"count":     total,
	})
}

func (h *DocumentHandler) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	doc, err := h.collection.FindDocumentByID(r.Context(), ownerID, id)
	if err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	resp, err := h.toResponse(doc, dateutil.Today())
	if err != nil {
		http.Error(w, "Failed to derive status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *DocumentHandler) updateDocument(w http.ResponseWriter, r *http.Request, id string) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req updateDocumentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	doc, err := h.collection.FindDocumentByID(r.Context(), ownerID, id)
	if err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	if req.VehicleNumber != nil {
		doc.VehicleNumber = models.NormalizeVehicleNumber(*req.VehicleNumber)
	}
	if req.Provider != nil {
		doc.Provider = *req.Provider
	}
	if req.ReferenceNo != nil {
		doc.ReferenceNo = *req.ReferenceNo
	}
	if req.Notes != nil {
		doc.Notes = *req.Notes
	}
	if req.ValidFrom != nil {
		rule, _ := models.RuleFor(doc.Type)
		if !rule.HasValidityWindow {
			http.Error(w, "Document type has no validity window", http.StatusBadRequest)
			return
		}
		validFrom, err := dateutil.Parse(*req.ValidFrom)
		if err != nil {
			http.Error(w, "Invalid valid_from date, expected DD-MM-YYYY", http.StatusBadRequest)
			return
		}
		validTo, _ := compliance.ValidToFor(doc.Type, validFrom)
		doc.ValidFrom = dateutil.Format(validFrom)
		doc.ValidTo = dateutil.Format(validTo)
	}

	exceeded := false
	if req.TotalFee != nil {
		if _, err := compliance.ApplyPayment(doc, compliance.FieldTotalFee, *req.TotalFee); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Paid != nil {
		exceeded, err = compliance.ApplyPayment(doc, compliance.FieldPaid, *req.Paid)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.collection.UpdateDocument(r.Context(), doc); err != nil {
		http.Error(w, "Failed to update document", http.StatusInternalServerError)
		return
	}

	resp, err := h.toResponse(doc, dateutil.Today())
	if err != nil {
		http.Error(w, "Failed to derive status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"document":           resp,
		"paid_exceeds_total": exceeded,
	})
}

func (h *DocumentHandler) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.collection.DeleteDocument(r.Context(), ownerID, id); err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Document deleted successfully"})
}

func (h *DocumentHandler) markAsPaid(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	doc, err := h.collection.FindDocumentByID(r.Context(), ownerID, id)
	if err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	if err := compliance.MarkAsPaid(doc); err != nil {
		if errors.Is(err, compliance.ErrNoPendingPayment) {
			http.Error(w, "Document has no pending payment", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to mark document as paid", http.StatusInternalServerError)
		return
	}

	if err := h.collection.UpdateDocument(r.Context(), doc); err != nil {
		http.Error(w, "Failed to update document", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.IncrementPaymentsSettled()
	}

	resp, err := h.toResponse(doc, dateutil.Today())
	if err != nil {
		http.Error(w, "Failed to derive status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *DocumentHandler) renewDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req renewDocumentRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	predecessor, err := h.collection.FindDocumentByID(r.Context(), ownerID, id)
	if err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	asOf := dateutil.Today()
	successor, err := compliance.Renew(predecessor, compliance.RenewalInput{
		ValidFrom:   req.ValidFrom,
		TotalFee:    req.TotalFee,
		Paid:        req.Paid,
		Provider:    req.Provider,
		ReferenceNo: req.ReferenceNo,
		Notes:       req.Notes,
	}, asOf)
	if err != nil {
		var notAllowed *compliance.RenewalNotAllowedError
		if errors.As(err, &notAllowed) {
			if h.metrics != nil {
				h.metrics.IncrementRenewalRejected(string(notAllowed.Reason))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{
				"error":  "Renewal not allowed",
				"reason": string(notAllowed.Reason),
			})
			return
		}
		if errors.Is(err, dateutil.ErrInvalidDate) {
			http.Error(w, "Invalid valid_from date, expected DD-MM-YYYY", http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to renew document", http.StatusInternalServerError)
		return
	}

	if err := h.collection.RenewDocument(r.Context(), predecessor, successor); err != nil {
		if errors.Is(err, db.ErrRenewConflict) {
			if h.metrics != nil {
				h.metrics.IncrementRenewalRejected(string(compliance.ReasonAlreadyRenewed))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{
				"error":  "Renewal not allowed",
				"reason": string(compliance.ReasonAlreadyRenewed),
			})
			return
		}
		http.Error(w, "Failed to renew document", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.IncrementRenewed(string(successor.Type))
	}

	predResp, err := h.toResponse(predecessor, asOf)
	if err != nil {
		http.Error(w, "Failed to derive status", http.StatusInternalServerError)
		return
	}
	succResp, err := h.toResponse(successor, asOf)
	if err != nil {
		http.Error(w, "Failed to derive status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"predecessor": predResp,
		"document":    succResp,
	})
}

func (h *DocumentHandler) getStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	docs, err := h.collection.FindDocuments(r.Context(), db.DocumentQuery{OwnerID: ownerID})
	if err != nil {
		http.Error(w, "Failed to fetch documents", http.StatusInternalServerError)
		return
	}

	stats, err := compliance.ComputeStatistics(docs, dateutil.Today())
	if err != nil {
		http.Error(w, "Failed to compute statistics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *DocumentHandler) toResponse(doc *models.Document, asOf time.Time) (documentResponse, error) {
	status, err := compliance.DeriveStatus(doc, asOf)
	if err != nil {
		return documentResponse{}, err
	}
	state, err := compliance.StateOf(doc, asOf)
	if err != nil {
		return documentResponse{}, err
	}
	return documentResponse{Document: *doc, Status: status, RenewalState: state}, nil
}

// ownerFromRequest extracts the owner identity from the JWT claims placed in
// the request context by the auth middleware.
func ownerFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return "", false
	}
	return claims.UserID, true
}
