package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "An unexpected error occurred."
	var details []dto.ErrorDetail
	var validationErrs apperrors.ValidationErrors
	var appErr *apperrors.AppError

	switch {
	case errors.As(err, &validationErrs):
		status, message = http.StatusBadRequest, "Validation failed."
		details = make([]dto.ErrorDetail, len(validationErrs))
		for i, fe := range validationErrs {
			details[i] = dto.ErrorDetail{Field: fe.Field, Message: fe.Message}
		}
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrNoEligibleInstallments):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrInsufficientPayment):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrLimitExceeded):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized."
	case errors.As(err, &appErr):
		message = appErr.Error()
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error:   dto.ErrorDetail{Message: message},
		Details: details,
	}
	respondJSON(w, status, resp)
}

func getLoanIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "loanID")
	if idStr == "" {
		return 0, fmt.Errorf("loanID not found in URL path")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// CreateLoan originates a new loan with its repayment schedule.
//
// @Summary Create a new loan
// @Description Creates a loan for a customer. The stored loan amount is the full repayment (amount * (1 + rate)) split into equal monthly installments, and the customer's used credit rises by that total.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan creation request payload"
// @Success 201 {object} dto.LoanResponse "Loan successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 422 {object} dto.ErrorResponse "Credit limit exceeded"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	createdLoan, err := h.service.CreateLoan(r.Context(), req.CustomerID, req.LoanAmount, req.NumberOfInstallment, req.InterestRate)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(createdLoan))
}

// ListLoans returns a filtered page of a customer's loans.
//
// @Summary List loans for a customer
// @Description Lists loans filtered by customer (required) and optionally by installment count and paid status. Results are paginated and sorted by loan amount unless told otherwise.
// @Tags Loans
// @Produce json
// @Param customerId query int true "Customer ID"
// @Param numberOfInstallment query int false "Filter by installment count"
// @Param isPaid query bool false "Filter by paid status"
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size (default 20, max 100)"
// @Param sortBy query string false "Sort column: loanAmount or createdAt"
// @Param sortDir query string false "Sort direction: asc or desc"
// @Success 200 {object} dto.LoanPageResponse "Page of loans"
// @Failure 400 {object} dto.ErrorResponse "Missing or invalid query parameters"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [get]
// @Security BearerAuth
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	customerID, err := strconv.ParseInt(query.Get("customerId"), 10, 64)
	if err != nil {
		respondError(w, fmt.Errorf("%w: customerId query parameter is required", apperrors.ErrInvalidArgument))
		return
	}
	filter := loan.Filter{CustomerID: customerID}

	if v := query.Get("numberOfInstallment"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, fmt.Errorf("%w: numberOfInstallment must be an integer", apperrors.ErrInvalidArgument))
			return
		}
		filter.NumberOfInstallment = &n
	}
	if v := query.Get("isPaid"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, fmt.Errorf("%w: isPaid must be a boolean", apperrors.ErrInvalidArgument))
			return
		}
		filter.IsPaid = &b
	}

	page := loan.PageRequest{SortBy: query.Get("sortBy")}
	page.Page, _ = strconv.Atoi(query.Get("page"))
	page.Size, _ = strconv.Atoi(query.Get("size"))
	page.SortDesc = strings.EqualFold(query.Get("sortDir"), "desc")

	result, err := h.service.ListLoans(r.Context(), filter, page)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanPageResponse(result))
}

// GetInstallments returns a loan's repayment schedule.
//
// @Summary List installments of a loan
// @Description Returns the loan's installments in due-date order, including paid amount and payment date for settled ones.
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {array} dto.InstallmentResponse "Installments of the loan"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/installments [get]
// @Security BearerAuth
func (h *LoanHandler) GetInstallments(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	installments, err := h.service.GetInstallments(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewInstallmentListResponse(installments))
}

// PayInstallments applies a payment to a loan.
//
// @Summary Pay installments of a loan
// @Description Applies the amount to the loan's oldest unpaid installments due within the next 3 calendar months. Only whole installments are settled; any remainder stays with the caller.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.PayInstallmentRequest true "Payment request payload"
// @Success 200 {object} dto.PaymentResultResponse "Payment allocation result"
// @Failure 400 {object} dto.ErrorResponse "Invalid payload or amount below one installment"
// @Failure 404 {object} dto.ErrorResponse "Loan not found or no eligible installments"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/payments [post]
// @Security BearerAuth
func (h *LoanHandler) PayInstallments(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.PayInstallmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	result, err := h.service.PayInstallments(r.Context(), loanID, req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewPaymentResultResponse(loanID, result))
}
