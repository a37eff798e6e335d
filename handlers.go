package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/taajiri/pawnshop_backend/models"
	"github.com/taajiri/pawnshop_backend/utils"
)

// respondError maps domain errors onto HTTP statuses: validation failures
// are 422, state machine violations 409, missing records 404.
func respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	var se *models.StateError
	var nfe *models.NotFoundError
	var ce *models.ConflictError

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Message, "code": ve.Code})
	case errors.As(err, &se):
		c.JSON(http.StatusConflict, gin.H{"error": se.Message, "code": se.Code})
	case errors.As(err, &nfe):
		c.JSON(http.StatusNotFound, gin.H{"error": nfe.Error()})
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, gin.H{"error": ce.Message})
	case errors.Is(err, utils.ErrLockNotObtained):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": ok})
	}
}

func getBusinessRulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rules, err := models.GetBusinessRules(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rules)
	}
}

func updateBusinessRulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdateBusinessRulesInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		rules, err := models.UpdateBusinessRules(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rules)
	}
}

func createLoanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewLoanApplication
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		loan, err := models.CreateLoanApplication(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, loan)
	}
}

func listLoansHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.LoanStatus
		if s := c.Query("status"); s != "" {
			ls := models.LoanStatus(s)
			if !ls.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
				return
			}
			status = &ls
		}
		loans, err := models.ListLoans(c.Request.Context(), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loans)
	}
}

func getLoanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		loan, err := models.GetLoan(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}

func updateLoanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.NewLoan
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		loan, err := models.UpdateLoanApplication(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}

func deleteLoanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		loan, err := models.DeleteLoan(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}

type quoteRequest struct {
	AmountIssued    string `json:"amount_issued" binding:"required"`
	LoanPeriodWeeks int    `json:"loan_period_weeks" binding:"required"`
}

// quoteLoanHandler previews interest and total for the given terms without
// touching any record.
func quoteLoanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req quoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		amount, err := decimal.NewFromString(req.AmountIssued)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount_issued"})
			return
		}
		rules, err := models.GetBusinessRules(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		rate, err := models.ValidateOrigination(rules, amount, req.LoanPeriodWeeks, false, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		interest, total := models.Quote(amount, rate)
		c.JSON(http.StatusOK, gin.H{
			"amount_issued":     amount,
			"loan_period_weeks": req.LoanPeriodWeeks,
			"interest_rate":     rate,
			"interest_amount":   interest,
			"total_amount":      total,
		})
	}
}

func applyPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.NewPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := models.ApplyPayment(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func listPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		payments, err := models.ListPayments(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}

type approveAgreementRequest struct {
	Notes string `json:"notes"`
}

func approveAgreementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		// The body is optional; an empty POST approves without notes.
		var req approveAgreementRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		loan, err := models.ApproveAgreement(c.Request.Context(), id, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}

type rejectAgreementRequest struct {
	Notes string `json:"notes" binding:"required"`
}

func rejectAgreementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req rejectAgreementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "notes are required"})
			return
		}
		loan, err := models.RejectAgreement(c.Request.Context(), id, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}

func sellCollateralHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.CollateralSale
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		collateral, err := models.MarkCollateralSold(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, collateral)
	}
}

func borrowerHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		nationalId := c.Query("national_id")
		if nationalId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "national_id is required"})
			return
		}
		history, err := models.ClassifyBorrower(c.Request.Context(), nationalId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func createExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewExpense
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		expense, err := models.CreateExpense(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, expense)
	}
}

func listExpensesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var from, to *time.Time
		if v := c.Query("from"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
				return
			}
			from = &t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
				return
			}
			to = &t
		}
		expenses, err := models.ListExpenses(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, expenses)
	}
}

func updateExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.NewExpense
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		expense, err := models.UpdateExpense(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func deleteExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		expense, err := models.DeleteExpense(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.GetAllUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

type outboxReplayRequest struct {
	RecordIds []int `json:"record_ids"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Require auth token (SessionMiddleware puts username in context).
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		replayed, err := models.ReplayDeadLoanEvents(c.Request.Context(), req.RecordIds)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"replayed": replayed})
	}
}
