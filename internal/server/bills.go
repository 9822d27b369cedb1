package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/dutybill/internal/billing/domain"
)

type cancelBillRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

type previewResponse struct {
	SubTotal      string                       `json:"sub_total"`
	TaxPercentage string                       `json:"tax_percentage"`
	TaxAmount     string                       `json:"tax_amount"`
	RoundOff      string                       `json:"round_off_amount"`
	GrandTotal    string                       `json:"grand_total"`
	Context       billingdomain.BillingContext `json:"context"`
	Lines         []billingdomain.BillLineItem `json:"lines"`
}

func (s *Server) GenerateBillLines(c *gin.Context) {
	lines, err := s.billingSvc.GenerateBillLines(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": lines})
}

func (s *Server) PreviewBill(c *gin.Context) {
	preview, err := s.billingSvc.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": previewResponse{
		SubTotal:      preview.Totals.SubTotal.StringFixed(2),
		TaxPercentage: preview.Totals.TaxPercentage.String(),
		TaxAmount:     preview.Totals.TaxAmount.StringFixed(2),
		RoundOff:      preview.Totals.RoundOffAmount.StringFixed(2),
		GrandTotal:    preview.Totals.GrandTotal.StringFixed(2),
		Context:       preview.Context,
		Lines:         preview.Lines,
	}})
}

func (s *Server) GenerateBill(c *gin.Context) {
	bill, err := s.billingSvc.GenerateAndSave(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": bill})
}

func (s *Server) GetActiveBillForTrip(c *gin.Context) {
	bill, err := s.billingSvc.GetActiveBillForTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) GetBill(c *gin.Context) {
	bill, err := s.billingSvc.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) ListBillEvents(c *gin.Context) {
	events, err := s.billingSvc.ListBillEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (s *Server) FinalizeBill(c *gin.Context) {
	bill, err := s.billingSvc.Finalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) CancelBill(c *gin.Context) {
	var req cancelBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		AbortWithError(c, newValidationError("reason", "required", "reason is required"))
		return
	}

	bill, err := s.billingSvc.Cancel(c.Request.Context(), c.Param("id"), billingdomain.CancelRequest{
		ActorID: req.ActorID,
		Reason:  req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}
