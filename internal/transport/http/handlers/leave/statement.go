package leavehandler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"

	"teamleave/internal/domain/leave"
	"teamleave/internal/transport/http/api"
	"teamleave/internal/transport/http/middleware"
	"teamleave/internal/transport/http/shared"
)

func (h *Handler) handleBalanceStatement(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	year, valid := shared.QueryYear(r, h.now())
	if !valid {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four digit number", middleware.GetRequestID(r.Context()))
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = actor.UserID
	}

	st, err := h.Service.Statement(r.Context(), actor, userID, year)
	if err != nil {
		writeServiceError(w, r, err, "leave_statement_failed", "failed to build leave statement")
		return
	}
	body, err := buildStatementPDF(st, h.now())
	if err != nil {
		writeServiceError(w, r, err, "leave_statement_failed", "failed to build leave statement")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leave-statement-%d.pdf", year))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func buildStatementPDF(st leave.Statement, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Leave statement %d", st.Balance.Year))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	name := st.Member.Name
	if name == "" {
		name = st.Member.UserID
	}
	pdf.Cell(0, 8, fmt.Sprintf("Member: %s", name))
	pdf.Ln(7)
	if st.Member.Email != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Email: %s", st.Member.Email))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", generated.UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	b := st.Balance
	pdf.Cell(0, 8, fmt.Sprintf("Entitlement: %d days (carry-over %d)", b.Total, b.CarryOver))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Used: %d  Pending: %d  Available: %d", b.Used, b.Pending, b.Available))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 11)
	for _, col := range []struct {
		label string
		width float64
	}{{"From", 35}, {"To", 35}, {"Days", 20}, {"Status", 30}, {"Override", 25}} {
		pdf.CellFormat(col.width, 8, col.label, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	if len(st.Leaves) == 0 {
		pdf.CellFormat(145, 8, "No leave recorded", "1", 1, "L", false, 0, "")
	}
	for _, l := range st.Leaves {
		override := ""
		if l.Overridden {
			override = "yes"
		}
		pdf.CellFormat(35, 8, l.StartDate.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 8, l.EndDate.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprintf("%d", l.WorkingDays), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, l.Status, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, override, "1", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
