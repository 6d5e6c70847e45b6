/*
csv.go - Flat CSV rendering for audit output

PURPOSE:
  Spreadsheet-friendly exports of a run: one row per audited record and
  one row per agent period. Money renders as plain decimal dollars with
  no currency sign so the columns stay sortable.

SEE ALSO:
  - summary.go: The rollup rows exported here
*/
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
)

// WriteResultsCSV emits one row per audited record.
func WriteResultsCSV(w io.Writer, results []audit.Result) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"Record ID", "Agent", "Status",
		"Actual Company Dollar", "Expected Company Dollar", "Difference",
		"Gross Commission", "Agent Net", "Royalty", "Notes",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			string(r.RecordID),
			string(r.AgentName),
			string(r.Status),
			money(r.ActualCompanyDollar),
			money(r.ExpectedCompanyDollar),
			money(r.Difference),
			money(r.Breakdown.GrossCommission),
			money(r.Breakdown.AgentNet),
			money(r.Breakdown.Royalty),
			strings.Join(r.Notes, "; "),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteSummariesCSV emits one row per agent period.
func WriteSummariesCSV(w io.Writer, summaries []AgentSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"Agent", "Period", "Plan",
		"Transactions", "Total GCI", "Agent Net",
		"Company Dollar Paid", "Royalty Paid",
		"Percent To Cap", "Capped", "Current Split",
		"Matches", "Underpaid", "Overpaid",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range summaries {
		row := []string{
			string(s.AgentName),
			s.PeriodKey,
			string(s.PlanID),
			strconv.Itoa(s.Transactions),
			money(s.TotalGCI),
			money(s.TotalAgentNet),
			money(s.CompanyDollarPaid),
			money(s.RoyaltyPaid),
			s.PercentToCap.StringFixed(1),
			strconv.FormatBool(s.IsCapped),
			s.CurrentSplit.StringFixed(1),
			strconv.Itoa(s.Matches),
			strconv.Itoa(s.Underpaid),
			strconv.Itoa(s.Overpaid),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func money(c commission.Cents) string {
	return c.Dollars().StringFixed(2)
}
