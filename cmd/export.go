package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/store"
)

var (
	exportOutput   string
	exportStatus   string
	exportMinScore float64
	exportLimit    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export requisition signals as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		f := store.SignalFilter{Limit: exportLimit}
		if exportStatus != "" {
			f.Status = model.SignalStatus(exportStatus)
		}
		if exportMinScore > 0 {
			f.MinScore = &exportMinScore
		}

		signals, err := st.ListSignals(ctx, f)
		if err != nil {
			return eris.Wrap(err, "list signals")
		}

		var out io.Writer = os.Stdout
		if exportOutput != "" {
			file, err := os.Create(exportOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer file.Close()
			out = file
		}

		if err := writeSignalsCSV(out, signals); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("signals", len(signals)),
			zap.String("output", exportOutput),
		)
		return nil
	},
}

func writeSignalsCSV(out io.Writer, signals []model.RequisitionSignal) error {
	w := csv.NewWriter(out)
	header := []string{
		"id", "title", "location", "rate", "employment_type", "skills",
		"status", "actionability", "closure_score", "closure_tier", "received_at",
	}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, s := range signals {
		row := []string{
			strconv.FormatInt(s.ID, 10),
			s.Title,
			s.Location,
			s.RateText,
			string(s.EmploymentType),
			strings.Join(s.Skills, ";"),
			string(s.Status),
			strconv.FormatFloat(s.Actionability, 'f', 1, 64),
			strconv.FormatFloat(s.ClosureScore, 'f', 1, 64),
			s.ClosureTier,
			s.ReceivedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func writeVendorsCSV(out io.Writer, vendors []model.VendorCompany) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "domain", "name", "email_count", "first_seen", "last_seen"}); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, v := range vendors {
		row := []string{
			strconv.FormatInt(v.ID, 10),
			v.Domain,
			v.Name,
			strconv.FormatInt(v.EmailCount, 10),
			v.FirstSeen.Format(time.RFC3339),
			v.LastSeen.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func writeConsultantsCSV(out io.Writer, consultants []model.Consultant) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "email", "name", "phone", "skills", "email_count", "last_seen"}); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, c := range consultants {
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.Email,
			c.Name,
			c.Phone,
			strings.Join(c.Skills, ";"),
			strconv.FormatInt(c.EmailCount, 10),
			c.LastSeen.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file path (default: stdout)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by status: NEW or CONVERTED")
	exportCmd.Flags().Float64Var(&exportMinScore, "min-score", 0, "minimum actionability score")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "maximum signals to export")
	rootCmd.AddCommand(exportCmd)
}
