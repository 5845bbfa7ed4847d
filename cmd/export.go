package main

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/pipeline"
	"github.com/sells-group/siteselect/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run to an XLSX workbook",
	Long:  "Writes the selected, suppressed, and capped sites of a run plus the regional fairness ledger to an XLSX workbook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		result, err := st.GetResult(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("siteselect-%s.xlsx", truncateID(result.RunID))
		}
		if err := writeWorkbook(result, out); err != nil {
			return err
		}

		zap.L().Info("run exported",
			zap.String("run_id", result.RunID),
			zap.String("path", out),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default siteselect-<run-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}

var siteHeader = []string{
	"Rank", "ID", "Name", "Region", "Type", "Source", "Population",
	"Lat", "Lng", "Score", "Confidence", "Anchors", "Cluster size",
}

// writeWorkbook renders a run result as one sheet per site status plus the
// fairness ledger.
func writeWorkbook(result *pipeline.Result, path string) error {
	f := xlsx.NewFile()

	if err := addSiteSheet(f, "Selected", result, store.SiteStatusSelected); err != nil {
		return err
	}
	if err := addSiteSheet(f, "Suppressed", result, store.SiteStatusSuppressed); err != nil {
		return err
	}
	if err := addSiteSheet(f, "Capped", result, store.SiteStatusCapped); err != nil {
		return err
	}
	if err := addLedgerSheet(f, result); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}

func addSiteSheet(f *xlsx.File, name string, result *pipeline.Result, status string) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	header := sheet.AddRow()
	for _, h := range siteHeader {
		header.AddCell().Value = h
	}

	var cands = result.Selected
	switch status {
	case store.SiteStatusSuppressed:
		cands = result.Suppressed
	case store.SiteStatusCapped:
		cands = result.Capped
	}

	for i, c := range cands {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().Value = c.ID
		row.AddCell().Value = c.Name
		row.AddCell().Value = c.RegionCode
		row.AddCell().Value = string(c.SettlementType)
		row.AddCell().Value = string(c.Source)
		row.AddCell().SetInt(c.Population)
		row.AddCell().SetFloat(c.Lat)
		row.AddCell().SetFloat(c.Lng)
		row.AddCell().SetFloat(c.Score.Total)
		row.AddCell().SetFloat(c.Score.Confidence)
		row.AddCell().SetInt(c.AnchorCount)
		row.AddCell().SetInt(c.ClusterSize)
	}
	return nil
}

func addLedgerSheet(f *xlsx.File, result *pipeline.Result) error {
	sheet, err := f.AddSheet("Regions")
	if err != nil {
		return eris.Wrap(err, "export: add sheet Regions")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Region", "Base", "Bonus", "Manual cap", "Allocated", "Available", "Selected"} {
		header.AddCell().Value = h
	}

	regions := make([]string, 0, len(result.FairnessLedger))
	for region := range result.FairnessLedger {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	for _, region := range regions {
		ledger := result.FairnessLedger[region]
		row := sheet.AddRow()
		row.AddCell().Value = region
		row.AddCell().SetInt(ledger.Base)
		row.AddCell().SetInt(ledger.Bonus)
		if ledger.Manual != nil {
			row.AddCell().SetInt(*ledger.Manual)
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().SetInt(ledger.Allocated)
		row.AddCell().SetInt(ledger.Available)
		row.AddCell().SetInt(result.RegionDistribution[region])
	}
	return nil
}
