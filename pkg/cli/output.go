package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func outputFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "output",
		Aliases:     []string{"o"},
		Usage:       "Output format (text, json, yaml)",
		Value:       outputText,
		Sources:     cli.EnvVars("AGRITECH_OUTPUT"),
		Destination: dst,
	}
}

func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return goerr.Wrap(err, "failed to encode JSON")
		}
		return nil

	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return goerr.Wrap(err, "failed to encode YAML")
		}
		return enc.Close()

	default:
		return goerr.New("unsupported output format", goerr.V("format", format))
	}
}

var statusColors = map[model.CropStatus]*color.Color{
	model.CropStatusHealthy:  color.New(color.FgGreen, color.Bold),
	model.CropStatusWarning:  color.New(color.FgYellow, color.Bold),
	model.CropStatusCritical: color.New(color.FgRed, color.Bold),
}

func statusBadge(s model.CropStatus) string {
	label := "[" + strings.ToUpper(string(s)) + "]"
	if c, ok := statusColors[s]; ok {
		return c.Sprint(label)
	}
	return label
}

func renderCropResult(w io.Writer, r *model.CropResult) {
	fmt.Fprintf(w, "%s %s\n\n", statusBadge(r.Status), r.Title)
	fmt.Fprintf(w, "%s\n", r.Description)

	if len(r.Recommendations) > 0 {
		fmt.Fprintf(w, "\nRecommendations:\n")
		for i, rec := range r.Recommendations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, rec)
		}
	}
}

func renderSoilResult(w io.Writer, r *model.SoilResult) {
	fmt.Fprintf(w, "Best crops:\n")
	for i, crop := range r.BestCrops {
		fmt.Fprintf(w, "  %d. %s\n", i+1, crop)
	}
	fmt.Fprintf(w, "\n%s\n", r.Explanation)

	if len(r.Tips) > 0 {
		fmt.Fprintf(w, "\nSoil tips:\n")
		for _, tip := range r.Tips {
			fmt.Fprintf(w, "  - %s\n", tip)
		}
	}
}

func soilTitle(r *model.SoilResult) string {
	if len(r.BestCrops) == 0 {
		return "no recommendation"
	}
	return strings.Join(r.BestCrops, ", ")
}

func renderRecord[R any](w io.Writer, rec *model.Record[R], render func(io.Writer, *R)) {
	fmt.Fprintf(w, "ID:       %s\n", rec.ID)
	fmt.Fprintf(w, "Created:  %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	if rec.Moisture != nil {
		fmt.Fprintf(w, "Moisture: %d%%\n", *rec.Moisture)
	}
	if !rec.Image.IsZero() {
		fmt.Fprintf(w, "Image:    %s, %d bytes\n", rec.Image.MIMEType, len(rec.Image.Data))
	}
	fmt.Fprintln(w)
	render(w, &rec.Result)
}

func renderHistory[R any](w io.Writer, records []*model.Record[R], title func(*R) string) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No history yet")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tCREATED\tRESULT")
	for i, rec := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, rec.ID, rec.CreatedAt.Local().Format(time.DateTime), title(&rec.Result))
	}
	if err := tw.Flush(); err != nil {
		return goerr.Wrap(err, "failed to write history")
	}
	return nil
}
