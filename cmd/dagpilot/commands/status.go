package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/marmos91/dagpilot/internal/cli/health"
	"github.com/marmos91/dagpilot/internal/cli/output"
	"github.com/marmos91/dagpilot/internal/cli/timeutil"
	"github.com/marmos91/dagpilot/pkg/api"
	"github.com/marmos91/dagpilot/pkg/pilot"
	"github.com/spf13/cobra"
)

var (
	apiHost      string
	apiPort      int
	outputFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running pilot",
	Long: `Query the status API of a running pilot and print its loop counters.

Examples:
  # Status of the local pilot
  dagpilot status

  # As JSON
  dagpilot status -o json

  # Pilot on another host
  dagpilot status --api-host 10.0.0.7 --api-port 9000`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&apiHost, "api-host", "localhost", "Status API host")
	statusCmd.Flags().IntVar(&apiPort, "api-port", api.DefaultPort, "Status API port")
	statusCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
}

func apiURL(path string) string {
	return "http://" + apiHost + ":" + strconv.Itoa(apiPort) + path
}

// getJSON decodes the body of GET url into v.
func getJSON(url string, v any) error {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("pilot is not reachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("pilot returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	var resp health.StatusResponse
	if err := getJSON(apiURL("/status"), &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, resp.Data)
	case output.FormatYAML:
		return output.PrintYAML(out, resp.Data)
	default:
		return output.PrintDetails(out, statusDetails(resp.Data, time.Now()))
	}
}

// statusDetails lays out a loop status as key/value rows.
func statusDetails(st pilot.Status, now time.Time) output.Details {
	var d output.Details
	d.Add("Session", st.SessionID)
	d.Add("Mode", string(st.Mode))
	d.Add("State", st.State.String())
	d.Add("Predictor", st.Predictor)
	d.Add("Started", timeutil.FormatTime(st.StartedAt))
	if !st.StartedAt.IsZero() {
		d.Add("Uptime", timeutil.Since(st.StartedAt, now))
	}
	d.Add("Ticks", strconv.FormatInt(st.Ticks, 10))
	d.Add("Iteration", strconv.FormatInt(st.Iteration, 10))
	d.Add("Expert probability", strconv.FormatFloat(st.ExpertProbability, 'f', 3, 64))
	d.Add("Commands sent", strconv.FormatInt(st.Sent, 10))
	d.Add("Skipped", strconv.FormatInt(st.Skipped, 10))
	d.Add("Session frames", strconv.Itoa(st.SessionFrames))
	d.Add("Window frames", strconv.Itoa(st.WindowFrames))
	d.Add("Next retrain at", strconv.FormatInt(st.NextRetrainAt, 10))
	if r := st.LastRetrain; r != nil {
		outcome := fmt.Sprintf("%d samples in %s", r.Samples, timeutil.FormatDuration(r.Duration))
		if r.Error != "" {
			outcome = "failed: " + r.Error
		}
		d.Add("Last retrain", fmt.Sprintf("tick %d, %s", r.Tick, outcome))
	}
	if st.Artifact != "" {
		d.Add("Artifact", st.Artifact)
	}
	if st.Model != "" {
		d.Add("Model", st.Model)
	}
	return d
}
